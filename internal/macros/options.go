package macros

import (
	"fmt"
	"strings"

	"macroexp/internal/diag"
	"macroexp/internal/trace"
)

// DebugLevel selects how much the engine logs.
type DebugLevel uint8

const (
	DebugOff DebugLevel = iota
	// DebugLite logs one line per expansion decision.
	DebugLite
	// DebugVerbose also logs synthesized arguments and expansions.
	DebugVerbose
)

func (l DebugLevel) String() string {
	switch l {
	case DebugLite:
		return "lite"
	case DebugVerbose:
		return "verbose"
	default:
		return "off"
	}
}

// ParseDebugLevel converts a string to a DebugLevel.
func ParseDebugLevel(s string) (DebugLevel, error) {
	switch strings.ToLower(s) {
	case "", "off":
		return DebugOff, nil
	case "lite":
		return DebugLite, nil
	case "verbose":
		return DebugVerbose, nil
	default:
		return DebugOff, fmt.Errorf("invalid macro debug level: %q (expected: off|lite|verbose)", s)
	}
}

// Mode tells the expander what the surrounding checker expects at a site.
type Mode uint8

const (
	ModeExpr Mode = 1 << iota
	ModePattern
	ModeType
	// ModeFun is set while checking the function part of an application.
	ModeFun
	// ModePoly allows results with undetermined type parameters.
	ModePoly
)

func (m Mode) String() string {
	var parts []string
	names := []struct {
		m    Mode
		name string
	}{{ModeExpr, "expr"}, {ModePattern, "pattern"}, {ModeType, "type"}, {ModeFun, "fun"}, {ModePoly, "poly"}}
	for _, n := range names {
		if m&n.m != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Options configure an Engine.
type Options struct {
	Typer     Typer
	Invoker   Invoker
	FastTrack *FastTrack
	// Reporter receives diagnostics; nil drops them.
	Reporter diag.Reporter
	Tracer   trace.Tracer

	// Disabled delays every expansion, as if macros were off in every scope.
	Disabled bool
	// NoExpand suppresses every expansion.
	NoExpand    bool
	NoFastTrack bool
	Debug       DebugLevel
}
