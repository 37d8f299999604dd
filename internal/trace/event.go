package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event; lower values are coarser.
type Scope uint8

const (
	// ScopeRun covers one driver session.
	ScopeRun Scope = iota + 1
	// ScopePass is a whole-tree sweep over delayed call sites.
	ScopePass
	// ScopeMacro is one expansion attempt of one call site.
	ScopeMacro
	// ScopeNode marks steps inside an attempt (synthesis, validation).
	ScopeNode
)

func (s Scope) String() string {
	switch s {
	case ScopeRun:
		return "run"
	case ScopePass:
		return "pass"
	case ScopeMacro:
		return "macro"
	case ScopeNode:
		return "node"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // stamped by the receiving tracer
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	Depth    int    // nesting depth of the span, 0 for roots
	Name     string // e.g. "expand-all", "macro:assert"
	Detail   string
	Extra    map[string]string
}
