package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"macroexp/internal/driver"
	"macroexp/internal/macros"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	errColor = color.New(color.FgRed, color.Bold)
	okColor  = color.New(color.FgGreen)
)

func headerStyle(s string) string {
	if !useColor {
		return s
	}
	return titleStyle.Render(s)
}

func okStyle(s string) string { return okColor.Sprint(s) }

func errStyle(s string) string { return errColor.Sprint(s) }

// field is one key/value row of an artifact listing.
type field struct {
	key, value string
}

func bindingFields(b macros.Binding) []field {
	lists := make([]string, len(b.Signature))
	for i, list := range b.Signature {
		parts := make([]string, len(list))
		for j, fp := range list {
			parts[j] = fp.String()
		}
		lists[i] = "(" + strings.Join(parts, ", ") + ")"
	}
	kind := "method"
	if b.IsBundle {
		kind = "bundle"
	}
	return []field{
		{"implementation", b.Identity().String()},
		{"kind", kind},
		{"class", b.ClassName},
		{"method", b.MethodName},
		{"signature", strings.Join(lists, "")},
		{"tags", fmt.Sprint(len(b.Tags()))},
	}
}

// padRight pads s to width display columns.
func padRight(s string, width int) string {
	if w := runewidth.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

func renderArtifact(out io.Writer, r driver.ArtifactResult) {
	fmt.Fprintln(out, headerStyle(r.Path))
	if r.Err != nil {
		fmt.Fprintf(out, "  %s %v\n", errStyle("error:"), r.Err)
		return
	}
	fields := bindingFields(r.Binding)
	width := 0
	for _, f := range fields {
		width = max(width, runewidth.StringWidth(f.key))
	}
	for _, f := range fields {
		key := padRight(f.key, width)
		if useColor {
			key = keyStyle.Render(key)
		}
		fmt.Fprintf(out, "  %s  %s\n", key, f.value)
	}
}

// renderVerify prints one status line per result and returns the number
// of failures.
func renderVerify(out io.Writer, results []driver.ArtifactResult) int {
	width := 0
	for _, r := range results {
		width = max(width, runewidth.StringWidth(r.Path))
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "%s  %s  %v\n", padRight(r.Path, width), errStyle("FAIL"), r.Err)
			continue
		}
		fmt.Fprintf(out, "%s  %s  %s\n", padRight(r.Path, width), okStyle("ok"), r.Binding.Identity())
	}
	return failed
}
