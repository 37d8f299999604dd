package macros

import (
	"macroexp/internal/ast"
	"macroexp/internal/types"
)

// Value is an argument passed to, or a result returned from, an implementation.
type Value interface {
	value()
}

// ExprValue is a lifted argument: an opaque handle to a syntax tree.
type ExprValue struct {
	Tree ast.TreeID
	// Type is the static type the handle promises; NoTypeID when unknown.
	Type types.TypeID
}

// TreeValue is a bare syntax tree passed through unwrapped.
type TreeValue struct {
	Tree ast.TreeID
}

// WitnessValue carries the concrete type bound to a type parameter.
type WitnessValue struct {
	Type types.TypeID
}

// ContextValue hands the invocation context to non-bundle implementations.
type ContextValue struct {
	Context *Context
}

// SeqValue packs the variadic tail of a parameter list.
type SeqValue []Value

func (ExprValue) value()    {}
func (TreeValue) value()    {}
func (WitnessValue) value() {}
func (ContextValue) value() {}
func (SeqValue) value()     {}

// resultTree extracts the tree of a returned syntax handle.
func resultTree(v Value) (ast.TreeID, bool) {
	switch r := v.(type) {
	case ExprValue:
		return r.Tree, r.Tree.IsValid()
	case *ExprValue:
		if r == nil {
			return ast.NoTreeID, false
		}
		return r.Tree, r.Tree.IsValid()
	case TreeValue:
		return r.Tree, r.Tree.IsValid()
	case *TreeValue:
		if r == nil {
			return ast.NoTreeID, false
		}
		return r.Tree, r.Tree.IsValid()
	default:
		return ast.NoTreeID, false
	}
}

// MacroArgs is what the synthesizer produces for one call site.
type MacroArgs struct {
	Context *Context
	Lists   [][]Value
}

// Flat returns the argument lists concatenated in order.
func (a *MacroArgs) Flat() []Value {
	n := 0
	for _, l := range a.Lists {
		n += len(l)
	}
	out := make([]Value, 0, n)
	for _, l := range a.Lists {
		out = append(out, l...)
	}
	return out
}
