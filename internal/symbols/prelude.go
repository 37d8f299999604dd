package symbols

import (
	"macroexp/internal/source"
	"macroexp/internal/types"
)

// Universe is a table seeded with the symbols the expansion engine relies on.
type Universe struct {
	*Table
	// Predef is the module hosting the "unimplemented" marker.
	Predef SymbolID
	// Unimplemented is Predef.???, the right-hand side of macros without an implementation.
	Unimplemented SymbolID
}

// UnimplementedName is the simple name of the unimplemented marker.
const UnimplementedName = "???"

// NewUniverse builds a fresh table with the prelude declared.
func NewUniverse() *Universe {
	t := NewTable(source.NewInterner(), types.NewInterner())
	u := &Universe{Table: t}
	u.Predef = t.NewModule(t.Root, "Predef")
	u.Unimplemented = t.NewMethod(u.Predef, UnimplementedName, t.Types.Builtins().Nothing)
	return u
}
