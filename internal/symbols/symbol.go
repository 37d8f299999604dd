package symbols

import (
	"macroexp/internal/source"
	"macroexp/internal/types"
)

// SymbolKind classifies the semantic meaning of a symbol.
type SymbolKind uint8

const (
	SymbolInvalid SymbolKind = iota
	SymbolPackage
	SymbolClass
	// SymbolModule is a singleton container (an object).
	SymbolModule
	SymbolMethod
	SymbolValue
	SymbolParam
	SymbolTypeParam
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolPackage:
		return "package"
	case SymbolClass:
		return "class"
	case SymbolModule:
		return "module"
	case SymbolMethod:
		return "method"
	case SymbolValue:
		return "value"
	case SymbolParam:
		return "param"
	case SymbolTypeParam:
		return "type param"
	default:
		return "invalid"
	}
}

// SymbolFlags encode misc attributes for quick checks.
type SymbolFlags uint16

const (
	// FlagMacro marks a macro definition.
	FlagMacro SymbolFlags = 1 << iota
	// FlagTypeMacro marks a macro definition expanding in type role.
	FlagTypeMacro
	// FlagBlackbox marks macros whose expansion must conform to the declared result type.
	FlagBlackbox
	// FlagBundle marks a class whose methods are macro implementations taking the context at construction.
	FlagBundle
	FlagImplicit
	FlagErroneous
	// FlagFree marks term and type symbols that were captured by reification
	// and are not bound in the compilation run.
	FlagFree
	FlagSynthetic
)

// Strings returns a slice of textual flag labels.
func (f SymbolFlags) Strings() []string {
	if f == 0 {
		return nil
	}
	names := []struct {
		flag  SymbolFlags
		label string
	}{
		{FlagMacro, "macro"},
		{FlagTypeMacro, "type-macro"},
		{FlagBlackbox, "blackbox"},
		{FlagBundle, "bundle"},
		{FlagImplicit, "implicit"},
		{FlagErroneous, "erroneous"},
		{FlagFree, "free"},
		{FlagSynthetic, "synthetic"},
	}
	labels := make([]string, 0, 4)
	for _, n := range names {
		if f&n.flag != 0 {
			labels = append(labels, n.label)
		}
	}
	return labels
}

// Symbol describes a named entity of the compilation run.
type Symbol struct {
	Name  source.StringID
	Kind  SymbolKind
	Owner SymbolID
	Flags SymbolFlags
	Span  source.Span
	// Type is the declared type of values and params, the result type of methods.
	Type       types.TypeID
	TypeParams []SymbolID
	ParamLists [][]SymbolID
	// Parents lists the direct base types of classes and modules.
	Parents []types.TypeID
	// Overridden lists the members this method overrides, nearest first.
	Overridden []SymbolID
	// MacroImpl holds the persisted implementation binding of a macro definition.
	MacroImpl []byte
}

func (s *Symbol) Has(f SymbolFlags) bool {
	return s != nil && s.Flags&f != 0
}

// IsMacro reports whether the symbol is a macro definition.
func (s *Symbol) IsMacro() bool { return s.Has(FlagMacro) }

// IsTermMacro reports whether the symbol is a macro definition expanding into terms.
func (s *Symbol) IsTermMacro() bool { return s.Has(FlagMacro) && !s.Has(FlagTypeMacro) }
