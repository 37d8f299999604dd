package ast

import (
	"macroexp/internal/source"
	"macroexp/internal/symbols"
	"macroexp/internal/types"
)

// TreeKind enumerates the different kinds of syntax trees.
type TreeKind uint8

const (
	TreeInvalid TreeKind = iota
	// TreeIdent is a bare name reference.
	TreeIdent
	// TreeSelect is qual.name.
	TreeSelect
	// TreeApply is fun(args...).
	TreeApply
	// TreeTypeApply is fun[targs...].
	TreeTypeApply
	TreeLiteral
	// TreeTypeRef is a type written in term position (a type tree).
	TreeTypeRef
	// TreeTyped is expr: tpt.
	TreeTyped
	TreeBlock
)

func (k TreeKind) String() string {
	switch k {
	case TreeIdent:
		return "Ident"
	case TreeSelect:
		return "Select"
	case TreeApply:
		return "Apply"
	case TreeTypeApply:
		return "TypeApply"
	case TreeLiteral:
		return "Literal"
	case TreeTypeRef:
		return "TypeTree"
	case TreeTyped:
		return "Typed"
	case TreeBlock:
		return "Block"
	default:
		return "Invalid"
	}
}

// TreeFlags carry per-node markers.
type TreeFlags uint8

const (
	// TreeErroneous marks a tree whose checking already failed.
	TreeErroneous TreeFlags = 1 << iota
	// TreeSynthetic marks trees produced by expansion rather than parsing.
	TreeSynthetic
)

// Tree is a node in the arena. Sym and Type are attributes filled by the
// type checker; Payload indexes the per-kind data arena.
type Tree struct {
	Kind    TreeKind
	Span    source.Span
	Sym     symbols.SymbolID
	Type    types.TypeID
	Flags   TreeFlags
	Payload PayloadID
}

type IdentData struct {
	Name source.StringID
}

type SelectData struct {
	Qual TreeID
	Name source.StringID
}

// ApplyData backs both TreeApply (value args) and TreeTypeApply (type args).
type ApplyData struct {
	Fun  TreeID
	Args []TreeID
}

type TypedData struct {
	Expr TreeID
	Tpt  TreeID
}

type BlockData struct {
	Stmts []TreeID
	Expr  TreeID
}

// ConstKind enumerates literal constant kinds.
type ConstKind uint8

const (
	ConstUnit ConstKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstString
)

// Constant is the value of a literal tree.
type Constant struct {
	Kind  ConstKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

func StringConst(s string) Constant { return Constant{Kind: ConstString, Str: s} }
func IntConst(v int64) Constant     { return Constant{Kind: ConstInt, Int: v} }
func FloatConst(v float64) Constant { return Constant{Kind: ConstFloat, Float: v} }
func BoolConst(v bool) Constant     { return Constant{Kind: ConstBool, Bool: v} }
