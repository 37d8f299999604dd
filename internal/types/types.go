package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindError
	KindNothing
	KindAny
	KindUnit
	KindBool
	KindInt
	KindFloat
	KindString
	// KindWildcard is the "no expectation" prototype.
	KindWildcard
	// KindNamed is a class or module type applied to arguments.
	KindNamed
	// KindParam is a reference to a type parameter.
	KindParam
	// KindRepeated is the element type of a variadic parameter (T*).
	KindRepeated
	// KindExpr is the lifted expression handle Expr[T].
	KindExpr
	// KindWitness is the type witness Witness[T] used as evidence.
	KindWitness
	// KindTree is the raw, untyped syntax tree handle.
	KindTree
	// KindContext is the type of the macro invocation context.
	KindContext
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindError:
		return "<error>"
	case KindNothing:
		return "Nothing"
	case KindAny:
		return "Any"
	case KindUnit:
		return "Unit"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindWildcard:
		return "?"
	case KindNamed:
		return "named"
	case KindParam:
		return "param"
	case KindRepeated:
		return "repeated"
	case KindExpr:
		return "Expr"
	case KindWitness:
		return "Witness"
	case KindTree:
		return "Tree"
	case KindContext:
		return "Context"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// IsBuiltin reports whether the kind needs no symbol or element to be complete.
func (k Kind) IsBuiltin() bool {
	switch k {
	case KindError, KindNothing, KindAny, KindUnit, KindBool, KindInt, KindFloat,
		KindString, KindWildcard, KindTree, KindContext:
		return true
	}
	return false
}

// Type is a compact descriptor for any supported type.
//
// Sym holds a symbols.SymbolID for KindNamed and KindParam. It is kept as a
// raw number so the symbol table can depend on this package.
type Type struct {
	Kind Kind
	Elem TypeID // Repeated, Expr, Witness
	Sym  uint32 // Named, Param
	Args uint32 // slot in Interner.args for Named
}

// BuiltinByName maps the persisted spelling of builtin kinds back to a kind.
func BuiltinByName(name string) (Kind, bool) {
	for k := KindError; k <= KindContext; k++ {
		if k.IsBuiltin() && k.String() == name {
			return k, true
		}
	}
	return KindInvalid, false
}
