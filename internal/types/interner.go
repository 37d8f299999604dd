package types

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for the primitive types.
type Builtins struct {
	Error    TypeID
	Nothing  TypeID
	Any      TypeID
	Unit     TypeID
	Bool     TypeID
	Int      TypeID
	Float    TypeID
	String   TypeID
	Wildcard TypeID
	Tree     TypeID
	Context  TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
type Interner struct {
	types    []Type
	index    map[typeKey]TypeID
	args     [][]TypeID
	builtins Builtins
}

type typeKey struct {
	Kind Kind
	Elem TypeID
	Sym  uint32
	Args string
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		types: []Type{{Kind: KindInvalid}}, // 0 reserved for NoTypeID
		index: make(map[typeKey]TypeID, 64),
		args:  [][]TypeID{nil},
	}
	in.builtins = Builtins{
		Error:    in.Intern(Type{Kind: KindError}),
		Nothing:  in.Intern(Type{Kind: KindNothing}),
		Any:      in.Intern(Type{Kind: KindAny}),
		Unit:     in.Intern(Type{Kind: KindUnit}),
		Bool:     in.Intern(Type{Kind: KindBool}),
		Int:      in.Intern(Type{Kind: KindInt}),
		Float:    in.Intern(Type{Kind: KindFloat}),
		String:   in.Intern(Type{Kind: KindString}),
		Wildcard: in.Intern(Type{Kind: KindWildcard}),
		Tree:     in.Intern(Type{Kind: KindTree}),
		Context:  in.Intern(Type{Kind: KindContext}),
	}
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Builtin returns the interned id of a builtin kind.
func (in *Interner) Builtin(kind Kind) TypeID {
	if !kind.IsBuiltin() {
		return NoTypeID
	}
	return in.Intern(Type{Kind: kind})
}

// Intern ensures the provided descriptor has a stable TypeID.
// Named descriptors must be built through Named.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := in.keyOf(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	value, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("type interner overflow: %w", err))
	}
	id := TypeID(value)
	in.types = append(in.types, t)
	in.index[key] = id
	return id
}

func (in *Interner) keyOf(t Type) typeKey {
	key := typeKey{Kind: t.Kind, Elem: t.Elem, Sym: t.Sym}
	if t.Kind == KindNamed && int(t.Args) < len(in.args) {
		key.Args = argsKey(in.args[t.Args])
	}
	return key
}

func argsKey(args []TypeID) string {
	if len(args) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(a), 10))
	}
	return sb.String()
}

// Named interns the class/module type sym[args...].
func (in *Interner) Named(sym uint32, args ...TypeID) TypeID {
	key := typeKey{Kind: KindNamed, Sym: sym, Args: argsKey(args)}
	if id, ok := in.index[key]; ok {
		return id
	}
	slot, err := safecast.Conv[uint32](len(in.args))
	if err != nil {
		panic(fmt.Errorf("type args overflow: %w", err))
	}
	in.args = append(in.args, append([]TypeID(nil), args...))
	return in.Intern(Type{Kind: KindNamed, Sym: sym, Args: slot})
}

// Param interns a reference to the type parameter symbol sym.
func (in *Interner) Param(sym uint32) TypeID {
	return in.Intern(Type{Kind: KindParam, Sym: sym})
}

// Repeated interns elem* (variadic parameter type).
func (in *Interner) Repeated(elem TypeID) TypeID {
	return in.Intern(Type{Kind: KindRepeated, Elem: elem})
}

// Expr interns the lifted expression handle Expr[elem].
func (in *Interner) Expr(elem TypeID) TypeID {
	return in.Intern(Type{Kind: KindExpr, Elem: elem})
}

// Witness interns the type witness Witness[elem].
func (in *Interner) Witness(elem TypeID) TypeID {
	return in.Intern(Type{Kind: KindWitness, Elem: elem})
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Kind is a shortcut for Lookup(id).Kind; invalid ids yield KindInvalid.
func (in *Interner) Kind(id TypeID) Kind {
	tt, _ := in.Lookup(id)
	return tt.Kind
}

// Args returns the type arguments of a named type (read-only).
func (in *Interner) Args(id TypeID) []TypeID {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindNamed || int(tt.Args) >= len(in.args) {
		return nil
	}
	return in.args[tt.Args]
}

// Symbol returns the symbol carried by named and parameter types.
func (in *Interner) Symbol(id TypeID) (uint32, bool) {
	tt, ok := in.Lookup(id)
	if !ok || (tt.Kind != KindNamed && tt.Kind != KindParam) {
		return 0, false
	}
	return tt.Sym, true
}
