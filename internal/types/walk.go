package types

import (
	"strconv"
	"strings"
)

// Walk visits id and every type nested in it, pre-order.
// Returning false from fn skips the components of the current type.
func (in *Interner) Walk(id TypeID, fn func(TypeID) bool) {
	tt, ok := in.Lookup(id)
	if !ok {
		return
	}
	if !fn(id) {
		return
	}
	switch tt.Kind {
	case KindRepeated, KindExpr, KindWitness:
		in.Walk(tt.Elem, fn)
	case KindNamed:
		for _, a := range in.Args(id) {
			in.Walk(a, fn)
		}
	}
}

// Exists reports whether some component of id satisfies pred.
func (in *Interner) Exists(id TypeID, pred func(TypeID) bool) bool {
	found := false
	in.Walk(id, func(t TypeID) bool {
		if found {
			return false
		}
		if pred(t) {
			found = true
			return false
		}
		return true
	})
	return found
}

// IsErroneous reports whether id is or contains the error type.
func (in *Interner) IsErroneous(id TypeID) bool {
	return in.Exists(id, func(t TypeID) bool { return in.Kind(t) == KindError })
}

// Subst replaces references to the type parameters in from by the matching
// entry of to. Extra entries on either side are ignored.
func (in *Interner) Subst(id TypeID, from []uint32, to []TypeID) TypeID {
	if len(from) == 0 || id == NoTypeID {
		return id
	}
	tt, ok := in.Lookup(id)
	if !ok {
		return id
	}
	switch tt.Kind {
	case KindParam:
		for i, sym := range from {
			if sym == tt.Sym && i < len(to) {
				return to[i]
			}
		}
		return id
	case KindRepeated, KindExpr, KindWitness:
		elem := in.Subst(tt.Elem, from, to)
		if elem == tt.Elem {
			return id
		}
		return in.Intern(Type{Kind: tt.Kind, Elem: elem})
	case KindNamed:
		args := in.Args(id)
		changed := false
		next := make([]TypeID, len(args))
		for i, a := range args {
			next[i] = in.Subst(a, from, to)
			changed = changed || next[i] != a
		}
		if !changed {
			return id
		}
		return in.Named(tt.Sym, next...)
	default:
		return id
	}
}

// Format renders id; symName resolves the names of named and parameter types.
func (in *Interner) Format(id TypeID, symName func(uint32) string) string {
	var sb strings.Builder
	in.format(&sb, id, symName)
	return sb.String()
}

func (in *Interner) format(sb *strings.Builder, id TypeID, symName func(uint32) string) {
	tt, ok := in.Lookup(id)
	if !ok {
		sb.WriteString("<none>")
		return
	}
	name := func(sym uint32) string {
		if symName == nil {
			return "#" + strconv.FormatUint(uint64(sym), 10)
		}
		return symName(sym)
	}
	switch tt.Kind {
	case KindNamed:
		sb.WriteString(name(tt.Sym))
		if args := in.Args(id); len(args) > 0 {
			sb.WriteByte('[')
			for i, a := range args {
				if i > 0 {
					sb.WriteString(", ")
				}
				in.format(sb, a, symName)
			}
			sb.WriteByte(']')
		}
	case KindParam:
		sb.WriteString(name(tt.Sym))
	case KindRepeated:
		in.format(sb, tt.Elem, symName)
		sb.WriteByte('*')
	case KindExpr, KindWitness:
		sb.WriteString(tt.Kind.String())
		sb.WriteByte('[')
		in.format(sb, tt.Elem, symName)
		sb.WriteByte(']')
	default:
		sb.WriteString(tt.Kind.String())
	}
}
