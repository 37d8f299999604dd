package symbols

import "macroexp/internal/types"

// BaseType views tp as an instance of clazz by following declared parents.
// It returns NoTypeID when clazz is not a base class of tp.
func (t *Table) BaseType(tp types.TypeID, clazz SymbolID) types.TypeID {
	sym, ok := t.Types.Symbol(tp)
	if !ok || t.Types.Kind(tp) != types.KindNamed {
		return types.NoTypeID
	}
	if SymbolID(sym) == clazz {
		return tp
	}
	owner := t.Get(SymbolID(sym))
	if owner == nil {
		return types.NoTypeID
	}
	from := paramRefs(owner.TypeParams)
	args := t.Types.Args(tp)
	for _, parent := range owner.Parents {
		if base := t.BaseType(t.Types.Subst(parent, from, args), clazz); base != types.NoTypeID {
			return base
		}
	}
	return types.NoTypeID
}

// AsSeenFrom rewrites tp, written inside clazz, as seen from an instance of
// type prefix: type parameters of clazz are replaced by the arguments the
// prefix supplies for clazz. Parameters the prefix does not determine stay.
func (t *Table) AsSeenFrom(tp, prefix types.TypeID, clazz SymbolID) types.TypeID {
	base := t.BaseType(prefix, clazz)
	if base == types.NoTypeID {
		return tp
	}
	owner := t.Get(clazz)
	if owner == nil {
		return tp
	}
	return t.Types.Subst(tp, paramRefs(owner.TypeParams), t.Types.Args(base))
}

func paramRefs(ids []SymbolID) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}
