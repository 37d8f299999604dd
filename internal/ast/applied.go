package ast

import "slices"

// Applied is an application chain split into its parts:
//
//	core[targs...](argss[0]...)(argss[1]...)
//
// Callee is core with its type application, if any.
type Applied struct {
	Tree   TreeID
	Callee TreeID
	Core   TreeID
	Targs  []TreeID
	Argss  [][]TreeID
}

// Prefix returns the qualifier of a Select core, or NoTreeID.
func (a Applied) Prefix(t *Trees) TreeID {
	if d, ok := t.Select(a.Core); ok {
		return d.Qual
	}
	return NoTreeID
}

// DissectApplied peels value applications then at most one type application.
func (t *Trees) DissectApplied(id TreeID) Applied {
	out := Applied{Tree: id}
	cur := id
	for t.Kind(cur) == TreeApply {
		d, _ := t.Apply(cur)
		out.Argss = append(out.Argss, slices.Clone(d.Args))
		cur = d.Fun
	}
	slices.Reverse(out.Argss)
	out.Callee = cur
	if t.Kind(cur) == TreeTypeApply {
		d, _ := t.Apply(cur)
		out.Targs = slices.Clone(d.Args)
		cur = d.Fun
	}
	out.Core = cur
	return out
}

// RewriteCore rebuilds the application chain of id with the innermost
// callee replaced by fn(core). Argument and type-argument trees are reused
// as they are; only the spine is copied.
func (t *Trees) RewriteCore(id TreeID, fn func(core TreeID) TreeID) TreeID {
	switch t.Kind(id) {
	case TreeApply, TreeTypeApply:
		d, _ := t.Apply(id)
		fun := t.RewriteCore(d.Fun, fn)
		children := make([]TreeID, 0, len(d.Args)+1)
		children = append(children, fun)
		children = append(children, d.Args...)
		return t.WithChildren(id, children)
	default:
		return fn(id)
	}
}
