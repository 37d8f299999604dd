package ast

import (
	"slices"

	"macroexp/internal/source"
)

// Foreach visits id and all of its subtrees in pre-order.
func (t *Trees) Foreach(id TreeID, fn func(TreeID)) {
	if !id.IsValid() {
		return
	}
	fn(id)
	for _, ch := range t.Children(id) {
		t.Foreach(ch, fn)
	}
}

// Exists reports whether some subtree of id (id included) satisfies pred.
func (t *Trees) Exists(id TreeID, pred func(TreeID) bool) bool {
	if !id.IsValid() {
		return false
	}
	if pred(id) {
		return true
	}
	for _, ch := range t.Children(id) {
		if t.Exists(ch, pred) {
			return true
		}
	}
	return false
}

// IsErroneous reports whether id or any of its subtrees is flagged erroneous.
func (t *Trees) IsErroneous(id TreeID) bool {
	return t.Exists(id, func(x TreeID) bool {
		tr := t.Get(x)
		return tr != nil && tr.Flags&TreeErroneous != 0
	})
}

// WithChildren returns id unchanged when children equal the current ones,
// otherwise a fresh copy of the node with the given children. Attributes
// (span, symbol, type, flags) are copied.
func (t *Trees) WithChildren(id TreeID, children []TreeID) TreeID {
	if slices.Equal(t.Children(id), children) {
		return id
	}
	tr := *t.Get(id)
	var out TreeID
	switch tr.Kind {
	case TreeSelect:
		d, _ := t.Select(id)
		payload := t.Selects.Allocate(SelectData{Qual: children[0], Name: d.Name})
		out = t.new(tr.Kind, tr.Span, payload)
	case TreeApply, TreeTypeApply:
		payload := t.Applies.Allocate(ApplyData{Fun: children[0], Args: slices.Clone(children[1:])})
		out = t.new(tr.Kind, tr.Span, payload)
	case TreeTyped:
		payload := t.Typeds.Allocate(TypedData{Expr: children[0], Tpt: children[1]})
		out = t.new(tr.Kind, tr.Span, payload)
	case TreeBlock:
		n := len(children) - 1
		payload := t.Blocks.Allocate(BlockData{Stmts: slices.Clone(children[:n]), Expr: children[n]})
		out = t.new(tr.Kind, tr.Span, payload)
	default:
		return id
	}
	nt := t.Get(out)
	nt.Sym, nt.Type, nt.Flags = tr.Sym, tr.Type, tr.Flags
	return out
}

// Transform rebuilds id bottom-up. Children are transformed first; fn then
// receives the original node and its (possibly rebuilt) counterpart and
// returns the replacement. Unchanged subtrees are shared, not copied.
func (t *Trees) Transform(id TreeID, fn func(orig, cur TreeID) TreeID) TreeID {
	if !id.IsValid() {
		return id
	}
	children := t.Children(id)
	if len(children) > 0 {
		next := make([]TreeID, len(children))
		for i, ch := range children {
			next[i] = t.Transform(ch, fn)
		}
		return fn(id, t.WithChildren(id, next))
	}
	return fn(id, id)
}

// Duplicate deep-copies id keeping positions and attributes.
func (t *Trees) Duplicate(id TreeID) TreeID {
	if !id.IsValid() {
		return id
	}
	tr := *t.Get(id)
	var out TreeID
	switch tr.Kind {
	case TreeIdent:
		d, _ := t.Ident(id)
		out = t.new(tr.Kind, tr.Span, t.Idents.Allocate(*d))
	case TreeLiteral:
		c, _ := t.Literal(id)
		out = t.new(tr.Kind, tr.Span, t.Literals.Allocate(*c))
	case TreeTypeRef:
		out = t.new(tr.Kind, tr.Span, 0)
	default:
		children := t.Children(id)
		dup := make([]TreeID, len(children))
		for i, ch := range children {
			dup[i] = t.Duplicate(ch)
		}
		return t.WithChildren(id, dup)
	}
	nt := t.Get(out)
	nt.Sym, nt.Type, nt.Flags = tr.Sym, tr.Type, tr.Flags
	return out
}

// Equal compares two trees structurally. Positions are ignored.
func (t *Trees) Equal(a, b TreeID) bool {
	if a == b {
		return true
	}
	ta, tb := t.Get(a), t.Get(b)
	if ta == nil || tb == nil {
		return false
	}
	if ta.Kind != tb.Kind || ta.Sym != tb.Sym || ta.Type != tb.Type {
		return false
	}
	switch ta.Kind {
	case TreeIdent, TreeSelect:
		if t.Name(a) != t.Name(b) {
			return false
		}
	case TreeLiteral:
		ca, _ := t.Literal(a)
		cb, _ := t.Literal(b)
		if *ca != *cb {
			return false
		}
	}
	ka, kb := t.Children(a), t.Children(b)
	if len(ka) != len(kb) {
		return false
	}
	for i := range ka {
		if !t.Equal(ka[i], kb[i]) {
			return false
		}
	}
	return true
}

// SetDefaultSpan assigns span to every node of id that has no valid position.
func (t *Trees) SetDefaultSpan(id TreeID, span source.Span) {
	t.Foreach(id, func(x TreeID) {
		if tr := t.Get(x); tr != nil && !tr.Span.IsValid() {
			tr.Span = span
		}
	})
}

// MarkSynthetic flags every node of id as produced by expansion.
func (t *Trees) MarkSynthetic(id TreeID) {
	t.Foreach(id, func(x TreeID) {
		t.Get(x).Flags |= TreeSynthetic
	})
}
