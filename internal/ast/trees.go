package ast

import (
	"slices"

	"macroexp/internal/source"
	"macroexp/internal/symbols"
	"macroexp/internal/types"
)

// Trees manages allocation of syntax trees for one compilation run.
// Nodes are never freed; rewrites allocate new nodes and leave the
// originals untouched.
type Trees struct {
	Strings  *source.Interner
	Arena    *Arena[Tree]
	Idents   *Arena[IdentData]
	Selects  *Arena[SelectData]
	Applies  *Arena[ApplyData]
	Literals *Arena[Constant]
	Typeds   *Arena[TypedData]
	Blocks   *Arena[BlockData]
}

// NewTrees creates an empty tree arena. If capHint is 0, 1<<8 is used.
func NewTrees(strs *source.Interner, capHint uint) *Trees {
	if capHint == 0 {
		capHint = 1 << 8
	}
	if strs == nil {
		strs = source.NewInterner()
	}
	return &Trees{
		Strings:  strs,
		Arena:    NewArena[Tree](capHint),
		Idents:   NewArena[IdentData](capHint),
		Selects:  NewArena[SelectData](capHint),
		Applies:  NewArena[ApplyData](capHint),
		Literals: NewArena[Constant](capHint),
		Typeds:   NewArena[TypedData](capHint / 4),
		Blocks:   NewArena[BlockData](capHint / 4),
	}
}

func (t *Trees) new(kind TreeKind, span source.Span, payload uint32) TreeID {
	return TreeID(t.Arena.Allocate(Tree{
		Kind:    kind,
		Span:    span,
		Payload: PayloadID(payload),
	}))
}

// Get returns the tree with the given ID or nil.
func (t *Trees) Get(id TreeID) *Tree {
	return t.Arena.Get(uint32(id))
}

// Kind returns the kind of id, TreeInvalid for unknown ids.
func (t *Trees) Kind(id TreeID) TreeKind {
	if tr := t.Get(id); tr != nil {
		return tr.Kind
	}
	return TreeInvalid
}

// NewIdent creates a name reference.
func (t *Trees) NewIdent(span source.Span, name string) TreeID {
	payload := t.Idents.Allocate(IdentData{Name: t.Strings.Intern(name)})
	return t.new(TreeIdent, span, payload)
}

// NewSelect creates qual.name.
func (t *Trees) NewSelect(span source.Span, qual TreeID, name string) TreeID {
	payload := t.Selects.Allocate(SelectData{Qual: qual, Name: t.Strings.Intern(name)})
	return t.new(TreeSelect, span, payload)
}

// NewApply creates fun(args...).
func (t *Trees) NewApply(span source.Span, fun TreeID, args ...TreeID) TreeID {
	payload := t.Applies.Allocate(ApplyData{Fun: fun, Args: slices.Clone(args)})
	return t.new(TreeApply, span, payload)
}

// NewTypeApply creates fun[targs...].
func (t *Trees) NewTypeApply(span source.Span, fun TreeID, targs ...TreeID) TreeID {
	payload := t.Applies.Allocate(ApplyData{Fun: fun, Args: slices.Clone(targs)})
	return t.new(TreeTypeApply, span, payload)
}

// NewLiteral creates a literal constant.
func (t *Trees) NewLiteral(span source.Span, value Constant) TreeID {
	payload := t.Literals.Allocate(value)
	return t.new(TreeLiteral, span, payload)
}

// NewTypeRef creates a type tree standing for tpe.
func (t *Trees) NewTypeRef(span source.Span, tpe types.TypeID) TreeID {
	id := t.new(TreeTypeRef, span, 0)
	t.Get(id).Type = tpe
	return id
}

// NewTyped creates the ascription expr: tpt.
func (t *Trees) NewTyped(span source.Span, expr, tpt TreeID) TreeID {
	payload := t.Typeds.Allocate(TypedData{Expr: expr, Tpt: tpt})
	return t.new(TreeTyped, span, payload)
}

// NewBlock creates { stmts; expr }.
func (t *Trees) NewBlock(span source.Span, stmts []TreeID, expr TreeID) TreeID {
	payload := t.Blocks.Allocate(BlockData{Stmts: slices.Clone(stmts), Expr: expr})
	return t.new(TreeBlock, span, payload)
}

// Ident returns the identifier data for the given tree.
func (t *Trees) Ident(id TreeID) (*IdentData, bool) {
	tr := t.Get(id)
	if tr == nil || tr.Kind != TreeIdent {
		return nil, false
	}
	return t.Idents.Get(uint32(tr.Payload)), true
}

// Select returns the selection data for the given tree.
func (t *Trees) Select(id TreeID) (*SelectData, bool) {
	tr := t.Get(id)
	if tr == nil || tr.Kind != TreeSelect {
		return nil, false
	}
	return t.Selects.Get(uint32(tr.Payload)), true
}

// Apply returns the application data of a TreeApply or TreeTypeApply.
func (t *Trees) Apply(id TreeID) (*ApplyData, bool) {
	tr := t.Get(id)
	if tr == nil || (tr.Kind != TreeApply && tr.Kind != TreeTypeApply) {
		return nil, false
	}
	return t.Applies.Get(uint32(tr.Payload)), true
}

// Literal returns the constant of a literal tree.
func (t *Trees) Literal(id TreeID) (*Constant, bool) {
	tr := t.Get(id)
	if tr == nil || tr.Kind != TreeLiteral {
		return nil, false
	}
	return t.Literals.Get(uint32(tr.Payload)), true
}

// Typed returns the ascription data.
func (t *Trees) Typed(id TreeID) (*TypedData, bool) {
	tr := t.Get(id)
	if tr == nil || tr.Kind != TreeTyped {
		return nil, false
	}
	return t.Typeds.Get(uint32(tr.Payload)), true
}

// Block returns the block data.
func (t *Trees) Block(id TreeID) (*BlockData, bool) {
	tr := t.Get(id)
	if tr == nil || tr.Kind != TreeBlock {
		return nil, false
	}
	return t.Blocks.Get(uint32(tr.Payload)), true
}

// Name returns the name of an Ident or Select tree, "" otherwise.
func (t *Trees) Name(id TreeID) string {
	if d, ok := t.Ident(id); ok {
		return t.Strings.MustLookup(d.Name)
	}
	if d, ok := t.Select(id); ok {
		return t.Strings.MustLookup(d.Name)
	}
	return ""
}

// SetSym attaches a symbol to the tree.
func (t *Trees) SetSym(id TreeID, sym symbols.SymbolID) TreeID {
	if tr := t.Get(id); tr != nil {
		tr.Sym = sym
	}
	return id
}

// SetType attaches a type to the tree.
func (t *Trees) SetType(id TreeID, tpe types.TypeID) TreeID {
	if tr := t.Get(id); tr != nil {
		tr.Type = tpe
	}
	return id
}

// MarkErroneous flags the tree as failed.
func (t *Trees) MarkErroneous(id TreeID) TreeID {
	if tr := t.Get(id); tr != nil {
		tr.Flags |= TreeErroneous
	}
	return id
}

// Sym returns the symbol attribute of id.
func (t *Trees) Sym(id TreeID) symbols.SymbolID {
	if tr := t.Get(id); tr != nil {
		return tr.Sym
	}
	return symbols.NoSymbolID
}

// Span returns the position of id.
func (t *Trees) Span(id TreeID) source.Span {
	if tr := t.Get(id); tr != nil {
		return tr.Span
	}
	return source.NoSpan
}

// IsType reports whether the tree denotes a type.
func (t *Trees) IsType(id TreeID) bool {
	return t.Kind(id) == TreeTypeRef
}

// IsTerm reports whether the tree denotes a term.
func (t *Trees) IsTerm(id TreeID) bool {
	k := t.Kind(id)
	return k != TreeInvalid && k != TreeTypeRef
}

// Children returns the direct subtrees of id in source order.
func (t *Trees) Children(id TreeID) []TreeID {
	tr := t.Get(id)
	if tr == nil {
		return nil
	}
	switch tr.Kind {
	case TreeSelect:
		d, _ := t.Select(id)
		return []TreeID{d.Qual}
	case TreeApply, TreeTypeApply:
		d, _ := t.Apply(id)
		out := make([]TreeID, 0, len(d.Args)+1)
		out = append(out, d.Fun)
		return append(out, d.Args...)
	case TreeTyped:
		d, _ := t.Typed(id)
		return []TreeID{d.Expr, d.Tpt}
	case TreeBlock:
		d, _ := t.Block(id)
		out := slices.Clone(d.Stmts)
		return append(out, d.Expr)
	}
	return nil
}
