package macros

import (
	"fmt"

	"macroexp/internal/ast"
	"macroexp/internal/diag"
	"macroexp/internal/symbols"
	"macroexp/internal/types"
)

// Typer is the type checker the engine runs inside. Typecheck returns the
// checked tree (error-typed on failure); its error is reserved for control
// signals and internal errors that must unwind through expansion.
type Typer interface {
	Typecheck(tree ast.TreeID, mode Mode, pt types.TypeID) (ast.TreeID, error)
	MacrosEnabled() bool
}

// Instantiator is implemented by type checkers that can resolve pending
// type parameters of a delayed call site outside polymorphic mode.
type Instantiator interface {
	// Instantiate infers the undetermined parameters of a blackbox call.
	Instantiate(tree ast.TreeID, mode Mode, pt types.TypeID) (ast.TreeID, error)
	// InferInstance infers the undetermined parameters of tree against pt,
	// reporting them through Tracker.ParametersResolved.
	InferInstance(tree ast.TreeID, pt types.TypeID) error
}

// Suppress disables expansion of tree.
func (e *Engine) Suppress(tree ast.TreeID) { e.suppressed[tree] = struct{}{} }

func (e *Engine) Unsuppress(tree ast.TreeID) { delete(e.suppressed, tree) }

func (e *Engine) IsSuppressed(tree ast.TreeID) bool {
	if e.opts.NoExpand {
		return true
	}
	_, ok := e.suppressed[tree]
	return ok
}

// ExpansionOf returns the tree expandee expanded into.
func (e *Engine) ExpansionOf(expandee ast.TreeID) (ast.TreeID, bool) {
	t, ok := e.expansions[expandee]
	return t, ok
}

// ExpandeeOf returns the call site an expansion came from.
func (e *Engine) ExpandeeOf(expanded ast.TreeID) (ast.TreeID, bool) {
	t, ok := e.expandees[expanded]
	return t, ok
}

// Expand expands the macro application expandee found by the checker in
// mode against the expected type pt and returns the tree that replaces it.
func (e *Engine) Expand(expandee ast.TreeID, mode Mode, pt types.TypeID) (ast.TreeID, error) {
	if e.IsSuppressed(expandee) || mode&ModeFun != 0 {
		return expandee, nil
	}
	st, err := e.Expand1(expandee)
	if err != nil {
		return expandee, err
	}
	switch st.Outcome {
	case Success:
		if !e.allowedExpansion(mode, st.Tree) {
			diag.ReportError(e.reporter, diag.MacroInvalidExpansionShape, e.trees.Span(expandee),
				fmt.Sprintf("macro in %s role can only expand into %s", roleName(mode), allowedName(mode))).Emit()
			return e.onFailure(expandee), nil
		}
		expanded := e.trees.Duplicate(st.Tree)
		out, err := e.onSuccess(expandee, expanded, mode, pt)
		if err != nil {
			return expandee, err
		}
		e.link(expandee, out)
		return out, nil
	case Fallback:
		return e.typecheck(st.Tree, mode, pt)
	case Delayed:
		return e.onDelayed(expandee, st.Tree, mode, pt)
	case Skipped:
		return st.Tree, nil
	default:
		return e.onFailure(expandee), nil
	}
}

func (e *Engine) link(expandee, expanded ast.TreeID) {
	if _, ok := e.expandees[expanded]; ok {
		return
	}
	e.expansions[expandee] = expanded
	e.expandees[expanded] = expandee
}

func (e *Engine) typecheck(tree ast.TreeID, mode Mode, pt types.TypeID) (ast.TreeID, error) {
	if e.typer == nil {
		return tree, nil
	}
	if tr := e.trees.Get(tree); tr != nil && e.table.Types.Kind(tr.Type) == types.KindError {
		return tree, nil
	}
	return e.typer.Typecheck(tree, mode, pt)
}

// onSuccess checks the expansion. Blackbox expansions are checked as
// (expanded: R) where R is the result type of the macro; whitebox ones are
// checked without expectation first so they may refine it.
func (e *Engine) onSuccess(expandee, expanded ast.TreeID, mode Mode, pt types.TypeID) (ast.TreeID, error) {
	macroDef := e.trees.Sym(e.trees.DissectApplied(expandee).Core)
	if e.table.Get(macroDef).Has(symbols.FlagBlackbox) && mode&ModeType == 0 {
		pos := e.trees.Span(expandee).Focus()
		typed := e.trees.NewTyped(pos, expanded, e.trees.NewTypeRef(pos, e.innerPt(expandee, macroDef)))
		return e.typecheck(typed, mode, pt)
	}
	first, err := e.typecheck(expanded, mode, e.table.Types.Builtins().Wildcard)
	if err != nil {
		return first, err
	}
	return e.typecheck(first, mode, pt)
}

// innerPt is the type the call site promises: its own type when already
// known, the declared result type of the macro otherwise.
func (e *Engine) innerPt(expandee ast.TreeID, macroDef symbols.SymbolID) types.TypeID {
	if tr := e.trees.Get(expandee); tr != nil && tr.Type != types.NoTypeID && !e.table.Types.IsErroneous(tr.Type) {
		return tr.Type
	}
	if sym := e.table.Get(macroDef); sym != nil && sym.Type != types.NoTypeID {
		return sym.Type
	}
	return e.table.Types.Builtins().Any
}

// onDelayed lets the checker infer the missing type arguments of a delayed
// site when it cannot stay polymorphic.
func (e *Engine) onDelayed(expandee, delayed ast.TreeID, mode Mode, pt types.TypeID) (ast.TreeID, error) {
	inst, ok := e.typer.(Instantiator)
	if !ok || mode&ModePoly != 0 || len(e.tracker.Undetermined()) == 0 {
		return delayed, nil
	}
	macroDef := e.trees.Sym(e.trees.DissectApplied(expandee).Core)
	if e.table.Get(macroDef).Has(symbols.FlagBlackbox) {
		return inst.Instantiate(delayed, mode, pt)
	}
	e.tracker.Force(delayed)
	if err := inst.InferInstance(delayed, pt); err != nil {
		return delayed, err
	}
	return e.Expand(delayed, mode, pt)
}

func (e *Engine) onFailure(expandee ast.TreeID) ast.TreeID {
	e.trees.MarkErroneous(expandee)
	e.trees.SetType(expandee, e.table.Types.Builtins().Error)
	return expandee
}

func (e *Engine) allowedExpansion(mode Mode, tree ast.TreeID) bool {
	switch {
	case mode&ModeType != 0:
		return e.trees.IsType(tree)
	case mode&ModePattern != 0:
		switch e.trees.Kind(tree) {
		case ast.TreeIdent, ast.TreeSelect, ast.TreeApply, ast.TreeLiteral, ast.TreeTyped:
			return true
		}
		return false
	default:
		return e.trees.IsTerm(tree)
	}
}

func roleName(mode Mode) string {
	switch {
	case mode&ModeType != 0:
		return "type"
	case mode&ModePattern != 0:
		return "pattern"
	default:
		return "term"
	}
}

func allowedName(mode Mode) string {
	switch {
	case mode&ModeType != 0:
		return "type trees"
	case mode&ModePattern != 0:
		return "identifiers, selections, applications, literals or typed patterns"
	default:
		return "term trees"
	}
}
