package macros

import (
	"macroexp/internal/ast"
	"macroexp/internal/diag"
	"macroexp/internal/symbols"
)

// fallback replaces a macro application whose implementation cannot be
// loaded by a call of the next overridden definition.
func (e *Engine) fallback(expandee ast.TreeID, macroDef symbols.SymbolID) Status {
	next := e.table.Symbols.NextOverridden(macroDef)
	if !next.IsValid() {
		name := e.table.Name(macroDef)
		pos := e.trees.Span(expandee)
		diag.ReportError(e.reporter, diag.MacroImplNotFound, pos, "macro implementation not found: "+name).
			WithNote(pos, "macro implementations cannot be used in the compilation run that defines them").
			Emit()
		return e.failure(expandee, diag.MacroImplNotFound)
	}
	e.logLite("falling back to: %s", e.table.FullName(next))
	return Status{Outcome: Fallback, Tree: FallbackTree(e.table, e.trees, expandee, next)}
}

// FallbackTree rebuilds the application chain of expandee so that it calls
// target. Only the innermost callee reference is replaced; the qualifier,
// type arguments and argument lists are reused as they are.
func FallbackTree(tab *symbols.Table, trees *ast.Trees, expandee ast.TreeID, target symbols.SymbolID) ast.TreeID {
	name := tab.Name(target)
	return trees.RewriteCore(expandee, func(core ast.TreeID) ast.TreeID {
		var out ast.TreeID
		if sel, ok := trees.Select(core); ok {
			out = trees.NewSelect(trees.Span(core), sel.Qual, name)
		} else if trees.Kind(core) == ast.TreeIdent {
			out = trees.NewIdent(trees.Span(core), name)
		} else {
			out = trees.Duplicate(core)
		}
		return trees.SetSym(out, target)
	})
}
