package macros

import (
	"strconv"

	"macroexp/internal/ast"
	"macroexp/internal/trace"
)

// ExpandAll re-expands every delayed call site of tree that no longer
// waits for type parameters. Sites are visited innermost first, so
// expanding an inner site may discharge the last dependency of the site
// enclosing it before that one is looked at.
func (e *Engine) ExpandAll(tree ast.TreeID) (ast.TreeID, error) {
	span := trace.Begin(e.tracer, trace.ScopePass, "expand-all", e.parentSpan())
	expanded := 0
	var firstErr error
	out := e.trees.Transform(tree, func(orig, cur ast.TreeID) ast.TreeID {
		if firstErr != nil || !e.tracker.IsDelayed(orig) {
			return cur
		}
		if len(e.tracker.Dependencies(orig)) > 0 || e.trees.IsErroneous(cur) {
			return cur
		}
		e.tracker.Remove(orig)
		if rec, ok := e.records[orig]; ok && orig != cur {
			delete(e.records, orig)
			rec.context.Expandee = cur
			e.records[cur] = rec
		}
		res, err := e.Expand(cur, ModeExpr, e.table.Types.Builtins().Wildcard)
		if err != nil {
			firstErr = err
			return cur
		}
		expanded++
		return res
	})
	span.WithExtra("expanded", strconv.Itoa(expanded)).End("")
	return out, firstErr
}

// ExpandPending runs ExpandAll over tree when some delayed site became
// eligible since the last sweep.
func (e *Engine) ExpandPending(tree ast.TreeID) (ast.TreeID, error) {
	if !e.tracker.Pending() {
		return tree, nil
	}
	e.tracker.ClearPending()
	out, err := e.ExpandAll(tree)
	e.tracker.refreshPending()
	return out, err
}
