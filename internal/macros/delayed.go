package macros

import (
	"maps"
	"slices"

	"macroexp/internal/ast"
	"macroexp/internal/symbols"
	"macroexp/internal/types"
)

type paramSet map[symbols.SymbolID]struct{}

// Tracker records call sites whose expansion waits for type parameters
// that type inference has not determined yet.
type Tracker struct {
	table *symbols.Table
	trees *ast.Trees

	undet   paramSet
	delayed map[ast.TreeID]paramSet
	forced  map[ast.TreeID]struct{}
	// deps caches calculate per site until the set of undetermined
	// parameters changes
	deps    map[ast.TreeID]paramSet
	pending bool
}

// NewTracker creates an empty tracker for one compilation run.
func NewTracker(table *symbols.Table, trees *ast.Trees) *Tracker {
	return &Tracker{
		table:   table,
		trees:   trees,
		undet:   make(paramSet),
		delayed: make(map[ast.TreeID]paramSet),
		forced:  make(map[ast.TreeID]struct{}),
		deps:    make(map[ast.TreeID]paramSet),
	}
}

// Dependencies returns the undetermined type parameters site refers to,
// through the symbols and types of any of its subtrees. The answer for a
// delayed site is its recorded set; forced sites have none.
func (t *Tracker) Dependencies(site ast.TreeID) []symbols.SymbolID {
	if _, ok := t.forced[site]; ok {
		return nil
	}
	if deps, ok := t.delayed[site]; ok {
		return sortedParams(deps)
	}
	deps, ok := t.deps[site]
	if !ok {
		deps = t.calculate(site)
		t.deps[site] = deps
	}
	return sortedParams(deps)
}

func (t *Tracker) calculate(site ast.TreeID) paramSet {
	found := make(paramSet)
	if len(t.undet) == 0 {
		return found
	}
	visit := func(sym symbols.SymbolID) {
		if _, ok := t.undet[sym]; ok {
			found[sym] = struct{}{}
		}
	}
	t.trees.Foreach(site, func(id ast.TreeID) {
		tr := t.trees.Get(id)
		if tr.Sym.IsValid() {
			visit(tr.Sym)
		}
		if tr.Type == types.NoTypeID {
			return
		}
		t.table.Types.Walk(tr.Type, func(tp types.TypeID) bool {
			if sym, ok := t.table.Types.Symbol(tp); ok {
				visit(symbols.SymbolID(sym))
			}
			return true
		})
	})
	return found
}

// Record marks site as delayed on deps.
func (t *Tracker) Record(site ast.TreeID, deps []symbols.SymbolID) {
	set := make(paramSet, len(deps))
	for _, d := range deps {
		set[d] = struct{}{}
	}
	t.delayed[site] = set
}

func (t *Tracker) IsDelayed(site ast.TreeID) bool {
	_, ok := t.delayed[site]
	return ok
}

// Eligible reports whether site is delayed and no longer waits for anything.
func (t *Tracker) Eligible(site ast.TreeID) bool {
	deps, ok := t.delayed[site]
	return ok && len(deps) == 0
}

func (t *Tracker) Remove(site ast.TreeID) {
	delete(t.delayed, site)
}

// Rekey moves the delay record of from to to, after a rewrite copied the site.
func (t *Tracker) Rekey(from, to ast.TreeID) {
	if from == to {
		return
	}
	if deps, ok := t.delayed[from]; ok {
		delete(t.delayed, from)
		t.delayed[to] = deps
	}
	if _, ok := t.forced[from]; ok {
		t.forced[to] = struct{}{}
	}
}

// Delayed lists the delayed call sites in allocation order.
func (t *Tracker) Delayed() []ast.TreeID {
	return slices.Sorted(maps.Keys(t.delayed))
}

// ParametersIntroduced is called when inference creates fresh type variables.
func (t *Tracker) ParametersIntroduced(ids ...symbols.SymbolID) {
	for _, id := range ids {
		t.undet[id] = struct{}{}
	}
	clear(t.deps)
}

// ParametersResolved is called when inference determines ids (as inferred).
// Delayed sites drop the resolved ids; any site left with no dependency
// raises the pending flag.
func (t *Tracker) ParametersResolved(ids []symbols.SymbolID, inferred []types.TypeID) {
	for _, id := range ids {
		delete(t.undet, id)
	}
	clear(t.deps)
	for _, deps := range t.delayed {
		for _, id := range ids {
			delete(deps, id)
		}
		if len(deps) == 0 {
			t.pending = true
		}
	}
}

func (t *Tracker) IsUndetermined(id symbols.SymbolID) bool {
	_, ok := t.undet[id]
	return ok
}

// Undetermined lists the live undetermined parameters.
func (t *Tracker) Undetermined() []symbols.SymbolID {
	return sortedParams(t.undet)
}

// Pending reports whether some delayed site became eligible since the last
// ClearPending.
func (t *Tracker) Pending() bool { return t.pending }

func (t *Tracker) ClearPending() { t.pending = false }

// refreshPending recomputes the pending flag from the remaining sites.
func (t *Tracker) refreshPending() {
	t.pending = false
	for _, deps := range t.delayed {
		if len(deps) == 0 {
			t.pending = true
			return
		}
	}
}

// Force makes site independent of undetermined parameters from now on.
func (t *Tracker) Force(site ast.TreeID) {
	t.forced[site] = struct{}{}
}

// Reset drops every record.
func (t *Tracker) Reset() {
	clear(t.undet)
	clear(t.delayed)
	clear(t.forced)
	clear(t.deps)
	t.pending = false
}

func sortedParams(set paramSet) []symbols.SymbolID {
	if len(set) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(set))
}
