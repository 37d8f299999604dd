package macros

import (
	"fmt"
	"slices"
	"testing"

	"macroexp/internal/ast"
	"macroexp/internal/diag"
	"macroexp/internal/source"
	"macroexp/internal/symbols"
	"macroexp/internal/types"
)

// fixture is a small universe: package lib with a module Impls holding
// implementations and a module Macros holding macro definitions.
type fixture struct {
	t      *testing.T
	u      *symbols.Universe
	tab    *symbols.Table
	trees  *ast.Trees
	bag    *diag.Bag
	reg    *Registry
	ft     *FastTrack
	typer  *testTyper
	engine *Engine

	pkg    symbols.SymbolID
	impls  symbols.SymbolID
	macros symbols.SymbolID

	calls []string
	pos   uint32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	u := symbols.NewUniverse()
	f := &fixture{
		t:     t,
		u:     u,
		tab:   u.Table,
		trees: ast.NewTrees(u.Strings, 0),
		bag:   diag.NewBag(0),
		reg:   NewRegistry(),
		ft:    NewFastTrack(),
	}
	f.typer = &testTyper{f: f, enabled: true}
	f.engine = NewEngine(f.tab, f.trees, Options{
		Typer:     f.typer,
		Invoker:   f.reg,
		FastTrack: f.ft,
		Reporter:  diag.BagReporter{Bag: f.bag},
	})
	f.pkg = f.tab.NewPackage(f.tab.Root, "lib")
	f.impls = f.tab.NewModule(f.pkg, "Impls")
	f.macros = f.tab.NewModule(f.pkg, "Macros")
	return f
}

func (f *fixture) b() types.Builtins { return f.tab.Types.Builtins() }

// span hands out distinct positions in file 1.
func (f *fixture) span() source.Span {
	f.pos += 10
	return source.Span{File: 1, Start: f.pos, End: f.pos + 5}
}

// method declares owner.name[tparams] with one parameter list per entry
// returned by lists, which receives the types of the new type parameters.
func (f *fixture) method(owner symbols.SymbolID, name string, tparams []string, lists func(tps []types.TypeID) [][]types.TypeID) symbols.SymbolID {
	m := f.tab.NewMethod(owner, name, f.b().Any)
	ids := f.tab.AddTypeParams(m, tparams...)
	refs := make([]types.TypeID, len(ids))
	for i, id := range ids {
		refs[i] = f.tab.ParamType(id)
	}
	if lists == nil {
		return m
	}
	for i, list := range lists(refs) {
		params := make([]symbols.Param, len(list))
		for j, tp := range list {
			params[j] = symbols.Param{Name: fmt.Sprintf("p%d%d", i, j), Type: tp}
		}
		f.tab.AddParamList(m, params...)
	}
	return m
}

func (f *fixture) tparam(owner symbols.SymbolID, i int) types.TypeID {
	return f.tab.ParamType(f.tab.Get(owner).TypeParams[i])
}

// implRef builds Owner.impl[targs...] as written on a macro right-hand side.
func (f *fixture) implRef(impl symbols.SymbolID, targs ...types.TypeID) ast.TreeID {
	owner := f.tab.Get(impl).Owner
	qual := f.trees.SetSym(f.trees.NewIdent(f.span(), f.tab.Name(owner)), owner)
	ref := f.trees.SetSym(f.trees.NewSelect(f.span(), qual, f.tab.Name(impl)), impl)
	if len(targs) == 0 {
		return ref
	}
	refs := make([]ast.TreeID, len(targs))
	for i, tp := range targs {
		refs[i] = f.trees.NewTypeRef(f.span(), tp)
	}
	return f.trees.NewTypeApply(f.span(), ref, refs...)
}

// bind stores the binding macroDef -> impl[targs...].
func (f *fixture) bind(macroDef, impl symbols.SymbolID, targs ...types.TypeID) Binding {
	f.t.Helper()
	b, err := StoreBinding(f.tab, f.trees, macroDef, f.implRef(impl, targs...))
	if err != nil {
		f.t.Fatalf("StoreBinding: %v", err)
	}
	return b
}

// echoMacro declares
//
//	def name[X](x: X): Any = Impls.nameImpl[X]
//	def nameImpl[T](c: Context)(x: Expr[T])(t: Witness[T])
//
// and registers body (by default: return x) as the implementation.
func (f *fixture) echoMacro(name string, body Implementation) symbols.SymbolID {
	impl := f.method(f.impls, name+"Impl", []string{"T"}, func(tp []types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Context}, {f.tab.Types.Expr(tp[0])}, {f.tab.Types.Witness(tp[0])}}
	})
	def := f.method(f.macros, name, []string{"X"}, func(tp []types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{tp[0]}}
	})
	f.bind(def, impl, f.tparam(def, 0))
	if body == nil {
		body = f.echo(name)
	}
	f.reg.Register("lib.Impls$", name+"Impl", body)
	return def
}

// echo logs the call and returns the lifted argument.
func (f *fixture) echo(name string) Implementation {
	return func(inv Invocation) (Value, error) {
		f.calls = append(f.calls, name)
		return inv.Args[1], nil
	}
}

// call builds [prefix.]name[targs](args)... with the core bound to macroDef.
func (f *fixture) call(prefix ast.TreeID, macroDef symbols.SymbolID, targs []types.TypeID, argss ...[]ast.TreeID) ast.TreeID {
	name := f.tab.Name(macroDef)
	var core ast.TreeID
	if prefix.IsValid() {
		core = f.trees.NewSelect(f.span(), prefix, name)
	} else {
		core = f.trees.NewIdent(f.span(), name)
	}
	tree := f.trees.SetSym(core, macroDef)
	if len(targs) > 0 {
		refs := make([]ast.TreeID, len(targs))
		for i, tp := range targs {
			refs[i] = f.trees.NewTypeRef(f.span(), tp)
		}
		tree = f.trees.NewTypeApply(f.span(), tree, refs...)
	}
	for _, args := range argss {
		tree = f.trees.NewApply(f.span(), tree, args...)
	}
	return tree
}

func (f *fixture) lit(v int64) ast.TreeID {
	return f.trees.SetType(f.trees.NewLiteral(f.span(), ast.IntConst(v)), f.b().Int)
}

func (f *fixture) str(s string) ast.TreeID {
	return f.trees.SetType(f.trees.NewLiteral(f.span(), ast.StringConst(s)), f.b().String)
}

func (f *fixture) ident(name string, tpe types.TypeID) ast.TreeID {
	return f.trees.SetType(f.trees.NewIdent(f.span(), name), tpe)
}

func (f *fixture) show(tree ast.TreeID) string {
	return f.trees.Show(tree, f.tab.TypeString)
}

func (f *fixture) hasCode(code diag.Code) bool {
	return slices.Contains(f.bag.Codes(), code)
}

func (f *fixture) countCode(code diag.Code) int {
	n := 0
	for _, c := range f.bag.Codes() {
		if c == code {
			n++
		}
	}
	return n
}

func (f *fixture) expectBalancedStack() {
	f.t.Helper()
	pushes, pops := f.engine.Stack().Counts()
	if pushes != pops || f.engine.Stack().Len() != 0 {
		f.t.Fatalf("unbalanced stack: %d pushes, %d pops, %d left", pushes, pops, f.engine.Stack().Len())
	}
	if n := f.engine.SpanDepth(); n != 0 {
		f.t.Fatalf("%d macro spans left open", n)
	}
}

// testTyper checks nothing; it only expands macro applications it is
// handed and records what it saw.
type testTyper struct {
	f       *fixture
	enabled bool
	checked []ast.TreeID
	pts     []types.TypeID
	hook    func(tree ast.TreeID) error
}

func (ty *testTyper) MacrosEnabled() bool { return ty.enabled }

func (ty *testTyper) Typecheck(tree ast.TreeID, mode Mode, pt types.TypeID) (ast.TreeID, error) {
	ty.checked = append(ty.checked, tree)
	ty.pts = append(ty.pts, pt)
	if ty.hook != nil {
		if err := ty.hook(tree); err != nil {
			return tree, err
		}
	}
	if ty.f.engine.IsMacroApplication(tree) {
		return ty.f.engine.Expand(tree, mode, pt)
	}
	return tree, nil
}

// instTyper also infers pending type parameters when asked.
type instTyper struct {
	*testTyper
	resolve      []symbols.SymbolID
	instantiated []ast.TreeID
	inferred     []ast.TreeID
}

func (ty *instTyper) Instantiate(tree ast.TreeID, mode Mode, pt types.TypeID) (ast.TreeID, error) {
	ty.instantiated = append(ty.instantiated, tree)
	return tree, nil
}

func (ty *instTyper) InferInstance(tree ast.TreeID, pt types.TypeID) error {
	ty.inferred = append(ty.inferred, tree)
	inferred := make([]types.TypeID, len(ty.resolve))
	for i := range inferred {
		inferred[i] = ty.f.b().Int
	}
	ty.f.engine.ParametersResolved(ty.resolve, inferred)
	return nil
}
