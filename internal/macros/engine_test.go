package macros

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"macroexp/internal/ast"
	"macroexp/internal/diag"
	"macroexp/internal/source"
	"macroexp/internal/symbols"
	"macroexp/internal/types"
)

func TestExpandSimple(t *testing.T) {
	f := newFixture(t)
	def := f.echoMacro("id", nil)
	arg := f.lit(7)
	call := f.call(ast.NoTreeID, def, []types.TypeID{f.b().Int}, []ast.TreeID{arg})

	st, err := f.engine.Expand1(call)
	if err != nil {
		t.Fatalf("Expand1: %v", err)
	}
	if st.Outcome != Success || f.show(st.Tree) != "7" {
		t.Fatalf("unexpected status %s %q", st.Outcome, f.show(st.Tree))
	}
	if st.Tree == arg {
		t.Fatalf("the expansion must not share nodes with the call site")
	}
	if f.trees.Get(st.Tree).Flags&ast.TreeSynthetic == 0 {
		t.Fatalf("expansion should be marked synthetic")
	}
	if f.bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics %v", f.bag.Codes())
	}
	f.expectBalancedStack()
}

func TestExpansionGetsCallSitePosition(t *testing.T) {
	f := newFixture(t)
	def := f.echoMacro("gen", func(inv Invocation) (Value, error) {
		return inv.Context.Expr(f.trees.NewLiteral(source.NoSpan, ast.BoolConst(true))), nil
	})
	call := f.call(ast.NoTreeID, def, []types.TypeID{f.b().Int}, []ast.TreeID{f.lit(1)})
	st, err := f.engine.Expand1(call)
	if err != nil || st.Outcome != Success {
		t.Fatalf("unexpected result %v %v", st.Outcome, err)
	}
	if got, want := f.trees.Span(st.Tree), f.trees.Span(call).Focus(); got != want {
		t.Fatalf("positionless expansion should sit at %v, got %v", want, got)
	}
}

func TestDelayStateTable(t *testing.T) {
	f := newFixture(t)
	def := f.echoMacro("poly", nil)
	encl := f.method(f.macros, "enclosing", []string{"P"}, nil)
	p := f.tab.Get(encl).TypeParams[0]
	f.engine.ParametersIntroduced(p)

	call := f.call(ast.NoTreeID, def, []types.TypeID{f.tab.ParamType(p)}, []ast.TreeID{f.lit(1)})

	// not delayed before, delayed now
	st, err := f.engine.Expand1(call)
	if err != nil || st.Outcome != Delayed || st.Tree != call {
		t.Fatalf("expected the site to be delayed, got %v %v", st.Outcome, err)
	}
	if !f.engine.Tracker().IsDelayed(call) {
		t.Fatalf("delayed site should be tracked")
	}

	// delayed before, delayed now
	st, err = f.engine.Expand1(call)
	if err != nil || st.Outcome != Delayed {
		t.Fatalf("expected the site to stay delayed, got %v %v", st.Outcome, err)
	}
	if len(f.calls) != 0 {
		t.Fatalf("delayed sites must not be expanded")
	}

	f.engine.ParametersResolved([]symbols.SymbolID{p}, []types.TypeID{f.b().Int})
	if !f.engine.Tracker().Pending() || !f.engine.Tracker().Eligible(call) {
		t.Fatalf("resolving the last dependency should make the site eligible")
	}

	// delayed before, not delayed now
	st, err = f.engine.Expand1(call)
	if err != nil {
		t.Fatalf("Expand1: %v", err)
	}
	if st.Outcome != Skipped || f.show(st.Tree) != "1" {
		t.Fatalf("expected the already expanded tree, got %s %q", st.Outcome, f.show(st.Tree))
	}
	if len(f.calls) != 1 {
		t.Fatalf("expected one expansion, got %v", f.calls)
	}
	if f.engine.Tracker().IsDelayed(call) || len(f.engine.Tracker().Delayed()) != 0 {
		t.Fatalf("expanded site must leave the tracker")
	}
	f.expectBalancedStack()
}

func TestDelayedWhileMacrosDisabled(t *testing.T) {
	f := newFixture(t)
	def := f.echoMacro("id", nil)
	f.typer.enabled = false
	call := f.call(ast.NoTreeID, def, []types.TypeID{f.b().Int}, []ast.TreeID{f.lit(1)})
	st, err := f.engine.Expand1(call)
	if err != nil || st.Outcome != Delayed {
		t.Fatalf("expected a delay while macros are disabled, got %v %v", st.Outcome, err)
	}
	f.typer.enabled = true
	st, err = f.engine.Expand1(call)
	if err != nil || st.Outcome != Skipped {
		t.Fatalf("expected the site to expand once enabled, got %v %v", st.Outcome, err)
	}
}

func TestErroneousArgumentsCancel(t *testing.T) {
	f := newFixture(t)
	def := f.echoMacro("id", nil)
	arg := f.lit(1)
	f.trees.MarkErroneous(arg)
	call := f.call(ast.NoTreeID, def, []types.TypeID{f.b().Int}, []ast.TreeID{arg})

	st, err := f.engine.Expand1(call)
	if err != nil {
		t.Fatalf("Expand1: %v", err)
	}
	if st.Outcome != Failure || st.Cause != diag.MacroCancelledErroneous {
		t.Fatalf("expected cancellation, got %s %s", st.Outcome, st.Cause.ID())
	}
	if len(f.calls) != 0 || f.bag.Len() != 0 {
		t.Fatalf("cancellation runs nothing and reports nothing: %v %v", f.calls, f.bag.Codes())
	}

	// a tracked site is cancelled as well
	encl := f.method(f.macros, "enclosing", []string{"P"}, nil)
	p := f.tab.Get(encl).TypeParams[0]
	f.engine.ParametersIntroduced(p)
	other := f.call(ast.NoTreeID, def, []types.TypeID{f.tab.ParamType(p)}, []ast.TreeID{f.lit(2)})
	if st, _ := f.engine.Expand1(other); st.Outcome != Delayed {
		t.Fatalf("expected a delay, got %s", st.Outcome)
	}
	f.trees.MarkErroneous(other)
	st, err = f.engine.Expand1(other)
	if err != nil || st.Outcome != Failure || st.Cause != diag.MacroCancelledErroneous {
		t.Fatalf("expected cancellation of the delayed site, got %v %v", st, err)
	}
	if f.engine.Tracker().IsDelayed(other) {
		t.Fatalf("cancelled site must leave the tracker")
	}
}

func TestErroneousMacroDefinitionCancels(t *testing.T) {
	f := newFixture(t)
	def := f.echoMacro("id", nil)
	f.tab.Get(def).Flags |= symbols.FlagErroneous
	st, err := f.engine.Expand1(f.call(ast.NoTreeID, def, []types.TypeID{f.b().Int}, []ast.TreeID{f.lit(1)}))
	if err != nil || st.Outcome != Failure || st.Cause != diag.MacroCancelledErroneous {
		t.Fatalf("expected cancellation, got %v %v", st, err)
	}
}

func TestInvocationFailures(t *testing.T) {
	free := func(f *fixture) ast.TreeID {
		sym := f.tab.NewValue(f.pkg, "loose", f.b().Int)
		f.tab.Get(sym).Flags |= symbols.FlagFree
		return f.trees.SetSym(f.trees.NewIdent(f.span(), "loose"), sym)
	}

	cases := []struct {
		name  string
		body  func(f *fixture, inv Invocation) (Value, error)
		cause diag.Code
		codes []diag.Code
		msg   string
	}{
		{
			name: "abort",
			body: func(f *fixture, inv Invocation) (Value, error) {
				return nil, inv.Context.Abort(inv.Context.Pos(), "boom")
			},
			cause: diag.MacroGeneratedAbort,
			codes: []diag.Code{diag.MacroGeneratedAbort},
			msg:   "boom",
		},
		{
			name: "type error",
			body: func(f *fixture, inv Invocation) (Value, error) {
				return nil, &TypeError{Msg: "found Int, required String"}
			},
			cause: diag.MacroGeneratedTypeError,
			codes: []diag.Code{diag.MacroGeneratedTypeError},
			msg:   "found Int, required String",
		},
		{
			name: "error",
			body: func(f *fixture, inv Invocation) (Value, error) {
				return nil, errors.New("kaput")
			},
			cause: diag.MacroGeneratedException,
			codes: []diag.Code{diag.MacroGeneratedException},
			msg:   "kaput",
		},
		{
			name: "panic",
			body: func(f *fixture, inv Invocation) (Value, error) {
				panic("oops")
			},
			cause: diag.MacroGeneratedException,
			codes: []diag.Code{diag.MacroGeneratedException},
			msg:   "oops",
		},
		{
			name: "wrapped abort",
			body: func(f *fixture, inv Invocation) (Value, error) {
				return nil, &InvocationTargetError{Err: &AbortError{Msg: "deep"}}
			},
			cause: diag.MacroGeneratedAbort,
			codes: []diag.Code{diag.MacroGeneratedAbort},
			msg:   "deep",
		},
		{
			name: "reported error",
			body: func(f *fixture, inv Invocation) (Value, error) {
				inv.Context.Error(inv.Context.Pos(), "user says no")
				return inv.Args[1], nil
			},
			cause: diag.MacroGeneratedTypeError,
			codes: []diag.Code{diag.MacroUserMessage},
			msg:   "user says no",
		},
		{
			name: "witness returned",
			body: func(f *fixture, inv Invocation) (Value, error) {
				return inv.Args[2], nil
			},
			cause: diag.MacroInvalidExpansionType,
			codes: []diag.Code{diag.MacroInvalidExpansionType},
			msg:   "term role",
		},
		{
			name: "nil returned",
			body: func(f *fixture, inv Invocation) (Value, error) {
				return nil, nil
			},
			cause: diag.MacroInvalidExpansionType,
			codes: []diag.Code{diag.MacroInvalidExpansionType},
			msg:   "nil",
		},
		{
			name: "type tree returned",
			body: func(f *fixture, inv Invocation) (Value, error) {
				return TreeValue{Tree: f.trees.NewTypeRef(f.span(), f.b().Int)}, nil
			},
			cause: diag.MacroInvalidExpansionType,
			codes: []diag.Code{diag.MacroInvalidExpansionType},
			msg:   "wrong role",
		},
		{
			name: "free term",
			body: func(f *fixture, inv Invocation) (Value, error) {
				ref := free(f)
				again := f.trees.SetSym(f.trees.NewIdent(f.span(), "loose"), f.trees.Sym(ref))
				return inv.Context.Expr(f.trees.NewApply(f.span(), ref, again)), nil
			},
			cause: diag.MacroFreeSymbol,
			codes: []diag.Code{diag.MacroFreeSymbol},
			msg:   "free term variable loose",
		},
		{
			name: "free type",
			body: func(f *fixture, inv Invocation) (Value, error) {
				sym := f.tab.NewClass(f.pkg, "Loose")
				f.tab.Get(sym).Flags |= symbols.FlagFree
				lit := f.lit(1)
				f.trees.SetType(lit, f.tab.Types.Named(uint32(sym)))
				return inv.Context.Expr(lit), nil
			},
			cause: diag.MacroFreeType,
			codes: []diag.Code{diag.MacroFreeType},
			msg:   "free type variable Loose",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			def := f.echoMacro("m", func(inv Invocation) (Value, error) { return tc.body(f, inv) })
			call := f.call(ast.NoTreeID, def, []types.TypeID{f.b().Int}, []ast.TreeID{f.lit(1)})
			st, err := f.engine.Expand1(call)
			if err != nil {
				t.Fatalf("Expand1: %v", err)
			}
			if st.Outcome != Failure || st.Cause != tc.cause {
				t.Fatalf("expected failure %s, got %s %s", tc.cause.ID(), st.Outcome, st.Cause.ID())
			}
			codes := f.bag.Codes()
			if fmt.Sprint(codes) != fmt.Sprint(tc.codes) {
				t.Fatalf("expected diagnostics %v, got %v", tc.codes, codes)
			}
			if msg := f.bag.Items()[0].Message; !strings.Contains(msg, tc.msg) {
				t.Fatalf("diagnostic %q does not mention %q", msg, tc.msg)
			}
			if f.engine.Errors() != len(tc.codes) {
				t.Fatalf("expected %d errors, counted %d", len(tc.codes), f.engine.Errors())
			}
			f.expectBalancedStack()
		})
	}
}

func TestWarningsDoNotFailExpansion(t *testing.T) {
	f := newFixture(t)
	def := f.echoMacro("m", func(inv Invocation) (Value, error) {
		inv.Context.Warning(inv.Context.Pos(), "careful")
		inv.Context.Info(inv.Context.Pos(), "fyi")
		return inv.Args[1], nil
	})
	st, err := f.engine.Expand1(f.call(ast.NoTreeID, def, []types.TypeID{f.b().Int}, []ast.TreeID{f.lit(1)}))
	if err != nil || st.Outcome != Success {
		t.Fatalf("warnings must not fail the expansion: %v %v", st, err)
	}
	if f.countCode(diag.MacroUserMessage) != 2 {
		t.Fatalf("expected both messages reported, got %v", f.bag.Codes())
	}
}

func TestControlSignalPassesThrough(t *testing.T) {
	f := newFixture(t)
	signal := &ControlSignal{Name: "suspend"}
	def := f.echoMacro("m", func(inv Invocation) (Value, error) { return nil, signal })
	call := f.call(ast.NoTreeID, def, []types.TypeID{f.b().Int}, []ast.TreeID{f.lit(1)})

	st, err := f.engine.Expand1(call)
	if !errors.Is(err, signal) {
		t.Fatalf("expected the control signal back, got %v", err)
	}
	if st.Outcome != 0 || f.bag.Len() != 0 {
		t.Fatalf("control signals are neither outcomes nor diagnostics: %v %v", st, f.bag.Codes())
	}
	if f.trees.IsErroneous(call) {
		t.Fatalf("control signals leave the call site alone")
	}
	f.expectBalancedStack()

	if _, err := f.engine.Expand(call, ModeExpr, f.b().Wildcard); !errors.Is(err, signal) {
		t.Fatalf("Expand should re-raise the signal, got %v", err)
	}
}

func TestStackDisciplineWithNestedFailures(t *testing.T) {
	kinds := []struct {
		name  string
		fail  func(inv Invocation) (Value, error)
		cause diag.Code
		ctrl  bool
		fast  bool
	}{
		{"abort", func(inv Invocation) (Value, error) { return nil, inv.Context.Abort(source.NoSpan, "inner abort") }, diag.MacroGeneratedTypeError, false, false},
		{"type error", func(inv Invocation) (Value, error) { return nil, &TypeError{Msg: "inner"} }, diag.MacroGeneratedTypeError, false, false},
		{"panic", func(inv Invocation) (Value, error) { panic(errors.New("inner panic")) }, diag.MacroGeneratedTypeError, false, false},
		{"control", func(inv Invocation) (Value, error) { return nil, &ControlSignal{Name: "inner"} }, 0, true, false},
		{"fast track panic", func(inv Invocation) (Value, error) { panic("boom") }, diag.MacroGeneratedTypeError, false, true},
	}
	for _, k := range kinds {
		t.Run(k.name, func(t *testing.T) {
			f := newFixture(t)
			var innerDepth, innerLen int
			body := func(inv Invocation) (Value, error) {
				innerDepth = inv.Context.Depth()
				innerLen = f.engine.Stack().Len()
				return k.fail(inv)
			}
			inner := f.echoMacro("inner", body)
			if k.fast {
				f.ft.Register(inner, FastTrackEntry{
					Validate: func(*ast.Trees, ast.TreeID) bool { return true },
					Expand:   body,
				})
			}
			outer := f.echoMacro("outer", func(inv Invocation) (Value, error) {
				nested := f.call(ast.NoTreeID, inner, []types.TypeID{f.b().Int}, []ast.TreeID{f.lit(2)})
				if _, err := inv.Context.Typecheck(nested, f.b().Int); err != nil {
					return nil, err
				}
				return inv.Args[1], nil
			})
			call := f.call(ast.NoTreeID, outer, []types.TypeID{f.b().Int}, []ast.TreeID{f.lit(1)})

			st, err := f.engine.Expand1(call)
			if k.ctrl {
				var ctrl *ControlSignal
				if !errors.As(err, &ctrl) || ctrl.Name != "inner" {
					t.Fatalf("expected the inner signal, got %v", err)
				}
			} else {
				if err != nil {
					t.Fatalf("Expand1: %v", err)
				}
				if st.Outcome != Failure || st.Cause != k.cause {
					t.Fatalf("expected outer failure %s, got %s %s", k.cause.ID(), st.Outcome, st.Cause.ID())
				}
			}
			if innerDepth != 1 || innerLen != 2 {
				t.Fatalf("inner expansion should run nested: depth %d, stack %d", innerDepth, innerLen)
			}
			pushes, _ := f.engine.Stack().Counts()
			if pushes != 2 {
				t.Fatalf("expected two expansions, got %d", pushes)
			}
			if k.fast && !f.hasCode(diag.MacroGeneratedException) {
				t.Fatalf("a panicking built-in should be reported as an exception, got %v", f.bag.Codes())
			}
			f.expectBalancedStack()
		})
	}
}

func TestEnclosingMacros(t *testing.T) {
	f := newFixture(t)
	var chain []string
	inner := f.echoMacro("inner", func(inv Invocation) (Value, error) {
		for _, c := range inv.Context.EnclosingMacros() {
			chain = append(chain, f.tab.Name(c.Macro))
		}
		return inv.Args[1], nil
	})
	outer := f.echoMacro("outer", func(inv Invocation) (Value, error) {
		nested := f.call(ast.NoTreeID, inner, []types.TypeID{f.b().Int}, []ast.TreeID{f.lit(2)})
		out, err := inv.Context.Typecheck(nested, f.b().Int)
		if err != nil {
			return nil, err
		}
		return inv.Context.Expr(out), nil
	})
	st, err := f.engine.Expand1(f.call(ast.NoTreeID, outer, []types.TypeID{f.b().Int}, []ast.TreeID{f.lit(1)}))
	if err != nil || st.Outcome != Success {
		t.Fatalf("unexpected result %v %v", st, err)
	}
	if strings.Join(chain, ",") != "inner,outer" {
		t.Fatalf("unexpected enclosing chain %v", chain)
	}
	if f.show(st.Tree) != "2" {
		t.Fatalf("outer should return the nested expansion, got %q", f.show(st.Tree))
	}
}

func TestFallbackToOverridden(t *testing.T) {
	f := newFixture(t)
	impl := f.method(f.impls, "missingImpl", []string{"T"}, func(tp []types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Context}, {f.tab.Types.Expr(tp[0])}, {f.tab.Types.Expr(f.b().Int)}}
	})
	base := f.method(f.macros, "M2", []string{"X"}, func(tp []types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{tp[0]}, {f.b().Int}}
	})
	def := f.method(f.macros, "M", []string{"X"}, func(tp []types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{tp[0]}, {f.b().Int}}
	})
	f.tab.Get(def).Overridden = []symbols.SymbolID{base}
	f.bind(def, impl, f.tparam(def, 0))

	q := f.ident("q", f.b().Any)
	call := f.call(q, def, []types.TypeID{f.b().Int}, []ast.TreeID{f.ident("a", f.b().Int)}, []ast.TreeID{f.ident("b", f.b().Int)})
	st, err := f.engine.Expand1(call)
	if err != nil {
		t.Fatalf("Expand1: %v", err)
	}
	if st.Outcome != Fallback {
		t.Fatalf("expected fallback, got %s", st.Outcome)
	}
	if got := f.show(st.Tree); got != "q.M2[Int](a)(b)" {
		t.Fatalf("unexpected fallback tree %q", got)
	}
	if core := f.trees.DissectApplied(st.Tree).Core; f.trees.Sym(core) != base {
		t.Fatalf("fallback core should refer to the overridden method")
	}
	if f.show(call) != "q.M[Int](a)(b)" {
		t.Fatalf("call site must not change, got %q", f.show(call))
	}

	checked := len(f.typer.checked)
	out, err := f.engine.Expand(call, ModeExpr, f.b().Int)
	if err != nil || f.show(out) != "q.M2[Int](a)(b)" {
		t.Fatalf("Expand should type check the fallback: %q %v", f.show(out), err)
	}
	if len(f.typer.checked) != checked+1 {
		t.Fatalf("fallback should be type checked once")
	}
}

func TestImplementationNotFound(t *testing.T) {
	f := newFixture(t)
	impl := f.method(f.impls, "missingImpl", nil, func([]types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Context}}
	})
	def := f.method(f.macros, "m", nil, nil)
	f.bind(def, impl)

	st, err := f.engine.Expand1(f.call(ast.NoTreeID, def, nil))
	if err != nil {
		t.Fatalf("Expand1: %v", err)
	}
	if st.Outcome != Failure || st.Cause != diag.MacroImplNotFound {
		t.Fatalf("expected a missing implementation, got %s %s", st.Outcome, st.Cause.ID())
	}
	items := f.bag.Items()
	if len(items) != 1 || len(items[0].Notes) != 1 {
		t.Fatalf("expected one diagnostic with a note, got %#v", items)
	}
}

func TestUnboundMacro(t *testing.T) {
	f := newFixture(t)
	base := f.method(f.macros, "M2", nil, nil)
	def := f.method(f.macros, "M", nil, nil)
	f.tab.Get(def).Flags |= symbols.FlagMacro
	f.tab.Get(def).Overridden = []symbols.SymbolID{base}

	st, err := f.engine.Expand1(f.call(ast.NoTreeID, def, nil))
	if err != nil {
		t.Fatalf("Expand1: %v", err)
	}
	if st.Outcome != Fallback || f.trees.Sym(f.trees.DissectApplied(st.Tree).Core) != base {
		t.Fatalf("a macro without a binding should fall back, got %s %s", st.Outcome, st.Cause.ID())
	}

	lone := f.method(f.macros, "lone", nil, nil)
	f.tab.Get(lone).Flags |= symbols.FlagMacro
	st, err = f.engine.Expand1(f.call(ast.NoTreeID, lone, nil))
	if err != nil {
		t.Fatalf("Expand1: %v", err)
	}
	if st.Outcome != Failure || st.Cause != diag.MacroImplNotFound {
		t.Fatalf("expected a missing implementation, got %s %s", st.Outcome, st.Cause.ID())
	}
	if f.hasCode(diag.MacroBadBinding) {
		t.Fatalf("a missing binding is not a bad one: %v", f.bag.Codes())
	}
}

func TestUnimplementedMacroAborts(t *testing.T) {
	f := newFixture(t)
	def := f.method(f.macros, "todo", nil, func([]types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Int}}
	})
	qual := f.trees.SetSym(f.trees.NewIdent(f.span(), "Predef"), f.u.Predef)
	if _, err := StoreBinding(f.tab, f.trees, def, f.trees.SetSym(f.trees.NewSelect(f.span(), qual, "???"), f.u.Unimplemented)); err != nil {
		t.Fatalf("StoreBinding: %v", err)
	}
	st, err := f.engine.Expand1(f.call(ast.NoTreeID, def, nil, []ast.TreeID{f.lit(1)}))
	if err != nil {
		t.Fatalf("Expand1: %v", err)
	}
	if st.Outcome != Failure || st.Cause != diag.MacroGeneratedAbort {
		t.Fatalf("expected an abort, got %s %s", st.Outcome, st.Cause.ID())
	}
	if msg := f.bag.Items()[0].Message; msg != "macro implementation is missing" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestBadBinding(t *testing.T) {
	f := newFixture(t)
	def := f.method(f.macros, "m", nil, nil)
	sym := f.tab.Get(def)
	sym.Flags |= symbols.FlagMacro
	sym.MacroImpl = []byte{0xc1}

	call := f.call(ast.NoTreeID, def, nil)
	st, err := f.engine.Expand1(call)
	if err != nil {
		t.Fatalf("Expand1: %v", err)
	}
	if st.Outcome != Failure || st.Cause != diag.MacroBadBinding {
		t.Fatalf("expected a bad binding, got %s %s", st.Outcome, st.Cause.ID())
	}

	// a binding written by a newer format is rejected the same way
	p := PickleOf(Binding{ClassName: "lib.Impls$", MethodName: "impl", Signature: [][]Fingerprint{{Other}}})
	p.Payload[0].Value = FloatAtom(2.0)
	data, err := MarshalPickle(f.tab, f.trees, p)
	if err != nil {
		t.Fatalf("MarshalPickle: %v", err)
	}
	newer := f.method(f.macros, "newer", nil, nil)
	f.tab.Get(newer).Flags |= symbols.FlagMacro
	f.tab.Get(newer).MacroImpl = data
	st, err = f.engine.Expand1(f.call(ast.NoTreeID, newer, nil))
	if err != nil || st.Cause != diag.MacroBadBinding {
		t.Fatalf("expected a bad binding, got %v %v", st, err)
	}
	if msg := f.bag.Items()[1].Message; !strings.Contains(msg, "expected 1.0, actual 2.0") {
		t.Fatalf("version mismatch should be explained, got %q", msg)
	}
}

func TestFastTrack(t *testing.T) {
	f := newFixture(t)
	def := f.method(f.macros, "builtin", nil, func([]types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Int, f.b().Int}}
	})
	f.tab.Get(def).Flags |= symbols.FlagMacro
	var got []Value
	f.ft.Register(def, FastTrackEntry{
		Validate: func(trees *ast.Trees, expandee ast.TreeID) bool {
			return len(trees.DissectApplied(expandee).Argss) == 1
		},
		Expand: func(inv Invocation) (Value, error) {
			got = inv.Args
			return inv.Args[1], nil
		},
	})

	st, err := f.engine.Expand1(f.call(ast.NoTreeID, def, nil, []ast.TreeID{f.lit(1), f.lit(2)}))
	if err != nil || st.Outcome != Success || f.show(st.Tree) != "2" {
		t.Fatalf("unexpected fast track result %v %q %v", st.Outcome, f.show(st.Tree), err)
	}
	for _, v := range got {
		if _, ok := v.(TreeValue); !ok {
			t.Fatalf("fast track arguments are passed as raw trees, got %#v", v)
		}
	}

	other := f.method(f.macros, "strict", nil, func([]types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Int}}
	})
	f.tab.Get(other).Flags |= symbols.FlagMacro
	f.ft.Register(other, FastTrackEntry{
		Validate: func(*ast.Trees, ast.TreeID) bool { return false },
		Expand:   func(inv Invocation) (Value, error) { return inv.Args[0], nil },
	})
	st, err = f.engine.Expand1(f.call(ast.NoTreeID, other, nil, []ast.TreeID{f.lit(1)}))
	if err != nil || st.Outcome != Failure || st.Cause != diag.MacroTooFewArgumentLists {
		t.Fatalf("failed validation should read as a shape error, got %v %v", st, err)
	}
}

func TestFastTrackDisabled(t *testing.T) {
	f := newFixture(t)
	f.engine = NewEngine(f.tab, f.trees, Options{Typer: f.typer, Invoker: f.reg, FastTrack: f.ft, NoFastTrack: true,
		Reporter: diag.BagReporter{Bag: f.bag}})
	def := f.echoMacro("id", nil)
	f.ft.Register(def, FastTrackEntry{Expand: func(Invocation) (Value, error) {
		t.Fatalf("fast track must be bypassed")
		return nil, nil
	}})
	st, err := f.engine.Expand1(f.call(ast.NoTreeID, def, []types.TypeID{f.b().Int}, []ast.TreeID{f.lit(3)}))
	if err != nil || st.Outcome != Success || len(f.calls) != 1 {
		t.Fatalf("expected the bound implementation to run, got %v %v", st, err)
	}
}

func TestNotAMacro(t *testing.T) {
	f := newFixture(t)
	plain := f.method(f.macros, "plain", nil, nil)
	_, err := f.engine.Expand1(f.call(ast.NoTreeID, plain, nil))
	var ie *InternalError
	if !errors.As(err, &ie) {
		t.Fatalf("expected an internal error, got %v", err)
	}
}

func TestResetRefusesDuringExpansion(t *testing.T) {
	f := newFixture(t)
	var recovered any
	def := f.echoMacro("m", func(inv Invocation) (Value, error) {
		func() {
			defer func() { recovered = recover() }()
			f.engine.Reset()
		}()
		return inv.Args[1], nil
	})
	if _, err := f.engine.Expand1(f.call(ast.NoTreeID, def, []types.TypeID{f.b().Int}, []ast.TreeID{f.lit(1)})); err != nil {
		t.Fatalf("Expand1: %v", err)
	}
	if recovered == nil {
		t.Fatalf("Reset during an expansion must panic")
	}
	f.engine.Reset()
}
