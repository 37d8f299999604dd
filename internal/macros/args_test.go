package macros

import (
	"errors"
	"testing"

	"macroexp/internal/ast"
	"macroexp/internal/diag"
	"macroexp/internal/symbols"
	"macroexp/internal/types"
)

func TestSynthesizeMixedFingerprints(t *testing.T) {
	f := newFixture(t)
	impl := f.method(f.impls, "impl", []string{"A", "B", "C"}, func(tp []types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{
			{f.b().Context},
			{f.tab.Types.Expr(tp[0]), f.b().Int},
			{f.tab.Types.Witness(tp[0]), f.tab.Types.Witness(tp[2])},
		}
	})
	def := f.method(f.macros, "m", []string{"X", "Y"}, func(tp []types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{tp[0], f.b().Int}}
	})
	b := f.bind(def, impl, f.tparam(def, 0), f.b().Int, f.tparam(def, 1))
	if got := b.Signature; len(got) != 3 || got[2][0] != Tag(0) || got[2][1] != Tag(2) {
		t.Fatalf("unexpected signature %v", got)
	}

	s, one := f.str("s"), f.lit(1)
	call := f.call(ast.NoTreeID, def, []types.TypeID{f.b().String, f.b().Bool}, []ast.TreeID{s, one})
	args, err := f.engine.Synthesize(call)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(args.Lists) != 3 {
		t.Fatalf("expected context, value and witness lists, got %d lists", len(args.Lists))
	}
	if ctx, ok := args.Lists[0][0].(ContextValue); !ok || ctx.Context != args.Context || len(args.Lists[0]) != 1 {
		t.Fatalf("first list must hold the context alone: %#v", args.Lists[0])
	}
	values := args.Lists[1]
	expr, ok := values[0].(ExprValue)
	if !ok || expr.Type != f.b().String || !f.trees.Equal(expr.Tree, s) || expr.Tree == s {
		t.Fatalf("expected a lifted duplicate of the first argument, got %#v", values[0])
	}
	if tv, ok := values[1].(TreeValue); !ok || !f.trees.Equal(tv.Tree, one) {
		t.Fatalf("expected the second argument passed through, got %#v", values[1])
	}
	witnesses := args.Lists[2]
	if len(witnesses) != 2 {
		t.Fatalf("expected 2 witnesses, got %d", len(witnesses))
	}
	if w := witnesses[0].(WitnessValue); w.Type != f.b().String {
		t.Fatalf("Tag(0) should witness String, got %s", f.tab.TypeString(w.Type))
	}
	if w := witnesses[1].(WitnessValue); w.Type != f.b().Bool {
		t.Fatalf("Tag(2) should witness Bool, got %s", f.tab.TypeString(w.Type))
	}
	if n := len(args.Flat()); n != 5 {
		t.Fatalf("expected 5 flat arguments, got %d", n)
	}
}

func TestSynthesizePacksVarargs(t *testing.T) {
	f := newFixture(t)
	expr := f.tab.Types.Expr(f.b().Int)
	impl := f.method(f.impls, "impl", nil, func([]types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Context}, {expr, f.tab.Types.Repeated(expr)}}
	})
	def := f.method(f.macros, "m", nil, func([]types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Int, f.tab.Types.Repeated(f.b().Int)}}
	})
	f.bind(def, impl)

	cases := []struct {
		args   int
		packed int
	}{
		{4, 3},
		{2, 1},
		{1, 0},
	}
	for _, tc := range cases {
		args := make([]ast.TreeID, tc.args)
		for i := range args {
			args[i] = f.lit(int64(i))
		}
		out, err := f.engine.Synthesize(f.call(ast.NoTreeID, def, nil, args))
		if err != nil {
			t.Fatalf("%d args: %v", tc.args, err)
		}
		values := out.Lists[1]
		if len(values) != 2 {
			t.Fatalf("%d args: expected 2 values, got %d", tc.args, len(values))
		}
		if _, ok := values[0].(ExprValue); !ok {
			t.Fatalf("%d args: leading argument should be lifted", tc.args)
		}
		seq, ok := values[1].(SeqValue)
		if !ok || len(seq) != tc.packed {
			t.Fatalf("%d args: expected %d packed arguments, got %#v", tc.args, tc.packed, values[1])
		}
		for _, v := range seq {
			if _, ok := v.(ExprValue); !ok {
				t.Fatalf("%d args: packed arguments should be lifted", tc.args)
			}
		}
	}
}

func TestSynthesizeShapeErrors(t *testing.T) {
	f := newFixture(t)
	expr := f.tab.Types.Expr(f.b().Int)
	impl := f.method(f.impls, "impl", nil, func([]types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Context}, {expr}, {expr}}
	})
	def := f.method(f.macros, "m", nil, func([]types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Int}, {f.b().Int}}
	})
	f.bind(def, impl)
	f.reg.Register("lib.Impls$", "impl", f.echo("m"))

	cases := []struct {
		name  string
		argss [][]ast.TreeID
		code  diag.Code
	}{
		{"too many lists", [][]ast.TreeID{{f.lit(1)}, {f.lit(2)}, {f.lit(3)}}, diag.MacroTooManyArgumentLists},
		{"too few lists", [][]ast.TreeID{{f.lit(1)}}, diag.MacroTooFewArgumentLists},
		{"too many args", [][]ast.TreeID{{f.lit(1), f.lit(2)}, {f.lit(3)}}, diag.MacroTooManyArguments},
		{"too few args", [][]ast.TreeID{{}, {f.lit(3)}}, diag.MacroTooFewArguments},
	}
	for _, tc := range cases {
		call := f.call(ast.NoTreeID, def, nil, tc.argss...)
		st, err := f.engine.Expand1(call)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if st.Outcome != Failure || st.Cause != tc.code {
			t.Fatalf("%s: expected failure %s, got %s %s", tc.name, tc.code.ID(), st.Outcome, st.Cause.ID())
		}
		if !f.trees.IsErroneous(call) {
			t.Fatalf("%s: call site should be marked erroneous", tc.name)
		}
		if f.countCode(tc.code) != 1 {
			t.Fatalf("%s: expected exactly one %s diagnostic, got %v", tc.name, tc.code.ID(), f.bag.Codes())
		}
	}
	if len(f.calls) != 0 {
		t.Fatalf("implementation must not run for malformed call sites")
	}
	f.expectBalancedStack()
}

func TestSynthesizeNullaryCallOfEmptyParams(t *testing.T) {
	f := newFixture(t)
	impl := f.method(f.impls, "impl", nil, func([]types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Context}, {}}
	})
	def := f.method(f.macros, "now", nil, func([]types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{}}
	})
	f.bind(def, impl)

	args, err := f.engine.Synthesize(f.call(ast.NoTreeID, def, nil))
	if err != nil {
		t.Fatalf("bare reference to now() should behave as now(): %v", err)
	}
	if len(args.Lists) != 2 || len(args.Lists[1]) != 0 {
		t.Fatalf("expected a context list and an empty list, got %#v", args.Lists)
	}
}

func TestSynthesizeInheritedTypeArgument(t *testing.T) {
	f := newFixture(t)
	box := f.tab.NewClass(f.pkg, "Box", "T")
	impl := f.method(f.impls, "impl", []string{"U"}, func(tp []types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Context}, {f.b().Int}, {f.tab.Types.Witness(tp[0])}}
	})
	def := f.method(box, "m", nil, func([]types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Int}}
	})
	f.bind(def, impl, f.tparam(box, 0))

	prefix := f.ident("b", f.tab.Types.Named(uint32(box), f.b().Float))
	args, err := f.engine.Synthesize(f.call(prefix, def, nil, []ast.TreeID{f.lit(1)}))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	w, ok := args.Lists[len(args.Lists)-1][0].(WitnessValue)
	if !ok || w.Type != f.b().Float {
		t.Fatalf("Box.T seen from Box[Float] should be Float, got %#v", args.Lists[len(args.Lists)-1][0])
	}
	if args.Context.Prefix != prefix {
		t.Fatalf("context should expose the call prefix")
	}
}

func TestSynthesizeBundle(t *testing.T) {
	f := newFixture(t)
	bundle := f.tab.NewClass(f.pkg, "Bundle")
	f.tab.Get(bundle).Flags |= symbols.FlagBundle
	impl := f.method(bundle, "impl", nil, func([]types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.tab.Types.Expr(f.b().Int)}}
	})
	def := f.method(f.macros, "m", nil, func([]types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Int}}
	})
	b := f.bind(def, impl)
	if !b.IsBundle || b.Identity().String() != "lib.Bundle#impl" {
		t.Fatalf("unexpected bundle identity %s", b.Identity())
	}
	args, err := f.engine.Synthesize(f.call(ast.NoTreeID, def, nil, []ast.TreeID{f.lit(1)}))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(args.Lists) != 1 {
		t.Fatalf("bundles receive no context list, got %d lists", len(args.Lists))
	}
	if _, ok := args.Lists[0][0].(ExprValue); !ok {
		t.Fatalf("expected a lifted argument, got %#v", args.Lists[0][0])
	}
}

func TestSynthesizeUnimplemented(t *testing.T) {
	f := newFixture(t)
	def := f.method(f.macros, "todo", nil, func([]types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Int}}
	})
	qual := f.trees.SetSym(f.trees.NewIdent(f.span(), "Predef"), f.u.Predef)
	rhs := f.trees.SetSym(f.trees.NewSelect(f.span(), qual, "???"), f.u.Unimplemented)
	if _, err := StoreBinding(f.tab, f.trees, def, rhs); err != nil {
		t.Fatalf("StoreBinding: %v", err)
	}
	args, err := f.engine.Synthesize(f.call(ast.NoTreeID, def, nil, []ast.TreeID{f.lit(1)}))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(args.Lists) != 0 {
		t.Fatalf("the missing implementation takes no arguments, got %d lists", len(args.Lists))
	}
}

func TestTagInValuePositionIsInternal(t *testing.T) {
	f := newFixture(t)
	impl := f.method(f.impls, "impl", []string{"T"}, func(tp []types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{f.b().Context}, {f.tab.Types.Witness(tp[0])}}
	})
	def := f.method(f.macros, "m", []string{"X"}, func(tp []types.TypeID) [][]types.TypeID {
		return [][]types.TypeID{{tp[0]}}
	})
	f.bind(def, impl, f.tparam(def, 0))
	f.reg.Register("lib.Impls$", "impl", f.echo("m"))

	_, err := f.engine.Expand1(f.call(ast.NoTreeID, def, []types.TypeID{f.b().Int}, []ast.TreeID{f.lit(1)}))
	var ie *InternalError
	if !errors.As(err, &ie) {
		t.Fatalf("expected an internal error, got %v", err)
	}
	if f.bag.Len() != 0 {
		t.Fatalf("internal errors are not diagnostics: %v", f.bag.Codes())
	}
	f.expectBalancedStack()
}
