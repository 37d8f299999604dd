package macros

import (
	"macroexp/internal/ast"
	"macroexp/internal/diag"
	"macroexp/internal/symbols"
	"macroexp/internal/types"
)

// shapeError is a call site that does not fit the macro definition.
type shapeError struct {
	code diag.Code
	msg  string
}

func (e *shapeError) Error() string { return e.msg }

func (e *Engine) shapeErr(code diag.Code, macroDef symbols.SymbolID) *shapeError {
	var msg string
	name := e.table.Name(macroDef)
	switch code {
	case diag.MacroTooManyArgumentLists:
		msg = "too many argument lists for macro invocation " + name
	case diag.MacroTooFewArgumentLists:
		msg = "too few argument lists for macro invocation " + name
	case diag.MacroTooManyArguments:
		msg = "too many arguments for macro method " + name
	default:
		msg = "not enough arguments for macro method " + name
	}
	return &shapeError{code: code, msg: msg}
}

// Synthesize rebuilds the arguments the implementation of the macro
// applied at expandee expects.
func (e *Engine) Synthesize(expandee ast.TreeID) (*MacroArgs, error) {
	return e.synthesize(expandee)
}

func (e *Engine) synthesize(expandee ast.TreeID) (*MacroArgs, error) {
	app := e.trees.DissectApplied(expandee)
	macroDef := e.trees.Sym(app.Core)
	def := e.table.Get(macroDef)
	if def == nil {
		return nil, internalf("call site %s has no macro symbol", e.show(expandee))
	}
	prefix := app.Prefix(e.trees)

	var ctx *Context
	if rec, ok := e.records[expandee]; ok && rec.context != nil {
		ctx = rec.context
	} else {
		ctx = &Context{
			Table:    e.table,
			Trees:    e.trees,
			Macro:    macroDef,
			Expandee: expandee,
			Prefix:   prefix,
			engine:   e,
		}
	}

	paramss := def.ParamLists
	argss := app.Argss
	// m called as m against def m(): the call behaves as m()
	nullaryArgsEmptyParams := len(argss) == 0 && len(paramss) == 1 && len(paramss[0]) == 0
	if len(paramss) < len(argss) {
		return nil, e.shapeErr(diag.MacroTooManyArgumentLists, macroDef)
	}
	if len(paramss) > len(argss) && !nullaryArgsEmptyParams {
		return nil, e.shapeErr(diag.MacroTooFewArgumentLists, macroDef)
	}
	if nullaryArgsEmptyParams {
		argss = [][]ast.TreeID{{}}
	}

	if entry, ok := e.fastTrackFor(macroDef); ok {
		if !entry.Validate(e.trees, expandee) {
			return nil, e.shapeErr(diag.MacroTooFewArgumentLists, macroDef)
		}
		var flat []Value
		for _, args := range argss {
			for _, a := range args {
				flat = append(flat, TreeValue{Tree: a})
			}
		}
		return &MacroArgs{Context: ctx, Lists: [][]Value{flat}}, nil
	}

	binding, err := e.bindingFor(macroDef)
	if err != nil {
		return nil, err
	}
	if binding.IsUnimplemented() {
		return &MacroArgs{Context: ctx}, nil
	}
	sig := binding.ValueSignature()
	e.logVerbose("binding: %s", binding)

	lists := make([][]Value, 0, len(argss)+2)
	if !binding.IsBundle {
		lists = append(lists, []Value{ContextValue{Context: ctx}})
	}
	for i := range min(len(argss), len(paramss), len(sig)) {
		wrapped, err := e.wrapArgs(expandee, macroDef, binding, argss[i], paramss[i], sig[i])
		if err != nil {
			return nil, err
		}
		lists = append(lists, wrapped)
	}

	tags, err := e.witnesses(def, macroDef, binding, app, prefix)
	if err != nil {
		return nil, err
	}
	// witnesses always travel in their own trailing list
	if len(tags) > 0 {
		lists = append(lists, tags)
	}
	return &MacroArgs{Context: ctx, Lists: lists}, nil
}

func (e *Engine) isVarargs(params []symbols.SymbolID) bool {
	if len(params) == 0 {
		return false
	}
	last := e.table.Get(params[len(params)-1])
	return last != nil && e.table.Types.Kind(last.Type) == types.KindRepeated
}

func (e *Engine) wrapArgs(expandee ast.TreeID, macroDef symbols.SymbolID, b *Binding, args []ast.TreeID, params []symbols.SymbolID, fps []Fingerprint) ([]Value, error) {
	varargs := e.isVarargs(params)
	if varargs {
		if len(params) > len(args)+1 {
			return nil, e.shapeErr(diag.MacroTooFewArguments, macroDef)
		}
	} else {
		if len(params) < len(args) {
			return nil, e.shapeErr(diag.MacroTooManyArguments, macroDef)
		}
		if len(params) > len(args) {
			return nil, e.shapeErr(diag.MacroTooFewArguments, macroDef)
		}
	}

	wrapped := make([]Value, len(args))
	for j, arg := range args {
		if len(fps) == 0 {
			return nil, internalf("no fingerprint for argument %d of %s in %s", j, e.show(expandee), b)
		}
		fp := fps[min(j, len(fps)-1)]
		dup := e.trees.Duplicate(arg)
		switch fp {
		case Lifted:
			wrapped[j] = ExprValue{Tree: dup, Type: e.trees.Get(arg).Type}
		case Other:
			wrapped[j] = TreeValue{Tree: dup}
		default:
			return nil, internalf("unexpected fingerprint %s in %s corresponding to argument %s", fp, b, e.show(arg))
		}
	}
	if varargs {
		n := len(params) - 1
		packed := make([]Value, 0, n+1)
		packed = append(packed, wrapped[:n]...)
		return append(packed, SeqValue(wrapped[n:])), nil
	}
	return wrapped, nil
}

// witnesses computes one type witness per Tag of the signature.
func (e *Engine) witnesses(def *symbols.Symbol, macroDef symbols.SymbolID, b *Binding, app ast.Applied, prefix ast.TreeID) ([]Value, error) {
	var out []Value
	for _, fp := range b.Tags() {
		pos := fp.ParamPos()
		if pos >= len(b.Targs) {
			return nil, internalf("%s refers to type argument %d of %d", b, pos, len(b.Targs))
		}
		tpe := e.trees.Get(b.Targs[pos]).Type
		if e.table.Types.Kind(tpe) == types.KindParam {
			sym, _ := e.table.Types.Symbol(tpe)
			tparam := symbols.SymbolID(sym)
			if tp := e.table.Get(tparam); tp != nil && tp.Owner == macroDef {
				argPos := e.table.TypeParamIndex(macroDef, tparam)
				if argPos < 0 || argPos >= len(app.Targs) {
					return nil, internalf("type argument %s of %s is not supplied at %s",
						e.table.Name(tparam), e.table.Name(macroDef), e.show(app.Tree))
				}
				tpe = e.trees.Get(app.Targs[argPos]).Type
			} else {
				site := e.table.ThisType(def.Owner)
				if prefix.IsValid() {
					site = e.trees.Get(prefix).Type
				}
				tpe = e.table.AsSeenFrom(tpe, site, def.Owner)
			}
		}
		out = append(out, WitnessValue{Type: tpe})
	}
	e.logVerbose("tags: %v", out)
	return out, nil
}
