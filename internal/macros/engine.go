package macros

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"macroexp/internal/ast"
	"macroexp/internal/diag"
	"macroexp/internal/symbols"
	"macroexp/internal/trace"
	"macroexp/internal/types"
)

// Outcome is the result class of one expansion attempt.
type Outcome uint8

const (
	// Success carries the expansion, to be checked against the expected type.
	Success Outcome = iota + 1
	// Fallback carries a call of the next overridden non-macro definition.
	Fallback
	// Delayed returns the call site unchanged until its type parameters resolve.
	Delayed
	// Skipped returns a tree whose macros were already expanded.
	Skipped
	// Failure marks the call site as erroneous.
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Fallback:
		return "fallback"
	case Delayed:
		return "delayed"
	case Skipped:
		return "skipped"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Status is what Expand1 returns. Cause names the diagnostic behind a
// Failure, 0 otherwise.
type Status struct {
	Outcome Outcome
	Tree    ast.TreeID
	Cause   diag.Code
}

// record is the bookkeeping attached to a call site between attempts.
type record struct {
	context *Context
}

// Engine expands macro applications for one compilation run. It owns
// every piece of mutable expansion state: the delayed sites, the stack of
// open expansions and the binding/runtime caches.
type Engine struct {
	table     *symbols.Table
	trees     *ast.Trees
	reporter  *diag.CountingReporter
	typer     Typer
	invoker   Invoker
	fastTrack *FastTrack
	tracer    trace.Tracer
	opts      Options

	tracker    *Tracker
	stack      ContextStack
	records    map[ast.TreeID]*record
	bindings   map[symbols.SymbolID]*bindingEntry
	runtimes   map[symbols.SymbolID]Implementation
	suppressed map[ast.TreeID]struct{}
	expansions map[ast.TreeID]ast.TreeID
	expandees  map[ast.TreeID]ast.TreeID
	spans      []uint64
}

// NewEngine creates the expansion state of a compilation run.
func NewEngine(table *symbols.Table, trees *ast.Trees, opts Options) *Engine {
	rep := opts.Reporter
	if rep == nil {
		rep = diag.NopReporter{}
	}
	tr := opts.Tracer
	if tr == nil {
		tr = trace.Nop
	}
	e := &Engine{
		table:      table,
		trees:      trees,
		reporter:   &diag.CountingReporter{Next: rep},
		typer:      opts.Typer,
		invoker:    opts.Invoker,
		fastTrack:  opts.FastTrack,
		tracer:     tr,
		opts:       opts,
		tracker:    NewTracker(table, trees),
		records:    make(map[ast.TreeID]*record),
		bindings:   make(map[symbols.SymbolID]*bindingEntry),
		runtimes:   make(map[symbols.SymbolID]Implementation),
		suppressed: make(map[ast.TreeID]struct{}),
		expansions: make(map[ast.TreeID]ast.TreeID),
		expandees:  make(map[ast.TreeID]ast.TreeID),
	}
	return e
}

// SetTyper installs the type checker once it exists; the checker usually
// needs the engine too.
func (e *Engine) SetTyper(t Typer) { e.typer = t }

func (e *Engine) Tracker() *Tracker     { return e.tracker }
func (e *Engine) Stack() *ContextStack  { return &e.stack }
func (e *Engine) Trees() *ast.Trees     { return e.trees }
func (e *Engine) Table() *symbols.Table { return e.table }

// ParametersIntroduced forwards fresh type variables of inference to the tracker.
func (e *Engine) ParametersIntroduced(ids ...symbols.SymbolID) {
	e.tracker.ParametersIntroduced(ids...)
}

// ParametersResolved forwards inferred type variables to the tracker.
func (e *Engine) ParametersResolved(ids []symbols.SymbolID, inferred []types.TypeID) {
	if e.opts.Debug >= DebugLite {
		for i, id := range ids {
			tp := "?"
			if i < len(inferred) {
				tp = e.table.TypeString(inferred[i])
			}
			e.logLite("type parameter %s inferred as %s", e.table.Name(id), tp)
		}
	}
	e.tracker.ParametersResolved(ids, inferred)
}

// Errors returns the number of errors reported through the engine.
func (e *Engine) Errors() int { return e.reporter.Errors() }

// Reset drops all per-run state. It must not be called during an expansion.
func (e *Engine) Reset() {
	if e.stack.Len() != 0 {
		panic("macros: reset during expansion")
	}
	e.tracker.Reset()
	clear(e.records)
	clear(e.bindings)
	clear(e.runtimes)
	clear(e.suppressed)
	clear(e.expansions)
	clear(e.expandees)
}

// IsMacroApplication reports whether tree is a call site of a macro.
func (e *Engine) IsMacroApplication(tree ast.TreeID) bool {
	app := e.trees.DissectApplied(tree)
	return e.table.Get(e.trees.Sym(app.Core)).IsMacro()
}

// Expand1 runs one expansion attempt of expandee and classifies its
// outcome. A non-nil error is either a *ControlSignal raised by the
// implementation or an *InternalError; neither is reported as a diagnostic.
func (e *Engine) Expand1(expandee ast.TreeID) (Status, error) {
	macroDef := e.trees.Sym(e.trees.DissectApplied(expandee).Core)
	if !e.table.Get(macroDef).IsMacro() {
		return Status{}, internalf("%s is not a macro application", e.show(expandee))
	}
	span := trace.Begin(e.tracer, trace.ScopeMacro, "macro:"+e.table.Name(macroDef), e.parentSpan())
	st, err := e.spanned(span, func() (Status, error) { return e.expand1(expandee, macroDef) })
	span.WithExtra("outcome", st.Outcome.String())
	if st.Cause != 0 {
		span.WithExtra("cause", st.Cause.ID())
	}
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	span.End(detail)
	return st, err
}

// spanned runs fn with span on top of the span stack. The entry is popped
// even if fn panics.
func (e *Engine) spanned(span *trace.Span, fn func() (Status, error)) (Status, error) {
	e.spans = append(e.spans, span.ID())
	defer func() { e.spans = e.spans[:len(e.spans)-1] }()
	return fn()
}

// SpanDepth is the number of macro spans currently open.
func (e *Engine) SpanDepth() int { return len(e.spans) }

func (e *Engine) parentSpan() uint64 {
	if len(e.spans) == 0 {
		return 0
	}
	return e.spans[len(e.spans)-1]
}

func (e *Engine) expand1(expandee ast.TreeID, macroDef symbols.SymbolID) (Status, error) {
	if e.table.IsErroneous(macroDef) || e.trees.IsErroneous(expandee) {
		reason := "erroneous arguments"
		if e.table.IsErroneous(macroDef) {
			reason = "not found or incompatible macro implementation"
		}
		e.logLite("macro expansion is cancelled because of %s: %s", reason, e.show(expandee))
		e.forget(expandee)
		return e.failure(expandee, diag.MacroCancelledErroneous), nil
	}

	rt, err := e.runtimeFor(macroDef)
	if err != nil {
		e.forget(expandee)
		return e.bindingFailure(expandee, macroDef, err)
	}
	if rt == nil {
		e.forget(expandee)
		return e.fallback(expandee, macroDef), nil
	}
	return e.expandWithRuntime(expandee, macroDef, rt)
}

func (e *Engine) expandWithRuntime(expandee ast.TreeID, macroDef symbols.SymbolID, rt Implementation) (Status, error) {
	wasDelayed := e.tracker.IsDelayed(expandee)
	deps := e.tracker.Dependencies(expandee)
	nowDelayed := !e.macrosEnabled() || len(deps) > 0

	switch {
	case wasDelayed && nowDelayed:
		return Status{Outcome: Delayed, Tree: expandee}, nil

	case wasDelayed:
		expanded, err := e.ExpandAll(expandee)
		if err != nil {
			return Status{}, err
		}
		if e.trees.IsErroneous(expanded) {
			return e.failure(expandee, 0), nil
		}
		return Status{Outcome: Skipped, Tree: expanded}, nil

	case nowDelayed:
		e.logLite("macro expansion is delayed: %s", e.show(expandee))
		args, err := e.synthesize(expandee)
		if err != nil {
			return e.synthesisFailure(expandee, macroDef, err)
		}
		e.tracker.Record(expandee, deps)
		e.records[expandee] = &record{context: args.Context}
		return Status{Outcome: Delayed, Tree: expandee}, nil

	default:
		return e.invoke(expandee, macroDef, rt)
	}
}

func (e *Engine) macrosEnabled() bool {
	if e.opts.Disabled {
		return false
	}
	return e.typer == nil || e.typer.MacrosEnabled()
}

// invoke performs the real expansion. The context pushed for the
// invocation is popped exactly once on every path.
func (e *Engine) invoke(expandee ast.TreeID, macroDef symbols.SymbolID, rt Implementation) (Status, error) {
	defer e.forget(expandee)
	e.logLite("performing macro expansion %s at %s", e.show(expandee), e.trees.Span(expandee))

	args, err := e.synthesize(expandee)
	if err != nil {
		return e.synthesisFailure(expandee, macroDef, err)
	}
	e.logVerbose("macro arguments: %d lists, %d values", len(args.Lists), len(args.Flat()))
	trace.Point(e.tracer, trace.ScopeNode, "macro-args", fmt.Sprintf("%d lists", len(args.Lists)), e.parentSpan())

	numErrors := e.reporter.Errors()
	ctx := args.Context
	e.stack.Push(ctx)
	popped := false
	pop := func() {
		if !popped {
			popped = true
			e.stack.Pop()
		}
	}
	defer pop()

	var ident Identity
	if b, ok := e.bindings[macroDef]; ok {
		ident = b.binding.Identity()
	}
	value, err := rt(Invocation{Identity: ident, Context: ctx, Args: args.Flat()})
	if err != nil {
		pop()
		return e.invocationFailure(expandee, err)
	}
	if e.reporter.Errors() > numErrors {
		// the implementation reported its own errors
		pop()
		return e.failure(expandee, diag.MacroGeneratedTypeError), nil
	}

	tree, ok := resultTree(value)
	if !ok || !e.matchesRole(macroDef, tree) {
		pop()
		diag.ReportError(e.reporter, diag.MacroInvalidExpansionType, e.trees.Span(expandee),
			fmt.Sprintf("macro must return a syntax tree of %s role; returned value is %s", e.roleOf(macroDef), describeValue(value))).Emit()
		return e.failure(expandee, diag.MacroInvalidExpansionType), nil
	}
	if cause := e.reportFreeSymbols(expandee, tree); cause != 0 {
		pop()
		return e.failure(expandee, cause), nil
	}

	pos := ctx.EnclosingPosition().Focus()
	e.trees.SetDefaultSpan(tree, pos)
	e.trees.MarkSynthetic(tree)
	e.logVerbose("macro expansion: %s", e.show(tree))
	pop()
	return Status{Outcome: Success, Tree: tree}, nil
}

// forget drops the bookkeeping attached to a call site once it produced a
// non-delay outcome.
func (e *Engine) forget(expandee ast.TreeID) {
	delete(e.records, expandee)
	e.tracker.Remove(expandee)
}

func (e *Engine) failure(expandee ast.TreeID, cause diag.Code) Status {
	return Status{Outcome: Failure, Tree: expandee, Cause: cause}
}

func (e *Engine) invocationFailure(expandee ast.TreeID, err error) (Status, error) {
	var ctrl *ControlSignal
	if errors.As(err, &ctrl) {
		return Status{}, ctrl
	}
	real := rootCause(err)
	pos := e.trees.Span(expandee)

	var abort *AbortError
	if errors.As(real, &abort) {
		at := abort.Pos
		if !at.IsValid() {
			at = pos
		}
		diag.ReportError(e.reporter, diag.MacroGeneratedAbort, at, abort.Msg).Emit()
		return e.failure(expandee, diag.MacroGeneratedAbort), nil
	}
	var te *TypeError
	if errors.As(real, &te) {
		at := te.Pos
		if !at.IsValid() {
			at = pos
		}
		diag.ReportError(e.reporter, diag.MacroGeneratedTypeError, at, "exception during macro expansion: "+te.Error()).Emit()
		return e.failure(expandee, diag.MacroGeneratedTypeError), nil
	}
	var ie *InternalError
	if errors.As(real, &ie) {
		return Status{}, ie
	}
	b := diag.ReportError(e.reporter, diag.MacroGeneratedException, pos, "exception during macro expansion: "+real.Error())
	var p *PanicError
	if errors.As(err, &p) && len(p.Stack) > 0 {
		b.WithNote(pos, firstLines(string(p.Stack), 6))
	}
	b.Emit()
	return e.failure(expandee, diag.MacroGeneratedException), nil
}

func (e *Engine) bindingFailure(expandee ast.TreeID, macroDef symbols.SymbolID, err error) (Status, error) {
	var ie *InternalError
	if errors.As(err, &ie) {
		return Status{}, err
	}
	diag.ReportError(e.reporter, diag.MacroBadBinding, e.trees.Span(expandee),
		fmt.Sprintf("macro %s has an unusable implementation binding: %v", e.table.Name(macroDef), err)).Emit()
	return e.failure(expandee, diag.MacroBadBinding), nil
}

func (e *Engine) synthesisFailure(expandee ast.TreeID, macroDef symbols.SymbolID, err error) (Status, error) {
	var se *shapeError
	if errors.As(err, &se) {
		diag.ReportError(e.reporter, se.code, e.trees.Span(expandee), se.msg).Emit()
		e.trees.MarkErroneous(expandee)
		return e.failure(expandee, se.code), nil
	}
	return e.bindingFailure(expandee, macroDef, err)
}

func (e *Engine) roleOf(macroDef symbols.SymbolID) string {
	if e.table.Get(macroDef).IsTermMacro() {
		return "term"
	}
	return "type"
}

func (e *Engine) matchesRole(macroDef symbols.SymbolID, tree ast.TreeID) bool {
	if e.table.Get(macroDef).IsTermMacro() {
		return e.trees.IsTerm(tree)
	}
	return e.trees.IsType(tree)
}

// reportFreeSymbols reports, once per symbol, every free term or type the
// expansion refers to.
func (e *Engine) reportFreeSymbols(expandee, tree ast.TreeID) diag.Code {
	var cause diag.Code
	seen := make(map[symbols.SymbolID]struct{})
	pos := e.trees.Span(expandee)
	report := func(sym symbols.SymbolID, code diag.Code, what string) {
		if _, ok := seen[sym]; ok {
			return
		}
		seen[sym] = struct{}{}
		diag.ReportError(e.reporter, code, pos,
			fmt.Sprintf("macro expansion contains free %s variable %s", what, e.table.Name(sym))).Emit()
		if cause == 0 {
			cause = code
		}
	}
	e.trees.Foreach(tree, func(id ast.TreeID) {
		tr := e.trees.Get(id)
		if s := e.table.Get(tr.Sym); s.Has(symbols.FlagFree) {
			if s.Kind == symbols.SymbolClass || s.Kind == symbols.SymbolTypeParam {
				report(tr.Sym, diag.MacroFreeType, "type")
			} else {
				report(tr.Sym, diag.MacroFreeSymbol, "term")
			}
		}
		if tr.Type == types.NoTypeID {
			return
		}
		e.table.Types.Walk(tr.Type, func(tp types.TypeID) bool {
			if sym, ok := e.table.Types.Symbol(tp); ok && e.table.Get(symbols.SymbolID(sym)).Has(symbols.FlagFree) {
				report(symbols.SymbolID(sym), diag.MacroFreeType, "type")
			}
			return true
		})
	})
	return cause
}

func describeValue(v Value) string {
	switch r := v.(type) {
	case nil:
		return "nil"
	case ExprValue, TreeValue, *ExprValue, *TreeValue:
		return "a tree of the wrong role"
	default:
		return fmt.Sprintf("of type %T", r)
	}
}

func firstLines(s string, n int) string {
	lines := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines++
			if lines == n {
				return s[:i]
			}
		}
	}
	return s
}

func (e *Engine) show(tree ast.TreeID) string {
	return e.trees.Show(tree, e.table.TypeString)
}

func (e *Engine) logLite(format string, args ...any) {
	if e.opts.Debug >= DebugLite {
		log.WithField("depth", e.stack.Len()).Debugf(format, args...)
	}
}

func (e *Engine) logVerbose(format string, args ...any) {
	if e.opts.Debug >= DebugVerbose {
		log.WithField("depth", e.stack.Len()).Tracef(format, args...)
	}
}
