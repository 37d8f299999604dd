package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"macroexp/internal/ast"
	"macroexp/internal/config"
	"macroexp/internal/diag"
	"macroexp/internal/macros"
	"macroexp/internal/observ"
	"macroexp/internal/symbols"
	"macroexp/internal/trace"
)

// Session owns the state of one compilation run as far as macro expansion
// is concerned: the symbol universe, the tree arena, the expansion engine
// and the binding store that outlives the run.
type Session struct {
	Config    config.Config
	Universe  *symbols.Universe
	Trees     *ast.Trees
	Bag       *diag.Bag
	Registry  *macros.Registry
	FastTrack *macros.FastTrack
	Engine    *macros.Engine
	Store     *BindingStore
	Timer     *observ.Timer

	tracer trace.Tracer
	tcfg   trace.Config
	run    *trace.Span
}

// SessionOptions are the per-run inputs that do not come from macroexp.toml.
type SessionOptions struct {
	// Typer is the type checker driving expansion; it may be installed later
	// through Engine.SetTyper.
	Typer macros.Typer
	// MaxDiagnostics bounds the bag; zero means unbounded.
	MaxDiagnostics int
	// Timings enables phase timing.
	Timings bool
}

// NewSession prepares a run from cfg.
func NewSession(cfg config.Config, opts SessionOptions) (*Session, error) {
	tcfg, err := cfg.TracerConfig()
	if err != nil {
		return nil, err
	}
	tracer, err := trace.New(tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	store, err := OpenBindingStore(cfg.Store.Dir)
	if err != nil {
		_ = tracer.Close()
		return nil, fmt.Errorf("failed to open binding store: %w", err)
	}

	u := symbols.NewUniverse()
	s := &Session{
		Config:    cfg,
		Universe:  u,
		Trees:     ast.NewTrees(u.Strings, 0),
		Bag:       diag.NewBag(opts.MaxDiagnostics),
		Registry:  macros.NewRegistry(),
		FastTrack: macros.NewFastTrack(),
		Store:     store,
		tracer:    tracer,
		tcfg:      tcfg,
	}
	if opts.Timings {
		s.Timer = observ.NewTimer()
	}

	var invoker macros.Invoker = s.Registry
	if cfg.Macros.PluginDir != "" {
		invoker = chainInvoker{s.Registry, macros.NewPluginInvoker(cfg.Macros.PluginDir)}
	}
	s.run = trace.Begin(tracer, trace.ScopeRun, "session", 0)
	engineOpts := macros.Options{
		Typer:     opts.Typer,
		Invoker:   invoker,
		FastTrack: s.FastTrack,
		Reporter:  diag.BagReporter{Bag: s.Bag},
		Tracer:    tracer,
	}
	cfg.Apply(&engineOpts)
	s.Engine = macros.NewEngine(u.Table, s.Trees, engineOpts)

	switch engineOpts.Debug {
	case macros.DebugVerbose:
		raiseLogLevel(log.TraceLevel)
	case macros.DebugLite:
		raiseLogLevel(log.DebugLevel)
	}
	return s, nil
}

func raiseLogLevel(l log.Level) {
	if log.GetLevel() < l {
		log.SetLevel(l)
	}
}

// Define binds macroDef to the implementation reference rhs and persists
// the binding.
func (s *Session) Define(macroDef symbols.SymbolID, rhs ast.TreeID) (macros.Binding, error) {
	var b macros.Binding
	err := s.Timer.Measure("define", func() error {
		var err error
		b, err = macros.StoreBinding(s.Universe.Table, s.Trees, macroDef, rhs)
		if err != nil {
			return err
		}
		return s.Store.Put(s.Universe.FullName(macroDef), s.Universe.Get(macroDef).MacroImpl)
	})
	return b, err
}

// Restore attaches the persisted binding of macroDef, if any, marking the
// definition as a macro. It reports whether a binding was found.
func (s *Session) Restore(macroDef symbols.SymbolID) (bool, error) {
	sym := s.Universe.Get(macroDef)
	if sym == nil {
		return false, fmt.Errorf("unknown macro definition %d", macroDef)
	}
	name := s.Universe.FullName(macroDef)
	data, ok, err := s.Store.Get(name)
	if err != nil || !ok {
		return false, err
	}
	sym.MacroImpl = data
	sym.Flags |= symbols.FlagMacro
	log.WithField("macro", name).Debug("restored macro binding")
	return true, nil
}

// ExpandAll sweeps root for delayed sites that can expand now.
func (s *Session) ExpandAll(root ast.TreeID) (ast.TreeID, error) {
	out := root
	err := s.Timer.Measure("expand-all", func() error {
		var err error
		out, err = s.Engine.ExpandAll(root)
		return err
	})
	return out, err
}

// Finish ends the run: it records timings, dumps the trace ring when the
// run had errors, resets the engine and closes the tracer. The diagnostics
// stay in Bag.
func (s *Session) Finish() error {
	if s.Timer != nil {
		appendTimingDiagnostic(s.Bag, timingPayload{Kind: "session", Path: s.Config.Path, Report: s.Timer.Report()})
	}
	errs := s.Engine.Errors()
	s.run.WithExtra("errors", strconv.Itoa(errs)).End("")
	log.WithFields(log.Fields{
		"errors": errs,
		"macros": len(s.Universe.Symbols.MacroDefs()),
	}).Debug("macro session finished")
	s.Engine.Reset()

	var dumpErr error
	// a plain ring has shown nothing so far
	if ring, ok := s.tracer.(*trace.RingTracer); ok && errs > 0 {
		dumpErr = s.dumpTrace(ring)
	}
	return errors.Join(dumpErr, s.tracer.Close())
}

func (s *Session) dumpTrace(d trace.Dumper) error {
	w, format, err := trace.OpenDumpOutput(s.tcfg)
	if err != nil {
		return err
	}
	err = d.Dump(w, format)
	if c, ok := w.(io.Closer); ok && w != os.Stderr {
		err = errors.Join(err, c.Close())
	}
	return err
}

// chainInvoker resolves through each invoker in turn until one knows the
// implementation.
type chainInvoker []macros.Invoker

func (c chainInvoker) Resolve(id macros.Identity) (macros.Implementation, error) {
	for _, inv := range c {
		impl, err := inv.Resolve(id)
		if errors.Is(err, macros.ErrImplNotFound) {
			continue
		}
		return impl, err
	}
	return nil, fmt.Errorf("%w: %s", macros.ErrImplNotFound, id)
}
