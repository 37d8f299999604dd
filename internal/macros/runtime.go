package macros

import (
	"fmt"
	"runtime/debug"

	"macroexp/internal/ast"
	"macroexp/internal/symbols"
)

// Invocation is one call of an implementation. Args holds the argument
// lists flattened in order, with the type witnesses last.
type Invocation struct {
	Identity Identity
	Context  *Context
	Args     []Value
}

// Implementation is a resolved macro implementation.
type Implementation func(inv Invocation) (Value, error)

// Invoker resolves implementation identities into callables. Resolve
// returns an error matching ErrImplNotFound when the identity is unknown.
type Invoker interface {
	Resolve(id Identity) (Implementation, error)
}

// Registry is an in-memory Invoker.
type Registry struct {
	impls map[Identity]Implementation
}

func NewRegistry() *Registry {
	return &Registry{impls: make(map[Identity]Implementation)}
}

// Register binds a top-level implementation className.methodName.
func (r *Registry) Register(className, methodName string, impl Implementation) {
	r.impls[Identity{ClassName: className, MethodName: methodName}] = impl
}

// RegisterBundle binds a bundle implementation.
func (r *Registry) RegisterBundle(className, methodName string, impl Implementation) {
	r.impls[Identity{IsBundle: true, ClassName: className, MethodName: methodName}] = impl
}

func (r *Registry) Resolve(id Identity) (Implementation, error) {
	impl, ok := r.impls[id]
	if !ok {
		return nil, &ImplNotFoundError{Identity: id}
	}
	return guard(impl), nil
}

// guard turns panics raised by an implementation into errors.
func guard(impl Implementation) Implementation {
	return func(inv Invocation) (v Value, err error) {
		defer func() {
			if r := recover(); r != nil {
				v = nil
				err = &InvocationTargetError{Err: &PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()
		return impl(inv)
	}
}

// unimplemented is the runtime of macros bound to the ??? marker.
func unimplemented(inv Invocation) (Value, error) {
	return nil, &AbortError{Pos: inv.Context.Pos(), Msg: "macro implementation is missing"}
}

// FastTrackEntry is a built-in macro that bypasses bindings. Validate
// checks the shape of the call site in place of argument synthesis.
type FastTrackEntry struct {
	Validate func(trees *ast.Trees, expandee ast.TreeID) bool
	Expand   Implementation
}

// FastTrack maps macro definitions to built-in implementations.
type FastTrack struct {
	entries map[symbols.SymbolID]FastTrackEntry
}

func NewFastTrack() *FastTrack {
	return &FastTrack{entries: make(map[symbols.SymbolID]FastTrackEntry)}
}

func (f *FastTrack) Register(macroDef symbols.SymbolID, entry FastTrackEntry) {
	if entry.Validate == nil {
		entry.Validate = func(*ast.Trees, ast.TreeID) bool { return true }
	}
	f.entries[macroDef] = entry
}

func (f *FastTrack) Lookup(macroDef symbols.SymbolID) (FastTrackEntry, bool) {
	if f == nil {
		return FastTrackEntry{}, false
	}
	e, ok := f.entries[macroDef]
	return e, ok
}

func (f *FastTrack) Len() int {
	if f == nil {
		return 0
	}
	return len(f.entries)
}

type bindingEntry struct {
	binding Binding
	err     error
}

// bindingFor decodes (once per run) the binding persisted on macroDef.
func (e *Engine) bindingFor(macroDef symbols.SymbolID) (*Binding, error) {
	be, ok := e.bindings[macroDef]
	if !ok {
		b, err := LoadBinding(e.table, e.trees, macroDef)
		be = &bindingEntry{binding: b, err: err}
		e.bindings[macroDef] = be
	}
	if be.err != nil {
		return nil, be.err
	}
	return &be.binding, nil
}

// runtimeFor returns the implementation to run for macroDef. A nil
// implementation with a nil error means none could be loaded, either
// because macroDef carries no binding or because the invoker failed.
// Bytes that are present but do not decode are an error.
func (e *Engine) runtimeFor(macroDef symbols.SymbolID) (Implementation, error) {
	if entry, ok := e.fastTrackFor(macroDef); ok {
		return guard(entry.Expand), nil
	}
	if impl, ok := e.runtimes[macroDef]; ok {
		return impl, nil
	}
	if !e.table.Symbols.Bound(macroDef) {
		// no binding: same as an implementation that failed to load
		e.runtimes[macroDef] = nil
		return nil, nil
	}
	b, err := e.bindingFor(macroDef)
	if err != nil {
		return nil, err
	}
	var impl Implementation
	switch {
	case b.IsUnimplemented():
		impl = unimplemented
	case e.invoker != nil:
		resolved, err := e.invoker.Resolve(b.Identity())
		if err != nil {
			e.logLite("macro runtime failed to load: %v", err)
		} else {
			impl = resolved
		}
	}
	e.runtimes[macroDef] = impl
	return impl, nil
}

func (e *Engine) fastTrackFor(macroDef symbols.SymbolID) (FastTrackEntry, bool) {
	if e.opts.NoFastTrack {
		return FastTrackEntry{}, false
	}
	return e.fastTrack.Lookup(macroDef)
}

func (id Identity) exportName() string {
	if id.MethodName == "" {
		return ""
	}
	return fmt.Sprintf("%c%s", upper(id.MethodName[0]), id.MethodName[1:])
}

func upper(c byte) byte {
	if 'a' <= c && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
