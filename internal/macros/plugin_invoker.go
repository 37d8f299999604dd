package macros

import (
	"fmt"
	"path/filepath"
	"plugin"
)

// PluginInvoker loads implementations from Go plugins: the implementation
// className.methodName lives in <Dir>/<className>.so as the exported
// function MethodName (first letter upper-cased) of type Implementation.
type PluginInvoker struct {
	Dir     string
	plugins map[string]*plugin.Plugin
}

func NewPluginInvoker(dir string) *PluginInvoker {
	return &PluginInvoker{Dir: dir, plugins: make(map[string]*plugin.Plugin)}
}

func (p *PluginInvoker) Resolve(id Identity) (Implementation, error) {
	pl, err := p.open(id.ClassName)
	if err != nil {
		return nil, &ImplNotFoundError{Identity: id, Err: err}
	}
	name := id.exportName()
	sym, err := pl.Lookup(name)
	if err != nil {
		return nil, &ImplNotFoundError{Identity: id, Err: err}
	}
	var impl Implementation
	switch fn := sym.(type) {
	case func(Invocation) (Value, error):
		impl = fn
	case *Implementation:
		impl = *fn
	case *func(Invocation) (Value, error):
		impl = *fn
	default:
		return nil, &ImplNotFoundError{Identity: id, Err: fmt.Errorf("symbol %s has type %T", name, sym)}
	}
	return trampoline(guard(impl)), nil
}

func (p *PluginInvoker) open(className string) (*plugin.Plugin, error) {
	if pl, ok := p.plugins[className]; ok {
		return pl, nil
	}
	pl, err := plugin.Open(filepath.Join(p.Dir, className+".so"))
	if err != nil {
		return nil, err
	}
	p.plugins[className] = pl
	return pl, nil
}

// trampoline marks errors that crossed the plugin boundary so the engine
// reports their root cause.
func trampoline(impl Implementation) Implementation {
	return func(inv Invocation) (Value, error) {
		v, err := impl(inv)
		if err != nil {
			return nil, &InvocationTargetError{Err: err}
		}
		return v, nil
	}
}
