package trace

import (
	"sync"
	"sync/atomic"
	"time"
)

var spanIDs atomic.Uint64

// depths remembers the nesting depth of open spans so children can be
// indented under their parent.
var depths sync.Map // uint64 -> int

// Span is an open span; End emits its closing event.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	depth   int
	scope   Scope
	name    string
	started time.Time
	extra   map[string]string
}

var inert = &Span{tracer: Nop}

// Begin opens a span under parent (0 for a root) when t records scope.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return inert
	}
	s := &Span{
		tracer:  t,
		id:      spanIDs.Add(1),
		parent:  parent,
		depth:   depthUnder(parent),
		scope:   scope,
		name:    name,
		started: time.Now(),
	}
	depths.Store(s.id, s.depth)
	t.Emit(s.event(KindSpanBegin, s.started, ""))
	return s
}

func depthUnder(parent uint64) int {
	if parent == 0 {
		return 0
	}
	if d, ok := depths.Load(parent); ok {
		return d.(int) + 1
	}
	return 1
}

func (s *Span) event(kind Kind, at time.Time, detail string) *Event {
	return &Event{
		Time:     at,
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		Depth:    s.depth,
		Name:     s.name,
		Detail:   detail,
	}
}

// End closes the span and returns its duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.id == 0 {
		return 0
	}
	now := time.Now()
	depths.Delete(s.id)
	ev := s.event(KindSpanEnd, now, detail)
	ev.Extra = s.extra
	s.tracer.Emit(ev)
	return now.Sub(s.started)
}

// WithExtra attaches key=value to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.id == 0 {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 2)
	}
	s.extra[key] = value
	return s
}

// ID returns the span id, 0 for spans that record nothing.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Point emits an instant event under parent.
func Point(t Tracer, scope Scope, name, detail string, parent uint64) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindPoint,
		Scope:    scope,
		ParentID: parent,
		Depth:    depthUnder(parent),
		Name:     name,
		Detail:   detail,
	})
}
