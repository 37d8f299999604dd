package trace

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// leveled carries the level shared by every tracer and the sequence
// counter it stamps events with.
type leveled struct {
	level Level
	seq   atomic.Uint64
}

func (l *leveled) Level() Level    { return l.level }
func (l *leveled) Enabled() bool   { return l.level > LevelOff }
func (l *leveled) stamp(ev *Event) { ev.Seq = l.seq.Add(1) }

// StreamTracer writes every event as soon as it is emitted.
type StreamTracer struct {
	leveled
	mu     sync.Mutex
	w      io.Writer
	format Format
}

func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	return &StreamTracer{leveled: leveled{level: level}, w: w, format: formatFor(format, "")}
}

func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stamp(ev)
	// ошибки записи трассы не должны ломать раскрытие
	_, _ = t.w.Write(FormatEvent(ev, t.format))
}

func (t *StreamTracer) Flush() error {
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close flushes and closes the writer unless it is stderr, which is shared
// with diagnostics.
func (t *StreamTracer) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}
	if t.w == os.Stderr {
		return nil
	}
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Dumper is implemented by tracers that keep events for later output.
type Dumper interface {
	Dump(w io.Writer, format Format) error
}

// RingTracer keeps the last events in a circular buffer.
type RingTracer struct {
	leveled
	mu     sync.RWMutex
	events []Event
	head   int
	full   bool
}

// NewRingTracer creates a ring of capacity events (4096 when capacity <= 0).
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = defaultRingSize
	}
	return &RingTracer{leveled: leveled{level: level}, events: make([]Event, capacity)}
}

func (t *RingTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	stored := *ev
	t.stamp(&stored)
	t.events[t.head] = stored
	t.head = (t.head + 1) % len(t.events)
	t.full = t.full || t.head == 0
}

// Snapshot returns the stored events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.full {
		return append([]Event(nil), t.events[:t.head]...)
	}
	out := make([]Event, 0, len(t.events))
	out = append(out, t.events[t.head:]...)
	return append(out, t.events[:t.head]...)
}

func (t *RingTracer) Dump(w io.Writer, format Format) error {
	format = formatFor(format, "")
	for _, ev := range t.Snapshot() {
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error { return nil }
func (t *RingTracer) Close() error { return nil }

// MultiTracer fans events out to several tracers.
type MultiTracer struct {
	leveled
	tracers []Tracer
}

func NewMultiTracer(level Level, tracers ...Tracer) *MultiTracer {
	return &MultiTracer{leveled: leveled{level: level}, tracers: tracers}
}

func (t *MultiTracer) Emit(ev *Event) {
	for _, tr := range t.tracers {
		cp := *ev
		tr.Emit(&cp)
	}
}

// Dump writes the first ring among the tracers.
func (t *MultiTracer) Dump(w io.Writer, format Format) error {
	for _, tr := range t.tracers {
		if d, ok := tr.(Dumper); ok {
			return d.Dump(w, format)
		}
	}
	return nil
}

func (t *MultiTracer) Flush() error { return t.each(Tracer.Flush) }
func (t *MultiTracer) Close() error { return t.each(Tracer.Close) }

func (t *MultiTracer) each(fn func(Tracer) error) error {
	var first error
	for _, tr := range t.tracers {
		if err := fn(tr); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type nopTracer struct{}

func (nopTracer) Emit(*Event)  {}
func (nopTracer) Flush() error  { return nil }
func (nopTracer) Close() error  { return nil }
func (nopTracer) Level() Level  { return LevelOff }
func (nopTracer) Enabled() bool { return false }

// Nop discards everything.
var Nop Tracer = nopTracer{}
