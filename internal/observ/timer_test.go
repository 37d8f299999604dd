package observ

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeClock advances by step on every reading.
func fakeClock(step time.Duration) func() time.Time {
	cur := time.Unix(0, 0)
	return func() time.Time {
		cur = cur.Add(step)
		return cur
	}
}

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	tm.now = fakeClock(time.Millisecond)

	idx := tm.Begin("decode")
	tm.End(idx, "3 files")
	err := tm.Measure("expand-all", func() error { return errors.New("stop") })
	if err == nil || err.Error() != "stop" {
		t.Fatalf("Measure should return the phase error, got %v", err)
	}
	tm.End(42, "ignored")

	report := tm.Report()
	if len(report.Phases) != 2 || tm.Len() != 2 {
		t.Fatalf("expected two phases, got %+v", report.Phases)
	}
	if report.Phases[0].DurationMS != 1 || report.Phases[0].Note != "3 files" {
		t.Fatalf("unexpected first phase %+v", report.Phases[0])
	}
	if report.Phases[1].Note != "failed: stop" {
		t.Fatalf("unexpected note %q", report.Phases[1].Note)
	}
	if report.TotalMS != 2 {
		t.Fatalf("unexpected total %v", report.TotalMS)
	}

	summary := tm.Summary()
	for _, want := range []string{"timings:", "decode", "// 3 files", "total"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary lacks %q:\n%s", want, summary)
		}
	}
}

func TestNilTimer(t *testing.T) {
	var tm *Timer
	ran := false
	if err := tm.Measure("x", func() error { ran = true; return nil }); err != nil || !ran {
		t.Fatalf("nil timer should still run the phase")
	}
	if tm.Len() != 0 || len(tm.Report().Phases) != 0 {
		t.Fatalf("nil timer records nothing")
	}
}
