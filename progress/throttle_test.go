package progress

import (
	"testing"
	"time"
)

func TestShouldEmit_WindowSequence(t *testing.T) {
	// Events at t, t+5, t+20 with a 15s window: emit, suppress, emit.
	base := time.Unix(1000, 0)
	minInterval := 15 * time.Second

	var lastEmit time.Time

	if !ShouldEmit(base, lastEmit, minInterval) {
		t.Fatal("first event should emit")
	}
	lastEmit = base

	if ShouldEmit(base.Add(5*time.Second), lastEmit, minInterval) {
		t.Error("event at t+5 should be suppressed")
	}

	if !ShouldEmit(base.Add(20*time.Second), lastEmit, minInterval) {
		t.Error("event at t+20 should emit")
	}
}

func TestShouldEmit_ExactBoundarySuppresses(t *testing.T) {
	// Difference exactly equal to the interval must suppress (strict >).
	base := time.Unix(1000, 0)
	minInterval := 15 * time.Second

	if ShouldEmit(base.Add(minInterval), base, minInterval) {
		t.Error("event exactly at the window boundary should be suppressed")
	}
	if !ShouldEmit(base.Add(minInterval+time.Nanosecond), base, minInterval) {
		t.Error("event just past the boundary should emit")
	}
}

func TestShouldEmit_ZeroLastEmitAlwaysEligible(t *testing.T) {
	// With no prior emission the first event is eligible immediately.
	if !ShouldEmit(time.Unix(0, 1), time.Time{}, time.Hour) {
		t.Error("first event with zero lastEmit should emit")
	}
}

func TestGate(t *testing.T) {
	base := time.Unix(1000, 0)
	g := NewGate(15 * time.Second)

	if !g.Allow(base) {
		t.Fatal("first event should pass the gate")
	}
	if g.Allow(base.Add(5 * time.Second)) {
		t.Error("event inside the window should be blocked")
	}
	// A blocked event must not advance the window.
	if !g.LastEmit().Equal(base) {
		t.Errorf("LastEmit = %v, want %v", g.LastEmit(), base)
	}
	if !g.Allow(base.Add(20 * time.Second)) {
		t.Error("event past the window should pass")
	}
	if !g.LastEmit().Equal(base.Add(20 * time.Second)) {
		t.Errorf("LastEmit not advanced after allowed emission")
	}
}

func TestGate_HighFrequencyUpstream(t *testing.T) {
	// At most one emission per window regardless of upstream rate.
	base := time.Unix(0, 0)
	g := NewGate(15 * time.Second)

	emitted := 0
	for i := 0; i < 600; i++ { // one event per 100ms for a minute
		if g.Allow(base.Add(time.Duration(i) * 100 * time.Millisecond)) {
			emitted++
		}
	}
	// 60s of events with a 15s window: first at t=0, then t=15.1, 30.2, 45.3.
	if emitted != 4 {
		t.Errorf("emitted %d updates, want 4", emitted)
	}
}
