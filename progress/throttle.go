package progress

import "time"

// ShouldEmit decides whether a progress event at eventTime may trigger an
// outbound notification edit, given the time of the last emission and the
// minimum interval between edits.
//
// The comparison is strictly greater-than: an event landing exactly
// minInterval after the last emission is suppressed. The caller updates
// lastEmit only when ShouldEmit returns true. With lastEmit at the zero
// value, the first event after stream start is always eligible.
//
// This is a rate limit, not a debounce: suppressed events are dropped, never
// delayed or batched. Only the latest state matters for a status display.
func ShouldEmit(eventTime, lastEmit time.Time, minInterval time.Duration) bool {
	return eventTime.Sub(lastEmit) > minInterval
}

// Gate bundles ShouldEmit with the last-emission bookkeeping for callers
// that process a live event stream. Not safe for concurrent use.
type Gate struct {
	minInterval time.Duration
	lastEmit    time.Time
}

// NewGate creates a gate with the given minimum interval between emissions.
func NewGate(minInterval time.Duration) *Gate {
	return &Gate{minInterval: minInterval}
}

// Allow reports whether an event at now may be emitted, and records the
// emission time when it is.
func (g *Gate) Allow(now time.Time) bool {
	if !ShouldEmit(now, g.lastEmit, g.minInterval) {
		return false
	}
	g.lastEmit = now
	return true
}

// LastEmit returns the time of the last allowed emission, zero if none.
func (g *Gate) LastEmit() time.Time {
	return g.lastEmit
}
