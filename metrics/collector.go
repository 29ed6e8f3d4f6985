// Package metrics provides per-build counters for the end-of-run summary.
//
// The Collector accumulates counters during a single supervised build. It is
// a leaf package with no internal dependencies. All increment methods are
// nil-receiver safe so instrumented code paths need no guards.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the build counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Ingestion
	LinesConsumed  int64
	ProgressEvents int64

	// Notifications
	EditsSent       int64
	EditsSuppressed int64
	NotifyFailures  int64

	// Uploads
	UploadAttempts  int64
	UploadSuccesses int64
	UploadFailures  int64

	// Dimensions (informational, set at construction)
	Flavor  string
	Product string
}

// Collector accumulates counters during a single build.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	linesConsumed  int64
	progressEvents int64

	editsSent       int64
	editsSuppressed int64
	notifyFailures  int64

	uploadAttempts  int64
	uploadSuccesses int64
	uploadFailures  int64

	flavor  string
	product string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(flavor, product string) *Collector {
	return &Collector{flavor: flavor, product: product}
}

// --- Ingestion ---

// IncLineConsumed records one line read from the build's output stream.
func (c *Collector) IncLineConsumed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.linesConsumed++
	c.mu.Unlock()
}

// IncProgressEvent records a line that parsed into a progress event.
func (c *Collector) IncProgressEvent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.progressEvents++
	c.mu.Unlock()
}

// --- Notifications ---

// IncEditSent records a status edit that passed the throttle.
func (c *Collector) IncEditSent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.editsSent++
	c.mu.Unlock()
}

// IncEditSuppressed records a progress event swallowed by the throttle.
func (c *Collector) IncEditSuppressed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.editsSuppressed++
	c.mu.Unlock()
}

// IncNotifyFailure records a notification call that exhausted its retries.
func (c *Collector) IncNotifyFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.notifyFailures++
	c.mu.Unlock()
}

// --- Uploads ---

// IncUploadAttempt records one (file, backend) upload attempt.
func (c *Collector) IncUploadAttempt() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.uploadAttempts++
	c.mu.Unlock()
}

// IncUploadSuccess records an upload attempt that produced a URL.
func (c *Collector) IncUploadSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.uploadSuccesses++
	c.mu.Unlock()
}

// IncUploadFailure records an upload attempt that did not produce a URL.
func (c *Collector) IncUploadFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.uploadFailures++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all counters.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		LinesConsumed:  c.linesConsumed,
		ProgressEvents: c.progressEvents,

		EditsSent:       c.editsSent,
		EditsSuppressed: c.editsSuppressed,
		NotifyFailures:  c.notifyFailures,

		UploadAttempts:  c.uploadAttempts,
		UploadSuccesses: c.uploadSuccesses,
		UploadFailures:  c.uploadFailures,

		Flavor:  c.flavor,
		Product: c.product,
	}
}
