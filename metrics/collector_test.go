package metrics

import (
	"sync"
	"testing"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector("rom", "raven")

	for i := 0; i < 100; i++ {
		c.IncLineConsumed()
	}
	for i := 0; i < 10; i++ {
		c.IncProgressEvent()
	}
	c.IncEditSent()
	c.IncEditSent()
	for i := 0; i < 8; i++ {
		c.IncEditSuppressed()
	}
	c.IncNotifyFailure()
	for i := 0; i < 3; i++ {
		c.IncUploadAttempt()
	}
	c.IncUploadSuccess()
	c.IncUploadSuccess()
	c.IncUploadFailure()

	s := c.Snapshot()
	if s.LinesConsumed != 100 {
		t.Errorf("LinesConsumed = %d", s.LinesConsumed)
	}
	if s.ProgressEvents != 10 {
		t.Errorf("ProgressEvents = %d", s.ProgressEvents)
	}
	if s.EditsSent != 2 || s.EditsSuppressed != 8 {
		t.Errorf("edits = %d sent / %d suppressed", s.EditsSent, s.EditsSuppressed)
	}
	if s.NotifyFailures != 1 {
		t.Errorf("NotifyFailures = %d", s.NotifyFailures)
	}
	if s.UploadAttempts != 3 || s.UploadSuccesses != 2 || s.UploadFailures != 1 {
		t.Errorf("uploads = %d/%d/%d", s.UploadAttempts, s.UploadSuccesses, s.UploadFailures)
	}
	if s.Flavor != "rom" || s.Product != "raven" {
		t.Errorf("dimensions = (%q, %q)", s.Flavor, s.Product)
	}
}

func TestCollectorSnapshotIsolation(t *testing.T) {
	c := NewCollector("kernel", "gki_defconfig")
	c.IncLineConsumed()
	s := c.Snapshot()
	c.IncLineConsumed()

	if s.LinesConsumed != 1 {
		t.Errorf("snapshot mutated after creation: %d", s.LinesConsumed)
	}
	if c.Snapshot().LinesConsumed != 2 {
		t.Errorf("collector lost an increment")
	}
}

func TestNilCollectorSafe(t *testing.T) {
	var c *Collector
	c.IncLineConsumed()
	c.IncProgressEvent()
	c.IncEditSent()
	c.IncEditSuppressed()
	c.IncNotifyFailure()
	c.IncUploadAttempt()
	c.IncUploadSuccess()
	c.IncUploadFailure()

	if s := c.Snapshot(); s != (Snapshot{}) {
		t.Errorf("nil snapshot = %+v", s)
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector("rom", "raven")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c.IncLineConsumed()
			}
		}()
	}
	wg.Wait()

	if got := c.Snapshot().LinesConsumed; got != 8000 {
		t.Errorf("LinesConsumed = %d, want 8000", got)
	}
}
