// Package upload pushes build artifacts to file-hosting backends.
//
// Backends are independent: one failing never blocks the others, and a
// failure yields a Result with Failed set rather than an error. Overall
// success for a file means at least one backend returned a URL.
package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ashwinrm/buildherald/log"
)

// DefaultTimeout bounds a single backend upload. Artifacts run to a few
// gigabytes over slow links, so this is generous.
const DefaultTimeout = 10 * time.Minute

// Backend is one file-hosting upload target.
type Backend interface {
	// Name identifies the backend in results and link buttons.
	Name() string
	// Upload pushes the file at path and returns its shareable URL.
	Upload(ctx context.Context, path string) (string, error)
}

// Result is the outcome of one (file, backend) attempt.
type Result struct {
	// Backend is the backend name.
	Backend string
	// URL is the shareable link, empty when Failed.
	URL string
	// Failed is true if the attempt did not produce a URL.
	Failed bool
}

// StatusError is returned for non-2xx HTTP responses from a backend or the
// notification API. Carrying the code lets callers log something useful.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Dispatcher fans one file out to all configured backends.
type Dispatcher struct {
	backends []Backend
	logger   *log.Logger
}

// NewDispatcher creates a dispatcher over the given backends. The first
// backend is conventionally the primary one, but dispatch itself treats
// them uniformly; the caller decides what gates success.
func NewDispatcher(logger *log.Logger, backends ...Backend) *Dispatcher {
	return &Dispatcher{backends: backends, logger: logger}
}

// Backends reports the number of configured backends.
func (d *Dispatcher) Backends() int {
	return len(d.backends)
}

// UploadAll attempts path against every backend. Attempts run concurrently
// as a latency optimization; the result slice is indexed by configured
// backend order, so aggregation stays order-independent of completion.
// Errors never escape: a failed attempt becomes a Failed result.
func (d *Dispatcher) UploadAll(ctx context.Context, path string) []Result {
	results := make([]Result, len(d.backends))

	var wg sync.WaitGroup
	for i, backend := range d.backends {
		wg.Add(1)
		go func(i int, backend Backend) {
			defer wg.Done()
			url, err := backend.Upload(ctx, path)
			if err != nil {
				d.logger.Warn("upload failed", map[string]any{
					"backend": backend.Name(),
					"file":    path,
					"error":   err.Error(),
				})
				results[i] = Result{Backend: backend.Name(), Failed: true}
				return
			}
			d.logger.Info("upload complete", map[string]any{
				"backend": backend.Name(),
				"file":    path,
				"url":     url,
			})
			results[i] = Result{Backend: backend.Name(), URL: url}
		}(i, backend)
	}
	wg.Wait()

	return results
}

// Succeeded reports whether at least one backend returned a URL.
func Succeeded(results []Result) bool {
	for _, r := range results {
		if !r.Failed {
			return true
		}
	}
	return false
}

// Links filters the successful results, preserving backend order.
func Links(results []Result) []Result {
	var ok []Result
	for _, r := range results {
		if !r.Failed {
			ok = append(ok, r)
		}
	}
	return ok
}
