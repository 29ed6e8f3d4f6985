// Package reposync runs repo tool synchronization before a build.
//
// Sync is best-effort: the aggressive invocation is tried first and a plain
// one on failure, but neither outcome stops the build. The caller only gets
// the elapsed time back for reporting.
package reposync

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/ashwinrm/buildherald/log"
)

// runCommand executes one sync invocation, wired to the console so repo's
// own progress output stays visible. Swapped out in tests.
var runCommand = func(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Syncer synchronizes the source tree.
type Syncer struct {
	jobs   int
	logger *log.Logger
}

// NewSyncer creates a syncer running with the given parallelism.
func NewSyncer(jobs int, logger *log.Logger) *Syncer {
	return &Syncer{jobs: jobs, logger: logger}
}

// Command returns the primary sync invocation, for reporting.
func (s *Syncer) Command() string {
	return fmt.Sprintf("repo sync -c -j%d --optimized-fetch --prune --force-sync --no-clone-bundle --no-tags", s.jobs)
}

// Sync runs the primary invocation and falls back to a plain sync when it
// fails. Returns the total elapsed time; the error is informational and
// reflects only the fallback's outcome.
func (s *Syncer) Sync(ctx context.Context) (time.Duration, error) {
	start := time.Now()

	jobs := fmt.Sprintf("-j%d", s.jobs)
	err := runCommand(ctx, "repo", "sync", "-c", jobs,
		"--optimized-fetch", "--prune", "--force-sync", "--no-clone-bundle", "--no-tags")
	if err != nil {
		s.logger.Warn("sync failed, retrying with plain invocation", map[string]any{
			"error": err.Error(),
		})
		err = runCommand(ctx, "repo", "sync", jobs)
	}

	elapsed := time.Since(start)
	if err != nil {
		s.logger.Warn("sync fallback failed", map[string]any{"error": err.Error()})
		return elapsed, fmt.Errorf("reposync: %w", err)
	}
	return elapsed, nil
}
