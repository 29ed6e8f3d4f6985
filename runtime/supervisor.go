// Package runtime implements the build supervision core: process lifecycle,
// output stream consumption, progress throttling and interruption handling.
package runtime

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ashwinrm/buildherald/log"
	"github.com/ashwinrm/buildherald/progress"
)

// ErrInterrupted is returned when an operator interrupt killed the build.
// This is the one path that skips all reporting: the caller exits the
// program without posting a success or failure message.
var ErrInterrupted = errors.New("build interrupted")

// DefaultGracePeriod is how long Terminate gets before Kill on interruption.
const DefaultGracePeriod = time.Second

// maxLineSize bounds a single output line. Build systems occasionally emit
// very long command lines; binary noise must not abort the stream either.
const maxLineSize = 1024 * 1024

// SpawnFailureExitCode stands in for an exit code when the process could not
// be started at all. Callers report it identically to a nonzero exit; the
// distinction only shows up in local logs.
const SpawnFailureExitCode = -1

// Hooks are the supervisor's outbound callbacks. All fields are optional.
type Hooks struct {
	// OnRawLine is invoked for every output line, after it has been written
	// to the persistent log and echoed to the console.
	OnRawLine func(line string)
	// OnStreamStart is invoked once, when the start marker appears.
	OnStreamStart func()
	// OnProgress is invoked for throttled progress events together with the
	// elapsed build duration.
	OnProgress func(ev progress.Event, elapsed time.Duration)
	// OnProgressDropped is invoked for progress events the throttle
	// suppressed. Used for accounting only.
	OnProgressDropped func(ev progress.Event)
}

// ExitOutcome is the result of a supervised build.
type ExitOutcome struct {
	// ExitCode is the process exit code, or SpawnFailureExitCode if the
	// process never started.
	ExitCode int
	// Duration is the total wall time from launch to reap.
	Duration time.Duration
	// PackagePath is the artifact path announced in the output stream,
	// empty if no package-complete marker was seen.
	PackagePath string
}

// Success reports whether the build exited cleanly.
func (o *ExitOutcome) Success() bool {
	return o.ExitCode == 0
}

// Config configures a Supervisor.
type Config struct {
	// LogPath is the persistent build log, overwritten per run and flushed
	// per line so it is inspectable regardless of outcome.
	LogPath string
	// StartMarker opens the progress latch (see progress.Parser).
	StartMarker string
	// UpdateInterval is the minimum time between two OnProgress invocations.
	UpdateInterval time.Duration
	// GracePeriod is the Terminate-to-Kill window on interruption.
	// Zero means DefaultGracePeriod.
	GracePeriod time.Duration
	// Console receives the echoed raw output. Defaults to os.Stdout.
	Console io.Writer
	// Logger receives structured supervisor events.
	Logger *log.Logger
	// Factory overrides process creation (for testing). Nil uses
	// NewShellProcess.
	Factory ProcessFactory
}

// Supervisor owns one build process at a time: it launches the command,
// consumes the merged output stream in arrival order, and coordinates the
// parser, throttle gate and hooks. A Supervisor must not be shared across
// concurrent builds; each session gets its own.
type Supervisor struct {
	config Config
	logger *log.Logger
	now    func() time.Time
}

// NewSupervisor creates a supervisor from the given config.
func NewSupervisor(config Config) *Supervisor {
	if config.Console == nil {
		config.Console = os.Stdout
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = DefaultGracePeriod
	}
	return &Supervisor{
		config: config,
		logger: config.Logger,
		now:    time.Now,
	}
}

// Run launches command and supervises it to completion.
//
// For each output line, strictly in arrival order: write to the persistent
// log, echo to the console, classify through the parser, and — if a progress
// event resulted and the throttle window allows — invoke OnProgress. The
// consuming loop blocks on the pipe while the build is quiet; there is no
// polling.
//
// On context cancellation the child process tree is terminated (SIGTERM,
// bounded grace, SIGKILL) and Run returns ErrInterrupted. A spawn failure
// returns an ExitOutcome with SpawnFailureExitCode and a nil error, so the
// caller reports it like any failed build.
func (s *Supervisor) Run(ctx context.Context, command string, hooks Hooks) (*ExitOutcome, error) {
	start := s.now()

	logFile, err := os.Create(s.config.LogPath)
	if err != nil {
		return nil, fmt.Errorf("cannot create build log %q: %w", s.config.LogPath, err)
	}
	defer func() { _ = logFile.Close() }()

	factory := s.config.Factory
	if factory == nil {
		factory = NewShellProcess
	}
	proc := factory(command)

	if err := proc.Start(); err != nil {
		s.logger.Error("failed to start build process", map[string]any{
			"command": command,
			"error":   err.Error(),
		})
		fmt.Fprintf(logFile, "spawn failure: %v\n", err)
		return &ExitOutcome{
			ExitCode: SpawnFailureExitCode,
			Duration: s.now().Sub(start),
		}, nil
	}

	s.logger.Info("build process started", map[string]any{"command": command})

	// Interruption watcher. Terminating the process tree closes the write
	// side of the output pipe, which unblocks the consuming loop below.
	// termDone lets the interruption return path wait until the child is
	// confirmed dead before the program exits.
	watchDone := make(chan struct{})
	termDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			s.terminate(proc)
			close(termDone)
		case <-watchDone:
		}
	}()

	parser := progress.NewParser(s.config.StartMarker)
	gate := progress.NewGate(s.config.UpdateInterval)
	packagePath := ""

	scanner := bufio.NewScanner(proc.Output())
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		raw := scanner.Text()

		fmt.Fprintln(logFile, raw)
		fmt.Fprintln(s.config.Console, raw)

		line := parser.Parse(raw)
		if hooks.OnRawLine != nil {
			hooks.OnRawLine(raw)
		}
		if line.StreamStart && hooks.OnStreamStart != nil {
			hooks.OnStreamStart()
		}
		if line.PackagePath != "" {
			packagePath = line.PackagePath
		}
		if line.Progress != nil {
			now := s.now()
			if gate.Allow(now) {
				if hooks.OnProgress != nil {
					hooks.OnProgress(*line.Progress, now.Sub(start))
				}
			} else if hooks.OnProgressDropped != nil {
				hooks.OnProgressDropped(*line.Progress)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		// A broken pipe mid-stream is not fatal on its own; the exit code
		// decides the outcome. Record it for the post-mortem.
		s.logger.Warn("output stream error", map[string]any{"error": err.Error()})
		fmt.Fprintf(logFile, "output stream error: %v\n", err)
	}

	exitCode, waitErr := proc.Wait()

	if ctx.Err() != nil {
		<-termDone
		s.logger.Warn("build interrupted by operator", nil)
		return nil, ErrInterrupted
	}

	if waitErr != nil {
		s.logger.Error("failed to reap build process", map[string]any{"error": waitErr.Error()})
		return &ExitOutcome{
			ExitCode:    SpawnFailureExitCode,
			Duration:    s.now().Sub(start),
			PackagePath: packagePath,
		}, nil
	}

	duration := s.now().Sub(start)
	s.logger.Info("build process exited", map[string]any{
		"exit_code": exitCode,
		"duration":  duration.String(),
	})

	return &ExitOutcome{
		ExitCode:    exitCode,
		Duration:    duration,
		PackagePath: packagePath,
	}, nil
}

// terminate gracefully stops the process tree: SIGTERM, a bounded grace
// period, then SIGKILL. Errors are ignored; the tree may already be gone.
func (s *Supervisor) terminate(proc Process) {
	_ = proc.Terminate()
	time.Sleep(s.config.GracePeriod)
	_ = proc.Kill()
}
