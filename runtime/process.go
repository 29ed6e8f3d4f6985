package runtime

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// Process abstracts the supervised build process for testing.
type Process interface {
	// Start launches the process. Stdout and stderr are merged into the
	// reader returned by Output.
	Start() error
	// Output returns the merged stdout/stderr stream.
	Output() io.Reader
	// Wait reaps the process and returns its exit code. Must be called
	// after Output has been drained: reaping closes the read side.
	Wait() (int, error)
	// Terminate asks the process tree to exit (SIGTERM).
	Terminate() error
	// Kill force-kills the process tree (SIGKILL).
	Kill() error
}

// ProcessFactory creates a Process for a shell command. Used for test injection.
type ProcessFactory func(command string) Process

// shellProcess runs a command through bash with stdout and stderr merged
// into a single pipe. The child is placed in its own process group so
// Terminate and Kill reach the whole build tree, not just the shell.
type shellProcess struct {
	cmd *exec.Cmd
	out *os.File
}

// NewShellProcess creates a Process that runs command via "bash -c".
func NewShellProcess(command string) Process {
	cmd := exec.Command("bash", "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return &shellProcess{cmd: cmd}
}

func (p *shellProcess) Start() error {
	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("failed to create output pipe: %w", err)
	}

	p.cmd.Stdout = pw
	p.cmd.Stderr = pw

	if err := p.cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return fmt.Errorf("failed to start build process: %w", err)
	}

	// The child holds its own copy of the write end. Closing ours makes the
	// read side reach EOF when the whole process tree exits.
	_ = pw.Close()
	p.out = pr
	return nil
}

func (p *shellProcess) Output() io.Reader {
	return p.out
}

func (p *shellProcess) Wait() (int, error) {
	if p.cmd.Process == nil {
		return 0, errors.New("process not started")
	}
	defer func() { _ = p.out.Close() }()

	err := p.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("wait failed: %w", err)
	}
	return 0, nil
}

func (p *shellProcess) Terminate() error {
	return p.signalGroup(syscall.SIGTERM)
}

func (p *shellProcess) Kill() error {
	return p.signalGroup(syscall.SIGKILL)
}

// signalGroup signals the whole process group. Falls back to the direct
// process if the group signal fails (e.g. the group is already gone).
func (p *shellProcess) signalGroup(sig syscall.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-p.cmd.Process.Pid, sig); err != nil {
		return p.cmd.Process.Signal(sig)
	}
	return nil
}
