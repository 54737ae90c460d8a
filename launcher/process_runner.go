package launcher

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// Exit codes used when the launcher itself, not the program, fails. They
// follow the shell's conventions.
const (
	ExitLauncherError = 1
	ExitNotExecutable = 126
	ExitNotFound      = 127
)

var (
	ErrCommandNotFound = errors.New("command not found")
	ErrNotExecutable   = errors.New("command not executable")
)

// ProcessSpec describes a single child process.
type ProcessSpec struct {
	Dir  string
	Argv []string
	Env  []string
	// Output receives stdout and stderr through one shared descriptor so the
	// log holds both streams in the order they were produced.
	Output io.Writer
	TTY    bool
	Detach bool
}

// Process is a started child.
type Process interface {
	Pid() int
	Signal(sig os.Signal) error
	// Wait blocks until the child exits and returns its exit code. A non-zero
	// exit is not an error.
	Wait() (int, error)
	// Release detaches the launcher from the child without waiting.
	Release() error
}

// ProcessRunner interface for dependency injection and improved testability
type ProcessRunner interface {
	Start(ctx context.Context, spec ProcessSpec) (Process, error)
}

// RealProcessRunner implements ProcessRunner interface using actual OS calls
type RealProcessRunner struct{}

func (RealProcessRunner) Start(ctx context.Context, spec ProcessSpec) (Process, error) {
	if len(spec.Argv) == 0 {
		return nil, errors.New("empty argv")
	}

	var cmd *exec.Cmd
	if spec.Detach {
		// A detached child must outlive the launcher's context.
		cmd = exec.Command(spec.Argv[0], spec.Argv[1:]...)
	} else {
		cmd = exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	}
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.SysProcAttr = sysProcAttr(spec.Detach)

	if spec.TTY && !spec.Detach {
		return startWithPTY(cmd, spec.Output)
	}

	cmd.Stdout = spec.Output
	cmd.Stderr = spec.Output

	if err := cmd.Start(); err != nil {
		return nil, classifyStartError(spec.Argv[0], err)
	}

	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	copy chan struct{} // closed when pty output has been drained
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func (p *execProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if p.copy != nil {
		<-p.copy
	}
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitCode(exitErr), nil
	}
	return ExitLauncherError, errors.Wrap(err, "failed waiting for process")
}

func (p *execProcess) Release() error { return p.cmd.Process.Release() }

// classifyStartError maps exec failures onto the shell's 127/126 codes.
func classifyStartError(program string, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return errors.Wrapf(ErrCommandNotFound, "%s: %v", program, err)
	case errors.Is(err, os.ErrPermission):
		return errors.Wrapf(ErrNotExecutable, "%s: %v", program, err)
	default:
		return errors.Wrapf(err, "failed to start %s", program)
	}
}

// StartExitCode returns the exit status a shell would report for a start error.
func StartExitCode(err error) int {
	switch {
	case errors.Is(err, ErrCommandNotFound):
		return ExitNotFound
	case errors.Is(err, ErrNotExecutable):
		return ExitNotExecutable
	default:
		return ExitLauncherError
	}
}
