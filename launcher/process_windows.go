//go:build windows

package launcher

import (
	"io"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
)

func sysProcAttr(detach bool) *syscall.SysProcAttr {
	return nil
}

func exitCode(err *exec.ExitError) int {
	return err.ExitCode()
}

func startWithPTY(cmd *exec.Cmd, out io.Writer) (Process, error) {
	return nil, errors.New("tty profiles are not supported on windows")
}

// Interrupts cannot be forwarded to a child on windows.
func terminalForeground() bool {
	return true
}
