//go:build !windows

package launcher

import (
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

func sysProcAttr(detach bool) *syscall.SysProcAttr {
	if detach {
		return &syscall.SysProcAttr{Setsid: true}
	}
	return nil
}

// exitCode reports signal deaths as 128+n, like the shell.
func exitCode(err *exec.ExitError) int {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return err.ExitCode()
}

func startWithPTY(cmd *exec.Cmd, out io.Writer) (Process, error) {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, classifyStartError(cmd.Args[0], err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ptmx.Close()
		// Reading the master returns EIO once the child side is closed.
		_, _ = io.Copy(out, ptmx)
	}()

	return &execProcess{cmd: cmd, copy: done}, nil
}

// terminalForeground reports whether the launcher's process group is the
// foreground group of its controlling terminal. Only then does a terminal
// ctrl+c reach a non-tty child directly.
func terminalForeground() bool {
	tty, err := os.Open("/dev/tty")
	if err != nil {
		return false
	}
	defer tty.Close()

	pgrp, err := unix.IoctlGetInt(int(tty.Fd()), unix.TIOCGPGRP)
	if err != nil {
		return false
	}
	return pgrp == unix.Getpgrp()
}
