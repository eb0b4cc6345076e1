// Package ptyhost owns the PTY master and the child process attached
// to its slave. It follows h2's virtualterminal package for the
// StartPTY/Resize shape, narrowed to exactly spawn+wait+resize: the
// VT parsing that vt.go bundled alongside PTY setup lives in
// internal/grid instead.
package ptyhost

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"

	"tapty/internal/errkind"
)

// Winsize mirrors pty.Winsize without exporting the creack/pty type
// directly, so callers outside this package never need that import.
type Winsize struct {
	Rows uint16
	Cols uint16
}

// ExitStatus classifies how the child process ended.
type ExitStatus struct {
	// Code is the process's exit code, or 128+signum when the child
	// was terminated by a signal.
	Code int
	// Signaled is true when Code encodes a signal termination.
	Signaled bool
	Signal   syscall.Signal
}

// Host owns a running child process and its PTY master.
type Host struct {
	Master *os.File
	Cmd    *exec.Cmd
}

// Spawn starts argv[0] with the remaining elements as arguments,
// attached to a new PTY sized per size. An empty argv spawns the
// user's login shell ($SHELL, falling back to /bin/sh).
func Spawn(argv []string, size Winsize, extraEnv map[string]string) (*Host, error) {
	if len(argv) == 0 {
		shell := os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/sh"
		}
		argv = []string{shell}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = os.Environ()
	for k, v := range extraEnv {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: size.Rows, Cols: size.Cols})
	if err != nil {
		return nil, errkind.Wrap(errkind.SetupFatal, err)
	}

	return &Host{Master: master, Cmd: cmd}, nil
}

// Resize updates the PTY's window size, which the kernel delivers to
// the child as SIGWINCH.
func (h *Host) Resize(size Winsize) error {
	if err := pty.Setsize(h.Master, &pty.Winsize{Rows: size.Rows, Cols: size.Cols}); err != nil {
		return errkind.Wrap(errkind.TransientIO, err)
	}
	return nil
}

// Wait blocks until the child exits and classifies its exit status.
func (h *Host) Wait() (ExitStatus, error) {
	err := h.Cmd.Wait()
	if err == nil {
		return ExitStatus{Code: 0}, nil
	}

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return ExitStatus{}, errkind.Wrap(errkind.ChildGone, err)
	}

	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		sig := ws.Signal()
		return ExitStatus{Code: 128 + int(sig), Signaled: true, Signal: sig}, nil
	}
	return ExitStatus{Code: exitErr.ExitCode()}, nil
}

// Close releases the PTY master. The child, if still running, will
// see EIO/SIGHUP on its next read.
func (h *Host) Close() error {
	return h.Master.Close()
}
