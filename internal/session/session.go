// Package session wires the PTY host, transparency bridge, terminal
// grid, control server, and registry into one running tapty instance.
// It follows h2's own Session/Daemon split in spirit — a single type
// owns the child's lifecycle and coordinates orderly shutdown — but
// narrowed to tapty's five components instead of the agent-harness
// machinery h2 built around the same idea.
package session

import (
	"context"
	"os"
	"time"

	libprm "github.com/nabbar/golib/file/perm"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	"golang.org/x/term"

	"tapty/internal/bridge"
	"tapty/internal/config"
	"tapty/internal/control"
	"tapty/internal/grid"
	"tapty/internal/ptyhost"
	"tapty/internal/registry"
)

// shutdownDrain bounds how long the control server gets to let
// in-flight subscriber connections notice the listener closing before
// Session forces the socket file away.
const shutdownDrain = 250 * time.Millisecond

// Session owns one running tapty instance: the spawned child, its PTY,
// the live grid, the control socket, and this process's registry
// entry. Run blocks until the child exits or the bridge's user<->child
// byte pump ends.
type Session struct {
	cfg    *config.Config
	logger liblog.Logger

	host    *ptyhost.Host
	bridge  *bridge.Bridge
	grid    *grid.Grid
	control *control.Server
	entry   registry.Entry
}

// Run spawns argv (or the user's shell when argv is empty), wires up
// the grid/control/registry plumbing, and forwards bytes until the
// child exits. It returns the exit code to propagate to the caller's
// own os.Exit.
func Run(argv []string) (int, error) {
	cfg, err := config.Load()
	if err != nil {
		return 0, err
	}
	logger := config.NewLogger()

	s := &Session{cfg: cfg, logger: logger}
	return s.run(argv)
}

func (s *Session) run(argv []string) (int, error) {
	rows, cols := initialSize()

	host, err := ptyhost.Spawn(argv, ptyhost.Winsize{Rows: rows, Cols: cols}, nil)
	if err != nil {
		return 0, err
	}
	s.host = host
	defer host.Close()

	// Registered before the listener and registry defers so that, on
	// the way out, termios is restored only after the control server
	// has stopped and the socket has been unlinked.
	s.bridge = &bridge.Bridge{}
	defer s.bridge.Restore()

	s.grid = grid.New(int(rows), int(cols), s.cfg.ScrollbackCapacity())

	dir, err := registry.Dir(s.cfg.RegistryDir)
	if err != nil {
		return 0, err
	}
	entry, lock, err := registry.Allocate(dir, host.Cmd.Path, host.Cmd.Args[1:])
	if err != nil {
		return 0, err
	}
	s.entry = entry

	injector := control.NewInjector()
	srv, err := control.New(entry.SocketPath, libprm.Perm(0o600), s.cfg.IdleTimeout, s.grid, injector, s.logger)
	if err != nil {
		_ = lock.Unlock()
		registry.Release(entry)
		return 0, err
	}
	s.control = srv
	_ = lock.Unlock()
	defer registry.Release(entry)

	go func() {
		if err := srv.Listen(context.Background()); err != nil && s.logger != nil {
			s.logger.Entry(loglvl.ErrorLevel, "control listener stopped").ErrorAdd(true, err).Log()
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownDrain)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	go s.pumpInjections(injector)

	waitCh := make(chan ptyhost.ExitStatus, 1)
	waitErrCh := make(chan error, 1)
	go func() {
		status, err := host.Wait()
		if err != nil {
			waitErrCh <- err
			return
		}
		waitCh <- status
	}()

	bridgeErr := make(chan error, 1)
	go func() {
		bridgeErr <- s.bridge.Run(os.Stdin, host.Master, s.onChildBytes, s.onResize)
	}()

	select {
	case status := <-waitCh:
		return status.Code, nil
	case err := <-waitErrCh:
		return 0, err
	case err := <-bridgeErr:
		// The byte pump ended (child's PTY went away or the user's
		// terminal errored) before Wait observed the exit; collect the
		// real exit status from the waiter so the code we propagate is
		// accurate.
		select {
		case status := <-waitCh:
			return status.Code, nil
		case <-waitErrCh:
			return 0, err
		}
	}
}

// onChildBytes feeds the grid and, for a headless session with no
// real terminal of its own, answers any OSC 10/11 color queries the
// child emitted. An attached session leaves that to the user's real
// terminal — bridge.Run already forwarded the query there verbatim —
// so tapty never injects a second, possibly conflicting, answer into
// the child's input. It runs on the bridge's child-read goroutine,
// the grid's single designated writer.
func (s *Session) onChildBytes(p []byte) {
	s.grid.Write(p)
	if !s.bridge.IsTerminal() {
		s.grid.RespondOSCColors(p, s.host.Master)
	}
}

// onResize propagates a user-terminal size change to both the PTY and
// the grid, keeping the kernel's notion of the window and the grid's
// model in lockstep.
func (s *Session) onResize(rows, cols uint16) {
	_ = s.host.Resize(ptyhost.Winsize{Rows: rows, Cols: cols})
	s.grid.Resize(int(rows), int(cols))
}

// pumpInjections drains the control server's injection queue into the
// PTY master, the single consumer the protocol promises.
func (s *Session) pumpInjections(injector *control.Injector) {
	for data := range injector.C() {
		if _, err := s.host.Master.Write(data); err != nil {
			return
		}
	}
}

// initialSize reads stdin's window size, falling back to a sane
// default when stdin isn't a terminal (e.g. piped or under a test
// harness).
func initialSize() (rows, cols uint16) {
	if cols, rows, err := term.GetSize(int(os.Stdin.Fd())); err == nil && rows > 0 && cols > 0 {
		return uint16(rows), uint16(cols)
	}
	return 24, 80
}
