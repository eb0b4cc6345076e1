// Package bridge copies bytes between the user's real terminal and a
// ptyhost.Host's PTY master, byte-exact in both directions, while
// tapping the child->user stream for the grid parser and propagating
// window-size changes. It follows the raw-mode/SIGWINCH plumbing in
// h2's overlay package, collapsed into a single reusable type instead
// of being interleaved with UI rendering.
package bridge

import (
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"tapty/internal/errkind"
)

// Bridge owns the raw-mode lifecycle of userTTY and the two copy
// goroutines that shuttle bytes to and from a child process.
type Bridge struct {
	restoreOnce sync.Once
	state       *term.State
	fd          int
	isTerminal  bool
}

// Run saves userTTY's termios (when it is a real terminal), puts it
// into raw mode, and copies bytes bidirectionally with master until
// either copy direction ends (EOF, EIO, or another I/O error), returning
// that direction's result. onChildBytes is called
// with every chunk read from master, after it has already been
// written to userTTY — it must not block or retain the slice.
//
// SIGWINCH is watched for the lifetime of the call (terminal mode
// only) and, on each coalesced signal, userTTY's current size is
// fetched and passed to onResize so the caller can propagate it to
// both the PTY and the grid.
func (b *Bridge) Run(userTTY *os.File, master *os.File, onChildBytes func([]byte), onResize func(rows, cols uint16)) error {
	b.fd = int(userTTY.Fd())
	b.isTerminal = isatty.IsTerminal(userTTY.Fd()) || isatty.IsCygwinTerminal(userTTY.Fd())

	if b.isTerminal {
		state, err := term.MakeRaw(b.fd)
		if err != nil {
			return errkind.Wrap(errkind.SetupFatal, err)
		}
		b.state = state
		defer b.restore()
	}

	var sigCh chan os.Signal
	if b.isTerminal && onResize != nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGWINCH)
		defer signal.Stop(sigCh)
		go b.watchResize(sigCh, onResize)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- copyUserToChild(master, userTTY) }()
	go func() { errCh <- copyChildToUser(userTTY, master, onChildBytes) }()

	err := <-errCh
	return err
}

// restore puts userTTY back into cooked mode exactly once, safe to
// call from a deferred panic-recovery path as well as normal return.
func (b *Bridge) restore() {
	b.restoreOnce.Do(func() {
		if b.state != nil {
			_ = term.Restore(b.fd, b.state)
		}
	})
}

// Restore is the exported form of restore, for callers (session
// shutdown) that need to force cooked mode before Run has returned
// (e.g. the child exited and the read side is blocked on the user's
// keyboard).
func (b *Bridge) Restore() { b.restore() }

// IsTerminal reports whether userTTY was a real terminal for the most
// recent Run call — false for a headless/piped invocation, which
// never got raw mode or SIGWINCH handling either.
func (b *Bridge) IsTerminal() bool { return b.isTerminal }

func (b *Bridge) watchResize(sigCh <-chan os.Signal, onResize func(rows, cols uint16)) {
	for range sigCh {
		// Drain any additional signals queued while we were already
		// handling one, collapsing a burst into a single resize.
		drained := true
		for drained {
			select {
			case <-sigCh:
			default:
				drained = false
			}
		}
		cols, rows, err := term.GetSize(b.fd)
		if err != nil || rows <= 0 || cols <= 0 {
			continue
		}
		onResize(uint16(rows), uint16(cols))
	}
}

func copyUserToChild(master, userTTY *os.File) error {
	_, err := io.Copy(master, userTTY)
	if isBenignIOError(err) {
		return nil
	}
	if err != nil {
		return errkind.Wrap(errkind.ChildGone, err)
	}
	return nil
}

func copyChildToUser(userTTY, master *os.File, onChildBytes func([]byte)) error {
	buf := make([]byte, 4096)
	for {
		n, err := master.Read(buf)
		if n > 0 {
			if _, werr := userTTY.Write(buf[:n]); werr != nil {
				return errkind.Wrap(errkind.TransientIO, werr)
			}
			if onChildBytes != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				onChildBytes(chunk)
			}
		}
		if err != nil {
			if isBenignIOError(err) {
				return nil
			}
			return errkind.Wrap(errkind.ChildGone, err)
		}
	}
}

func isBenignIOError(err error) bool {
	if err == nil {
		return false
	}
	if err == io.EOF {
		return true
	}
	if pathErr, ok := err.(*os.PathError); ok {
		return pathErr.Err == syscall.EIO
	}
	return false
}
