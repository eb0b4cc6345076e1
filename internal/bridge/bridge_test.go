package bridge

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
)

// openPair returns a pty master/slave pair standing in for a real
// controlling terminal, the way h2's own tests exercise VT plumbing
// without a real tty attached to the test process.
func openPair(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	master, slave, err := pty.Open()
	if err != nil {
		t.Fatalf("pty.Open: %v", err)
	}
	t.Cleanup(func() {
		master.Close()
		slave.Close()
	})
	return master, slave
}

func TestRunForwardsChildBytesToUserAndSink(t *testing.T) {
	userMaster, userSlave := openPair(t)
	childMaster, childSlave := openPair(t)

	sink := make(chan []byte, 16)
	var b Bridge

	done := make(chan error, 1)
	go func() {
		done <- b.Run(userSlave, childMaster, func(chunk []byte) {
			sink <- chunk
		}, nil)
	}()

	if _, err := childSlave.Write([]byte("hello from child")); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 64)
	userMaster.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := userMaster.Read(buf)
	if err != nil {
		t.Fatalf("reading forwarded bytes: %v", err)
	}
	if string(buf[:n]) != "hello from child" {
		t.Fatalf("got %q, want %q", buf[:n], "hello from child")
	}

	select {
	case chunk := <-sink:
		if string(chunk) != "hello from child" {
			t.Fatalf("sink got %q, want %q", chunk, "hello from child")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sink did not receive the child's bytes")
	}

	childSlave.Close()
	childMaster.Close()
	userSlave.Close()
	userMaster.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after both ends closed")
	}
}

func TestRunForwardsUserBytesToChild(t *testing.T) {
	userMaster, userSlave := openPair(t)
	childMaster, childSlave := openPair(t)

	var b Bridge
	done := make(chan error, 1)
	go func() {
		done <- b.Run(userSlave, childMaster, nil, nil)
	}()

	if _, err := userMaster.Write([]byte("typed input")); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 64)
	childSlave.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := childSlave.Read(buf)
	if err != nil {
		t.Fatalf("reading bytes on child side: %v", err)
	}
	if string(buf[:n]) != "typed input" {
		t.Fatalf("got %q, want %q", buf[:n], "typed input")
	}

	childSlave.Close()
	childMaster.Close()
	userSlave.Close()
	userMaster.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRestoreIsIdempotent(t *testing.T) {
	var b Bridge
	b.restore()
	b.Restore()
	b.Restore()
}

func TestIsBenignIOError(t *testing.T) {
	if !isBenignIOError(io.EOF) {
		t.Fatal("EOF should be benign")
	}
	if isBenignIOError(nil) {
		t.Fatal("nil should not be benign")
	}
}
