package session

import (
	"time"

	"testing"

	"github.com/creack/pty"

	"tapty/internal/bridge"
	"tapty/internal/control"
	"tapty/internal/grid"
	"tapty/internal/ptyhost"
)

// Child bytes handed to onChildBytes reach the grid, exercised without
// a real controlling terminal, using a pty pair to stand in for the
// PTY master the way the bridge package's own tests do. A
// headless (zero-value) Bridge reports IsTerminal()==false, so this
// is also the "no real terminal to answer instead" case that earns
// tapty's own synthesized OSC response.
func TestOnChildBytesFeedsGridAndAnswersOSCQueryWhenHeadless(t *testing.T) {
	master, slave, err := pty.Open()
	if err != nil {
		t.Fatalf("pty.Open: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	s := &Session{
		grid:   grid.New(24, 80, 100),
		host:   &ptyhost.Host{Master: master},
		bridge: &bridge.Bridge{},
	}

	s.onChildBytes([]byte("\033]10;?\033\\hello"))

	row, col := s.grid.Cursor()
	if row != 0 || col != 5 {
		t.Fatalf("got cursor %d,%d, want 0,5 after writing %q", row, col, "hello")
	}

	master.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 64)
	n, err := master.Read(buf)
	if err != nil {
		t.Fatalf("reading OSC response: %v", err)
	}
	if n == 0 {
		t.Fatal("expected an OSC 10 color response to be written back")
	}
}

// When the bridge is attached to a real terminal, that terminal
// already saw and can answer the child's OSC query through the
// bridge's byte-exact forwarding; onChildBytes must not also inject a
// synthesized answer, or the child would see two conflicting replies.
func TestOnChildBytesSkipsOSCResponseWhenAttached(t *testing.T) {
	userMaster, userSlave, err := pty.Open()
	if err != nil {
		t.Fatalf("pty.Open: %v", err)
	}
	defer userMaster.Close()
	defer userSlave.Close()

	childMaster, childSlave, err := pty.Open()
	if err != nil {
		t.Fatalf("pty.Open: %v", err)
	}
	defer childSlave.Close()

	b := &bridge.Bridge{}
	done := make(chan error, 1)
	go func() { done <- b.Run(userSlave, childMaster, nil, nil) }()

	userSlave.Close()
	childMaster.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after both ends closed")
	}

	if !b.IsTerminal() {
		t.Fatal("expected a real pty slave to be detected as a terminal")
	}

	master2, slave2, err := pty.Open()
	if err != nil {
		t.Fatalf("pty.Open: %v", err)
	}
	defer master2.Close()
	defer slave2.Close()

	s := &Session{
		grid:   grid.New(24, 80, 100),
		host:   &ptyhost.Host{Master: master2},
		bridge: b,
	}
	s.onChildBytes([]byte("\033]10;?\033\\hello"))

	master2.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 64)
	n, err := master2.Read(buf)
	if err == nil {
		t.Fatalf("expected no OSC response to be written back, got %q", buf[:n])
	}
}

func TestOnResizeUpdatesGridDimensions(t *testing.T) {
	master, slave, err := pty.Open()
	if err != nil {
		t.Fatalf("pty.Open: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	s := &Session{
		grid: grid.New(24, 80, 100),
		host: &ptyhost.Host{Master: master},
	}

	s.onResize(40, 100)

	rows, cols := s.grid.Size()
	if rows != 40 || cols != 100 {
		t.Fatalf("got %dx%d, want 40x100", rows, cols)
	}
}

func TestPumpInjectionsWritesToMaster(t *testing.T) {
	master, slave, err := pty.Open()
	if err != nil {
		t.Fatalf("pty.Open: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	s := &Session{host: &ptyhost.Host{Master: master}}
	injector := control.NewInjector()
	go s.pumpInjections(injector)

	if err := injector.Send([]byte("ls\n")); err != nil {
		t.Fatal(err)
	}

	slave.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 16)
	n, err := slave.Read(buf)
	if err != nil {
		t.Fatalf("reading injected bytes: %v", err)
	}
	if string(buf[:n]) != "ls\n" {
		t.Fatalf("got %q, want %q", buf[:n], "ls\n")
	}
}
