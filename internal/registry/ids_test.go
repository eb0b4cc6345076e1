package registry

import (
	"net"
	"strings"
	"testing"
)

func TestRandomNameShape(t *testing.T) {
	name := randomName(0)
	parts := strings.Split(name, "-")
	if len(parts) != 3 {
		t.Fatalf("expected adjective-adjective-noun, got %q", name)
	}
}

func TestPickIDFallsBackToCounterSuffixWhenExhausted(t *testing.T) {
	dir := t.TempDir()

	origA, origB, origN := adjectivesA, adjectivesB, nouns
	adjectivesA = []string{"only"}
	adjectivesB = []string{"choice"}
	nouns = []string{"option"}
	defer func() { adjectivesA, adjectivesB, nouns = origA, origB, origN }()

	base := randomName(0)
	entry := Entry{
		ID:          base,
		SocketPath:  socketPath(dir, base),
		sidecarPath: sidecarPath(dir, base),
	}
	if err := entry.writeSidecar(); err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("unix", entry.SocketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 256)
				conn.Read(buf)
				conn.Write([]byte(`{"rows":24,"cols":80}` + "\n"))
			}()
		}
	}()

	id, err := pickID(dir)
	if err != nil {
		t.Fatalf("pickID: %v", err)
	}
	if id == base {
		t.Fatalf("expected a suffixed id distinct from the taken %q", base)
	}
	if !strings.HasPrefix(id, base+"-") {
		t.Fatalf("expected id %q to carry the counter suffix form %q-N", id, base)
	}
}
