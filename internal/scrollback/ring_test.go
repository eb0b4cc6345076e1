package scrollback

import (
	"fmt"
	"reflect"
	"testing"
)

func TestRingEvictsOldestOnOverflow(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Push(fmt.Sprintf("line-%d", i))
	}
	got := r.Lines(0)
	want := []string{"line-2", "line-3", "line-4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Lines(0) = %v, want %v", got, want)
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
}

func TestRingLinesTailN(t *testing.T) {
	r := NewRing(10)
	for i := 0; i < 5; i++ {
		r.Push(fmt.Sprintf("line-%d", i))
	}
	got := r.Lines(2)
	want := []string{"line-3", "line-4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Lines(2) = %v, want %v", got, want)
	}
}

func TestRingZeroCapacityClampedToOne(t *testing.T) {
	r := NewRing(0)
	r.Push("a")
	r.Push("b")
	if got := r.Lines(0); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("Lines(0) = %v, want [b]", got)
	}
}

func TestStripANSIRemovesCSIAndOSC(t *testing.T) {
	in := "\x1b[1;32mhello\x1b[0m \x1b]0;title\x07world"
	got := StripANSI(in)
	want := "hello world"
	if got != want {
		t.Fatalf("StripANSI(%q) = %q, want %q", in, got, want)
	}
}

func TestStripANSIPassesPlainText(t *testing.T) {
	if got := StripANSI("plain text"); got != "plain text" {
		t.Fatalf("StripANSI passthrough = %q", got)
	}
}
