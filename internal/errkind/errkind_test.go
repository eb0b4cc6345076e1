package errkind

import (
	"errors"
	"testing"

	liberr "github.com/nabbar/golib/errors"
)

func TestWrapAndIs(t *testing.T) {
	base := errors.New("boom")
	wrapped := Wrap(ChildGone, base)

	if !Is(wrapped, ChildGone) {
		t.Fatalf("expected wrapped error to be kind ChildGone")
	}
	if Is(wrapped, Protocol) {
		t.Fatalf("did not expect wrapped error to be kind Protocol")
	}
}

func TestIsOnPlainError(t *testing.T) {
	if Is(errors.New("plain"), SetupFatal) {
		t.Fatalf("plain errors should never match a kind")
	}
}

func TestNameCoversAllKinds(t *testing.T) {
	kinds := []struct {
		kind liberr.CodeError
		name string
	}{
		{SetupFatal, "setup_fatal"},
		{TransientIO, "transient_io"},
		{ChildGone, "child_gone"},
		{Protocol, "protocol"},
		{Overflow, "overflow"},
		{ParserDesync, "parser_desync"},
	}
	for _, tc := range kinds {
		got := Name(tc.kind)
		if got != tc.name {
			t.Errorf("Name(%v) = %q, want %q", tc.kind, got, tc.name)
		}
	}
}
