// Package errkind classifies every error tapty produces into the six
// kinds laid out by the control contract: setup-fatal, transient I/O,
// child-gone, protocol, overflow, and parser-desync. Callers branch on
// kind with Is instead of matching error strings.
package errkind

import (
	liberr "github.com/nabbar/golib/errors"
)

const (
	// SetupFatal covers PTY allocation, fork, exec, socket bind, and
	// termios-save failures. No session is registered when this fires.
	SetupFatal liberr.CodeError = iota + 1000

	// TransientIO covers I/O failures that do not mean the child is
	// gone: a failed write to the user's terminal in the bridge and a
	// failed PTY resize in ptyhost.
	TransientIO

	// ChildGone covers the child process or its PTY going away: a copy
	// error on the bridge's byte pumps (EOF and EIO end a pump with no
	// error instead) and a failed Wait. Orderly shutdown should begin.
	ChildGone

	// Protocol covers malformed JSON, unknown request types, and bad
	// fields on the control socket. The connection survives.
	Protocol

	// Overflow covers an inject request rejected because the injection
	// queue is full. Subscriber queues handle their own overflow by
	// dropping the oldest chunk and produce no error.
	Overflow

	// ParserDesync covers a malformed control sequence the VT parser
	// could not recognize. The parser resumes from ground state.
	ParserDesync
)

func init() {
	liberr.RegisterIdFctMessage(SetupFatal, message)
}

func message(code liberr.CodeError) string {
	switch code {
	case SetupFatal:
		return "setup fatal"
	case TransientIO:
		return "transient i/o"
	case ChildGone:
		return "child gone"
	case Protocol:
		return "protocol error"
	case Overflow:
		return "queue overflow"
	case ParserDesync:
		return "parser desync"
	default:
		return "unknown error"
	}
}

// Wrap attaches kind to err, producing a liberr.Error that carries both
// the original error (as parent) and the kind's code.
func Wrap(kind liberr.CodeError, err error) liberr.Error {
	if err == nil {
		return kind.Error(nil)
	}
	return kind.Error(err)
}

// Is reports whether err (or any error in its parent chain) was tagged
// with kind.
func Is(err error, kind liberr.CodeError) bool {
	e, ok := err.(liberr.Error)
	if !ok {
		return false
	}
	if e.IsCode(kind) {
		return true
	}
	for _, pc := range e.GetParentCode() {
		if pc == kind {
			return true
		}
	}
	return false
}

// Name returns the human-readable name of kind, used in protocol error
// responses (`{"error": "<kind>", ...}`).
func Name(kind liberr.CodeError) string {
	switch kind {
	case SetupFatal:
		return "setup_fatal"
	case TransientIO:
		return "transient_io"
	case ChildGone:
		return "child_gone"
	case Protocol:
		return "protocol"
	case Overflow:
		return "overflow"
	case ParserDesync:
		return "parser_desync"
	default:
		return "unknown"
	}
}
