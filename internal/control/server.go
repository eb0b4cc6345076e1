// Package control implements tapty's control-plane socket: a
// newline-delimited JSON protocol for querying and steering a running
// session's grid from taptyctl. It is built on
// github.com/nabbar/golib/socket/server/unix the way the rest of the
// nabbar-golib-dependent ambient stack is, giving each connection its
// own goroutine rather than a single cooperative accept loop.
package control

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	libdur "github.com/nabbar/golib/duration"
	libprm "github.com/nabbar/golib/file/perm"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	libptc "github.com/nabbar/golib/network/protocol"
	libsck "github.com/nabbar/golib/socket"
	sckcfg "github.com/nabbar/golib/socket/config"
	scksru "github.com/nabbar/golib/socket/server/unix"

	"tapty/internal/errkind"
	"tapty/internal/grid"
)

// maxLineBytes is the newline-delimited JSON framing cap; a longer
// line trips bufio.ErrTooLong and the connection is told "oversize".
const maxLineBytes = 1 << 20

// Server is tapty's control-plane listener: one connection handler
// shared across every accepted connection, dispatching each request
// line against a Grid and an Injector.
type Server struct {
	grid     *grid.Grid
	injector *Injector
	logger   liblog.Logger

	srv *scksru.ServerUnix
}

// New builds a Server bound to socketPath with the given file
// permission and idle timeout, but does not start listening — call
// Listen for that.
func New(socketPath string, perm libprm.Perm, idleTimeout libdur.Duration, g *grid.Grid, injector *Injector, logger liblog.Logger) (*Server, error) {
	s := &Server{grid: g, injector: injector, logger: logger}

	cfg := sckcfg.Server{
		Network:        libptc.NetworkUnix,
		Address:        socketPath,
		PermFile:       perm,
		GroupPerm:      -1,
		ConIdleTimeout: idleTimeout,
	}

	srv, err := scksru.New(nil, s.handle, cfg)
	if err != nil {
		return nil, errkind.Wrap(errkind.SetupFatal, err)
	}
	s.srv = srv

	if logger != nil {
		srv.RegisterFuncError(func(errs ...error) {
			for _, e := range errs {
				logger.Entry(loglvl.ErrorLevel, "control socket error").ErrorAdd(true, e).Log()
			}
		})
	}
	return s, nil
}

// Listen blocks accepting connections until ctx is canceled or
// Shutdown is called.
func (s *Server) Listen(ctx context.Context) error {
	return s.srv.Listen(ctx)
}

// Shutdown stops accepting new connections and waits (bounded by
// ctx's deadline) for in-flight handlers, including subscriber write
// loops, to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handle(c libsck.Context) {
	defer func() { _ = c.Close() }()
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Entry(loglvl.ErrorLevel, "recovered panic in control handler").FieldAdd("panic", fmt.Sprintf("%v", r)).Log()
		}
	}()

	scanner := bufio.NewScanner(c)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			writeResponse(c, errorResponse(errkind.Name(errkind.Protocol), err.Error()))
			continue
		}

		if req.Type == typeSubscribe {
			s.runSubscriber(c)
			return
		}
		s.dispatch(c, req)
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			writeResponse(c, errorResponse("oversize", "request line exceeds 1 MiB"))
		}
	}
}

// dispatch and runSubscriber only ever write to the connection, so
// they take io.Writer rather than the full libsck.Context — that
// keeps them testable without a real socket/server/unix connection.
func (s *Server) dispatch(w io.Writer, req request) {
	switch req.Type {
	case typeGetScrollback:
		writeResponse(w, response{Lines: s.grid.Scrollback(req.Lines)})
	case typeGetCursor:
		row, col := s.grid.Cursor()
		writeResponse(w, response{Row: row, Col: col})
	case typeGetSize:
		rows, cols := s.grid.Size()
		writeResponse(w, response{Rows: rows, Cols: cols})
	case typeInject:
		if err := s.injector.Send([]byte(req.Data)); err != nil {
			writeResponse(w, errorResponse(errkind.Name(errkind.Overflow), err.Error()))
			return
		}
		writeResponse(w, response{OK: true})
	default:
		writeResponse(w, errorResponse(errkind.Name(errkind.Protocol), fmt.Sprintf("unknown request type %q", req.Type)))
	}
}

// runSubscriber switches the connection into a write-only loop
// streaming grid writes as chunk frames until the connection closes.
func (s *Server) runSubscriber(w io.Writer) {
	sub := newSubscriber()
	id := s.grid.Subscribe(sub.publish)
	defer s.grid.Unsubscribe(id)

	for line := range sub.out {
		if _, err := w.Write(line); err != nil {
			return
		}
	}
}

func writeResponse(w io.Writer, resp response) {
	_, _ = w.Write(mustEncodeLine(resp))
}
