// Package ctl implements taptyctl's command tree: a thin client for
// tapty's control-plane socket protocol, one subcommand per request
// type plus `list`. It mirrors h2's own CLI-as-thin-dialer commands
// (attach/send) in shape, adapted to tapty's single-request-per-line
// wire format instead of h2's persistent message queue protocol.
package ctl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"tapty/internal/registry"
)

const dialTimeout = 2 * time.Second

// wireResponse mirrors the control package's unexported response
// shape. taptyctl is a separate binary and only ever sees the wire
// format, never the server's in-process type, so it keeps its own
// decoding struct.
type wireResponse struct {
	OK      bool     `json:"ok,omitempty"`
	Error   string   `json:"error,omitempty"`
	Message string   `json:"message,omitempty"`
	Rows    int      `json:"rows,omitempty"`
	Cols    int      `json:"cols,omitempty"`
	Row     int      `json:"row"`
	Col     int      `json:"col"`
	Lines   []string `json:"lines"`
	Chunk   string   `json:"chunk,omitempty"`
	Dropped uint64   `json:"dropped,omitempty"`
}

// resolveSocket finds id's socket path under the default registry
// directory.
func resolveSocket(id string) (string, error) {
	dir, err := registry.Dir("")
	if err != nil {
		return "", err
	}
	return registry.Resolve(dir, id)
}

// request dials id's control socket, sends one NDJSON request line,
// and reads exactly one reply line back.
func request(id string, req map[string]any) (wireResponse, error) {
	socketPath, err := resolveSocket(id)
	if err != nil {
		return wireResponse{}, err
	}

	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return wireResponse{}, fmt.Errorf("dial %s: %w", id, err)
	}
	defer conn.Close()

	line, err := json.Marshal(req)
	if err != nil {
		return wireResponse{}, err
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		return wireResponse{}, fmt.Errorf("write request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return wireResponse{}, fmt.Errorf("read reply: %w", err)
		}
		return wireResponse{}, fmt.Errorf("connection closed with no reply")
	}

	var resp wireResponse
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return wireResponse{}, fmt.Errorf("decode reply: %w", err)
	}
	if resp.Error != "" {
		return resp, fmt.Errorf("%s: %s", resp.Error, resp.Message)
	}
	return resp, nil
}

// streamSubscribe dials id's socket, sends a subscribe request, and
// calls onLine for every reply line until the connection closes or
// stop is closed.
func streamSubscribe(id string, stop <-chan struct{}, onLine func(wireResponse) error) error {
	socketPath, err := resolveSocket(id)
	if err != nil {
		return err
	}

	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", id, err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"type":"subscribe"}` + "\n")); err != nil {
		return fmt.Errorf("write subscribe request: %w", err)
	}

	go func() {
		<-stop
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		var resp wireResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			continue
		}
		if err := onLine(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}
