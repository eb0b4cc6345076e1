// Package registry tracks the set of live tapty sessions on this
// machine: one Unix socket plus a JSON sidecar per session, living
// under ~/.tapty/sockets/. It follows h2's socketdir package for the
// directory-as-database approach, adding flock-guarded allocation and
// liveness probing that socketdir left to its callers.
package registry

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"tapty/internal/errkind"
)

// Entry describes one registered session.
type Entry struct {
	ID            string    `json:"id"`
	PID           int       `json:"pid"`
	StartedAt     time.Time `json:"started_at"`
	Command       string    `json:"command"`
	Args          []string  `json:"args"`
	InstanceToken string    `json:"instance_token"`
	SocketPath    string    `json:"-"`
	sidecarPath   string
}

const (
	probeTimeout   = 300 * time.Millisecond
	maxNameRetries = 64
)

// Dir returns the registry root, creating it with 0700 permissions if
// it does not already exist.
func Dir(base string) (string, error) {
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errkind.Wrap(errkind.SetupFatal, err)
		}
		base = filepath.Join(home, ".tapty")
	}
	dir := filepath.Join(base, "sockets")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errkind.Wrap(errkind.SetupFatal, err)
	}
	return dir, nil
}

func socketPath(dir, id string) string { return filepath.Join(dir, id+".sock") }
func sidecarPath(dir, id string) string { return filepath.Join(dir, id+".json") }
func lockPath(dir string) string        { return filepath.Join(dir, ".lock") }

// Allocate picks a free session ID in dir, writes its sidecar metadata,
// and returns the Entry plus the still-held flock.Flock guarding the
// allocation. Callers must Unlock it once the socket has been bound.
func Allocate(dir string, command string, args []string) (Entry, *flock.Flock, error) {
	fl := flock.New(lockPath(dir))
	if err := fl.Lock(); err != nil {
		return Entry{}, nil, errkind.Wrap(errkind.SetupFatal, err)
	}

	id, err := pickID(dir)
	if err != nil {
		_ = fl.Unlock()
		return Entry{}, nil, err
	}

	entry := Entry{
		ID:            id,
		PID:           os.Getpid(),
		StartedAt:     time.Now().UTC(),
		Command:       command,
		Args:          args,
		InstanceToken: uuid.NewString(),
		SocketPath:    socketPath(dir, id),
		sidecarPath:   sidecarPath(dir, id),
	}
	if err := entry.writeSidecar(); err != nil {
		_ = fl.Unlock()
		return Entry{}, nil, err
	}
	return entry, fl, nil
}

// pickID generates an adjective-adjective-noun triple that does not
// collide with a live entry already in dir, retrying up to
// maxNameRetries times before falling back to a numeric suffix.
func pickID(dir string) (string, error) {
	for i := 0; i < maxNameRetries; i++ {
		candidate := randomName(i)
		if !idTaken(dir, candidate) {
			return candidate, nil
		}
	}
	base := randomName(0)
	for suffix := 2; ; suffix++ {
		candidate := fmt.Sprintf("%s-%d", base, suffix)
		if !idTaken(dir, candidate) {
			return candidate, nil
		}
	}
}

func idTaken(dir, id string) bool {
	sp := socketPath(dir, id)
	if _, err := os.Stat(sp); err != nil {
		return false
	}
	entry, ok := readSidecar(dir, id)
	if ok && Probe(entry) {
		return true
	}
	// Stale: not answering. Clean it up so the scan doesn't keep
	// tripping over it.
	_ = os.Remove(sp)
	_ = os.Remove(sidecarPath(dir, id))
	return false
}

func (e Entry) writeSidecar() error {
	data, err := json.Marshal(e)
	if err != nil {
		return errkind.Wrap(errkind.SetupFatal, err)
	}
	if err := os.WriteFile(e.sidecarPath, data, 0o600); err != nil {
		return errkind.Wrap(errkind.SetupFatal, err)
	}
	return nil
}

func readSidecar(dir, id string) (Entry, bool) {
	data, err := os.ReadFile(sidecarPath(dir, id))
	if err != nil {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false
	}
	e.SocketPath = socketPath(dir, id)
	e.sidecarPath = sidecarPath(dir, id)
	return e, true
}

// Probe reports whether entry's control socket is alive by dialing it
// and sending a no-op get_size request.
func Probe(entry Entry) bool {
	conn, err := net.DialTimeout("unix", entry.SocketPath, probeTimeout)
	if err != nil {
		return false
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(probeTimeout))
	if _, err := conn.Write([]byte(`{"type":"get_size"}` + "\n")); err != nil {
		return false
	}
	buf := make([]byte, 256)
	_, err = conn.Read(buf)
	return err == nil
}

// List scans dir, probing every entry found and unlinking those that
// no longer answer before returning the live set.
func List(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errkind.Wrap(errkind.SetupFatal, err)
	}

	var live []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if filepath.Ext(name) != ".sock" {
			continue
		}
		id := name[:len(name)-len(".sock")]
		entry, ok := readSidecar(dir, id)
		if !ok {
			continue
		}
		if Probe(entry) {
			live = append(live, entry)
			continue
		}
		_ = os.Remove(entry.SocketPath)
		_ = os.Remove(entry.sidecarPath)
	}
	return live, nil
}

// Resolve finds the socket path for id within dir.
func Resolve(dir, id string) (string, error) {
	sp := socketPath(dir, id)
	if _, err := os.Stat(sp); err != nil {
		return "", errkind.Wrap(errkind.Protocol, fmt.Errorf("no session named %q", id))
	}
	return sp, nil
}

// Release removes entry's socket and sidecar file. Called during
// session shutdown once the listener has stopped.
func Release(entry Entry) {
	_ = os.Remove(entry.SocketPath)
	_ = os.Remove(sidecarPath(filepath.Dir(entry.SocketPath), entry.ID))
}
