// Package config loads tapty's on-disk configuration and builds its
// stderr-only structured logger. Both follow the teacher's shape: an
// absent config file is not an error, and the logger must never write
// to the descriptors the child's forwarded bytes flow through.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	libdur "github.com/nabbar/golib/duration"
	liblog "github.com/nabbar/golib/logger"
	logcfg "github.com/nabbar/golib/logger/config"
	loglvl "github.com/nabbar/golib/logger/level"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of ~/.tapty/config.yaml.
type Config struct {
	// ScrollbackLines bounds the plain-text scrollback ring. Zero means
	// "use the default" (10000, per spec).
	ScrollbackLines int `yaml:"scrollback_lines,omitempty"`

	// IdleTimeout closes a control connection that issues no request
	// for this long. Zero (the default) disables idle timeouts.
	IdleTimeout libdur.Duration `yaml:"idle_timeout,omitempty"`

	// RegistryDir overrides the default ~/.tapty base directory; session
	// sockets then live in its sockets/ subdirectory.
	RegistryDir string `yaml:"registry_dir,omitempty"`
}

const defaultScrollbackLines = 10000

// ScrollbackCapacity returns the configured scrollback capacity, or the
// spec-mandated default when unset.
func (c *Config) ScrollbackCapacity() int {
	if c == nil || c.ScrollbackLines <= 0 {
		return defaultScrollbackLines
	}
	return c.ScrollbackLines
}

// Dir returns the tapty configuration/registry root (~/.tapty).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".tapty")
	}
	return filepath.Join(home, ".tapty")
}

// Load reads config.yaml from the default config directory.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(Dir(), "config.yaml"))
}

// LoadFrom reads the config from the given path. A missing file yields
// a zero-value Config and no error, matching h2's own Load/LoadFrom.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds a structured logger for diagnostics. It routes every
// level through the file-hook machinery pointed at /dev/stderr rather
// than the library's Stdout option, which would otherwise split
// Info/Debug to the real stdout and pollute the bytes being forwarded
// to the user's terminal.
func NewLogger() liblog.Logger {
	l := liblog.New(context.Background())
	l.SetLevel(loglvl.InfoLevel)

	opt := &logcfg.Options{
		LogFile: []logcfg.OptionsFile{
			{
				Filepath:         "/dev/stderr",
				DisableStack:     true,
				DisableTimestamp: false,
			},
		},
	}
	if err := l.SetOptions(opt); err != nil {
		// Diagnostics are best-effort: a logger that can't reach
		// /dev/stderr falls back to discarding rather than risking
		// stdout, which the user's raw terminal owns.
		return l
	}
	return l
}
