// Package logging configures the process-wide go-logging backends.
// Individual packages obtain their logger with New("<module>").
package logging

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/op/go-logging.v1"
)

const format = "%{time:15:04:05.000} %{level:.4s} %{module}: %{message}"

// Setup installs the stderr backend (plus an optional file backend) at the
// given minimum level. Level is one of ERROR, WARNING, NOTICE, INFO, DEBUG.
// Call once at startup, before any logger is used.
func Setup(level, file string) error {
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return fmt.Errorf("logging: invalid level %q: %w", level, err)
	}

	writers := []io.Writer{os.Stderr}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("logging: open %s: %w", file, err)
		}
		writers = append(writers, f)
	}

	backends := make([]logging.Backend, 0, len(writers))
	for _, w := range writers {
		b := logging.NewLogBackend(w, "", 0)
		formatted := logging.NewBackendFormatter(b, logging.MustStringFormatter(format))
		leveled := logging.AddModuleLevel(formatted)
		leveled.SetLevel(lvl, "")
		backends = append(backends, leveled)
	}
	logging.SetBackend(backends...)
	return nil
}

// New returns the named module logger.
func New(module string) *logging.Logger {
	return logging.MustGetLogger(module)
}
