// Package outputs emits named run values for the invoking platform.
//
// Each value is one key=value line, appended to the file named by the
// CHAINCTL_OUTPUT environment variable, or written to stdout when unset.
// This is the contract CI schedulers consume to chain pipeline steps.
package outputs

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// EnvOutputFile names the environment variable holding the output file path.
const EnvOutputFile = "CHAINCTL_OUTPUT"

// Writer appends key=value lines to the platform output destination.
type Writer struct {
	w      io.Writer
	closer io.Closer
}

// New resolves the output destination from the environment.
func New() (*Writer, error) {
	path := os.Getenv(EnvOutputFile)
	if path == "" {
		return &Writer{w: os.Stdout}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening output file %s: %w", path, err)
	}
	return &Writer{w: f, closer: f}, nil
}

// NewWithWriter writes to an explicit destination. Tests use this.
func NewWithWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Set emits one named value. Keys must be non-empty and single-line; values
// have newlines collapsed so one output is always one line.
func (o *Writer) Set(key, value string) error {
	if key == "" || strings.ContainsAny(key, "=\n") {
		return fmt.Errorf("invalid output key %q", key)
	}
	value = strings.ReplaceAll(value, "\n", " ")
	_, err := fmt.Fprintf(o.w, "%s=%s\n", key, value)
	return err
}

// Close releases the underlying file, if any.
func (o *Writer) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}
