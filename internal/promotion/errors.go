package promotion

import (
	"errors"
	"fmt"
)

// Severity tags promotion errors for the invoking platform.
type Severity string

const (
	// SeverityCritical means the run must fail and an operator or a code
	// change is needed before a retry can help.
	SeverityCritical Severity = "critical"
	// SeverityHigh means the run fails but the condition resolves itself
	// once an external re-trigger fires (e.g. a gate not yet satisfied).
	SeverityHigh Severity = "high"
	// SeverityLow marks conditions that are logged but do not fail the run.
	SeverityLow Severity = "low"
)

var (
	// ErrMissingField means a required identity field (app, version,
	// environment) was absent. Fatal configuration error, never retried.
	ErrMissingField = errors.New("required identity field is missing")

	// ErrGateNotSatisfied means the previous environment's success marker
	// is not visible yet. Fatal for this run; expected to self-resolve once
	// the dependency completes and an external re-trigger fires.
	ErrGateNotSatisfied = errors.New("prerequisite success marker not found")
)

// Error is a structured, severity-tagged promotion error.
type Error struct {
	Op       string   // the transition that failed (e.g. "validate", "generate")
	Severity Severity // how the invoking platform should treat it
	Err      error    // the underlying error
	Detail   string   // marker names, zones, anything an operator needs
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s failed: %s (%s)", e.Op, e.Err.Error(), e.Detail)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Err.Error())
}

// Unwrap allows errors.Is and errors.As to reach the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, severity Severity, err error, detail string) *Error {
	return &Error{Op: op, Severity: severity, Err: err, Detail: detail}
}

// SeverityOf extracts the severity from an error chain, defaulting to
// critical for untagged errors.
func SeverityOf(err error) Severity {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Severity
	}
	return SeverityCritical
}
