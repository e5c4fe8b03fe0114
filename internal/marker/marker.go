// Package marker implements the promotion marker grammar.
//
// A marker is the single unit of persistent pipeline state: an immutable
// named entry in the shared store encoding identity and status as
//
//	<app>-<version>-<release>-<environment>[-<zone>][-success]
//
// The grammar is unambiguous because version contains no hyphens and
// matches \d+\.\d+\.\d+, release is decimal digits, and environment is
// lowercase-alphabetic. A parser can therefore recover every field even
// though app itself may contain hyphens.
package marker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Status is the optional trailing status field of a marker.
type Status string

const (
	// StatusNone marks a plain trigger marker with no status suffix.
	StatusNone Status = ""
	// StatusSuccess marks a success marker.
	StatusSuccess Status = "success"
)

// successField is the literal trailing field for success markers.
const successField = "success"

var (
	versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	segmentPattern = regexp.MustCompile(`^[a-z0-9]+$`)
	envPattern     = regexp.MustCompile(`^[a-z]+$`)
	releasePattern = regexp.MustCompile(`^\d+$`)
)

// Marker is a decoded promotion marker.
type Marker struct {
	App         string
	Version     string
	Release     int
	Environment string
	Zone        string
	Status      Status
}

// MalformedMarkerError reports a string that violates the marker grammar.
// The offending string is preserved for operator diagnostics.
type MalformedMarkerError struct {
	Raw    string
	Reason string
}

func (e *MalformedMarkerError) Error() string {
	return fmt.Sprintf("malformed marker %q: %s", e.Raw, e.Reason)
}

func malformed(raw, reason string) error {
	return &MalformedMarkerError{Raw: raw, Reason: reason}
}

// Parse decodes a marker string.
//
// The version field anchors the parse: the rightmost hyphen token matching
// the version pattern splits app from the trailing fields. Everything before
// it is the app name, the two tokens after it are release and environment,
// and any remainder is an optional zone followed by an optional success
// suffix.
func Parse(s string) (Marker, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 4 {
		return Marker{}, malformed(s, "fewer than four hyphen-delimited fields")
	}

	vi := -1
	for i := len(parts) - 1; i >= 0; i-- {
		if versionPattern.MatchString(parts[i]) {
			vi = i
			break
		}
	}
	if vi < 0 {
		return Marker{}, malformed(s, "no version field matching N.N.N")
	}
	if vi == 0 {
		return Marker{}, malformed(s, "missing app name before version")
	}
	if vi+2 >= len(parts) {
		return Marker{}, malformed(s, "missing release or environment after version")
	}

	app := strings.Join(parts[:vi], "-")
	for _, seg := range parts[:vi] {
		if !segmentPattern.MatchString(seg) {
			return Marker{}, malformed(s, fmt.Sprintf("invalid app segment %q", seg))
		}
	}

	if !releasePattern.MatchString(parts[vi+1]) {
		return Marker{}, malformed(s, fmt.Sprintf("release %q is not a decimal integer", parts[vi+1]))
	}
	release, err := strconv.Atoi(parts[vi+1])
	if err != nil {
		return Marker{}, malformed(s, fmt.Sprintf("release %q is not a decimal integer", parts[vi+1]))
	}

	env := parts[vi+2]
	if !envPattern.MatchString(env) {
		return Marker{}, malformed(s, fmt.Sprintf("environment %q is not lowercase-alphabetic", env))
	}

	rest := parts[vi+3:]
	status := StatusNone
	if len(rest) > 0 && rest[len(rest)-1] == successField {
		status = StatusSuccess
		rest = rest[:len(rest)-1]
	}
	for _, seg := range rest {
		if !segmentPattern.MatchString(seg) {
			return Marker{}, malformed(s, fmt.Sprintf("invalid zone segment %q", seg))
		}
	}

	return Marker{
		App:         app,
		Version:     parts[vi],
		Release:     release,
		Environment: env,
		Zone:        strings.Join(rest, "-"),
		Status:      status,
	}, nil
}

// String encodes the marker back into its canonical string form.
// Parse(m.String()) == m for every valid marker.
func (m Marker) String() string {
	fields := make([]string, 0, 6)
	fields = append(fields, m.App, m.Version, strconv.Itoa(m.Release), m.Environment)
	if m.Zone != "" {
		fields = append(fields, m.Zone)
	}
	if m.Status == StatusSuccess {
		fields = append(fields, successField)
	}
	return strings.Join(fields, "-")
}

// Validate checks every field against the grammar. Parse output is always
// valid; Validate guards markers constructed in code.
func (m Marker) Validate() error {
	if m.App == "" {
		return malformed(m.String(), "empty app")
	}
	for _, seg := range strings.Split(m.App, "-") {
		if !segmentPattern.MatchString(seg) {
			return malformed(m.String(), fmt.Sprintf("invalid app segment %q", seg))
		}
	}
	if !versionPattern.MatchString(m.Version) {
		return malformed(m.String(), fmt.Sprintf("version %q does not match N.N.N", m.Version))
	}
	if m.Release < 0 {
		return malformed(m.String(), "negative release")
	}
	if !envPattern.MatchString(m.Environment) {
		return malformed(m.String(), fmt.Sprintf("environment %q is not lowercase-alphabetic", m.Environment))
	}
	if m.Zone != "" {
		for _, seg := range strings.Split(m.Zone, "-") {
			if !segmentPattern.MatchString(seg) {
				return malformed(m.String(), fmt.Sprintf("invalid zone segment %q", seg))
			}
		}
	}
	if m.Status != StatusNone && m.Status != StatusSuccess {
		return malformed(m.String(), fmt.Sprintf("unknown status %q", m.Status))
	}
	return nil
}

// SameIdentity reports whether two markers share the (app, version, release)
// triple that names one promotion run.
func (m Marker) SameIdentity(o Marker) bool {
	return m.App == o.App && m.Version == o.Version && m.Release == o.Release
}

// WithEnvironment returns the trigger marker for env with the same identity.
// Zone and status are cleared: only the environment field changes when a
// release promotes to the next environment.
func (m Marker) WithEnvironment(env string) Marker {
	return Marker{App: m.App, Version: m.Version, Release: m.Release, Environment: env}
}

// Success returns the environment-level success marker for m's identity and
// environment.
func (m Marker) Success() Marker {
	s := m.WithEnvironment(m.Environment)
	s.Status = StatusSuccess
	return s
}

// ZoneSuccess returns the zone-scoped success marker for zone within m's
// environment.
func (m Marker) ZoneSuccess(zone string) Marker {
	s := m.WithEnvironment(m.Environment)
	s.Zone = zone
	s.Status = StatusSuccess
	return s
}
