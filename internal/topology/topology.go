// Package topology describes the deployment topology the pipeline walks:
// the ordered environment chain per app and the zone groups generated
// together within each environment.
//
// The promotion machine treats topology as an opaque external service; the
// interface here is its contract, and FileService is the bundled
// implementation backed by a YAML document.
package topology

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnknownApp is returned when no topology exists for an app.
	ErrUnknownApp = errors.New("app not found in topology")
	// ErrUnknownEnvironment is returned when an environment is not part of
	// the app's chain.
	ErrUnknownEnvironment = errors.New("environment not in app chain")
	// ErrNoPreviousEnvironment is returned when PrevEnv is asked about the
	// chain's entry point.
	ErrNoPreviousEnvironment = errors.New("environment has no predecessor")
)

// ZoneGroup is a set of zones generated together within one environment.
// Order within the group is the generation order.
type ZoneGroup []string

// String renders the group in the comma-joined wire form used by commit
// messages and the topology document.
func (g ZoneGroup) String() string {
	return strings.Join(g, ",")
}

// ParseZoneGroup parses a comma-joined zone group, dropping empty entries.
func ParseZoneGroup(s string) ZoneGroup {
	var g ZoneGroup
	for _, zone := range strings.Split(s, ",") {
		zone = strings.TrimSpace(zone)
		if zone != "" {
			g = append(g, zone)
		}
	}
	return g
}

// Service answers chain-ordering and zone questions for apps.
type Service interface {
	// Chain returns the full ordered environment chain for app.
	Chain(ctx context.Context, app string) ([]string, error)

	// FirstEnv returns the chain's entry environment.
	FirstEnv(ctx context.Context, app string) (string, error)

	// PrevEnv returns the environment before env in the chain.
	PrevEnv(ctx context.Context, app, env string) (string, error)

	// NextEnv returns the environment after env, or "" when env is the
	// chain's last element.
	NextEnv(ctx context.Context, app, env string) (string, error)

	// ZoneGroups returns env's zone groups in generation order. An
	// environment with no zones yields a single group containing the empty
	// zone, so the manifest generator still runs once.
	ZoneGroups(ctx context.Context, app, env string) ([]ZoneGroup, error)
}
