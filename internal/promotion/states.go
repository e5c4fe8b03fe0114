package promotion

import "fmt"

// State names the phases one environment's run moves through. Runs are
// single-threaded and externally triggered; the state is reported, not
// persisted. Everything durable lives in the marker namespace.
type State string

const (
	// StateCreated is the entry state after decoding the trigger marker.
	StateCreated State = "created"
	// StateValidating checks the previous environment's gate.
	StateValidating State = "validating"
	// StateGenerating renders manifests per zone group.
	StateGenerating State = "generating"
	// StateCommitting commits and pushes release-state changes.
	StateCommitting State = "committing"
	// StateEnvSucceeded records the environment-level success marker.
	StateEnvSucceeded State = "env_succeeded"
	// StatePromoting derives and pushes the next environment's marker.
	StatePromoting State = "promoting"
	// StatePromoted is terminal: the next environment has been triggered.
	StatePromoted State = "promoted"
	// StateComplete is terminal: the chain has no further environment.
	StateComplete State = "complete"
	// StateFailed is terminal: generation, commit or marker push failed.
	// The run halts without pushing further markers; the chain stays parked
	// until an external re-trigger after the cause is fixed.
	StateFailed State = "failed"
)

// EnvSuccessPolicy controls when the environment-level success marker is
// pushed. The per-zone markers are always conditional on a commit; the
// environment marker defaults to unconditional so a quiet run still
// advances the chain.
type EnvSuccessPolicy string

const (
	// PolicyAlways pushes the environment success marker even when no zone
	// group produced changes.
	PolicyAlways EnvSuccessPolicy = "always"
	// PolicyOnChange pushes it only when at least one zone group committed.
	// Under this policy a fully quiet run does not advance the chain.
	PolicyOnChange EnvSuccessPolicy = "on_change"
)

// ParsePolicy validates a policy string, defaulting empty to PolicyAlways.
func ParsePolicy(s string) (EnvSuccessPolicy, error) {
	switch EnvSuccessPolicy(s) {
	case "":
		return PolicyAlways, nil
	case PolicyAlways:
		return PolicyAlways, nil
	case PolicyOnChange:
		return PolicyOnChange, nil
	}
	return "", fmt.Errorf("unknown env_success policy %q", s)
}
