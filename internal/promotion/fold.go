package promotion

import (
	"sort"

	"github.com/fyrsmithlabs/chainctl/internal/marker"
)

// EnvStatus is the folded status of one environment in the chain.
type EnvStatus string

const (
	// EnvPending means no marker for the environment exists yet.
	EnvPending EnvStatus = "pending"
	// EnvTriggered means the trigger marker exists but no environment-level
	// success marker does: the run is in flight, parked, or failed.
	EnvTriggered EnvStatus = "triggered"
	// EnvSucceeded means the environment-level success marker is visible.
	EnvSucceeded EnvStatus = "succeeded"
)

// EnvState is one environment's folded state.
type EnvState struct {
	Name   string
	Status EnvStatus
	Zones  []string // zones with a zone-scoped success marker, sorted
}

// ChainState is the folded state of one identity across the whole chain.
type ChainState struct {
	App          string
	Version      string
	Release      int
	Environments []EnvState
	Complete     bool // the last environment in the chain has succeeded
}

// FoldChain folds the marker log into per-environment state for one
// identity. It treats each marker as an immutable event and is a pure
// function of the log and the topology ordering; current state never depends
// on in-process history.
func FoldChain(markers []marker.Marker, app, version string, release int, chain []string) ChainState {
	id := marker.Marker{App: app, Version: version, Release: release}

	triggered := make(map[string]bool)
	succeeded := make(map[string]bool)
	zones := make(map[string][]string)

	for _, m := range markers {
		if !m.SameIdentity(id) {
			continue
		}
		switch {
		case m.Status == marker.StatusSuccess && m.Zone == "":
			succeeded[m.Environment] = true
		case m.Status == marker.StatusSuccess:
			zones[m.Environment] = append(zones[m.Environment], m.Zone)
		default:
			triggered[m.Environment] = true
		}
	}

	state := ChainState{App: app, Version: version, Release: release}
	for _, env := range chain {
		es := EnvState{Name: env, Status: EnvPending}
		if triggered[env] {
			es.Status = EnvTriggered
		}
		if succeeded[env] {
			es.Status = EnvSucceeded
		}
		es.Zones = append(make([]string, 0, len(zones[env])), zones[env]...)
		sort.Strings(es.Zones)
		state.Environments = append(state.Environments, es)
	}
	if n := len(chain); n > 0 {
		state.Complete = succeeded[chain[n-1]]
	}
	return state
}

// ParseLog decodes raw marker names, dropping anything that does not match
// the grammar. The shared namespace may carry unrelated tags; the fold only
// cares about well-formed markers.
func ParseLog(names []string) []marker.Marker {
	markers := make([]marker.Marker, 0, len(names))
	for _, name := range names {
		m, err := marker.Parse(name)
		if err != nil {
			continue
		}
		markers = append(markers, m)
	}
	return markers
}

// Releases returns the release numbers present for (app, version) in the
// log, ascending. Used by status reporting when no release is given.
func Releases(markers []marker.Marker, app, version string) []int {
	seen := make(map[int]bool)
	for _, m := range markers {
		if m.App == app && m.Version == version {
			seen[m.Release] = true
		}
	}
	releases := make([]int, 0, len(seen))
	for r := range seen {
		releases = append(releases, r)
	}
	sort.Ints(releases)
	return releases
}
