// Package promotion implements the promotion state machine: one externally
// triggered run drives a single environment's worth of work and computes the
// next marker to push.
//
// All durable state is the marker namespace and the release-state
// repository. Triggers are at-least-once, so every transition is either
// idempotent (the changes-exist check before committing) or self-detecting
// (duplicate marker pushes are absorbed for success and promotion markers).
package promotion

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chainctl/internal/gitstore"
	"github.com/fyrsmithlabs/chainctl/internal/logging"
	"github.com/fyrsmithlabs/chainctl/internal/manifest"
	"github.com/fyrsmithlabs/chainctl/internal/marker"
	"github.com/fyrsmithlabs/chainctl/internal/topology"
)

// ReleaseRepository is the slice of the release-state repository the machine
// needs: change detection and the atomic commit+push.
type ReleaseRepository interface {
	HasChanges(ctx context.Context) (bool, error)
	CommitAndPush(ctx context.Context, msg string) error
}

// Machine drives one environment's promotion run.
type Machine struct {
	topo   topology.Service
	gen    manifest.Generator
	store  gitstore.Store
	repo   ReleaseRepository
	policy EnvSuccessPolicy
	log    *logging.Logger
}

// NewMachine wires the machine's collaborators. policy "" means PolicyAlways.
func NewMachine(topo topology.Service, gen manifest.Generator, store gitstore.Store, repo ReleaseRepository, policy EnvSuccessPolicy, log *logging.Logger) *Machine {
	if policy == "" {
		policy = PolicyAlways
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Machine{topo: topo, gen: gen, store: store, repo: repo, policy: policy, log: log}
}

// Result reports one run to the invoking platform.
type Result struct {
	State           State
	Marker          marker.Marker // the trigger marker
	Pushed          []string      // markers pushed during this run, in order
	CommittedGroups int           // zone groups that produced a commit
	NextMarker      string        // next environment's trigger, "" at chain end
}

// Run executes the state machine for the environment named by trig.
//
// On success the returned state is StatePromoted (next environment
// triggered) or StateComplete (chain finished). On failure the state is
// StateFailed — or StateValidating/StateCreated when the run halted before
// touching shared state — and the error carries the severity tag.
func (m *Machine) Run(ctx context.Context, trig marker.Marker) (*Result, error) {
	res := &Result{State: StateCreated, Marker: trig}

	if err := requireIdentity(trig); err != nil {
		return res, err
	}

	res.State = StateValidating
	if err := m.validate(ctx, trig); err != nil {
		return res, err
	}

	res.State = StateGenerating
	groups, err := m.topo.ZoneGroups(ctx, trig.App, trig.Environment)
	if err != nil {
		res.State = StateFailed
		return res, newError("generate", SeverityCritical, err, "resolving zone groups")
	}

	for _, group := range groups {
		if err := m.processGroup(ctx, trig, group, res); err != nil {
			res.State = StateFailed
			return res, err
		}
	}

	res.State = StateEnvSucceeded
	if m.policy == PolicyAlways || res.CommittedGroups > 0 {
		if err := m.pushIdempotent(ctx, trig.Success(), res); err != nil {
			res.State = StateFailed
			return res, newError("env_success", SeverityCritical, err, trig.Success().String())
		}
	} else {
		m.log.Info(ctx, "no changes in any zone group, skipping environment success marker",
			zap.String("environment", trig.Environment))
	}

	res.State = StatePromoting
	next, err := m.topo.NextEnv(ctx, trig.App, trig.Environment)
	if err != nil {
		res.State = StateFailed
		return res, newError("promote", SeverityCritical, err, "resolving next environment")
	}
	if next == "" {
		res.State = StateComplete
		m.log.Info(ctx, "promotion chain complete",
			zap.String("app", trig.App),
			zap.String("version", trig.Version),
			zap.Int("release", trig.Release),
		)
		return res, nil
	}

	nextMarker := trig.WithEnvironment(next)
	if err := m.pushIdempotent(ctx, nextMarker, res); err != nil {
		res.State = StateFailed
		return res, newError("promote", SeverityCritical, err, nextMarker.String())
	}
	res.State = StatePromoted
	res.NextMarker = nextMarker.String()
	m.log.Info(ctx, "promoted to next environment",
		zap.String("from", trig.Environment),
		zap.String("to", next),
		zap.String("marker", nextMarker.String()),
	)
	return res, nil
}

// requireIdentity rejects markers missing a required identity field before
// any shared state is touched.
func requireIdentity(m marker.Marker) error {
	switch {
	case m.App == "":
		return newError("configure", SeverityCritical, ErrMissingField, "app")
	case m.Version == "":
		return newError("configure", SeverityCritical, ErrMissingField, "version")
	case m.Environment == "":
		return newError("configure", SeverityCritical, ErrMissingField, "environment")
	}
	return nil
}

// validate implements the gate: the first environment passes
// unconditionally, every later environment requires the previous
// environment's success marker to be visible in the shared store.
func (m *Machine) validate(ctx context.Context, trig marker.Marker) error {
	first, err := m.topo.FirstEnv(ctx, trig.App)
	if err != nil {
		return newError("validate", SeverityCritical, err, "resolving first environment")
	}
	if trig.Environment == first {
		m.log.Debug(ctx, "entry environment, gate passes unconditionally",
			zap.String("environment", trig.Environment))
		return nil
	}

	prev, err := m.topo.PrevEnv(ctx, trig.App, trig.Environment)
	if err != nil {
		return newError("validate", SeverityCritical, err, "resolving previous environment")
	}

	gate := trig.WithEnvironment(prev).Success()
	ok, err := m.store.Exists(ctx, gate.String())
	if err != nil {
		return newError("validate", SeverityCritical, err, "checking gate marker")
	}
	if !ok {
		return newError("validate", SeverityHigh, ErrGateNotSatisfied, gate.String())
	}
	m.log.Debug(ctx, "gate satisfied", zap.String("gate", gate.String()))
	return nil
}

// processGroup generates manifests for every zone in the group, then commits
// and records per-zone success markers only when the working tree actually
// changed. A clean tree means a duplicate trigger or a no-op render; both
// are skipped silently to keep the transition idempotent.
func (m *Machine) processGroup(ctx context.Context, trig marker.Marker, group topology.ZoneGroup, res *Result) error {
	for _, zone := range group {
		if err := m.gen.Generate(ctx, trig.App, trig.Environment, zone); err != nil {
			return newError("generate", SeverityCritical, err, "zone "+zone)
		}
	}

	changed, err := m.repo.HasChanges(ctx)
	if err != nil {
		return newError("commit", SeverityCritical, err, "inspecting release state")
	}
	if !changed {
		m.log.Info(ctx, "zone group produced no changes, skipping commit",
			zap.String("group", group.String()))
		return nil
	}

	res.State = StateCommitting
	msg := commitMessage(trig, group)
	if err := m.repo.CommitAndPush(ctx, msg); err != nil {
		return newError("commit", SeverityCritical, err, "group "+group.String())
	}
	res.CommittedGroups++
	m.log.Info(ctx, "committed release state",
		zap.String("group", group.String()),
		zap.String("message", msg))

	for _, zone := range group {
		if zone == "" {
			// Unzoned environment: the environment-level marker covers it.
			continue
		}
		success := trig.ZoneSuccess(zone)
		if err := m.pushIdempotent(ctx, success, res); err != nil {
			return newError("zone_success", SeverityCritical, err, success.String())
		}
	}
	res.State = StateGenerating
	return nil
}

// pushIdempotent pushes a marker, absorbing duplicate rejection: under
// at-least-once triggering an existing marker means a previous run already
// recorded this fact.
func (m *Machine) pushIdempotent(ctx context.Context, mk marker.Marker, res *Result) error {
	err := m.store.Push(ctx, mk.String())
	if errors.Is(err, gitstore.ErrMarkerExists) {
		m.log.Debug(ctx, "marker already present, treating as done",
			zap.String("marker", mk.String()))
		return nil
	}
	if err != nil {
		return err
	}
	res.Pushed = append(res.Pushed, mk.String())
	return nil
}

// commitMessage records identity, environment and zone group so the release
// history doubles as a promotion log.
func commitMessage(trig marker.Marker, group topology.ZoneGroup) string {
	if group.String() == "" {
		return fmt.Sprintf("%s %s release %d: update %s manifests",
			trig.App, trig.Version, trig.Release, trig.Environment)
	}
	return fmt.Sprintf("%s %s release %d: update %s manifests for zones %s",
		trig.App, trig.Version, trig.Release, trig.Environment, group)
}
