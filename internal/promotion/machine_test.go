package promotion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/chainctl/internal/gitstore"
	"github.com/fyrsmithlabs/chainctl/internal/logging"
	"github.com/fyrsmithlabs/chainctl/internal/marker"
	"github.com/fyrsmithlabs/chainctl/internal/topology"
)

// fakeTopo is a static topology: one app, one chain, fixed zone groups.
type fakeTopo struct {
	app    string
	chain  []string
	groups map[string][]topology.ZoneGroup
}

func (f *fakeTopo) Chain(ctx context.Context, app string) ([]string, error) {
	if app != f.app {
		return nil, topology.ErrUnknownApp
	}
	return f.chain, nil
}

func (f *fakeTopo) FirstEnv(ctx context.Context, app string) (string, error) {
	if app != f.app {
		return "", topology.ErrUnknownApp
	}
	return f.chain[0], nil
}

func (f *fakeTopo) PrevEnv(ctx context.Context, app, env string) (string, error) {
	for i, e := range f.chain {
		if e == env {
			if i == 0 {
				return "", topology.ErrNoPreviousEnvironment
			}
			return f.chain[i-1], nil
		}
	}
	return "", topology.ErrUnknownEnvironment
}

func (f *fakeTopo) NextEnv(ctx context.Context, app, env string) (string, error) {
	for i, e := range f.chain {
		if e == env {
			if i == len(f.chain)-1 {
				return "", nil
			}
			return f.chain[i+1], nil
		}
	}
	return "", topology.ErrUnknownEnvironment
}

func (f *fakeTopo) ZoneGroups(ctx context.Context, app, env string) ([]topology.ZoneGroup, error) {
	if g, ok := f.groups[env]; ok {
		return g, nil
	}
	return []topology.ZoneGroup{{""}}, nil
}

// fakeGen records generate calls and toggles whether the "working tree"
// changes. failZone, when set, makes that zone's generation fail.
type fakeGen struct {
	calls    []string
	produce  bool // whether generation dirties the tree
	failZone string
}

func (g *fakeGen) Generate(ctx context.Context, app, env, zone string) error {
	g.calls = append(g.calls, fmt.Sprintf("%s/%s/%s", app, env, zone))
	if g.failZone != "" && zone == g.failZone {
		return errors.New("render exploded")
	}
	return nil
}

// fakeRepo simulates the release-state repository: dirty after generation
// when the generator produced output, clean again after a commit.
type fakeRepo struct {
	gen       *fakeGen
	generated int // generate calls already absorbed by a commit
	commits   []string
	failNext  bool
}

func (r *fakeRepo) HasChanges(ctx context.Context) (bool, error) {
	return r.gen.produce && len(r.gen.calls) > r.generated, nil
}

func (r *fakeRepo) CommitAndPush(ctx context.Context, msg string) error {
	if r.failNext {
		return errors.New("push rejected")
	}
	r.commits = append(r.commits, msg)
	r.generated = len(r.gen.calls)
	return nil
}

type fixture struct {
	topo  *fakeTopo
	gen   *fakeGen
	repo  *fakeRepo
	store *gitstore.MemoryStore
}

func newFixture() *fixture {
	topo := &fakeTopo{
		app:   "orders",
		chain: []string{"dev", "staging", "prod"},
		groups: map[string][]topology.ZoneGroup{
			"staging": {{"east1", "east2"}, {"west1"}},
		},
	}
	gen := &fakeGen{produce: true}
	return &fixture{
		topo:  topo,
		gen:   gen,
		repo:  &fakeRepo{gen: gen},
		store: gitstore.NewMemoryStore(),
	}
}

func (f *fixture) machine(policy EnvSuccessPolicy) *Machine {
	return NewMachine(f.topo, f.gen, f.store, f.repo, policy, logging.NewTestLogger().Logger)
}

func trigger(env string) marker.Marker {
	return marker.Marker{App: "orders", Version: "1.2.0", Release: 1, Environment: env}
}

func TestRun_FirstEnvironment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res, err := f.machine(PolicyAlways).Run(ctx, trigger("dev"))
	require.NoError(t, err)

	assert.Equal(t, StatePromoted, res.State)
	assert.Equal(t, "orders-1.2.0-1-staging", res.NextMarker)
	assert.Equal(t, 1, res.CommittedGroups)
	assert.Equal(t, []string{
		"orders-1.2.0-1-dev-success",
		"orders-1.2.0-1-staging",
	}, res.Pushed)
}

func TestRun_GateBlocksWithoutPrevSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res, err := f.machine(PolicyAlways).Run(ctx, trigger("staging"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateNotSatisfied)
	assert.Equal(t, SeverityHigh, SeverityOf(err))
	assert.Equal(t, StateValidating, res.State)

	// Halted run must not have touched shared state.
	assert.Empty(t, res.Pushed)
	assert.Empty(t, f.repo.commits)
	names, _ := f.store.List(ctx)
	assert.Empty(t, names)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "orders-1.2.0-1-dev-success", perr.Detail)
}

func TestRun_GatePassesWithPrevSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.store.Push(ctx, "orders-1.2.0-1-dev-success"))

	res, err := f.machine(PolicyAlways).Run(ctx, trigger("staging"))
	require.NoError(t, err)

	assert.Equal(t, StatePromoted, res.State)
	assert.Equal(t, "orders-1.2.0-1-prod", res.NextMarker)

	// Two zone groups, two commits, per-zone success markers for each.
	assert.Equal(t, 2, res.CommittedGroups)
	assert.Equal(t, []string{
		"orders/staging/east1",
		"orders/staging/east2",
		"orders/staging/west1",
	}, f.gen.calls)
	require.Len(t, f.repo.commits, 2)
	assert.Contains(t, f.repo.commits[0], "east1,east2")
	assert.Contains(t, f.repo.commits[1], "west1")
	assert.Equal(t, []string{
		"orders-1.2.0-1-staging-east1-success",
		"orders-1.2.0-1-staging-east2-success",
		"orders-1.2.0-1-staging-west1-success",
		"orders-1.2.0-1-staging-success",
		"orders-1.2.0-1-prod",
	}, res.Pushed)
}

func TestRun_ChainTermination(t *testing.T) {
	// Repeated application of the machine from the first environment
	// reaches Complete after exactly len(chain) runs, with the exact
	// marker sequence of the orders/1.2.0 scenario.
	ctx := context.Background()
	f := newFixture()
	f.topo.groups = nil // unzoned everywhere, keep the marker set small
	m := f.machine(PolicyAlways)

	trig := trigger("dev")
	steps := 0
	for {
		steps++
		res, err := m.Run(ctx, trig)
		require.NoError(t, err)
		if res.State == StateComplete {
			break
		}
		require.Equal(t, StatePromoted, res.State)
		next, err := marker.Parse(res.NextMarker)
		require.NoError(t, err)
		trig = next
	}

	assert.Equal(t, 3, steps, "one run per chain environment")
	names, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"orders-1.2.0-1-dev-success",
		"orders-1.2.0-1-staging",
		"orders-1.2.0-1-staging-success",
		"orders-1.2.0-1-prod",
		"orders-1.2.0-1-prod-success",
	}, names)
}

func TestRun_IdempotentWhenNoChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	m := f.machine(PolicyAlways)

	_, err := m.Run(ctx, trigger("dev"))
	require.NoError(t, err)
	commits := len(f.repo.commits)

	// Duplicate trigger: generation renders the same output, tree stays
	// clean, no new commit and no new markers, but the run still succeeds.
	f.gen.produce = false
	res, err := m.Run(ctx, trigger("dev"))
	require.NoError(t, err)

	assert.Equal(t, StatePromoted, res.State)
	assert.Equal(t, 0, res.CommittedGroups)
	assert.Len(t, f.repo.commits, commits, "no additional commit")
	assert.Empty(t, res.Pushed, "existing markers absorbed, nothing new pushed")
}

func TestRun_OnChangePolicySkipsQuietEnvSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.gen.produce = false
	m := f.machine(PolicyOnChange)

	res, err := m.Run(ctx, trigger("dev"))
	require.NoError(t, err)

	// Quiet run: no commit, no env success marker, and therefore the next
	// environment's gate stays closed even though promotion fired.
	assert.Equal(t, StatePromoted, res.State)
	assert.Equal(t, []string{"orders-1.2.0-1-staging"}, res.Pushed)

	ok, err := f.store.Exists(ctx, "orders-1.2.0-1-dev-success")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRun_GenerationFailureHalts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.store.Push(ctx, "orders-1.2.0-1-dev-success"))
	f.gen.failZone = "east2"

	res, err := f.machine(PolicyAlways).Run(ctx, trigger("staging"))
	require.Error(t, err)

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, SeverityCritical, SeverityOf(err))
	assert.Empty(t, res.Pushed, "no markers after a failed generation")
	assert.Empty(t, f.repo.commits)
}

func TestRun_CommitFailureHalts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.repo.failNext = true

	res, err := f.machine(PolicyAlways).Run(ctx, trigger("dev"))
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, res.Pushed)
}

func TestRun_MissingIdentityFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	m := f.machine(PolicyAlways)

	tests := []struct {
		name string
		trig marker.Marker
	}{
		{name: "no app", trig: marker.Marker{Version: "1.2.0", Release: 1, Environment: "dev"}},
		{name: "no version", trig: marker.Marker{App: "orders", Release: 1, Environment: "dev"}},
		{name: "no environment", trig: marker.Marker{App: "orders", Version: "1.2.0", Release: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.Run(ctx, tt.trig)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingField)
			assert.Equal(t, StateCreated, res.State)
		})
	}
}

func TestRun_UnzonedGroupSkipsZoneMarkers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.topo.groups = nil

	res, err := f.machine(PolicyAlways).Run(ctx, trigger("dev"))
	require.NoError(t, err)

	// The unnamed zone gets no zone-scoped marker; only env success and
	// promotion markers are pushed.
	assert.Equal(t, []string{
		"orders-1.2.0-1-dev-success",
		"orders-1.2.0-1-staging",
	}, res.Pushed)
	require.Len(t, f.repo.commits, 1)
	assert.NotContains(t, f.repo.commits[0], "zones")
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAlways, p)

	p, err = ParsePolicy("on_change")
	require.NoError(t, err)
	assert.Equal(t, PolicyOnChange, p)

	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}
