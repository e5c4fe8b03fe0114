// Package allocator assigns release slots: the smallest positive release
// number whose first-environment marker is not yet taken.
//
// Allocation is computed against a snapshot of the marker namespace, so two
// concurrent allocations for the same (app, version) can pick the same slot.
// The push of the marker is the serialization point: the loser gets
// gitstore.ErrMarkerExists and re-allocates against a fresh listing.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fyrsmithlabs/chainctl/internal/gitstore"
	"github.com/fyrsmithlabs/chainctl/internal/marker"
)

// ErrSlotExhausted is returned when every release number up to the configured
// bound is already taken. Needs operator intervention, never retried.
var ErrSlotExhausted = errors.New("release slots exhausted")

// Default bounds. MaxSlots caps the linear scan; MaxPushAttempts caps the
// allocate/push/retry loop under contention.
const (
	DefaultMaxSlots        = 1000
	DefaultMaxPushAttempts = 5
)

// Allocate returns the smallest release number R >= 1 such that the marker
// <app>-<version>-R-<firstEnv> is absent from existing. Scans from 1 upward
// and fails with ErrSlotExhausted past maxSlots.
func Allocate(app, version, firstEnv string, existing map[string]bool, maxSlots int) (int, error) {
	if maxSlots <= 0 {
		maxSlots = DefaultMaxSlots
	}
	for r := 1; r <= maxSlots; r++ {
		candidate := marker.Marker{App: app, Version: version, Release: r, Environment: firstEnv}
		if !existing[candidate.String()] {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: all %d slots taken for %s-%s in %s", ErrSlotExhausted, maxSlots, app, version, firstEnv)
}

// Allocator binds slot allocation to a marker store and runs the
// allocate/push/retry-on-conflict loop.
type Allocator struct {
	store           gitstore.Store
	maxSlots        int
	maxPushAttempts int
	initialBackoff  time.Duration
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithMaxSlots overrides the slot scan bound.
func WithMaxSlots(n int) Option {
	return func(a *Allocator) { a.maxSlots = n }
}

// WithMaxPushAttempts overrides the conflict retry bound.
func WithMaxPushAttempts(n int) Option {
	return func(a *Allocator) { a.maxPushAttempts = n }
}

// WithInitialBackoff overrides the first retry delay. Tests use this to keep
// contention loops fast.
func WithInitialBackoff(d time.Duration) Option {
	return func(a *Allocator) { a.initialBackoff = d }
}

// New creates an Allocator over store.
func New(store gitstore.Store, opts ...Option) *Allocator {
	a := &Allocator{
		store:           store,
		maxSlots:        DefaultMaxSlots,
		maxPushAttempts: DefaultMaxPushAttempts,
		initialBackoff:  backoff.DefaultInitialInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AllocateAndPush allocates a release slot for (app, version) in firstEnv and
// pushes the first-environment marker. On a duplicate-push rejection it
// refreshes the marker listing and re-allocates, backing off exponentially,
// up to the configured attempt bound. Returns the pushed marker.
func (a *Allocator) AllocateAndPush(ctx context.Context, app, version, firstEnv string) (marker.Marker, error) {
	var allocated marker.Marker
	attempts := 0

	// BackOff implementations are stateful; always use a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = a.initialBackoff

	operation := func() error {
		attempts++

		names, err := a.store.List(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("listing markers: %w", err))
		}
		existing := make(map[string]bool, len(names))
		for _, name := range names {
			existing[name] = true
		}

		release, err := Allocate(app, version, firstEnv, existing, a.maxSlots)
		if err != nil {
			return backoff.Permanent(err)
		}

		candidate := marker.Marker{App: app, Version: version, Release: release, Environment: firstEnv}
		err = a.store.Push(ctx, candidate.String())
		if errors.Is(err, gitstore.ErrMarkerExists) {
			if attempts >= a.maxPushAttempts {
				return backoff.Permanent(fmt.Errorf("allocation contention for %s-%s: %w after %d attempts", app, version, ErrSlotExhausted, attempts))
			}
			return err // retryable, re-allocate against a fresh listing
		}
		if err != nil {
			return backoff.Permanent(fmt.Errorf("pushing marker %s: %w", candidate, err))
		}

		allocated = candidate
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return marker.Marker{}, err
	}
	return allocated, nil
}
