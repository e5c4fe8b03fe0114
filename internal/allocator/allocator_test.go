package allocator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/chainctl/internal/gitstore"
)

func markerSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name     string
		existing map[string]bool
		want     int
	}{
		{
			name:     "empty namespace",
			existing: markerSet(),
			want:     1,
		},
		{
			name:     "next after taken",
			existing: markerSet("orders-1.2.0-1-dev", "orders-1.2.0-2-dev"),
			want:     3,
		},
		{
			name:     "fills gap",
			existing: markerSet("orders-1.2.0-1-dev", "orders-1.2.0-3-dev"),
			want:     2,
		},
		{
			name: "other identities ignored",
			existing: markerSet(
				"orders-1.3.0-1-dev",
				"billing-1.2.0-1-dev",
				"orders-1.2.0-1-staging",
			),
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Allocate("orders", "1.2.0", "dev", tt.existing, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllocate_Exhausted(t *testing.T) {
	existing := markerSet(
		"orders-1.2.0-1-dev",
		"orders-1.2.0-2-dev",
		"orders-1.2.0-3-dev",
	)
	_, err := Allocate("orders", "1.2.0", "dev", existing, 3)
	assert.ErrorIs(t, err, ErrSlotExhausted)
}

func TestAllocateAndPush(t *testing.T) {
	ctx := context.Background()
	store := gitstore.NewMemoryStore()
	require.NoError(t, store.Push(ctx, "orders-1.2.0-1-dev"))

	a := New(store, WithInitialBackoff(time.Millisecond))
	m, err := a.AllocateAndPush(ctx, "orders", "1.2.0", "dev")
	require.NoError(t, err)
	assert.Equal(t, "orders-1.2.0-2-dev", m.String())

	ok, err := store.Exists(ctx, "orders-1.2.0-2-dev")
	require.NoError(t, err)
	assert.True(t, ok)
}

// contendedStore injects a competing writer: before each of the first n
// pushes it claims the name itself, forcing the allocator through its
// conflict retry path.
type contendedStore struct {
	*gitstore.MemoryStore
	conflicts int
}

func (s *contendedStore) Push(ctx context.Context, name string) error {
	if s.conflicts > 0 {
		s.conflicts--
		if err := s.MemoryStore.Push(ctx, name); err != nil {
			return err
		}
		return gitstore.ErrMarkerExists
	}
	return s.MemoryStore.Push(ctx, name)
}

func TestAllocateAndPush_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	store := &contendedStore{MemoryStore: gitstore.NewMemoryStore(), conflicts: 2}

	a := New(store, WithInitialBackoff(time.Millisecond))
	m, err := a.AllocateAndPush(ctx, "orders", "1.2.0", "dev")
	require.NoError(t, err)

	// Slots 1 and 2 were lost to the competing writer.
	assert.Equal(t, "orders-1.2.0-3-dev", m.String())
}

func TestAllocateAndPush_AttemptBound(t *testing.T) {
	ctx := context.Background()
	store := &contendedStore{MemoryStore: gitstore.NewMemoryStore(), conflicts: 100}

	a := New(store, WithInitialBackoff(time.Millisecond), WithMaxPushAttempts(3))
	_, err := a.AllocateAndPush(ctx, "orders", "1.2.0", "dev")
	assert.ErrorIs(t, err, ErrSlotExhausted)
}

func TestAllocateAndPush_SlotBound(t *testing.T) {
	ctx := context.Background()
	store := gitstore.NewMemoryStore()
	require.NoError(t, store.Push(ctx, "orders-1.2.0-1-dev"))
	require.NoError(t, store.Push(ctx, "orders-1.2.0-2-dev"))

	a := New(store, WithInitialBackoff(time.Millisecond), WithMaxSlots(2))
	_, err := a.AllocateAndPush(ctx, "orders", "1.2.0", "dev")
	assert.ErrorIs(t, err, ErrSlotExhausted)
}
