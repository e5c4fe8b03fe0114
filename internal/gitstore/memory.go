package gitstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests and dry runs. It applies
// the same write-once rule as the tag store.
type MemoryStore struct {
	mu      sync.Mutex
	markers map[string]struct{}
}

// NewMemoryStore returns an empty in-memory marker store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{markers: make(map[string]struct{})}
}

// List returns all marker names in lexical order.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.markers))
	for name := range s.markers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether name is present.
func (s *MemoryStore) Exists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.markers[name]
	return ok, nil
}

// Push records name, rejecting duplicates with ErrMarkerExists.
func (s *MemoryStore) Push(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markers[name]; ok {
		return ErrMarkerExists
	}
	s.markers[name] = struct{}{}
	return nil
}
