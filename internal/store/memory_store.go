package store

import (
	"context"
	"sync"
)

// MemoryStore keeps snapshots in process memory.
// Params: key to payload map guarded by RWMutex.
// Returns: store implementation without external dependencies.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]memorySnapshot
}

type memorySnapshot struct {
	body     []byte
	revision uint64
}

// NewMemoryStore creates in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]memorySnapshot)}
}

// Load returns a copy of stored snapshot.
// Params: collection key.
// Returns: payload or ErrNotFound.
func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.snapshots[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.body...), nil
}

// Save replaces snapshot unconditionally.
// Params: collection key and payload.
// Returns: nil (in-memory update).
func (s *MemoryStore) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev := s.snapshots[key].revision + 1
	s.snapshots[key] = memorySnapshot{body: append([]byte(nil), value...), revision: rev}
	return nil
}

// Revision reports how many times key was saved.
func (s *MemoryStore) Revision(key string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[key].revision
}

// Close releases memory store resources.
func (s *MemoryStore) Close() error {
	return nil
}
