package projcache

import (
	"context"
	"strings"
	"sync"

	"github.com/inkhq/quill/internal/domain/streak"
)

// MemoryStore implements Store with a process-local map.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]streak.Projection
	closed bool
}

// NewMemoryStore creates an empty in-memory projection cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]streak.Projection)}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, userID string) (streak.Projection, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return streak.Projection{}, false, ErrClosed
	}
	p, ok := s.docs[userID]
	return p, ok, nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, userID string, p streak.Projection) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.docs[userID] = p
	return nil
}

// Close marks the cache closed; subsequent calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
