package eventstore

import (
	"context"
	"strings"
	"sync"

	"github.com/inkhq/quill/internal/domain/event"
)

// MemoryStore implements Store with per-user in-memory logs. Suitable for
// tests and single-process deployments without durability requirements.
type MemoryStore struct {
	mu     sync.RWMutex
	logs   map[string][]event.Event
	closed bool
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string][]event.Event)}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, userID string, e event.Event) (event.Event, error) {
	if err := validateAppend(userID, e); err != nil {
		return event.Event{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return event.Event{}, ErrClosed
	}
	log := s.logs[userID]
	e.Seq = 1
	if n := len(log); n > 0 {
		e.Seq = log[n-1].Seq + 1
	}
	s.logs[userID] = append(log, e)
	return e, nil
}

// ListAfter implements Store.
func (s *MemoryStore) ListAfter(ctx context.Context, userID string, after uint64) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	var out []event.Event
	for _, e := range s.logs[userID] {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out, nil
}

// CountPostsOnDay implements Store.
func (s *MemoryStore) CountPostsOnDay(ctx context.Context, userID, dayKey string, maxSeq uint64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	count := 0
	for _, e := range s.logs[userID] {
		if e.Kind != event.KindPostCreated || e.DayKey != dayKey {
			continue
		}
		if maxSeq > 0 && e.Seq > maxSeq {
			continue
		}
		count++
	}
	return count, nil
}

// LatestSeq implements Store.
func (s *MemoryStore) LatestSeq(ctx context.Context, userID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	log := s.logs[userID]
	if len(log) == 0 {
		return 0, nil
	}
	return log[len(log)-1].Seq, nil
}

// Close marks the store closed; subsequent calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// validateAppend rejects events that must never reach the log.
func validateAppend(userID string, e event.Event) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidEvent
	}
	if !e.Kind.IsValid() || strings.TrimSpace(e.DayKey) == "" || e.OccurredAt.IsZero() {
		return ErrInvalidEvent
	}
	if e.Kind.IsSynthetic() {
		return ErrSyntheticEvent
	}
	return nil
}
