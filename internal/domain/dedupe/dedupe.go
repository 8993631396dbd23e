// Package dedupe tracks idempotency keys of ingested events.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen idempotency keys to ensure at-most-once ingestion.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen set, allowing it to be retried.
	// Used when an event was marked as seen but the append behind it failed.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// entry is a single tracked key in the recency list.
type entry struct {
	id   string
	next *entry
}

func (e *entry) reset() {
	e.id = ""
	e.next = nil
}

// inMemoryDeduper implements Deduper.
// Bounded mode (maxSize > 0) keeps a singly linked recency list, newest at the
// front, and evicts the oldest key once the cap is reached; entries are pooled.
// Unbounded mode (maxSize <= 0) is a plain map with no eviction.
type inMemoryDeduper struct {
	mu        sync.RWMutex
	index     map[string]*entry // id -> list entry in bounded mode, nil value otherwise
	newest    *entry            // front of the recency list
	maxSize   int               // cap on tracked keys; 0 or negative means unbounded
	size      atomic.Int64
	entryPool sync.Pool
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.index = make(map[string]*entry)

	if d.maxSize > 0 {
		d.entryPool = sync.Pool{
			New: func() interface{} {
				return &entry{}
			},
		}
	}

	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
// Returns true if id was already seen, false if it was newly recorded.
func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.index[id]; exists {
		return true
	}

	if d.maxSize > 0 {
		// Make room before inserting so the cap holds.
		if len(d.index) >= d.maxSize {
			d.evictOldest()
		}

		e := d.entryPool.Get().(*entry)
		e.id = id
		e.next = d.newest

		d.newest = e
		d.index[id] = e
	} else {
		d.index[id] = nil
	}
	d.size.Add(1)
	return false
}

// Unrecord removes an ID from the seen set, allowing it to be retried.
func (d *inMemoryDeduper) Unrecord(ctx context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.maxSize > 0 {
		e, exists := d.index[id]
		if !exists {
			return
		}
		delete(d.index, id)

		// Unlink from the recency list.
		if d.newest == e {
			d.newest = e.next
		} else {
			current := d.newest
			for current != nil && current.next != e {
				current = current.next
			}
			if current != nil {
				current.next = e.next
			}
		}

		e.reset()
		d.entryPool.Put(e)
		d.size.Add(-1)
		return
	}

	if _, exists := d.index[id]; exists {
		delete(d.index, id)
		d.size.Add(-1)
	}
}

// evictOldest drops the key at the back of the recency list.
// Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	if len(d.index) == 0 || d.newest == nil {
		return
	}

	var prev *entry
	current := d.newest

	if current.next == nil {
		delete(d.index, current.id)
		current.reset()
		d.entryPool.Put(current)
		d.newest = nil
		d.size.Add(-1)
		return
	}

	for current.next != nil {
		prev = current
		current = current.next
	}

	if prev != nil {
		prev.next = nil
		delete(d.index, current.id)
		current.reset()
		d.entryPool.Put(current)
		d.size.Add(-1)
	}
}

// Size returns the current number of tracked keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
