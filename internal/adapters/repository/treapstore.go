// Package repository defines the streak leaderboard store interface and errors.
package repository

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inkhq/quill/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: current streak DESC, then userID ASC (deterministic).
// We implement a BST comparator where "less" means ranks earlier
// (i.e., longer streaks rank earlier). This makes in-order traversal
// produce the leaderboard from best to worst.

// record stores the streak values for a user.
type record struct {
	current int
	longest int
}

// Snapshot represents an immutable snapshot of the leaderboard state.
type Snapshot struct {
	// Rank and streak in O(1) for reads
	RankByUser   map[string]int
	StreakByUser map[string]int

	// Fast Top-K cache up to M items
	TopCache []Entry // sorted descending (M much smaller than N_total)
}

// treap node
type node struct {
	id     string
	streak int
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aStreak, aID) should appear before (bStreak, bID)
// in the leaderboard (longer streaks rank earlier).
func less(aStreak int, aID string, bStreak int, bID string) bool {
	if aStreak != bStreak {
		return aStreak > bStreak // longer streak ranks earlier
	}
	return aID < bID // tie-breaker by id asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, streak int, prio uint64) *node {
	if n == nil {
		return &node{id: id, streak: streak, prio: prio, size: 1}
	}
	if less(streak, id, n.streak, n.id) {
		n.left = insert(n.left, id, streak, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, streak, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, streak int) *node {
	if n == nil {
		return nil
	}
	if streak == n.streak && id == n.id {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, streak)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, streak)
		}
	} else if less(streak, id, n.streak, n.id) {
		n.left = deleteNode(n.left, id, streak)
	} else {
		n.right = deleteNode(n.right, id, streak)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order (longest streaks first).
func collectTopN(n *node, limit int, records map[string]record, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}

	// In-order traversal: the BST ordering already places longer streaks
	// first with deterministic userID ASC tie-breaking.
	collectTopN(n.left, limit, records, out)

	if len(*out) < limit {
		if rec, exists := records[n.id]; exists {
			*out = append(*out, Entry{Rank: 0 /* fix later */, UserID: n.id, CurrentStreak: rec.current, LongestStreak: rec.longest})
		}
	}

	if len(*out) < limit {
		collectTopN(n.right, limit, records, out)
	}
}

type TreapStore struct {
	mu               sync.RWMutex
	root             *node
	byID             map[string]record
	rng              *rand.Rand
	snapshotInterval time.Duration // How often to create periodic snapshots of the store
	topCacheSize     int           // Maximum number of top-ranked records to keep in cache

	// snapshot is atomic pointer to a Snapshot struct
	snapshot atomic.Pointer[Snapshot]

	// Periodic snapshot management
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		snapshotInterval: 1 * time.Second, // default snapshot interval
		topCacheSize:     500,             // default top cache size
		byID:             make(map[string]record),
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // treap priorities, not crypto
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	// Initialize stop channel and start periodic snapshot goroutine
	s.stopChan = make(chan struct{})
	s.startPeriodicSnapshots(ctx)

	return s
}

// startPeriodicSnapshots starts a background goroutine that publishes snapshots at the configured interval.
func (s *TreapStore) startPeriodicSnapshots(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.publishSnapshot()
			}
		}
	}()
}

// publishSnapshot rebuilds and publishes a new snapshot.
func (s *TreapStore) publishSnapshot() {
	start := time.Now()
	s.mu.RLock()
	s.publishSnapshotInternal()
	s.mu.RUnlock()

	ms := float64(time.Since(start).Milliseconds())
	metrics.RecordRepositorySnapshotRebuildDuration(ms)
	metrics.UpdateRepositorySnapshotLastDurationMs(ms)
	metrics.UpdateRepositorySnapshotLastUnix(float64(time.Now().Unix()))
	metrics.IncrementRepositorySnapshotCount()
}

// Close gracefully shuts down the periodic snapshot goroutine.
func (s *TreapStore) Close() error {
	// Signal all goroutines to stop
	select {
	case <-s.stopChan:
		// Channel already closed
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// Update implements Store.Update with O(log n) expected time. Unlike a
// best-score leaderboard, streaks go down as well as up, so the entry is
// replaced whenever either value changed.
func (s *TreapStore) Update(ctx context.Context, userID string, currentStreak, longestStreak int) (bool, error) {
	isNewUser := false

	s.mu.Lock()
	if old, ok := s.byID[userID]; ok {
		if old.current == currentStreak && old.longest == longestStreak {
			s.mu.Unlock()
			return false, nil
		}
		if old.current != currentStreak {
			s.root = deleteNode(s.root, userID, old.current)
			s.root = insert(s.root, userID, currentStreak, s.rng.Uint64())
		}
	} else {
		isNewUser = true
		s.root = insert(s.root, userID, currentStreak, s.rng.Uint64())
	}
	s.byID[userID] = record{current: currentStreak, longest: longestStreak}
	s.mu.Unlock()

	// Update metrics outside lock
	metrics.RecordLeaderboardUpdate()
	if isNewUser {
		metrics.UpdateTrackedUsers(s.Count(ctx))
	}

	// Snapshots are published periodically, not after every update
	return true, nil
}

// Rank returns the current rank and streak values for a user in O(n).
func (s *TreapStore) Rank(ctx context.Context, userID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Check if the user exists
	if _, ok := s.byID[userID]; !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}

	// Collect all entries and find the rank
	allEntries := make([]Entry, 0, len(s.byID))
	collectAll(s.root, s.byID, &allEntries)

	// Sort by streak (descending) and userID (ascending) to match TopN logic
	sortEntries(allEntries)

	// Assign global ranks with proper tie handling
	assignRanksWithTies(allEntries)

	// Find the rank for this specific user
	for _, entry := range allEntries {
		if entry.UserID == userID {
			return entry, nil
		}
	}

	return Entry{}, ErrNotFound
}

// TopN returns the top N entries ordered by current streak desc.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, n)
	collectTopN(s.root, n, s.byID, &out)

	// Assign ranks with proper tie handling
	assignRanksWithTies(out)
	return out, nil
}

// Count returns the total number of users.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// publishSnapshotInternal rebuilds and publishes a new snapshot (assumes lock is held).
func (s *TreapStore) publishSnapshotInternal() {
	// Build Top-M cache for fast leaderboard queries
	topCache := make([]Entry, 0, s.topCacheSize)
	collectTopN(s.root, s.topCacheSize, s.byID, &topCache)

	// Build full rank and streak maps
	rankByUser := make(map[string]int, len(s.byID))
	streakByUser := make(map[string]int, len(s.byID))

	// Collect all entries to compute global ranks
	allEntries := make([]Entry, 0, len(s.byID))
	collectAll(s.root, s.byID, &allEntries)

	// Assign ranks with proper tie handling
	assignRanksWithTies(allEntries)

	// Build maps from all entries
	for _, entry := range allEntries {
		rankByUser[entry.UserID] = entry.Rank
		streakByUser[entry.UserID] = entry.CurrentStreak
	}

	// Update TopCache with correct ranks
	for i := range topCache {
		if rank, exists := rankByUser[topCache[i].UserID]; exists {
			topCache[i].Rank = rank
		}
	}

	snapshot := &Snapshot{
		RankByUser:   rankByUser,
		StreakByUser: streakByUser,
		TopCache:     topCache,
	}

	s.snapshot.Store(snapshot)
}

// collectAll appends all entries in rank order (longest streaks first).
func collectAll(n *node, byID map[string]record, out *[]Entry) {
	if n == nil {
		return
	}
	collectAll(n.left, byID, out)
	if rec, ok := byID[n.id]; ok {
		*out = append(*out, Entry{
			UserID:        n.id,
			CurrentStreak: rec.current,
			LongestStreak: rec.longest,
		})
	}
	collectAll(n.right, byID, out)
}

// sortEntries sorts entries by current streak (descending) and userID
// (ascending) to match TopN logic.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CurrentStreak != entries[j].CurrentStreak {
			return entries[i].CurrentStreak > entries[j].CurrentStreak
		}
		return entries[i].UserID < entries[j].UserID
	})
}

// assignRanksWithTies assigns ranks with proper tie handling.
// Users with the same streak get the same rank, and the next distinct
// streak gets the next consecutive rank.
func assignRanksWithTies(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	currentRank := 1
	for i := 0; i < len(entries); i++ {
		entries[i].Rank = currentRank

		// Count how many entries share this streak value
		sameStreakCount := 1
		for j := i + 1; j < len(entries) && entries[j].CurrentStreak == entries[i].CurrentStreak; j++ {
			entries[j].Rank = currentRank
			sameStreakCount++
		}

		currentRank++
		i += sameStreakCount - 1 // Skip the entries we just processed
	}
}
