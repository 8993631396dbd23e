// Package service provides the projection orchestrator that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inkhq/quill/internal/adapters/eventstore"
	eventqueue "github.com/inkhq/quill/internal/adapters/mq/queue"
	workerpool "github.com/inkhq/quill/internal/adapters/mq/worker"
	"github.com/inkhq/quill/internal/adapters/projcache"
	repository "github.com/inkhq/quill/internal/adapters/repository"
	"github.com/inkhq/quill/internal/domain/calendar"
	"github.com/inkhq/quill/internal/domain/dedupe"
	"github.com/inkhq/quill/internal/domain/event"
	"github.com/inkhq/quill/internal/domain/streak"
	"github.com/inkhq/quill/internal/domain/types"
	"github.com/inkhq/quill/pkg/logger"
	"github.com/inkhq/quill/pkg/metrics"
)

// TimezoneSource resolves the IANA timezone name for a user.
type TimezoneSource interface {
	Timezone(ctx context.Context, userID string) string
}

// staticTimezoneSource returns the same zone for every user.
type staticTimezoneSource struct {
	zone string
}

func (s staticTimezoneSource) Timezone(ctx context.Context, userID string) string {
	return s.zone
}

// StaticTimezoneSource returns a TimezoneSource that resolves every user
// to the given zone.
func StaticTimezoneSource(zone string) TimezoneSource {
	return staticTimezoneSource{zone: zone}
}

// Service implements the streak projection orchestrator.
type Service struct {
	mu sync.RWMutex

	// Core components
	events      eventstore.Store
	cache       projcache.Store
	leaderboard repository.Store
	deduper     dedupe.Deduper
	queue       eventqueue.Queue
	workerPool  *workerpool.Pool
	calendar    *calendar.Calendar
	timezones   TimezoneSource

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	defaultTimezone  string
	holidays         []string
	strictInvariants bool

	// Clock injected per computation for reproducibility.
	clock func() time.Time

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of recompute worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the recompute queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the append idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventStore sets the event log implementation.
func WithEventStore(store eventstore.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.events = store
		}
	}
}

// WithProjectionCache sets the projection cache implementation.
func WithProjectionCache(store projcache.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.cache = store
		}
	}
}

// WithLeaderboard sets the leaderboard store implementation.
func WithLeaderboard(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.leaderboard = store
		}
	}
}

// WithDefaultTimezone sets the zone used when no per-user source is wired.
func WithDefaultTimezone(zone string) Option {
	return func(s *Service) {
		if zone != "" {
			s.defaultTimezone = zone
		}
	}
}

// WithTimezoneSource sets the per-user timezone resolver.
func WithTimezoneSource(src TimezoneSource) Option {
	return func(s *Service) {
		if src != nil {
			s.timezones = src
		}
	}
}

// WithHolidays sets the non-working holiday dates (YYYY-MM-DD).
func WithHolidays(days ...string) Option {
	return func(s *Service) {
		s.holidays = days
	}
}

// WithStrictInvariants makes invariant violations fatal for the
// computation instead of log-only. Resolved once at startup.
func WithStrictInvariants(strict bool) Option {
	return func(s *Service) {
		s.strictInvariants = strict
	}
}

// WithClock sets the time source used to pick the evaluation cutoff.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU() * 2, // Default to 2x CPU cores
		queueSize:       100000,               // Default queue size
		dedupeSize:      50000,                // Default dedupe cache size
		defaultTimezone: "UTC",
		clock:           time.Now,
		stopCh:          make(chan struct{}),
		logger:          nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting streak service...")

	// Initialize components not provided via options
	if s.events == nil {
		s.events = eventstore.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory event store")
	}
	if s.cache == nil {
		s.cache = projcache.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory projection cache")
	}
	if s.leaderboard == nil {
		s.leaderboard = repository.NewTreapStore(ctx)
		s.logger.Info(ctx, "using treap leaderboard store")
	}
	if s.timezones == nil {
		s.timezones = StaticTimezoneSource(s.defaultTimezone)
	}
	s.calendar = calendar.New(calendar.WithHolidays(s.holidays...))
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithBufferSize(s.queueSize),
	)

	// Create and start the recompute worker pool; the service itself is
	// the Recomputer the workers drain into.
	s.workerPool = workerpool.NewPool(s.workerCount, s.queue, s)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "streak service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("defaultTimezone", s.defaultTimezone),
		logger.Any("strictInvariants", s.strictInvariants),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping streak service...")

	// Stop worker pool
	if s.workerPool != nil {
		s.workerPool.Stop()
	}

	// Close leaderboard store
	if s.leaderboard != nil {
		if closer, ok := s.leaderboard.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}

	// Close queue
	if q, ok := s.queue.(*eventqueue.InMemoryQueue); ok {
		_ = q.Close()
	}

	// Close stores that hold resources
	if closer, ok := s.events.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if closer, ok := s.cache.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	select {
	case <-s.stopCh:
		// Channel already closed
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(context.Background(), "streak service stopped")
}

// SeenAndRecord atomically checks if an event id was seen and records it if not.
// Returns true if the event was already seen, false if it was newly recorded.
// This is the ONLY method for deduplication - thread-safe and atomic.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes an event ID from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// AppendEvent persists a real event for a user and schedules a recompute.
// Seq and DayKey are assigned here: seq is one greater than the user's
// prior highest, dayKey is the local calendar date of OccurredAt in the
// user's timezone (not the UTC date).
func (s *Service) AppendEvent(ctx context.Context, userID string, e event.Event) (event.Event, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return event.Event{}, ErrNotStarted
	}

	loc := s.location(ctx, userID)
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.clock()
	}
	e.Seq = 0
	e.DayKey = calendar.DayKey(e.OccurredAt, loc)
	if e.Kind == event.KindPostCreated && e.PostID == "" {
		e.PostID = uuid.NewString()
	}

	stored, err := s.events.Append(ctx, userID, e)
	if err != nil {
		return event.Event{}, fmt.Errorf("append event for %s: %w", userID, err)
	}
	metrics.RecordEventAppended(string(stored.Kind))

	// Trigger an asynchronous recompute. Backpressure here is not fatal:
	// the next read recomputes from the durable log anyway.
	if ok := s.queue.Enqueue(ctx, eventqueue.Request{UserID: userID, Reason: "append"}); !ok {
		s.logger.Warn(ctx, "recompute queue full, deferring to next read",
			logger.String("userID", userID),
		)
	} else {
		metrics.UpdateQueueSize(s.queue.Len(ctx))
	}

	return stored, nil
}

// AppendPost records a qualifying contribution for a user.
func (s *Service) AppendPost(ctx context.Context, userID string, occurredAt time.Time, postID, boardID string, contentLength int) (event.Event, error) {
	return s.AppendEvent(ctx, userID, event.Event{
		Kind:          event.KindPostCreated,
		OccurredAt:    occurredAt,
		PostID:        postID,
		BoardID:       boardID,
		ContentLength: contentLength,
	})
}

// TopN returns the top N leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	entries, err := s.leaderboard.TopN(ctx, n)
	if err != nil {
		return nil, err
	}

	// Convert to API format
	apiEntries := make([]types.Entry, len(entries))
	for i, entry := range entries {
		apiEntries[i] = types.Entry{
			Rank:          entry.Rank,
			UserID:        entry.UserID,
			CurrentStreak: entry.CurrentStreak,
			LongestStreak: entry.LongestStreak,
		}
	}

	return apiEntries, nil
}

// Rank returns the rank and streak values for a given user id.
func (s *Service) Rank(ctx context.Context, userID string) (types.Entry, error) {
	entry, err := s.leaderboard.Rank(ctx, userID)
	if err != nil {
		return types.Entry{}, err
	}

	return types.Entry{
		Rank:          entry.Rank,
		UserID:        entry.UserID,
		CurrentStreak: entry.CurrentStreak,
		LongestStreak: entry.LongestStreak,
	}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"dedupeSize":       s.dedupeSize,
		"strictInvariants": s.strictInvariants,
		"rulesVersion":     streak.RulesVersion,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		trackedUsers := s.leaderboard.Count(ctx)

		stats["queueLength"] = queueLen
		stats["trackedUsers"] = trackedUsers

		// Update metrics
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTrackedUsers(trackedUsers)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// location resolves the user's timezone to a location, falling back to
// UTC for unknown zone names.
func (s *Service) location(ctx context.Context, userID string) *time.Location {
	loc, ok := calendar.Location(s.timezones.Timezone(ctx, userID))
	if !ok {
		s.logger.Warn(ctx, "unresolvable timezone, falling back to UTC",
			logger.String("userID", userID),
		)
	}
	return loc
}
