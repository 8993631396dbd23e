package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/inkhq/quill/internal/domain/calendar"
	"github.com/inkhq/quill/internal/domain/event"
	"github.com/inkhq/quill/internal/domain/streak"
	"github.com/inkhq/quill/internal/domain/types"
	"github.com/inkhq/quill/internal/domain/virtual"
	"github.com/inkhq/quill/pkg/logger"
	"github.com/inkhq/quill/pkg/metrics"
)

// Projection returns the user's current streak projection, recomputing and
// persisting it if the cache lags the event log or the evaluation cutoff.
func (s *Service) Projection(ctx context.Context, userID string) (streak.Projection, error) {
	return s.compute(ctx, userID, s.clock())
}

// ProjectionAt computes the projection as of an explicit instant. The
// injected now only picks the evaluation cutoff; history is replayed from
// the durable log either way.
func (s *Service) ProjectionAt(ctx context.Context, userID string, now time.Time) (streak.Projection, error) {
	return s.compute(ctx, userID, now)
}

// Recompute recomputes and persists the user's projection. It is the
// worker-pool entry point behind the append-time trigger.
func (s *Service) Recompute(ctx context.Context, userID string) error {
	_, err := s.compute(ctx, userID, s.clock())
	return err
}

// Streak returns the API view of the user's projection.
func (s *Service) Streak(ctx context.Context, userID string) (types.StreakView, error) {
	p, err := s.compute(ctx, userID, s.clock())
	if err != nil {
		return types.StreakView{}, err
	}
	return viewFromProjection(userID, p), nil
}

// Explain folds the user's pending events one at a time and returns the
// per-event trace alongside the final state. The traced fold must land on
// the same projection as the bulk fold; a mismatch is a replay determinism
// violation.
func (s *Service) Explain(ctx context.Context, userID string) (types.Explanation, error) {
	now := s.clock()
	loc := s.location(ctx, userID)

	state, _, _, cutoff, _, err := s.loadState(ctx, userID, now, loc)
	if err != nil {
		return types.Explanation{}, err
	}

	merged, err := s.assemble(ctx, userID, state, cutoff)
	if err != nil {
		return types.Explanation{}, err
	}

	traced, steps := streak.ReduceWithTrace(state, merged, loc)
	bulk := streak.Reduce(state, merged, loc)
	if !traced.Equal(bulk) {
		if verr := s.violation(ctx, "nondeterministic_replay", userID); verr != nil {
			return types.Explanation{}, verr
		}
	}

	out := make([]types.ExplainStep, len(steps))
	for i, st := range steps {
		out[i] = types.ExplainStep{
			Seq:         st.Event.Seq,
			Kind:        string(st.Event.Kind),
			DayKey:      st.Event.DayKey,
			Synthetic:   st.Synthetic,
			FromStatus:  string(st.FromStatus),
			ToStatus:    string(st.ToStatus),
			StreakDelta: st.StreakDelta,
		}
	}

	traced.LastEvaluatedDayKey = cutoff
	traced.Version = streak.RulesVersion
	return types.Explanation{
		UserID: userID,
		Steps:  out,
		Result: viewFromProjection(userID, traced),
	}, nil
}

// compute implements the orchestrator contract: load cache and checkpoint,
// pick the optimistic cutoff, extend the cached projection over the pending
// delta and derived day events, and persist the result if it materially
// changed. Any collaborator failure aborts with no partial write.
func (s *Service) compute(ctx context.Context, userID string, now time.Time) (streak.Projection, error) {
	start := time.Now()
	defer func() {
		metrics.RecordComputeLatency(float64(time.Since(start).Milliseconds()))
	}()

	loc := s.location(ctx, userID)

	state, cached, found, cutoff, latestSeq, err := s.loadState(ctx, userID, now, loc)
	if err != nil {
		return streak.Projection{}, err
	}

	// Fresh cache: checkpoint caught up, window evaluated through the
	// cutoff, produced by the current rules.
	if found && state.Version == streak.RulesVersion &&
		state.AppliedSeq >= latestSeq && state.LastEvaluatedDayKey == cutoff {
		metrics.RecordProjectionCacheHit()
		return state, nil
	}

	merged, err := s.assemble(ctx, userID, state, cutoff)
	if err != nil {
		return streak.Projection{}, err
	}

	next := streak.Reduce(state, merged, loc)
	if next.AppliedSeq < state.AppliedSeq {
		if verr := s.violation(ctx, "checkpoint_regression", userID); verr != nil {
			return streak.Projection{}, verr
		}
		next.AppliedSeq = state.AppliedSeq
	}
	// Events past the cutoff are checkpointed, not folded; the next
	// computation bridges their days with activity ticks.
	if latestSeq > next.AppliedSeq {
		next.AppliedSeq = latestSeq
	}
	next.LastEvaluatedDayKey = cutoff
	next.Version = streak.RulesVersion

	metrics.RecordProjectionComputed()
	metrics.RecordEventsFolded(len(merged))

	if found && next.Equal(cached) {
		metrics.RecordProjectionWriteSkip()
		return next, nil
	}

	if err := s.cache.Put(ctx, userID, next); err != nil {
		return streak.Projection{}, fmt.Errorf("projection write for %s: %w: %v", userID, ErrStoreUnavailable, err)
	}
	metrics.RecordProjectionWrite()

	// Write-behind to the leaderboard; ranking lag is acceptable, a failed
	// update must not fail the computation.
	if _, lerr := s.leaderboard.Update(ctx, userID, next.CurrentStreak, next.LongestStreak); lerr != nil {
		s.logger.Warn(ctx, "leaderboard update failed",
			logger.String("userID", userID),
			logger.Error(lerr),
		)
	}

	return next, nil
}

// loadState loads the cached projection and checkpoint context for a
// computation: the fold starting state, the raw cached document, the
// optimistic cutoff day and the latest appended seq.
func (s *Service) loadState(ctx context.Context, userID string, now time.Time, loc *time.Location) (state, cached streak.Projection, found bool, cutoff string, latestSeq uint64, err error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return streak.Projection{}, streak.Projection{}, false, "", 0, ErrNotStarted
	}

	cached, found, err = s.cache.Get(ctx, userID)
	if err != nil {
		return streak.Projection{}, streak.Projection{}, false, "", 0,
			fmt.Errorf("projection read for %s: %w: %v", userID, ErrStoreUnavailable, err)
	}

	state = streak.Initial()
	if found && cached.Version == streak.RulesVersion {
		state = cached
	}

	latestSeq, err = s.events.LatestSeq(ctx, userID)
	if err != nil {
		return streak.Projection{}, streak.Projection{}, false, "", 0,
			fmt.Errorf("checkpoint read for %s: %w: %v", userID, ErrStoreUnavailable, err)
	}

	// Optimistic cutoff: an unfinished day never penalizes, but a posted
	// day earns same-day credit. The point lookup guards against a race
	// with a just-arrived first post the cache has not seen.
	today := calendar.DayKey(now, loc)
	postsToday, err := s.events.CountPostsOnDay(ctx, userID, today, 0)
	if err != nil {
		return streak.Projection{}, streak.Projection{}, false, "", 0,
			fmt.Errorf("activity read for %s: %w: %v", userID, ErrStoreUnavailable, err)
	}
	cutoff = today
	if postsToday == 0 {
		cutoff = calendar.PrevDay(today)
	}

	return state, cached, found, cutoff, latestSeq, nil
}

// assemble loads the pending real events and derives the synthetic day
// events bridging (state.LastEvaluatedDayKey, cutoff], returning the merged
// fold input in (dayKey, occurredAt) order with synthetic events after the
// real events of their day.
func (s *Service) assemble(ctx context.Context, userID string, state streak.Projection, cutoff string) ([]event.Event, error) {
	delta, err := s.events.ListAfter(ctx, userID, state.AppliedSeq)
	if err != nil {
		return nil, fmt.Errorf("delta read for %s: %w: %v", userID, ErrStoreUnavailable, err)
	}

	// Only events inside the evaluated window fold now; later days wait
	// for their cutoff.
	inWindow := make([]event.Event, 0, len(delta))
	for _, e := range delta {
		if e.DayKey > cutoff {
			continue
		}
		// A persisted closure for a weekend or holiday carries no rule
		// weight; folding it would open a recovery window for a day that
		// never required a contribution.
		if e.Kind == event.KindDayClosed && !s.calendar.IsWorkingDay(e.DayKey) {
			continue
		}
		inWindow = append(inWindow, e)
	}

	byDay := event.ByDay(inWindow)
	if byDay == nil {
		byDay = make(map[string][]event.Event)
	}

	// A cold cache has no evaluated watermark; anchor the gap just before
	// the earliest pending day so history replays with its closures.
	gapStart := state.LastEvaluatedDayKey
	if gapStart == "" && len(inWindow) > 0 {
		earliest := inWindow[0].DayKey
		for _, e := range inWindow[1:] {
			if e.DayKey < earliest {
				earliest = e.DayKey
			}
		}
		gapStart = calendar.PrevDay(earliest)
	}

	tz := s.timezones.Timezone(ctx, userID)

	// Bridge checkpointed-but-unfolded days first; their ticks then count
	// as coverage for the closure pass.
	ticks, err := virtual.Ticks(gapStart, cutoff, byDay, func(dayKey string) (int, error) {
		return s.events.CountPostsOnDay(ctx, userID, dayKey, state.AppliedSeq)
	}, tz, s.calendar)
	if err != nil {
		return nil, fmt.Errorf("tick synthesis for %s: %w: %v", userID, ErrStoreUnavailable, err)
	}
	for _, t := range ticks {
		byDay[t.DayKey] = append(byDay[t.DayKey], t)
	}

	closures := virtual.Closures(gapStart, cutoff, byDay, tz, s.calendar)

	metrics.RecordTicksSynthesized(len(ticks))
	metrics.RecordClosuresDerived(len(closures))

	// Never two synthetic day events for one day.
	syntheticDays := make(map[string]bool, len(ticks)+len(closures))
	for _, e := range append(append([]event.Event{}, ticks...), closures...) {
		if syntheticDays[e.DayKey] {
			if verr := s.violation(ctx, "double_tick", userID); verr != nil {
				return nil, verr
			}
		}
		syntheticDays[e.DayKey] = true
	}

	merged := make([]event.Event, 0, len(inWindow)+len(ticks)+len(closures))
	merged = append(merged, inWindow...)
	merged = append(merged, ticks...)
	merged = append(merged, closures...)
	sortFoldOrder(merged)

	return merged, nil
}

// sortFoldOrder orders events by (dayKey, occurredAt), real before
// synthetic within a day, seq ascending as the final tiebreak.
func sortFoldOrder(events []event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.DayKey != b.DayKey {
			return a.DayKey < b.DayKey
		}
		aSyn, bSyn := a.Kind.IsSynthetic(), b.Kind.IsSynthetic()
		if aSyn != bSyn {
			return !aSyn // real events fold before the day's synthetic closure
		}
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.Before(b.OccurredAt)
		}
		return a.Seq < b.Seq
	})
}

// violation records an invariant violation. Under strict mode it returns
// ErrInvariantViolation and the computation aborts with no write; otherwise
// it logs and the computation proceeds.
func (s *Service) violation(ctx context.Context, check, userID string) error {
	metrics.RecordInvariantViolation(check)
	if s.strictInvariants {
		return fmt.Errorf("%s for user %s: %w", check, userID, ErrInvariantViolation)
	}
	s.logger.Error(ctx, "invariant violation",
		logger.String("check", check),
		logger.String("userID", userID),
	)
	return nil
}

// viewFromProjection converts a projection to its API shape.
func viewFromProjection(userID string, p streak.Projection) types.StreakView {
	view := types.StreakView{
		UserID:               userID,
		Status:               string(p.Status.Kind()),
		CurrentStreak:        p.CurrentStreak,
		OriginalStreak:       p.OriginalStreak,
		LongestStreak:        p.LongestStreak,
		LastContributionDate: p.LastContributionDate,
		AppliedSeq:           p.AppliedSeq,
		LastEvaluatedDayKey:  p.LastEvaluatedDayKey,
		RulesVersion:         p.Version,
	}
	if st, ok := p.Status.(streak.Eligible); ok {
		view.PostsRequired = st.PostsRequired
		view.CurrentPosts = st.CurrentPosts
		view.MissedDate = st.MissedDate
		deadline := st.Deadline
		view.Deadline = &deadline
	}
	return view
}
