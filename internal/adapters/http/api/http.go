// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/inkhq/quill/internal/adapters/repository"
	"github.com/inkhq/quill/internal/domain/dedupe"
	"github.com/inkhq/quill/internal/domain/event"
	"github.com/inkhq/quill/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// AppendEvent persists a real event and schedules a recompute.
	AppendEvent(ctx context.Context, userID string, e event.Event) (event.Event, error)

	// Read operations expose streak and leaderboard data.
	Streak(ctx context.Context, userID string) (types.StreakView, error)
	Explain(ctx context.Context, userID string) (types.Explanation, error)
	TopN(ctx context.Context, n int) ([]Entry, error)
	Rank(ctx context.Context, userID string) (Entry, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	streaksHandler     *StreaksHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLeaderboardLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		eventsHandler:      NewEventsHandler(deps),
		streaksHandler:     NewStreaksHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
		rankHandler:        NewRankHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/streaks/", MetricsMiddleware(s.streaksHandler.HandleGetStreak, "streaks"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
}

// eventRequest mirrors the OpenAPI schema for POST /events.
type eventRequest struct {
	EventID       string `json:"event_id"`
	UserID        string `json:"user_id"`
	Kind          string `json:"kind"`
	OccurredAt    string `json:"occurred_at"`
	PostID        string `json:"post_id,omitempty"`
	BoardID       string `json:"board_id,omitempty"`
	ContentLength int    `json:"content_length,omitempty"`
	OldTimezone   string `json:"old_timezone,omitempty"`
	NewTimezone   string `json:"new_timezone,omitempty"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.EventID) == "":
		return errors.New("missing event_id")
	case strings.TrimSpace(e.UserID) == "":
		return errors.New("missing user_id")
	case strings.TrimSpace(e.OccurredAt) == "":
		return errors.New("missing occurred_at")
	}
	if _, err := time.Parse(time.RFC3339, e.OccurredAt); err != nil {
		return errors.New("invalid occurred_at; must be RFC3339")
	}
	if e.Kind != "" {
		kind := event.Kind(e.Kind)
		if !kind.IsValid() || kind.IsSynthetic() {
			return errors.New("invalid kind")
		}
	}
	return nil
}

// toEvent builds the domain event; seq and dayKey are assigned downstream.
func (e eventRequest) toEvent() event.Event {
	kind := event.Kind(e.Kind)
	if e.Kind == "" {
		kind = event.KindPostCreated
	}
	occurredAt, _ := time.Parse(time.RFC3339, e.OccurredAt)
	return event.Event{
		Kind:           kind,
		OccurredAt:     occurredAt,
		PostID:         e.PostID,
		BoardID:        e.BoardID,
		ContentLength:  e.ContentLength,
		OldTimezone:    e.OldTimezone,
		NewTimezone:    e.NewTimezone,
		IdempotencyKey: e.EventID,
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	Seq       uint64 `json:"seq,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound allows the API to translate upstream not-found errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
