// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/inkhq/quill/internal/domain/types"
)

// StreakDependencies defines the interface for streak read operations.
type StreakDependencies interface {
	Streak(ctx context.Context, userID string) (types.StreakView, error)
	Explain(ctx context.Context, userID string) (types.Explanation, error)
}

// StreaksHandler handles streak projection requests.
type StreaksHandler struct {
	deps StreakDependencies
}

// NewStreaksHandler creates a new streaks handler.
func NewStreaksHandler(deps StreakDependencies) *StreaksHandler {
	return &StreaksHandler{deps: deps}
}

// HandleGetStreak handles GET /streaks/{user_id} and
// GET /streaks/{user_id}/explain requests.
func (h *StreaksHandler) HandleGetStreak(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_streak"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/streaks/")
	userID, rest, hasRest := strings.Cut(path, "/")
	if userID == "" || (hasRest && rest != "explain") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	if hasRest {
		explanation, err := h.deps.Explain(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, explanation)
		return
	}

	view, err := h.deps.Streak(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}
