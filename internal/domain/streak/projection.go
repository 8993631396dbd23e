package streak

import (
	"encoding/json"
	"fmt"
	"time"
)

// RulesVersion tags projections with the rule set that produced them.
// A cached projection carrying a different version is treated as cold.
const RulesVersion = "v2"

// Projection is the per-user streak read model. It is a pure value; the
// orchestrator owns loading, extending and persisting it.
type Projection struct {
	// Status is the current streak status.
	Status Status
	// CurrentStreak counts consecutive working days with a contribution.
	CurrentStreak int
	// OriginalStreak holds the last settled streak value; snapshotted when a
	// miss opens a recovery window.
	OriginalStreak int
	// LongestStreak is the all-time high-water mark.
	LongestStreak int
	// LastContributionDate is the day key of the latest qualifying
	// contribution, or "" if none was ever folded.
	LastContributionDate string
	// AppliedSeq is the highest real event sequence folded (checkpoint).
	AppliedSeq uint64
	// LastEvaluatedDayKey is the date through which day closures have been
	// derived. Independent of AppliedSeq: evaluation can advance across
	// silent days without new real events.
	LastEvaluatedDayKey string
	// Version is the rules version that produced this projection.
	Version string
}

// Initial returns the projection for a user with no folded history.
func Initial() Projection {
	return Projection{
		Status:  Missed{},
		Version: RulesVersion,
	}
}

// Equal reports whether two projections are identical, treating status
// deadlines as instants.
func (p Projection) Equal(o Projection) bool {
	return statusEqual(p.Status, o.Status) &&
		p.CurrentStreak == o.CurrentStreak &&
		p.OriginalStreak == o.OriginalStreak &&
		p.LongestStreak == o.LongestStreak &&
		p.LastContributionDate == o.LastContributionDate &&
		p.AppliedSeq == o.AppliedSeq &&
		p.LastEvaluatedDayKey == o.LastEvaluatedDayKey &&
		p.Version == o.Version
}

// statusJSON is the wire form of the status sum.
type statusJSON struct {
	Kind          StatusKind `json:"kind"`
	PostsRequired int        `json:"posts_required,omitempty"`
	CurrentPosts  int        `json:"current_posts,omitempty"`
	MissedDate    string     `json:"missed_date,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
}

// projectionJSON is the wire form of a projection, shared by the cache
// stores and the HTTP layer.
type projectionJSON struct {
	Status               statusJSON `json:"status"`
	CurrentStreak        int        `json:"current_streak"`
	OriginalStreak       int        `json:"original_streak"`
	LongestStreak        int        `json:"longest_streak"`
	LastContributionDate string     `json:"last_contribution_date,omitempty"`
	AppliedSeq           uint64     `json:"applied_seq"`
	LastEvaluatedDayKey  string     `json:"last_evaluated_day_key,omitempty"`
	Version              string     `json:"version"`
}

// MarshalJSON implements json.Marshaler.
func (p Projection) MarshalJSON() ([]byte, error) {
	out := projectionJSON{
		Status:               statusJSON{Kind: StatusMissed},
		CurrentStreak:        p.CurrentStreak,
		OriginalStreak:       p.OriginalStreak,
		LongestStreak:        p.LongestStreak,
		LastContributionDate: p.LastContributionDate,
		AppliedSeq:           p.AppliedSeq,
		LastEvaluatedDayKey:  p.LastEvaluatedDayKey,
		Version:              p.Version,
	}
	if p.Status != nil {
		out.Status.Kind = p.Status.Kind()
	}
	if el, ok := p.Status.(Eligible); ok {
		deadline := el.Deadline
		out.Status.PostsRequired = el.PostsRequired
		out.Status.CurrentPosts = el.CurrentPosts
		out.Status.MissedDate = el.MissedDate
		out.Status.Deadline = &deadline
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Projection) UnmarshalJSON(data []byte) error {
	var in projectionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode projection: %w", err)
	}
	var status Status
	switch in.Status.Kind {
	case StatusOnStreak:
		status = OnStreak{}
	case StatusEligible:
		el := Eligible{
			PostsRequired: in.Status.PostsRequired,
			CurrentPosts:  in.Status.CurrentPosts,
			MissedDate:    in.Status.MissedDate,
		}
		if in.Status.Deadline != nil {
			el.Deadline = *in.Status.Deadline
		}
		status = el
	case StatusMissed, "":
		status = Missed{}
	default:
		return fmt.Errorf("decode projection: unknown status kind %q", in.Status.Kind)
	}
	*p = Projection{
		Status:               status,
		CurrentStreak:        in.CurrentStreak,
		OriginalStreak:       in.OriginalStreak,
		LongestStreak:        in.LongestStreak,
		LastContributionDate: in.LastContributionDate,
		AppliedSeq:           in.AppliedSeq,
		LastEvaluatedDayKey:  in.LastEvaluatedDayKey,
		Version:              in.Version,
	}
	return nil
}
