package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/inkhq/quill/internal/domain/event"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS events (
  user_id         TEXT    NOT NULL,
  seq             INTEGER NOT NULL,
  kind            TEXT    NOT NULL,
  occurred_at_ms  INTEGER NOT NULL,
  day_key         TEXT    NOT NULL,
  post_id         TEXT    NOT NULL DEFAULT '',
  board_id        TEXT    NOT NULL DEFAULT '',
  content_length  INTEGER NOT NULL DEFAULT 0,
  old_timezone    TEXT    NOT NULL DEFAULT '',
  new_timezone    TEXT    NOT NULL DEFAULT '',
  idempotency_key TEXT    NOT NULL DEFAULT '',
  PRIMARY KEY (user_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_events_user_day_kind ON events (user_id, day_key, kind);
`

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite event log at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("event store path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite event log: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite event log: %w", err)
	}
	if _, err := db.Exec(eventsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create events schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append implements Store. Sequence assignment and the insert run in one
// transaction so concurrent appends for the same user serialize.
func (s *SQLiteStore) Append(ctx context.Context, userID string, e event.Event) (event.Event, error) {
	if err := validateAppend(userID, e); err != nil {
		return event.Event{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next uint64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE user_id = ?`, userID)
	if err := row.Scan(&next); err != nil {
		return event.Event{}, fmt.Errorf("assign seq: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (
		   user_id, seq, kind, occurred_at_ms, day_key,
		   post_id, board_id, content_length,
		   old_timezone, new_timezone, idempotency_key
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, next, string(e.Kind), e.OccurredAt.UTC().UnixMilli(), e.DayKey,
		e.PostID, e.BoardID, e.ContentLength,
		e.OldTimezone, e.NewTimezone, e.IdempotencyKey,
	)
	if err != nil {
		return event.Event{}, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit append: %w", err)
	}
	e.Seq = next
	return e, nil
}

// ListAfter implements Store.
func (s *SQLiteStore) ListAfter(ctx context.Context, userID string, after uint64) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, kind, occurred_at_ms, day_key,
		        post_id, board_id, content_length,
		        old_timezone, new_timezone, idempotency_key
		   FROM events
		  WHERE user_id = ? AND seq > ?
		  ORDER BY seq ASC`,
		userID, after)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []event.Event
	for rows.Next() {
		var (
			e    event.Event
			kind string
			ms   int64
		)
		if err := rows.Scan(&e.Seq, &kind, &ms, &e.DayKey,
			&e.PostID, &e.BoardID, &e.ContentLength,
			&e.OldTimezone, &e.NewTimezone, &e.IdempotencyKey); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = event.Kind(kind)
		e.OccurredAt = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

// CountPostsOnDay implements Store.
func (s *SQLiteStore) CountPostsOnDay(ctx context.Context, userID, dayKey string, maxSeq uint64) (int, error) {
	query := `SELECT COUNT(*) FROM events
	           WHERE user_id = ? AND day_key = ? AND kind = ?`
	args := []any{userID, dayKey, string(event.KindPostCreated)}
	if maxSeq > 0 {
		query += ` AND seq <= ?`
		args = append(args, maxSeq)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count posts on %s: %w", dayKey, err)
	}
	return count, nil
}

// LatestSeq implements Store.
func (s *SQLiteStore) LatestSeq(ctx context.Context, userID string) (uint64, error) {
	var latest uint64
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE user_id = ?`, userID)
	if err := row.Scan(&latest); err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	return latest, nil
}
