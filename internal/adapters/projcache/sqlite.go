package projcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/inkhq/quill/internal/domain/streak"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

const projectionsSchema = `
CREATE TABLE IF NOT EXISTS projections (
  user_id       TEXT    NOT NULL PRIMARY KEY,
  doc           TEXT    NOT NULL,
  updated_at_ms INTEGER NOT NULL
);
`

// SQLiteStore implements Store on a SQLite database. Projections are stored
// as one JSON document per user.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite projection cache at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("projection cache path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite projection cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite projection cache: %w", err)
	}
	if _, err := db.Exec(projectionsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create projections schema: %w", err)
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

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (streak.Projection, bool, error) {
	var doc string
	row := s.db.QueryRowContext(ctx,
		`SELECT doc FROM projections WHERE user_id = ?`, userID)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return streak.Projection{}, false, nil
		}
		return streak.Projection{}, false, fmt.Errorf("read projection: %w", err)
	}
	var p streak.Projection
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return streak.Projection{}, false, fmt.Errorf("decode projection: %w", err)
	}
	return p, true, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, userID string, p streak.Projection) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode projection: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projections (user_id, doc, updated_at_ms) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET doc = excluded.doc, updated_at_ms = excluded.updated_at_ms`,
		userID, string(doc), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("write projection: %w", err)
	}
	return nil
}
