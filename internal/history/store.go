// Package history persists one entry per transcription in SQLite, grouped
// by UTC calendar day.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("history entry not found")

const (
	dayLayout = "2006-01-02"
	// Fixed width so created_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Entry is one delivered transcription.
type Entry struct {
	ID           string
	Timestamp    time.Time
	RawText      string
	RefinedText  string
	LLMUsed      bool
	Preset       string
	AudioSeconds float64
}

// Text is what the user received.
func (e Entry) Text() string {
	if e.RefinedText != "" {
		return e.RefinedText
	}
	return e.RawText
}

type Day struct {
	Date  string
	Count int
}

type Store struct {
	db     *sql.DB
	logger *zap.Logger
	clock  func() time.Time
}

func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, logger: logger, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS transcriptions (
    id TEXT PRIMARY KEY,
    day TEXT NOT NULL,
    created_at TEXT NOT NULL,
    raw_text TEXT NOT NULL,
    refined_text TEXT,
    llm_used INTEGER NOT NULL DEFAULT 0,
    preset TEXT,
    audio_seconds REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_day_created ON transcriptions(day, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores entry, assigning an ID and timestamp when missing.
func (s *Store) Append(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.clock()
	}
	ts := entry.Timestamp.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcriptions(id, day, created_at, raw_text, refined_text, llm_used, preset, audio_seconds)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, ts.Format(dayLayout), ts.Format(timeLayout), entry.RawText,
		nullString(entry.RefinedText), entry.LLMUsed, nullString(entry.Preset), entry.AudioSeconds)
	if err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}

	s.logger.Debug("history entry appended", zap.String("id", entry.ID), zap.String("day", ts.Format(dayLayout)))
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.query(ctx,
		`SELECT id, created_at, raw_text, refined_text, llm_used, preset, audio_seconds
		 FROM transcriptions ORDER BY created_at DESC LIMIT ?`, limit)
}

// ForDate returns the entries of the UTC calendar day containing day,
// oldest first.
func (s *Store) ForDate(ctx context.Context, day time.Time) ([]Entry, error) {
	return s.query(ctx,
		`SELECT id, created_at, raw_text, refined_text, llm_used, preset, audio_seconds
		 FROM transcriptions WHERE day = ? ORDER BY created_at ASC`, day.UTC().Format(dayLayout))
}

// Dates lists the days that have entries, newest first.
func (s *Store) Dates(ctx context.Context) ([]Day, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, COUNT(*) FROM transcriptions GROUP BY day ORDER BY day DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []Day
	for rows.Next() {
		var d Day
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Clear removes every entry and reports how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transcriptions`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			created string
			refined sql.NullString
			preset  sql.NullString
		)
		if err := rows.Scan(&e.ID, &created, &e.RawText, &refined, &e.LLMUsed, &preset, &e.AudioSeconds); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(timeLayout, created); err == nil {
			e.Timestamp = ts
		}
		e.RefinedText = refined.String
		e.Preset = preset.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
