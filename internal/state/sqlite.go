package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			level TEXT NOT NULL,
			song TEXT NOT NULL,
			pattern TEXT NOT NULL,
			outcome TEXT NOT NULL CHECK (outcome IN ('success', 'fail')),
			ts TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS attempts_mode_level ON attempts(mode, level);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) RecordAttempt(ctx context.Context, a Attempt) (int64, error) {
	outcome := Outcome(strings.TrimSpace(string(a.Outcome)))
	if outcome != OutcomeSuccess && outcome != OutcomeFail {
		return 0, fmt.Errorf("record attempt: invalid outcome %q", a.Outcome)
	}
	ts := a.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts(session_id, mode, level, song, pattern, outcome, ts) VALUES(?,?,?,?,?,?,?)`,
		a.SessionID,
		strings.TrimSpace(a.Mode),
		formatLevel(a.Level),
		a.Song,
		a.Pattern,
		string(outcome),
		ts.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) GetSummary(ctx context.Context) (Summary, error) {
	var out Summary
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT session_id) as sessions,
			COUNT(*) as attempts,
			COALESCE(SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END),0) as successes,
			COALESCE(SUM(CASE WHEN outcome = 'fail' THEN 1 ELSE 0 END),0) as failures
		FROM attempts
	`)
	if err := row.Scan(&out.Sessions, &out.Attempts, &out.Successes, &out.Failures); err != nil {
		return Summary{}, err
	}
	return out, nil
}

// GetLevelStats returns per-level totals for mode, ordered by level.
func (s *SQLiteStore) GetLevelStats(ctx context.Context, mode string) ([]LevelStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT level, COUNT(*), COALESCE(SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END),0)
		FROM attempts
		WHERE mode = ?
		GROUP BY level
		ORDER BY CAST(level AS REAL)
	`, strings.TrimSpace(mode))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LevelStats{}
	for rows.Next() {
		var (
			levelRaw string
			stats    LevelStats
		)
		if err := rows.Scan(&levelRaw, &stats.Attempts, &stats.Successes); err != nil {
			return nil, err
		}
		if _, err := fmt.Sscanf(levelRaw, "%g", &stats.Level); err != nil {
			continue
		}
		out = append(out, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) GetLastAttempt(ctx context.Context) (*Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, mode, level, song, pattern, outcome, ts
		FROM attempts
		ORDER BY id DESC
		LIMIT 1
	`)
	var (
		out      Attempt
		levelRaw string
		outcome  string
		tsRaw    string
	)
	if err := row.Scan(&out.SessionID, &out.Mode, &levelRaw, &out.Song, &out.Pattern, &outcome, &tsRaw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	out.Outcome = Outcome(outcome)
	if _, err := fmt.Sscanf(levelRaw, "%g", &out.Level); err != nil {
		out.Level = 0
	}
	if t, err := time.Parse(timeLayout, tsRaw); err == nil {
		out.TS = t
	}
	return &out, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// Levels are stored as their one-decimal text so grouping never splits on
// float noise.
func formatLevel(level float64) string {
	return fmt.Sprintf("%.1f", level)
}

var _ Store = (*SQLiteStore)(nil)
