// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fretline/fretline/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for finished sessions.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			source_path TEXT NOT NULL,
			targets INTEGER NOT NULL,
			total_points INTEGER NOT NULL,
			perfect INTEGER NOT NULL,
			great INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			miss INTEGER NOT NULL,
			mean_reaction_ms REAL NOT NULL,
			longest_streak INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_hits (
			session_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			rating TEXT NOT NULL,
			delta_ms REAL NOT NULL,
			points INTEGER NOT NULL,
			PRIMARY KEY (session_id, target_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertSession stores a finished session with its per-target entries and
// returns the generated session id.
func (s *Store) InsertSession(ctx context.Context, rec model.SessionRecord, entries []model.ScoreEntry) (string, error) {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	sum := rec.Summary
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, source_path, targets, total_points, perfect, great, ok, miss, mean_reaction_ms, longest_streak)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		rec.StartedAt.Format(time.RFC3339Nano),
		rec.EndedAt.Format(time.RFC3339Nano),
		rec.SourcePath,
		rec.Targets,
		sum.TotalPoints,
		sum.Counts[model.RatingPerfect],
		sum.Counts[model.RatingGreat],
		sum.Counts[model.RatingOk],
		sum.Counts[model.RatingMiss],
		sum.MeanReactionMs,
		sum.LongestStreak,
	)
	if err != nil {
		return "", err
	}

	if len(entries) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO session_hits (session_id, target_id, rating, delta_ms, points)
			 VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return "", err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, id, e.TargetID, e.Rating.String(), e.DeltaMs, e.Points); err != nil {
				return "", err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// ListSessions returns stored sessions matching the filter, oldest first.
func (s *Store) ListSessions(ctx context.Context, filter model.StatsFilter) ([]model.SessionRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, filter.Since.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, started_at, ended_at, source_path, targets, total_points, perfect, great, ok, miss, mean_reaction_ms, longest_streak
		FROM sessions
		WHERE %s
		ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionRecord
	for rows.Next() {
		var rec model.SessionRecord
		var startedAt, endedAt string
		var perfect, great, ok, miss int
		rec.Summary.Counts = make(map[model.Rating]int)
		if err := rows.Scan(&rec.ID, &startedAt, &endedAt, &rec.SourcePath, &rec.Targets,
			&rec.Summary.TotalPoints, &perfect, &great, &ok, &miss,
			&rec.Summary.MeanReactionMs, &rec.Summary.LongestStreak); err != nil {
			return nil, err
		}
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, err
		}
		if rec.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
			return nil, err
		}
		rec.Summary.Counts[model.RatingPerfect] = perfect
		rec.Summary.Counts[model.RatingGreat] = great
		rec.Summary.Counts[model.RatingOk] = ok
		rec.Summary.Counts[model.RatingMiss] = miss
		rec.Summary.Targets = rec.Targets
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if filter.Last > 0 && len(sessions) > filter.Last {
		sessions = sessions[len(sessions)-filter.Last:]
	}
	return sessions, nil
}

// ListEntries returns the per-target entries of one session in insertion order.
func (s *Store) ListEntries(ctx context.Context, sessionID string) ([]model.ScoreEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_id, rating, delta_ms, points FROM session_hits WHERE session_id = ? ORDER BY rowid ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var entries []model.ScoreEntry
	for rows.Next() {
		var e model.ScoreEntry
		var rating string
		if err := rows.Scan(&e.TargetID, &rating, &e.DeltaMs, &e.Points); err != nil {
			return nil, err
		}
		e.Rating = parseRating(rating)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func parseRating(s string) model.Rating {
	switch s {
	case "perfect":
		return model.RatingPerfect
	case "great":
		return model.RatingGreat
	case "ok":
		return model.RatingOk
	default:
		return model.RatingMiss
	}
}
