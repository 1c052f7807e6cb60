package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists Snapshots in a sqlite table, one row per saved
// snapshot, the payload held as a JSON blob rather than normalized
// columns since a Snapshot's shape varies by what it carries (cities,
// events, configs are all optional).
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if absent) a sqlite database at path
// and ensures the snapshot table exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %q: %w", path, err)
	}
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	const schema = `
		CREATE TABLE IF NOT EXISTS world_snapshots (
			id          TEXT PRIMARY KEY,
			run_id      TEXT NOT NULL,
			step_number INTEGER NOT NULL,
			status      TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			payload     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_world_snapshots_run_id ON world_snapshots (run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("snapshot: create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save persists snap under runID, returning the generated snapshot ID.
func (s *SQLiteStore) Save(ctx context.Context, runID string, snap Snapshot) (string, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("snapshot: marshal payload: %w", err)
	}

	id := uuid.NewString()
	const query = `
		INSERT INTO world_snapshots (id, run_id, step_number, status, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query, id, runID, snap.Step, string(snap.Status), snap.CreatedAt, string(payload))
	if err != nil {
		return "", fmt.Errorf("snapshot: insert: %w", err)
	}
	return id, nil
}

// Load retrieves the snapshot with the given ID.
func (s *SQLiteStore) Load(ctx context.Context, id string) (Snapshot, error) {
	const query = `SELECT payload FROM world_snapshots WHERE id = ?`

	var payload string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return Snapshot{}, fmt.Errorf("snapshot: no snapshot with id %q", id)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: query: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: unmarshal payload: %w", err)
	}
	return snap, nil
}

// ListByRun returns every snapshot stored under runID, ordered by step.
func (s *SQLiteStore) ListByRun(ctx context.Context, runID string) ([]Snapshot, error) {
	const query = `
		SELECT payload FROM world_snapshots
		WHERE run_id = ?
		ORDER BY step_number ASC
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("snapshot: query run %q: %w", runID, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("snapshot: scan: %w", err)
		}
		var snap Snapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("snapshot: unmarshal payload: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: iterate run %q: %w", runID, err)
	}
	return out, nil
}

// DeleteRun removes every snapshot stored under runID.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	const query = `DELETE FROM world_snapshots WHERE run_id = ?`
	if _, err := s.db.ExecContext(ctx, query, runID); err != nil {
		return fmt.Errorf("snapshot: delete run %q: %w", runID, err)
	}
	return nil
}
