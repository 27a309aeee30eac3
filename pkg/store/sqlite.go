// Package store persists usage snapshots and probe failures in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rmax-ai/usagelord/pkg/provider"
)

// Store manages the SQLite connection and schema.
type Store struct {
	db *sql.DB
}

// NewStore initializes the SQLite database connection.
// It enables WAL mode for concurrency and durability.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	// Enable WAL mode (Write-Ahead Logging)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	// Snapshots are append-only: each probe writes a fresh row and the
	// previous one is superseded, never updated. Quotas are stored as a
	// JSON blob since their shape varies per provider.
	query := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider_id TEXT NOT NULL,
		captured_at DATETIME NOT NULL,
		quotas JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_provider_time ON snapshots(provider_id, captured_at);

	CREATE TABLE IF NOT EXISTS probe_failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT,
		occurred_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_failures_provider_time ON probe_failures(provider_id, occurred_at);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// AppendSnapshot records one probe result.
func (s *Store) AppendSnapshot(ctx context.Context, snap provider.UsageSnapshot) error {
	quotas, err := json.Marshal(snap.Quotas)
	if err != nil {
		return fmt.Errorf("failed to marshal quotas: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (provider_id, captured_at, quotas) VALUES (?, ?, ?)`,
		string(snap.ProviderID), snap.CapturedAt.UTC(), string(quotas))
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshots returns the most recent snapshot per provider.
func (s *Store) LatestSnapshots(ctx context.Context) ([]provider.UsageSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider_id, captured_at, quotas FROM snapshots
		WHERE id IN (SELECT MAX(id) FROM snapshots GROUP BY provider_id)
		ORDER BY provider_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshots: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// History returns snapshots for one provider since the given time, newest
// first, capped at limit.
func (s *Store) History(ctx context.Context, providerID provider.ProviderID, since time.Time, limit int) ([]provider.UsageSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider_id, captured_at, quotas FROM snapshots
		WHERE provider_id = ? AND captured_at >= ?
		ORDER BY captured_at DESC LIMIT ?`,
		string(providerID), since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func scanSnapshots(rows *sql.Rows) ([]provider.UsageSnapshot, error) {
	var snaps []provider.UsageSnapshot
	for rows.Next() {
		var (
			pid      string
			captured time.Time
			quotas   string
		)
		if err := rows.Scan(&pid, &captured, &quotas); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snap := provider.UsageSnapshot{
			ProviderID: provider.ProviderID(pid),
			CapturedAt: captured,
		}
		if err := json.Unmarshal([]byte(quotas), &snap.Quotas); err != nil {
			return nil, fmt.Errorf("failed to unmarshal quotas: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// ProbeFailure is one recorded probe error.
type ProbeFailure struct {
	ProviderID provider.ProviderID `json:"provider_id"`
	Kind       string              `json:"kind"`
	Message    string              `json:"message,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// AppendFailure records a failed probe attempt.
func (s *Store) AppendFailure(ctx context.Context, f ProbeFailure) error {
	occurred := f.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO probe_failures (provider_id, kind, message, occurred_at) VALUES (?, ?, ?, ?)`,
		string(f.ProviderID), f.Kind, f.Message, occurred.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert failure: %w", err)
	}
	return nil
}

// RecentFailures returns the newest failures for one provider.
func (s *Store) RecentFailures(ctx context.Context, providerID provider.ProviderID, limit int) ([]ProbeFailure, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider_id, kind, message, occurred_at FROM probe_failures
		WHERE provider_id = ? ORDER BY id DESC LIMIT ?`,
		string(providerID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var failures []ProbeFailure
	for rows.Next() {
		var (
			pid string
			f   ProbeFailure
		)
		if err := rows.Scan(&pid, &f.Kind, &f.Message, &f.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan failure row: %w", err)
		}
		f.ProviderID = provider.ProviderID(pid)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}
