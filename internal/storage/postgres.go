// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"roomsync/internal/model"
)

// AuditStore keeps the history of reconciliation runs in Postgres.
type AuditStore struct {
	DB *sql.DB
}

func NewAuditStore(dsn string) (*AuditStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return &AuditStore{DB: db}, nil
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS reconcile_runs (
	id          UUID PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	dry_run     BOOLEAN NOT NULL,
	rooms_fixed INT NOT NULL,
	errors      INT NOT NULL,
	synced      INT NOT NULL,
	report      JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS reconcile_decisions (
	run_id      UUID NOT NULL REFERENCES reconcile_runs(id) ON DELETE CASCADE,
	room_id     TEXT NOT NULL,
	room_number TEXT NOT NULL,
	before_ref  TEXT NOT NULL,
	after_ref   TEXT NOT NULL,
	action      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS reconcile_runs_started_at_idx ON reconcile_runs (started_at DESC);`

// EnsureSchema creates the audit tables if they do not exist.
func (s *AuditStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// SaveRun stores the report and one row per room decision that changed or
// failed to change something. Kept rooms are only counted in the report.
func (s *AuditStore) SaveRun(ctx context.Context, r *model.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reconcile_runs (id, started_at, finished_at, dry_run, rooms_fixed, errors, synced, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.RunID, r.StartedAt, r.FinishedAt, r.DryRun, r.Fixed(), r.Repair.Errors+r.Sync.Errors, r.Sync.Updated, payload)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reconcile_decisions (run_id, room_id, room_number, before_ref, after_ref, action, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("prepare decisions: %w", err)
	}
	defer stmt.Close()

	for _, d := range r.Repair.Decisions {
		if d.Action == model.ActionKept {
			continue
		}
		_, err := stmt.ExecContext(ctx, r.RunID, string(d.RoomID), d.RoomNumber,
			string(d.Before), string(d.After), string(d.Action), d.Error)
		if err != nil {
			return fmt.Errorf("insert decision for room %s: %w", d.RoomID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LatestRun returns the most recently started run, or ErrNotFound.
func (s *AuditStore) LatestRun(ctx context.Context) (*model.Report, error) {
	var payload []byte
	err := s.DB.QueryRowContext(ctx, `
		SELECT report FROM reconcile_runs
		ORDER BY started_at DESC
		LIMIT 1
	`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}

	var r model.Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *AuditStore) ListRuns(ctx context.Context, limit int) ([]model.Report, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT report FROM reconcile_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	reports := []model.Report{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		var r model.Report
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *AuditStore) Close() error {
	return s.DB.Close()
}
