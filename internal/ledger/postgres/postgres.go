// Package postgres implements [ledger.Ledger] on PostgreSQL so several
// sttdata processes can share one run history.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/sttdata/internal/ledger"
)

const ddlRecordings = `
CREATE TABLE IF NOT EXISTS sttdata_recordings (
    run_id       TEXT         NOT NULL,
    recording_id TEXT         NOT NULL,
    sr_no        INTEGER      NOT NULL DEFAULT 0,
    state        TEXT         NOT NULL,
    segments     INTEGER      NOT NULL DEFAULT 0,
    error        TEXT         NOT NULL DEFAULT '',
    done         BOOLEAN      NOT NULL DEFAULT false,
    started_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (run_id, recording_id)
);

CREATE INDEX IF NOT EXISTS idx_sttdata_recordings_recording
    ON sttdata_recordings (recording_id, state);
`

// Ledger is a PostgreSQL-backed run ledger. It is safe for concurrent use.
type Ledger struct {
	pool *pgxpool.Pool
}

var _ ledger.Ledger = (*Ledger)(nil)

// Open connects to dsn, verifies the connection and creates the table if
// needed.
func Open(ctx context.Context, dsn string) (*Ledger, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres ledger: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres ledger: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ledger: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Ledger{pool: pool}, nil
}

// Migrate creates the ledger table and index if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlRecordings); err != nil {
		return fmt.Errorf("postgres ledger: migrate: %w", err)
	}
	return nil
}

// Begin implements [ledger.Ledger].
func (l *Ledger) Begin(ctx context.Context, runID, recordingID string, srNo int, state string) error {
	const q = `
INSERT INTO sttdata_recordings (run_id, recording_id, sr_no, state)
VALUES ($1, $2, $3, $4)
ON CONFLICT (run_id, recording_id) DO UPDATE SET
    sr_no      = EXCLUDED.sr_no,
    state      = EXCLUDED.state,
    segments   = 0,
    error      = '',
    done       = false,
    started_at = now(),
    updated_at = now()`
	if _, err := l.pool.Exec(ctx, q, runID, recordingID, srNo, state); err != nil {
		return fmt.Errorf("postgres ledger: begin %s/%s: %w", runID, recordingID, err)
	}
	return nil
}

// Transition implements [ledger.Ledger].
func (l *Ledger) Transition(ctx context.Context, runID, recordingID, state string) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE sttdata_recordings SET state = $3, updated_at = now() WHERE run_id = $1 AND recording_id = $2`,
		runID, recordingID, state)
	return checkTag(tag, err, "transition", runID, recordingID)
}

// Finish implements [ledger.Ledger].
func (l *Ledger) Finish(ctx context.Context, runID, recordingID, state string, segments int, errMsg string) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE sttdata_recordings
SET state = $3, segments = $4, error = $5, done = true, updated_at = now()
WHERE run_id = $1 AND recording_id = $2`,
		runID, recordingID, state, segments, errMsg)
	return checkTag(tag, err, "finish", runID, recordingID)
}

func checkTag(tag pgconn.CommandTag, err error, op, runID, recordingID string) error {
	if err != nil {
		return fmt.Errorf("postgres ledger: %s %s/%s: %w", op, runID, recordingID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres ledger: %s %s/%s: %w", op, runID, recordingID, ledger.ErrNotFound)
	}
	return nil
}

// List implements [ledger.Ledger].
func (l *Ledger) List(ctx context.Context, f ledger.Filter) ([]ledger.Entry, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if f.RunID != "" {
		conditions = append(conditions, "run_id = "+next(f.RunID))
	}
	if f.RecordingID != "" {
		conditions = append(conditions, "recording_id = "+next(f.RecordingID))
	}
	if f.State != "" {
		conditions = append(conditions, "state = "+next(f.State))
	}

	q := "SELECT run_id, recording_id, sr_no, state, segments, error, done, started_at, updated_at\n" +
		"FROM   sttdata_recordings"
	if len(conditions) > 0 {
		q += "\nWHERE  " + strings.Join(conditions, "\n  AND  ")
	}
	q += "\nORDER  BY updated_at DESC, sr_no ASC"
	if f.Limit > 0 {
		q += "\nLIMIT " + next(f.Limit)
	}

	rows, err := l.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres ledger: list: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledger.Entry, error) {
		var e ledger.Entry
		err := row.Scan(&e.RunID, &e.RecordingID, &e.SrNo, &e.State, &e.Segments, &e.Error, &e.Done, &e.StartedAt, &e.UpdatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres ledger: scan rows: %w", err)
	}
	return entries, nil
}

// Ping implements [ledger.Ledger].
func (l *Ledger) Ping(ctx context.Context) error {
	if err := l.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ledger: ping: %w", err)
	}
	return nil
}

// Close implements [ledger.Ledger].
func (l *Ledger) Close() error {
	l.pool.Close()
	return nil
}
