// Package sqlite implements [ledger.Ledger] on a local SQLite file using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/sttdata/internal/ledger"
)

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
    run_id       TEXT    NOT NULL,
    recording_id TEXT    NOT NULL,
    sr_no        INTEGER NOT NULL DEFAULT 0,
    state        TEXT    NOT NULL,
    segments     INTEGER NOT NULL DEFAULT 0,
    error        TEXT    NOT NULL DEFAULT '',
    done         INTEGER NOT NULL DEFAULT 0,
    started_at   TEXT    NOT NULL,
    updated_at   TEXT    NOT NULL,
    PRIMARY KEY (run_id, recording_id)
);
CREATE INDEX IF NOT EXISTS idx_recordings_recording ON recordings (recording_id, state);
`

// Ledger is a SQLite-backed run ledger.
type Ledger struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ ledger.Ledger = (*Ledger)(nil)

// Open creates or opens the ledger database at path and applies the schema.
func Open(ctx context.Context, path string) (*Ledger, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite ledger: open %q: %w", path, err)
	}
	// A single writer connection avoids SQLITE_BUSY between pooled conns.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ledger: apply schema: %w", err)
	}
	return &Ledger{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string { return l.path }

func (l *Ledger) timestamp() string {
	return l.now().UTC().Format(time.RFC3339Nano)
}

// Begin implements [ledger.Ledger].
func (l *Ledger) Begin(ctx context.Context, runID, recordingID string, srNo int, state string) error {
	ts := l.timestamp()
	_, err := l.db.ExecContext(ctx, `
INSERT INTO recordings (run_id, recording_id, sr_no, state, started_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (run_id, recording_id) DO UPDATE SET
    sr_no = excluded.sr_no,
    state = excluded.state,
    segments = 0,
    error = '',
    done = 0,
    started_at = excluded.started_at,
    updated_at = excluded.updated_at`,
		runID, recordingID, srNo, state, ts, ts)
	if err != nil {
		return fmt.Errorf("sqlite ledger: begin %s/%s: %w", runID, recordingID, err)
	}
	return nil
}

// Transition implements [ledger.Ledger].
func (l *Ledger) Transition(ctx context.Context, runID, recordingID, state string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE recordings SET state = ?, updated_at = ? WHERE run_id = ? AND recording_id = ?`,
		state, l.timestamp(), runID, recordingID)
	return l.checkUpdate(res, err, "transition", runID, recordingID)
}

// Finish implements [ledger.Ledger].
func (l *Ledger) Finish(ctx context.Context, runID, recordingID, state string, segments int, errMsg string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE recordings SET state = ?, segments = ?, error = ?, done = 1, updated_at = ?
WHERE run_id = ? AND recording_id = ?`,
		state, segments, errMsg, l.timestamp(), runID, recordingID)
	return l.checkUpdate(res, err, "finish", runID, recordingID)
}

func (l *Ledger) checkUpdate(res sql.Result, err error, op, runID, recordingID string) error {
	if err != nil {
		return fmt.Errorf("sqlite ledger: %s %s/%s: %w", op, runID, recordingID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite ledger: %s %s/%s: %w", op, runID, recordingID, err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite ledger: %s %s/%s: %w", op, runID, recordingID, ledger.ErrNotFound)
	}
	return nil
}

// List implements [ledger.Ledger].
func (l *Ledger) List(ctx context.Context, f ledger.Filter) ([]ledger.Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.RecordingID != "" {
		where = append(where, "recording_id = ?")
		args = append(args, f.RecordingID)
	}
	if f.State != "" {
		where = append(where, "state = ?")
		args = append(args, f.State)
	}

	var b strings.Builder
	b.WriteString(`SELECT run_id, recording_id, sr_no, state, segments, error, done, started_at, updated_at FROM recordings`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY updated_at DESC, sr_no ASC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	rows, err := l.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite ledger: list: %w", err)
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var (
			e                ledger.Entry
			done             int
			started, updated string
		)
		if err := rows.Scan(&e.RunID, &e.RecordingID, &e.SrNo, &e.State, &e.Segments, &e.Error, &done, &started, &updated); err != nil {
			return nil, fmt.Errorf("sqlite ledger: scan: %w", err)
		}
		e.Done = done != 0
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite ledger: list: %w", err)
	}
	return out, nil
}

// Ping implements [ledger.Ledger].
func (l *Ledger) Ping(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ledger: ping: %w", err)
	}
	return nil
}

// Close implements [ledger.Ledger].
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
