// Package history keeps a local SQLite journal of CLI invocations so past
// ingest and report runs can be reviewed without a PostGIS connection.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Run outcome values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is one recorded CLI invocation.
type Entry struct {
	ID        string        `json:"id"`
	Command   string        `json:"command"`
	Args      []string      `json:"args"`
	Status    string        `json:"status"`
	Detail    string        `json:"detail,omitempty"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}

// Store persists run entries using modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

// Open opens the journal at the given path and configures WAL mode.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "history: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "history: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	command     TEXT NOT NULL,
	args        TEXT NOT NULL,
	status      TEXT NOT NULL,
	detail      TEXT,
	duration_ms INTEGER NOT NULL,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_command ON runs(command);
`

// Migrate creates the journal schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "history: migrate")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one entry. ID and StartedAt are assigned here.
func (s *Store) Record(ctx context.Context, e Entry) (*Entry, error) {
	e.ID = uuid.New().String()
	e.StartedAt = time.Now().UTC()

	argsJSON, err := json.Marshal(e.Args)
	if err != nil {
		return nil, eris.Wrap(err, "history: marshal args")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, args, status, detail, duration_ms, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Command, string(argsJSON), e.Status, e.Detail, e.Duration.Milliseconds(), e.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "history: insert run")
	}

	return &e, nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, args, status, detail, duration_ms, started_at FROM runs
		 ORDER BY started_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "history: list runs")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			argsJSON   string
			detail     sql.NullString
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &e.Command, &argsJSON, &e.Status, &detail, &durationMS, &e.StartedAt); err != nil {
			return nil, eris.Wrap(err, "history: scan run")
		}
		if err := json.Unmarshal([]byte(argsJSON), &e.Args); err != nil {
			return nil, eris.Wrap(err, "history: unmarshal args")
		}
		e.Detail = detail.String
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "history: list runs iterate")
}
