// Package history keeps an append-only journal of workflow runs, giving
// approvals and executions an audit trail beyond the TUI transcript.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run is one recorded workflow, terminal state included.
type Run struct {
	ID             string
	Mode           string // "query" or "task"
	Request        string
	Script         string
	Classification string
	Approved       bool
	Succeeded      bool
	Detail         string // error or cancellation note, empty on success
	CreatedAt      time.Time
}

// timeLayout is RFC3339 with fixed-width fractional seconds. RFC3339Nano
// trims trailing zeros, which breaks lexical ordering of the stored text
// ("...51Z" sorts before "...5Z"); the fixed-width form sorts correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists runs in a sqlite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: wal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		mode           TEXT NOT NULL,
		request        TEXT NOT NULL,
		script         TEXT NOT NULL DEFAULT '',
		classification TEXT NOT NULL DEFAULT '',
		approved       INTEGER NOT NULL DEFAULT 0,
		succeeded      INTEGER NOT NULL DEFAULT 0,
		detail         TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL
	)`)
	return err
}

// Record appends one run. A missing ID or timestamp is filled in.
func (s *Store) Record(ctx context.Context, r Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, request, script, classification, approved, succeeded, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Mode, r.Request, r.Script, r.Classification,
		boolInt(r.Approved), boolInt(r.Succeeded), r.Detail,
		r.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("history: record run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, request, script, classification, approved, succeeded, detail, created_at
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var approved, succeeded int
		var created string
		if err := rows.Scan(&r.ID, &r.Mode, &r.Request, &r.Script, &r.Classification,
			&approved, &succeeded, &r.Detail, &created); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.Approved = approved != 0
		r.Succeeded = succeeded != 0
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			r.CreatedAt = t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
