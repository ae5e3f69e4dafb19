// Copyright 2025 James Ross
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jrossdev/cogsim/internal/errs"
)

// Store is the single-file transactional persistence layer for jobs,
// results, and queue records. Writes go through a dedicated single-conn
// handle so SQLite's own locking plus our short-transaction discipline
// serializes every mutation; reads use a separate handle with a higher
// connection cap.
type Store struct {
	write *sql.DB
	read  *sql.DB
}

// New opens (creating if absent) a SQLite database at path, applies
// pragmas, and runs idempotent schema migrations.
func New(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)

	write, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open write handle: %w", err)
	}
	write.SetMaxOpenConns(1)

	read, err := sql.Open("sqlite3", dsn)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read handle: %w", err)
	}
	read.SetMaxOpenConns(8)

	for _, db := range []*sql.DB{write, read} {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			return nil, fmt.Errorf("set WAL: %w", err)
		}
		if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
			return nil, fmt.Errorf("set busy_timeout: %w", err)
		}
	}

	s := &Store{write: write, read: read}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	werr := s.write.Close()
	rerr := s.read.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			job_id TEXT PRIMARY KEY,
			backend TEXT NOT NULL,
			workdir TEXT NOT NULL,
			inputs TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			job_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			metrics TEXT NOT NULL DEFAULT '{}',
			artifacts TEXT NOT NULL DEFAULT '{}',
			logs TEXT NOT NULL DEFAULT '[]',
			error TEXT,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS queue (
			job_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			error TEXT,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 1,
			enqueued_at TIMESTAMP NOT NULL,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.write.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Idempotent column additions for queue — mirrors the original store's
	// startup check so a database created by an older build still gets
	// attempt_count/max_attempts without losing rows.
	rows, err := s.write.Query(`PRAGMA table_info(queue)`)
	if err != nil {
		return fmt.Errorf("introspect queue: %w", err)
	}
	have := map[string]bool{}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("scan table_info: %w", err)
		}
		have[name] = true
	}
	rows.Close()

	if !have["attempt_count"] {
		if _, err := s.write.Exec(`ALTER TABLE queue ADD COLUMN attempt_count INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("add attempt_count: %w", err)
		}
	}
	if !have["max_attempts"] {
		if _, err := s.write.Exec(`ALTER TABLE queue ADD COLUMN max_attempts INTEGER NOT NULL DEFAULT 1`); err != nil {
			return fmt.Errorf("add max_attempts: %w", err)
		}
	}
	return nil
}

// Summary reports aggregate counts across the three tables.
type Summary struct {
	TotalJobs    int            `json:"total_jobs"`
	ResultStatus map[string]int `json:"result_status"`
	QueueState   map[string]int `json:"queue_state"`
}

func (s *Store) Summary() (Summary, error) {
	sum := Summary{ResultStatus: map[string]int{}, QueueState: map[string]int{}}

	if err := s.read.QueryRow(`SELECT COUNT(*) FROM jobs`).Scan(&sum.TotalJobs); err != nil {
		return sum, errs.Wrap(errs.Internal, "SUMMARY_FAILED", "count jobs", err)
	}

	rows, err := s.read.Query(`SELECT status, COUNT(*) FROM results GROUP BY status`)
	if err != nil {
		return sum, errs.Wrap(errs.Internal, "SUMMARY_FAILED", "group results", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return sum, errs.Wrap(errs.Internal, "SUMMARY_FAILED", "scan result group", err)
		}
		sum.ResultStatus[status] = n
	}
	rows.Close()

	rows, err = s.read.Query(`SELECT state, COUNT(*) FROM queue GROUP BY state`)
	if err != nil {
		return sum, errs.Wrap(errs.Internal, "SUMMARY_FAILED", "group queue", err)
	}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			rows.Close()
			return sum, errs.Wrap(errs.Internal, "SUMMARY_FAILED", "scan queue group", err)
		}
		sum.QueueState[state] = n
	}
	rows.Close()

	return sum, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
