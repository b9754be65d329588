package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dshills/n8nctl/pkg/publish"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// JournalFile is the journal's file name inside the config directory.
const JournalFile = "history.db"

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrAmbiguousRun = errors.New("run id prefix matches several runs")
)

// RunRecord is one journaled publish run.
type RunRecord struct {
	ID          string
	BaseURL     string
	Dir         string
	Status      string
	Total       int
	Created     int
	Updated     int
	Failed      int
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time // zero while running
}

// ItemRecord is the journaled outcome of one definition.
type ItemRecord struct {
	RunID      string
	File       string
	Name       string
	Outcome    string // created, updated or failed
	RemoteID   string
	Error      string
	RecordedAt time.Time
}

// Journal records publish runs in SQLite.
type Journal struct {
	db *sql.DB

	mu  sync.Mutex
	err error
}

// OpenJournal opens or creates the journal database at dbPath.
func OpenJournal(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := InitializeDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Err returns the first error met while recording events.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Handler returns an event handler recording runs against baseURL. Event
// handlers cannot fail, so write errors are kept for Err.
func (j *Journal) Handler(baseURL string) publish.EventHandler {
	return func(e publish.Event) {
		if err := j.record(baseURL, e); err != nil {
			log.Printf("journal: %v", err)
			j.mu.Lock()
			if j.err == nil {
				j.err = err
			}
			j.mu.Unlock()
		}
	}
}

func (j *Journal) record(baseURL string, e publish.Event) error {
	at := e.Time.UTC()

	switch e.Type {
	case publish.EventRunStarted:
		_, err := j.db.Exec(`
			INSERT INTO runs (id, base_url, dir, status, total, started_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET status = excluded.status, total = excluded.total`,
			e.RunID, baseURL, e.Dir, RunRunning, e.Total, at)
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}

	case publish.EventRunFailed:
		_, err := j.db.Exec(`
			INSERT INTO runs (id, base_url, dir, status, error_message, started_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status = excluded.status,
				error_message = excluded.error_message,
				completed_at = excluded.completed_at`,
			e.RunID, baseURL, e.Dir, RunFailed, errorString(e.Err), at, at)
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}

	case publish.EventRunCompleted:
		var created, updated, failed int
		if e.Report != nil {
			created, updated, failed = e.Report.Created, e.Report.Updated, e.Report.Failed
		}
		_, err := j.db.Exec(`
			UPDATE runs SET status = ?, created = ?, updated = ?, failed = ?, completed_at = ?
			WHERE id = ?`,
			RunCompleted, created, updated, failed, at, e.RunID)
		if err != nil {
			return fmt.Errorf("failed to complete run: %w", err)
		}

	case publish.EventItemCreated, publish.EventItemUpdated, publish.EventItemFailed:
		_, err := j.db.Exec(`
			INSERT INTO items (run_id, file, name, outcome, remote_id, error_message, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.RunID, e.File, e.Name, strings.TrimPrefix(string(e.Type), "item."), e.RemoteID, errorString(e.Err), at)
		if err != nil {
			return fmt.Errorf("failed to save item %s: %w", e.File, err)
		}
	}
	return nil
}

const runColumns = `id, base_url, dir, status, total, created, updated, failed,
	error_message, started_at, completed_at`

// Runs returns the most recent runs first. A limit of zero or less returns
// every run.
func (j *Journal) Runs(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := j.db.Query(`SELECT `+runColumns+` FROM runs
		ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Run returns the run whose id starts with prefix.
func (j *Journal) Run(prefix string) (*RunRecord, error) {
	if prefix == "" {
		return nil, fmt.Errorf("run id cannot be empty")
	}

	rows, err := j.db.Query(`SELECT `+runColumns+` FROM runs
		WHERE substr(id, 1, ?) = ? LIMIT 2`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var found []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRun, prefix)
	}
}

// Items returns the item outcomes of a run in publishing order.
func (j *Journal) Items(runID string) ([]ItemRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, file, name, outcome, remote_id, error_message, recorded_at
		FROM items WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []ItemRecord
	for rows.Next() {
		var item ItemRecord
		var errMsg sql.NullString
		if err := rows.Scan(&item.RunID, &item.File, &item.Name, &item.Outcome,
			&item.RemoteID, &errMsg, &item.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Error = errMsg.String
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanRun(rows *sql.Rows) (*RunRecord, error) {
	var run RunRecord
	var errMsg sql.NullString
	var completedAt sql.NullTime

	err := rows.Scan(&run.ID, &run.BaseURL, &run.Dir, &run.Status, &run.Total,
		&run.Created, &run.Updated, &run.Failed, &errMsg, &run.StartedAt, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Error = errMsg.String
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	return &run, nil
}

func errorString(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}
