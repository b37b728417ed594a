/*
Package sqlite provides a SQLite-backed reconcile.ProjectStore.

PURPOSE:
  Persists transcripts and analyses of every project, plus the history of
  background consistency sweeps.

KEY TABLES:
  projects:    One row per project with its revision (optimistic lock token)
  transcripts: Transcript documents in collection order, with identity
               columns for ad hoc queries
  analyses:    Analysis documents in collection order
  sweep_runs:  One row per consistency sweep

ATOMIC COMMIT:
  Commit rewrites both collections of a project inside one SQL transaction,
  after checking and bumping the revision in that same transaction. A reader
  sees either the previous commit or the new one, never a mix.

DOCUMENTS:
  Rows are stored as JSON (doc_json) because analysis rows are free-form.
  The identity columns on transcripts mirror the document and are rewritten
  on every commit; doc_json is the source of truth.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/respno.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - reconcile/store.go: Interface definitions
  - reconcile/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
)

// Store implements reconcile.ProjectStore and reconcile.SweepLog using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Projects (revision is the optimistic concurrency token)
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		revision INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	-- Transcripts, in collection order
	CREATE TABLE IF NOT EXISTS transcripts (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		respno TEXT,
		respno_locked BOOLEAN DEFAULT FALSE,
		interview_date TEXT,
		interview_time TEXT,
		doc_json TEXT NOT NULL,
		PRIMARY KEY (project_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_transcripts_id
		ON transcripts(project_id, id);

	-- Duplicate lookups by interview date and time
	CREATE INDEX IF NOT EXISTS idx_transcripts_interview
		ON transcripts(project_id, interview_date, interview_time);

	-- Analyses, in collection order
	CREATE TABLE IF NOT EXISTS analyses (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		name TEXT,
		doc_json TEXT NOT NULL,
		PRIMARY KEY (project_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_id
		ON analyses(project_id, id);

	-- Sweep Runs (for scheduled consistency sweeps)
	CREATE TABLE IF NOT EXISTS sweep_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		projects INTEGER DEFAULT 0,
		changed INTEGER DEFAULT 0,
		duplicate_transcripts INTEGER DEFAULT 0,
		duplicate_rows_dropped INTEGER DEFAULT 0,
		orphan_rows_removed INTEGER DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sweep_runs_started
		ON sweep_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PROJECT STORE (reconcile.ProjectStore interface)
// =============================================================================

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Load returns a project's transcripts and analyses as of one commit.
func (s *Store) Load(ctx context.Context, projectID string) (reconcile.ProjectData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return reconcile.ProjectData{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	return loadProject(ctx, tx, projectID)
}

func loadProject(ctx context.Context, q queryer, projectID string) (reconcile.ProjectData, error) {
	data := reconcile.ProjectData{ProjectID: projectID}

	revision, err := currentRevision(ctx, q, projectID)
	if err != nil {
		return data, err
	}
	data.Revision = revision

	rows, err := q.QueryContext(ctx,
		`SELECT doc_json FROM transcripts WHERE project_id = ? ORDER BY position`, projectID)
	if err != nil {
		return data, fmt.Errorf("failed to load transcripts: %w", err)
	}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			rows.Close()
			return data, err
		}
		var t reconcile.Transcript
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			rows.Close()
			return data, fmt.Errorf("failed to decode transcript: %w", err)
		}
		data.Transcripts = append(data.Transcripts, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return data, err
	}

	rows, err = q.QueryContext(ctx,
		`SELECT doc_json FROM analyses WHERE project_id = ? ORDER BY position`, projectID)
	if err != nil {
		return data, fmt.Errorf("failed to load analyses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return data, err
		}
		var a reconcile.Analysis
		if err := json.Unmarshal([]byte(doc), &a); err != nil {
			return data, fmt.Errorf("failed to decode analysis: %w", err)
		}
		data.Analyses = append(data.Analyses, a)
	}
	return data, rows.Err()
}

func currentRevision(ctx context.Context, q queryer, projectID string) (int64, error) {
	var revision int64
	err := q.QueryRowContext(ctx, `SELECT revision FROM projects WHERE id = ?`, projectID).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read revision: %w", err)
	}
	return revision, nil
}

// Commit rewrites both collections of data.ProjectID in one transaction.
func (s *Store) Commit(ctx context.Context, data reconcile.ProjectData) (reconcile.ProjectData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var committed reconcile.ProjectData
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		revision, err := currentRevision(ctx, tx, data.ProjectID)
		if err != nil {
			return err
		}
		if revision != data.Revision {
			return reconcile.ErrConcurrentModification
		}

		next := revision + 1
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, revision, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				revision = excluded.revision,
				updated_at = excluded.updated_at
		`, data.ProjectID, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("failed to bump revision: %w", err)
		}

		if err := replaceTranscripts(ctx, tx, data.ProjectID, data.Transcripts); err != nil {
			return err
		}
		if err := replaceAnalyses(ctx, tx, data.ProjectID, data.Analyses); err != nil {
			return err
		}

		committed = reconcile.CloneProject(data)
		committed.Revision = next
		return nil
	})
	if errors.Is(err, reconcile.ErrConcurrentModification) {
		return reconcile.ProjectData{}, err
	}
	if err != nil {
		return reconcile.ProjectData{}, &reconcile.CommitError{ProjectID: data.ProjectID, Err: err}
	}
	return committed, nil
}

func replaceTranscripts(ctx context.Context, db execer, projectID string, ts []reconcile.Transcript) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM transcripts WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to clear transcripts: %w", err)
	}
	query := `
		INSERT INTO transcripts
		(project_id, position, id, respno, respno_locked, interview_date, interview_time, doc_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, t := range ts {
		doc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to encode transcript %s: %w", t.ID, err)
		}
		if _, err := db.ExecContext(ctx, query,
			projectID, i, t.ID,
			nullString(t.Respno), t.RespnoLocked,
			nullString(t.InterviewDate), nullString(t.InterviewTime),
			string(doc),
		); err != nil {
			return fmt.Errorf("failed to insert transcript %s: %w", t.ID, err)
		}
	}
	return nil
}

func replaceAnalyses(ctx context.Context, db execer, projectID string, as []reconcile.Analysis) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM analyses WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to clear analyses: %w", err)
	}
	query := `
		INSERT INTO analyses (project_id, position, id, name, doc_json)
		VALUES (?, ?, ?, ?, ?)
	`
	for i, a := range as {
		doc, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to encode analysis %s: %w", a.ID, err)
		}
		if _, err := db.ExecContext(ctx, query, projectID, i, a.ID, nullString(a.Name), string(doc)); err != nil {
			return fmt.Errorf("failed to insert analysis %s: %w", a.ID, err)
		}
	}
	return nil
}

// ListProjects returns every committed project id.
func (s *Store) ListProjects(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM projects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// withTx executes fn within a database transaction. The caller holds s.mu.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// SWEEP LOG (reconcile.SweepLog interface)
// =============================================================================

// RecordSweep saves a sweep run.
func (s *Store) RecordSweep(ctx context.Context, r reconcile.SweepRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sweep_runs (id, started_at, finished_at, projects, changed,
			duplicate_transcripts, duplicate_rows_dropped, orphan_rows_removed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			projects = excluded.projects,
			changed = excluded.changed,
			duplicate_transcripts = excluded.duplicate_transcripts,
			duplicate_rows_dropped = excluded.duplicate_rows_dropped,
			orphan_rows_removed = excluded.orphan_rows_removed,
			error = excluded.error
	`

	var finishedAt *string
	if !r.FinishedAt.IsZero() {
		f := r.FinishedAt.UTC().Format(sweepTimeLayout)
		finishedAt = &f
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.StartedAt.UTC().Format(sweepTimeLayout), finishedAt,
		r.Projects, r.Changed,
		r.DuplicateTranscripts, r.DuplicateRowsDropped, r.OrphanRowsRemoved,
		nullString(r.Error),
	)
	return err
}

// ListSweeps returns the most recent sweep runs first. limit <= 0 means all.
func (s *Store) ListSweeps(ctx context.Context, limit int) ([]reconcile.SweepRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, started_at, finished_at, projects, changed,
			duplicate_transcripts, duplicate_rows_dropped, orphan_rows_removed, error
		FROM sweep_runs
		ORDER BY started_at DESC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []reconcile.SweepRun
	for rows.Next() {
		var r reconcile.SweepRun
		var startedAt string
		var finishedAt, runErr sql.NullString
		if err := rows.Scan(
			&r.ID, &startedAt, &finishedAt, &r.Projects, &r.Changed,
			&r.DuplicateTranscripts, &r.DuplicateRowsDropped, &r.OrphanRowsRemoved, &runErr,
		); err != nil {
			return nil, err
		}

		r.StartedAt, _ = time.Parse(sweepTimeLayout, startedAt)
		if finishedAt.Valid {
			r.FinishedAt, _ = time.Parse(sweepTimeLayout, finishedAt.String)
		}
		r.Error = runErr.String

		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"transcripts", "analyses", "projects", "sweep_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// sweepTimeLayout is fixed width so that started_at sorts as text.
const sweepTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
