/*
store.go - Persistence and locking interfaces

PURPOSE:
  The engine is pure. Callers load a project, run the pipeline and commit
  the result through these interfaces. A project's transcripts and analyses
  are always written together: a reader must never see transcripts from one
  commit next to analyses from another.

COMMIT CONTRACT:
  - Commit writes both collections atomically or not at all.
  - data.Revision must equal the stored revision (0 for a new project).
    Otherwise ErrConcurrentModification is returned and nothing is written.
  - On success the returned ProjectData carries the incremented revision.

LOCKING:
  Locker serializes writers of one project. Different projects never share
  a lock. The revision check above still catches a writer that bypassed the
  lock, for example a second process without a shared Redis.

IMPLEMENTATIONS:
  - reconcile/store/memory.go: in-memory, for tests and demos
  - store/sqlite/sqlite.go: SQLite, one transaction per commit
  - store/jsonfile/jsonfile.go: one JSON document per project, temp file + rename
  - locks/local.go, locks/redis.go: Locker
*/
package reconcile

import (
	"context"
	"time"
)

// =============================================================================
// PROJECT STORE
// =============================================================================

// ProjectStore loads and commits whole projects.
type ProjectStore interface {
	// Load returns the project's data. A project that was never committed is
	// returned empty at revision 0.
	Load(ctx context.Context, projectID string) (ProjectData, error)

	// Commit writes data if its Revision matches the stored one.
	Commit(ctx context.Context, data ProjectData) (ProjectData, error)

	// ListProjects returns the ids of every stored project, sorted.
	ListProjects(ctx context.Context) ([]string, error)
}

// =============================================================================
// LOCKER
// =============================================================================

// Locker serializes writers of a single project.
type Locker interface {
	// Lock blocks until the project is held or ctx is done. It returns
	// ErrProjectBusy when the lock could not be acquired in time. The
	// returned unlock func is safe to call more than once.
	Lock(ctx context.Context, projectID string) (unlock func(), err error)
}

// =============================================================================
// SWEEP LOG - Optional history of background consistency sweeps
// =============================================================================

// SweepRun records one consistency sweep across all projects.
type SweepRun struct {
	ID                   string    `json:"id"`
	StartedAt            time.Time `json:"startedAt"`
	FinishedAt           time.Time `json:"finishedAt"`
	Projects             int       `json:"projects"`
	Changed              int       `json:"changed"`
	DuplicateTranscripts int       `json:"duplicateTranscripts"`
	DuplicateRowsDropped int       `json:"duplicateRowsDropped"`
	OrphanRowsRemoved    int       `json:"orphanRowsRemoved"`
	Error                string    `json:"error,omitempty"`
}

// Add folds one project's report into the run totals.
func (r *SweepRun) Add(report ChangeReport) {
	r.Projects++
	if report.Changed() {
		r.Changed++
	}
	r.DuplicateTranscripts += len(report.DuplicateTranscripts)
	r.DuplicateRowsDropped += report.DuplicateRowsDropped
	r.OrphanRowsRemoved += report.OrphanRowsRemoved
}

// Resetter is implemented by stores that can drop every project at once.
// Used by the demo reset endpoint.
type Resetter interface {
	Reset(ctx context.Context) error
}

// SweepLog is implemented by stores that keep sweep history.
type SweepLog interface {
	RecordSweep(ctx context.Context, run SweepRun) error
	ListSweeps(ctx context.Context, limit int) ([]SweepRun, error)
}
