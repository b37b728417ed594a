package project

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
)

// RunLegacyMigration assigns and locks respnos in every stored project.
// Projects run concurrently, each under its own lock. A failing project is
// recorded in the report and does not stop the others.
func (s *Service) RunLegacyMigration(ctx context.Context) (reconcile.MigrationReport, error) {
	ids, err := s.store.ListProjects(ctx)
	if err != nil {
		return reconcile.MigrationReport{}, fmt.Errorf("list projects: %w", err)
	}

	results := make([]reconcile.ProjectMigration, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MigrationConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			m, err := s.migrateProject(gctx, id)
			if err != nil {
				m = reconcile.ProjectMigration{ProjectID: id, Error: err.Error()}
				s.log.Error("migration failed", "project", id, "error", err)
			}
			results[i] = m
			return nil
		})
	}
	_ = g.Wait()

	var report reconcile.MigrationReport
	for _, m := range results {
		report.Add(m)
	}
	s.log.Info("legacy migration finished",
		"migrated", report.Migrated,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, ctx.Err()
}

func (s *Service) migrateProject(ctx context.Context, projectID string) (reconcile.ProjectMigration, error) {
	unlock, err := s.locker.Lock(ctx, projectID)
	if err != nil {
		return reconcile.ProjectMigration{}, err
	}
	defer unlock()

	data, err := s.store.Load(ctx, projectID)
	if err != nil {
		return reconcile.ProjectMigration{}, err
	}
	next, m := reconcile.MigrateProject(data, s.opts.Reconcile)
	if m.Skipped {
		return m, nil
	}
	if _, err := s.store.Commit(ctx, next); err != nil {
		return reconcile.ProjectMigration{}, err
	}
	s.log.Info("project migrated",
		"project", projectID,
		"assigned", m.Assigned,
		"locked", m.Locked,
		"backfilled", m.Backfilled,
		"rowsUpdated", m.RowsUpdated,
	)
	if len(m.Reassigned) > 0 {
		s.log.Warn("duplicate respnos renumbered during migration",
			"project", projectID,
			"transcripts", m.Reassigned,
		)
	}
	if len(m.LockConflicts) > 0 {
		s.log.Warn("locked transcripts share respnos",
			"project", projectID,
			"respnos", m.LockConflicts,
		)
	}
	return m, nil
}

// Sweep runs the reconciliation pass in sweep mode over every project,
// dropping duplicate transcripts and rows, and records the run when the
// store keeps sweep history.
func (s *Service) Sweep(ctx context.Context) (reconcile.SweepRun, error) {
	run := reconcile.SweepRun{ID: s.newID("S-"), StartedAt: s.now().UTC()}

	ids, err := s.store.ListProjects(ctx)
	if err != nil {
		return run, fmt.Errorf("list projects: %w", err)
	}

	opts := s.opts.Reconcile
	opts.Sweep = true

	reports := make([]reconcile.ChangeReport, len(ids))
	errs := make([]error, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MigrationConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			res, err := s.mutate(gctx, id, "sweep", opts, nil)
			reports[i], errs[i] = res.Report, err
			return nil
		})
	}
	_ = g.Wait()

	for i, r := range reports {
		if errs[i] != nil {
			s.log.Error("sweep failed", "project", ids[i], "error", errs[i])
			continue
		}
		run.Add(r)
	}
	run.FinishedAt = s.now().UTC()
	if err := errors.Join(errs...); err != nil {
		run.Error = err.Error()
	}

	if sl, ok := s.store.(reconcile.SweepLog); ok {
		if err := sl.RecordSweep(ctx, run); err != nil {
			s.log.Error("failed to record sweep", "sweep", run.ID, "error", err)
		}
	}
	s.log.Info("sweep finished",
		"sweep", run.ID,
		"projects", run.Projects,
		"changed", run.Changed,
		"duplicateTranscripts", run.DuplicateTranscripts,
		"duplicateRowsDropped", run.DuplicateRowsDropped,
		"orphanRowsRemoved", run.OrphanRowsRemoved,
	)
	return run, nil
}

// Sweeps returns recent sweep runs, newest first. Stores without sweep
// history return none.
func (s *Service) Sweeps(ctx context.Context, limit int) ([]reconcile.SweepRun, error) {
	sl, ok := s.store.(reconcile.SweepLog)
	if !ok {
		return nil, nil
	}
	return sl.ListSweeps(ctx, limit)
}

// Reset drops every project when the store supports it.
func (s *Service) Reset(ctx context.Context) error {
	r, ok := s.store.(reconcile.Resetter)
	if !ok {
		return fmt.Errorf("store does not support reset")
	}
	if err := r.Reset(ctx); err != nil {
		return err
	}
	s.log.Warn("store reset")
	return nil
}

// ImportReport lists the outcome of Import per project.
type ImportReport struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
}

// Import writes projects into the store verbatim, without reconciling.
// Projects that already hold data are skipped unless overwrite is set.
func (s *Service) Import(ctx context.Context, projects []reconcile.ProjectData, overwrite bool) (ImportReport, error) {
	var report ImportReport
	for _, p := range projects {
		imported, err := s.importProject(ctx, p, overwrite)
		if err != nil {
			return report, fmt.Errorf("import %s: %w", p.ProjectID, err)
		}
		if imported {
			report.Imported = append(report.Imported, p.ProjectID)
		} else {
			report.Skipped = append(report.Skipped, p.ProjectID)
		}
	}
	s.log.Info("import finished", "imported", len(report.Imported), "skipped", len(report.Skipped))
	return report, nil
}

func (s *Service) importProject(ctx context.Context, p reconcile.ProjectData, overwrite bool) (bool, error) {
	unlock, err := s.locker.Lock(ctx, p.ProjectID)
	if err != nil {
		return false, err
	}
	defer unlock()

	current, err := s.store.Load(ctx, p.ProjectID)
	if err != nil {
		return false, err
	}
	if current.Revision > 0 && !overwrite {
		return false, nil
	}
	p.Revision = current.Revision
	if _, err := s.store.Commit(ctx, p); err != nil {
		return false, err
	}
	return true, nil
}
