/*
Package project is the transactional boundary around the reconcile engine.

PURPOSE:
  Every write follows the same path:
    1. Lock the project (reconcile.Locker)
    2. Load transcripts and analyses (reconcile.ProjectStore)
    3. Apply the caller's mutation
    4. Run reconcile.ReconcileAfterMutation
    5. Commit both collections together
  so no caller can persist a transcript change without the cascade that
  goes with it.

ERRORS:
  Lock timeouts (ErrProjectBusy) and stale commits (ErrConcurrentModification)
  are returned as-is; reconcile.IsRetryable recognizes both. Nothing is
  written when either happens.

SEE ALSO:
  - reconcile/pipeline.go: the pure pass run in step 4
  - admin.go: legacy migration, sweeps and import across projects
*/
package project

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/logger"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
)

// Options configure a Service.
type Options struct {
	Reconcile            reconcile.Options
	MigrationConcurrency int
}

// Service runs project mutations under lock and commits them atomically.
type Service struct {
	store  reconcile.ProjectStore
	locker reconcile.Locker
	log    *logger.Logger
	opts   Options

	now   func() time.Time
	newID func(prefix string) string
}

func NewService(store reconcile.ProjectStore, locker reconcile.Locker, log *logger.Logger, opts Options) *Service {
	if opts.MigrationConcurrency < 1 {
		opts.MigrationConcurrency = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		store:  store,
		locker: locker,
		log:    log,
		opts:   opts,
		now:    time.Now,
		newID:  func(prefix string) string { return prefix + uuid.NewString() },
	}
}

// Result is the committed state after a mutation.
type Result struct {
	Project reconcile.ProjectData
	Report  reconcile.ChangeReport
}

// mutate runs fn and the reconciliation pass under the project lock. A nil
// fn reconciles without a mutation and commits only if something changed.
func (s *Service) mutate(ctx context.Context, projectID, op string, opts reconcile.Options, fn func(*reconcile.ProjectData) error) (Result, error) {
	if strings.TrimSpace(projectID) == "" {
		return Result{}, fmt.Errorf("%w: project id is required", reconcile.ErrInvalidTranscript)
	}

	unlock, err := s.locker.Lock(ctx, projectID)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	data, err := s.store.Load(ctx, projectID)
	if err != nil {
		return Result{}, fmt.Errorf("load project %s: %w", projectID, err)
	}
	if fn != nil {
		if err := fn(&data); err != nil {
			return Result{}, err
		}
	}

	next, report := reconcile.ReconcileProject(data, opts)
	if fn == nil && !report.Changed() {
		return Result{Project: data, Report: report}, nil
	}

	committed, err := s.store.Commit(ctx, next)
	if err != nil {
		return Result{}, err
	}
	s.logReport(op, report)
	return Result{Project: committed, Report: report}, nil
}

func (s *Service) logReport(op string, r reconcile.ChangeReport) {
	log := s.log.With("project", r.ProjectID, "op", op)
	if r.Changed() {
		log.Info("project reconciled",
			"renumbered", len(r.Changes),
			"rowsUpdated", r.RowsUpdated,
			"sheetsReordered", r.SheetsReordered,
			"keysRenamed", r.KeysRenamed,
			"orphanRowsRemoved", r.OrphanRowsRemoved,
			"auxPurged", r.AuxPurged,
			"duplicateTranscripts", len(r.DuplicateTranscripts),
			"duplicateRowsDropped", r.DuplicateRowsDropped,
		)
	}
	for _, o := range r.Orphans {
		log.Info("orphan rows removed", "analysis", o.AnalysisID, "bySheet", o.RemovedBySheet, "auxPurged", o.AuxPurged)
	}
	if len(r.LockConflicts) > 0 {
		log.Warn("locked transcripts share a respno", "respnos", r.LockConflicts)
	}
}

// =============================================================================
// TRANSCRIPTS
// =============================================================================

// TranscriptInput is what the upload pipeline supplies for a new transcript.
type TranscriptInput struct {
	ID               string
	InterviewDate    string
	InterviewTime    string
	OriginalFilename string
	OriginalPath     string
	CleanedPath      string
}

// CreateTranscript adds a transcript and reconciles the project. Unless
// confirm is set, a transcript repeating an existing interview date and
// time is rejected with a *reconcile.DuplicateError.
func (s *Service) CreateTranscript(ctx context.Context, projectID string, in TranscriptInput, confirm bool) (reconcile.Transcript, reconcile.ChangeReport, error) {
	t := reconcile.Transcript{
		ID:               strings.TrimSpace(in.ID),
		ProjectID:        projectID,
		InterviewDate:    strings.TrimSpace(in.InterviewDate),
		InterviewTime:    strings.TrimSpace(in.InterviewTime),
		OriginalFilename: in.OriginalFilename,
		OriginalPath:     in.OriginalPath,
		CleanedPath:      in.CleanedPath,
		UploadedAt:       s.now().UTC().Format(time.RFC3339),
	}
	if t.ID == "" {
		t.ID = s.newID("T-")
	}

	res, err := s.mutate(ctx, projectID, "create_transcript", s.opts.Reconcile, func(p *reconcile.ProjectData) error {
		if _, exists := p.Transcript(t.ID); exists {
			return fmt.Errorf("%w: transcript %s already exists", reconcile.ErrInvalidTranscript, t.ID)
		}
		if err := reconcile.CheckCandidate(p.Transcripts, t); err != nil {
			if !confirm {
				return err
			}
			s.log.Warn("duplicate interview confirmed", "project", projectID, "transcript", t.ID, "cause", err.Error())
		}
		p.Transcripts = append(p.Transcripts, t)
		return nil
	})
	if err != nil {
		return reconcile.Transcript{}, reconcile.ChangeReport{}, err
	}
	created, _ := res.Project.Transcript(t.ID)
	return *created, res.Report, nil
}

// TranscriptUpdate holds the editable transcript fields. Nil means unchanged.
type TranscriptUpdate struct {
	InterviewDate *string
	InterviewTime *string
	RespnoLocked  *bool
}

// UpdateTranscript edits a transcript's interview date/time or lock flag and
// reconciles the project.
func (s *Service) UpdateTranscript(ctx context.Context, projectID, transcriptID string, upd TranscriptUpdate) (reconcile.Transcript, reconcile.ChangeReport, error) {
	res, err := s.mutate(ctx, projectID, "update_transcript", s.opts.Reconcile, func(p *reconcile.ProjectData) error {
		t, ok := p.Transcript(transcriptID)
		if !ok {
			return fmt.Errorf("%w: %s", reconcile.ErrTranscriptNotFound, transcriptID)
		}
		if upd.InterviewDate != nil {
			t.InterviewDate = strings.TrimSpace(*upd.InterviewDate)
		}
		if upd.InterviewTime != nil {
			t.InterviewTime = strings.TrimSpace(*upd.InterviewTime)
		}
		if upd.RespnoLocked != nil {
			t.RespnoLocked = *upd.RespnoLocked
		}
		return nil
	})
	if err != nil {
		return reconcile.Transcript{}, reconcile.ChangeReport{}, err
	}
	updated, _ := res.Project.Transcript(transcriptID)
	return *updated, res.Report, nil
}

// DeleteTranscript removes a transcript; its analysis rows go with it and
// later respondents are renumbered.
func (s *Service) DeleteTranscript(ctx context.Context, projectID, transcriptID string) (reconcile.ChangeReport, error) {
	res, err := s.mutate(ctx, projectID, "delete_transcript", s.opts.Reconcile, func(p *reconcile.ProjectData) error {
		kept := p.Transcripts[:0]
		found := false
		for _, t := range p.Transcripts {
			if t.ID == transcriptID {
				found = true
				continue
			}
			kept = append(kept, t)
		}
		if !found {
			return fmt.Errorf("%w: %s", reconcile.ErrTranscriptNotFound, transcriptID)
		}
		p.Transcripts = kept
		return nil
	})
	return res.Report, err
}

// Transcripts returns a project's transcripts in respno order.
func (s *Service) Transcripts(ctx context.Context, projectID string) ([]reconcile.Transcript, error) {
	data, err := s.store.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return data.Transcripts, nil
}

// DetectDuplicates reports transcripts sharing an interview date and time.
func (s *Service) DetectDuplicates(ctx context.Context, projectID string) ([]reconcile.DuplicateGroup, error) {
	data, err := s.store.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return reconcile.DetectDuplicates(projectID, data.Transcripts), nil
}

// =============================================================================
// ANALYSES
// =============================================================================

// SaveAnalysis inserts or replaces an analysis and reconciles it against
// the project's transcripts.
func (s *Service) SaveAnalysis(ctx context.Context, projectID string, a reconcile.Analysis) (reconcile.Analysis, reconcile.ChangeReport, error) {
	if a.ProjectID != "" && a.ProjectID != projectID {
		return reconcile.Analysis{}, reconcile.ChangeReport{}, fmt.Errorf("%w: analysis belongs to project %s", reconcile.ErrInvalidAnalysis, a.ProjectID)
	}
	a.ProjectID = projectID
	if strings.TrimSpace(a.ID) == "" {
		a.ID = s.newID("A-")
	}
	if a.Data == nil {
		a.Data = make(map[string][]reconcile.Row)
	}

	res, err := s.mutate(ctx, projectID, "save_analysis", s.opts.Reconcile, func(p *reconcile.ProjectData) error {
		if existing, ok := p.Analysis(a.ID); ok {
			*existing = a
			return nil
		}
		p.Analyses = append(p.Analyses, a)
		return nil
	})
	if err != nil {
		return reconcile.Analysis{}, reconcile.ChangeReport{}, err
	}
	saved, _ := res.Project.Analysis(a.ID)
	return *saved, res.Report, nil
}

// DeleteAnalysis removes an analysis.
func (s *Service) DeleteAnalysis(ctx context.Context, projectID, analysisID string) error {
	_, err := s.mutate(ctx, projectID, "delete_analysis", s.opts.Reconcile, func(p *reconcile.ProjectData) error {
		for i, a := range p.Analyses {
			if a.ID == analysisID {
				p.Analyses = append(p.Analyses[:i], p.Analyses[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", reconcile.ErrAnalysisNotFound, analysisID)
	})
	return err
}

// Analyses returns a project's analyses.
func (s *Service) Analyses(ctx context.Context, projectID string) ([]reconcile.Analysis, error) {
	data, err := s.store.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return data.Analyses, nil
}

// =============================================================================
// PROJECTS
// =============================================================================

// Projects lists every stored project id.
func (s *Service) Projects(ctx context.Context) ([]string, error) {
	return s.store.ListProjects(ctx)
}

// Reconcile runs the pipeline over a project without mutating it first and
// commits only when the pass changed something.
func (s *Service) Reconcile(ctx context.Context, projectID string) (reconcile.ChangeReport, error) {
	res, err := s.mutate(ctx, projectID, "reconcile", s.opts.Reconcile, nil)
	return res.Report, err
}
