/*
pipeline.go - The composed reconciliation pass

ReconcileAfterMutation is the single entry point callers run after any
transcript create, date/time edit or delete, and after analysis edits:

  [sweep only] DropDuplicateTranscripts
  RespnoAssigner   -> updated transcripts + change set
  IdentityLinker   -> transcriptId -> current respno
  CascadeUpdater   -> identity fields, sheet order, aux keys
  OrphanReconciler -> dead rows and aux entries removed
  [sweep only] DropDuplicateRows

The pass is pure: inputs are not modified and running it twice in a row
yields the same output the second time.
*/
package reconcile

// Options tune a reconciliation pass. The zero value is usable.
type Options struct {
	// IdentitySheet is the sheet whose order defines respondent order.
	IdentitySheet string

	// Policy orders and numbers transcripts.
	Policy OrderingPolicy

	// Sweep enables silent removal of duplicate transcripts and rows. Only
	// background consistency sweeps set it; uploads flag duplicates instead.
	Sweep bool
}

// DefaultOptions returns the options used by the dashboard.
func DefaultOptions() Options {
	return Options{
		IdentitySheet: DefaultIdentitySheet,
		Policy:        DefaultOrderingPolicy(),
	}
}

func (o Options) withDefaults() Options {
	if o.IdentitySheet == "" {
		o.IdentitySheet = DefaultIdentitySheet
	}
	if len(o.Policy.Layouts) == 0 {
		o.Policy = DefaultOrderingPolicy()
	}
	return o
}

// ReconcileAfterMutation runs the full pipeline for one project and returns
// the transcripts and analyses to commit together with a ChangeReport.
func ReconcileAfterMutation(projectID string, transcripts []Transcript, analyses []Analysis, opts Options) ([]Transcript, []Analysis, ChangeReport) {
	opts = opts.withDefaults()
	report := ChangeReport{ProjectID: projectID}

	if opts.Sweep {
		var dropped []Transcript
		transcripts, dropped = dropProjectDuplicates(projectID, transcripts)
		for _, t := range dropped {
			report.DuplicateTranscripts = append(report.DuplicateTranscripts, t.ID)
		}
	}

	assignment := AssignRespnos(projectID, transcripts, opts.Policy)
	report.Changes = assignment.Changes
	report.LockConflicts = assignment.LockConflicts

	linker := NewLinker(projectTranscripts(projectID, assignment.Transcripts))

	cascaded, stats := Cascade(projectID, analyses, linker, opts.IdentitySheet)
	report.RowsUpdated = stats.RowsUpdated
	report.SheetsReordered = stats.SheetsReordered
	report.KeysRenamed = stats.KeysRenamed
	report.AuxPurged = stats.KeysDropped

	cleaned, orphans := RemoveOrphans(projectID, cascaded, linker)
	report.Orphans = orphans
	for _, o := range orphans {
		report.OrphanRowsRemoved += o.Removed()
		report.AuxPurged += o.AuxPurged
	}

	if opts.Sweep {
		for i, a := range cleaned {
			if !belongsTo(a, projectID) {
				continue
			}
			var n int
			cleaned[i], n = DropDuplicateRows(a)
			report.DuplicateRowsDropped += n
		}
	}

	return assignment.Transcripts, cleaned, report
}

// ReconcileProject is ReconcileAfterMutation over a ProjectData.
func ReconcileProject(p ProjectData, opts Options) (ProjectData, ChangeReport) {
	out := ProjectData{ProjectID: p.ProjectID, Revision: p.Revision}
	var report ChangeReport
	out.Transcripts, out.Analyses, report = ReconcileAfterMutation(p.ProjectID, p.Transcripts, p.Analyses, opts)
	return out, report
}

func projectTranscripts(projectID string, ts []Transcript) []Transcript {
	var out []Transcript
	for _, t := range ts {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out
}

func dropProjectDuplicates(projectID string, ts []Transcript) (kept, dropped []Transcript) {
	var own, others []Transcript
	for _, t := range ts {
		if t.ProjectID == projectID || t.ProjectID == "" {
			own = append(own, t)
			continue
		}
		others = append(others, t)
	}
	kept, dropped = DropDuplicateTranscripts(own)
	return append(kept, others...), dropped
}
