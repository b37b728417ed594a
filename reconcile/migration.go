/*
migration.go - One-time respno assignment and locking for legacy projects

WHAT IT DOES (per project):
  1. Transcripts without a respno get one from OrderingPolicy. Existing
     respnos are treated as held and are not renumbered. When several
     unlocked transcripts share a respno, the first in collection order keeps
     it and the others are numbered into the gaps.
  2. Legacy analysis rows without a transcriptId are linked to the
     transcript that held their respno before migration, when exactly one
     did.
  3. Every transcript is locked, which turns automatic renumbering off for
     the whole historical set.
  4. The cascade runs so analysis rows pick up the locked respnos.

Running it again on a migrated project is a no-op reported as skipped.
*/
package reconcile

import "strings"

// ProjectMigration reports the migration of one project. Reassigned lists
// transcripts that gave up a respno another transcript already held;
// LockConflicts lists respnos shared by transcripts locked before the run.
type ProjectMigration struct {
	ProjectID       string   `json:"projectId"`
	Assigned        int      `json:"assigned"`
	Locked          int      `json:"locked"`
	Backfilled      int      `json:"backfilled"`
	RowsUpdated     int      `json:"rowsUpdated"`
	SheetsReordered int      `json:"sheetsReordered"`
	Reassigned      []string `json:"reassigned,omitempty"`
	LockConflicts   []string `json:"lockConflicts,omitempty"`
	Skipped         bool     `json:"skipped"`
	Error           string   `json:"error,omitempty"`
}

// MigrationReport is the result of RunLegacyMigration.
type MigrationReport struct {
	Projects []ProjectMigration `json:"projects"`
	Migrated int                `json:"migrated"`
	Skipped  int                `json:"skipped"`
	Failed   int                `json:"failed"`
}

// Add records one project result and updates the totals.
func (r *MigrationReport) Add(m ProjectMigration) {
	r.Projects = append(r.Projects, m)
	switch {
	case m.Error != "":
		r.Failed++
	case m.Skipped:
		r.Skipped++
	default:
		r.Migrated++
	}
}

// RunLegacyMigration migrates every project in projects and returns the
// updated data in the same order.
func RunLegacyMigration(projects []ProjectData, opts Options) ([]ProjectData, MigrationReport) {
	var report MigrationReport
	out := make([]ProjectData, len(projects))
	for i, p := range projects {
		var m ProjectMigration
		out[i], m = MigrateProject(p, opts)
		report.Add(m)
	}
	return out, report
}

// MigrateProject runs the migration for one project. The input is not modified.
func MigrateProject(p ProjectData, opts Options) (ProjectData, ProjectMigration) {
	opts = opts.withDefaults()
	m := ProjectMigration{ProjectID: p.ProjectID}
	out := CloneProject(p)

	previous := make(map[string][]string)
	wasLocked := make(map[string]bool)
	needsWork := false
	for _, t := range out.Transcripts {
		wasLocked[t.ID] = t.RespnoLocked
		if r := strings.TrimSpace(t.Respno); r != "" {
			previous[NormalizeRespno(r)] = append(previous[NormalizeRespno(r)], t.ID)
		}
		if !t.RespnoLocked || strings.TrimSpace(t.Respno) == "" {
			needsWork = true
		}
	}

	for i := range out.Analyses {
		if !belongsTo(out.Analyses[i], p.ProjectID) {
			continue
		}
		m.Backfilled += backfillTranscriptIDs(&out.Analyses[i], previous)
	}

	if !needsWork && m.Backfilled == 0 {
		m.Skipped = true
		return p, m
	}

	// Existing respnos are pinned for numbering so only the gaps are filled.
	// Respnos already locked are pinned first; after that the first holder
	// of a respno wins.
	pinned := make(map[string]bool)
	for _, t := range out.Transcripts {
		if ownedBy(t, p.ProjectID) && t.RespnoLocked && strings.TrimSpace(t.Respno) != "" {
			pinned[NormalizeRespno(t.Respno)] = true
		}
	}
	held := make([]Transcript, len(out.Transcripts))
	for i, t := range out.Transcripts {
		if !ownedBy(t, p.ProjectID) {
			held[i] = t
			continue
		}
		switch r := strings.TrimSpace(t.Respno); {
		case r == "":
			m.Assigned++
		case t.RespnoLocked:
		case pinned[NormalizeRespno(r)]:
			t.Respno = ""
			m.Assigned++
			m.Reassigned = append(m.Reassigned, t.ID)
		default:
			pinned[NormalizeRespno(r)] = true
			t.RespnoLocked = true
		}
		held[i] = t
	}
	assignment := AssignRespnos(p.ProjectID, held, opts.Policy)
	m.LockConflicts = assignment.LockConflicts

	for i := range assignment.Transcripts {
		t := &assignment.Transcripts[i]
		if t.ProjectID != p.ProjectID {
			continue
		}
		if !wasLocked[t.ID] {
			m.Locked++
		}
		t.RespnoLocked = true
	}
	out.Transcripts = assignment.Transcripts

	var stats CascadeStats
	out.Analyses, stats = Cascade(p.ProjectID, out.Analyses, NewLinker(out.Transcripts), opts.IdentitySheet)
	m.RowsUpdated = stats.RowsUpdated
	m.SheetsReordered = stats.SheetsReordered
	return out, m
}

// backfillTranscriptIDs links legacy rows to the transcript that held their
// respno. Ambiguous respnos are left alone.
func backfillTranscriptIDs(a *Analysis, previous map[string][]string) int {
	n := 0
	for _, sheet := range a.SheetNames() {
		for _, row := range a.Data[sheet] {
			if rowTranscriptID(row) != "" {
				continue
			}
			r := rowRespno(row)
			if _, ok := ParseRespno(r); !ok {
				continue
			}
			if ids := previous[NormalizeRespno(r)]; len(ids) == 1 && ids[0] != "" {
				row[FieldTranscriptID] = ids[0]
				n++
			}
		}
	}
	return n
}

func ownedBy(t Transcript, projectID string) bool {
	return t.ProjectID == projectID || t.ProjectID == ""
}
