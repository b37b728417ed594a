/*
Package reconcile provides the respondent-identity reconciliation engine.

PURPOSE:
  Every interview transcript in a project carries a short canonical
  respondent number (respno: R01, R02, ...) assigned in chronological
  interview order. Content-analysis grids reference those transcripts by a
  stable transcriptId and by denormalized copies of the respno and interview
  date/time. This package keeps the two collections from drifting apart.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transcript: one interview recording and its identity fields
  - Analysis: named sheets of free-form row records plus context/quotes
  - ProjectData: the unit that is loaded and committed atomically
  - ChangeReport: what a reconciliation pass did, for logs and callers

PIPELINE:
  RespnoAssigner -> IdentityLinker -> CascadeUpdater -> OrphanReconciler
  (-> DuplicateResolver when sweeping). Every step is a pure in-memory
  transform; persistence and locking live behind ProjectStore and Locker.

FIELD NAMES:
  The JSON names below (transcriptId, Respondent ID, respno, Interview Date,
  Interview Time, respnoLocked) are shared with the analysis editor and with
  stored data. Do not rename them.

SEE ALSO:
  - ordering.go: OrderingPolicy
  - pipeline.go: ReconcileAfterMutation
  - store.go: ProjectStore and Locker interfaces
*/
package reconcile

import (
	"encoding/json"
	"sort"
)

// =============================================================================
// ROW FIELD NAMES - Contract with the analysis editor
// =============================================================================

const (
	FieldTranscriptID  = "transcriptId"
	FieldRespondentID  = "Respondent ID"
	FieldRespno        = "respno"
	FieldInterviewDate = "Interview Date"
	FieldInterviewTime = "Interview Time"
)

// DefaultIdentitySheet is the sheet whose row order defines respondent order
// for every other sheet of an analysis.
const DefaultIdentitySheet = "Demographics"

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is one interview recording belonging to a project.
// InterviewDate and InterviewTime are opaque display strings supplied by the
// upload pipeline; an empty string means the value is absent.
type Transcript struct {
	ID               string `json:"id"`
	ProjectID        string `json:"projectId"`
	InterviewDate    string `json:"interviewDate,omitempty"`
	InterviewTime    string `json:"interviewTime,omitempty"`
	Respno           string `json:"respno,omitempty"`
	RespnoLocked     bool   `json:"respnoLocked,omitempty"`
	OriginalFilename string `json:"originalFilename,omitempty"`
	OriginalPath     string `json:"originalPath,omitempty"`
	CleanedPath      string `json:"cleanedPath,omitempty"`
	UploadedAt       string `json:"uploadedAt,omitempty"`
}

// =============================================================================
// ANALYSIS
// =============================================================================

// Row is a single record of an analysis sheet. Rows are free-form; the engine
// only reads and writes the identity fields listed above.
type Row map[string]any

// Aux holds supporting text keyed by sheet, then by column name or respno.
// Values are usually strings; quotes may nest one more level keyed by respno.
type Aux map[string]map[string]any

// Analysis is one named content-analysis document belonging to a project.
type Analysis struct {
	ID        string           `json:"id"`
	ProjectID string           `json:"projectId"`
	Name      string           `json:"name,omitempty"`
	Data      map[string][]Row `json:"data"`
	Context   Aux              `json:"context,omitempty"`
	Quotes    Aux              `json:"quotes,omitempty"`

	// Extra keeps top-level fields this package does not model so that a
	// load/commit round trip never drops editor state.
	Extra map[string]json.RawMessage `json:"-"`
}

var analysisFields = []string{"id", "projectId", "name", "data", "context", "quotes"}

func (a *Analysis) UnmarshalJSON(b []byte) error {
	type plain Analysis
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for _, k := range analysisFields {
		delete(all, k)
	}
	p.Extra = nil
	if len(all) > 0 {
		p.Extra = all
	}
	*a = Analysis(p)
	return nil
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	type plain Analysis
	b, err := json.Marshal(plain(a))
	if err != nil || len(a.Extra) == 0 {
		return b, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	for k, v := range a.Extra {
		if _, ok := all[k]; !ok {
			all[k] = v
		}
	}
	return json.Marshal(all)
}

// SheetNames returns the analysis sheet names in a stable order.
func (a Analysis) SheetNames() []string {
	return sortedKeys(a.Data)
}

// =============================================================================
// PROJECT DATA - Unit of persistence
// =============================================================================

// ProjectData is everything the engine reads and writes for one project.
// Revision is an optimistic concurrency token: stores reject a commit whose
// Revision does not match the stored one.
type ProjectData struct {
	ProjectID   string       `json:"projectId"`
	Revision    int64        `json:"revision"`
	Transcripts []Transcript `json:"transcripts"`
	Analyses    []Analysis   `json:"analyses"`
}

// Transcript returns the transcript with the given id.
func (p *ProjectData) Transcript(id string) (*Transcript, bool) {
	for i := range p.Transcripts {
		if p.Transcripts[i].ID == id {
			return &p.Transcripts[i], true
		}
	}
	return nil, false
}

// Analysis returns the analysis with the given id.
func (p *ProjectData) Analysis(id string) (*Analysis, bool) {
	for i := range p.Analyses {
		if p.Analyses[i].ID == id {
			return &p.Analyses[i], true
		}
	}
	return nil, false
}

// =============================================================================
// CHANGE REPORT
// =============================================================================

// RespnoChange records a transcript whose respno moved during assignment.
type RespnoChange struct {
	TranscriptID string `json:"transcriptId"`
	Old          string `json:"old"`
	New          string `json:"new"`
}

// OrphanReport counts rows removed from one analysis, per sheet.
type OrphanReport struct {
	AnalysisID     string         `json:"analysisId"`
	RemovedBySheet map[string]int `json:"removedBySheet,omitempty"`
	AuxPurged      int            `json:"auxPurged"`
}

// Removed is the total number of rows removed across sheets.
func (r OrphanReport) Removed() int {
	n := 0
	for _, c := range r.RemovedBySheet {
		n += c
	}
	return n
}

// ChangeReport summarizes one reconciliation pass over a project.
type ChangeReport struct {
	ProjectID            string         `json:"projectId"`
	Changes              []RespnoChange `json:"changes"`
	RowsUpdated          int            `json:"rowsUpdated"`
	SheetsReordered      int            `json:"sheetsReordered"`
	KeysRenamed          int            `json:"keysRenamed"`
	Orphans              []OrphanReport `json:"orphans,omitempty"`
	OrphanRowsRemoved    int            `json:"orphanRowsRemoved"`
	// AuxPurged counts context/quotes entries removed, both those of
	// orphans and those left under a respno another respondent moved into.
	AuxPurged            int            `json:"auxPurged"`
	DuplicateTranscripts []string       `json:"duplicateTranscripts,omitempty"`
	DuplicateRowsDropped int            `json:"duplicateRowsDropped"`
	LockConflicts        []string       `json:"lockConflicts,omitempty"`
}

// Changed reports whether the pass modified either collection.
func (r ChangeReport) Changed() bool {
	return len(r.Changes) > 0 ||
		r.RowsUpdated > 0 ||
		r.SheetsReordered > 0 ||
		r.KeysRenamed > 0 ||
		r.OrphanRowsRemoved > 0 ||
		r.AuxPurged > 0 ||
		len(r.DuplicateTranscripts) > 0 ||
		r.DuplicateRowsDropped > 0
}

// =============================================================================
// COPY HELPERS
// =============================================================================

// CloneTranscripts returns an independent copy of ts.
func CloneTranscripts(ts []Transcript) []Transcript {
	if ts == nil {
		return nil
	}
	out := make([]Transcript, len(ts))
	copy(out, ts)
	return out
}

// CloneAnalysis copies the sheets, rows and aux maps of a. Nested row values
// are shared; the engine only replaces top-level row fields.
func CloneAnalysis(a Analysis) Analysis {
	out := a
	if a.Data != nil {
		out.Data = make(map[string][]Row, len(a.Data))
		for sheet, rows := range a.Data {
			cp := make([]Row, len(rows))
			for i, r := range rows {
				cp[i] = cloneRow(r)
			}
			out.Data[sheet] = cp
		}
	}
	out.Context = cloneAux(a.Context)
	out.Quotes = cloneAux(a.Quotes)
	if a.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(a.Extra))
		for k, v := range a.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// CloneAnalyses copies every analysis in as.
func CloneAnalyses(as []Analysis) []Analysis {
	if as == nil {
		return nil
	}
	out := make([]Analysis, len(as))
	for i, a := range as {
		out[i] = CloneAnalysis(a)
	}
	return out
}

// CloneProject returns a deep enough copy of p for independent mutation.
func CloneProject(p ProjectData) ProjectData {
	return ProjectData{
		ProjectID:   p.ProjectID,
		Revision:    p.Revision,
		Transcripts: CloneTranscripts(p.Transcripts),
		Analyses:    CloneAnalyses(p.Analyses),
	}
}

func cloneRow(r Row) Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func cloneAux(a Aux) Aux {
	if a == nil {
		return nil
	}
	out := make(Aux, len(a))
	for sheet, entries := range a {
		if entries == nil {
			out[sheet] = nil
			continue
		}
		cp := make(map[string]any, len(entries))
		for k, v := range entries {
			if nested, ok := v.(map[string]any); ok {
				n := make(map[string]any, len(nested))
				for nk, nv := range nested {
					n[nk] = nv
				}
				v = n
			}
			cp[k] = v
		}
		out[sheet] = cp
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
