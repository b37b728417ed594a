package reconcile_test

import (
	"encoding/json"
	"testing"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func demographicsRow(tid, respno, date string, extra ...string) reconcile.Row {
	row := reconcile.Row{
		reconcile.FieldTranscriptID:  tid,
		reconcile.FieldRespondentID:  respno,
		reconcile.FieldInterviewDate: date,
	}
	for i := 0; i+1 < len(extra); i += 2 {
		row[extra[i]] = extra[i+1]
	}
	return row
}

// threeInterviews is the reconciled state after uploading Jan-03, Jan-01 and
// Jan-02 interviews in that order.
func threeInterviews() ([]reconcile.Transcript, []reconcile.Analysis) {
	ts := []reconcile.Transcript{
		{ID: "T-2", ProjectID: "p1", InterviewDate: "2024-01-01", InterviewTime: "11:00", Respno: "R01"},
		{ID: "T-3", ProjectID: "p1", InterviewDate: "2024-01-02", InterviewTime: "12:00", Respno: "R02"},
		{ID: "T-1", ProjectID: "p1", InterviewDate: "2024-01-03", InterviewTime: "10:00", Respno: "R03"},
	}
	as := []reconcile.Analysis{{
		ID:        "A-1",
		ProjectID: "p1",
		Data: map[string][]reconcile.Row{
			"Demographics": {
				demographicsRow("T-2", "R01", "2024-01-01", "Age", "30"),
				demographicsRow("T-3", "R02", "2024-01-02", "Age", "41"),
				demographicsRow("T-1", "R03", "2024-01-03", "Age", "25"),
			},
		},
		Context: reconcile.Aux{
			"Demographics": {"R01": "note one", "R02": "note two", "R03": "note three", "Age": "years"},
		},
	}}
	return ts, as
}

func without(ts []reconcile.Transcript, id string) []reconcile.Transcript {
	var out []reconcile.Transcript
	for _, t := range ts {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func rowRespnos(rows []reconcile.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i], _ = r[reconcile.FieldRespondentID].(string)
	}
	return out
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestReconcile_UploadsOutOfOrder(t *testing.T) {
	// GIVEN: Interviews dated Jan-03, Jan-01, Jan-02 uploaded one by one
	// WHEN: Reconciling after each upload
	// THEN: Final respnos are R03, R01, R02 and the grid follows them

	opts := reconcile.DefaultOptions()
	var ts []reconcile.Transcript
	as := []reconcile.Analysis{{ID: "A-1", ProjectID: "p1", Data: map[string][]reconcile.Row{"Demographics": {}}}}

	for _, up := range []reconcile.Transcript{
		{ID: "T1", ProjectID: "p1", InterviewDate: "2024-01-03"},
		{ID: "T2", ProjectID: "p1", InterviewDate: "2024-01-01"},
		{ID: "T3", ProjectID: "p1", InterviewDate: "2024-01-02"},
	} {
		ts = append(ts, up)
		ts, as, _ = reconcile.ReconcileAfterMutation("p1", ts, as, opts)

		cur, _ := reconcile.NewLinker(ts).Lookup(up.ID)
		as[0].Data["Demographics"] = append(as[0].Data["Demographics"],
			demographicsRow(up.ID, cur.Respno, up.InterviewDate))
		ts, as, _ = reconcile.ReconcileAfterMutation("p1", ts, as, opts)
	}

	assert.Equal(t, map[string]string{"T1": "R03", "T2": "R01", "T3": "R02"}, respnos(ts))
	assert.Equal(t, []string{"R01", "R02", "R03"}, rowRespnos(as[0].Data["Demographics"]))
	assert.Equal(t, "T1", as[0].Data["Demographics"][2][reconcile.FieldTranscriptID])
}

func TestReconcile_DeleteRenumbersAndCascades(t *testing.T) {
	// GIVEN: T-3 (Jan-02) holds R02
	// WHEN: T-3 is deleted
	// THEN: Jan-03 moves to R02, its row and context follow, T-3's row is gone

	ts, as := threeInterviews()

	outTs, outAs, report := reconcile.ReconcileAfterMutation("p1", without(ts, "T-3"), as, reconcile.DefaultOptions())

	assert.Equal(t, map[string]string{"T-2": "R01", "T-1": "R02"}, respnos(outTs))
	rows := outAs[0].Data["Demographics"]
	assert.Equal(t, []string{"R01", "R02"}, rowRespnos(rows))
	assert.Equal(t, "25", rows[1]["Age"])
	assert.Equal(t, "note three", outAs[0].Context["Demographics"]["R02"])
	assert.NotContains(t, outAs[0].Context["Demographics"], "R03")
	assert.Equal(t, 1, report.OrphanRowsRemoved)

	// Inputs are untouched.
	assert.Equal(t, "R03", as[0].Data["Demographics"][2][reconcile.FieldRespondentID])
	assert.Len(t, as[0].Data["Demographics"], 3)
}

func TestReconcile_DeletedRespondentAuxNotInherited(t *testing.T) {
	// GIVEN: Only T-2 (R02) has context and quotes entries
	// WHEN: T-2 is deleted and T-3 moves from R03 to R02
	// THEN: T-2's entries are removed, not handed to T-3

	ts := []reconcile.Transcript{
		{ID: "T-1", ProjectID: "p1", InterviewDate: "2024-01-01", Respno: "R01"},
		{ID: "T-2", ProjectID: "p1", InterviewDate: "2024-01-02", Respno: "R02"},
		{ID: "T-3", ProjectID: "p1", InterviewDate: "2024-01-03", Respno: "R03"},
	}
	as := []reconcile.Analysis{{
		ID:        "A-1",
		ProjectID: "p1",
		Data: map[string][]reconcile.Row{
			"Demographics": {
				demographicsRow("T-1", "R01", "2024-01-01"),
				demographicsRow("T-2", "R02", "2024-01-02"),
				demographicsRow("T-3", "R03", "2024-01-03"),
			},
		},
		Context: reconcile.Aux{"Demographics": {"R02": "said by T-2 only", "Age": "years"}},
		Quotes:  reconcile.Aux{"Demographics": {"Age": map[string]any{"R02": "T-2 quote"}}},
	}}

	outTs, outAs, report := reconcile.ReconcileAfterMutation("p1", without(ts, "T-2"), as, reconcile.DefaultOptions())

	assert.Equal(t, map[string]string{"T-1": "R01", "T-3": "R02"}, respnos(outTs))
	a := outAs[0]
	assert.Equal(t, []string{"R01", "R02"}, rowRespnos(a.Data["Demographics"]))
	assert.Equal(t, map[string]any{"Age": "years"}, a.Context["Demographics"])
	assert.Empty(t, a.Quotes["Demographics"]["Age"])
	assert.Equal(t, 2, report.AuxPurged)
	assert.Equal(t, 0, report.KeysRenamed)
	assert.Equal(t, 1, report.OrphanRowsRemoved)
}

func TestReconcile_LockedRespnoMatchesRows(t *testing.T) {
	// GIVEN: A locked transcript holding "R2" and a row showing "R02"
	// WHEN: Reconciling twice
	// THEN: The row carries "R2" and the second pass changes nothing

	ts := []reconcile.Transcript{
		{ID: "T-1", ProjectID: "p1", InterviewDate: "2024-01-01", Respno: "R2", RespnoLocked: true},
		{ID: "T-2", ProjectID: "p1", InterviewDate: "2024-01-02"},
	}
	as := []reconcile.Analysis{{
		ID:        "A-1",
		ProjectID: "p1",
		Data: map[string][]reconcile.Row{
			"Demographics": {demographicsRow("T-1", "R02", "2024-01-01")},
		},
	}}

	outTs, outAs, _ := reconcile.ReconcileAfterMutation("p1", ts, as, reconcile.DefaultOptions())

	assert.Equal(t, map[string]string{"T-1": "R2", "T-2": "R01"}, respnos(outTs))
	assert.Equal(t, "R2", outAs[0].Data["Demographics"][0][reconcile.FieldRespondentID])

	_, _, report := reconcile.ReconcileAfterMutation("p1", outTs, outAs, reconcile.DefaultOptions())
	assert.False(t, report.Changed())
}

func TestReconcile_DeleteRenumbersAndCascades_Golden(t *testing.T) {
	ts, as := threeInterviews()

	outTs, outAs, report := reconcile.ReconcileAfterMutation("p1", without(ts, "T-3"), as, reconcile.DefaultOptions())

	got, err := json.MarshalIndent(struct {
		Report      reconcile.ChangeReport `json:"report"`
		Transcripts []reconcile.Transcript `json:"transcripts"`
		Rows        []reconcile.Row        `json:"rows"`
		Context     map[string]any         `json:"context"`
	}{report, outTs, outAs[0].Data["Demographics"], outAs[0].Context["Demographics"]}, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "delete_renumbers_and_cascades", got)
}

func TestReconcile_RowForDeletedTranscriptRemoved(t *testing.T) {
	// GIVEN: A row references T-999 which no longer exists
	// WHEN: Reconciling
	// THEN: The row and the context/quotes keyed to its respno are removed

	ts := []reconcile.Transcript{
		{ID: "T-1", ProjectID: "p1", InterviewDate: "2024-01-01", Respno: "R01"},
	}
	as := []reconcile.Analysis{{
		ID:        "A-1",
		ProjectID: "p1",
		Data: map[string][]reconcile.Row{
			"Demographics": {
				demographicsRow("T-1", "R01", "2024-01-01"),
				demographicsRow("T-999", "R02", "2024-01-05"),
			},
			"Themes": {
				{reconcile.FieldTranscriptID: "T-999", reconcile.FieldRespondentID: "R02", "Theme": "price"},
				{"Theme": "Summary row"},
			},
		},
		Context: reconcile.Aux{"Themes": {"R02": "context for the dead row", "Theme": "header note"}},
		Quotes:  reconcile.Aux{"Themes": {"Theme": map[string]any{"R01": "q1", "R02": "q2"}}},
	}}

	_, outAs, report := reconcile.ReconcileAfterMutation("p1", ts, as, reconcile.DefaultOptions())

	a := outAs[0]
	assert.Len(t, a.Data["Demographics"], 1)
	assert.Equal(t, []reconcile.Row{{"Theme": "Summary row"}}, a.Data["Themes"])
	assert.Equal(t, map[string]any{"Theme": "header note"}, a.Context["Themes"])
	assert.Equal(t, map[string]any{"R01": "q1"}, a.Quotes["Themes"]["Theme"])
	assert.Equal(t, 2, report.OrphanRowsRemoved)
	assert.Equal(t, 2, report.AuxPurged)
	require.Len(t, report.Orphans, 1)
	assert.Equal(t, map[string]int{"Demographics": 1, "Themes": 1}, report.Orphans[0].RemovedBySheet)
}

func TestReconcile_LockedSurvivesDeletion(t *testing.T) {
	// GIVEN: T-0 R01, T-1 R02 locked, T-2 R03 unlocked
	// WHEN: T-0 is deleted
	// THEN: T-1 keeps R02 and T-2 takes the free R01

	ts := []reconcile.Transcript{
		{ID: "T-0", ProjectID: "p1", InterviewDate: "2024-01-01", Respno: "R01"},
		{ID: "T-1", ProjectID: "p1", InterviewDate: "2024-01-02", Respno: "R02", RespnoLocked: true},
		{ID: "T-2", ProjectID: "p1", InterviewDate: "2024-01-03", Respno: "R03"},
	}

	outTs, _, report := reconcile.ReconcileAfterMutation("p1", without(ts, "T-0"), nil, reconcile.DefaultOptions())

	assert.Equal(t, map[string]string{"T-1": "R02", "T-2": "R01"}, respnos(outTs))
	assert.Equal(t, []reconcile.RespnoChange{{TranscriptID: "T-2", Old: "R03", New: "R01"}}, report.Changes)
}

func TestReconcile_DateEditSwapsAuxKeys(t *testing.T) {
	// GIVEN: T-a R01 and T-b R02, each with context and quotes
	// WHEN: T-a's date moves after T-b's
	// THEN: They swap respnos and every keyed entry follows its transcript

	ts := []reconcile.Transcript{
		{ID: "T-a", ProjectID: "p1", InterviewDate: "2024-02-01", Respno: "R01"},
		{ID: "T-b", ProjectID: "p1", InterviewDate: "2024-01-15", Respno: "R02"},
	}
	as := []reconcile.Analysis{{
		ID:        "A-1",
		ProjectID: "p1",
		Data: map[string][]reconcile.Row{
			"Demographics": {
				demographicsRow("T-a", "R01", "2024-01-01"),
				demographicsRow("T-b", "R02", "2024-01-15"),
			},
		},
		Context: reconcile.Aux{"Demographics": {"R01": "about a", "R02": "about b"}},
		Quotes:  reconcile.Aux{"Demographics": {"Age": map[string]any{"R01": "a said", "R02": "b said"}}},
	}}

	outTs, outAs, report := reconcile.ReconcileAfterMutation("p1", ts, as, reconcile.DefaultOptions())

	assert.Equal(t, map[string]string{"T-a": "R02", "T-b": "R01"}, respnos(outTs))
	a := outAs[0]
	assert.Equal(t, "T-b", a.Data["Demographics"][0][reconcile.FieldTranscriptID])
	assert.Equal(t, "2024-02-01", a.Data["Demographics"][1][reconcile.FieldInterviewDate])
	assert.Equal(t, map[string]any{"R01": "about b", "R02": "about a"}, a.Context["Demographics"])
	assert.Equal(t, map[string]any{"R01": "b said", "R02": "a said"}, a.Quotes["Demographics"]["Age"])
	assert.Equal(t, 2, report.RowsUpdated)
	assert.Equal(t, 1, report.SheetsReordered)
	assert.Equal(t, 4, report.KeysRenamed)
}

func TestReconcile_SweepDropsDuplicates(t *testing.T) {
	// GIVEN: The same interview was uploaded twice and both rows exist
	// WHEN: Running a sweep pass
	// THEN: The later transcript and its rows are dropped and numbering closes the gap

	ts := []reconcile.Transcript{
		{ID: "T-1", ProjectID: "p1", InterviewDate: "2025-02-10", InterviewTime: "3:00 PM", Respno: "R01"},
		{ID: "T-2", ProjectID: "p1", InterviewDate: "2025-02-10", InterviewTime: "3:00 PM", Respno: "R02"},
		{ID: "T-3", ProjectID: "p1", InterviewDate: "2025-02-11", InterviewTime: "9:00 AM", Respno: "R03"},
	}
	row := func(tid, respno, date, tm string) reconcile.Row {
		return reconcile.Row{
			reconcile.FieldTranscriptID:  tid,
			reconcile.FieldRespondentID:  respno,
			reconcile.FieldInterviewDate: date,
			reconcile.FieldInterviewTime: tm,
		}
	}
	as := []reconcile.Analysis{{
		ID:        "A-1",
		ProjectID: "p1",
		Data: map[string][]reconcile.Row{
			"Demographics": {
				row("T-1", "R01", "2025-02-10", "3:00 PM"),
				row("T-2", "R02", "2025-02-10", "3:00 PM"),
				row("T-3", "R03", "2025-02-11", "9:00 AM"),
				row("T-3", "R03", "2025-02-11", "9:00 AM"),
			},
		},
	}}

	opts := reconcile.DefaultOptions()
	opts.Sweep = true
	outTs, outAs, report := reconcile.ReconcileAfterMutation("p1", ts, as, opts)

	assert.Equal(t, map[string]string{"T-1": "R01", "T-3": "R02"}, respnos(outTs))
	assert.Equal(t, []string{"T-2"}, report.DuplicateTranscripts)
	assert.Equal(t, 1, report.OrphanRowsRemoved)
	assert.Equal(t, 1, report.DuplicateRowsDropped)
	assert.Equal(t, []string{"R01", "R02"}, rowRespnos(outAs[0].Data["Demographics"]))
}

func TestReconcile_UploadModeKeepsDuplicates(t *testing.T) {
	ts := []reconcile.Transcript{
		{ID: "T-1", ProjectID: "p1", InterviewDate: "2025-02-10", InterviewTime: "3:00 PM"},
		{ID: "T-2", ProjectID: "p1", InterviewDate: "2025-02-10", InterviewTime: "3:00 PM"},
	}

	outTs, _, report := reconcile.ReconcileAfterMutation("p1", ts, nil, reconcile.DefaultOptions())

	assert.Len(t, outTs, 2)
	assert.Empty(t, report.DuplicateTranscripts)
}

func TestReconcile_Idempotent(t *testing.T) {
	ts, as := threeInterviews()
	ts = append(ts, reconcile.Transcript{ID: "T-4", ProjectID: "p1", InterviewDate: "2023-12-30"})
	as[0].Data["Themes"] = []reconcile.Row{
		{reconcile.FieldTranscriptID: "T-1", reconcile.FieldRespondentID: "R03", "Theme": "speed"},
		{reconcile.FieldTranscriptID: "T-2", reconcile.FieldRespondentID: "R01", "Theme": "cost"},
		{reconcile.FieldRespondentID: "R09", "Theme": "legacy"},
	}
	opts := reconcile.DefaultOptions()

	ts1, as1, first := reconcile.ReconcileAfterMutation("p1", ts, as, opts)
	ts2, as2, second := reconcile.ReconcileAfterMutation("p1", ts1, as1, opts)

	assert.True(t, first.Changed())
	assert.False(t, second.Changed(), "second pass should be a no-op: %+v", second)
	assert.Equal(t, ts1, ts2)
	assert.Equal(t, as1, as2)
}

func TestReconcile_EveryLinkedRowMatchesItsTranscript(t *testing.T) {
	ts, as := threeInterviews()
	ts[0].InterviewDate = "2024-01-09"

	outTs, outAs, _ := reconcile.ReconcileAfterMutation("p1", ts, as, reconcile.DefaultOptions())

	linker := reconcile.NewLinker(outTs)
	for _, row := range outAs[0].Data["Demographics"] {
		ident, ok := linker.Lookup(row[reconcile.FieldTranscriptID].(string))
		require.True(t, ok)
		assert.Equal(t, ident.Respno, row[reconcile.FieldRespondentID])
		assert.Equal(t, ident.InterviewDate, row[reconcile.FieldInterviewDate])
	}
}

func TestReconcileProject_KeepsRevision(t *testing.T) {
	ts, as := threeInterviews()
	p := reconcile.ProjectData{ProjectID: "p1", Revision: 7, Transcripts: ts, Analyses: as}

	out, report := reconcile.ReconcileProject(p, reconcile.Options{})

	assert.Equal(t, int64(7), out.Revision)
	assert.False(t, report.Changed())
}
