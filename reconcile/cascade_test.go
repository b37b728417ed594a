package reconcile_test

import (
	"encoding/json"
	"testing"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CASCADE
// =============================================================================

func TestCascadeAnalysis_RespnoColumnOnly(t *testing.T) {
	// GIVEN: A sheet that stores the respno under "respno" instead of Respondent ID
	// WHEN: Cascading
	// THEN: Only the existing column is rewritten

	linker := reconcile.NewLinker([]reconcile.Transcript{{ID: "T-1", Respno: "R04"}})
	a := reconcile.Analysis{
		ID: "A-1",
		Data: map[string][]reconcile.Row{
			"Quotes": {{reconcile.FieldTranscriptID: "T-1", reconcile.FieldRespno: "R01"}},
		},
	}

	out, stats := reconcile.CascadeAnalysis(a, linker, reconcile.DefaultIdentitySheet)

	row := out.Data["Quotes"][0]
	assert.Equal(t, "R04", row[reconcile.FieldRespno])
	assert.NotContains(t, row, reconcile.FieldRespondentID)
	assert.Equal(t, 1, stats.RowsUpdated)
}

func TestCascadeAnalysis_UnknownRowsUntouched(t *testing.T) {
	linker := reconcile.NewLinker([]reconcile.Transcript{{ID: "T-1", Respno: "R01"}})
	a := reconcile.Analysis{
		Data: map[string][]reconcile.Row{
			"Demographics": {
				{reconcile.FieldTranscriptID: "T-gone", reconcile.FieldRespondentID: "R01"},
				{reconcile.FieldRespondentID: "R05"},
			},
		},
	}

	out, stats := reconcile.CascadeAnalysis(a, linker, reconcile.DefaultIdentitySheet)

	assert.Equal(t, a.Data, out.Data)
	assert.Equal(t, reconcile.CascadeStats{}, stats)
}

func TestCascadeAnalysis_FollowsIdentitySheetOrder(t *testing.T) {
	// GIVEN: A secondary sheet listing respondents in reverse order
	// WHEN: Cascading
	// THEN: It is re-sorted to the identity sheet's order, unlinked rows last

	linker := reconcile.NewLinker([]reconcile.Transcript{
		{ID: "T-1", Respno: "R01"},
		{ID: "T-2", Respno: "R02"},
	})
	a := reconcile.Analysis{
		Data: map[string][]reconcile.Row{
			"Demographics": {
				{reconcile.FieldTranscriptID: "T-1", reconcile.FieldRespondentID: "R01"},
				{reconcile.FieldTranscriptID: "T-2", reconcile.FieldRespondentID: "R02"},
			},
			"Themes": {
				{"Theme": "Header"},
				{reconcile.FieldTranscriptID: "T-2", reconcile.FieldRespondentID: "R02"},
				{reconcile.FieldTranscriptID: "T-1", reconcile.FieldRespondentID: "R01"},
			},
		},
	}

	out, stats := reconcile.CascadeAnalysis(a, linker, reconcile.DefaultIdentitySheet)

	themes := out.Data["Themes"]
	assert.Equal(t, "T-1", themes[0][reconcile.FieldTranscriptID])
	assert.Equal(t, "T-2", themes[1][reconcile.FieldTranscriptID])
	assert.Equal(t, "Header", themes[2]["Theme"])
	assert.Equal(t, 1, stats.SheetsReordered)
}

func TestCascadeAnalysis_RowsMissingFromIdentitySheet(t *testing.T) {
	// GIVEN: The identity sheet lacks R01 but another sheet has an R01 row
	// WHEN: Cascading
	// THEN: The R01 row still sorts first, by respno like every linked row

	linker := reconcile.NewLinker([]reconcile.Transcript{
		{ID: "T-1", Respno: "R01"},
		{ID: "T-2", Respno: "R02"},
		{ID: "T-3", Respno: "R03"},
	})
	a := reconcile.Analysis{
		Data: map[string][]reconcile.Row{
			"Demographics": {
				{reconcile.FieldTranscriptID: "T-2", reconcile.FieldRespondentID: "R02"},
				{reconcile.FieldTranscriptID: "T-3", reconcile.FieldRespondentID: "R03"},
			},
			"Themes": {
				{reconcile.FieldTranscriptID: "T-3", reconcile.FieldRespondentID: "R03"},
				{reconcile.FieldTranscriptID: "T-2", reconcile.FieldRespondentID: "R02"},
				{reconcile.FieldTranscriptID: "T-1", reconcile.FieldRespondentID: "R01"},
			},
		},
	}

	out, stats := reconcile.CascadeAnalysis(a, linker, reconcile.DefaultIdentitySheet)

	assert.Equal(t, []string{"R01", "R02", "R03"}, rowRespnos(out.Data["Themes"]))
	assert.Equal(t, 1, stats.SheetsReordered)
}

func TestCascadeAnalysis_LockedRespnoCopiedVerbatim(t *testing.T) {
	// GIVEN: A locked transcript spelled "R2" and a row showing "R02"
	// WHEN: Cascading
	// THEN: The row takes the transcript's spelling and no aux key moves

	linker := reconcile.NewLinker([]reconcile.Transcript{{ID: "T-1", Respno: "R2", RespnoLocked: true}})
	a := reconcile.Analysis{
		Data: map[string][]reconcile.Row{
			"Demographics": {{reconcile.FieldTranscriptID: "T-1", reconcile.FieldRespondentID: "R02"}},
		},
		Context: reconcile.Aux{"Demographics": {"R02": "note"}},
	}

	out, stats := reconcile.CascadeAnalysis(a, linker, reconcile.DefaultIdentitySheet)

	assert.Equal(t, "R2", out.Data["Demographics"][0][reconcile.FieldRespondentID])
	assert.Equal(t, map[string]any{"R02": "note"}, out.Context["Demographics"])
	assert.Equal(t, 1, stats.RowsUpdated)
	assert.Equal(t, 0, stats.KeysRenamed)

	again, stats := reconcile.CascadeAnalysis(out, linker, reconcile.DefaultIdentitySheet)
	assert.Equal(t, out, again)
	assert.Equal(t, reconcile.CascadeStats{}, stats)
}

func TestCascade_OtherProjectsUntouched(t *testing.T) {
	linker := reconcile.NewLinker([]reconcile.Transcript{{ID: "T-1", Respno: "R02"}})
	as := []reconcile.Analysis{
		{ID: "A-own", ProjectID: "p1", Data: map[string][]reconcile.Row{
			"Demographics": {{reconcile.FieldTranscriptID: "T-1", reconcile.FieldRespondentID: "R01"}},
		}},
		{ID: "A-other", ProjectID: "p2", Data: map[string][]reconcile.Row{
			"Demographics": {{reconcile.FieldTranscriptID: "T-1", reconcile.FieldRespondentID: "R01"}},
		}},
	}

	out, stats := reconcile.Cascade("p1", as, linker, reconcile.DefaultIdentitySheet)

	assert.Equal(t, "R02", out[0].Data["Demographics"][0][reconcile.FieldRespondentID])
	assert.Equal(t, "R01", out[1].Data["Demographics"][0][reconcile.FieldRespondentID])
	assert.Equal(t, 1, stats.RowsUpdated)
}

// =============================================================================
// ORPHANS
// =============================================================================

func TestRemoveAnalysisOrphans_LegacyRows(t *testing.T) {
	// GIVEN: Legacy rows without transcriptId
	// WHEN: Removing orphans
	// THEN: Rows whose respno nobody holds go; free-text rows stay

	linker := reconcile.NewLinker([]reconcile.Transcript{{ID: "T-1", Respno: "R01"}})
	a := reconcile.Analysis{
		ID: "A-1",
		Data: map[string][]reconcile.Row{
			"Demographics": {
				{reconcile.FieldRespondentID: "R01"},
				{reconcile.FieldRespondentID: "R05"},
				{reconcile.FieldRespondentID: "Total"},
				{"Note": "blank"},
			},
		},
	}

	out, report := reconcile.RemoveAnalysisOrphans(a, linker)

	assert.Equal(t, []string{"R01", "Total", ""}, rowRespnos(out.Data["Demographics"]))
	assert.Equal(t, 1, report.Removed())
	assert.Equal(t, "A-1", report.AnalysisID)
}

func TestRemoveAnalysisOrphans_PurgesByTranscriptID(t *testing.T) {
	linker := reconcile.NewLinker([]reconcile.Transcript{{ID: "T-1", Respno: "R01"}})
	a := reconcile.Analysis{
		Data: map[string][]reconcile.Row{
			"Demographics": {{reconcile.FieldTranscriptID: "T-9", reconcile.FieldRespondentID: "Guest"}},
		},
		Context: reconcile.Aux{"Demographics": {"T-9": "keyed by id", "T-1": "live id"}},
	}

	out, report := reconcile.RemoveAnalysisOrphans(a, linker)

	assert.Empty(t, out.Data["Demographics"])
	assert.Equal(t, map[string]any{"T-1": "live id"}, out.Context["Demographics"])
	assert.Equal(t, 1, report.AuxPurged)
}

// =============================================================================
// ANALYSIS JSON
// =============================================================================

func TestAnalysis_JSONKeepsUnknownFields(t *testing.T) {
	in := `{"id":"A-1","projectId":"p1","data":{},"editorState":{"zoom":2},"columns":["Age"]}`

	var a reconcile.Analysis
	require.NoError(t, json.Unmarshal([]byte(in), &a))
	assert.Equal(t, "A-1", a.ID)
	assert.Len(t, a.Extra, 2)

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestAnalysis_JSONModelledFieldsWin(t *testing.T) {
	a := reconcile.Analysis{
		ID:    "A-1",
		Data:  map[string][]reconcile.Row{},
		Extra: map[string]json.RawMessage{"id": json.RawMessage(`"stale"`), "x": json.RawMessage(`1`)},
	}

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"A-1","projectId":"","data":{},"x":1}`, string(out))
}

func TestChangeReport_Changed(t *testing.T) {
	assert.False(t, reconcile.ChangeReport{}.Changed())
	assert.False(t, reconcile.ChangeReport{LockConflicts: []string{"R01"}}.Changed())
	assert.True(t, reconcile.ChangeReport{KeysRenamed: 1}.Changed())
	assert.True(t, reconcile.ChangeReport{DuplicateTranscripts: []string{"T-2"}}.Changed())
}
