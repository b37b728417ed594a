package jsonfile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/store/jsonfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*jsonfile.Store, string) {
	dir := t.TempDir()
	store, err := jsonfile.New(dir)
	require.NoError(t, err)
	return store, dir
}

func sampleProject(id string) reconcile.ProjectData {
	return reconcile.ProjectData{
		ProjectID: id,
		Transcripts: []reconcile.Transcript{
			{ID: "T-1", ProjectID: id, InterviewDate: "2024-01-01", Respno: "R01"},
		},
		Analyses: []reconcile.Analysis{{
			ID:        "A-1",
			ProjectID: id,
			Data: map[string][]reconcile.Row{
				"Demographics": {{reconcile.FieldTranscriptID: "T-1", reconcile.FieldRespondentID: "R01"}},
			},
		}},
	}
}

func TestStore_CommitAndLoad(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	missing, err := store.Load(ctx, "p/1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), missing.Revision)

	committed, err := store.Commit(ctx, sampleProject("p/1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), committed.Revision)

	loaded, err := store.Load(ctx, "p/1")
	require.NoError(t, err)
	assert.Equal(t, committed, loaded)

	ids, err := store.ListProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p/1"}, ids)
}

func TestStore_StaleCommitRejected(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Commit(ctx, sampleProject("p1"))
	require.NoError(t, err)

	_, err = store.Commit(ctx, sampleProject("p1"))
	assert.ErrorIs(t, err, reconcile.ErrConcurrentModification)
}

func TestStore_CommitLeavesNoTempFiles(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	p, err := store.Commit(ctx, sampleProject("p1"))
	require.NoError(t, err)
	_, err = store.Commit(ctx, p)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "projects"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "p1.json", entries[0].Name())
}

func TestStore_CommitRequiresProjectID(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Commit(context.Background(), reconcile.ProjectData{})

	assert.Error(t, err)
}

// =============================================================================
// LEGACY IMPORT
// =============================================================================

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadLegacy(t *testing.T) {
	// GIVEN: The older two-file layout
	// WHEN: Loading it
	// THEN: Transcripts and analyses are grouped per project, sorted by id

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "transcripts.json"), `{
		"beta": [{"id": "T-b1", "interviewDate": "2024-02-01", "respno": "R01"}],
		"alpha": [{"id": "T-a1", "projectId": "alpha"}, {"id": "T-a2"}]
	}`)
	writeFile(t, filepath.Join(dir, "analyses.json"), `[
		{"id": "A-1", "projectId": "alpha", "data": {"Demographics": [{"Respondent ID": "R01"}]}, "columns": ["Age"]},
		{"id": "A-2", "projectId": "gamma", "data": {}}
	]`)

	projects, err := jsonfile.LoadLegacy(dir)
	require.NoError(t, err)

	require.Len(t, projects, 3)
	assert.Equal(t, "alpha", projects[0].ProjectID)
	assert.Len(t, projects[0].Transcripts, 2)
	assert.Equal(t, "alpha", projects[0].Transcripts[1].ProjectID, "filed-under project is adopted")
	require.Len(t, projects[0].Analyses, 1)
	assert.Contains(t, projects[0].Analyses[0].Extra, "columns")
	assert.Equal(t, "beta", projects[1].ProjectID)
	assert.Equal(t, "gamma", projects[2].ProjectID)
	assert.Empty(t, projects[2].Transcripts)
}

func TestLoadLegacy_MissingFiles(t *testing.T) {
	projects, err := jsonfile.LoadLegacy(t.TempDir())

	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestLoadLegacy_AnalysisWithoutProject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "analyses.json"), `[{"id": "A-1", "data": {}}]`)

	_, err := jsonfile.LoadLegacy(dir)

	assert.ErrorIs(t, err, reconcile.ErrInvalidAnalysis)
}

func TestStore_Reset(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	_, err := store.Commit(ctx, sampleProject("p1"))
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx))

	ids, err := store.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = store.Commit(ctx, sampleProject("p1"))
	assert.NoError(t, err, "the store is usable after a reset")
}
