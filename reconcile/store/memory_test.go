package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func project(id string) reconcile.ProjectData {
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

func TestMemory_LoadMissingProject(t *testing.T) {
	m := store.NewMemory()

	p, err := m.Load(context.Background(), "nope")

	require.NoError(t, err)
	assert.Equal(t, "nope", p.ProjectID)
	assert.Equal(t, int64(0), p.Revision)
	assert.Empty(t, p.Transcripts)
}

func TestMemory_CommitBumpsRevision(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	committed, err := m.Commit(ctx, project("p1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), committed.Revision)

	loaded, err := m.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, committed, loaded)
}

func TestMemory_StaleCommitRejected(t *testing.T) {
	// GIVEN: Two writers loaded revision 1
	// WHEN: Both commit
	// THEN: The second is rejected and the first one's data stays

	ctx := context.Background()
	m := store.NewMemory()
	m.Seed(project("p1"))

	a, _ := m.Load(ctx, "p1")
	b, _ := m.Load(ctx, "p1")

	a.Transcripts[0].Respno = "R09"
	_, err := m.Commit(ctx, a)
	require.NoError(t, err)

	b.Transcripts = nil
	_, err = m.Commit(ctx, b)
	assert.ErrorIs(t, err, reconcile.ErrConcurrentModification)
	assert.True(t, reconcile.IsRetryable(err))

	cur, _ := m.Load(ctx, "p1")
	assert.Equal(t, "R09", cur.Transcripts[0].Respno)
	assert.Equal(t, int64(2), cur.Revision)
}

func TestMemory_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	m.Seed(project("p1"))

	p, _ := m.Load(ctx, "p1")
	p.Analyses[0].Data["Demographics"][0][reconcile.FieldRespondentID] = "changed"

	again, _ := m.Load(ctx, "p1")
	assert.Equal(t, "R01", again.Analyses[0].Data["Demographics"][0][reconcile.FieldRespondentID])
}

func TestMemory_ListProjectsSorted(t *testing.T) {
	m := store.NewMemory()
	m.Seed(project("zeta"))
	m.Seed(project("alpha"))

	ids, err := m.ListProjects(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, ids)
}

func TestMemory_Sweeps(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	start := time.Date(2025, time.March, 1, 2, 0, 0, 0, time.UTC)
	for i, id := range []string{"S-1", "S-2", "S-3"} {
		require.NoError(t, m.RecordSweep(ctx, reconcile.SweepRun{ID: id, StartedAt: start.Add(time.Duration(i) * time.Hour)}))
	}

	runs, err := m.ListSweeps(ctx, 2)

	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "S-3", runs[0].ID)
	assert.Equal(t, "S-2", runs[1].ID)
}

func TestMemory_Reset(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	m.Seed(project("p1"))
	require.NoError(t, m.RecordSweep(ctx, reconcile.SweepRun{ID: "S-1"}))

	require.NoError(t, m.Reset(ctx))

	ids, err := m.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	runs, err := m.ListSweeps(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
