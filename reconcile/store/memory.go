// Package store provides in-memory ProjectStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every project in a map. Commit replaces a project's entry
// under the write lock, so readers see either the old or the new data.
type Memory struct {
	mu       sync.RWMutex
	projects map[string]reconcile.ProjectData
	sweeps   []reconcile.SweepRun
}

func NewMemory() *Memory {
	return &Memory{projects: make(map[string]reconcile.ProjectData)}
}

// Load returns a copy of the stored project.
func (m *Memory) Load(_ context.Context, projectID string) (reconcile.ProjectData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[projectID]
	if !ok {
		return reconcile.ProjectData{ProjectID: projectID}, nil
	}
	return reconcile.CloneProject(p), nil
}

// Commit swaps in data when its revision matches.
func (m *Memory) Commit(_ context.Context, data reconcile.ProjectData) (reconcile.ProjectData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.projects[data.ProjectID].Revision != data.Revision {
		return reconcile.ProjectData{}, reconcile.ErrConcurrentModification
	}
	stored := reconcile.CloneProject(data)
	stored.Revision++
	m.projects[data.ProjectID] = stored
	return reconcile.CloneProject(stored), nil
}

func (m *Memory) ListProjects(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.projects))
	for id := range m.projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Seed stores data as-is, bypassing the revision check. Revision is set to 1
// when data carries none.
func (m *Memory) Seed(data reconcile.ProjectData) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := reconcile.CloneProject(data)
	if stored.Revision == 0 {
		stored.Revision = 1
	}
	m.projects[data.ProjectID] = stored
}

// Reset drops every project and sweep run.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = make(map[string]reconcile.ProjectData)
	m.sweeps = nil
	return nil
}

// =============================================================================
// SWEEP LOG
// =============================================================================

func (m *Memory) RecordSweep(_ context.Context, run reconcile.SweepRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps = append(m.sweeps, run)
	return nil
}

// ListSweeps returns the most recent runs first.
func (m *Memory) ListSweeps(_ context.Context, limit int) ([]reconcile.SweepRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []reconcile.SweepRun
	for i := len(m.sweeps) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.sweeps[i])
	}
	return out, nil
}
