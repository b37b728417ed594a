/*
Package jsonfile provides a reconcile.ProjectStore on plain JSON files.

LAYOUT:
  <dir>/projects/<escaped project id>.json  one ProjectData document

ATOMIC COMMIT:
  A project's transcripts and analyses live in a single document. Commit
  writes the new document to a temp file in the same directory, syncs it and
  renames it over the old one, so a reader sees either the previous or the
  new document, never a mix.

LEGACY IMPORT:
  LoadLegacy reads the dashboard's older two-file layout (transcripts.json
  keyed by project id, analyses.json as a flat list) and groups it into
  ProjectData values ready to be committed to any store.
*/
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
)

const projectsDir = "projects"

// Store keeps one JSON document per project under dir.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// New creates the store directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, projectsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(projectID string) string {
	return filepath.Join(s.dir, projectsDir, url.PathEscape(projectID)+".json")
}

// Load reads a project's document. A missing document is an empty project
// at revision 0.
func (s *Store) Load(_ context.Context, projectID string) (reconcile.ProjectData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(projectID)
}

func (s *Store) read(projectID string) (reconcile.ProjectData, error) {
	b, err := os.ReadFile(s.path(projectID))
	if errors.Is(err, fs.ErrNotExist) {
		return reconcile.ProjectData{ProjectID: projectID}, nil
	}
	if err != nil {
		return reconcile.ProjectData{}, fmt.Errorf("read project %s: %w", projectID, err)
	}
	var data reconcile.ProjectData
	if err := json.Unmarshal(b, &data); err != nil {
		return reconcile.ProjectData{}, fmt.Errorf("decode project %s: %w", projectID, err)
	}
	data.ProjectID = projectID
	return data, nil
}

// Commit replaces the project's document if data.Revision is current.
func (s *Store) Commit(_ context.Context, data reconcile.ProjectData) (reconcile.ProjectData, error) {
	if data.ProjectID == "" {
		return reconcile.ProjectData{}, fmt.Errorf("commit: empty project id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(data.ProjectID)
	if err != nil {
		return reconcile.ProjectData{}, &reconcile.CommitError{ProjectID: data.ProjectID, Err: err}
	}
	if current.Revision != data.Revision {
		return reconcile.ProjectData{}, reconcile.ErrConcurrentModification
	}

	next := reconcile.CloneProject(data)
	next.Revision++
	if err := writeAtomic(s.path(data.ProjectID), next); err != nil {
		return reconcile.ProjectData{}, &reconcile.CommitError{ProjectID: data.ProjectID, Err: err}
	}
	return next, nil
}

// ListProjects returns the ids of every stored document, sorted.
func (s *Store) ListProjects(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.dir, projectsDir))
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Reset removes every project document.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.dir, projectsDir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

func writeAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// =============================================================================
// LEGACY IMPORT
// =============================================================================

const (
	legacyTranscriptsFile = "transcripts.json"
	legacyAnalysesFile    = "analyses.json"
)

// LoadLegacy reads transcripts.json ({projectId: [transcript...]}) and
// analyses.json ([analysis...]) from dir. Either file may be absent.
// Transcripts and analyses lacking a projectId take the one they were filed
// under. Projects are returned sorted by id, each at revision 0.
func LoadLegacy(dir string) ([]reconcile.ProjectData, error) {
	byProject := make(map[string]*reconcile.ProjectData)
	get := func(id string) *reconcile.ProjectData {
		p, ok := byProject[id]
		if !ok {
			p = &reconcile.ProjectData{ProjectID: id}
			byProject[id] = p
		}
		return p
	}

	var transcripts map[string][]reconcile.Transcript
	if err := readOptional(filepath.Join(dir, legacyTranscriptsFile), &transcripts); err != nil {
		return nil, err
	}
	for projectID, ts := range transcripts {
		p := get(projectID)
		for _, t := range ts {
			if t.ProjectID == "" {
				t.ProjectID = projectID
			}
			p.Transcripts = append(p.Transcripts, t)
		}
	}

	var analyses []reconcile.Analysis
	if err := readOptional(filepath.Join(dir, legacyAnalysesFile), &analyses); err != nil {
		return nil, err
	}
	for _, a := range analyses {
		if a.ProjectID == "" {
			return nil, fmt.Errorf("%s: analysis %q has no projectId: %w", legacyAnalysesFile, a.ID, reconcile.ErrInvalidAnalysis)
		}
		p := get(a.ProjectID)
		p.Analyses = append(p.Analyses, a)
	}

	ids := make([]string, 0, len(byProject))
	for id := range byProject {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]reconcile.ProjectData, len(ids))
	for i, id := range ids {
		out[i] = *byProject[id]
	}
	return out, nil
}

func readOptional(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
