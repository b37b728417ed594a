/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built projects that show the reconciliation engine at work.
	Each scenario replaces one demo project (demo-<scenario id>) and leaves
	every other project alone.

AVAILABLE SCENARIOS:

	chronological-upload: Interviews uploaded out of order, renumbered on each upload
	legacy-unmigrated:    Old project with unlocked respnos and rows lacking transcriptId
	duplicate-uploads:    Same interview uploaded twice, with duplicate analysis rows

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "legacy-unmigrated"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, projectID)
 3. Add case to LoadScenario handler

SEE ALSO:
  - handlers.go: admin endpoints to run migration and sweeps on the demo data
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/project"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "chronological-upload",
		Name:        "Chronological Upload",
		Description: "Three interviews uploaded Jan 3, Jan 1, Jan 2. Each upload renumbers the project so respnos follow interview order.",
		ProjectID:   "demo-chronological-upload",
	},
	{
		ID:          "legacy-unmigrated",
		Name:        "Legacy Project",
		Description: "Transcripts with unlocked, out-of-order respnos and analysis rows keyed only by respno. Run POST /api/admin/migrate to lock it.",
		ProjectID:   "demo-legacy-unmigrated",
	},
	{
		ID:          "duplicate-uploads",
		Name:        "Duplicate Uploads",
		Description: "The same interview uploaded twice plus repeated analysis rows. Run POST /api/admin/sweep to clean it up.",
		ProjectID:   "demo-duplicate-uploads",
	},
}

func scenarioByID(id string) (ScenarioDTO, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return ScenarioDTO{}, false
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the most recently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	s, _ := scenarioByID(current)
	writeJSON(w, http.StatusOK, s)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, ok := scenarioByID(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	var err error
	switch s.ID {
	case "chronological-upload":
		err = h.loadChronologicalUploadScenario(ctx, s.ProjectID)
	case "legacy-unmigrated":
		err = h.loadLegacyScenario(ctx, s.ProjectID)
	case "duplicate-uploads":
		err = h.loadDuplicateUploadsScenario(ctx, s.ProjectID)
	}
	if err != nil {
		h.writeServiceError(w, fmt.Sprintf("Failed to load scenario %s", s.ID), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": s.ID, "project_id": s.ProjectID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// reset replaces projectID with data, verbatim.
func (h *Handler) reset(ctx context.Context, data reconcile.ProjectData) error {
	_, err := h.Service.Import(ctx, []reconcile.ProjectData{data}, true)
	return err
}

func (h *Handler) loadChronologicalUploadScenario(ctx context.Context, projectID string) error {
	if err := h.reset(ctx, reconcile.ProjectData{
		ProjectID: projectID,
		Analyses: []reconcile.Analysis{{
			ID:        "A-demo-ca",
			ProjectID: projectID,
			Name:      "Content Analysis",
			Data:      map[string][]reconcile.Row{"Demographics": {}, "Awareness": {}},
		}},
	}); err != nil {
		return err
	}

	uploads := []project.TranscriptInput{
		{ID: "T-demo-1", InterviewDate: "Jan 3, 2025", InterviewTime: "10:00 AM", OriginalFilename: "interview-jan3.docx"},
		{ID: "T-demo-2", InterviewDate: "Jan 1, 2025", InterviewTime: "9:00 AM", OriginalFilename: "interview-jan1.docx"},
		{ID: "T-demo-3", InterviewDate: "Jan 2, 2025", InterviewTime: "2:00 PM", OriginalFilename: "interview-jan2.docx"},
	}
	for _, in := range uploads {
		if _, _, err := h.Service.CreateTranscript(ctx, projectID, in, false); err != nil {
			return err
		}
	}

	// Rows carry stale respnos on purpose; saving the analysis cascades them.
	rows := func(sheet string) []reconcile.Row {
		return []reconcile.Row{
			{"transcriptId": "T-demo-1", "Respondent ID": "R01", "Interview Date": "Jan 3, 2025", sheet: "aware"},
			{"transcriptId": "T-demo-2", "Respondent ID": "R02", "Interview Date": "Jan 1, 2025", sheet: "unaware"},
			{"transcriptId": "T-demo-3", "Respondent ID": "R03", "Interview Date": "Jan 2, 2025", sheet: "aware"},
		}
	}
	_, _, err := h.Service.SaveAnalysis(ctx, projectID, reconcile.Analysis{
		ID:   "A-demo-ca",
		Name: "Content Analysis",
		Data: map[string][]reconcile.Row{
			"Demographics": rows("Segment"),
			"Awareness":    rows("Unaided"),
		},
		Context: reconcile.Aux{"Awareness": {"R01": "Mentioned brand first", "Unaided": "Column note"}},
	})
	return err
}

func (h *Handler) loadLegacyScenario(ctx context.Context, projectID string) error {
	return h.reset(ctx, reconcile.ProjectData{
		ProjectID: projectID,
		Transcripts: []reconcile.Transcript{
			{ID: "T-legacy-1", ProjectID: projectID, InterviewDate: "2024-03-05", InterviewTime: "10:00", Respno: "R02"},
			{ID: "T-legacy-2", ProjectID: projectID, InterviewDate: "2024-03-01", InterviewTime: "11:00", Respno: "R01"},
			{ID: "T-legacy-3", ProjectID: projectID, InterviewDate: "2024-03-03", InterviewTime: "09:30"},
		},
		Analyses: []reconcile.Analysis{{
			ID:        "A-legacy-ca",
			ProjectID: projectID,
			Name:      "Legacy Content Analysis",
			Data: map[string][]reconcile.Row{
				"Demographics": {
					{"Respondent ID": "R01", "Interview Date": "2024-03-01", "Age": "34"},
					{"Respondent ID": "R02", "Interview Date": "2024-03-05", "Age": "51"},
					{"Respondent ID": "R07", "Interview Date": "2023-12-12", "Age": "29"},
				},
			},
			Quotes: reconcile.Aux{"Demographics": {"R02": map[string]any{"R02": "I switched last year."}}},
		}},
	})
}

func (h *Handler) loadDuplicateUploadsScenario(ctx context.Context, projectID string) error {
	return h.reset(ctx, reconcile.ProjectData{
		ProjectID: projectID,
		Transcripts: []reconcile.Transcript{
			{ID: "T-dup-1", ProjectID: projectID, InterviewDate: "2025-02-10", InterviewTime: "3:00 PM", Respno: "R01"},
			{ID: "T-dup-2", ProjectID: projectID, InterviewDate: "2025-02-10", InterviewTime: "3:00 PM", Respno: "R02"},
			{ID: "T-dup-3", ProjectID: projectID, InterviewDate: "2025-02-11", InterviewTime: "9:00 AM", Respno: "R03"},
		},
		Analyses: []reconcile.Analysis{{
			ID:        "A-dup-ca",
			ProjectID: projectID,
			Name:      "Content Analysis",
			Data: map[string][]reconcile.Row{
				"Demographics": {
					{"transcriptId": "T-dup-1", "Respondent ID": "R01", "Interview Date": "2025-02-10", "Interview Time": "3:00 PM"},
					{"transcriptId": "T-dup-2", "Respondent ID": "R02", "Interview Date": "2025-02-10", "Interview Time": "3:00 PM"},
					{"transcriptId": "T-dup-3", "Respondent ID": "R03", "Interview Date": "2025-02-11", "Interview Time": "9:00 AM"},
					{"transcriptId": "T-dup-3", "Respondent ID": "R03", "Interview Date": "2025-02-11", "Interview Time": "9:00 AM"},
				},
			},
		}},
	})
}
