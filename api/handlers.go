/*
handlers.go - HTTP API handlers for respondent-identity reconciliation

PURPOSE:
  Exposes project.Service via REST. Handles HTTP request/response and JSON
  serialization; every mutation goes through the service so the
  reconciliation pass always runs before the response is written.

ENDPOINTS:
  Projects:
    GET    /api/projects                                   List project ids
    POST   /api/projects/{projectID}/reconcile             Run the pass without a mutation

  Transcripts:
    GET    /api/projects/{projectID}/transcripts           List in respno order
    POST   /api/projects/{projectID}/transcripts           Create (?confirm=true accepts duplicates)
    PATCH  /api/projects/{projectID}/transcripts/{id}      Edit date/time or lock
    DELETE /api/projects/{projectID}/transcripts/{id}      Delete
    GET    /api/projects/{projectID}/duplicates            Date/time duplicate groups

  Analyses:
    GET    /api/projects/{projectID}/analyses              List
    PUT    /api/projects/{projectID}/analyses/{id}         Insert or replace
    DELETE /api/projects/{projectID}/analyses/{id}         Delete

  Admin:
    POST   /api/admin/migrate                              Legacy respno migration
    POST   /api/admin/sweep                                Consistency sweep
    GET    /api/admin/sweeps                               Sweep history

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input
  - 404: Transcript or analysis not found
  - 409: Duplicate interview (unconfirmed) or concurrent modification
  - 503: Project locked by another writer (Retry-After set)
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The dashboard's gateway authenticates callers.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/logger"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/project"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *project.Service
	Log     *logger.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler around svc.
func NewHandler(svc *project.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{Service: svc, Log: log}
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

// ListProjects returns all stored project ids.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Service.Projects(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list projects", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ProjectListResponse{Projects: ids})
}

// ReconcileProject runs the pass over a project as stored.
func (h *Handler) ReconcileProject(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.Reconcile(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		h.writeServiceError(w, "Failed to reconcile project", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// TRANSCRIPT HANDLERS
// =============================================================================

// ListTranscripts returns a project's transcripts.
func (h *Handler) ListTranscripts(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	ts, err := h.Service.Transcripts(r.Context(), projectID)
	if err != nil {
		h.writeServiceError(w, "Failed to list transcripts", err)
		return
	}
	if ts == nil {
		ts = []reconcile.Transcript{}
	}
	writeJSON(w, http.StatusOK, TranscriptListResponse{ProjectID: projectID, Transcripts: ts})
}

// CreateTranscript adds a transcript to a project.
func (h *Handler) CreateTranscript(w http.ResponseWriter, r *http.Request) {
	var req CreateTranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	t, report, err := h.Service.CreateTranscript(r.Context(), chi.URLParam(r, "projectID"), req.toInput(), confirm)
	if err != nil {
		h.writeServiceError(w, "Failed to create transcript", err)
		return
	}
	writeJSON(w, http.StatusCreated, TranscriptResponse{Transcript: t, Report: report})
}

// UpdateTranscript edits a transcript's date/time or lock flag.
func (h *Handler) UpdateTranscript(w http.ResponseWriter, r *http.Request) {
	var req UpdateTranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.empty() {
		writeError(w, http.StatusBadRequest, "Nothing to update", nil)
		return
	}

	t, report, err := h.Service.UpdateTranscript(r.Context(),
		chi.URLParam(r, "projectID"), chi.URLParam(r, "transcriptID"),
		project.TranscriptUpdate{
			InterviewDate: req.InterviewDate,
			InterviewTime: req.InterviewTime,
			RespnoLocked:  req.RespnoLocked,
		})
	if err != nil {
		h.writeServiceError(w, "Failed to update transcript", err)
		return
	}
	writeJSON(w, http.StatusOK, TranscriptResponse{Transcript: t, Report: report})
}

// DeleteTranscript removes a transcript and its analysis rows.
func (h *Handler) DeleteTranscript(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.DeleteTranscript(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "transcriptID"))
	if err != nil {
		h.writeServiceError(w, "Failed to delete transcript", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListDuplicates returns transcripts sharing an interview date and time.
func (h *Handler) ListDuplicates(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	groups, err := h.Service.DetectDuplicates(r.Context(), projectID)
	if err != nil {
		h.writeServiceError(w, "Failed to detect duplicates", err)
		return
	}
	if groups == nil {
		groups = []reconcile.DuplicateGroup{}
	}
	writeJSON(w, http.StatusOK, DuplicatesResponse{ProjectID: projectID, Duplicates: groups})
}

// =============================================================================
// ANALYSIS HANDLERS
// =============================================================================

// ListAnalyses returns a project's analyses.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	as, err := h.Service.Analyses(r.Context(), projectID)
	if err != nil {
		h.writeServiceError(w, "Failed to list analyses", err)
		return
	}
	if as == nil {
		as = []reconcile.Analysis{}
	}
	writeJSON(w, http.StatusOK, AnalysisListResponse{ProjectID: projectID, Analyses: as})
}

// SaveAnalysis inserts or replaces an analysis.
func (h *Handler) SaveAnalysis(w http.ResponseWriter, r *http.Request) {
	var a reconcile.Analysis
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	analysisID := chi.URLParam(r, "analysisID")
	if a.ID != "" && a.ID != analysisID {
		writeError(w, http.StatusBadRequest, "Analysis id does not match URL", nil)
		return
	}
	a.ID = analysisID

	saved, report, err := h.Service.SaveAnalysis(r.Context(), chi.URLParam(r, "projectID"), a)
	if err != nil {
		h.writeServiceError(w, "Failed to save analysis", err)
		return
	}
	writeJSON(w, http.StatusOK, AnalysisResponse{Analysis: saved, Report: report})
}

// DeleteAnalysis removes an analysis.
func (h *Handler) DeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteAnalysis(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "analysisID")); err != nil {
		h.writeServiceError(w, "Failed to delete analysis", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunMigration assigns and locks respnos in every project.
func (h *Handler) RunMigration(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.RunLegacyMigration(r.Context())
	if err != nil {
		h.writeServiceError(w, "Migration failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// RunSweep runs a consistency sweep over every project.
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	run, err := h.Service.Sweep(r.Context())
	if err != nil {
		h.writeServiceError(w, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListSweeps returns recent sweep runs (?limit=N, default 20).
func (h *Handler) ListSweeps(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	runs, err := h.Service.Sweeps(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "Failed to list sweeps", err)
		return
	}
	if runs == nil {
		runs = []reconcile.SweepRun{}
	}
	writeJSON(w, http.StatusOK, SweepListResponse{Sweeps: runs})
}

// ResetData clears every project (dev only).
func (h *Handler) ResetData(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset data", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps service errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	var dup *reconcile.DuplicateError
	switch {
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, DuplicateConflictResponse{
			Error:    "Duplicate interview",
			Details:  dup.Error(),
			Existing: dup.Existing,
		})
	case reconcile.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case reconcile.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, reconcile.ErrProjectBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, message, err)
	case errors.Is(err, reconcile.ErrConcurrentModification):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.Log.Error(message, "error", err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
