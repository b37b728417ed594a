/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Transcripts, analyses
  and change reports are returned in their stored form (reconcile types
  carry the JSON field names shared with the dashboard); only request
  bodies and response wrappers live here.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers

VALIDATION:
  Validation is done in handlers and in project.Service, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - reconcile/types.go: Transcript, Analysis, ChangeReport
*/
package api

import (
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/project"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
)

// =============================================================================
// TRANSCRIPTS
// =============================================================================

// CreateTranscriptRequest is the body of POST .../transcripts.
type CreateTranscriptRequest struct {
	ID               string `json:"id,omitempty"`
	InterviewDate    string `json:"interviewDate"`
	InterviewTime    string `json:"interviewTime"`
	OriginalFilename string `json:"originalFilename,omitempty"`
	OriginalPath     string `json:"originalPath,omitempty"`
	CleanedPath      string `json:"cleanedPath,omitempty"`
}

func (r CreateTranscriptRequest) toInput() project.TranscriptInput {
	return project.TranscriptInput{
		ID:               r.ID,
		InterviewDate:    r.InterviewDate,
		InterviewTime:    r.InterviewTime,
		OriginalFilename: r.OriginalFilename,
		OriginalPath:     r.OriginalPath,
		CleanedPath:      r.CleanedPath,
	}
}

// UpdateTranscriptRequest is the body of PATCH .../transcripts/{id}.
// Omitted fields are left unchanged.
type UpdateTranscriptRequest struct {
	InterviewDate *string `json:"interviewDate,omitempty"`
	InterviewTime *string `json:"interviewTime,omitempty"`
	RespnoLocked  *bool   `json:"respnoLocked,omitempty"`
}

func (r UpdateTranscriptRequest) empty() bool {
	return r.InterviewDate == nil && r.InterviewTime == nil && r.RespnoLocked == nil
}

// TranscriptResponse returns a transcript with the report of the pass that
// followed its mutation.
type TranscriptResponse struct {
	Transcript reconcile.Transcript   `json:"transcript"`
	Report     reconcile.ChangeReport `json:"report"`
}

// TranscriptListResponse lists a project's transcripts in respno order.
type TranscriptListResponse struct {
	ProjectID   string                 `json:"projectId"`
	Transcripts []reconcile.Transcript `json:"transcripts"`
}

// DuplicatesResponse lists groups of transcripts sharing a date and time.
type DuplicatesResponse struct {
	ProjectID  string                     `json:"projectId"`
	Duplicates []reconcile.DuplicateGroup `json:"duplicates"`
}

// DuplicateConflictResponse is the 409 body when an upload repeats an
// existing interview. Resubmit with ?confirm=true to create it anyway.
type DuplicateConflictResponse struct {
	Error    string               `json:"error"`
	Details  string               `json:"details"`
	Existing reconcile.Transcript `json:"existing"`
}

// =============================================================================
// ANALYSES
// =============================================================================

// AnalysisResponse returns a saved analysis and the pass that followed.
type AnalysisResponse struct {
	Analysis reconcile.Analysis     `json:"analysis"`
	Report   reconcile.ChangeReport `json:"report"`
}

// AnalysisListResponse lists a project's analyses.
type AnalysisListResponse struct {
	ProjectID string               `json:"projectId"`
	Analyses  []reconcile.Analysis `json:"analyses"`
}

// =============================================================================
// PROJECTS & ADMIN
// =============================================================================

// ProjectListResponse lists stored project ids.
type ProjectListResponse struct {
	Projects []string `json:"projects"`
}

// SweepListResponse lists recent sweep runs.
type SweepListResponse struct {
	Sweeps []reconcile.SweepRun `json:"sweeps"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ProjectID   string `json:"project_id"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
