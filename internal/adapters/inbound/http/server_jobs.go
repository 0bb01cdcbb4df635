package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/cleitonmarx/epm-copilot/internal/usecases"
)

type runJobRequest struct {
	JobType             string         `json:"jobType"`
	JobName             string         `json:"jobName"`
	Parameters          map[string]any `json:"parameters,omitempty"`
	PollIntervalSeconds int            `json:"pollIntervalSeconds,omitempty"`
	TimeoutSeconds      int            `json:"timeoutSeconds,omitempty"`
	DetailsOffset       int            `json:"detailsOffset,omitempty"`
	DetailsLimit        int            `json:"detailsLimit,omitempty"`
}

// RunJob submits a job and waits for its terminal state, returning the full run report.
func (api *CopilotServer) RunJob(w http.ResponseWriter, r *http.Request) {
	var req runJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.JobType == "" || req.JobName == "" {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "jobType and jobName are required")
		return
	}
	if req.PollIntervalSeconds <= 0 {
		req.PollIntervalSeconds = 5
	}
	if req.TimeoutSeconds <= 0 {
		req.TimeoutSeconds = 900
	}
	if req.DetailsLimit <= 0 {
		req.DetailsLimit = 200
	}

	report := api.JobRunner.RunAndWait(r.Context(), usecases.RunJobRequest{
		JobType:       req.JobType,
		JobName:       req.JobName,
		Parameters:    req.Parameters,
		PollInterval:  time.Duration(req.PollIntervalSeconds) * time.Second,
		Timeout:       time.Duration(req.TimeoutSeconds) * time.Second,
		DetailsOffset: req.DetailsOffset,
		DetailsLimit:  req.DetailsLimit,
	})

	respondJSON(w, runReportStatus(report), report)
}

// runReportStatus maps a run outcome onto an HTTP status. Failed runs are
// still well-formed reports, so the body is the report either way.
func runReportStatus(report domain.RunReport) int {
	switch {
	case report.OK:
		return http.StatusOK
	case report.Error == domain.JobError_NotAllowed:
		return http.StatusForbidden
	case report.Error == domain.JobError_Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// JobStatus returns one status snapshot of a submitted job.
func (api *CopilotServer) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	run, call := api.JobRunner.PollOnce(r.Context(), jobID)
	if !call.OK {
		respondJSON(w, http.StatusBadGateway, call)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// JobDefinitions lists the runnable jobs of the configured application.
func (api *CopilotServer) JobDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, call := api.Interop.ListJobDefinitions(r.Context())
	if !call.OK {
		respondJSON(w, http.StatusBadGateway, call)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":          len(defs),
		"jobDefinitions": defs,
	})
}
