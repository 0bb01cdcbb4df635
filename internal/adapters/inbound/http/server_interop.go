package http

import (
	"net/http"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
)

// Files lists the migration repository contents.
func (api *CopilotServer) Files(w http.ResponseWriter, r *http.Request) {
	api.respondCall(w, api.Interop.ListFiles(r.Context()))
}

// Backups lists the available infrastructure backups.
func (api *CopilotServer) Backups(w http.ResponseWriter, r *http.Request) {
	api.respondCall(w, api.Interop.ListBackups(r.Context()))
}

// Maintenance reports the daily maintenance window start time.
func (api *CopilotServer) Maintenance(w http.ResponseWriter, r *http.Request) {
	api.respondCall(w, api.Interop.DailyMaintenanceStartTime(r.Context()))
}

// OperationStatus checks one async interop operation.
func (api *CopilotServer) OperationStatus(w http.ResponseWriter, r *http.Request) {
	call := api.Interop.OperationStatus(r.Context(), r.PathValue("operation"), r.PathValue("jobId"))
	if call.Error == domain.InteropError_InvalidOperation {
		respondError(w, http.StatusBadRequest, call.Error, call.Message)
		return
	}
	api.respondCall(w, call)
}

// respondCall renders a gateway result: the structured result is the body
// whether the upstream call succeeded or not.
func (api *CopilotServer) respondCall(w http.ResponseWriter, call domain.CallResult) {
	status := http.StatusOK
	if !call.OK {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, call)
}
