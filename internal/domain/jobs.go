package domain

import (
	"context"
	"strings"
	"time"
)

// Job failure codes returned inside structured results.
const (
	JobError_NotAllowed = "JOB_NOT_ALLOWED"
	JobError_NoJobID    = "NO_JOB_ID"
	JobError_PollFailed = "POLL_FAILED"
	JobError_Timeout    = "TIMEOUT"
	// JobError_WatchCanceled reports a watch aborted by caller cancellation,
	// distinct from a remote CANCELED job status.
	JobError_WatchCanceled = "WATCH_CANCELED"
)

// terminalJobStatuses are the statuses after which no further state change occurs.
var terminalJobStatuses = map[string]struct{}{
	"SUCCEEDED": {},
	"FAILED":    {},
	"ERROR":     {},
	"CANCELED":  {},
	"CANCELLED": {},
}

// IsTerminalJobStatus reports whether the given status is terminal, case-insensitively.
func IsTerminalJobStatus(status string) bool {
	_, ok := terminalJobStatuses[strings.ToUpper(strings.TrimSpace(status))]
	return ok
}

// JobRun is the snapshot of one remote job, created at submission and updated
// on every poll by the job watcher. The caller retains the final snapshot.
type JobRun struct {
	JobID           string         `json:"jobId"`
	JobType         string         `json:"jobType"`
	JobName         string         `json:"jobName"`
	Status          string         `json:"status"`
	PercentComplete float64        `json:"percentComplete"`
	StartTime       *time.Time     `json:"startTime,omitempty"`
	EndTime         *time.Time     `json:"endTime,omitempty"`
	Raw             map[string]any `json:"raw,omitempty"`
}

// PollRecord is one immutable entry in the poll audit trail.
type PollRecord struct {
	Timestamp       time.Time `json:"ts"`
	Status          string    `json:"status"`
	PercentComplete float64   `json:"percentComplete"`
}

// DetailRecord is one job detail line (validation message, rejected row, ...).
type DetailRecord struct {
	Severity string `json:"severity"`
	Type     string `json:"type,omitempty"`
	Row      any    `json:"row,omitempty"`
	Message  string `json:"message"`
}

// JobSubmission is the structured outcome of submitting one job.
type JobSubmission struct {
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Message string         `json:"message,omitempty"`
	JobID   string         `json:"jobId,omitempty"`
	Status  string         `json:"status,omitempty"`
	Raw     map[string]any `json:"raw,omitempty"`
	// Call carries the underlying gateway result for diagnostics.
	Call CallResult `json:"call,omitempty"`
}

// WatchResult is the outcome of polling one job to a terminal state.
// A timeout is a structured result carrying the partial audit trail, not an error.
type WatchResult struct {
	OK       bool         `json:"ok"`
	TimedOut bool         `json:"timed_out,omitempty"`
	Error    string       `json:"error,omitempty"`
	Message  string       `json:"message,omitempty"`
	Job      JobRun       `json:"job"`
	Polls    []PollRecord `json:"polls"`
	// Failure holds the gateway result of the poll that failed, when one did.
	Failure *CallResult `json:"failure,omitempty"`
}

// JobOutcome summarizes the submitted job inside a RunReport.
type JobOutcome struct {
	JobID       string       `json:"jobId"`
	JobType     string       `json:"jobType"`
	JobName     string       `json:"jobName"`
	FinalStatus string       `json:"finalStatus"`
	PollCount   int          `json:"pollCount"`
	Polls       []PollRecord `json:"polls"`
}

// RunSummary partitions detail records for quick triage. Each slice is capped
// to bound report size; the full payloads stay in RunRawPayloads.
type RunSummary struct {
	Errors        []DetailRecord `json:"errors"`
	Warnings      []DetailRecord `json:"warnings"`
	DetailsSample []DetailRecord `json:"detailsSample"`
}

// RunRawPayloads retains the unabridged submission, status and detail payloads for audit.
type RunRawPayloads struct {
	Execute     JobSubmission `json:"execute"`
	FinalStatus JobRun        `json:"finalStatus"`
	Details     CallResult    `json:"details"`
}

// RunReport is the full record of one submit-watch-details run.
type RunReport struct {
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Message string         `json:"message,omitempty"`
	Job     JobOutcome     `json:"job"`
	Summary RunSummary     `json:"summary"`
	Raw     RunRawPayloads `json:"raw"`
}

// RunReportStore persists run reports for audit. Persistence is best-effort:
// a store failure never invalidates the run outcome.
type RunReportStore interface {
	SaveRunReport(ctx context.Context, report RunReport) error
}
