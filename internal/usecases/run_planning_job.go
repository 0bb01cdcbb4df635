package usecases

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/cleitonmarx/epm-copilot/internal/telemetry"
	"github.com/cleitonmarx/symbiont/depend"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// detailCap bounds the error/warning/sample partitions of a run report.
const detailCap = 25

// PlanningJobRunner defines the job lifecycle operations: submit a job,
// poll it to a terminal state and collect its detail records.
type PlanningJobRunner interface {
	Submit(ctx context.Context, jobType, jobName string, parameters map[string]any) domain.JobSubmission
	PollOnce(ctx context.Context, jobID string) (domain.JobRun, domain.CallResult)
	Watch(ctx context.Context, jobID string, pollInterval, timeout time.Duration) domain.WatchResult
	FetchDetails(ctx context.Context, jobID string, offset, limit int) ([]domain.DetailRecord, domain.CallResult)
	RunAndWait(ctx context.Context, req RunJobRequest) domain.RunReport
}

// RunJobRequest carries the parameters of one submit-watch-details run.
type RunJobRequest struct {
	JobType       string
	JobName       string
	Parameters    map[string]any
	PollInterval  time.Duration
	Timeout       time.Duration
	DetailsOffset int
	DetailsLimit  int
}

// PlanningJobRunnerImpl is the implementation of the PlanningJobRunner use case.
type PlanningJobRunnerImpl struct {
	gateway      domain.PlanningGateway
	reports      domain.RunReportStore
	timeProvider domain.CurrentTimeProvider
	sleep        func(ctx context.Context, d time.Duration) error
	application  string
	apiVersion   string
	allowedJobs  map[string]struct{}
	logger       *log.Logger
}

// NewPlanningJobRunnerImpl creates a new instance of PlanningJobRunnerImpl.
// allowlist is a comma-separated "TYPE:NAME" list; empty means every job is allowed.
func NewPlanningJobRunnerImpl(
	gateway domain.PlanningGateway,
	reports domain.RunReportStore,
	timeProvider domain.CurrentTimeProvider,
	application, apiVersion, allowlist string,
	logger *log.Logger,
) PlanningJobRunnerImpl {
	allowed := map[string]struct{}{}
	for _, entry := range strings.Split(allowlist, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			allowed[entry] = struct{}{}
		}
	}
	return PlanningJobRunnerImpl{
		gateway:      gateway,
		reports:      reports,
		timeProvider: timeProvider,
		sleep:        sleepContext,
		application:  application,
		apiVersion:   apiVersion,
		allowedJobs:  allowed,
		logger:       logger,
	}
}

func (r PlanningJobRunnerImpl) jobsPath() string {
	return fmt.Sprintf("/HyperionPlanning/rest/%s/applications/%s/jobs", r.apiVersion, r.application)
}

// Submit POSTs a new job and extracts its identifier from the response.
func (r PlanningJobRunnerImpl) Submit(ctx context.Context, jobType, jobName string, parameters map[string]any) domain.JobSubmission {
	spanCtx, span := telemetry.Start(ctx, telemetry.JobAttributes(jobType, jobName))
	defer span.End()

	if len(r.allowedJobs) > 0 {
		key := jobType + ":" + jobName
		if _, ok := r.allowedJobs[key]; !ok {
			return domain.JobSubmission{
				Error:   domain.JobError_NotAllowed,
				Message: "Job not allowlisted: " + key,
			}
		}
	}

	body := map[string]any{"jobType": jobType, "jobName": jobName}
	if len(parameters) > 0 {
		body["parameters"] = parameters
	}

	call := r.gateway.Call(spanCtx, "POST", r.jobsPath(), nil, body)
	if !call.OK {
		return domain.JobSubmission{Error: call.Error, Message: call.Message, Call: call}
	}

	jobID := firstString(call.Response, "jobId", "jobID", "id", "jobIdentifier")
	if jobID == "" {
		return domain.JobSubmission{
			Error:   domain.JobError_NoJobID,
			Message: "submission response did not contain a job id",
			Raw:     call.Response,
			Call:    call,
		}
	}

	return domain.JobSubmission{
		OK:     true,
		JobID:  jobID,
		Status: firstString(call.Response, "status", "descriptiveStatus", "state"),
		Raw:    call.Response,
		Call:   call,
	}
}

// PollOnce GETs the current job snapshot. The raw payload is retained on the snapshot.
func (r PlanningJobRunnerImpl) PollOnce(ctx context.Context, jobID string) (domain.JobRun, domain.CallResult) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("job.id", jobID)),
	)
	defer span.End()

	call := r.gateway.Call(spanCtx, "GET", r.jobsPath()+"/"+jobID, nil, nil)
	if !call.OK {
		return domain.JobRun{JobID: jobID}, call
	}
	return jobRunFromPayload(jobID, call.Response), call
}

// Watch polls the job until it reaches a terminal status or the wall-clock
// timeout elapses. A timeout is a structured result carrying the partial poll
// trail; only the suspend between polls observes ctx cancellation.
func (r PlanningJobRunnerImpl) Watch(ctx context.Context, jobID string, pollInterval, timeout time.Duration) domain.WatchResult {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("job.id", jobID)),
	)
	defer span.End()

	if pollInterval < time.Second {
		pollInterval = time.Second
	}

	start := r.timeProvider.Now()
	var polls []domain.PollRecord
	for {
		run, call := r.PollOnce(spanCtx, jobID)
		if !call.OK {
			return domain.WatchResult{
				Error:   domain.JobError_PollFailed,
				Message: call.Message,
				Job:     run,
				Polls:   polls,
				Failure: &call,
			}
		}

		polls = append(polls, domain.PollRecord{
			Timestamp:       r.timeProvider.Now(),
			Status:          run.Status,
			PercentComplete: run.PercentComplete,
		})

		if domain.IsTerminalJobStatus(run.Status) {
			return domain.WatchResult{OK: true, Job: run, Polls: polls}
		}

		if r.timeProvider.Now().Sub(start) >= timeout {
			return domain.WatchResult{
				TimedOut: true,
				Error:    domain.JobError_Timeout,
				Message:  fmt.Sprintf("Job did not complete within %s", timeout),
				Job:      run,
				Polls:    polls,
			}
		}

		if err := r.sleep(ctx, pollInterval); err != nil {
			telemetry.RecordErrorAndStatus(span, err)
			return domain.WatchResult{
				Error:   domain.JobError_WatchCanceled,
				Message: err.Error(),
				Job:     run,
				Polls:   polls,
			}
		}
	}
}

// FetchDetails GETs one page of job detail records. Failures surface through
// the returned call result; the watch outcome is never invalidated by them.
func (r PlanningJobRunnerImpl) FetchDetails(ctx context.Context, jobID string, offset, limit int) ([]domain.DetailRecord, domain.CallResult) {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("job.id", jobID)),
	)
	defer span.End()

	params := map[string]string{
		"offset": strconv.Itoa(offset),
		"limit":  strconv.Itoa(limit),
	}
	call := r.gateway.Call(spanCtx, "GET", r.jobsPath()+"/"+jobID+"/details", params, nil)
	if !call.OK {
		return nil, call
	}
	return detailRecordsFromPayload(call.Response), call
}

// RunAndWait composes submit, watch and detail collection into one report.
// A failed submission or watch short-circuits before any detail fetch.
func (r PlanningJobRunnerImpl) RunAndWait(ctx context.Context, req RunJobRequest) domain.RunReport {
	spanCtx, span := telemetry.Start(ctx, telemetry.JobAttributes(req.JobType, req.JobName))
	defer span.End()

	submission := r.Submit(spanCtx, req.JobType, req.JobName, req.Parameters)
	if !submission.OK {
		return r.persist(spanCtx, domain.RunReport{
			Error:   submission.Error,
			Message: submission.Message,
			Job:     domain.JobOutcome{JobType: req.JobType, JobName: req.JobName},
			Raw:     domain.RunRawPayloads{Execute: submission},
		})
	}

	watch := r.Watch(spanCtx, submission.JobID, req.PollInterval, req.Timeout)
	outcome := domain.JobOutcome{
		JobID:       submission.JobID,
		JobType:     req.JobType,
		JobName:     req.JobName,
		FinalStatus: watch.Job.Status,
		PollCount:   len(watch.Polls),
		Polls:       watch.Polls,
	}
	if !watch.OK {
		return r.persist(spanCtx, domain.RunReport{
			Error:   watch.Error,
			Message: watch.Message,
			Job:     outcome,
			Raw:     domain.RunRawPayloads{Execute: submission, FinalStatus: watch.Job},
		})
	}

	details, detailsCall := r.FetchDetails(spanCtx, submission.JobID, req.DetailsOffset, req.DetailsLimit)

	var errors, warnings []domain.DetailRecord
	for _, d := range details {
		switch strings.ToUpper(d.Severity) {
		case "ERROR":
			errors = append(errors, d)
		case "WARN", "WARNING":
			warnings = append(warnings, d)
		}
	}

	return r.persist(spanCtx, domain.RunReport{
		OK:  true,
		Job: outcome,
		Summary: domain.RunSummary{
			Errors:        capDetails(errors),
			Warnings:      capDetails(warnings),
			DetailsSample: capDetails(details),
		},
		Raw: domain.RunRawPayloads{
			Execute:     submission,
			FinalStatus: watch.Job,
			Details:     detailsCall,
		},
	})
}

// persist records the run outcome and saves the report best-effort.
func (r PlanningJobRunnerImpl) persist(ctx context.Context, report domain.RunReport) domain.RunReport {
	status := report.Job.FinalStatus
	if status == "" {
		status = report.Error
	}
	RecordJobRun(ctx, status)

	if r.reports == nil {
		return report
	}
	if err := r.reports.SaveRunReport(ctx, report); err != nil {
		r.logger.Printf("run report for job %q not persisted: %v", report.Job.JobID, err)
	}
	return report
}

func capDetails(records []domain.DetailRecord) []domain.DetailRecord {
	if len(records) > detailCap {
		return records[:detailCap]
	}
	return records
}

func jobRunFromPayload(jobID string, payload map[string]any) domain.JobRun {
	return domain.JobRun{
		JobID:           jobID,
		Status:          firstString(payload, "status", "descriptiveStatus", "state"),
		PercentComplete: firstFloat(payload, "percentComplete", "progress"),
		StartTime:       firstTime(payload, "startTime", "startedAt"),
		EndTime:         firstTime(payload, "endTime", "endedAt"),
		Raw:             payload,
	}
}

func detailRecordsFromPayload(payload map[string]any) []domain.DetailRecord {
	items := firstList(payload, "items", "details", "messages")
	records := make([]domain.DetailRecord, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, domain.DetailRecord{
			Severity: firstString(entry, "severity"),
			Type:     firstString(entry, "type"),
			Row:      entry["row"],
			Message:  firstString(entry, "message", "details", "text"),
		})
	}
	return records
}

// firstString returns the first non-empty value among the aliased keys,
// stringifying JSON numbers so numeric job ids survive extraction.
func firstString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

func firstFloat(payload map[string]any, keys ...string) float64 {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// firstTime parses the first aliased timestamp it finds; the remote API emits
// several datetime flavors, so parsing is format-tolerant.
func firstTime(payload map[string]any, keys ...string) *time.Time {
	for _, key := range keys {
		s, ok := payload[key].(string)
		if !ok || s == "" {
			continue
		}
		if t, err := dateparse.ParseAny(s); err == nil {
			return &t
		}
	}
	return nil
}

func firstList(payload map[string]any, keys ...string) []any {
	for _, key := range keys {
		if list, ok := payload[key].([]any); ok && len(list) > 0 {
			return list
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// InitPlanningJobRunner is the initializer for the PlanningJobRunner use case.
type InitPlanningJobRunner struct {
	Gateway      domain.PlanningGateway     `resolve:""`
	Reports      domain.RunReportStore      `resolve:""`
	TimeProvider domain.CurrentTimeProvider `resolve:""`
	Logger       *log.Logger                `resolve:""`
	Application  string                     `config:"EPM_APPLICATION"`
	APIVersion   string                     `config:"EPM_API_VERSION" default:"v3"`
	// AllowlistJobs restricts submissions to a comma-separated "TYPE:NAME" set when non-empty.
	AllowlistJobs string `config:"EPM_ALLOWLIST_JOBS" default:""`
}

// Initialize registers the PlanningJobRunner use case in the dependency container.
func (i InitPlanningJobRunner) Initialize(ctx context.Context) (context.Context, error) {
	if i.Application == "" {
		return ctx, domain.NewConfigurationErr("missing required settings: EPM_APPLICATION")
	}
	depend.Register[PlanningJobRunner](NewPlanningJobRunnerImpl(
		i.Gateway,
		i.Reports,
		i.TimeProvider,
		i.Application,
		i.APIVersion,
		i.AllowlistJobs,
		i.Logger,
	))
	return ctx, nil
}
