package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/cleitonmarx/epm-copilot/internal/telemetry"
	"github.com/google/uuid"
)

var runReportFields = []string{
	"id",
	"job_id",
	"job_type",
	"job_name",
	"final_status",
	"ok",
	"error",
	"poll_count",
	"report",
	"created_at",
}

// RunReportRepository persists run reports for audit.
type RunReportRepository struct {
	sb         squirrel.StatementBuilderType
	createUUID func() uuid.UUID
	now        func() time.Time
}

// NewRunReportRepository creates a new RunReportRepository.
func NewRunReportRepository(br squirrel.BaseRunner) RunReportRepository {
	return RunReportRepository{
		sb:         squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).RunWith(br),
		createUUID: uuid.New,
		now:        time.Now,
	}
}

// SaveRunReport inserts one run report. The full report is stored as jsonb
// next to the indexed columns used for querying.
func (rr RunReportRepository) SaveRunReport(ctx context.Context, report domain.RunReport) error {
	spanCtx, span := telemetry.Start(ctx)
	defer span.End()

	reportJSON, err := json.Marshal(report)
	if telemetry.RecordErrorAndStatus(span, err) {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	_, err = rr.sb.Insert("run_reports").
		Columns(
			runReportFields...,
		).
		Values(
			rr.createUUID(),
			report.Job.JobID,
			report.Job.JobType,
			report.Job.JobName,
			report.Job.FinalStatus,
			report.OK,
			nullIfEmpty(report.Error),
			report.Job.PollCount,
			reportJSON,
			rr.now(),
		).
		ExecContext(spanCtx)

	if telemetry.RecordErrorAndStatus(span, err) {
		return fmt.Errorf("failed to insert run report: %w", err)
	}

	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// NullRunReportStore drops run reports. It stands in when the audit store is disabled.
type NullRunReportStore struct{}

// SaveRunReport discards the report.
func (NullRunReportStore) SaveRunReport(context.Context, domain.RunReport) error {
	return nil
}
