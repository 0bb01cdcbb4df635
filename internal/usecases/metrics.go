package usecases

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter           = otel.Meter("usecases")
	ToolInvocations metric.Int64Counter
	JobRunsTotal    metric.Int64Counter
)

func init() {
	var err error
	// Tool calls dispatched by the orchestrator, by name and outcome
	ToolInvocations, err = meter.Int64Counter(
		"tool_invocations_total",
		metric.WithDescription("Total tool invocations dispatched by the orchestrator"),
	)
	if err != nil {
		panic(err)
	}

	JobRunsTotal, err = meter.Int64Counter(
		"planning_job_runs_total",
		metric.WithDescription("Total submit-and-wait planning job runs"),
	)
	if err != nil {
		panic(err)
	}
}

// RecordToolInvocation records one orchestrator tool call.
func RecordToolInvocation(ctx context.Context, toolName string, ok bool) {
	ToolInvocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", toolName),
		attribute.Bool("ok", ok),
	))
}

// RecordJobRun records the terminal outcome of one planning job run.
func RecordJobRun(ctx context.Context, finalStatus string) {
	JobRunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("final_status", finalStatus),
	))
}
