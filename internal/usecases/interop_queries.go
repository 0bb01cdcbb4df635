package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/cleitonmarx/epm-copilot/internal/telemetry"
	"github.com/cleitonmarx/symbiont/depend"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// JobDefinition is the compacted shape of one remote job definition.
type JobDefinition struct {
	JobType     string `json:"jobType"`
	JobName     string `json:"jobName"`
	Description string `json:"description,omitempty"`
}

// InteropQueries exposes the read-only migration/maintenance surface of the
// platform. Every query resolves the endpoint topology through dual-base lookup.
type InteropQueries interface {
	ListFiles(ctx context.Context) domain.CallResult
	ListBackups(ctx context.Context) domain.CallResult
	DailyMaintenanceStartTime(ctx context.Context) domain.CallResult
	OperationStatus(ctx context.Context, operation, jobID string) domain.CallResult
	DiscoverVersions(ctx context.Context) domain.CallResult
	ListJobDefinitions(ctx context.Context) ([]JobDefinition, domain.CallResult)
}

// InteropQueriesImpl is the implementation of the InteropQueries use case.
type InteropQueriesImpl struct {
	gateway     domain.PlanningGateway
	application string
	apiVersion  string
}

// NewInteropQueriesImpl creates a new instance of InteropQueriesImpl.
func NewInteropQueriesImpl(gateway domain.PlanningGateway, application, apiVersion string) InteropQueriesImpl {
	return InteropQueriesImpl{
		gateway:     gateway,
		application: application,
		apiVersion:  apiVersion,
	}
}

// ListFiles lists the migration repository contents.
func (q InteropQueriesImpl) ListFiles(ctx context.Context) domain.CallResult {
	spanCtx, span := telemetry.Start(ctx)
	defer span.End()
	return q.gateway.GetDualBase(spanCtx, "/interop/rest/v2/files/list", nil)
}

// ListBackups lists the available infrastructure backups.
func (q InteropQueriesImpl) ListBackups(ctx context.Context) domain.CallResult {
	spanCtx, span := telemetry.Start(ctx)
	defer span.End()
	return q.gateway.GetDualBase(spanCtx, "/interop/rest/v2/backups/list", nil)
}

// DailyMaintenanceStartTime reports the configured maintenance window start.
func (q InteropQueriesImpl) DailyMaintenanceStartTime(ctx context.Context) domain.CallResult {
	spanCtx, span := telemetry.Start(ctx)
	defer span.End()
	return q.gateway.GetDualBase(spanCtx, "/interop/rest/v2/maintenance/getdailymaintenancestarttime", nil)
}

// OperationStatus checks one async interop operation. The operation name is
// interpolated into the path, so it must be a simple token.
func (q InteropQueriesImpl) OperationStatus(ctx context.Context, operation, jobID string) domain.CallResult {
	spanCtx, span := telemetry.Start(ctx,
		trace.WithAttributes(attribute.String("interop.operation", operation)),
	)
	defer span.End()

	op := strings.ToLower(strings.TrimSpace(operation))
	if op == "" || strings.Contains(op, "/") || strings.Contains(op, "..") {
		return domain.CallResult{
			Error:   domain.InteropError_InvalidOperation,
			Message: "operation must be a simple token like 'download'",
		}
	}
	return q.gateway.GetDualBase(spanCtx, fmt.Sprintf("/interop/rest/v2/status/%s/%s", op, jobID), nil)
}

// DiscoverVersions lists the REST API versions the planning service exposes.
func (q InteropQueriesImpl) DiscoverVersions(ctx context.Context) domain.CallResult {
	spanCtx, span := telemetry.Start(ctx)
	defer span.End()
	return q.gateway.Call(spanCtx, "GET", "/HyperionPlanning/rest/", nil, nil)
}

// ListJobDefinitions lists the jobs the configured application can run,
// compacted to type/name/description under tolerated field aliases.
func (q InteropQueriesImpl) ListJobDefinitions(ctx context.Context) ([]JobDefinition, domain.CallResult) {
	spanCtx, span := telemetry.Start(ctx)
	defer span.End()

	path := fmt.Sprintf("/HyperionPlanning/rest/%s/applications/%s/jobdefinitions", q.apiVersion, q.application)
	call := q.gateway.Call(spanCtx, "GET", path, nil, nil)
	if !call.OK {
		return nil, call
	}

	items := firstList(call.Response, "items", "jobDefinitions")
	defs := make([]JobDefinition, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		defs = append(defs, JobDefinition{
			JobType:     firstString(entry, "jobType", "type"),
			JobName:     firstString(entry, "jobName", "name"),
			Description: firstString(entry, "description"),
		})
	}
	return defs, call
}

// InitInteropQueries is the initializer for the InteropQueries use case.
type InitInteropQueries struct {
	Gateway     domain.PlanningGateway `resolve:""`
	Application string                 `config:"EPM_APPLICATION"`
	APIVersion  string                 `config:"EPM_API_VERSION" default:"v3"`
}

// Initialize registers the InteropQueries use case in the dependency container.
func (i InitInteropQueries) Initialize(ctx context.Context) (context.Context, error) {
	depend.Register[InteropQueries](NewInteropQueriesImpl(i.Gateway, i.Application, i.APIVersion))
	return ctx, nil
}
