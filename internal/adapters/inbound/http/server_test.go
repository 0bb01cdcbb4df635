package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/cleitonmarx/epm-copilot/internal/usecases"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrchestrator struct {
	executeFn func(ctx context.Context, conversation *domain.Conversation, userMessage string) (string, error)
}

func (f fakeOrchestrator) Execute(ctx context.Context, conversation *domain.Conversation, userMessage string) (string, error) {
	return f.executeFn(ctx, conversation, userMessage)
}

type fakeJobRunner struct {
	runFn  func(req usecases.RunJobRequest) domain.RunReport
	pollFn func(jobID string) (domain.JobRun, domain.CallResult)
}

func (f fakeJobRunner) Submit(context.Context, string, string, map[string]any) domain.JobSubmission {
	panic("not used")
}

func (f fakeJobRunner) PollOnce(_ context.Context, jobID string) (domain.JobRun, domain.CallResult) {
	return f.pollFn(jobID)
}

func (f fakeJobRunner) Watch(context.Context, string, time.Duration, time.Duration) domain.WatchResult {
	panic("not used")
}

func (f fakeJobRunner) FetchDetails(context.Context, string, int, int) ([]domain.DetailRecord, domain.CallResult) {
	panic("not used")
}

func (f fakeJobRunner) RunAndWait(_ context.Context, req usecases.RunJobRequest) domain.RunReport {
	return f.runFn(req)
}

type fakeInterop struct {
	result domain.CallResult
	opFn   func(operation, jobID string) domain.CallResult
	defs   []usecases.JobDefinition
}

func (f fakeInterop) ListFiles(context.Context) domain.CallResult   { return f.result }
func (f fakeInterop) ListBackups(context.Context) domain.CallResult { return f.result }
func (f fakeInterop) DailyMaintenanceStartTime(context.Context) domain.CallResult {
	return f.result
}
func (f fakeInterop) DiscoverVersions(context.Context) domain.CallResult { return f.result }
func (f fakeInterop) OperationStatus(_ context.Context, operation, jobID string) domain.CallResult {
	if f.opFn != nil {
		return f.opFn(operation, jobID)
	}
	return f.result
}
func (f fakeInterop) ListJobDefinitions(context.Context) ([]usecases.JobDefinition, domain.CallResult) {
	return f.defs, f.result
}

func newTestServer(t *testing.T, api *CopilotServer) *httptest.Server {
	t.Helper()
	api.Logger = log.New(io.Discard, "", 0)
	srv := httptest.NewServer(api.routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck
	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCopilotServer_Chat(t *testing.T) {
	api := &CopilotServer{
		Orchestrator: fakeOrchestrator{executeFn: func(_ context.Context, conversation *domain.Conversation, userMessage string) (string, error) {
			assert.Equal(t, "list the backups", userMessage)
			return "You have 5 backups.", nil
		}},
	}
	srv := newTestServer(t, api)

	resp := postJSON(t, srv.URL+"/api/chat", map[string]any{"message": "list the backups"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	assert.Equal(t, "You have 5 backups.", body["reply"])
	conversationID, err := uuid.Parse(body["conversation_id"].(string))
	require.NoError(t, err)

	// A follow-up with the returned id continues the same conversation.
	resp = postJSON(t, srv.URL+"/api/chat", map[string]any{
		"conversation_id": conversationID.String(),
		"message":         "and the files?",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, conversationID.String(), body["conversation_id"])
}

func TestCopilotServer_ChatErrors(t *testing.T) {
	tests := map[string]struct {
		payload    map[string]any
		executeFn  func(ctx context.Context, c *domain.Conversation, m string) (string, error)
		wantStatus int
		wantCode   string
	}{
		"empty-message": {
			payload:    map[string]any{"message": "  "},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		"unknown-conversation": {
			payload:    map[string]any{"conversation_id": uuid.NewString(), "message": "hi"},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		"cycle-limit": {
			payload: map[string]any{"message": "hi"},
			executeFn: func(context.Context, *domain.Conversation, string) (string, error) {
				return "", usecases.ErrToolCycleLimit
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "TOOL_CYCLE_LIMIT",
		},
		"provider-failure": {
			payload: map[string]any{"message": "hi"},
			executeFn: func(context.Context, *domain.Conversation, string) (string, error) {
				return "", errors.New("overloaded")
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   "ORCHESTRATION_FAILED",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			executeFn := tt.executeFn
			if executeFn == nil {
				executeFn = func(context.Context, *domain.Conversation, string) (string, error) {
					t.Fatal("orchestrator must not be called")
					return "", nil
				}
			}
			srv := newTestServer(t, &CopilotServer{Orchestrator: fakeOrchestrator{executeFn: executeFn}})

			resp := postJSON(t, srv.URL+"/api/chat", tt.payload)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			body := decodeBody(t, resp)
			assert.Equal(t, tt.wantCode, body["error"].(map[string]any)["code"])
		})
	}
}

func TestCopilotServer_RunJob(t *testing.T) {
	var gotReq usecases.RunJobRequest
	api := &CopilotServer{
		JobRunner: fakeJobRunner{runFn: func(req usecases.RunJobRequest) domain.RunReport {
			gotReq = req
			return domain.RunReport{
				OK:  true,
				Job: domain.JobOutcome{JobID: "42", FinalStatus: "SUCCEEDED", PollCount: 3},
			}
		}},
	}
	srv := newTestServer(t, api)

	resp := postJSON(t, srv.URL+"/api/jobs/run", map[string]any{
		"jobType": "REFRESH_CUBE",
		"jobName": "RefreshPlan1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "SUCCEEDED", body["job"].(map[string]any)["finalStatus"])

	// Defaults applied when the request omits tuning knobs.
	assert.Equal(t, 5*time.Second, gotReq.PollInterval)
	assert.Equal(t, 900*time.Second, gotReq.Timeout)
	assert.Equal(t, 200, gotReq.DetailsLimit)
}

func TestCopilotServer_RunJobStatusMapping(t *testing.T) {
	tests := map[string]struct {
		report     domain.RunReport
		wantStatus int
	}{
		"not-allowed": {
			report:     domain.RunReport{Error: domain.JobError_NotAllowed},
			wantStatus: http.StatusForbidden,
		},
		"timeout": {
			report:     domain.RunReport{Error: domain.JobError_Timeout},
			wantStatus: http.StatusGatewayTimeout,
		},
		"upstream-failure": {
			report:     domain.RunReport{Error: domain.CallError_Http},
			wantStatus: http.StatusBadGateway,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, &CopilotServer{
				JobRunner: fakeJobRunner{runFn: func(usecases.RunJobRequest) domain.RunReport { return tt.report }},
			})

			resp := postJSON(t, srv.URL+"/api/jobs/run", map[string]any{"jobType": "RULES", "jobName": "Rollup"})
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			resp.Body.Close() //nolint:errcheck
		})
	}
}

func TestCopilotServer_JobStatus(t *testing.T) {
	api := &CopilotServer{
		JobRunner: fakeJobRunner{pollFn: func(jobID string) (domain.JobRun, domain.CallResult) {
			assert.Equal(t, "42", jobID)
			return domain.JobRun{JobID: "42", Status: "RUNNING", PercentComplete: 70},
				domain.CallResult{OK: true, StatusCode: 200}
		}},
	}
	srv := newTestServer(t, api)

	resp, err := http.Get(srv.URL + "/api/jobs/42")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "RUNNING", body["status"])
}

func TestCopilotServer_InteropEndpoints(t *testing.T) {
	api := &CopilotServer{
		Interop: fakeInterop{
			result: domain.CallResult{OK: true, BaseUsed: domain.BaseUsed_ServiceRoot, Response: map[string]any{"items": []any{}}},
			defs:   []usecases.JobDefinition{{JobType: "RULES", JobName: "Rollup"}},
		},
	}
	srv := newTestServer(t, api)

	for _, path := range []string{"/api/files", "/api/backups", "/api/maintenance", "/api/status/download/42"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close() //nolint:errcheck
	}

	resp, err := http.Get(srv.URL + "/api/jobdefinitions")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["count"])
}

func TestCopilotServer_InvalidOperationToken(t *testing.T) {
	api := &CopilotServer{
		Interop: fakeInterop{opFn: func(operation, jobID string) domain.CallResult {
			return domain.CallResult{Error: domain.InteropError_InvalidOperation, Message: "operation must be a simple token like 'download'"}
		}},
	}
	srv := newTestServer(t, api)

	resp, err := http.Get(srv.URL + "/api/status/..%2Fetc/42")
	require.NoError(t, err)
	// Path traversal either fails routing or is rejected by token validation.
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusNotFound}, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
}

func TestCopilotServer_ClientKeyGate(t *testing.T) {
	api := &CopilotServer{
		ClientAPIKey: "secret",
		Interop:      fakeInterop{result: domain.CallResult{OK: true}},
	}
	srv := newTestServer(t, api)

	// Health stays open.
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck

	// API requests need the key.
	resp, err = http.Get(srv.URL + "/api/files")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "UNAUTHORIZED_CLIENT", body["error"].(map[string]any)["code"])

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/files", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close() //nolint:errcheck
}
