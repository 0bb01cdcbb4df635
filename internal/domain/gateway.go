package domain

import "context"

// Gateway error kinds. 404 is interpreted specially only inside dual-base resolution.
const (
	CallError_Network = "NETWORK_ERROR"
	CallError_Http    = "HTTP_ERROR"
	// InteropError_InvalidOperation rejects path-unsafe operation tokens before any call.
	InteropError_InvalidOperation = "INVALID_OPERATION"
)

// Dual-base tags recorded on a successful resolution.
const (
	BaseUsed_ServiceRoot     = "service_root"
	BaseUsed_EpmCloudContext = "epmcloud_context"
)

// CallResult is the uniform outcome of one outbound call. Gateway failures are
// values, never raised errors, so callers branch on OK without error handling.
type CallResult struct {
	OK         bool           `json:"ok"`
	StatusCode int            `json:"status_code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Message    string         `json:"message,omitempty"`
	Response   map[string]any `json:"response,omitempty"`
	URL        string         `json:"url,omitempty"`
	// BaseUsed tags which candidate base satisfied a dual-base call.
	BaseUsed string `json:"base_used,omitempty"`
	// Attempts holds both attempts when every dual-base candidate failed.
	Attempts []CallResult `json:"attempts,omitempty"`
}

// PlanningGateway issues calls against the planning REST surface. Response
// payloads are redacted before they leave the gateway.
type PlanningGateway interface {
	// Call performs one request against the configured base URL.
	Call(ctx context.Context, method, path string, params map[string]string, body any) CallResult

	// GetDualBase performs a GET against the canonical base, retrying against the
	// service-context base only when the first attempt fails with a 404.
	GetDualBase(ctx context.Context, interopPath string, params map[string]string) CallResult
}

// TokenSource supplies a bearer token, issuing a fresh one when the cached
// token is absent or inside the expiry safety margin.
type TokenSource interface {
	Acquire(ctx context.Context) (string, error)
}
