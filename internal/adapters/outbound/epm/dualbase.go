package epm

import (
	"context"
	"net/http"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
)

// epmCloudContext is the alternate context prefix some deployments serve the
// interop surface under.
const epmCloudContext = "/epmcloud"

// GetDualBase resolves an interop path against the two candidate bases.
// The canonical base is tried first; a 404 is the only signal that the
// topology is wrong rather than the call itself, so only a 404 triggers the
// context-prefixed retry. When both candidates fail, both attempts are
// returned for diagnostics.
func (g Gateway) GetDualBase(ctx context.Context, interopPath string, params map[string]string) domain.CallResult {
	first := g.do(ctx, http.MethodGet, g.baseURL+interopPath, params, nil)
	if first.OK {
		first.BaseUsed = domain.BaseUsed_ServiceRoot
		return first
	}

	if first.Error != domain.CallError_Http || first.StatusCode != http.StatusNotFound {
		return first
	}

	second := g.do(ctx, http.MethodGet, g.baseURL+epmCloudContext+interopPath, params, nil)
	if second.OK {
		second.BaseUsed = domain.BaseUsed_EpmCloudContext
		return second
	}

	return domain.CallResult{
		OK:       false,
		Error:    second.Error,
		Message:  second.Message,
		Attempts: []domain.CallResult{first, second},
	}
}
