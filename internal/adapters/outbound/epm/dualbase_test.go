package epm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dualBaseServer answers the canonical path with rootStatus and the /epmcloud
// variant with contextStatus, recording which paths were hit.
func dualBaseServer(t *testing.T, rootStatus, contextStatus int) (*httptest.Server, *[]string) {
	t.Helper()
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		status := rootStatus
		if strings.HasPrefix(r.URL.Path, "/epmcloud/") {
			status = contextStatus
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"path": r.URL.Path})
	}))
	return srv, &hits
}

func TestGetDualBase_CanonicalBaseWins(t *testing.T) {
	srv, hits := dualBaseServer(t, http.StatusOK, http.StatusOK)
	defer srv.Close()

	gw := newTestGateway(srv.URL, AuthMode_Basic, nil)
	res := gw.GetDualBase(context.Background(), "/interop/rest/v2/files/list", nil)

	require.True(t, res.OK)
	assert.Equal(t, domain.BaseUsed_ServiceRoot, res.BaseUsed)
	assert.Equal(t, []string{"/interop/rest/v2/files/list"}, *hits)
}

func TestGetDualBase_404FallsBackToContext(t *testing.T) {
	srv, hits := dualBaseServer(t, http.StatusNotFound, http.StatusOK)
	defer srv.Close()

	gw := newTestGateway(srv.URL, AuthMode_Basic, nil)
	res := gw.GetDualBase(context.Background(), "/interop/rest/v2/backups/list", nil)

	require.True(t, res.OK)
	assert.Equal(t, domain.BaseUsed_EpmCloudContext, res.BaseUsed)
	assert.Equal(t, []string{
		"/interop/rest/v2/backups/list",
		"/epmcloud/interop/rest/v2/backups/list",
	}, *hits)
}

func TestGetDualBase_Non404NeverRetries(t *testing.T) {
	srv, hits := dualBaseServer(t, http.StatusUnauthorized, http.StatusOK)
	defer srv.Close()

	gw := newTestGateway(srv.URL, AuthMode_Basic, nil)
	res := gw.GetDualBase(context.Background(), "/interop/rest/v2/files/list", nil)

	require.False(t, res.OK)
	assert.Equal(t, domain.CallError_Http, res.Error)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Len(t, *hits, 1)
	assert.Empty(t, res.Attempts)
}

func TestGetDualBase_BothFailReturnsAttempts(t *testing.T) {
	srv, hits := dualBaseServer(t, http.StatusNotFound, http.StatusInternalServerError)
	defer srv.Close()

	gw := newTestGateway(srv.URL, AuthMode_Basic, nil)
	res := gw.GetDualBase(context.Background(), "/interop/rest/v2/files/list", nil)

	require.False(t, res.OK)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, http.StatusNotFound, res.Attempts[0].StatusCode)
	assert.Equal(t, http.StatusInternalServerError, res.Attempts[1].StatusCode)
	assert.Len(t, *hits, 2)
}

func TestGetDualBase_NetworkErrorNeverRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	gw := newTestGateway(srv.URL, AuthMode_Basic, nil)
	res := gw.GetDualBase(context.Background(), "/interop/rest/v2/files/list", nil)

	require.False(t, res.OK)
	assert.Equal(t, domain.CallError_Network, res.Error)
	assert.Empty(t, res.Attempts)
}
