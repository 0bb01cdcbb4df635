package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewVaultProvider_Validation(t *testing.T) {
	testCases := map[string]struct {
		server     string
		token      string
		mountPath  string
		secretPath string
		expected   string
	}{
		"missing server":      {"", "tok", "secret", "epm-copilot", "server is required"},
		"missing token":       {"http://localhost:8200", "", "secret", "epm-copilot", "token is required"},
		"missing mount path":  {"http://localhost:8200", "tok", "", "epm-copilot", "mountPath is required"},
		"missing secret path": {"http://localhost:8200", "tok", "secret", "", "secretPath is required"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := NewVaultProvider(tc.server, tc.token, tc.mountPath, tc.secretPath)
			require.ErrorContains(t, err, tc.expected)
		})
	}
}

func TestNewVaultProvider_Success(t *testing.T) {
	vp, err := NewVaultProvider("http://localhost:8200", "tok", "secret", "epm-copilot")
	require.NoError(t, err)
	require.NotNil(t, vp.client)
	require.Equal(t, "secret", vp.mountPath)
	require.Equal(t, "epm-copilot", vp.secretPath)
}

func TestInitVaultProvider_EnvOnlyWhenUnconfigured(t *testing.T) {
	ctx, err := InitVaultProvider{}.Initialize(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ctx)
}

func TestInitVaultProvider_RequiresTokenWhenAddressSet(t *testing.T) {
	_, err := InitVaultProvider{Server: "http://localhost:8200"}.Initialize(context.Background())
	require.ErrorContains(t, err, "token is required")
}
