// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cloudEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "cloud")
	t.Setenv("UIPATH_CLIENT_ID", "client-id")
	t.Setenv("UIPATH_CLIENT_SECRET", "client-secret")
	t.Setenv("UIPATH_ORG_NAME", "acme")
	t.Setenv("UIPATH_TENANT_NAME", "DefaultTenant")
}

func TestLoadCloudDefaults(t *testing.T) {
	cloudEnv(t)

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, AuthModeCloud, s.AuthMode)
	assert.Equal(t, 30*time.Second, s.HTTPTimeout)
	assert.Equal(t, 3, s.RetryMaxAttempts)
	assert.Equal(t, 100, s.DefaultPageSize)
	assert.Equal(t, TransportStdio, s.Transport)
	assert.Equal(t,
		"https://cloud.uipath.com/acme/DefaultTenant/orchestrator_",
		s.OrchestratorBaseURL())
	assert.Equal(t,
		"https://cloud.uipath.com/acme/identity_/connect/token",
		s.CloudTokenURL())
}

func TestLoadMissingCredentials(t *testing.T) {
	t.Setenv("AUTH_MODE", "cloud")
	t.Setenv("UIPATH_CLIENT_ID", "client-id")
	t.Setenv("UIPATH_CLIENT_SECRET", "")
	t.Setenv("UIPATH_ORG_NAME", "")
	t.Setenv("UIPATH_TENANT_NAME", "DefaultTenant")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UIPATH_CLIENT_SECRET")
	assert.Contains(t, err.Error(), "UIPATH_ORG_NAME")
}

func TestLoadOnPremURLs(t *testing.T) {
	t.Setenv("AUTH_MODE", "on_prem")
	t.Setenv("UIPATH_BASE_URL", "https://orchestrator.local/")
	t.Setenv("UIPATH_USERNAME", "admin")
	t.Setenv("UIPATH_PASSWORD", "secret")
	t.Setenv("UIPATH_TENANT_NAME", "Default")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://orchestrator.local", s.OrchestratorBaseURL())
	assert.Equal(t, "https://orchestrator.local/api/Account/Authenticate", s.OnPremAuthURL())
}

func TestEnvOverrides(t *testing.T) {
	cloudEnv(t)
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("HTTP_TIMEOUT", "45s")
	t.Setenv("RETRY_MIN_WAIT", "2")
	t.Setenv("UIPATH_FOLDER_ID", "1234")
	t.Setenv("READ_ONLY_MODE", "true")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, s.RetryMaxAttempts)
	assert.Equal(t, 45*time.Second, s.HTTPTimeout)
	assert.Equal(t, 2*time.Second, s.RetryMinWait, "bare seconds are accepted")
	assert.Equal(t, int64(1234), s.FolderID)
	assert.True(t, s.ReadOnlyMode)
}

func TestInvalidAuthMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "kerberos")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_MODE")
}

func TestInvalidRetryBounds(t *testing.T) {
	cloudEnv(t)
	t.Setenv("RETRY_MIN_WAIT", "60s")
	t.Setenv("RETRY_MAX_WAIT", "10s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RETRY_MAX_WAIT")
}

func TestYAMLFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uipath.yaml")
	content := []byte(`
auth_mode: pat
base_url: https://orchestrator.local
pat: token-123
tenant_name: Default
http_timeout: 10s
default_page_size: 25
read_only_mode: true
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("UIPATH_MCP_CONFIG", path)

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, AuthModePAT, s.AuthMode)
	assert.Equal(t, "token-123", s.PAT)
	assert.Equal(t, 10*time.Second, s.HTTPTimeout)
	assert.Equal(t, 25, s.DefaultPageSize)
	assert.True(t, s.ReadOnlyMode)
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uipath.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_page_size: 25\n"), 0o600))

	cloudEnv(t)
	t.Setenv("UIPATH_MCP_CONFIG", path)
	t.Setenv("DEFAULT_PAGE_SIZE", "200")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 200, s.DefaultPageSize)
}
