// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package uipath

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/uipath-mcp/config"
	"axonflow/uipath-mcp/shared/logger"
)

func testLogger() *logger.Logger {
	log := logger.New("test")
	log.SetOutput(io.Discard)
	return log
}

func TestCloudAuthTokenRequest(t *testing.T) {
	var gotPath string
	var gotForm map[string]string
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"grant_type":    r.PostFormValue("grant_type"),
			"client_id":     r.PostFormValue("client_id"),
			"client_secret": r.PostFormValue("client_secret"),
			"scope":         r.PostFormValue("scope"),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "cloud-token",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	st := config.Defaults()
	st.AuthMode = config.AuthModeCloud
	st.CloudBaseURL = server.URL
	st.OrgName = "acme"
	st.TenantName = "Default"
	st.ClientID = "cid"
	st.ClientSecret = "csecret"

	auth := &CloudAuth{settings: st, httpClient: server.Client(), cache: NewTokenCache(), log: testLogger()}

	token, err := auth.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cloud-token", token)
	assert.Equal(t, "/acme/identity_/connect/token", gotPath)
	assert.Equal(t, map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     "cid",
		"client_secret": "csecret",
		"scope":         "OR.Default",
	}, gotForm)

	// Second call is served from the cache
	token, err = auth.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cloud-token", token)
	assert.Equal(t, 1, calls)
}

func TestCloudAuthRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer server.Close()

	st := config.Defaults()
	st.AuthMode = config.AuthModeCloud
	st.CloudBaseURL = server.URL
	st.OrgName = "acme"

	auth := &CloudAuth{settings: st, httpClient: server.Client(), cache: NewTokenCache(), log: testLogger()}

	_, err := auth.Token(context.Background())
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadRequest, authErr.StatusCode)
	assert.Contains(t, authErr.Detail, "invalid_client")
}

func TestOnPremAuthSuccess(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Account/Authenticate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"result":  "onprem-token",
		})
	}))
	defer server.Close()

	st := config.Defaults()
	st.AuthMode = config.AuthModeOnPrem
	st.BaseURL = server.URL
	st.TenantName = "Default"
	st.Username = "admin"
	st.Password = "hunter2"

	auth := &OnPremAuth{settings: st, httpClient: server.Client(), cache: NewTokenCache(), log: testLogger()}

	token, err := auth.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "onprem-token", token)
	assert.Equal(t, map[string]string{
		"TenancyName":            "Default",
		"UsernameOrEmailAddress": "admin",
		"Password":               "hunter2",
	}, gotBody)
}

func TestOnPremAuthSuccessFlagFalse(t *testing.T) {
	// HTTP 200 with success=false is still a failed authentication
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"result":  nil,
			"error":   map[string]string{"message": "Invalid credentials"},
		})
	}))
	defer server.Close()

	st := config.Defaults()
	st.AuthMode = config.AuthModeOnPrem
	st.BaseURL = server.URL

	auth := &OnPremAuth{settings: st, httpClient: server.Client(), cache: NewTokenCache(), log: testLogger()}

	_, err := auth.Token(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Detail, "Invalid credentials")
}

func TestPATAuthPassthrough(t *testing.T) {
	st := config.Defaults()
	st.AuthMode = config.AuthModePAT
	st.PAT = "my-personal-token"
	st.TenantName = "Default"

	auth := NewAuthProvider(st, http.DefaultClient, testLogger())
	assert.Equal(t, "pat", auth.Type())

	token, err := auth.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "my-personal-token", token)

	// Invalidate is a no-op: the token never expires on our side
	auth.Invalidate()
	token, err = auth.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "my-personal-token", token)

	assert.Equal(t, map[string]string{"X-UIPATH-TenantName": "Default"}, auth.BaseHeaders())
}

func TestPATAuthEmptyToken(t *testing.T) {
	st := config.Defaults()
	st.AuthMode = config.AuthModePAT

	auth := NewAuthProvider(st, http.DefaultClient, testLogger())
	_, err := auth.Token(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestTokenLifetime(t *testing.T) {
	if got := tokenLifetime("opaque", 1800); got != 30*time.Minute {
		t.Errorf("tokenLifetime with expires_in = %v, want 30m", got)
	}
	// No expires_in and not a JWT: assume the cloud default
	if got := tokenLifetime("opaque", 0); got != time.Hour {
		t.Errorf("tokenLifetime fallback = %v, want 1h", got)
	}
}
