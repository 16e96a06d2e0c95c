// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package uipath

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/uipath-mcp/config"
)

// stubAuth is a deterministic AuthProvider for client tests
type stubAuth struct {
	token       string
	invalidated int
}

func (s *stubAuth) Token(context.Context) (string, error) { return s.token, nil }
func (s *stubAuth) BaseHeaders() map[string]string        { return nil }
func (s *stubAuth) Invalidate()                           { s.invalidated++ }
func (s *stubAuth) Type() string                          { return "stub" }

func testSettings(serverURL string) *config.Settings {
	st := config.Defaults()
	st.AuthMode = config.AuthModePAT
	st.PAT = "test-token"
	st.TenantName = "Default"
	st.BaseURL = serverURL
	st.RetryMinWait = time.Millisecond
	st.RetryMaxWait = 5 * time.Millisecond
	return st
}

func newTestClient(server *httptest.Server) *Client {
	st := testSettings(server.URL)
	return NewClient(st, NewAuthProvider(st, server.Client(), testLogger()), server.Client(), testLogger())
}

func envelope(items ...Document) map[string]interface{} {
	value := make([]interface{}, len(items))
	for i, item := range items {
		value[i] = item
	}
	return map[string]interface{}{
		"@odata.count": len(items),
		"value":        value,
	}
}

func TestGetCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/odata/Jobs", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "Default", r.Header.Get("X-UIPATH-TenantName"))
		assert.Equal(t, "uipath-mcp-server/1.0.0", r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "5", r.URL.Query().Get("$top"))

		_ = json.NewEncoder(w).Encode(envelope(
			Document{"Id": float64(1), "State": "Running"},
			Document{"Id": float64(2), "State": "Successful"},
		))
	}))
	defer server.Close()

	client := newTestClient(server)
	doc, err := client.Get(context.Background(), "Jobs", NewODataParams().Top(5).Build(), Scope{})
	require.NoError(t, err)

	items := Items(doc)
	require.Len(t, items, 2)
	assert.Equal(t, "Running", items[0]["State"])

	count, ok := TotalCount(doc)
	require.True(t, ok)
	assert.Equal(t, int64(2), count)
}

func TestNotFoundIsNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.GetByID(context.Background(), "Jobs", 999, nil, Scope{})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 1, attempts)
}

func TestRateLimitRetriedWithRetryAfter(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(envelope(Document{"Id": float64(1)}))
	}))
	defer server.Close()

	client := newTestClient(server)
	doc, err := client.Get(context.Background(), "Queues", nil, Scope{})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Len(t, Items(doc), 1)
}

func TestRetryExhaustedOn503(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.Get(context.Background(), "Robots", nil, Scope{})
	require.Error(t, err)
	assert.True(t, IsRetryExhausted(err))
	assert.Equal(t, 3, attempts)

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
}

func TestUnauthorizedInvalidatesAndRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(envelope())
	}))
	defer server.Close()

	st := testSettings(server.URL)
	auth := &stubAuth{token: "refreshed"}
	client := NewClient(st, auth, server.Client(), testLogger())

	_, err := client.Get(context.Background(), "Assets", nil, Scope{})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, auth.invalidated)
}

func TestFolderHeaderPrecedence(t *testing.T) {
	var gotID, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-UIPATH-OrganizationUnitId")
		gotPath = r.Header.Get("X-UIPATH-FolderPath-Encoded")
		_ = json.NewEncoder(w).Encode(envelope())
	}))
	defer server.Close()

	client := newTestClient(server)

	// Explicit ID wins even when a path is also given
	_, err := client.Get(context.Background(), "Jobs", nil, Scope{FolderID: 42, FolderPath: "Finance/AP Team"})
	require.NoError(t, err)
	assert.Equal(t, "42", gotID)
	assert.Empty(t, gotPath)

	// Path-only scope sends the encoded header
	_, err = client.Get(context.Background(), "Jobs", nil, Scope{FolderPath: "Finance/AP Team"})
	require.NoError(t, err)
	assert.Empty(t, gotID)
	assert.Equal(t, "Finance%2FAP%20Team", gotPath)

	// No scope at all sends neither header
	_, err = client.Get(context.Background(), "Jobs", nil, Scope{})
	require.NoError(t, err)
	assert.Empty(t, gotID)
	assert.Empty(t, gotPath)
}

func TestConfiguredDefaultFolderScope(t *testing.T) {
	var gotID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-UIPATH-OrganizationUnitId")
		_ = json.NewEncoder(w).Encode(envelope())
	}))
	defer server.Close()

	st := testSettings(server.URL)
	st.FolderID = 7
	client := NewClient(st, NewAuthProvider(st, server.Client(), testLogger()), server.Client(), testLogger())

	_, err := client.Get(context.Background(), "Jobs", nil, Scope{})
	require.NoError(t, err)
	assert.Equal(t, "7", gotID)
}

func TestPostItemActionURL(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server)
	doc, err := client.PostItemAction(context.Background(), "Jobs", 123, "StopJob",
		map[string]string{"strategy": "SoftStop"}, Scope{})
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/odata/Jobs(123)/UiPath.Server.Configuration.OData.StopJob", gotPath)
	assert.Equal(t, "SoftStop", gotBody["strategy"])
}

func TestDeleteNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/odata/Assets(5)", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server)
	require.NoError(t, client.Delete(context.Background(), "Assets", 5, Scope{}))
}

func TestErrorBodyParsing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Queue already exists","errorCode":1001}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.Post(context.Background(), "QueueDefinitions", map[string]string{"Name": "Q"}, Scope{})
	require.Error(t, err)

	var oe *OrchestratorError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, http.StatusBadRequest, oe.StatusCode)
	assert.Equal(t, "Queue already exists", oe.Message)
	assert.Equal(t, "1001", oe.ErrorCode)
}

func TestAPIGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Stats/Sessions", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("days"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"Available": float64(3)})
	}))
	defer server.Close()

	client := newTestClient(server)
	doc, err := client.APIGet(context.Background(), "api/Stats/Sessions", map[string]string{"days": "1"})
	require.NoError(t, err)
	assert.Equal(t, float64(3), doc["Available"])
}

func TestEncodeFolderPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Shared", "Shared"},
		{"Finance/AP Team", "Finance%2FAP%20Team"},
		{"a+b", "a%2Bb"},
	}
	for _, tt := range tests {
		if got := encodeFolderPath(tt.in); got != tt.want {
			t.Errorf("encodeFolderPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
