// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package tools

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/uipath-mcp/config"
	"axonflow/uipath-mcp/shared/logger"
	"axonflow/uipath-mcp/uipath"
)

func testLogger() *logger.Logger {
	log := logger.New("test")
	log.SetOutput(io.Discard)
	return log
}

func testDeps(server *httptest.Server) *Deps {
	st := config.Defaults()
	st.AuthMode = config.AuthModePAT
	st.PAT = "test-token"
	st.TenantName = "Default"
	st.BaseURL = server.URL
	st.RetryMinWait = time.Millisecond
	st.RetryMaxWait = 5 * time.Millisecond

	log := testLogger()
	auth := uipath.NewAuthProvider(st, server.Client(), log)
	return &Deps{
		Client:   uipath.NewClient(st, auth, server.Client(), log),
		Settings: st,
		Log:      log,
	}
}

func callReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultPayload decodes the JSON text payload every handler returns
func resultPayload(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool result should be text content")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func writeEnvelope(w http.ResponseWriter, count int, items ...map[string]interface{}) {
	value := make([]interface{}, len(items))
	for i, item := range items {
		value[i] = item
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"@odata.count": count,
		"value":        value,
	})
}

func TestListJobs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/odata/Jobs", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("$top"))
		assert.Contains(t, r.URL.Query().Get("$filter"), "JobState'Running'")

		writeEnvelope(w, 7,
			map[string]interface{}{"Id": 1, "State": "Running", "ReleaseName": "Invoices"},
			map[string]interface{}{"Id": 2, "State": "Running", "ReleaseName": "Payroll"},
		)
	}))
	defer server.Close()

	d := testDeps(server)
	res, err := d.listJobs(context.Background(), callReq(map[string]interface{}{
		"state": "Running",
		"top":   float64(2),
	}))
	require.NoError(t, err)

	payload := resultPayload(t, res)
	assert.Equal(t, float64(7), payload["total_count"])
	jobs, ok := payload["jobs"].([]interface{})
	require.True(t, ok)
	require.Len(t, jobs, 2)
}

func TestHandlerErrorBecomesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid filter","errorCode":1001}`))
	}))
	defer server.Close()

	d := testDeps(server)
	res, err := d.listJobs(context.Background(), callReq(nil))

	// Failures travel in the payload, never as a protocol fault
	require.NoError(t, err)
	payload := resultPayload(t, res)
	assert.Contains(t, payload["error"], "invalid filter")
}

func TestValidationFailureShortCircuits(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	d := testDeps(server)
	res, err := d.getJob(context.Background(), callReq(nil))
	require.NoError(t, err)

	payload := resultPayload(t, res)
	assert.Contains(t, payload["error"], "job_id")
	assert.False(t, called, "no API call should be made for invalid arguments")
}

func TestGetFolderStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("$top"))
		assert.Equal(t, "42", r.Header.Get("X-UIPATH-OrganizationUnitId"))

		count := 0
		switch {
		case r.URL.Path == "/odata/QueueItems":
			count = 12
		case r.URL.Query().Get("$filter") == "":
			count = 30
		case r.URL.Query().Get("$filter") == jobStateFilter("Running"):
			count = 4
		case r.URL.Query().Get("$filter") == jobStateFilter("Faulted"):
			count = 3
		}
		writeEnvelope(w, count)
	}))
	defer server.Close()

	d := testDeps(server)
	res, err := d.getFolderStats(context.Background(), callReq(map[string]interface{}{
		"folder_id": float64(42),
	}))
	require.NoError(t, err)

	payload := resultPayload(t, res)
	assert.Equal(t, float64(30), payload["total_jobs"])
	assert.Equal(t, float64(4), payload["running_jobs"])
	assert.Equal(t, float64(3), payload["faulted_jobs"])
	assert.Equal(t, float64(12), payload["total_queue_items"])
}

func TestCreateWebhookBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/odata/Webhooks", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ci-hook", body["Name"])
		assert.Equal(t, false, body["SubscribeToAllEvents"])
		events, ok := body["Events"].([]interface{})
		require.True(t, ok)
		require.Len(t, events, 1)
		assert.Equal(t, map[string]interface{}{"EventType": "job.faulted"}, events[0])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"Id": 9, "Name": "ci-hook"})
	}))
	defer server.Close()

	d := testDeps(server)
	res, err := d.createWebhook(context.Background(), callReq(map[string]interface{}{
		"name":   "ci-hook",
		"url":    "https://example.com/hook",
		"events": []interface{}{"job.faulted"},
	}))
	require.NoError(t, err)

	payload := resultPayload(t, res)
	assert.Contains(t, payload["message"], "ci-hook")
}

func TestSetScheduleEnabledAction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/odata/ProcessSchedules/UiPath.Server.Configuration.OData.SetEnabled", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["enabled"])
		assert.Equal(t, []interface{}{float64(3), float64(4)}, body["scheduleIds"])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := testDeps(server)
	res, err := d.setScheduleEnabled(context.Background(), callReq(map[string]interface{}{
		"schedule_ids": []interface{}{float64(3), float64(4)},
		"enabled":      true,
	}))
	require.NoError(t, err)

	payload := resultPayload(t, res)
	assert.Contains(t, payload["message"], "enabled")
}

func TestRobotLogFilter(t *testing.T) {
	filter := robotLogFilter("Invoices", "Bot01", "Error", "2024-01-01T00:00:00Z", "")
	assert.Equal(t,
		"ProcessName eq 'Invoices' and RobotName eq 'Bot01' and Level eq 'Error' and TimeStamp ge datetime'2024-01-01T00:00:00'",
		filter)

	assert.Empty(t, robotLogFilter("", "", "", "", ""))
}

func TestAuditLogFilter(t *testing.T) {
	filter := auditLogFilter("admin", "Jobs", "", "", "2024-06-01T00:00:00Z")
	assert.Equal(t,
		"UserName eq 'admin' and Component eq 'Jobs' and ExecutionTime le datetime'2024-06-01T00:00:00'",
		filter)
}

func TestClampTop(t *testing.T) {
	assert.Equal(t, 50, clampTop(0, 50, 1000))
	assert.Equal(t, 50, clampTop(-1, 50, 1000))
	assert.Equal(t, 1000, clampTop(5000, 50, 1000))
	assert.Equal(t, 200, clampTop(200, 50, 1000))
}

func TestSessionState(t *testing.T) {
	assert.Equal(t, "Available", sessionState("Available"))
	assert.Equal(t, "Busy", sessionState(float64(1)))
	assert.Equal(t, "Available", sessionState(float64(2)))
	assert.Equal(t, "Unknown", sessionState(nil))
}

func TestTopCounts(t *testing.T) {
	out := topCounts(map[string]int{"A": 3, "B": 7, "C": 1}, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "B", out[0]["type"])
	assert.Equal(t, 7, out[0]["count"])
	assert.Equal(t, "A", out[1]["type"])
}

func TestReadPackageArchive(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"Invoices.nuspec":  "<package><id>Invoices</id></package>",
		"Main.xaml":        "<Activity>main</Activity>",
		"lib/Helper.xaml":  "<Activity>helper</Activity>",
		"project.json":     "{}",
		"bin/Invoices.dll": "binary",
	}
	for name, content := range files {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	manifest, workflows, err := readPackageArchive(buf.Bytes())
	require.NoError(t, err)
	assert.Contains(t, manifest, "<id>Invoices</id>")
	require.Len(t, workflows, 2)
	for _, wf := range workflows {
		assert.Contains(t, wf["source"], "<Activity>")
	}
}

func TestReadPackageArchiveRejectsGarbage(t *testing.T) {
	_, _, err := readPackageArchive([]byte("not a zip"))
	require.Error(t, err)
}
