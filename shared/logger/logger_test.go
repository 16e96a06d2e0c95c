// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := New("client")
	l.SetOutput(&buf)

	l.Info("req-1", "token acquired", map[string]interface{}{"expires_in": 3600})

	line := strings.TrimSpace(buf.String())
	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Level != INFO {
		t.Errorf("level = %q, want INFO", entry.Level)
	}
	if entry.Component != "client" {
		t.Errorf("component = %q, want client", entry.Component)
	}
	if entry.RequestID != "req-1" {
		t.Errorf("request_id = %q, want req-1", entry.RequestID)
	}
	if entry.Fields["expires_in"] != float64(3600) {
		t.Errorf("fields.expires_in = %v, want 3600", entry.Fields["expires_in"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New("client")
	l.SetOutput(&buf)
	l.SetLevel(WARN)

	l.Debug("", "dropped", nil)
	l.Info("", "dropped", nil)
	l.Warn("", "kept", nil)
	l.Error("", "kept", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	l := New("client")
	l.SetOutput(&buf)

	l.ErrorWithCode("req-2", "request failed", 503, nil, nil)

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Fields["status_code"] != float64(503) {
		t.Errorf("fields.status_code = %v, want 503", entry.Fields["status_code"])
	}
}
