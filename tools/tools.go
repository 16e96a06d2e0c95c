// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package tools maps Orchestrator operations onto MCP tools. Each family
// of entities (jobs, queues, robots, ...) registers its tools against the
// shared authenticated client; every handler returns a JSON text payload,
// including on failure. A handler never surfaces a protocol-level fault.
package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"axonflow/uipath-mcp/config"
	"axonflow/uipath-mcp/shared/logger"
	"axonflow/uipath-mcp/uipath"
)

// Deps carries what every tool handler needs
type Deps struct {
	Client   *uipath.Client
	Settings *config.Settings
	Log      *logger.Logger
}

// Register adds all tool families to the MCP server. In read-only mode
// the write tools are not registered at all, so clients cannot discover
// them.
func Register(srv *server.MCPServer, d *Deps) {
	readOnly := d.Settings.ReadOnlyMode

	registerJobTools(srv, d, readOnly)
	registerQueueTools(srv, d, readOnly)
	registerAssetTools(srv, d, readOnly)
	registerRobotTools(srv, d)
	registerScheduleTools(srv, d, readOnly)
	registerFolderTools(srv, d)
	registerWebhookTools(srv, d, readOnly)
	registerAuditTools(srv, d)
	registerAnalyticsTools(srv, d)
	registerPackageTools(srv, d)
}

// jsonResult marshals v into the tool's text payload
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"error":"failed to encode result: %v"}`, err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// failResult converts an access-layer error into the tool's JSON error
// payload. The error is carried in the payload, not as a protocol fault.
func failResult(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(uipath.AsToolError(err)), nil
}

// failMsg builds an ad-hoc error payload for validation failures
func failMsg(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	payload, _ := json.Marshal(map[string]string{"error": fmt.Sprintf(format, args...)})
	return mcp.NewToolResultText(string(payload)), nil
}

// scopeArg extracts the optional folder_id parameter into a request scope
func scopeArg(req mcp.CallToolRequest) uipath.Scope {
	return uipath.Scope{FolderID: int64(req.GetInt("folder_id", 0))}
}

// int64SliceArg reads a JSON array argument of integers
func int64SliceArg(req mcp.CallToolRequest, key string) []int64 {
	raw, ok := req.GetArguments()[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			out = append(out, int64(f))
		}
	}
	return out
}

func stringSliceArg(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func objectArg(req mcp.CallToolRequest, key string) map[string]interface{} {
	m, _ := req.GetArguments()[key].(map[string]interface{})
	return m
}

func objectSliceArg(req mcp.CallToolRequest, key string) []map[string]interface{} {
	raw, ok := req.GetArguments()[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// trimISO strips a trailing Z so the value can be embedded in an OData
// datetime'...' literal
func trimISO(s string) string {
	return strings.TrimSuffix(s, "Z")
}

// clampTop bounds a caller-supplied page size
func clampTop(top, def, max int) int {
	if top <= 0 {
		return def
	}
	if top > max {
		return max
	}
	return top
}
