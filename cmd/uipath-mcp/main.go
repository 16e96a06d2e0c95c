// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package main is the entry point for the UiPath Orchestrator MCP server.
//
// The server exposes Orchestrator operations (jobs, queues, assets,
// robots, schedules, folders, webhooks, packages, audit logs) as MCP
// tools over stdio or streamable HTTP.
//
// Usage:
//
//	./uipath-mcp
//
// Environment Variables:
//
//	AUTH_MODE            - cloud, on_prem or pat
//	UIPATH_CLIENT_ID     - OAuth2 client ID (cloud)
//	UIPATH_CLIENT_SECRET - OAuth2 client secret (cloud)
//	UIPATH_ORG_NAME      - Automation Cloud organization name
//	UIPATH_TENANT_NAME   - Tenant name
//	UIPATH_BASE_URL      - Orchestrator base URL (on_prem, pat)
//	UIPATH_PAT           - Personal access token (pat)
//	MCP_TRANSPORT        - stdio (default) or streamable-http
package main

import (
	"fmt"
	"os"

	"axonflow/uipath-mcp/server"
)

func main() {
	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "uipath-mcp: %v\n", err)
		os.Exit(1)
	}
}
