// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"axonflow/uipath-mcp/models"
	"axonflow/uipath-mcp/uipath"
)

func registerAuditTools(srv *server.MCPServer, d *Deps) {
	d.addTool(srv, mcp.NewTool("list_audit_logs",
		mcp.WithDescription("List tenant audit log entries with optional user, component, action and time filters."),
		mcp.WithString("user_name", mcp.Description("Filter by the acting user name")),
		mcp.WithString("component", mcp.Description("Filter by component, e.g. Jobs, Assets")),
		mcp.WithString("action", mcp.Description("Filter by audited action, e.g. Create, Delete")),
		mcp.WithString("since", mcp.Description("ISO 8601 lower bound on ExecutionTime")),
		mcp.WithString("until", mcp.Description("ISO 8601 upper bound on ExecutionTime")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
		mcp.WithNumber("skip", mcp.Description("Number of entries to skip")),
	), d.listAuditLogs)

	d.addTool(srv, mcp.NewTool("get_audit_log_detail",
		mcp.WithDescription("Get a single audit log entry by ID, including its serialized entity payload."),
		mcp.WithNumber("audit_log_id", mcp.Required(), mcp.Description("Audit log entry ID")),
	), d.getAuditLogDetail)

	d.addTool(srv, mcp.NewTool("list_robot_logs",
		mcp.WithDescription("List robot execution log lines with optional process, robot, level and time filters."),
		mcp.WithString("process_name", mcp.Description("Filter by process name")),
		mcp.WithString("robot_name", mcp.Description("Filter by robot name")),
		mcp.WithString("level", mcp.Description("Filter by log level: Trace, Info, Warn, Error, Fatal")),
		mcp.WithString("since", mcp.Description("ISO 8601 lower bound on TimeStamp")),
		mcp.WithString("until", mcp.Description("ISO 8601 upper bound on TimeStamp")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
	), d.listRobotLogs)

	d.addTool(srv, mcp.NewTool("export_audit_logs",
		mcp.WithDescription("Export audit log entries across pages, newest first, up to max_records."),
		mcp.WithString("user_name", mcp.Description("Filter by the acting user name")),
		mcp.WithString("component", mcp.Description("Filter by component")),
		mcp.WithString("since", mcp.Description("ISO 8601 lower bound on ExecutionTime")),
		mcp.WithNumber("max_records", mcp.Description("Hard cap on exported entries (default 1000)")),
	), d.exportAuditLogs)
}

func auditLogFilter(userName, component, action, since, until string) string {
	var parts []string
	if userName != "" {
		parts = append(parts, fmt.Sprintf("UserName eq '%s'", userName))
	}
	if component != "" {
		parts = append(parts, fmt.Sprintf("Component eq '%s'", component))
	}
	if action != "" {
		parts = append(parts, fmt.Sprintf("Action eq '%s'", action))
	}
	if since != "" {
		parts = append(parts, fmt.Sprintf("ExecutionTime ge datetime'%s'", trimISO(since)))
	}
	if until != "" {
		parts = append(parts, fmt.Sprintf("ExecutionTime le datetime'%s'", trimISO(until)))
	}
	return strings.Join(parts, " and ")
}

func (d *Deps) listAuditLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 100), 100, 1000)
	params := uipath.NewODataParams().
		Top(top).
		Count().
		OrderBy("ExecutionTime", "desc")
	if skip := req.GetInt("skip", 0); skip > 0 {
		params.Skip(skip)
	}
	filter := auditLogFilter(
		req.GetString("user_name", ""),
		req.GetString("component", ""),
		req.GetString("action", ""),
		req.GetString("since", ""),
		req.GetString("until", ""),
	)
	if filter != "" {
		params.Filter(filter)
	}

	doc, err := d.Client.Get(ctx, "AuditLogs", params.Build(), uipath.Scope{})
	if err != nil {
		return failResult(err)
	}
	logs, err := models.DecodeSlice[models.AuditLog](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	total, _ := uipath.TotalCount(doc)
	return jsonResult(map[string]interface{}{
		"total_count": total,
		"audit_logs":  logs,
	})
}

func (d *Deps) getAuditLogDetail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	auditLogID, err := req.RequireInt("audit_log_id")
	if err != nil {
		return failMsg("audit_log_id is required")
	}
	doc, err := d.Client.GetByID(ctx, "AuditLogs", auditLogID, nil, uipath.Scope{})
	if err != nil {
		return failResult(err)
	}
	return jsonResult(doc)
}

func (d *Deps) listRobotLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 100), 100, 1000)
	params := uipath.NewODataParams().
		Top(top).
		Count().
		OrderBy("TimeStamp", "desc")
	filter := robotLogFilter(
		req.GetString("process_name", ""),
		req.GetString("robot_name", ""),
		req.GetString("level", ""),
		req.GetString("since", ""),
		req.GetString("until", ""),
	)
	if filter != "" {
		params.Filter(filter)
	}

	doc, err := d.Client.Get(ctx, "RobotLogs", params.Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	logs, err := models.DecodeSlice[models.RobotLog](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	total, _ := uipath.TotalCount(doc)
	return jsonResult(map[string]interface{}{
		"total_count": total,
		"logs":        logs,
	})
}

func (d *Deps) exportAuditLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	maxRecords := req.GetInt("max_records", 1000)
	if maxRecords < 1 {
		maxRecords = 1000
	}
	params := uipath.NewODataParams().OrderBy("ExecutionTime", "desc")
	filter := auditLogFilter(
		req.GetString("user_name", ""),
		req.GetString("component", ""),
		"",
		req.GetString("since", ""),
		"",
	)
	if filter != "" {
		params.Filter(filter)
	}

	pager := uipath.NewPager(d.Client, "AuditLogs", params, uipath.Scope{}, d.Settings.MaxPageSize, maxRecords)
	items, err := pager.CollectAll(ctx)
	if err != nil {
		return failResult(err)
	}
	logs, err := models.DecodeSlice[models.AuditLog](items)
	if err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]interface{}{
		"exported_count": len(logs),
		"audit_logs":     logs,
	})
}
