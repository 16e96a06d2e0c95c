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

func registerRobotTools(srv *server.MCPServer, d *Deps) {
	d.addTool(srv, mcp.NewTool("list_robots",
		mcp.WithDescription("List all robots, optionally filtered by name."),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithString("name_filter", mcp.Description("Filter by robot name (partial)")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
	), d.listRobots)

	d.addTool(srv, mcp.NewTool("get_robot",
		mcp.WithDescription("Get details of a single robot by ID."),
		mcp.WithNumber("robot_id", mcp.Required(), mcp.Description("Robot ID")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
	), d.getRobot)

	d.addTool(srv, mcp.NewTool("list_available_robots",
		mcp.WithDescription("Shortcut: list only robot sessions currently connected and in Available state."),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
	), d.listAvailableRobots)

	d.addTool(srv, mcp.NewTool("list_robot_sessions",
		mcp.WithDescription("List active robot sessions (shows which robots are currently connected)."),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithBoolean("connected_only", mcp.Description("Return only connected sessions (default true)")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
	), d.listRobotSessions)

	d.addTool(srv, mcp.NewTool("list_machines",
		mcp.WithDescription("List all machine templates."),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
	), d.listMachines)

	d.addTool(srv, mcp.NewTool("get_machine",
		mcp.WithDescription("Get details of a single machine by ID."),
		mcp.WithNumber("machine_id", mcp.Required(), mcp.Description("Machine ID")),
	), d.getMachine)

	d.addTool(srv, mcp.NewTool("get_robot_license_info",
		mcp.WithDescription("Get runtime license utilization: how many slots are in use vs available, for named user and runtime pools."),
	), d.getRobotLicenseInfo)
}

func (d *Deps) listRobots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 50), 50, 1000)
	params := uipath.NewODataParams().Top(top).Count()
	if name := req.GetString("name_filter", ""); name != "" {
		params.Filter(fmt.Sprintf("contains(Name,'%s')", name))
	}

	doc, err := d.Client.Get(ctx, "Robots", params.Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	robots, err := models.DecodeSlice[models.Robot](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	total, _ := uipath.TotalCount(doc)
	return jsonResult(map[string]interface{}{
		"total_count": total,
		"robots":      robots,
	})
}

func (d *Deps) getRobot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	robotID, err := req.RequireInt("robot_id")
	if err != nil {
		return failMsg("robot_id is required")
	}
	doc, err := d.Client.GetByID(ctx, "Robots", robotID, nil, scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	var robot models.Robot
	if err := models.Decode(doc, &robot); err != nil {
		return failResult(err)
	}
	return jsonResult(robot)
}

func (d *Deps) listAvailableRobots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := d.Client.Get(ctx, "Sessions",
		uipath.NewODataParams().Top(200).Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}

	var available []map[string]interface{}
	for _, s := range uipath.Items(doc) {
		connected, _ := s["IsConnected"].(bool)
		if !connected {
			continue
		}
		// State arrives as the string name or the numeric enum value
		// depending on the Orchestrator version
		switch state := s["State"].(type) {
		case string:
			if state == "Available" {
				available = append(available, s)
			}
		case float64:
			if state == 2 {
				available = append(available, s)
			}
		}
	}
	return jsonResult(map[string]interface{}{
		"available_count": len(available),
		"sessions":        available,
	})
}

func (d *Deps) listRobotSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 50), 50, 1000)
	doc, err := d.Client.Get(ctx, "Sessions",
		uipath.NewODataParams().Top(top).Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}

	raw := uipath.Items(doc)
	if req.GetBool("connected_only", true) {
		filtered := raw[:0]
		for _, s := range raw {
			if connected, _ := s["IsConnected"].(bool); connected {
				filtered = append(filtered, s)
			}
		}
		raw = filtered
	}
	sessions, err := models.DecodeSlice[models.RobotSession](raw)
	if err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]interface{}{
		"total_count": len(sessions),
		"sessions":    sessions,
	})
}

func (d *Deps) listMachines(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 50), 50, 1000)
	doc, err := d.Client.Get(ctx, "Machines",
		uipath.NewODataParams().Top(top).Count().Build(), uipath.Scope{})
	if err != nil {
		return failResult(err)
	}
	machines, err := models.DecodeSlice[models.Machine](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	total, _ := uipath.TotalCount(doc)
	return jsonResult(map[string]interface{}{
		"total_count": total,
		"machines":    machines,
	})
}

func (d *Deps) getMachine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	machineID, err := req.RequireInt("machine_id")
	if err != nil {
		return failMsg("machine_id is required")
	}
	doc, err := d.Client.GetByID(ctx, "Machines", machineID, nil, uipath.Scope{})
	if err != nil {
		return failResult(err)
	}
	var machine models.Machine
	if err := models.Decode(doc, &machine); err != nil {
		return failResult(err)
	}
	return jsonResult(machine)
}

func (d *Deps) getRobotLicenseInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Each stats endpoint can fail independently (e.g. license type not
	// provisioned); report per-endpoint errors instead of aborting
	result := map[string]interface{}{}
	endpoints := []struct{ key, path string }{
		{"runtime_licenses", "api/Stats/GetRuntimeLicenseStats"},
		{"named_user_licenses", "api/Stats/GetNamedUserLicenseStats"},
	}
	for _, ep := range endpoints {
		doc, err := d.Client.APIGet(ctx, ep.path, nil)
		if err != nil {
			result[ep.key] = map[string]interface{}{"error": err.Error()}
			continue
		}
		result[ep.key] = doc
	}
	return jsonResult(result)
}

// robotLogFilter assembles the shared RobotLogs filter expression
func robotLogFilter(processName, robotName, level, since, until string) string {
	var parts []string
	if processName != "" {
		parts = append(parts, fmt.Sprintf("ProcessName eq '%s'", processName))
	}
	if robotName != "" {
		parts = append(parts, fmt.Sprintf("RobotName eq '%s'", robotName))
	}
	if level != "" {
		parts = append(parts, fmt.Sprintf("Level eq '%s'", level))
	}
	if since != "" {
		parts = append(parts, fmt.Sprintf("TimeStamp ge datetime'%s'", trimISO(since)))
	}
	if until != "" {
		parts = append(parts, fmt.Sprintf("TimeStamp le datetime'%s'", trimISO(until)))
	}
	return strings.Join(parts, " and ")
}
