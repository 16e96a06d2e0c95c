// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"axonflow/uipath-mcp/models"
	"axonflow/uipath-mcp/uipath"
)

func registerScheduleTools(srv *server.MCPServer, d *Deps, readOnly bool) {
	d.addTool(srv, mcp.NewTool("list_schedules",
		mcp.WithDescription("List all process schedules with their cron expressions and next execution times."),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithBoolean("enabled_only", mcp.Description("Return only enabled schedules")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
	), d.listSchedules)

	d.addTool(srv, mcp.NewTool("get_schedule",
		mcp.WithDescription("Get full details of a single schedule by ID."),
		mcp.WithNumber("schedule_id", mcp.Required(), mcp.Description("Schedule ID")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
	), d.getSchedule)

	d.addTool(srv, mcp.NewTool("get_next_executions",
		mcp.WithDescription("List upcoming scheduled executions sorted by NextExecution time."),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-100, default 20)")),
	), d.getNextExecutions)

	if !readOnly {
		d.addTool(srv, mcp.NewTool("enable_schedule",
			mcp.WithDescription("Enable a disabled process schedule."),
			mcp.WithNumber("schedule_id", mcp.Required(), mcp.Description("Schedule ID to enable")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		), d.enableSchedule)

		d.addTool(srv, mcp.NewTool("disable_schedule",
			mcp.WithDescription("Disable an active process schedule."),
			mcp.WithNumber("schedule_id", mcp.Required(), mcp.Description("Schedule ID to disable")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		), d.disableSchedule)

		d.addTool(srv, mcp.NewTool("set_schedule_enabled",
			mcp.WithDescription("Bulk enable or disable multiple schedules in one call."),
			mcp.WithArray("schedule_ids", mcp.Required(), mcp.Description("List of schedule IDs")),
			mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("True to enable, false to disable")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		), d.setScheduleEnabled)
	}
}

func (d *Deps) listSchedules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 50), 50, 1000)
	params := uipath.NewODataParams().Top(top).Count()
	if req.GetBool("enabled_only", false) {
		params.Filter("Enabled eq true")
	}

	doc, err := d.Client.Get(ctx, "ProcessSchedules", params.Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	schedules, err := models.DecodeSlice[models.ProcessSchedule](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	total, _ := uipath.TotalCount(doc)
	return jsonResult(map[string]interface{}{
		"total_count": total,
		"schedules":   schedules,
	})
}

func (d *Deps) getSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scheduleID, err := req.RequireInt("schedule_id")
	if err != nil {
		return failMsg("schedule_id is required")
	}
	doc, err := d.Client.GetByID(ctx, "ProcessSchedules", scheduleID, nil, scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	var schedule models.ProcessSchedule
	if err := models.Decode(doc, &schedule); err != nil {
		return failResult(err)
	}
	return jsonResult(schedule)
}

// setEnabled flips the enabled flag on a set of schedules via the
// SetEnabled bound action
func (d *Deps) setEnabled(ctx context.Context, scheduleIDs []int64, enabled bool, scope uipath.Scope) error {
	body := map[string]interface{}{"enabled": enabled, "scheduleIds": scheduleIDs}
	_, err := d.Client.PostAction(ctx, "ProcessSchedules", "SetEnabled", body, scope)
	return err
}

func (d *Deps) enableSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scheduleID, err := req.RequireInt("schedule_id")
	if err != nil {
		return failMsg("schedule_id is required")
	}
	if err := d.setEnabled(ctx, []int64{int64(scheduleID)}, true, scopeArg(req)); err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]string{"message": fmt.Sprintf("Schedule %d enabled", scheduleID)})
}

func (d *Deps) disableSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scheduleID, err := req.RequireInt("schedule_id")
	if err != nil {
		return failMsg("schedule_id is required")
	}
	if err := d.setEnabled(ctx, []int64{int64(scheduleID)}, false, scopeArg(req)); err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]string{"message": fmt.Sprintf("Schedule %d disabled", scheduleID)})
}

func (d *Deps) setScheduleEnabled(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scheduleIDs := int64SliceArg(req, "schedule_ids")
	if len(scheduleIDs) == 0 {
		return failMsg("schedule_ids is required")
	}
	enabled := req.GetBool("enabled", false)
	if err := d.setEnabled(ctx, scheduleIDs, enabled, scopeArg(req)); err != nil {
		return failResult(err)
	}

	verb := "disabled"
	if enabled {
		verb = "enabled"
	}
	return jsonResult(map[string]interface{}{
		"message":      fmt.Sprintf("%d schedule(s) %s", len(scheduleIDs), verb),
		"schedule_ids": scheduleIDs,
	})
}

func (d *Deps) getNextExecutions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 20), 20, 100)

	// Over-fetch, then sort by NextExecution locally: OData cannot order
	// by the computed field
	params := uipath.NewODataParams().Filter("Enabled eq true").Top(top * 3)
	doc, err := d.Client.Get(ctx, "ProcessSchedules", params.Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}

	items := uipath.Items(doc)
	schedules := make([]map[string]interface{}, 0, len(items))
	for _, s := range items {
		if next, _ := s["NextExecution"].(string); next != "" {
			schedules = append(schedules, s)
		}
	}
	sort.SliceStable(schedules, func(i, j int) bool {
		a, _ := schedules[i]["NextExecution"].(string)
		b, _ := schedules[j]["NextExecution"].(string)
		return a < b
	})
	if len(schedules) > top {
		schedules = schedules[:top]
	}
	return jsonResult(map[string]interface{}{"upcoming_executions": schedules})
}
