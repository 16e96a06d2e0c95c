// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package tools

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"axonflow/uipath-mcp/models"
	"axonflow/uipath-mcp/uipath"
)

func registerAnalyticsTools(srv *server.MCPServer, d *Deps) {
	d.addTool(srv, mcp.NewTool("get_jobs_stats",
		mcp.WithDescription("Aggregate job outcomes over a recent time window: counts by state, success rate and average duration."),
		mcp.WithNumber("hours_back", mcp.Description("Window size in hours (default 24)")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
	), d.getJobsStats)

	d.addTool(srv, mcp.NewTool("get_queue_processing_stats",
		mcp.WithDescription("Aggregate queue item processing outcomes: throughput, failure rate, average handling time and top exception reasons."),
		mcp.WithString("queue_name", mcp.Description("Restrict to a single queue by name")),
		mcp.WithNumber("hours_back", mcp.Description("Window size in hours (default 24)")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
	), d.getQueueProcessingStats)

	d.addTool(srv, mcp.NewTool("get_license_usage",
		mcp.WithDescription("Report runtime and consumption license usage for the tenant."),
	), d.getLicenseUsage)

	d.addTool(srv, mcp.NewTool("get_robot_utilization",
		mcp.WithDescription("Break down robot sessions by state and report the share of connected robots currently busy."),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
	), d.getRobotUtilization)

	d.addTool(srv, mcp.NewTool("get_tenant_stats",
		mcp.WithDescription("Report tenant-wide entity counts: robots, processes, queues, assets."),
	), d.getTenantStats)

	d.addTool(srv, mcp.NewTool("get_error_patterns",
		mcp.WithDescription("Group recent robot error logs by message prefix to surface recurring failure patterns."),
		mcp.WithNumber("hours_back", mcp.Description("Window size in hours (default 24)")),
		mcp.WithNumber("top_n", mcp.Description("How many patterns to return (default 10)")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
	), d.getErrorPatterns)
}

func windowStart(req mcp.CallToolRequest, def int) string {
	hours := req.GetInt("hours_back", def)
	if hours < 1 {
		hours = def
	}
	return time.Now().UTC().Add(-time.Duration(hours) * time.Hour).Format("2006-01-02T15:04:05")
}

// parseTimestamp accepts the handful of ISO 8601 shapes Orchestrator
// emits, with or without fractional seconds and zone suffix.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func roundPct(x float64) float64 {
	return math.Round(x*1000) / 10
}

func (d *Deps) getJobsStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	since := windowStart(req, 24)
	params := uipath.NewODataParams().
		Filter(fmt.Sprintf("CreationTime ge datetime'%s'", since)).
		Select("State", "StartTime", "EndTime").
		Top(5000)

	doc, err := d.Client.Get(ctx, "Jobs", params.Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	jobs := uipath.Items(doc)

	byState := map[string]int{}
	var durationSum float64
	var durationCount int
	for _, job := range jobs {
		state, _ := job["State"].(string)
		byState[state]++

		start, _ := job["StartTime"].(string)
		end, _ := job["EndTime"].(string)
		if start == "" || end == "" {
			continue
		}
		st, okS := parseTimestamp(start)
		et, okE := parseTimestamp(end)
		if okS && okE && et.After(st) {
			durationSum += et.Sub(st).Seconds()
			durationCount++
		}
	}

	total := len(jobs)
	finished := byState[models.JobStateSuccessful] + byState[models.JobStateFaulted] + byState[models.JobStateStopped]
	stats := map[string]interface{}{
		"window_start":  since + "Z",
		"total_jobs":    total,
		"jobs_by_state": byState,
		"finished_jobs": finished,
	}
	if finished > 0 {
		stats["success_rate_pct"] = roundPct(float64(byState[models.JobStateSuccessful]) / float64(finished))
	}
	if durationCount > 0 {
		stats["avg_duration_seconds"] = math.Round(durationSum/float64(durationCount)*10) / 10
	}
	return jsonResult(stats)
}

func (d *Deps) getQueueProcessingStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	since := windowStart(req, 24)
	scope := scopeArg(req)

	filter := fmt.Sprintf("Status ne '%s' and StartProcessing ge datetime'%s'", models.QueueItemStatusNew, since)
	if queueName := req.GetString("queue_name", ""); queueName != "" {
		queueID, err := d.lookupQueueID(ctx, queueName, scope)
		if err != nil {
			return failResult(err)
		}
		filter += fmt.Sprintf(" and QueueDefinitionId eq %d", queueID)
	}
	params := uipath.NewODataParams().
		Filter(filter).
		Select("Status", "StartProcessing", "EndProcessing", "ProcessingExceptionType").
		Top(5000)

	doc, err := d.Client.Get(ctx, "QueueItems", params.Build(), scope)
	if err != nil {
		return failResult(err)
	}
	items := uipath.Items(doc)

	byStatus := map[string]int{}
	exceptionTypes := map[string]int{}
	var handlingSum float64
	var handlingCount int
	for _, item := range items {
		status, _ := item["Status"].(string)
		byStatus[status]++
		if status == models.QueueItemStatusFailed {
			if et, _ := item["ProcessingExceptionType"].(string); et != "" {
				exceptionTypes[et]++
			}
		}

		start, _ := item["StartProcessing"].(string)
		end, _ := item["EndProcessing"].(string)
		if start == "" || end == "" {
			continue
		}
		st, okS := parseTimestamp(start)
		et, okE := parseTimestamp(end)
		if okS && okE && et.After(st) {
			handlingSum += et.Sub(st).Seconds()
			handlingCount++
		}
	}

	processed := byStatus[models.QueueItemStatusSuccessful] + byStatus[models.QueueItemStatusFailed]
	stats := map[string]interface{}{
		"window_start":    since + "Z",
		"items_seen":      len(items),
		"items_by_status": byStatus,
		"processed_items": processed,
	}
	if processed > 0 {
		stats["failure_rate_pct"] = roundPct(float64(byStatus[models.QueueItemStatusFailed]) / float64(processed))
	}
	if handlingCount > 0 {
		stats["avg_handling_seconds"] = math.Round(handlingSum/float64(handlingCount)*10) / 10
	}
	if len(exceptionTypes) > 0 {
		stats["top_exception_types"] = topCounts(exceptionTypes, 5)
	}
	return jsonResult(stats)
}

func (d *Deps) getLicenseUsage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := map[string]interface{}{}
	for key, path := range map[string]string{
		"runtime_licenses":     "api/Stats/GetLicenseStats",
		"consumption_licenses": "api/Stats/GetConsumptionLicenseStats",
	} {
		doc, err := d.Client.APIGet(ctx, path, nil)
		if err != nil {
			out[key+"_error"] = uipath.AsToolError(err)
			continue
		}
		out[key] = doc
	}
	return jsonResult(out)
}

func (d *Deps) getRobotUtilization(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := uipath.NewODataParams().
		Select("State", "IsConnected", "RobotId").
		Top(1000)

	doc, err := d.Client.Get(ctx, "Sessions", params.Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	sessions := uipath.Items(doc)

	byState := map[string]int{}
	connected := 0
	busy := 0
	for _, s := range sessions {
		state := sessionState(s["State"])
		byState[state]++
		isConnected, _ := s["IsConnected"].(bool)
		if !isConnected {
			continue
		}
		connected++
		if state == "Busy" {
			busy++
		}
	}

	stats := map[string]interface{}{
		"total_sessions":    len(sessions),
		"connected_robots":  connected,
		"sessions_by_state": byState,
	}
	if connected > 0 {
		stats["utilization_pct"] = roundPct(float64(busy) / float64(connected))
	}
	return jsonResult(stats)
}

func (d *Deps) getTenantStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := d.Client.APIGet(ctx, "api/Stats/GetCountStats", nil)
	if err != nil {
		return failResult(err)
	}
	return jsonResult(doc)
}

func (d *Deps) getErrorPatterns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	since := windowStart(req, 24)
	topN := req.GetInt("top_n", 10)
	if topN < 1 {
		topN = 10
	}
	params := uipath.NewODataParams().
		Filter(fmt.Sprintf("Level eq 'Error' and TimeStamp ge datetime'%s'", since)).
		Select("Message", "ProcessName", "TimeStamp").
		OrderBy("TimeStamp", "desc").
		Top(2000)

	doc, err := d.Client.Get(ctx, "RobotLogs", params.Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}

	type pattern struct {
		count     int
		processes map[string]struct{}
		sample    string
	}
	patterns := map[string]*pattern{}
	for _, entry := range uipath.Items(doc) {
		msg, _ := entry["Message"].(string)
		if msg == "" {
			continue
		}
		key := msg
		if len(key) > 100 {
			key = key[:100]
		}
		p := patterns[key]
		if p == nil {
			p = &pattern{processes: map[string]struct{}{}, sample: msg}
			patterns[key] = p
		}
		p.count++
		if proc, _ := entry["ProcessName"].(string); proc != "" {
			p.processes[proc] = struct{}{}
		}
	}

	keys := make([]string, 0, len(patterns))
	for k := range patterns {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if patterns[keys[i]].count != patterns[keys[j]].count {
			return patterns[keys[i]].count > patterns[keys[j]].count
		}
		return keys[i] < keys[j]
	})
	if len(keys) > topN {
		keys = keys[:topN]
	}

	out := make([]map[string]interface{}, 0, len(keys))
	for _, k := range keys {
		p := patterns[k]
		processes := make([]string, 0, len(p.processes))
		for proc := range p.processes {
			processes = append(processes, proc)
		}
		sort.Strings(processes)
		out = append(out, map[string]interface{}{
			"message":     p.sample,
			"occurrences": p.count,
			"processes":   processes,
		})
	}
	return jsonResult(map[string]interface{}{
		"window_start": since + "Z",
		"patterns":     out,
	})
}

// sessionState normalizes the Session.State field, which the API may
// return as a string name or a numeric enum value
func sessionState(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		switch int(s) {
		case 0:
			return "Unknown"
		case 1:
			return "Busy"
		case 2:
			return "Available"
		case 3:
			return "Disconnected"
		}
	}
	return "Unknown"
}

func topCounts(counts map[string]int, n int) []map[string]interface{} {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	out := make([]map[string]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, map[string]interface{}{"type": k, "count": counts[k]})
	}
	return out
}
