// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"axonflow/uipath-mcp/models"
	"axonflow/uipath-mcp/uipath"
)

func jobStateFilter(state string) string {
	return fmt.Sprintf("State eq UiPath.Server.Configuration.OData.JobState'%s'", state)
}

func registerJobTools(srv *server.MCPServer, d *Deps, readOnly bool) {
	d.addTool(srv, mcp.NewTool("list_jobs",
		mcp.WithDescription("List jobs with optional state/process filters and pagination."),
		mcp.WithNumber("folder_id", mcp.Description("Folder/Organization Unit ID")),
		mcp.WithString("state", mcp.Description("Filter by state: Pending | Running | Faulted | Successful | Stopped")),
		mcp.WithString("process_name", mcp.Description("Filter by release/process name (partial match)")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
		mcp.WithNumber("skip", mcp.Description("Records to skip (pagination)")),
		mcp.WithBoolean("order_desc", mcp.Description("Sort by CreationTime descending (default true)")),
	), d.listJobs)

	d.addTool(srv, mcp.NewTool("list_running_jobs",
		mcp.WithDescription("Shortcut: list only currently running jobs."),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
	), d.listRunningJobs)

	d.addTool(srv, mcp.NewTool("list_failed_jobs",
		mcp.WithDescription("Shortcut: list faulted jobs, optionally since a given date."),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithString("since", mcp.Description("ISO 8601 start date e.g. 2024-01-01T00:00:00Z")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
	), d.listFailedJobs)

	d.addTool(srv, mcp.NewTool("list_jobs_by_process",
		mcp.WithDescription("List all jobs for a specific process name (exact match)."),
		mcp.WithString("process_name", mcp.Required(), mcp.Description("Exact process/release name")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
	), d.listJobsByProcess)

	d.addTool(srv, mcp.NewTool("get_job",
		mcp.WithDescription("Get full details of a single job by ID."),
		mcp.WithNumber("job_id", mcp.Required(), mcp.Description("Job ID")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
	), d.getJob)

	d.addTool(srv, mcp.NewTool("get_job_output",
		mcp.WithDescription("Get the output arguments of a completed job. Returns both the raw JSON string and the parsed object."),
		mcp.WithNumber("job_id", mcp.Required(), mcp.Description("Job ID")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
	), d.getJobOutput)

	d.addTool(srv, mcp.NewTool("get_job_statistics",
		mcp.WithDescription("Calculate job success/failure statistics for a given process. Returns counts per state."),
		mcp.WithString("process_name", mcp.Required(), mcp.Description("Process/release name")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithString("since", mcp.Description("ISO 8601 start date")),
		mcp.WithNumber("top", mcp.Description("Max jobs to sample (1-5000)")),
	), d.getJobStatistics)

	d.addTool(srv, mcp.NewTool("get_job_logs",
		mcp.WithDescription("Retrieve execution logs for a specific job (identified by job Key GUID)."),
		mcp.WithString("job_key", mcp.Required(), mcp.Description("Job Key (GUID, not numeric ID)")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithString("level", mcp.Description("Filter by level: Trace | Info | Warn | Error | Fatal")),
		mcp.WithNumber("top", mcp.Description("Max log lines (1-1000)")),
	), d.getJobLogs)

	if !readOnly {
		d.addTool(srv, mcp.NewTool("start_job",
			mcp.WithDescription("Start a new job for a process. Looks up the release key by name, then starts the job. Returns the created jobs with IDs and initial states."),
			mcp.WithString("process_name", mcp.Required(), mcp.Description("Process/release name to start")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID where the process lives")),
			mcp.WithObject("input_arguments", mcp.Description(`Input arguments as JSON object e.g. {"InputPath": "C:/data"}`)),
			mcp.WithString("strategy", mcp.Description("Allocation strategy: All | Specific | JobsCount | RobotCount")),
			mcp.WithArray("robot_ids", mcp.Description("Specific robot IDs (required when strategy=Specific)")),
			mcp.WithNumber("jobs_count", mcp.Description("Number of job instances (used with JobsCount strategy)")),
		), d.startJob)

		d.addTool(srv, mcp.NewTool("stop_job",
			mcp.WithDescription("Stop a running or pending job."),
			mcp.WithNumber("job_id", mcp.Required(), mcp.Description("Job ID to stop")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
			mcp.WithString("strategy", mcp.Description("SoftStop (graceful) or Kill (immediate)")),
		), d.stopJob)

		d.addTool(srv, mcp.NewTool("bulk_stop_jobs",
			mcp.WithDescription("Stop multiple jobs at once. Sends a stop request for each job ID concurrently and reports per-job results."),
			mcp.WithArray("job_ids", mcp.Required(), mcp.Description("List of job IDs to stop")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
			mcp.WithString("strategy", mcp.Description("SoftStop or Kill")),
		), d.bulkStopJobs)
	}

	d.addTool(srv, mcp.NewTool("wait_for_job",
		mcp.WithDescription("Poll a job until it reaches a terminal state (Successful, Faulted, Stopped). Returns the final state and output arguments."),
		mcp.WithNumber("job_id", mcp.Required(), mcp.Description("Job ID to wait for")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithNumber("timeout_seconds", mcp.Description("Max seconds to wait before giving up (10-3600, default 300)")),
		mcp.WithNumber("poll_interval_seconds", mcp.Description("Seconds between status polls (5-60, default 10)")),
	), d.waitForJob)
}

func (d *Deps) listJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 50), 50, 1000)
	skip := req.GetInt("skip", 0)

	var filters []string
	if state := req.GetString("state", ""); state != "" {
		filters = append(filters, jobStateFilter(state))
	}
	if name := req.GetString("process_name", ""); name != "" {
		filters = append(filters, fmt.Sprintf("contains(ReleaseName,'%s')", name))
	}

	direction := "desc"
	if !req.GetBool("order_desc", true) {
		direction = "asc"
	}
	params := uipath.NewODataParams().Top(top).Skip(skip).Count().OrderBy("CreationTime", direction)
	if len(filters) > 0 {
		params.Filter(strings.Join(filters, " and "))
	}

	doc, err := d.Client.Get(ctx, "Jobs", params.Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	jobs, err := models.DecodeSlice[models.Job](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	total, _ := uipath.TotalCount(doc)
	return jsonResult(map[string]interface{}{
		"total_count": total,
		"skip":        skip,
		"jobs":        jobs,
	})
}

func (d *Deps) listRunningJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 50), 50, 1000)
	params := uipath.NewODataParams().
		Top(top).
		Count().
		Filter(jobStateFilter(models.JobStateRunning)).
		OrderBy("StartTime", "desc")

	doc, err := d.Client.Get(ctx, "Jobs", params.Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	jobs, err := models.DecodeSlice[models.Job](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]interface{}{
		"running_count": len(jobs),
		"jobs":          jobs,
	})
}

func (d *Deps) listFailedJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 50), 50, 1000)
	parts := []string{jobStateFilter(models.JobStateFaulted)}
	if since := req.GetString("since", ""); since != "" {
		parts = append(parts, fmt.Sprintf("CreationTime ge datetime'%s'", trimISO(since)))
	}
	params := uipath.NewODataParams().
		Top(top).
		Count().
		Filter(strings.Join(parts, " and ")).
		OrderBy("CreationTime", "desc")

	doc, err := d.Client.Get(ctx, "Jobs", params.Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	jobs, err := models.DecodeSlice[models.Job](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]interface{}{
		"failed_count": len(jobs),
		"jobs":         jobs,
	})
}

func (d *Deps) listJobsByProcess(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("process_name")
	if err != nil {
		return failMsg("process_name is required")
	}
	top := clampTop(req.GetInt("top", 100), 100, 1000)
	params := uipath.NewODataParams().
		Top(top).
		Count().
		Filter(fmt.Sprintf("ReleaseName eq '%s'", name)).
		OrderBy("CreationTime", "desc")

	doc, err := d.Client.Get(ctx, "Jobs", params.Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	jobs, err := models.DecodeSlice[models.Job](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	total, _ := uipath.TotalCount(doc)
	return jsonResult(map[string]interface{}{
		"process_name": name,
		"total_count":  total,
		"jobs":         jobs,
	})
}

func (d *Deps) getJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireInt("job_id")
	if err != nil {
		return failMsg("job_id is required")
	}
	doc, err := d.Client.GetByID(ctx, "Jobs", jobID, nil, scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	var job models.Job
	if err := models.Decode(doc, &job); err != nil {
		return failResult(err)
	}
	return jsonResult(job)
}

func (d *Deps) getJobOutput(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireInt("job_id")
	if err != nil {
		return failMsg("job_id is required")
	}
	doc, err := d.Client.GetByID(ctx, "Jobs", jobID, nil, scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	var job models.Job
	if err := models.Decode(doc, &job); err != nil {
		return failResult(err)
	}

	result := map[string]interface{}{
		"job_id":               jobID,
		"state":                job.State,
		"output_arguments_raw": job.OutputArguments,
	}
	if job.OutputArguments != "" {
		var parsed map[string]interface{}
		if jsonErr := json.Unmarshal([]byte(job.OutputArguments), &parsed); jsonErr == nil {
			result["output_arguments"] = parsed
		} else {
			result["output_arguments"] = nil
		}
	}
	return jsonResult(result)
}

func (d *Deps) getJobStatistics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("process_name")
	if err != nil {
		return failMsg("process_name is required")
	}
	top := clampTop(req.GetInt("top", 500), 500, 5000)

	parts := []string{fmt.Sprintf("ReleaseName eq '%s'", name)}
	if since := req.GetString("since", ""); since != "" {
		parts = append(parts, fmt.Sprintf("CreationTime ge datetime'%s'", trimISO(since)))
	}
	params := uipath.NewODataParams().
		Top(top).
		Filter(strings.Join(parts, " and ")).
		Select("Id", "State", "StartTime", "EndTime")

	doc, err := d.Client.Get(ctx, "Jobs", params.Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	items := uipath.Items(doc)

	counts := map[string]int{}
	for _, j := range items {
		state, _ := j["State"].(string)
		if state == "" {
			state = "Unknown"
		}
		counts[state]++
	}

	total := len(items)
	successRate := 0.0
	if total > 0 {
		successRate = math.Round(float64(counts[models.JobStateSuccessful])/float64(total)*1000) / 10
	}

	return jsonResult(map[string]interface{}{
		"process_name":     name,
		"total_jobs":       total,
		"success_rate_pct": successRate,
		"counts_by_state":  counts,
	})
}

func (d *Deps) getJobLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobKey, err := req.RequireString("job_key")
	if err != nil {
		return failMsg("job_key is required")
	}
	top := clampTop(req.GetInt("top", 100), 100, 1000)
	scope := scopeArg(req)

	// RobotLogs does not support filtering by JobKey in OData, so first
	// resolve the job to a process name and time window, query by those,
	// then narrow to the exact key locally.
	jobDoc, err := d.Client.Get(ctx, "Jobs",
		uipath.NewODataParams().Filter(fmt.Sprintf("Key eq guid'%s'", jobKey)).Top(1).Build(), scope)
	if err != nil {
		return failResult(err)
	}

	var parts []string
	if jobs := uipath.Items(jobDoc); len(jobs) > 0 {
		job := jobs[0]
		if name, _ := job["ReleaseName"].(string); name != "" {
			parts = append(parts, fmt.Sprintf("ProcessName eq '%s'", name))
		}
		if start, _ := job["StartTime"].(string); start != "" {
			parts = append(parts, fmt.Sprintf("TimeStamp ge datetime'%s'", trimISO(start)))
		}
		if end, _ := job["EndTime"].(string); end != "" {
			parts = append(parts, fmt.Sprintf("TimeStamp le datetime'%s'", trimISO(end)))
		}
	}
	if level := req.GetString("level", ""); level != "" {
		parts = append(parts, fmt.Sprintf("Level eq '%s'", level))
	}

	params := uipath.NewODataParams().Top(top).OrderBy("TimeStamp", "asc")
	if len(parts) > 0 {
		params.Filter(strings.Join(parts, " and "))
	}

	doc, err := d.Client.Get(ctx, "RobotLogs", params.Build(), scope)
	if err != nil {
		return failResult(err)
	}

	var logs []map[string]interface{}
	for _, l := range uipath.Items(doc) {
		if key, _ := l["JobKey"].(string); key == jobKey {
			logs = append(logs, l)
		}
	}
	return jsonResult(map[string]interface{}{
		"count": len(logs),
		"logs":  logs,
	})
}

func (d *Deps) startJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("process_name")
	if err != nil {
		return failMsg("process_name is required")
	}
	scope := scopeArg(req)

	releasesDoc, err := d.Client.Get(ctx, "Releases",
		uipath.NewODataParams().Filter(fmt.Sprintf("Name eq '%s'", name)).Top(1).Build(), scope)
	if err != nil {
		return failResult(err)
	}
	releases := uipath.Items(releasesDoc)
	if len(releases) == 0 {
		return failMsg("process '%s' not found in folder %d", name, scope.FolderID)
	}
	releaseKey, _ := releases[0]["Key"].(string)

	startInfo := map[string]interface{}{
		"ReleaseKey": releaseKey,
		"Strategy":   req.GetString("strategy", models.StrategyAll),
		"Source":     "Manual",
	}
	if robotIDs := int64SliceArg(req, "robot_ids"); len(robotIDs) > 0 {
		startInfo["RobotIds"] = robotIDs
	}
	if jobsCount := req.GetInt("jobs_count", 0); jobsCount > 0 {
		startInfo["JobsCount"] = jobsCount
	}
	if input := objectArg(req, "input_arguments"); len(input) > 0 {
		// The API expects InputArguments as a JSON-encoded string
		encoded, jsonErr := json.Marshal(input)
		if jsonErr != nil {
			return failMsg("input_arguments is not encodable: %v", jsonErr)
		}
		startInfo["InputArguments"] = string(encoded)
	}

	result, err := d.Client.PostAction(ctx, "Jobs", "StartJobs",
		map[string]interface{}{"startInfo": startInfo}, scope)
	if err != nil {
		return failResult(err)
	}
	started, err := models.DecodeSlice[models.Job](uipath.Items(result))
	if err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]interface{}{
		"message": fmt.Sprintf("Started %d job(s) for '%s'", len(started), name),
		"jobs":    started,
	})
}

func (d *Deps) stopJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireInt("job_id")
	if err != nil {
		return failMsg("job_id is required")
	}
	strategy := req.GetString("strategy", models.StopStrategySoftStop)
	body := map[string]interface{}{"jobId": jobID, "strategy": strategy}
	if _, err := d.Client.PostAction(ctx, "Jobs", "StopJob", body, scopeArg(req)); err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]string{
		"message": fmt.Sprintf("Stop (%s) requested for job %d", strategy, jobID),
	})
}

func (d *Deps) bulkStopJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobIDs := int64SliceArg(req, "job_ids")
	if len(jobIDs) == 0 {
		return failMsg("job_ids is required")
	}
	strategy := req.GetString("strategy", models.StopStrategySoftStop)
	scope := scopeArg(req)

	// Fan out one stop request per job; per-job failures are captured in
	// the results list and never abort the rest
	type stopResult struct {
		JobID  int64  `json:"job_id"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	results := make([]stopResult, len(jobIDs))

	var wg sync.WaitGroup
	for i, jobID := range jobIDs {
		wg.Add(1)
		go func(i int, jobID int64) {
			defer wg.Done()
			body := map[string]interface{}{"jobId": jobID, "strategy": strategy}
			if _, err := d.Client.PostAction(ctx, "Jobs", "StopJob", body, scope); err != nil {
				results[i] = stopResult{JobID: jobID, Status: "error", Error: err.Error()}
				return
			}
			results[i] = stopResult{JobID: jobID, Status: "stop_requested"}
		}(i, jobID)
	}
	wg.Wait()

	success := 0
	for _, r := range results {
		if r.Status == "stop_requested" {
			success++
		}
	}
	return jsonResult(map[string]interface{}{
		"total":   len(jobIDs),
		"success": success,
		"results": results,
	})
}

func (d *Deps) waitForJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireInt("job_id")
	if err != nil {
		return failMsg("job_id is required")
	}
	timeout := time.Duration(clampTop(req.GetInt("timeout_seconds", 300), 300, 3600)) * time.Second
	interval := time.Duration(clampTop(req.GetInt("poll_interval_seconds", 10), 10, 60)) * time.Second
	scope := scopeArg(req)

	start := time.Now()
	for {
		doc, err := d.Client.GetByID(ctx, "Jobs", jobID, nil, scope)
		if err != nil {
			return failResult(err)
		}
		var job models.Job
		if err := models.Decode(doc, &job); err != nil {
			return failResult(err)
		}

		if models.TerminalJobStates[job.State] {
			result := map[string]interface{}{
				"final_state":     job.State,
				"elapsed_seconds": int(time.Since(start).Seconds()),
				"job":             job,
			}
			if job.OutputArguments != "" {
				var parsed map[string]interface{}
				if jsonErr := json.Unmarshal([]byte(job.OutputArguments), &parsed); jsonErr == nil {
					result["output_arguments_parsed"] = parsed
				}
			}
			return jsonResult(result)
		}

		if time.Since(start)+interval > timeout {
			return failMsg("job %d did not complete within %s", jobID, timeout)
		}
		select {
		case <-ctx.Done():
			return failMsg("cancelled while waiting for job %d", jobID)
		case <-time.After(interval):
		}
	}
}
