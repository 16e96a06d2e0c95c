// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"axonflow/uipath-mcp/models"
	"axonflow/uipath-mcp/uipath"
)

func registerFolderTools(srv *server.MCPServer, d *Deps) {
	d.addTool(srv, mcp.NewTool("list_folders",
		mcp.WithDescription("List all organization folders visible to the current credentials."),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
	), d.listFolders)

	d.addTool(srv, mcp.NewTool("get_folder",
		mcp.WithDescription("Get a folder by ID or display name."),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithString("folder_name", mcp.Description("Folder display name, used when folder_id is absent")),
	), d.getFolder)

	d.addTool(srv, mcp.NewTool("list_sub_folders",
		mcp.WithDescription("List the direct child folders of a parent folder."),
		mcp.WithNumber("parent_folder_id", mcp.Required(), mcp.Description("Parent folder ID")),
	), d.listSubFolders)

	d.addTool(srv, mcp.NewTool("list_folder_robots",
		mcp.WithDescription("List the robots assigned to a specific folder."),
		mcp.WithNumber("folder_id", mcp.Required(), mcp.Description("Folder ID")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
	), d.listFolderRobots)

	d.addTool(srv, mcp.NewTool("get_folder_stats",
		mcp.WithDescription("Summarize job and queue activity inside a folder."),
		mcp.WithNumber("folder_id", mcp.Required(), mcp.Description("Folder ID")),
	), d.getFolderStats)
}

func (d *Deps) listFolders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 100), 100, 1000)
	params := uipath.NewODataParams().Top(top).Count().OrderBy("DisplayName", "asc")

	doc, err := d.Client.Get(ctx, "Folders", params.Build(), uipath.Scope{})
	if err != nil {
		return failResult(err)
	}
	folders, err := models.DecodeSlice[models.Folder](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	total, _ := uipath.TotalCount(doc)
	return jsonResult(map[string]interface{}{
		"total_count": total,
		"folders":     folders,
	})
}

func (d *Deps) getFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var doc uipath.Document
	var err error

	if folderID := req.GetInt("folder_id", 0); folderID > 0 {
		doc, err = d.Client.GetByID(ctx, "Folders", folderID, nil, uipath.Scope{})
		if err != nil {
			return failResult(err)
		}
	} else if name := req.GetString("folder_name", ""); name != "" {
		params := uipath.NewODataParams().Filter(fmt.Sprintf("DisplayName eq '%s'", name)).Top(1)
		listDoc, err := d.Client.Get(ctx, "Folders", params.Build(), uipath.Scope{})
		if err != nil {
			return failResult(err)
		}
		items := uipath.Items(listDoc)
		if len(items) == 0 {
			return failMsg("folder %q not found", name)
		}
		doc = items[0]
	} else {
		return failMsg("either folder_id or folder_name is required")
	}

	var folder models.Folder
	if err = models.Decode(doc, &folder); err != nil {
		return failResult(err)
	}
	return jsonResult(folder)
}

func (d *Deps) listSubFolders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parentID, err := req.RequireInt("parent_folder_id")
	if err != nil {
		return failMsg("parent_folder_id is required")
	}
	params := uipath.NewODataParams().
		Filter(fmt.Sprintf("ParentId eq %d", parentID)).
		Top(200).
		OrderBy("DisplayName", "asc")

	doc, err := d.Client.Get(ctx, "Folders", params.Build(), uipath.Scope{})
	if err != nil {
		return failResult(err)
	}
	folders, err := models.DecodeSlice[models.Folder](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]interface{}{
		"parent_folder_id": parentID,
		"sub_folders":      folders,
	})
}

func (d *Deps) listFolderRobots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folderID, err := req.RequireInt("folder_id")
	if err != nil {
		return failMsg("folder_id is required")
	}
	top := clampTop(req.GetInt("top", 100), 100, 1000)
	scope := uipath.Scope{FolderID: int64(folderID)}

	doc, err := d.Client.Get(ctx, "Robots", uipath.NewODataParams().Top(top).Count().Build(), scope)
	if err != nil {
		return failResult(err)
	}
	robots, err := models.DecodeSlice[models.Robot](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	total, _ := uipath.TotalCount(doc)
	return jsonResult(map[string]interface{}{
		"folder_id":   folderID,
		"total_count": total,
		"robots":      robots,
	})
}

func (d *Deps) getFolderStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folderID, err := req.RequireInt("folder_id")
	if err != nil {
		return failMsg("folder_id is required")
	}
	scope := uipath.Scope{FolderID: int64(folderID)}

	// Count-only queries: $top=0 with $count=true returns the total
	// without any items
	countOnly := func(entity, filter string) (int64, error) {
		params := uipath.NewODataParams().Top(0).Count()
		if filter != "" {
			params.Filter(filter)
		}
		doc, err := d.Client.Get(ctx, entity, params.Build(), scope)
		if err != nil {
			return 0, err
		}
		n, _ := uipath.TotalCount(doc)
		return n, nil
	}

	stats := map[string]interface{}{"folder_id": folderID}
	counts := []struct {
		key    string
		entity string
		filter string
	}{
		{"total_jobs", "Jobs", ""},
		{"running_jobs", "Jobs", jobStateFilter("Running")},
		{"faulted_jobs", "Jobs", jobStateFilter("Faulted")},
		{"total_queue_items", "QueueItems", ""},
	}
	for _, c := range counts {
		n, err := countOnly(c.entity, c.filter)
		if err != nil {
			stats[c.key+"_error"] = uipath.AsToolError(err)
			continue
		}
		stats[c.key] = n
	}
	return jsonResult(stats)
}
