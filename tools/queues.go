// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package tools

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"axonflow/uipath-mcp/models"
	"axonflow/uipath-mcp/uipath"
)

func registerQueueTools(srv *server.MCPServer, d *Deps, readOnly bool) {
	d.addTool(srv, mcp.NewTool("list_queues",
		mcp.WithDescription("List all queue definitions in a folder."),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
	), d.listQueues)

	d.addTool(srv, mcp.NewTool("get_queue",
		mcp.WithDescription("Get a queue by ID or exact name."),
		mcp.WithNumber("queue_id", mcp.Description("Queue definition ID")),
		mcp.WithString("queue_name", mcp.Description("Queue name (exact)")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
	), d.getQueue)

	d.addTool(srv, mcp.NewTool("list_queue_items",
		mcp.WithDescription("List queue items with optional queue-name and status filters."),
		mcp.WithString("queue_name", mcp.Description("Filter by queue name")),
		mcp.WithString("status", mcp.Description("Filter by status: New | InProgress | Failed | Successful | Abandoned")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
		mcp.WithNumber("skip", mcp.Description("Records to skip (pagination)")),
	), d.listQueueItems)

	d.addTool(srv, mcp.NewTool("get_queue_item",
		mcp.WithDescription("Get details of a single queue item by ID."),
		mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Queue item ID")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
	), d.getQueueItem)

	d.addTool(srv, mcp.NewTool("get_queue_stats",
		mcp.WithDescription("Get processing statistics for a queue: counts by status, success rate, failure rate."),
		mcp.WithString("queue_name", mcp.Required(), mcp.Description("Queue name")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
	), d.getQueueStats)

	if !readOnly {
		d.addTool(srv, mcp.NewTool("add_queue_item",
			mcp.WithDescription("Add a single item to a queue."),
			mcp.WithString("queue_name", mcp.Required(), mcp.Description("Target queue name")),
			mcp.WithObject("specific_content", mcp.Required(), mcp.Description("Item payload as JSON object")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
			mcp.WithString("priority", mcp.Description("Low | Normal | High (default Normal)")),
			mcp.WithString("reference", mcp.Description("Unique reference string")),
			mcp.WithString("defer_date", mcp.Description("ISO 8601 defer date")),
			mcp.WithString("due_date", mcp.Description("ISO 8601 due date")),
		), d.addQueueItem)

		d.addTool(srv, mcp.NewTool("bulk_add_queue_items",
			mcp.WithDescription("Add multiple queue items in a single API call (up to 1000 items). Much more efficient than calling add_queue_item repeatedly."),
			mcp.WithString("queue_name", mcp.Required(), mcp.Description("Target queue name")),
			mcp.WithArray("items", mcp.Required(), mcp.Description("List of item objects. Each must have 'SpecificContent'. Optional per item: Priority, Reference, DeferDate, DueDate.")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
			mcp.WithString("commit_type", mcp.Description("AllOrNothing (rollback on any fail) | ProcessAllIndependently")),
		), d.bulkAddQueueItems)

		d.addTool(srv, mcp.NewTool("update_queue_item_status",
			mcp.WithDescription("Update the review status of a queue item (for manual review workflows)."),
			mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Queue item ID")),
			mcp.WithString("review_status", mcp.Required(), mcp.Description("New review status: None | Approved | Rejected | InReview | OnHold")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
			mcp.WithString("review_comments", mcp.Description("Optional review comment")),
		), d.updateQueueItemStatus)

		d.addTool(srv, mcp.NewTool("delete_queue_item",
			mcp.WithDescription("Delete a specific queue item. Only New/Failed/Abandoned items can be deleted."),
			mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Queue item ID to delete")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		), d.deleteQueueItem)

		d.addTool(srv, mcp.NewTool("retry_failed_items",
			mcp.WithDescription("Bulk-retry all Failed items in a queue so they can be processed again."),
			mcp.WithString("queue_name", mcp.Required(), mcp.Description("Queue name")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
			mcp.WithNumber("max_items", mcp.Description("Maximum items to retry (1-1000, default 100)")),
		), d.retryFailedItems)
	}
}

// lookupQueueID resolves a queue name to its definition ID
func (d *Deps) lookupQueueID(ctx context.Context, name string, scope uipath.Scope) (int64, error) {
	doc, err := d.Client.Get(ctx, "QueueDefinitions",
		uipath.NewODataParams().Filter(fmt.Sprintf("Name eq '%s'", name)).Top(1).Build(), scope)
	if err != nil {
		return 0, err
	}
	items := uipath.Items(doc)
	if len(items) == 0 {
		return 0, nil
	}
	id, _ := items[0]["Id"].(float64)
	return int64(id), nil
}

func (d *Deps) listQueues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 50), 50, 1000)
	doc, err := d.Client.Get(ctx, "QueueDefinitions",
		uipath.NewODataParams().Top(top).Count().Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	queues, err := models.DecodeSlice[models.Queue](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	total, _ := uipath.TotalCount(doc)
	return jsonResult(map[string]interface{}{
		"total_count": total,
		"queues":      queues,
	})
}

func (d *Deps) getQueue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope := scopeArg(req)

	if queueID := req.GetInt("queue_id", 0); queueID > 0 {
		doc, err := d.Client.GetByID(ctx, "QueueDefinitions", queueID, nil, scope)
		if err != nil {
			return failResult(err)
		}
		var queue models.Queue
		if err := models.Decode(doc, &queue); err != nil {
			return failResult(err)
		}
		return jsonResult(queue)
	}

	if name := req.GetString("queue_name", ""); name != "" {
		doc, err := d.Client.Get(ctx, "QueueDefinitions",
			uipath.NewODataParams().Filter(fmt.Sprintf("Name eq '%s'", name)).Top(1).Build(), scope)
		if err != nil {
			return failResult(err)
		}
		items := uipath.Items(doc)
		if len(items) == 0 {
			return failMsg("queue '%s' not found", name)
		}
		var queue models.Queue
		if err := models.Decode(items[0], &queue); err != nil {
			return failResult(err)
		}
		return jsonResult(queue)
	}

	return failMsg("provide queue_id or queue_name")
}

func (d *Deps) addQueueItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("queue_name")
	if err != nil {
		return failMsg("queue_name is required")
	}
	content := objectArg(req, "specific_content")
	if content == nil {
		return failMsg("specific_content is required")
	}

	itemData := map[string]interface{}{
		"Name":            name,
		"Priority":        req.GetString("priority", "Normal"),
		"SpecificContent": content,
	}
	if ref := req.GetString("reference", ""); ref != "" {
		itemData["Reference"] = ref
	}
	if deferDate := req.GetString("defer_date", ""); deferDate != "" {
		itemData["DeferDate"] = deferDate
	}
	if dueDate := req.GetString("due_date", ""); dueDate != "" {
		itemData["DueDate"] = dueDate
	}

	result, err := d.Client.PostAction(ctx, "Queues", "AddQueueItem",
		map[string]interface{}{"itemData": itemData}, scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]interface{}{
		"message": "Queue item added successfully",
		"item":    result,
	})
}

func (d *Deps) bulkAddQueueItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("queue_name")
	if err != nil {
		return failMsg("queue_name is required")
	}
	items := objectSliceArg(req, "items")
	if len(items) == 0 {
		return failMsg("items list is empty")
	}

	body := map[string]interface{}{
		"queueName":  name,
		"commitType": req.GetString("commit_type", "AllOrNothing"),
		"queueItems": items,
	}
	result, err := d.Client.PostAction(ctx, "Queues", "BulkAddQueueItems", body, scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]interface{}{
		"message": fmt.Sprintf("Bulk added %d items to '%s'", len(items), name),
		"result":  result,
	})
}

func (d *Deps) listQueueItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 50), 50, 1000)
	skip := req.GetInt("skip", 0)
	scope := scopeArg(req)

	var parts []string
	if name := req.GetString("queue_name", ""); name != "" {
		queueID, err := d.lookupQueueID(ctx, name, scope)
		if err != nil {
			return failResult(err)
		}
		if queueID == 0 {
			return failMsg("queue '%s' not found", name)
		}
		parts = append(parts, fmt.Sprintf("QueueDefinitionId eq %d", queueID))
	}
	if status := req.GetString("status", ""); status != "" {
		parts = append(parts, fmt.Sprintf("Status eq '%s'", status))
	}

	params := uipath.NewODataParams().Top(top).Skip(skip).Count().OrderBy("CreationTime", "desc")
	if len(parts) > 0 {
		params.Filter(strings.Join(parts, " and "))
	}

	doc, err := d.Client.Get(ctx, "QueueItems", params.Build(), scope)
	if err != nil {
		return failResult(err)
	}
	items, err := models.DecodeSlice[models.QueueItem](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	total, _ := uipath.TotalCount(doc)
	return jsonResult(map[string]interface{}{
		"total_count": total,
		"skip":        skip,
		"items":       items,
	})
}

func (d *Deps) getQueueItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemID, err := req.RequireInt("item_id")
	if err != nil {
		return failMsg("item_id is required")
	}
	doc, err := d.Client.GetByID(ctx, "QueueItems", itemID, nil, scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	var item models.QueueItem
	if err := models.Decode(doc, &item); err != nil {
		return failResult(err)
	}
	return jsonResult(item)
}

func (d *Deps) updateQueueItemStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemID, err := req.RequireInt("item_id")
	if err != nil {
		return failMsg("item_id is required")
	}
	reviewStatus, err := req.RequireString("review_status")
	if err != nil {
		return failMsg("review_status is required")
	}

	body := map[string]interface{}{"ReviewStatus": reviewStatus}
	if comments := req.GetString("review_comments", ""); comments != "" {
		body["ReviewerComments"] = comments
	}
	if _, err := d.Client.Patch(ctx, "QueueItems", itemID, body, scopeArg(req)); err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]string{
		"message": fmt.Sprintf("Item %d review status set to %s", itemID, reviewStatus),
	})
}

func (d *Deps) deleteQueueItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemID, err := req.RequireInt("item_id")
	if err != nil {
		return failMsg("item_id is required")
	}
	if err := d.Client.Delete(ctx, "QueueItems", itemID, scopeArg(req)); err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]string{
		"message": fmt.Sprintf("Queue item %d deleted", itemID),
	})
}

func (d *Deps) getQueueStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("queue_name")
	if err != nil {
		return failMsg("queue_name is required")
	}
	scope := scopeArg(req)

	queueID, err := d.lookupQueueID(ctx, name, scope)
	if err != nil {
		return failResult(err)
	}
	if queueID == 0 {
		return failMsg("queue '%s' not found", name)
	}

	params := uipath.NewODataParams().
		Filter(fmt.Sprintf("QueueDefinitionId eq %d", queueID)).
		Top(5000).
		Select("Status", "RetryNumber", "StartTime", "EndTime")
	doc, err := d.Client.Get(ctx, "QueueItems", params.Build(), scope)
	if err != nil {
		return failResult(err)
	}
	items := uipath.Items(doc)

	counts := map[string]int{}
	for _, item := range items {
		status, _ := item["Status"].(string)
		if status == "" {
			status = "Unknown"
		}
		counts[status]++
	}

	total := len(items)
	successRate, failureRate := 0.0, 0.0
	if total > 0 {
		successRate = math.Round(float64(counts[models.QueueItemStatusSuccessful])/float64(total)*1000) / 10
		failureRate = math.Round(float64(counts[models.QueueItemStatusFailed])/float64(total)*1000) / 10
	}

	return jsonResult(map[string]interface{}{
		"queue_name":       name,
		"total_items":      total,
		"counts_by_status": counts,
		"success_rate_pct": successRate,
		"failure_rate_pct": failureRate,
	})
}

func (d *Deps) retryFailedItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("queue_name")
	if err != nil {
		return failMsg("queue_name is required")
	}
	maxItems := clampTop(req.GetInt("max_items", 100), 100, 1000)
	scope := scopeArg(req)

	queueID, err := d.lookupQueueID(ctx, name, scope)
	if err != nil {
		return failResult(err)
	}
	if queueID == 0 {
		return failMsg("queue '%s' not found", name)
	}

	params := uipath.NewODataParams().
		Filter(fmt.Sprintf("QueueDefinitionId eq %d and Status eq 'Failed'", queueID)).
		Top(maxItems).
		Select("Id")
	doc, err := d.Client.Get(ctx, "QueueItems", params.Build(), scope)
	if err != nil {
		return failResult(err)
	}

	var itemIDs []int64
	for _, item := range uipath.Items(doc) {
		if id, ok := item["Id"].(float64); ok {
			itemIDs = append(itemIDs, int64(id))
		}
	}
	if len(itemIDs) == 0 {
		return jsonResult(map[string]interface{}{"message": "No failed items found", "retried": 0})
	}

	body := map[string]interface{}{"queueItemIds": itemIDs}
	if _, err := d.Client.PostAction(ctx, "QueueItems", "SetItemReviewStatus", body, scope); err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]interface{}{
		"message": fmt.Sprintf("Retried %d failed items in '%s'", len(itemIDs), name),
		"retried": len(itemIDs),
	})
}
