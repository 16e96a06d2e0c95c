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

// Webhooks are tenant-level resources, so none of these tools take a
// folder scope.
func registerWebhookTools(srv *server.MCPServer, d *Deps, readOnly bool) {
	d.addTool(srv, mcp.NewTool("list_webhooks",
		mcp.WithDescription("List the webhook subscriptions configured for the tenant."),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
	), d.listWebhooks)

	if readOnly {
		return
	}

	d.addTool(srv, mcp.NewTool("create_webhook",
		mcp.WithDescription("Create a webhook subscription. Omit events to subscribe to all event types."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Webhook name")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Target URL to deliver events to")),
		mcp.WithArray("events", mcp.Description("Event types to subscribe to, e.g. job.faulted")),
		mcp.WithString("secret", mcp.Description("Shared secret used to sign deliveries")),
		mcp.WithBoolean("enabled", mcp.Description("Whether the webhook starts enabled (default true)")),
		mcp.WithBoolean("allow_insecure_ssl", mcp.Description("Skip TLS verification on delivery (default false)")),
	), d.createWebhook)

	d.addTool(srv, mcp.NewTool("update_webhook",
		mcp.WithDescription("Update fields of an existing webhook. Only the supplied fields change."),
		mcp.WithNumber("webhook_id", mcp.Required(), mcp.Description("Webhook ID")),
		mcp.WithString("name", mcp.Description("New name")),
		mcp.WithString("url", mcp.Description("New target URL")),
		mcp.WithBoolean("enabled", mcp.Description("Enable or disable the webhook")),
	), d.updateWebhook)

	d.addTool(srv, mcp.NewTool("delete_webhook",
		mcp.WithDescription("Delete a webhook subscription."),
		mcp.WithNumber("webhook_id", mcp.Required(), mcp.Description("Webhook ID")),
	), d.deleteWebhook)
}

func (d *Deps) listWebhooks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 100), 100, 1000)

	doc, err := d.Client.Get(ctx, "Webhooks", uipath.NewODataParams().Top(top).Count().Build(), uipath.Scope{})
	if err != nil {
		return failResult(err)
	}
	webhooks, err := models.DecodeSlice[models.Webhook](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	total, _ := uipath.TotalCount(doc)
	return jsonResult(map[string]interface{}{
		"total_count": total,
		"webhooks":    webhooks,
	})
}

func (d *Deps) createWebhook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return failMsg("name is required")
	}
	url, err := req.RequireString("url")
	if err != nil {
		return failMsg("url is required")
	}
	events := stringSliceArg(req, "events")

	body := map[string]interface{}{
		"Name":                 name,
		"Url":                  url,
		"Enabled":              req.GetBool("enabled", true),
		"AllowInsecureSsl":     req.GetBool("allow_insecure_ssl", false),
		"SubscribeToAllEvents": len(events) == 0,
	}
	if secret := req.GetString("secret", ""); secret != "" {
		body["Secret"] = secret
	}
	if len(events) > 0 {
		subscriptions := make([]map[string]string, 0, len(events))
		for _, e := range events {
			subscriptions = append(subscriptions, map[string]string{"EventType": e})
		}
		body["Events"] = subscriptions
	}

	doc, err := d.Client.Post(ctx, "Webhooks", body, uipath.Scope{})
	if err != nil {
		return failResult(err)
	}
	var webhook models.Webhook
	if err := models.Decode(doc, &webhook); err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]interface{}{
		"message": fmt.Sprintf("Webhook %q created", name),
		"webhook": webhook,
	})
}

func (d *Deps) updateWebhook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	webhookID, err := req.RequireInt("webhook_id")
	if err != nil {
		return failMsg("webhook_id is required")
	}

	args := req.GetArguments()
	body := map[string]interface{}{}
	if v, ok := args["name"]; ok {
		body["Name"] = v
	}
	if v, ok := args["url"]; ok {
		body["Url"] = v
	}
	if v, ok := args["enabled"]; ok {
		body["Enabled"] = v
	}
	if len(body) == 0 {
		return failMsg("nothing to update: supply name, url or enabled")
	}

	if _, err := d.Client.Patch(ctx, "Webhooks", webhookID, body, uipath.Scope{}); err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]interface{}{
		"message":    fmt.Sprintf("Webhook %d updated", webhookID),
		"webhook_id": webhookID,
	})
}

func (d *Deps) deleteWebhook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	webhookID, err := req.RequireInt("webhook_id")
	if err != nil {
		return failMsg("webhook_id is required")
	}
	if err := d.Client.Delete(ctx, "Webhooks", webhookID, uipath.Scope{}); err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]interface{}{
		"message":    fmt.Sprintf("Webhook %d deleted", webhookID),
		"webhook_id": webhookID,
	})
}
