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

func registerAssetTools(srv *server.MCPServer, d *Deps, readOnly bool) {
	d.addTool(srv, mcp.NewTool("list_assets",
		mcp.WithDescription("List assets in a folder, optionally filtered by type."),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		mcp.WithString("value_type", mcp.Description("Filter by type: Text | Integer | Bool | Credential")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
	), d.listAssets)

	d.addTool(srv, mcp.NewTool("get_asset",
		mcp.WithDescription("Get an asset by ID or exact name."),
		mcp.WithNumber("asset_id", mcp.Description("Asset ID")),
		mcp.WithString("asset_name", mcp.Description("Asset name (exact)")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
	), d.getAsset)

	d.addTool(srv, mcp.NewTool("get_robot_asset",
		mcp.WithDescription("Retrieve the value of an asset as seen by a specific robot. Useful for per-robot assets (ValueScope=PerRobot)."),
		mcp.WithString("robot_name", mcp.Required(), mcp.Description("Robot name")),
		mcp.WithString("asset_name", mcp.Required(), mcp.Description("Asset name")),
		mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
	), d.getRobotAsset)

	if !readOnly {
		d.addTool(srv, mcp.NewTool("create_asset",
			mcp.WithDescription("Create a new asset (Text, Integer, Bool, or Credential)."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Asset name")),
			mcp.WithString("value_type", mcp.Required(), mcp.Description("Text | Integer | Bool | Credential")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
			mcp.WithString("string_value", mcp.Description("Value for Text type")),
			mcp.WithNumber("integer_value", mcp.Description("Value for Integer type")),
			mcp.WithBoolean("bool_value", mcp.Description("Value for Bool type")),
			mcp.WithString("credential_username", mcp.Description("Username for Credential type")),
			mcp.WithString("credential_password", mcp.Description("Password for Credential type")),
			mcp.WithString("description", mcp.Description("Asset description")),
		), d.createAsset)

		d.addTool(srv, mcp.NewTool("update_asset",
			mcp.WithDescription("Update an existing asset's value or description."),
			mcp.WithNumber("asset_id", mcp.Required(), mcp.Description("Asset ID to update")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
			mcp.WithString("string_value", mcp.Description("New value for Text asset")),
			mcp.WithNumber("integer_value", mcp.Description("New value for Integer asset")),
			mcp.WithBoolean("bool_value", mcp.Description("New value for Bool asset")),
			mcp.WithString("description", mcp.Description("New description")),
		), d.updateAsset)

		d.addTool(srv, mcp.NewTool("delete_asset",
			mcp.WithDescription("Delete an asset by ID."),
			mcp.WithNumber("asset_id", mcp.Required(), mcp.Description("Asset ID to delete")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		), d.deleteAsset)

		d.addTool(srv, mcp.NewTool("set_credential_asset",
			mcp.WithDescription("Update the username and password of a Credential-type asset."),
			mcp.WithNumber("asset_id", mcp.Required(), mcp.Description("Credential asset ID")),
			mcp.WithString("username", mcp.Required(), mcp.Description("New username")),
			mcp.WithString("password", mcp.Required(), mcp.Description("New password")),
			mcp.WithNumber("folder_id", mcp.Description("Folder ID")),
		), d.setCredentialAsset)
	}
}

func (d *Deps) listAssets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 50), 50, 1000)
	params := uipath.NewODataParams().Top(top).Count()
	if valueType := req.GetString("value_type", ""); valueType != "" {
		params.Filter(fmt.Sprintf(
			"ValueType eq UiPath.Server.Configuration.OData.AssetValueType'%s'", valueType))
	}

	doc, err := d.Client.Get(ctx, "Assets", params.Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	assets, err := models.DecodeSlice[models.Asset](uipath.Items(doc))
	if err != nil {
		return failResult(err)
	}
	total, _ := uipath.TotalCount(doc)
	return jsonResult(map[string]interface{}{
		"total_count": total,
		"assets":      assets,
	})
}

func (d *Deps) getAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope := scopeArg(req)

	if assetID := req.GetInt("asset_id", 0); assetID > 0 {
		doc, err := d.Client.GetByID(ctx, "Assets", assetID, nil, scope)
		if err != nil {
			return failResult(err)
		}
		var asset models.Asset
		if err := models.Decode(doc, &asset); err != nil {
			return failResult(err)
		}
		return jsonResult(asset)
	}

	if name := req.GetString("asset_name", ""); name != "" {
		doc, err := d.Client.Get(ctx, "Assets",
			uipath.NewODataParams().Filter(fmt.Sprintf("Name eq '%s'", name)).Top(1).Build(), scope)
		if err != nil {
			return failResult(err)
		}
		items := uipath.Items(doc)
		if len(items) == 0 {
			return failMsg("asset '%s' not found", name)
		}
		var asset models.Asset
		if err := models.Decode(items[0], &asset); err != nil {
			return failResult(err)
		}
		return jsonResult(asset)
	}

	return failMsg("provide asset_id or asset_name")
}

func (d *Deps) createAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return failMsg("name is required")
	}
	valueType, err := req.RequireString("value_type")
	if err != nil {
		return failMsg("value_type is required")
	}

	body := map[string]interface{}{"Name": name, "ValueType": valueType}
	if desc := req.GetString("description", ""); desc != "" {
		body["Description"] = desc
	}
	switch valueType {
	case models.AssetTypeText:
		body["StringValue"] = req.GetString("string_value", "")
	case models.AssetTypeInteger:
		body["IntValue"] = req.GetInt("integer_value", 0)
	case models.AssetTypeBool:
		body["BoolValue"] = req.GetBool("bool_value", false)
	case models.AssetTypeCredential:
		if username := req.GetString("credential_username", ""); username != "" {
			body["CredentialUsername"] = username
		}
		if password := req.GetString("credential_password", ""); password != "" {
			body["CredentialPassword"] = password
		}
	}

	result, err := d.Client.Post(ctx, "Assets", body, scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]interface{}{
		"message": fmt.Sprintf("Asset '%s' created", name),
		"asset":   result,
	})
}

func (d *Deps) updateAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	assetID, err := req.RequireInt("asset_id")
	if err != nil {
		return failMsg("asset_id is required")
	}

	body := map[string]interface{}{}
	args := req.GetArguments()
	if _, ok := args["string_value"]; ok {
		body["StringValue"] = req.GetString("string_value", "")
	}
	if _, ok := args["integer_value"]; ok {
		body["IntValue"] = req.GetInt("integer_value", 0)
	}
	if _, ok := args["bool_value"]; ok {
		body["BoolValue"] = req.GetBool("bool_value", false)
	}
	if _, ok := args["description"]; ok {
		body["Description"] = req.GetString("description", "")
	}
	if len(body) == 0 {
		return failMsg("no update fields provided")
	}

	if _, err := d.Client.Patch(ctx, "Assets", assetID, body, scopeArg(req)); err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]string{"message": fmt.Sprintf("Asset %d updated", assetID)})
}

func (d *Deps) deleteAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	assetID, err := req.RequireInt("asset_id")
	if err != nil {
		return failMsg("asset_id is required")
	}
	if err := d.Client.Delete(ctx, "Assets", assetID, scopeArg(req)); err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]string{"message": fmt.Sprintf("Asset %d deleted", assetID)})
}

func (d *Deps) getRobotAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	robotName, err := req.RequireString("robot_name")
	if err != nil {
		return failMsg("robot_name is required")
	}
	assetName, err := req.RequireString("asset_name")
	if err != nil {
		return failMsg("asset_name is required")
	}

	params := uipath.NewODataParams().
		Filter(fmt.Sprintf("RobotName eq '%s' and Name eq '%s'", robotName, assetName)).
		Top(1)
	doc, err := d.Client.GetAction(ctx, "Assets", "GetRobotAsset", params.Build(), scopeArg(req))
	if err != nil {
		return failResult(err)
	}
	return jsonResult(doc)
}

func (d *Deps) setCredentialAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	assetID, err := req.RequireInt("asset_id")
	if err != nil {
		return failMsg("asset_id is required")
	}
	username, err := req.RequireString("username")
	if err != nil {
		return failMsg("username is required")
	}
	password, err := req.RequireString("password")
	if err != nil {
		return failMsg("password is required")
	}

	body := map[string]interface{}{
		"CredentialUsername": username,
		"CredentialPassword": password,
	}
	if _, err := d.Client.Patch(ctx, "Assets", assetID, body, scopeArg(req)); err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]string{
		"message": fmt.Sprintf("Credential asset %d updated", assetID),
	})
}
