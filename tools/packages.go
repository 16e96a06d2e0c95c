// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package tools

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"axonflow/uipath-mcp/uipath"
)

// workflowSizeLimit caps how much workflow XAML a single package read
// returns to the model
const workflowSizeLimit = 200 * 1024

func registerPackageTools(srv *server.MCPServer, d *Deps) {
	d.addTool(srv, mcp.NewTool("list_packages",
		mcp.WithDescription("List the process packages in the tenant feed."),
		mcp.WithString("search", mcp.Description("Substring match on the package ID")),
		mcp.WithNumber("top", mcp.Description("Max results to return (1-1000)")),
	), d.listPackages)

	d.addTool(srv, mcp.NewTool("get_package",
		mcp.WithDescription("Get the feed entry for one package by ID, optionally at a specific version."),
		mcp.WithString("package_id", mcp.Required(), mcp.Description("Package ID")),
		mcp.WithString("version", mcp.Description("Package version, defaults to the active one")),
	), d.getPackage)

	d.addTool(srv, mcp.NewTool("download_and_read_package",
		mcp.WithDescription("Download a package (.nupkg) and return its manifest plus the source of its workflow files."),
		mcp.WithString("package_id", mcp.Required(), mcp.Description("Package ID")),
		mcp.WithString("version", mcp.Description("Package version, defaults to the active one")),
	), d.downloadAndReadPackage)
}

func (d *Deps) listPackages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	top := clampTop(req.GetInt("top", 100), 100, 1000)
	params := uipath.NewODataParams().Top(top).Count()
	if search := req.GetString("search", ""); search != "" {
		params.Filter(fmt.Sprintf("contains(Id, '%s')", search))
	}

	doc, err := d.Client.Get(ctx, "Processes", params.Build(), uipath.Scope{})
	if err != nil {
		return failResult(err)
	}
	total, _ := uipath.TotalCount(doc)
	return jsonResult(map[string]interface{}{
		"total_count": total,
		"packages":    uipath.Items(doc),
	})
}

func (d *Deps) getPackage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	packageID, err := req.RequireString("package_id")
	if err != nil {
		return failMsg("package_id is required")
	}

	filter := fmt.Sprintf("Id eq '%s'", packageID)
	if version := req.GetString("version", ""); version != "" {
		filter += fmt.Sprintf(" and Version eq '%s'", version)
	}
	doc, err := d.Client.Get(ctx, "Processes", uipath.NewODataParams().Filter(filter).Top(1).Build(), uipath.Scope{})
	if err != nil {
		return failResult(err)
	}
	items := uipath.Items(doc)
	if len(items) == 0 {
		return failMsg("package %q not found", packageID)
	}
	return jsonResult(items[0])
}

func (d *Deps) downloadAndReadPackage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	packageID, err := req.RequireString("package_id")
	if err != nil {
		return failMsg("package_id is required")
	}
	key := packageID
	if version := req.GetString("version", ""); version != "" {
		key = packageID + ":" + version
	}

	action := fmt.Sprintf("DownloadPackage(key='%s')", key)
	raw, err := d.Client.Download(ctx, "Processes", action, nil, uipath.Scope{})
	if err != nil {
		return failResult(err)
	}

	manifest, workflows, err := readPackageArchive(raw)
	if err != nil {
		return failResult(err)
	}
	return jsonResult(map[string]interface{}{
		"package_id": packageID,
		"size_bytes": len(raw),
		"manifest":   manifest,
		"workflows":  workflows,
	})
}

// readPackageArchive opens a .nupkg (a zip) in memory and pulls out the
// nuspec manifest and every workflow XAML file, truncating XAML bodies
// once workflowSizeLimit is reached.
func readPackageArchive(raw []byte) (string, []map[string]interface{}, error) {
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", nil, fmt.Errorf("package is not a valid archive: %w", err)
	}

	manifest := ""
	var workflows []map[string]interface{}
	remaining := workflowSizeLimit
	for _, f := range reader.File {
		ext := strings.ToLower(path.Ext(f.Name))
		if ext != ".nuspec" && ext != ".xaml" {
			continue
		}
		content, err := readArchiveFile(f)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}

		if ext == ".nuspec" {
			manifest = content
			continue
		}
		entry := map[string]interface{}{
			"file":       f.Name,
			"size_bytes": len(content),
		}
		if remaining > 0 {
			if len(content) > remaining {
				content = content[:remaining]
				entry["truncated"] = true
			}
			remaining -= len(content)
			entry["source"] = content
		} else {
			entry["truncated"] = true
		}
		workflows = append(workflows, entry)
	}
	return manifest, workflows, nil
}

func readArchiveFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, workflowSizeLimit+1))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
