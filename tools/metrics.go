// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	promToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uipath_tool_calls_total",
			Help: "Total MCP tool invocations by tool name",
		},
		[]string{"tool"},
	)

	promToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uipath_tool_duration_milliseconds",
			Help:    "MCP tool handler duration in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"tool"},
	)
)

func init() {
	prometheus.MustRegister(promToolCalls, promToolDuration)
}

// addTool registers a tool with invocation counting and duration logging
// wrapped around the handler
func (d *Deps) addTool(srv *server.MCPServer, tool mcp.Tool, h server.ToolHandlerFunc) {
	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		promToolCalls.WithLabelValues(tool.Name).Inc()

		res, err := h(ctx, req)

		elapsed := float64(time.Since(start).Milliseconds())
		promToolDuration.WithLabelValues(tool.Name).Observe(elapsed)
		d.Log.InfoWithDuration("", "tool "+tool.Name, elapsed, nil)
		return res, err
	})
}
