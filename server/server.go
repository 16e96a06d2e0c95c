// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package server wires the Orchestrator access layer and the tool
// registry into a running MCP server, plus the operational HTTP sidecar
// (health and Prometheus metrics).
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"axonflow/uipath-mcp/config"
	"axonflow/uipath-mcp/shared/logger"
	"axonflow/uipath-mcp/tools"
	"axonflow/uipath-mcp/uipath"
)

const (
	serverName    = "uipath-orchestrator"
	serverVersion = "1.0.0"

	instructions = "Tools for operating a UiPath Orchestrator tenant: start, stop and " +
		"monitor jobs, manage queues and queue items, read and write assets, inspect " +
		"robots, schedules, folders, webhooks, packages and audit logs. List tools " +
		"accept optional folder_id, top and skip arguments; timestamps are ISO 8601."
)

// Run builds the server from the environment and serves until the
// transport shuts down
func Run() error {
	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	log := logger.New("uipath-mcp")
	log.SetLevel(logger.LogLevel(strings.ToUpper(settings.LogLevel)))

	httpClient := uipath.NewHTTPClient(settings)
	auth := uipath.NewAuthProvider(settings, httpClient, log)
	client := uipath.NewClient(settings, auth, httpClient, log)

	srv := mcpsrv.NewMCPServer(serverName, serverVersion,
		mcpsrv.WithInstructions(instructions),
		mcpsrv.WithToolCapabilities(true),
	)
	deps := &tools.Deps{Client: client, Settings: settings, Log: log}
	tools.Register(srv, deps)

	log.Info("", "starting server", map[string]interface{}{
		"auth_mode": string(settings.AuthMode),
		"transport": string(settings.Transport),
		"read_only": settings.ReadOnlyMode,
	})

	if settings.MetricsAddr != "" {
		startSidecar(settings.MetricsAddr, log)
	}

	switch settings.Transport {
	case config.TransportStreamableHTTP:
		addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
		log.Info("", "listening for MCP clients", map[string]interface{}{"addr": addr})
		return mcpsrv.NewStreamableHTTPServer(srv).Start(addr)
	default:
		return mcpsrv.ServeStdio(srv)
	}
}

// startSidecar serves /health and /metrics on a separate listener so the
// operational surface stays off the MCP transport. Runs for the process
// lifetime.
func startSidecar(addr string, log *logger.Logger) {
	router := mux.NewRouter()
	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	handler := corsMiddleware.Handler(router)

	go func() {
		log.Info("", "sidecar listening", map[string]interface{}{"addr": addr})
		if err := http.ListenAndServe(addr, handler); err != nil {
			log.Error("", "sidecar server stopped", map[string]interface{}{"error": err.Error()})
		}
	}()
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"service":   serverName,
		"version":   serverVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
