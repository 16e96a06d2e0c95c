// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileSettings mirrors Settings for YAML decoding. Durations are strings so
// the file can say "30s"; only fields present in the file are applied.
type fileSettings struct {
	AuthMode     *string `yaml:"auth_mode"`
	ClientID     *string `yaml:"client_id"`
	ClientSecret *string `yaml:"client_secret"`
	OrgName      *string `yaml:"org_name"`
	TenantName   *string `yaml:"tenant_name"`
	CloudBaseURL *string `yaml:"cloud_base_url"`
	BaseURL      *string `yaml:"base_url"`
	Username     *string `yaml:"username"`
	Password     *string `yaml:"password"`
	PAT          *string `yaml:"pat"`
	FolderID     *int64  `yaml:"folder_id"`
	FolderPath   *string `yaml:"folder_path"`

	HTTPTimeout        *string `yaml:"http_timeout"`
	HTTPMaxConnections *int    `yaml:"http_max_connections"`
	HTTPMaxKeepalive   *int    `yaml:"http_max_keepalive"`

	RetryMaxAttempts *int    `yaml:"retry_max_attempts"`
	RetryMinWait     *string `yaml:"retry_min_wait"`
	RetryMaxWait     *string `yaml:"retry_max_wait"`

	DefaultPageSize *int `yaml:"default_page_size"`
	MaxPageSize     *int `yaml:"max_page_size"`

	Transport   *string `yaml:"transport"`
	Host        *string `yaml:"host"`
	Port        *int    `yaml:"port"`
	MetricsAddr *string `yaml:"metrics_addr"`

	LogLevel     *string `yaml:"log_level"`
	ReadOnlyMode *bool   `yaml:"read_only_mode"`
}

// loadFile overlays YAML file values onto s
func loadFile(s *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var f fileSettings
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	setIf := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setIfInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setIfDur := func(dst *time.Duration, src *string, name string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("invalid %s: %q", name, *src)
		}
		*dst = d
		return nil
	}

	if f.AuthMode != nil {
		s.AuthMode = AuthMode(*f.AuthMode)
	}
	setIf(&s.ClientID, f.ClientID)
	setIf(&s.ClientSecret, f.ClientSecret)
	setIf(&s.OrgName, f.OrgName)
	setIf(&s.TenantName, f.TenantName)
	setIf(&s.CloudBaseURL, f.CloudBaseURL)
	setIf(&s.BaseURL, f.BaseURL)
	setIf(&s.Username, f.Username)
	setIf(&s.Password, f.Password)
	setIf(&s.PAT, f.PAT)
	setIf(&s.FolderPath, f.FolderPath)
	setIf(&s.Host, f.Host)
	setIf(&s.MetricsAddr, f.MetricsAddr)
	setIf(&s.LogLevel, f.LogLevel)
	if f.FolderID != nil {
		s.FolderID = *f.FolderID
	}
	if f.Transport != nil {
		s.Transport = Transport(*f.Transport)
	}
	if f.ReadOnlyMode != nil {
		s.ReadOnlyMode = *f.ReadOnlyMode
	}
	setIfInt(&s.HTTPMaxConnections, f.HTTPMaxConnections)
	setIfInt(&s.HTTPMaxKeepalive, f.HTTPMaxKeepalive)
	setIfInt(&s.RetryMaxAttempts, f.RetryMaxAttempts)
	setIfInt(&s.DefaultPageSize, f.DefaultPageSize)
	setIfInt(&s.MaxPageSize, f.MaxPageSize)
	setIfInt(&s.Port, f.Port)
	if err := setIfDur(&s.HTTPTimeout, f.HTTPTimeout, "http_timeout"); err != nil {
		return err
	}
	if err := setIfDur(&s.RetryMinWait, f.RetryMinWait, "retry_min_wait"); err != nil {
		return err
	}
	if err := setIfDur(&s.RetryMaxWait, f.RetryMaxWait, "retry_max_wait"); err != nil {
		return err
	}
	return nil
}
