// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AuthMode selects one of the three mutually exclusive authentication strategies
type AuthMode string

const (
	AuthModeCloud  AuthMode = "cloud"
	AuthModeOnPrem AuthMode = "on_prem"
	AuthModePAT    AuthMode = "pat"
)

// Transport selects how the MCP server talks to its client
type Transport string

const (
	TransportStdio          Transport = "stdio"
	TransportStreamableHTTP Transport = "streamable-http"
)

// Settings holds the validated server configuration.
// It is built once at startup and read-only afterward.
type Settings struct {
	AuthMode AuthMode `yaml:"auth_mode"`

	// Cloud OAuth2 (client credentials)
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	OrgName      string `yaml:"org_name"`
	TenantName   string `yaml:"tenant_name"`
	// CloudBaseURL overrides the Automation Cloud host, e.g. for
	// sovereign-cloud regions
	CloudBaseURL string `yaml:"cloud_base_url"`

	// On-premise username/password
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Personal Access Token
	PAT string `yaml:"pat"`

	// Default folder scope; zero values mean unscoped
	FolderID   int64  `yaml:"folder_id"`
	FolderPath string `yaml:"folder_path"`

	// HTTP client
	HTTPTimeout        time.Duration `yaml:"http_timeout"`
	HTTPMaxConnections int           `yaml:"http_max_connections"`
	HTTPMaxKeepalive   int           `yaml:"http_max_keepalive"`

	// Retry policy
	RetryMaxAttempts int           `yaml:"retry_max_attempts"`
	RetryMinWait     time.Duration `yaml:"retry_min_wait"`
	RetryMaxWait     time.Duration `yaml:"retry_max_wait"`

	// Pagination
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`

	// MCP transport
	Transport Transport `yaml:"transport"`
	Host      string    `yaml:"host"`
	Port      int       `yaml:"port"`

	// Sidecar listener for /health and /metrics; empty disables it
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel     string `yaml:"log_level"`
	ReadOnlyMode bool   `yaml:"read_only_mode"`
}

// Defaults returns a Settings populated with default values
func Defaults() *Settings {
	return &Settings{
		AuthMode:           AuthModeCloud,
		CloudBaseURL:       "https://cloud.uipath.com",
		HTTPTimeout:        30 * time.Second,
		HTTPMaxConnections: 20,
		HTTPMaxKeepalive:   10,
		RetryMaxAttempts:   3,
		RetryMinWait:       1 * time.Second,
		RetryMaxWait:       30 * time.Second,
		DefaultPageSize:    100,
		MaxPageSize:        1000,
		Transport:          TransportStdio,
		Host:               "127.0.0.1",
		Port:               8000,
		LogLevel:           "INFO",
	}
}

// Load builds Settings from, in ascending priority:
// built-in defaults, an optional YAML file (UIPATH_MCP_CONFIG), an optional
// .env file, and process environment variables. The result is validated.
func Load() (*Settings, error) {
	// .env is a convenience for local development; absence is not an error
	_ = godotenv.Load()

	s := Defaults()

	if path := os.Getenv("UIPATH_MCP_CONFIG"); path != "" {
		if err := loadFile(s, path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := applyEnv(s); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func applyEnv(s *Settings) error {
	getStr(&s.ClientID, "UIPATH_CLIENT_ID")
	getStr(&s.ClientSecret, "UIPATH_CLIENT_SECRET")
	getStr(&s.OrgName, "UIPATH_ORG_NAME")
	getStr(&s.TenantName, "UIPATH_TENANT_NAME")
	getStr(&s.CloudBaseURL, "UIPATH_CLOUD_BASE_URL")
	getStr(&s.BaseURL, "UIPATH_BASE_URL")
	getStr(&s.Username, "UIPATH_USERNAME")
	getStr(&s.Password, "UIPATH_PASSWORD")
	getStr(&s.PAT, "UIPATH_PAT")
	getStr(&s.FolderPath, "UIPATH_FOLDER_PATH")
	getStr(&s.Host, "MCP_HOST")
	getStr(&s.MetricsAddr, "METRICS_ADDR")

	if v := os.Getenv("AUTH_MODE"); v != "" {
		s.AuthMode = AuthMode(strings.ToLower(v))
	}
	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		s.Transport = Transport(strings.ToLower(v))
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		s.LogLevel = strings.ToUpper(v)
	}

	if err := getInt64(&s.FolderID, "UIPATH_FOLDER_ID"); err != nil {
		return err
	}
	for _, iv := range []struct {
		dst *int
		key string
	}{
		{&s.HTTPMaxConnections, "HTTP_MAX_CONNECTIONS"},
		{&s.HTTPMaxKeepalive, "HTTP_MAX_KEEPALIVE"},
		{&s.RetryMaxAttempts, "RETRY_MAX_ATTEMPTS"},
		{&s.DefaultPageSize, "DEFAULT_PAGE_SIZE"},
		{&s.MaxPageSize, "MAX_PAGE_SIZE"},
		{&s.Port, "MCP_PORT"},
	} {
		if err := getIntEnv(iv.dst, iv.key); err != nil {
			return err
		}
	}
	for _, dv := range []struct {
		dst *time.Duration
		key string
	}{
		{&s.HTTPTimeout, "HTTP_TIMEOUT"},
		{&s.RetryMinWait, "RETRY_MIN_WAIT"},
		{&s.RetryMaxWait, "RETRY_MAX_WAIT"},
	} {
		if err := getDuration(dv.dst, dv.key); err != nil {
			return err
		}
	}
	if err := getBool(&s.ReadOnlyMode, "READ_ONLY_MODE"); err != nil {
		return err
	}
	return nil
}

func getStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func getIntEnv(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, v)
	}
	*dst = n
	return nil
}

func getInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, v)
	}
	*dst = n
	return nil
}

// getDuration accepts Go duration strings ("30s") and bare seconds ("30")
func getDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return nil
	}
	if sec, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(sec * float64(time.Second))
		return nil
	}
	return fmt.Errorf("invalid %s: %q", key, v)
}

func getBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, v)
	}
	*dst = b
	return nil
}

// Validate checks that the selected auth mode has its required credentials
// and that numeric settings are in sane ranges
func (s *Settings) Validate() error {
	required := map[AuthMode][]struct {
		val string
		env string
	}{
		AuthModeCloud: {
			{s.ClientID, "UIPATH_CLIENT_ID"},
			{s.ClientSecret, "UIPATH_CLIENT_SECRET"},
			{s.OrgName, "UIPATH_ORG_NAME"},
			{s.TenantName, "UIPATH_TENANT_NAME"},
		},
		AuthModeOnPrem: {
			{s.BaseURL, "UIPATH_BASE_URL"},
			{s.Username, "UIPATH_USERNAME"},
			{s.Password, "UIPATH_PASSWORD"},
			{s.TenantName, "UIPATH_TENANT_NAME"},
		},
		AuthModePAT: {
			{s.BaseURL, "UIPATH_BASE_URL"},
			{s.PAT, "UIPATH_PAT"},
			{s.TenantName, "UIPATH_TENANT_NAME"},
		},
	}

	fields, ok := required[s.AuthMode]
	if !ok {
		return fmt.Errorf("invalid AUTH_MODE %q (want cloud, on_prem or pat)", s.AuthMode)
	}
	var missing []string
	for _, f := range fields {
		if f.val == "" {
			missing = append(missing, f.env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("auth mode %q requires these environment variables: %s",
			s.AuthMode, strings.Join(missing, ", "))
	}

	if s.Transport != TransportStdio && s.Transport != TransportStreamableHTTP {
		return fmt.Errorf("invalid MCP_TRANSPORT %q (want stdio or streamable-http)", s.Transport)
	}
	if s.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", s.RetryMaxAttempts)
	}
	if s.RetryMaxWait < s.RetryMinWait {
		return fmt.Errorf("RETRY_MAX_WAIT (%v) must not be smaller than RETRY_MIN_WAIT (%v)",
			s.RetryMaxWait, s.RetryMinWait)
	}
	if s.DefaultPageSize < 1 || s.DefaultPageSize > s.MaxPageSize {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be between 1 and %d, got %d",
			s.MaxPageSize, s.DefaultPageSize)
	}
	if s.HTTPTimeout < time.Second {
		return fmt.Errorf("HTTP_TIMEOUT must be at least 1s, got %v", s.HTTPTimeout)
	}
	return nil
}

// OrchestratorBaseURL returns the base URL for the OData API
func (s *Settings) OrchestratorBaseURL() string {
	if s.AuthMode == AuthModeCloud {
		return fmt.Sprintf("%s/%s/%s/orchestrator_", strings.TrimSuffix(s.CloudBaseURL, "/"), s.OrgName, s.TenantName)
	}
	return strings.TrimSuffix(s.BaseURL, "/")
}

// CloudTokenURL returns the Automation Cloud identity-server token endpoint
func (s *Settings) CloudTokenURL() string {
	return fmt.Sprintf("%s/%s/identity_/connect/token", strings.TrimSuffix(s.CloudBaseURL, "/"), s.OrgName)
}

// OnPremAuthURL returns the on-premise username/password auth endpoint
func (s *Settings) OnPremAuthURL() string {
	return s.OrchestratorBaseURL() + "/api/Account/Authenticate"
}
