// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package uipath

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"axonflow/uipath-mcp/config"
	"axonflow/uipath-mcp/shared/logger"
)

const (
	userAgent = "uipath-mcp-server/1.0.0"

	// odataActionPrefix is the namespace UiPath binds OData actions under
	odataActionPrefix = "UiPath.Server.Configuration.OData."

	// apiDetailLimit bounds the response body carried in error details
	apiDetailLimit = 1000

	// maxResponseSize caps response bodies (10MB)
	maxResponseSize = 10 * 1024 * 1024
)

// Document is a decoded JSON object from the Orchestrator
type Document = map[string]interface{}

// Items extracts the "value" array of an OData collection envelope
func Items(doc Document) []Document {
	raw, ok := doc["value"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]Document, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// TotalCount extracts "@odata.count" when the request asked for it
func TotalCount(doc Document) (int64, bool) {
	if n, ok := doc["@odata.count"].(float64); ok {
		return int64(n), true
	}
	return 0, false
}

// Scope selects the folder (organization unit) a request runs against.
// Zero values fall back to the configured default scope; an explicit ID
// takes precedence over a path.
type Scope struct {
	FolderID   int64
	FolderPath string
}

// Client executes authenticated calls against the Orchestrator API.
// It is the single chokepoint every tool handler passes through: token
// handling, folder scoping, retry with backoff, and error translation all
// live here. Safe for concurrent use.
type Client struct {
	settings   *config.Settings
	auth       AuthProvider
	httpClient *http.Client
	retry      *RetryConfig
	log        *logger.Logger
	baseURL    string
}

// NewHTTPClient builds the pooled HTTP client shared by the Orchestrator
// client and the auth providers for the process lifetime
func NewHTTPClient(settings *config.Settings) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        settings.HTTPMaxConnections,
		MaxConnsPerHost:     settings.HTTPMaxConnections,
		MaxIdleConnsPerHost: settings.HTTPMaxKeepalive,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &http.Client{
		Timeout:   settings.HTTPTimeout,
		Transport: transport,
	}
}

// NewClient creates an Orchestrator client
func NewClient(settings *config.Settings, auth AuthProvider, httpClient *http.Client, log *logger.Logger) *Client {
	return &Client{
		settings:   settings,
		auth:       auth,
		httpClient: httpClient,
		retry: &RetryConfig{
			MaxAttempts: settings.RetryMaxAttempts,
			MinWait:     settings.RetryMinWait,
			MaxWait:     settings.RetryMaxWait,
			Multiplier:  2.0,
			Jitter:      0.5,
		},
		log:     log,
		baseURL: settings.OrchestratorBaseURL(),
	}
}

// odataURL builds {base}/odata/{Entity} with an optional bound action
func (c *Client) odataURL(entity, action string) string {
	u := c.baseURL + "/odata/" + entity
	if action != "" {
		u += "/" + odataActionPrefix + action
	}
	return u
}

// entityURL builds {base}/odata/{Entity}({id})
func (c *Client) entityURL(entity string, id interface{}) string {
	return fmt.Sprintf("%s/odata/%s(%v)", c.baseURL, entity, id)
}

// Get fetches a collection: GET {base}/odata/{Entity}
func (c *Client) Get(ctx context.Context, entity string, params map[string]string, scope Scope) (Document, error) {
	return c.request(ctx, http.MethodGet, c.odataURL(entity, ""), params, nil, scope)
}

// GetByID fetches one entity: GET {base}/odata/{Entity}({id})
func (c *Client) GetByID(ctx context.Context, entity string, id interface{}, params map[string]string, scope Scope) (Document, error) {
	return c.request(ctx, http.MethodGet, c.entityURL(entity, id), params, nil, scope)
}

// GetAction calls a collection-bound action with GET
func (c *Client) GetAction(ctx context.Context, entity, action string, params map[string]string, scope Scope) (Document, error) {
	return c.request(ctx, http.MethodGet, c.odataURL(entity, action), params, nil, scope)
}

// Post creates an entity: POST {base}/odata/{Entity}
func (c *Client) Post(ctx context.Context, entity string, body interface{}, scope Scope) (Document, error) {
	return c.request(ctx, http.MethodPost, c.odataURL(entity, ""), nil, body, scope)
}

// PostAction calls a collection-bound action:
// POST {base}/odata/{Entity}/UiPath.Server.Configuration.OData.{Action}
func (c *Client) PostAction(ctx context.Context, entity, action string, body interface{}, scope Scope) (Document, error) {
	return c.request(ctx, http.MethodPost, c.odataURL(entity, action), nil, body, scope)
}

// PostItemAction calls an entity-bound action:
// POST {base}/odata/{Entity}({id})/UiPath.Server.Configuration.OData.{Action}
func (c *Client) PostItemAction(ctx context.Context, entity string, id interface{}, action string, body interface{}, scope Scope) (Document, error) {
	u := c.entityURL(entity, id) + "/" + odataActionPrefix + action
	return c.request(ctx, http.MethodPost, u, nil, body, scope)
}

// Patch updates fields of an entity
func (c *Client) Patch(ctx context.Context, entity string, id interface{}, body interface{}, scope Scope) (Document, error) {
	return c.request(ctx, http.MethodPatch, c.entityURL(entity, id), nil, body, scope)
}

// Put replaces an entity
func (c *Client) Put(ctx context.Context, entity string, id interface{}, body interface{}, scope Scope) (Document, error) {
	return c.request(ctx, http.MethodPut, c.entityURL(entity, id), nil, body, scope)
}

// Delete removes an entity
func (c *Client) Delete(ctx context.Context, entity string, id interface{}, scope Scope) error {
	_, err := c.request(ctx, http.MethodDelete, c.entityURL(entity, id), nil, nil, scope)
	return err
}

// APIGet calls a non-OData {base}/api/* endpoint
func (c *Client) APIGet(ctx context.Context, path string, params map[string]string) (Document, error) {
	u := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	return c.request(ctx, http.MethodGet, u, params, nil, Scope{})
}

// folderHeaders resolves the folder-scoping header for a request.
// An explicit or configured folder ID wins over a path; when both are
// absent no scoping header is emitted.
func (c *Client) folderHeaders(scope Scope) map[string]string {
	id := scope.FolderID
	if id == 0 {
		id = c.settings.FolderID
	}
	path := scope.FolderPath
	if path == "" {
		path = c.settings.FolderPath
	}

	if id != 0 {
		return map[string]string{"X-UIPATH-OrganizationUnitId": strconv.FormatInt(id, 10)}
	}
	if path != "" {
		return map[string]string{"X-UIPATH-FolderPath-Encoded": encodeFolderPath(path)}
	}
	return nil
}

// encodeFolderPath percent-encodes every reserved character, including "/"
// and spaces (the header is not a URL component, so "+" is not accepted)
func encodeFolderPath(path string) string {
	return strings.ReplaceAll(url.QueryEscape(path), "+", "%20")
}

// Download fetches a binary payload from a collection-bound action,
// e.g. Processes/UiPath...DownloadPackage. The same auth, scoping and
// retry path as JSON calls applies; the body is capped at maxResponseSize.
func (c *Client) Download(ctx context.Context, entity, action string, params map[string]string, scope Scope) ([]byte, error) {
	return c.do(ctx, http.MethodGet, c.odataURL(entity, action), params, nil, scope)
}

// request executes one logical API call with auth, retry and error
// translation. A nil Document with nil error is returned for 204 responses.
func (c *Client) request(ctx context.Context, method, rawURL string, params map[string]string, body interface{}, scope Scope) (Document, error) {
	respBody, err := c.do(ctx, method, rawURL, params, body, scope)
	if err != nil {
		return nil, err
	}
	if len(respBody) == 0 {
		return nil, nil
	}

	var doc Document
	if err := json.Unmarshal(respBody, &doc); err != nil {
		// Some api/* endpoints return a bare JSON array; normalize it to
		// the envelope shape so callers have one access path
		var list []interface{}
		if listErr := json.Unmarshal(respBody, &list); listErr == nil {
			return Document{"value": list}, nil
		}
		return nil, &OrchestratorError{
			Message:  "response is not valid JSON",
			Detail:   truncate(string(respBody), apiDetailLimit),
			Endpoint: rawURL,
			Cause:    err,
		}
	}
	return doc, nil
}

// do runs the retry loop around attempt and returns the raw success body
func (c *Client) do(ctx context.Context, method, rawURL string, params map[string]string, body interface{}, scope Scope) ([]byte, error) {
	requestID := uuid.NewString()
	endpoint := rawURL

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, &OrchestratorError{Message: "failed to encode request body", Endpoint: endpoint, Cause: err}
		}
	}

	reqURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, &OrchestratorError{Message: "invalid request URL", Endpoint: endpoint, Cause: err}
	}
	if len(params) > 0 {
		q := reqURL.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		reqURL.RawQuery = q.Encode()
	}

	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			promClientRetries.Inc()
			if err := sleep(ctx, c.retry.backoff(attempt-1)); err != nil {
				return nil, &OrchestratorError{Message: "cancelled while waiting to retry", Endpoint: endpoint, Cause: err}
			}
			c.log.Debug(requestID, fmt.Sprintf("retry %d/%d: %s %s", attempt, c.retry.MaxAttempts, method, reqURL.Path), nil)
		} else {
			c.log.Debug(requestID, fmt.Sprintf("%s %s", method, reqURL.Path), nil)
		}

		respBody, retryable, err := c.attempt(ctx, method, reqURL.String(), bodyBytes, scope, requestID, endpoint)
		if err == nil {
			c.observe(method, http.StatusOK, start)
			return respBody, nil
		}
		if IsAuthError(err) || !retryable {
			c.observe(method, statusOf(err), start)
			return nil, err
		}
		lastErr = err
	}

	c.observe(method, statusOf(lastErr), start)
	return nil, &RetryExhaustedError{
		Endpoint: endpoint,
		Attempts: c.retry.MaxAttempts,
		Last:     lastErr,
	}
}

// attempt performs a single HTTP call. The second return value reports
// whether the failure is worth another attempt.
func (c *Client) attempt(ctx context.Context, method, fullURL string, bodyBytes []byte, scope Scope, requestID, endpoint string) ([]byte, bool, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, false, err
	}

	var bodyReader io.Reader
	if bodyBytes != nil {
		bodyReader = bytes.NewReader(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, false, &OrchestratorError{Message: "failed to build request", Endpoint: endpoint, Cause: err}
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.auth.BaseHeaders() {
		req.Header.Set(k, v)
	}
	for k, v := range c.folderHeaders(scope) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		transient := retryableError(err)
		return nil, transient, &OrchestratorError{
			Message:  fmt.Sprintf("request failed: %v", err),
			Endpoint: endpoint,
			Cause:    err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if readErr != nil {
		return nil, retryableError(readErr), &OrchestratorError{
			Message:  "failed to read response body",
			Endpoint: endpoint,
			Cause:    readErr,
		}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// Honor Retry-After on top of the regular backoff wait
		wait := c.retry.MinWait
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if sec, err := strconv.ParseFloat(ra, 64); err == nil && sec > 0 {
				wait = time.Duration(sec * float64(time.Second))
			}
		}
		c.log.Warn(requestID, fmt.Sprintf("rate limited, waiting %v", wait), nil)
		if err := sleep(ctx, wait); err != nil {
			return nil, false, &OrchestratorError{Message: "cancelled during rate-limit wait", Endpoint: endpoint, Cause: err}
		}
		return nil, true, &OrchestratorError{
			Message:    "rate limited by Orchestrator",
			StatusCode: resp.StatusCode,
			ErrorCode:  CodeRateLimited,
			Endpoint:   endpoint,
		}

	case resp.StatusCode == http.StatusUnauthorized:
		// The token may have been revoked externally; every caller goes
		// through the refresh path on its next access
		c.auth.Invalidate()
		c.log.Warn(requestID, "401 from Orchestrator, token cache cleared", nil)
		return nil, true, &OrchestratorError{
			Message:    "unauthorized, re-authenticating",
			StatusCode: resp.StatusCode,
			ErrorCode:  CodeUnauthorized,
			Endpoint:   endpoint,
		}

	case resp.StatusCode == http.StatusNotFound:
		return nil, false, &OrchestratorError{
			Message:    "resource not found: " + endpoint,
			StatusCode: resp.StatusCode,
			ErrorCode:  CodeNotFound,
			Endpoint:   endpoint,
		}

	case resp.StatusCode >= 400:
		if retryableStatus(resp.StatusCode) {
			return nil, true, &OrchestratorError{
				Message:    fmt.Sprintf("transient HTTP %d", resp.StatusCode),
				StatusCode: resp.StatusCode,
				Endpoint:   endpoint,
			}
		}
		return nil, false, c.apiError(resp.StatusCode, respBody, endpoint)
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, false, nil
	}
	return respBody, false, nil
}

// apiError parses the Orchestrator's error body into a structured error,
// falling back to the raw status text when the body is not JSON
func (c *Client) apiError(status int, body []byte, endpoint string) *OrchestratorError {
	var parsed struct {
		Message   string          `json:"message"`
		MessageUC string          `json:"Message"`
		ErrorCode json.RawMessage `json:"errorCode"`
		ErrorUC   json.RawMessage `json:"ErrorCode"`
	}
	message := http.StatusText(status)
	errorCode := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			message = parsed.Message
		} else if parsed.MessageUC != "" {
			message = parsed.MessageUC
		}
		if code := rawToString(parsed.ErrorCode); code != "" {
			errorCode = code
		} else {
			errorCode = rawToString(parsed.ErrorUC)
		}
	}
	return &OrchestratorError{
		Message:    message,
		StatusCode: status,
		ErrorCode:  errorCode,
		Detail:     truncate(string(body), apiDetailLimit),
		Endpoint:   endpoint,
	}
}

// rawToString renders a JSON scalar (string or number) as a plain string
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (c *Client) observe(method string, status int, start time.Time) {
	promClientRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	promClientDuration.WithLabelValues(method).Observe(float64(time.Since(start).Milliseconds()))
}

// statusOf extracts the HTTP status from a structured error, 0 otherwise
func statusOf(err error) int {
	var oe *OrchestratorError
	if errors.As(err, &oe) {
		return oe.StatusCode
	}
	return 0
}
