// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package uipath

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"axonflow/uipath-mcp/config"
	"axonflow/uipath-mcp/shared/logger"
)

const (
	// OAuthScope covers all Orchestrator permissions
	OAuthScope = "OR.Default"

	// cloudTokenLifetime is assumed when the token response carries neither
	// an expires_in field nor a readable exp claim
	cloudTokenLifetime = time.Hour

	// onPremTokenLifetime is assumed for on-prem tokens; the Authenticate
	// endpoint does not return an expiry
	onPremTokenLifetime = 30 * time.Minute

	// authDetailLimit bounds the response body carried in AuthError.Detail
	authDetailLimit = 500
)

// AuthProvider produces a valid bearer token plus the non-secret headers
// that accompany every request. Implementations must be safe for
// concurrent use.
type AuthProvider interface {
	// Token returns a valid bearer token, refreshing it if needed
	Token(ctx context.Context) (string, error)

	// BaseHeaders returns headers (no secrets) merged into every request
	BaseHeaders() map[string]string

	// Invalidate discards any cached token so the next Token call
	// re-authenticates from scratch
	Invalidate()

	// Type returns the auth mode name
	Type() string
}

// NewAuthProvider returns the provider for the configured auth mode.
// The settings are assumed validated.
func NewAuthProvider(settings *config.Settings, httpClient *http.Client, log *logger.Logger) AuthProvider {
	switch settings.AuthMode {
	case config.AuthModeOnPrem:
		return &OnPremAuth{
			settings:   settings,
			httpClient: httpClient,
			cache:      NewTokenCache(),
			log:        log,
		}
	case config.AuthModePAT:
		return &PATAuth{settings: settings}
	default:
		return &CloudAuth{
			settings:   settings,
			httpClient: httpClient,
			cache:      NewTokenCache(),
			log:        log,
		}
	}
}

func tenantHeader(tenant string) map[string]string {
	return map[string]string{"X-UIPATH-TenantName": tenant}
}

// countRefresh records token refresh outcomes
func countRefresh(fetch TokenFetch) TokenFetch {
	return func(ctx context.Context) (string, time.Duration, error) {
		token, ttl, err := fetch(ctx)
		if err != nil {
			promTokenRefreshes.WithLabelValues("error").Inc()
			return "", 0, err
		}
		promTokenRefreshes.WithLabelValues("success").Inc()
		return token, ttl, nil
	}
}

// CloudAuth implements the OAuth2 client-credentials flow against the
// Automation Cloud identity server.
type CloudAuth struct {
	settings   *config.Settings
	httpClient *http.Client
	cache      *TokenCache
	log        *logger.Logger
}

// Token returns the cached token or performs a coordinated refresh
func (a *CloudAuth) Token(ctx context.Context) (string, error) {
	return a.cache.EnsureValid(ctx, countRefresh(a.fetch))
}

func (a *CloudAuth) fetch(ctx context.Context) (string, time.Duration, error) {
	tokenURL := a.settings.CloudTokenURL()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", a.settings.ClientID)
	form.Set("client_secret", a.settings.ClientSecret)
	form.Set("scope", OAuthScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, &AuthError{Message: "failed to build token request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", 0, &AuthError{
			Message: fmt.Sprintf("network error reaching token endpoint %s", tokenURL),
			Detail:  err.Error(),
			Cause:   err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		return "", 0, &AuthError{
			Message:    "failed to obtain OAuth2 token, check UIPATH_CLIENT_ID/UIPATH_CLIENT_SECRET",
			StatusCode: resp.StatusCode,
			Detail:     truncate(string(body), authDetailLimit),
		}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.AccessToken == "" {
		return "", 0, &AuthError{
			Message: "token endpoint returned an unreadable response",
			Detail:  truncate(string(body), authDetailLimit),
			Cause:   err,
		}
	}

	lifetime := tokenLifetime(parsed.AccessToken, parsed.ExpiresIn)
	a.log.Info("", "OAuth2 token acquired", map[string]interface{}{
		"expires_in": int(lifetime.Seconds()),
	})
	return parsed.AccessToken, lifetime, nil
}

// tokenLifetime prefers the explicit expires_in, then the JWT exp claim,
// then the assumed cloud lifetime
func tokenLifetime(token string, expiresIn int) time.Duration {
	if expiresIn > 0 {
		return time.Duration(expiresIn) * time.Second
	}
	if parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{}); err == nil {
		if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
			if until := time.Until(exp.Time); until > 0 {
				return until
			}
		}
	}
	return cloudTokenLifetime
}

// BaseHeaders returns the tenant-scoping header
func (a *CloudAuth) BaseHeaders() map[string]string {
	return tenantHeader(a.settings.TenantName)
}

// Invalidate clears the cached token
func (a *CloudAuth) Invalidate() {
	a.cache.Clear()
}

// Type returns "cloud"
func (a *CloudAuth) Type() string { return string(config.AuthModeCloud) }

// OnPremAuth authenticates with username/password against an on-premise
// Orchestrator's /api/Account/Authenticate endpoint.
type OnPremAuth struct {
	settings   *config.Settings
	httpClient *http.Client
	cache      *TokenCache
	log        *logger.Logger
}

// Token returns the cached token or performs a coordinated refresh
func (a *OnPremAuth) Token(ctx context.Context) (string, error) {
	return a.cache.EnsureValid(ctx, countRefresh(a.fetch))
}

func (a *OnPremAuth) fetch(ctx context.Context) (string, time.Duration, error) {
	authURL := a.settings.OnPremAuthURL()

	payload, err := json.Marshal(map[string]string{
		"TenancyName":            a.settings.TenantName,
		"UsernameOrEmailAddress": a.settings.Username,
		"Password":               a.settings.Password,
	})
	if err != nil {
		return "", 0, &AuthError{Message: "failed to encode credentials", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, bytes.NewReader(payload))
	if err != nil {
		return "", 0, &AuthError{Message: "failed to build auth request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", 0, &AuthError{
			Message: fmt.Sprintf("network error reaching auth endpoint %s", authURL),
			Detail:  err.Error(),
			Cause:   err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		return "", 0, &AuthError{
			Message:    "on-premise authentication failed",
			StatusCode: resp.StatusCode,
			Detail:     truncate(string(body), authDetailLimit),
		}
	}

	// HTTP 200 does not imply success: the endpoint reports failures in the
	// body with a success flag, and the token lives in "result"
	var parsed struct {
		Success bool            `json:"success"`
		Result  string          `json:"result"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, &AuthError{
			Message: "auth endpoint returned an unreadable response",
			Detail:  truncate(string(body), authDetailLimit),
			Cause:   err,
		}
	}
	if !parsed.Success || parsed.Result == "" {
		return "", 0, &AuthError{
			Message: "on-premise authentication rejected",
			Detail:  truncate(string(parsed.Error), authDetailLimit),
		}
	}

	a.log.Info("", "on-premise token acquired", map[string]interface{}{
		"expires_in": int(onPremTokenLifetime.Seconds()),
	})
	return parsed.Result, onPremTokenLifetime, nil
}

// BaseHeaders returns the tenant-scoping header
func (a *OnPremAuth) BaseHeaders() map[string]string {
	return tenantHeader(a.settings.TenantName)
}

// Invalidate clears the cached token
func (a *OnPremAuth) Invalidate() {
	a.cache.Clear()
}

// Type returns "on_prem"
func (a *OnPremAuth) Type() string { return string(config.AuthModeOnPrem) }

// PATAuth presents a personal access token verbatim. The token never
// expires on our side, so there is no cache and no refresh.
type PATAuth struct {
	settings *config.Settings
}

// Token returns the configured token
func (a *PATAuth) Token(_ context.Context) (string, error) {
	if a.settings.PAT == "" {
		return "", &AuthError{Message: "UIPATH_PAT is empty"}
	}
	return a.settings.PAT, nil
}

// BaseHeaders returns the tenant-scoping header
func (a *PATAuth) BaseHeaders() map[string]string {
	return tenantHeader(a.settings.TenantName)
}

// Invalidate is a no-op: the token is the credential
func (a *PATAuth) Invalidate() {}

// Type returns "pat"
func (a *PATAuth) Type() string { return string(config.AuthModePAT) }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
