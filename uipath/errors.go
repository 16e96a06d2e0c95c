// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package uipath

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error codes attached to OrchestratorError for caller-side classification
const (
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeRateLimited    = "RATE_LIMITED"
	CodeRetryExhausted = "RETRY_EXHAUSTED"
)

// OrchestratorError is the structured error every tool handler receives.
// It carries enough context to build a user-facing message without
// re-parsing the HTTP response.
type OrchestratorError struct {
	Message    string `json:"error"`
	StatusCode int    `json:"status_code,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	Cause      error  `json:"-"`
}

func (e *OrchestratorError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

func (e *OrchestratorError) Unwrap() error {
	return e.Cause
}

// ToJSON renders the error as the JSON payload returned to the MCP client
func (e *OrchestratorError) ToJSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, e.Message)
	}
	return string(b)
}

// AuthError reports a credential-acquisition failure. It is never retried by
// the request executor; the next caller re-triggers acquisition.
type AuthError struct {
	Message    string `json:"error"`
	StatusCode int    `json:"status_code,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Cause      error  `json:"-"`
}

func (e *AuthError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// RetryExhaustedError indicates all configured attempts were consumed
type RetryExhaustedError struct {
	Endpoint string
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed for %s: %v", e.Attempts, e.Endpoint, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}

// IsNotFound reports whether err is a 404 from the Orchestrator
func IsNotFound(err error) bool {
	var oe *OrchestratorError
	return errors.As(err, &oe) && oe.StatusCode == 404
}

// IsAuthError reports whether err is a credential-acquisition failure
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsRetryExhausted reports whether err means the retry budget ran out
func IsRetryExhausted(err error) bool {
	var re *RetryExhaustedError
	return errors.As(err, &re)
}

// AsToolError converts any error into the JSON payload shape tool handlers
// return to the client. Structured errors keep their context; anything else
// is wrapped with just the message.
func AsToolError(err error) string {
	// Checked before OrchestratorError: the exhausted wrapper usually
	// carries one as its last attempt, and errors.As would unwrap to it
	var re *RetryExhaustedError
	if errors.As(err, &re) {
		wrapped := &OrchestratorError{
			Message:   re.Error(),
			ErrorCode: CodeRetryExhausted,
			Endpoint:  re.Endpoint,
		}
		return wrapped.ToJSON()
	}
	var oe *OrchestratorError
	if errors.As(err, &oe) {
		return oe.ToJSON()
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		b, mErr := json.Marshal(ae)
		if mErr == nil {
			return string(b)
		}
	}
	return (&OrchestratorError{Message: err.Error()}).ToJSON()
}
