// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package uipath

import (
	"context"
	"sync"
	"time"
)

// DefaultRefreshBuffer is subtracted from a token's expiry when testing
// validity, so a refresh happens before the Orchestrator's clock or an
// in-flight request can see the token as stale.
const DefaultRefreshBuffer = 60 * time.Second

// TokenCache holds the current bearer token and its expiry, shared by all
// concurrent callers in the process.
//
// EnsureValid implements double-checked locking: among N callers that all
// observe a stale token, exactly one performs the fetch; the rest wait on
// the lock and then read the refreshed value. The valid-token fast path
// takes only a read lock.
type TokenCache struct {
	mu            sync.RWMutex
	token         string
	expiresAt     time.Time
	refreshBuffer time.Duration
	now           func() time.Time // swappable for tests
}

// NewTokenCache creates an empty cache with the default refresh buffer
func NewTokenCache() *TokenCache {
	return &TokenCache{
		refreshBuffer: DefaultRefreshBuffer,
		now:           time.Now,
	}
}

// TokenFetch obtains a fresh token and its lifetime
type TokenFetch func(ctx context.Context) (token string, expiresIn time.Duration, err error)

// EnsureValid returns the cached token if still valid, otherwise performs a
// single coordinated refresh via fetch. On fetch failure the cache is
// cleared so the next caller retries from scratch.
func (c *TokenCache) EnsureValid(ctx context.Context, fetch TokenFetch) (string, error) {
	c.mu.RLock()
	if c.validLocked() {
		token := c.token
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while this one waited for the lock
	if c.validLocked() {
		return c.token, nil
	}

	token, expiresIn, err := fetch(ctx)
	if err != nil {
		c.token = ""
		c.expiresAt = time.Time{}
		return "", err
	}

	c.token = token
	c.expiresAt = c.now().Add(expiresIn)
	return token, nil
}

// validLocked reports validity; caller must hold mu (read or write)
func (c *TokenCache) validLocked() bool {
	return c.token != "" && c.now().Before(c.expiresAt.Add(-c.refreshBuffer))
}

// Valid reports whether the cached token passes the validity check
func (c *TokenCache) Valid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.validLocked()
}

// Set stores a token with the given lifetime. Primarily useful for testing.
func (c *TokenCache) Set(token string, expiresIn time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = c.now().Add(expiresIn)
}

// Clear forces the cache invalid, e.g. after the Orchestrator rejected the
// token with a 401
func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}
