// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package uipath

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCacheFetchesOnce(t *testing.T) {
	cache := NewTokenCache()
	var calls int32
	fetch := func(ctx context.Context) (string, time.Duration, error) {
		atomic.AddInt32(&calls, 1)
		return "tok-1", time.Hour, nil
	}

	for i := 0; i < 5; i++ {
		token, err := cache.EnsureValid(context.Background(), fetch)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTokenCacheRefreshBufferBoundary(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	cache := &TokenCache{
		refreshBuffer: DefaultRefreshBuffer,
		now:           func() time.Time { return now },
	}
	cache.Set("tok", 10*time.Minute)

	// Still comfortably inside the validity window
	now = base.Add(10*time.Minute - 61*time.Second)
	assert.True(t, cache.Valid())

	// At expiry minus the buffer the token counts as stale
	now = base.Add(10*time.Minute - 60*time.Second)
	assert.False(t, cache.Valid())
}

func TestTokenCacheSingleRefreshUnderContention(t *testing.T) {
	cache := NewTokenCache()
	var calls int32
	fetch := func(ctx context.Context) (string, time.Duration, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return "tok-contended", time.Hour, nil
	}

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := cache.EnsureValid(context.Background(), fetch)
			assert.NoError(t, err)
			assert.Equal(t, "tok-contended", token)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls),
		"all concurrent callers should share one refresh")
}

func TestTokenCacheClearsOnFetchFailure(t *testing.T) {
	cache := NewTokenCache()
	cache.Set("stale", -time.Minute)

	fetchErr := errors.New("identity server down")
	_, err := cache.EnsureValid(context.Background(), func(ctx context.Context) (string, time.Duration, error) {
		return "", 0, fetchErr
	})
	require.ErrorIs(t, err, fetchErr)
	assert.False(t, cache.Valid())

	// The next caller retries from scratch and can succeed
	token, err := cache.EnsureValid(context.Background(), func(ctx context.Context) (string, time.Duration, error) {
		return "tok-2", time.Hour, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
}

func TestTokenCacheClear(t *testing.T) {
	cache := NewTokenCache()
	cache.Set("tok", time.Hour)
	require.True(t, cache.Valid())

	cache.Clear()
	assert.False(t, cache.Valid())
}
