// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package uipath

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectionServer serves total items through $top/$skip windowing and
// counts requests
func collectionServer(total int, requests *int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requests++
		top, _ := strconv.Atoi(r.URL.Query().Get("$top"))
		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))

		var value []interface{}
		for i := skip; i < skip+top && i < total; i++ {
			value = append(value, Document{"Id": float64(i), "Name": fmt.Sprintf("item-%d", i)})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"@odata.count": total,
			"value":        value,
		})
	}))
}

func TestPagerWalksPages(t *testing.T) {
	requests := 0
	server := collectionServer(25, &requests)
	defer server.Close()

	client := newTestClient(server)
	pager := NewPager(client, "QueueItems", nil, Scope{}, 10, 0)

	var sizes []int
	for {
		page, err := pager.Next(context.Background())
		require.NoError(t, err)
		if page == nil {
			break
		}
		sizes = append(sizes, len(page))
	}

	assert.Equal(t, []int{10, 10, 5}, sizes)
	assert.Equal(t, 3, requests, "the short final page must end pagination without a probe request")
	assert.True(t, pager.Done())

	// Further calls stay terminal and fetch nothing
	page, err := pager.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, page)
	assert.Equal(t, 3, requests)
}

func TestPagerMaxItemsTruncation(t *testing.T) {
	requests := 0
	server := collectionServer(100, &requests)
	defer server.Close()

	client := newTestClient(server)
	pager := NewPager(client, "Jobs", nil, Scope{}, 10, 12)

	items, err := pager.CollectAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 12)
	// The final window is narrowed to the two remaining items
	assert.Equal(t, 2, requests)
}

func TestPagerExactMultiple(t *testing.T) {
	requests := 0
	server := collectionServer(20, &requests)
	defer server.Close()

	client := newTestClient(server)
	pager := NewPager(client, "Jobs", nil, Scope{}, 10, 0)

	items, err := pager.CollectAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 20)
	// An exact multiple needs one empty page to detect the end
	assert.Equal(t, 3, requests)
}

func TestPagerSinglePage(t *testing.T) {
	requests := 0
	server := collectionServer(4, &requests)
	defer server.Close()

	client := newTestClient(server)
	pager := NewPager(client, "Folders", nil, Scope{}, 10, 0)

	items, err := pager.CollectAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 4)
	assert.Equal(t, 1, requests)
}

func TestPagerClampsToMaxPageSize(t *testing.T) {
	var gotTop string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTop = r.URL.Query().Get("$top")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": []interface{}{}})
	}))
	defer server.Close()

	client := newTestClient(server)
	pager := NewPager(client, "Jobs", nil, Scope{}, 5000, 0)

	_, err := pager.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000", gotTop)
}

func TestPagerPreservesFilter(t *testing.T) {
	var gotFilter string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("$filter")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": []interface{}{}})
	}))
	defer server.Close()

	client := newTestClient(server)
	params := NewODataParams().Filter("Status eq 'New'")
	pager := NewPager(client, "QueueItems", params, Scope{}, 10, 0)

	_, err := pager.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Status eq 'New'", gotFilter)
}
