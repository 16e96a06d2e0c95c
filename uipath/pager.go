// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package uipath

import (
	"context"
)

// CollectAllCap bounds how many items CollectAll will accumulate before
// stopping, regardless of how many the server reports
const CollectAllCap = 10000

// Pager walks an OData collection with $top/$skip offset pagination.
// A page shorter than the requested size means the collection is
// exhausted; no extra probe request is made.
type Pager struct {
	client   *Client
	entity   string
	params   *ODataParams
	scope    Scope
	pageSize int
	maxItems int

	skip      int
	delivered int
	done      bool
}

// NewPager creates a pager over GET {base}/odata/{entity}. The params
// builder's own Top/Skip are overridden per page; maxItems <= 0 means
// unbounded.
func NewPager(client *Client, entity string, params *ODataParams, scope Scope, pageSize, maxItems int) *Pager {
	if params == nil {
		params = NewODataParams()
	}
	if pageSize <= 0 {
		pageSize = client.settings.DefaultPageSize
	}
	if pageSize > client.settings.MaxPageSize {
		pageSize = client.settings.MaxPageSize
	}
	return &Pager{
		client:   client,
		entity:   entity,
		params:   params,
		scope:    scope,
		pageSize: pageSize,
		maxItems: maxItems,
	}
}

// Next fetches the next page. It returns nil once the collection is
// exhausted or the item limit has been reached.
func (p *Pager) Next(ctx context.Context) ([]Document, error) {
	if p.done {
		return nil, nil
	}

	size := p.pageSize
	if p.maxItems > 0 {
		remaining := p.maxItems - p.delivered
		if remaining <= 0 {
			p.done = true
			return nil, nil
		}
		if remaining < size {
			size = remaining
		}
	}

	query := p.params.Top(size).Skip(p.skip).Build()
	doc, err := p.client.Get(ctx, p.entity, query, p.scope)
	if err != nil {
		return nil, err
	}

	items := Items(doc)
	p.skip += len(items)
	p.delivered += len(items)
	if len(items) < size {
		p.done = true
	}
	if p.maxItems > 0 && p.delivered >= p.maxItems {
		p.done = true
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

// Done reports whether the pager has reached the end of the collection
func (p *Pager) Done() bool { return p.done }

// CollectAll drains the pager into a single slice, stopping at
// CollectAllCap items
func (p *Pager) CollectAll(ctx context.Context) ([]Document, error) {
	var out []Document
	for {
		page, err := p.Next(ctx)
		if err != nil {
			return nil, err
		}
		if page == nil {
			return out, nil
		}
		out = append(out, page...)
		if len(out) >= CollectAllCap {
			return out[:CollectAllCap], nil
		}
	}
}
