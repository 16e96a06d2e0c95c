// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package uipath

import (
	"fmt"
	"strings"
)

// ODataParams is a fluent builder for OData v4 query parameters.
//
//	params := NewODataParams().Top(100).Skip(0).Filter("State eq 'Running'").Build()
//	// map[string]string{"$top": "100", "$skip": "0", "$filter": "State eq 'Running'"}
//
// Filter expressions are opaque strings; the caller is responsible for
// correct quoting of literals in the Orchestrator's expression language.
type ODataParams struct {
	params map[string]string
}

// NewODataParams creates an empty builder
func NewODataParams() *ODataParams {
	return &ODataParams{params: make(map[string]string)}
}

// Top caps the number of results
func (p *ODataParams) Top(n int) *ODataParams {
	p.params["$top"] = fmt.Sprintf("%d", n)
	return p
}

// Skip sets the result offset
func (p *ODataParams) Skip(n int) *ODataParams {
	p.params["$skip"] = fmt.Sprintf("%d", n)
	return p
}

// Filter sets the filter expression
func (p *ODataParams) Filter(expr string) *ODataParams {
	p.params["$filter"] = expr
	return p
}

// Select sets the field projection list
func (p *ODataParams) Select(fields ...string) *ODataParams {
	p.params["$select"] = strings.Join(fields, ",")
	return p
}

// OrderBy sets the sort key and direction ("asc" or "desc")
func (p *ODataParams) OrderBy(field, direction string) *ODataParams {
	p.params["$orderby"] = field + " " + direction
	return p
}

// Expand sets the relation expansion list
func (p *ODataParams) Expand(relations ...string) *ODataParams {
	p.params["$expand"] = strings.Join(relations, ",")
	return p
}

// Count requests an @odata.count in the response envelope
func (p *ODataParams) Count() *ODataParams {
	p.params["$count"] = "true"
	return p
}

// Build returns an immutable snapshot of the accumulated parameters
func (p *ODataParams) Build() map[string]string {
	out := make(map[string]string, len(p.params))
	for k, v := range p.params {
		out[k] = v
	}
	return out
}
