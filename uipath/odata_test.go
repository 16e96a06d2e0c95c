// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package uipath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestODataParamsBuild(t *testing.T) {
	params := NewODataParams().
		Top(50).
		Skip(100).
		Filter("State eq 'Running'").
		Select("Id", "State", "StartTime").
		OrderBy("StartTime", "desc").
		Expand("Robot", "Release").
		Count().
		Build()

	assert.Equal(t, map[string]string{
		"$top":     "50",
		"$skip":    "100",
		"$filter":  "State eq 'Running'",
		"$select":  "Id,State,StartTime",
		"$orderby": "StartTime desc",
		"$expand":  "Robot,Release",
		"$count":   "true",
	}, params)
}

func TestODataParamsEmptyBuild(t *testing.T) {
	assert.Empty(t, NewODataParams().Build())
}

func TestODataParamsBuildIsSnapshot(t *testing.T) {
	builder := NewODataParams().Top(10)
	first := builder.Build()

	builder.Top(99)
	assert.Equal(t, "10", first["$top"], "earlier snapshot must not change")
	assert.Equal(t, "99", builder.Build()["$top"])
}

func TestODataParamsOverwrite(t *testing.T) {
	params := NewODataParams().Filter("a eq 1").Filter("b eq 2").Build()
	assert.Equal(t, "b eq 2", params["$filter"])
	assert.Len(t, params, 1)
}
