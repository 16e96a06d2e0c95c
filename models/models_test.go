// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJobDropsUnknownFields(t *testing.T) {
	doc := map[string]interface{}{
		"Id":                 float64(42),
		"State":              "Running",
		"ReleaseName":        "InvoiceBot",
		"OrganizationUnitId": float64(7),
		"SomeFutureField":    "ignored",
	}

	var job Job
	require.NoError(t, Decode(doc, &job))
	assert.Equal(t, int64(42), job.ID)
	assert.Equal(t, "Running", job.State)
	assert.Equal(t, "InvoiceBot", job.ReleaseName)
	assert.Equal(t, int64(7), job.FolderID)
}

func TestDecodeSlice(t *testing.T) {
	docs := []map[string]interface{}{
		{"Id": float64(1), "Status": "New"},
		{"Id": float64(2), "Status": "Failed", "RetryNumber": float64(3)},
	}

	items, err := DecodeSlice[QueueItem](docs)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "New", items[0].Status)
	assert.Equal(t, 3, items[1].RetryNumber)
}

func TestTerminalJobStates(t *testing.T) {
	assert.True(t, TerminalJobStates[JobStateSuccessful])
	assert.True(t, TerminalJobStates[JobStateFaulted])
	assert.True(t, TerminalJobStates[JobStateStopped])
	assert.False(t, TerminalJobStates[JobStateRunning])
	assert.False(t, TerminalJobStates[JobStatePending])
}
