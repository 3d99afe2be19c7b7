package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/state"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []state.Run{
		{
			ID:         "abc12345-6789-0000-0000-000000000000",
			StartedAt:  now,
			FinishedAt: now.Add(2 * time.Minute),
			Succeeded:  12,
			Failed:     1,
			Skipped:    40,
		},
		{
			ID:         "def12345-6789-0000-0000-000000000000",
			StartedAt:  now.Add(-time.Hour),
			FinishedAt: now.Add(-time.Hour + 5*time.Second),
			Succeeded:  2,
			DryRun:     true,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "STARTED")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "2m0s")
	assert.Contains(t, output, "live")
	assert.Contains(t, output, "dry-run")
}

func TestRunMode(t *testing.T) {
	assert.Equal(t, "live", runMode(state.Run{}))
	assert.Equal(t, "dry-run", runMode(state.Run{DryRun: true}))
	assert.Equal(t, "interrupted", runMode(state.Run{DryRun: true, Interrupted: true}))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000"))
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "", truncateID(""))
}
