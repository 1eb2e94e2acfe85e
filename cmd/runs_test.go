package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hazardmaps/floodrisk-cli/internal/history"
)

func TestFormatHistory(t *testing.T) {
	entries := []history.Entry{
		{
			ID:        "8a7f3c21-90ab-4cde-8f12-3456789abcde",
			Command:   "ingest",
			Args:      []string{"dams.geojson", "--yes"},
			Status:    history.StatusOK,
			Detail:    "2243 features into utah_dams",
			Duration:  3200 * time.Millisecond,
			StartedAt: time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC),
		},
		{
			ID:        "11112222-3333-4444-5555-666677778888",
			Command:   "risk report",
			Status:    history.StatusFailed,
			Detail:    "connection refused",
			Duration:  42 * time.Millisecond,
			StartedAt: time.Date(2025, 6, 12, 9, 31, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	formatHistory(&buf, entries)
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "COMMAND")
	assert.Contains(t, out, "8a7f3c21")
	assert.NotContains(t, out, "8a7f3c21-90ab")
	assert.Contains(t, out, "ingest dams.geojson --yes")
	assert.Contains(t, out, history.StatusOK)
	assert.Contains(t, out, history.StatusFailed)
	assert.Contains(t, out, "2025-06-12 09:30")
	assert.Contains(t, out, "3.2s")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "8a7f3c21", truncateID("8a7f3c21-90ab-4cde-8f12-3456789abcde"))
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "", truncateID(""))
}
