package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/jobsync/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	runs := []model.RunRecord{
		{
			ID:        "a1b2c3d4-0000-0000-0000-000000000000",
			SessionID: "daily-20260301",
			Offset:    0,
			ChunkSize: 25,
			Status:    model.RunStatusComplete,
			Stats:     model.ChunkStats{CompaniesEnriched: 20, TotalContactsCreated: 85},
			CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		},
		{
			ID:        "e5f6a7b8-0000-0000-0000-000000000000",
			SessionID: "daily-20260301",
			Offset:    25,
			ChunkSize: 25,
			Status:    model.RunStatusFailed,
			CreatedAt: time.Date(2026, 3, 1, 9, 32, 0, 0, time.UTC),
		},
	}

	var sb strings.Builder
	formatRunsList(&sb, runs)
	out := sb.String()

	assert.Contains(t, out, "a1b2c3d4")
	assert.Contains(t, out, "daily-20260301")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "85")
	assert.Contains(t, out, "2026-03-01 09:30")
	assert.NotContains(t, out, "a1b2c3d4-0000")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "a1b2c3d4", truncateID("a1b2c3d4-0000-0000"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "scrape", "enrich", "drive", "runs"} {
		assert.True(t, names[want], "command %q not registered", want)
	}
}
