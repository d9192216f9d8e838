package main

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hemalink/internal/bloodbank/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORE_BACKEND", "memory")
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"hemalinkctl"}, args...))
	return out.String(), err
}

func TestSeed(t *testing.T) {
	out, err := run(t, "seed")
	require.NoError(t, err)
	assert.JSONEq(t, `{"seeded":true,"backend":"memory"}`, out)
}

func TestMatch(t *testing.T) {
	t.Run("prints an empty report on a fresh store", func(t *testing.T) {
		out, err := run(t, "match", "--blood-group", "O-", "--units", "2")
		require.NoError(t, err)

		var report models.MatchReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, models.ONegative, report.BloodGroup)
		assert.Equal(t, 2, report.UnitsNeeded)
		assert.False(t, report.Fulfillable)
	})

	t.Run("rejects an unknown group", func(t *testing.T) {
		_, err := run(t, "match", "-g", "Z+")
		assert.Error(t, err)
	})

	t.Run("rejects zero units", func(t *testing.T) {
		_, err := run(t, "match", "-g", "A+", "--units", "0")
		assert.Error(t, err)
	})
}

func TestInventoryAndStats(t *testing.T) {
	out, err := run(t, "inventory")
	require.NoError(t, err)
	var entries []models.InventoryEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Len(t, entries, len(models.BloodGroups))

	out, err = run(t, "stats")
	require.NoError(t, err)
	var stats models.Statistics
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Len(t, stats.CriticalGroups, len(models.BloodGroups))
}
