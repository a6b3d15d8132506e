package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, s.Cadence)
	assert.Equal(t, 10*time.Minute, s.GraceWindow)
	assert.Equal(t, 4*time.Hour, s.BookingDuration)
	assert.Equal(t, 250.0, s.TempCeiling)
	assert.Equal(t, "printers.json", s.FleetPath)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BPA_SPREADSHEET_ID", "sheet-123")
	t.Setenv("BPA_CADENCE", "30s")
	t.Setenv("BPA_TEMP_CEILING", "230")
	t.Setenv("BPA_METRICS_ADDR", ":9090")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sheet-123", s.SpreadsheetID)
	assert.Equal(t, 30*time.Second, s.Cadence)
	assert.Equal(t, 230.0, s.TempCeiling)
	assert.Equal(t, ":9090", s.MetricsAddr)
}

func TestLoadBadDuration(t *testing.T) {
	t.Setenv("BPA_CADENCE", "soonish")

	_, err := Load()
	require.Error(t, err)
}
