package printer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMergesPartialPayloads(t *testing.T) {
	var r Report
	now := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)

	require.NoError(t, r.apply([]byte(`{"print":{"gcode_state":"RUNNING","mc_remaining_time":90,"nozzle_target_temper":220.0}}`), now))
	assert.Equal(t, StateRunning, r.State)
	assert.Equal(t, 90, r.MinutesRemaining)
	assert.Equal(t, 220.0, r.ToolTempTarget)

	// A later partial diff only touches the fields it carries.
	later := now.Add(time.Minute)
	require.NoError(t, r.apply([]byte(`{"print":{"mc_remaining_time":89}}`), later))
	assert.Equal(t, StateRunning, r.State)
	assert.Equal(t, 89, r.MinutesRemaining)
	assert.Equal(t, later, r.LastMessage)
}

func TestApplyStartTime(t *testing.T) {
	var r Report
	now := time.Now()

	// The device reports the job start as an epoch-seconds string.
	require.NoError(t, r.apply([]byte(`{"print":{"gcode_start_time":"1772456400"}}`), now))
	assert.Equal(t, int64(1772456400/60), r.StartMinute)
	assert.Equal(t, time.Unix(1772456400, 0).Truncate(time.Minute), r.StartedAt())
}

func TestApplyNonPrintMessageRefreshesLiveness(t *testing.T) {
	var r Report
	now := time.Now()

	require.NoError(t, r.apply([]byte(`{"system":{"command":"ledctrl"}}`), now))
	assert.Equal(t, now, r.LastMessage)
	assert.Equal(t, StateUnknown, r.State)
}

func TestApplyRejectsGarbage(t *testing.T) {
	var r Report
	assert.Error(t, r.apply([]byte(`not json`), time.Now()))
	assert.Error(t, r.apply([]byte(`{"print":{"gcode_start_time":"soon"}}`), time.Now()))
}

func TestGCodeStateActive(t *testing.T) {
	assert.True(t, StateRunning.Active())
	assert.True(t, StatePaused.Active())
	assert.False(t, StateIdle.Active())
	assert.False(t, StateFinished.Active())
	assert.False(t, StateFailed.Active())
	assert.False(t, StateUnknown.Active())
}

func TestReportStale(t *testing.T) {
	now := time.Now()
	assert.True(t, Report{}.Stale(now, time.Minute))
	assert.True(t, Report{LastMessage: now.Add(-2 * time.Minute)}.Stale(now, time.Minute))
	assert.False(t, Report{LastMessage: now.Add(-30 * time.Second)}.Stale(now, time.Minute))
}

func TestStartedAtUnknown(t *testing.T) {
	assert.True(t, Report{}.StartedAt().IsZero())
}

func TestDialRejectsIncompleteConfig(t *testing.T) {
	_, err := Dial(Config{Name: "Alpha"})
	require.Error(t, err)
}
