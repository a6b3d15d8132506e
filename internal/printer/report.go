package printer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// GCodeState is the printer-reported job state.
type GCodeState string

const (
	StateRunning  GCodeState = "RUNNING"
	StatePaused   GCodeState = "PAUSE"
	StateIdle     GCodeState = "IDLE"
	StateFinished GCodeState = "FINISH"
	StateFailed   GCodeState = "FAILED"
	StateUnknown  GCodeState = ""
)

// Active reports whether the state counts as printing activity.
func (s GCodeState) Active() bool {
	return s == StateRunning || s == StatePaused
}

// Report is one device's last-known operational fields. Reads are always
// non-blocking snapshots of the session cache; a zero Report means no
// message has arrived yet.
type Report struct {
	State            GCodeState
	ToolTempTarget   float64
	MinutesRemaining int
	StartMinute      int64 // job start, minutes since the Unix epoch; 0 = unknown
	LastMessage      time.Time
}

// StartedAt converts the minute-resolution start stamp to a time, or the
// zero time when the printer has not reported one.
func (r Report) StartedAt() time.Time {
	if r.StartMinute == 0 {
		return time.Time{}
	}
	return time.Unix(r.StartMinute*60, 0)
}

// Stale reports whether no message has arrived within d.
func (r Report) Stale(now time.Time, d time.Duration) bool {
	return r.LastMessage.IsZero() || now.Sub(r.LastMessage) > d
}

// The device pushes partial "print" payloads over MQTT: only changed
// fields are present, so every field is a pointer and apply merges.
type printPayload struct {
	GCodeState         *string  `json:"gcode_state"`
	RemainingTime      *int     `json:"mc_remaining_time"`
	NozzleTargetTemper *float64 `json:"nozzle_target_temper"`
	GCodeStartTime     *string  `json:"gcode_start_time"`
}

type reportMessage struct {
	Print *printPayload `json:"print"`
}

// apply merges one report message into the cached fields. Messages with
// no print payload still refresh the liveness stamp.
func (r *Report) apply(data []byte, now time.Time) error {
	var msg reportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	r.LastMessage = now
	if msg.Print == nil {
		return nil
	}
	if msg.Print.GCodeState != nil {
		r.State = GCodeState(*msg.Print.GCodeState)
	}
	if msg.Print.RemainingTime != nil {
		r.MinutesRemaining = *msg.Print.RemainingTime
	}
	if msg.Print.NozzleTargetTemper != nil {
		r.ToolTempTarget = *msg.Print.NozzleTargetTemper
	}
	if msg.Print.GCodeStartTime != nil {
		secs, err := strconv.ParseInt(*msg.Print.GCodeStartTime, 10, 64)
		if err != nil {
			return fmt.Errorf("decode gcode_start_time %q: %w", *msg.Print.GCodeStartTime, err)
		}
		r.StartMinute = secs / 60
	}
	return nil
}
