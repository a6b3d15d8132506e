package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

// Scenario defines one conformance test: an initial spreadsheet state, a
// roster, and a sequence of cycles driving the engine.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the clock's initial instant, in sheet time format.
	Start string `yaml:"start"`

	// Printers lists the fleet's printer names in status-table row order.
	Printers []string `yaml:"printers"`

	// Staff lists identities with staff authority.
	Staff []string `yaml:"staff,omitempty"`

	// Certified lists identities holding the printing capability.
	Certified []string `yaml:"certified,omitempty"`

	// Grace overrides the grace window (duration string), default 10m.
	Grace string `yaml:"grace,omitempty"`

	// Booking holds the initial booking queue rows.
	Booking []BookingRow `yaml:"booking,omitempty"`

	// Status holds initial slot state overrides; printers without an
	// entry start Available and empty.
	Status []StatusRow `yaml:"status,omitempty"`

	// Confirmations holds initial start-confirmation log rows.
	Confirmations []ConfirmationRow `yaml:"confirmations,omitempty"`

	// Cycles drive the engine, one entry per cycle.
	Cycles []Cycle `yaml:"cycles"`
}

// BookingRow is one booking queue row.
type BookingRow struct {
	User   string `yaml:"user"`
	Status string `yaml:"status,omitempty"` // sheet status text; empty = new row
}

// StatusRow overrides one printer's initial stored state.
type StatusRow struct {
	Printer string `yaml:"printer"`
	Status  string `yaml:"status"`
	User    string `yaml:"user,omitempty"`
	Start   string `yaml:"start,omitempty"`
	End     string `yaml:"end,omitempty"`
}

// ConfirmationRow is one start-confirmation log row.
type ConfirmationRow struct {
	Timestamp string `yaml:"timestamp"`
	User      string `yaml:"user"`
	Printer   string `yaml:"printer"`
	Handled   bool   `yaml:"handled,omitempty"`
}

// Cycle is one engine cycle: the clock advances, external changes land,
// then the engine runs once.
type Cycle struct {
	// Advance is how far the clock moves before this cycle, default 10s.
	Advance string `yaml:"advance,omitempty"`

	// Telemetry replaces the named printers' cached reports. Printers
	// not named keep their previous report.
	Telemetry map[string]Frame `yaml:"telemetry,omitempty"`

	// Book appends rows to the booking queue before the cycle.
	Book []BookingRow `yaml:"book,omitempty"`

	// Confirmations appends rows to the confirmation log before the cycle.
	Confirmations []ConfirmationRow `yaml:"confirmations,omitempty"`
}

// Frame is one printer's telemetry for a cycle.
type Frame struct {
	State        string  `yaml:"state"`
	Remaining    int     `yaml:"remaining,omitempty"`     // minutes
	NozzleTarget float64 `yaml:"nozzle_target,omitempty"` // degrees C
	Started      string  `yaml:"started,omitempty"`       // sheet time format
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so a typo fails loudly instead of silently skipping a step.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Printers) == 0 {
		return fmt.Errorf("printers list is required and must be non-empty")
	}
	if len(s.Cycles) == 0 {
		return fmt.Errorf("cycles list is required and must be non-empty")
	}
	if _, err := s.startTime(); err != nil {
		return err
	}
	if s.Grace != "" {
		if _, err := time.ParseDuration(s.Grace); err != nil {
			return fmt.Errorf("grace: %w", err)
		}
	}

	known := make(map[string]bool, len(s.Printers))
	for _, name := range s.Printers {
		if name == "" {
			return fmt.Errorf("printer names must be non-empty")
		}
		if known[name] {
			return fmt.Errorf("duplicate printer %q", name)
		}
		known[name] = true
	}
	for i, row := range s.Status {
		if !known[row.Printer] {
			return fmt.Errorf("status[%d]: unknown printer %q", i, row.Printer)
		}
	}
	for i, c := range s.Cycles {
		if c.Advance != "" {
			if _, err := time.ParseDuration(c.Advance); err != nil {
				return fmt.Errorf("cycles[%d].advance: %w", i, err)
			}
		}
		for name := range c.Telemetry {
			if !known[name] {
				return fmt.Errorf("cycles[%d]: telemetry for unknown printer %q", i, name)
			}
		}
	}
	return nil
}

func (s *Scenario) startTime() (time.Time, error) {
	ts, err := time.ParseInLocation(sheet.SheetTimeFormat, s.Start, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("start: %w", err)
	}
	return ts, nil
}
