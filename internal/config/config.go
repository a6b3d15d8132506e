// Package config loads runtime settings from the environment and the
// printer fleet definition from disk, validating the fleet against an
// embedded CUE schema before anything connects to a device.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings are the daemon's environment-driven knobs. Command-line flags
// override individual fields after parsing.
type Settings struct {
	SpreadsheetID   string        `env:"BPA_SPREADSHEET_ID"`
	CredentialsPath string        `env:"BPA_GOOGLE_CREDENTIALS" envDefault:"credentials.json"`
	TokenPath       string        `env:"BPA_GOOGLE_TOKEN" envDefault:"token.json"`
	FleetPath       string        `env:"BPA_FLEET" envDefault:"printers.json"`
	RosterPath      string        `env:"BPA_ROSTER" envDefault:"roster.yaml"`
	HistoryPath     string        `env:"BPA_HISTORY_DB" envDefault:"data/history.db"`
	MetricsAddr     string        `env:"BPA_METRICS_ADDR"`
	Cadence         time.Duration `env:"BPA_CADENCE" envDefault:"10s"`
	GraceWindow     time.Duration `env:"BPA_GRACE_WINDOW" envDefault:"10m"`
	BookingDuration time.Duration `env:"BPA_BOOKING_DURATION" envDefault:"4h"`
	TempCeiling     float64       `env:"BPA_TEMP_CEILING" envDefault:"250"`
	NotifyFrom      string        `env:"BPA_NOTIFY_FROM"`
	GmailTokenPath  string        `env:"BPA_GMAIL_TOKEN" envDefault:"gmail_token.json"`
}

// Load parses settings from the environment.
func Load() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}
