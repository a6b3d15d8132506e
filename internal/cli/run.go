package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ucscslugworks/bambu-printer-automations/internal/auth"
	"github.com/ucscslugworks/bambu-printer-automations/internal/config"
	"github.com/ucscslugworks/bambu-printer-automations/internal/engine"
	"github.com/ucscslugworks/bambu-printer-automations/internal/history"
	"github.com/ucscslugworks/bambu-printer-automations/internal/metrics"
	"github.com/ucscslugworks/bambu-printer-automations/internal/notify"
	"github.com/ucscslugworks/bambu-printer-automations/internal/printer"
	"github.com/ucscslugworks/bambu-printer-automations/internal/sheets"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the reconciliation loop",
		Long: `Start the reconciliation loop against the configured spreadsheet and
printer fleet.

Configuration comes from BPA_* environment variables. BPA_SPREADSHEET_ID
is required; BPA_FLEET, BPA_ROSTER, BPA_GOOGLE_CREDENTIALS, BPA_GOOGLE_TOKEN,
BPA_HISTORY_DB, BPA_METRICS_ADDR, BPA_NOTIFY_FROM, BPA_CADENCE,
BPA_GRACE_WINDOW, BPA_BOOKING_DURATION, and BPA_TEMP_CEILING all have
defaults.

Example:
  BPA_SPREADSHEET_ID=1aBcD... bambu-automations run --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(rootOpts, cmd)
		},
	}
	return cmd
}

func runDaemon(opts *RootOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	settings, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load settings", err)
	}
	if settings.SpreadsheetID == "" {
		return WrapExitError(ExitCommandError, "BPA_SPREADSHEET_ID is required", nil)
	}

	fleet, err := config.LoadFleet(settings.FleetPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load fleet", err)
	}
	roster, err := auth.LoadRoster(settings.RosterPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load roster", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("connecting to booking store", "spreadsheet", settings.SpreadsheetID)
	acc, err := sheets.New(ctx, settings.CredentialsPath, settings.TokenPath, settings.SpreadsheetID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build sheets client", err)
	}

	// The status table fixes slot order; telemetry sessions must follow it.
	ordered, err := engine.Bootstrap(ctx, acc, fleet.Names())
	if err != nil {
		return WrapExitError(ExitCommandError, "startup validation failed", err)
	}
	slog.Info("fleet validated", "printers", len(ordered))

	printerConfigs := make([]printer.Config, 0, len(ordered))
	for _, name := range ordered {
		p := fleet[name]
		printerConfigs = append(printerConfigs, printer.Config{
			Name:         name,
			Hostname:     p.Hostname,
			AccessCode:   p.AccessCode,
			SerialNumber: p.SerialNumber,
		})
	}
	tel, err := printer.NewManager(printerConfigs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to fleet", err)
	}

	log, err := history.Open(settings.HistoryPath, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history db", err)
	}
	defer func() {
		if closeErr := log.Close(); closeErr != nil {
			slog.Error("error closing history db", "error", closeErr)
		}
	}()

	collector := metrics.NewCollector()
	if settings.MetricsAddr != "" {
		go func() {
			slog.Info("metrics listening", "addr", settings.MetricsAddr)
			if serveErr := collector.Serve(settings.MetricsAddr); serveErr != nil {
				slog.Error("metrics server stopped", "error", serveErr)
			}
		}()
	}

	var notifier engine.Notifier
	if settings.NotifyFrom != "" {
		sender, senderErr := notify.NewGmailSender(ctx, settings.CredentialsPath, settings.GmailTokenPath, settings.NotifyFrom)
		if senderErr != nil {
			return WrapExitError(ExitCommandError, "failed to build gmail sender", senderErr)
		}
		notifier = notify.New(sender, logger)
	}

	cfg := engine.DefaultConfig()
	cfg.Cadence = settings.Cadence
	cfg.GraceWindow = settings.GraceWindow
	cfg.BookingDuration = settings.BookingDuration
	cfg.TempCeiling = settings.TempCeiling
	cfg.DeviceCount = len(ordered)

	eng := engine.New(cfg, engine.Deps{
		Accessor:  acc,
		Telemetry: tel,
		Oracle:    roster,
		Notifier:  notifier,
		Recorder:  log,
		Metrics:   collector,
	})

	slog.Info("reconciler starting", "cadence", cfg.Cadence, "printers", len(ordered))
	fmt.Fprintln(cmd.OutOrStdout(), "Reconciler started. Press Ctrl-C to stop.")

	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		return WrapExitError(ExitFailure, "reconciler error", err)
	}

	slog.Info("reconciler stopped gracefully")
	return nil
}
