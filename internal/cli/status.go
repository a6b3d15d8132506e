package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ucscslugworks/bambu-printer-automations/internal/config"
	"github.com/ucscslugworks/bambu-printer-automations/internal/history"
	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
	"github.com/ucscslugworks/bambu-printer-automations/internal/sheets"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	History int
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the fleet's current booking state",
		Long: `Read the device status table and print one line per printer, plus the
most recent transitions from the local history log.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.History, "history", 10, "number of recent transitions to show (0 to skip)")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	settings, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load settings", err)
	}
	if settings.SpreadsheetID == "" {
		return WrapExitError(ExitCommandError, "BPA_SPREADSHEET_ID is required", nil)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	acc, err := sheets.New(ctx, settings.CredentialsPath, settings.TokenPath, settings.SpreadsheetID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build sheets client", err)
	}
	t, err := acc.ReadTable(ctx, sheet.TableStatus)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read status table", err)
	}
	status, err := sheet.ParseStatusSheet(t)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to parse status table", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRINTER\tSTATUS\tUSER\tSTART\tEND")
	for _, slot := range status.Slots {
		start, end := "-", "-"
		if !slot.StartTime.IsZero() {
			start = slot.StartTime.Format(sheet.SheetTimeFormat)
		}
		if !slot.EndTime.IsZero() {
			end = slot.EndTime.Format(sheet.SheetTimeFormat)
		}
		user := slot.User
		if user == "" {
			user = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", slot.Name, slot.Status, user, start, end)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if opts.History <= 0 {
		return nil
	}

	log, err := history.Open(settings.HistoryPath, nil)
	if err != nil {
		// No local history yet is not worth failing the whole command.
		fmt.Fprintf(cmd.ErrOrStderr(), "history unavailable: %v\n", err)
		return nil
	}
	defer log.Close()

	recent, err := log.Recent(ctx, opts.History)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read history", err)
	}
	if len(recent) == 0 {
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nRecent transitions:")
	for _, tr := range recent {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s cycle=%d %s %s: %s -> %s",
			tr.At.Format(sheet.SheetTimeFormat), tr.Cycle, tr.Kind, tr.Key, tr.From, tr.To)
		if tr.Detail != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " (%s)", tr.Detail)
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
