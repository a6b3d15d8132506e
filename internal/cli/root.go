// Package cli wires the reconciler's commands together.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the root command for the bambu-automations CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "bambu-automations",
		Short: "Reservation and telemetry reconciler for a Bambu Lab printer fleet",
		Long: `bambu-automations keeps a spreadsheet-backed booking system and a fleet
of Bambu Lab printers in agreement: it assigns printers to waiting
requesters, confirms starts, cancels unauthorized or overheated prints,
and marks finished reservations done.`,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}
