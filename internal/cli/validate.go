package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ucscslugworks/bambu-printer-automations/internal/auth"
	"github.com/ucscslugworks/bambu-printer-automations/internal/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate fleet and roster files without connecting",
		Long: `Validate the printer fleet definition and the authorization roster.

Checks the fleet file against the embedded schema and parses the roster.
Nothing is contacted; useful before deploying a config change.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	settings, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load settings", err)
	}

	fleet, err := config.LoadFleet(settings.FleetPath)
	if err != nil {
		return WrapExitError(ExitFailure, "fleet validation failed", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "fleet: %d printers ok (%s)\n", len(fleet), settings.FleetPath)
	if opts.Verbose {
		for _, name := range fleet.Names() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s -> %s\n", name, fleet[name].Hostname)
		}
	}

	if _, err := auth.LoadRoster(settings.RosterPath); err != nil {
		return WrapExitError(ExitFailure, "roster validation failed", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "roster: ok (%s)\n", settings.RosterPath)

	return nil
}
