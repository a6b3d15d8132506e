package cli

import (
	"runtime/debug"

	"github.com/spf13/cobra"
)

// NewVersionCommand reports the build version embedded by the Go
// toolchain, or "devel" for a non-module build.
func NewVersionCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			version := "devel"
			if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
				version = info.Main.Version
			}
			cmd.Println("bambu-automations " + version)
		},
	}
}
