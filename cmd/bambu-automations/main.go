// Package main is the entry point for the bambu-automations CLI.
package main

import (
	"fmt"
	"os"

	"github.com/ucscslugworks/bambu-printer-automations/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
