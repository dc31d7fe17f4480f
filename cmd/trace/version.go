package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracehq/trace/internal/storage/sqlite"
)

var (
	// Version is the current version of trace (overridden by ldflags at build time)
	Version = "0.4.0"
	// Build can be set via ldflags at compile time
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print version information. With --verbose, also list the schema
migrations this build applies when opening a database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			info := map[string]interface{}{
				"version": Version,
				"build":   Build,
			}
			if verbose {
				info["migrations"] = sqlite.MigrationNames()
			}
			return outputJSON(cmd, info)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "trace version %s (%s)\n", Version, Build)
		if verbose {
			fmt.Fprintln(out, "Schema migrations:")
			for i, name := range sqlite.MigrationNames() {
				fmt.Fprintf(out, "  %03d %s\n", i+1, name)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
