package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracehq/trace/internal/idutil"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [id...]",
	Short: "Delete issues permanently",
	Long: `Delete issues and their dependencies, labels and history.

Without --force this only previews what would be removed. Issues that
depended on a deleted issue lose that edge and are rewritten in the
snapshot on the next export.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		ids, err := idutil.ResolvePartialIDs(rootCtx, store, args)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if !force {
			for _, id := range ids {
				issue, err := store.GetIssue(rootCtx, id)
				if err != nil {
					return err
				}
				dependents, err := store.GetDependents(rootCtx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s: %s\n", yellow("would delete"), issue.ID, issue.Title)
				for _, dep := range dependents {
					fmt.Fprintf(out, "  %s %s loses its dependency on %s\n", yellow("⚠"), dep.ID, issue.ID)
				}
			}
			fmt.Fprintf(out, "\nRe-run with %s to delete.\n", cyan("--force"))
			return nil
		}

		for _, id := range ids {
			if err := store.DeleteIssue(rootCtx, id); err != nil {
				return fmt.Errorf("error deleting %s: %w", id, err)
			}
		}
		if jsonOutput {
			return outputJSON(cmd, map[string]interface{}{"deleted": ids})
		}
		for _, id := range ids {
			fmt.Fprintf(out, "%s Deleted %s\n", green("✓"), id)
		}
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolP("force", "f", false, "Actually delete (without this flag, only preview)")
	rootCmd.AddCommand(deleteCmd)
}
