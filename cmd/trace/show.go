package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracehq/trace/internal/idutil"
)

var showCmd = &cobra.Command{
	Use:   "show [id...]",
	Short: "Show issue details",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withEvents, _ := cmd.Flags().GetBool("events")
		ids, err := idutil.ResolvePartialIDs(rootCtx, store, args)
		if err != nil {
			return err
		}

		all := make([]*issueDetails, 0, len(ids))
		for _, id := range ids {
			d, err := loadDetails(id, withEvents)
			if err != nil {
				return err
			}
			all = append(all, d)
		}

		if jsonOutput {
			return outputJSON(cmd, all)
		}
		out := cmd.OutOrStdout()
		for _, d := range all {
			printIssueDetails(out, d)
			if withEvents && len(d.Events) > 0 {
				fmt.Fprintf(out, "History (%d):\n", len(d.Events))
				for _, e := range d.Events {
					fmt.Fprintf(out, "  %s\n", describeEvent(e))
				}
				fmt.Fprintln(out)
			}
		}
		return nil
	},
}

func loadDetails(id string, withEvents bool) (*issueDetails, error) {
	issue, err := store.GetIssue(rootCtx, id)
	if err != nil {
		return nil, err
	}
	d := &issueDetails{Issue: issue}
	if d.Labels, err = store.GetLabels(rootCtx, id); err != nil {
		return nil, err
	}
	if d.Dependencies, err = store.GetDependencies(rootCtx, id); err != nil {
		return nil, err
	}
	if d.Dependents, err = store.GetDependents(rootCtx, id); err != nil {
		return nil, err
	}
	if withEvents {
		if d.Events, err = store.GetEvents(rootCtx, id, 20); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func init() {
	showCmd.Flags().Bool("events", false, "Include the 20 most recent audit events")
	rootCmd.AddCommand(showCmd)
}
