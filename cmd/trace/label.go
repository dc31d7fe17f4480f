package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tracehq/trace/internal/idutil"
)

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Manage issue labels",
}

// labelAction applies fn to each issue, printing verb for each success.
func labelAction(cmd *cobra.Command, args []string, verb string, fn func(id, label string) error) error {
	label := strings.TrimSpace(args[len(args)-1])
	if label == "" {
		return fmt.Errorf("label must not be empty")
	}
	ids, err := idutil.ResolvePartialIDs(rootCtx, store, args[:len(args)-1])
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := fn(id, label); err != nil {
			return fmt.Errorf("error on %s: %w", id, err)
		}
	}
	if jsonOutput {
		return outputJSON(cmd, map[string]interface{}{"status": verb, "issue_ids": ids, "label": label})
	}
	for _, id := range ids {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s label '%s' on %s\n", green("✓"), verb, label, id)
	}
	return nil
}

var labelAddCmd = &cobra.Command{
	Use:   "add [issue-id...] [label]",
	Short: "Add a label to one or more issues",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return labelAction(cmd, args, "Added", func(id, label string) error {
			return store.AddLabel(rootCtx, id, label, actor)
		})
	},
}

var labelRemoveCmd = &cobra.Command{
	Use:   "remove [issue-id...] [label]",
	Short: "Remove a label from one or more issues",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return labelAction(cmd, args, "Removed", func(id, label string) error {
			return store.RemoveLabel(rootCtx, id, label, actor)
		})
	},
}

var labelListCmd = &cobra.Command{
	Use:   "list [issue-id]",
	Short: "List an issue's labels, or the issues carrying --label",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		byLabel, _ := cmd.Flags().GetString("label")
		out := cmd.OutOrStdout()

		if byLabel != "" {
			issues, err := store.GetIssuesByLabel(rootCtx, byLabel)
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(cmd, issues)
			}
			if len(issues) == 0 {
				fmt.Fprintf(out, "No issues labeled '%s'\n", byLabel)
				return nil
			}
			return renderIssues(out, issues)
		}

		if len(args) != 1 {
			return fmt.Errorf("an issue ID or --label is required")
		}
		id, err := idutil.ResolvePartialID(rootCtx, store, args[0])
		if err != nil {
			return err
		}
		labels, err := store.GetLabels(rootCtx, id)
		if err != nil {
			return err
		}
		if jsonOutput {
			if labels == nil {
				labels = []string{}
			}
			return outputJSON(cmd, labels)
		}
		if len(labels) == 0 {
			fmt.Fprintf(out, "%s has no labels\n", id)
			return nil
		}
		fmt.Fprintf(out, "%s Labels for %s:\n", cyan("🏷"), id)
		for _, label := range labels {
			fmt.Fprintf(out, "  - %s\n", label)
		}
		return nil
	},
}

func init() {
	labelListCmd.Flags().String("label", "", "List issues carrying this label instead")
	labelCmd.AddCommand(labelAddCmd)
	labelCmd.AddCommand(labelRemoveCmd)
	labelCmd.AddCommand(labelListCmd)
	rootCmd.AddCommand(labelCmd)
}
