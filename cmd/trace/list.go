package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tracehq/trace/internal/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var filter types.IssueFilter

		if flags.Changed("status") {
			v, _ := flags.GetString("status")
			status, err := types.ParseStatus(v)
			if err != nil {
				return err
			}
			filter.Status = &status
		}
		if flags.Changed("priority") {
			v, _ := flags.GetString("priority")
			p, err := parsePriority(v)
			if err != nil {
				return err
			}
			filter.Priority = &p
		}
		if flags.Changed("type") {
			v, _ := flags.GetString("type")
			t, err := types.ParseIssueType(v)
			if err != nil {
				return err
			}
			filter.IssueType = &t
		}
		if flags.Changed("assignee") {
			v, _ := flags.GetString("assignee")
			filter.Assignee = &v
		}
		filter.Labels, _ = flags.GetStringSlice("label")
		filter.IDs, _ = flags.GetStringSlice("id")
		filter.Limit, _ = flags.GetInt("limit")

		issues, err := store.SearchIssues(rootCtx, filter)
		if err != nil {
			return err
		}
		if jsonOutput {
			if issues == nil {
				issues = []*types.Issue{}
			}
			return outputJSON(cmd, issues)
		}
		out := cmd.OutOrStdout()
		if len(issues) == 0 {
			fmt.Fprintln(out, "No issues found")
			return nil
		}
		if err := renderIssues(out, issues); err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%d issue(s)\n", len(issues))
		return nil
	},
}

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "Show open issues with no open blockers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var filter types.WorkFilter
		if flags.Changed("priority") {
			v, _ := flags.GetString("priority")
			p, err := parsePriority(v)
			if err != nil {
				return err
			}
			filter.Priority = &p
		}
		if flags.Changed("assignee") {
			v, _ := flags.GetString("assignee")
			filter.Assignee = &v
		}
		filter.Limit, _ = flags.GetInt("limit")

		issues, err := store.GetReadyWork(rootCtx, filter)
		if err != nil {
			return err
		}
		if jsonOutput {
			if issues == nil {
				issues = []*types.Issue{}
			}
			return outputJSON(cmd, issues)
		}
		out := cmd.OutOrStdout()
		if len(issues) == 0 {
			fmt.Fprintf(out, "%s No ready work found\n", yellow("✨"))
			return nil
		}
		fmt.Fprintf(out, "%s Ready work (%d issues with no blockers):\n\n", bold("📋"), len(issues))
		return renderIssues(out, issues)
	},
}

var blockedCmd = &cobra.Command{
	Use:   "blocked",
	Short: "Show issues waiting on open blockers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		blocked, err := store.GetBlockedIssues(rootCtx)
		if err != nil {
			return err
		}
		if jsonOutput {
			if blocked == nil {
				blocked = []*types.BlockedIssue{}
			}
			return outputJSON(cmd, blocked)
		}
		out := cmd.OutOrStdout()
		if len(blocked) == 0 {
			fmt.Fprintf(out, "%s No blocked issues\n", green("✓"))
			return nil
		}
		fmt.Fprintf(out, "%s Blocked issues (%d):\n\n", red("🚫"), len(blocked))
		table := newTable(out)
		table.Header([]string{"ID", "PRI", "STATUS", "BLOCKED BY", "TITLE"})
		for _, b := range blocked {
			_ = table.Append([]string{
				cyan(b.ID),
				priorityLabel(b.Priority),
				statusColor(b.Status),
				strings.Join(b.BlockedBy, ", "),
				truncate(b.Title, 50),
			})
		}
		return table.Render()
	},
}

func init() {
	listCmd.Flags().StringP("status", "s", "", "Filter by status")
	listCmd.Flags().StringP("priority", "p", "", "Filter by priority (0-4 or P0-P4)")
	listCmd.Flags().StringP("type", "t", "", "Filter by type")
	listCmd.Flags().StringP("assignee", "a", "", "Filter by assignee")
	listCmd.Flags().StringSliceP("label", "l", []string{}, "Filter by labels (any of, comma-separated)")
	listCmd.Flags().StringSlice("id", []string{}, "Restrict to these issue IDs")
	listCmd.Flags().IntP("limit", "n", 0, "Maximum number of issues")
	rootCmd.AddCommand(listCmd)

	readyCmd.Flags().StringP("priority", "p", "", "Filter by priority (0-4 or P0-P4)")
	readyCmd.Flags().StringP("assignee", "a", "", "Filter by assignee")
	readyCmd.Flags().IntP("limit", "n", 10, "Maximum number of issues")
	rootCmd.AddCommand(readyCmd)

	rootCmd.AddCommand(blockedCmd)
}
