package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tracehq/trace/internal/idutil"
	"github.com/tracehq/trace/internal/types"
)

var updateCmd = &cobra.Command{
	Use:   "update [id...]",
	Short: "Update one or more issues",
	Long: `Update fields of one or more issues. Only the flags you pass are changed.
Pass an empty value to --assignee, --estimate or --external-ref to clear it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		update, err := updateFromFlags(cmd)
		if err != nil {
			return err
		}
		if update.IsEmpty() {
			return fmt.Errorf("no updates specified")
		}

		ids, err := idutil.ResolvePartialIDs(rootCtx, store, args)
		if err != nil {
			return err
		}
		var updated []*types.Issue
		for _, id := range ids {
			if err := store.UpdateIssue(rootCtx, id, update, actor); err != nil {
				return fmt.Errorf("error updating %s: %w", id, err)
			}
			issue, err := store.GetIssue(rootCtx, id)
			if err != nil {
				return err
			}
			updated = append(updated, issue)
		}

		if jsonOutput {
			return outputJSON(cmd, updated)
		}
		for _, issue := range updated {
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated issue: %s\n", green("✓"), issue.ID)
		}
		return nil
	},
}

func updateFromFlags(cmd *cobra.Command) (types.IssueUpdate, error) {
	var u types.IssueUpdate
	flags := cmd.Flags()

	for name, dst := range map[string]**string{
		"title":       &u.Title,
		"description": &u.Description,
		"design":      &u.Design,
		"acceptance":  &u.AcceptanceCriteria,
		"notes":       &u.Notes,
	} {
		if flags.Changed(name) {
			v, _ := flags.GetString(name)
			*dst = &v
		}
	}

	if flags.Changed("status") {
		v, _ := flags.GetString("status")
		status, err := types.ParseStatus(v)
		if err != nil {
			return u, err
		}
		u.Status = &status
	}
	if flags.Changed("priority") {
		v, _ := flags.GetString("priority")
		p, err := parsePriority(v)
		if err != nil {
			return u, err
		}
		u.Priority = &p
	}
	if flags.Changed("type") {
		v, _ := flags.GetString("type")
		t, err := types.ParseIssueType(v)
		if err != nil {
			return u, err
		}
		u.IssueType = &t
	}
	if flags.Changed("assignee") {
		v, _ := flags.GetString("assignee")
		if v == "" {
			u.Assignee = types.Clear[string]()
		} else {
			u.Assignee = types.Set(v)
		}
	}
	if flags.Changed("external-ref") {
		v, _ := flags.GetString("external-ref")
		if v == "" {
			u.ExternalRef = types.Clear[string]()
		} else {
			u.ExternalRef = types.Set(v)
		}
	}
	if flags.Changed("estimate") {
		v, _ := flags.GetString("estimate")
		if v == "" {
			u.EstimatedMinutes = types.Clear[int]()
		} else {
			n, err := strconv.Atoi(v)
			if err != nil {
				return u, &types.ValidationError{Field: "estimated_minutes", Message: fmt.Sprintf("invalid estimate %q", v)}
			}
			u.EstimatedMinutes = types.Set(n)
		}
	}
	return u, nil
}

var closeCmd = &cobra.Command{
	Use:   "close [id...]",
	Short: "Close one or more issues",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		if reason == "" {
			reason = "Closed"
		}
		ids, err := idutil.ResolvePartialIDs(rootCtx, store, args)
		if err != nil {
			return err
		}

		var closed []*types.Issue
		for _, id := range ids {
			if err := store.CloseIssue(rootCtx, id, reason, actor); err != nil {
				return fmt.Errorf("error closing %s: %w", id, err)
			}
			issue, err := store.GetIssue(rootCtx, id)
			if err != nil {
				return err
			}
			closed = append(closed, issue)
		}

		if jsonOutput {
			return outputJSON(cmd, closed)
		}
		for _, issue := range closed {
			fmt.Fprintf(cmd.OutOrStdout(), "%s Closed %s: %s\n", green("✓"), issue.ID, reason)
		}
		return nil
	},
}

var reopenCmd = &cobra.Command{
	Use:   "reopen [id...]",
	Short: "Reopen closed issues",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		ids, err := idutil.ResolvePartialIDs(rootCtx, store, args)
		if err != nil {
			return err
		}

		open := types.StatusOpen
		var reopened []*types.Issue
		for _, id := range ids {
			if err := store.UpdateIssue(rootCtx, id, types.IssueUpdate{Status: &open}, actor); err != nil {
				return fmt.Errorf("error reopening %s: %w", id, err)
			}
			if reason != "" {
				if err := store.AddComment(rootCtx, id, actor, reason); err != nil {
					return fmt.Errorf("error recording reason for %s: %w", id, err)
				}
			}
			issue, err := store.GetIssue(rootCtx, id)
			if err != nil {
				return err
			}
			reopened = append(reopened, issue)
		}

		if jsonOutput {
			return outputJSON(cmd, reopened)
		}
		for _, issue := range reopened {
			fmt.Fprintf(cmd.OutOrStdout(), "%s Reopened %s\n", green("✓"), issue.ID)
		}
		return nil
	},
}

func init() {
	updateCmd.Flags().String("title", "", "New title")
	updateCmd.Flags().StringP("description", "d", "", "New description")
	updateCmd.Flags().String("design", "", "Design notes")
	updateCmd.Flags().String("acceptance", "", "Acceptance criteria")
	updateCmd.Flags().String("notes", "", "Additional notes")
	updateCmd.Flags().StringP("status", "s", "", "New status (open|in_progress|blocked|closed)")
	updateCmd.Flags().StringP("priority", "p", "", "New priority (0-4 or P0-P4)")
	updateCmd.Flags().StringP("type", "t", "", "New type (bug|feature|task|epic|chore)")
	updateCmd.Flags().StringP("assignee", "a", "", "New assignee (empty to unassign)")
	updateCmd.Flags().String("estimate", "", "Estimated minutes (empty to clear)")
	updateCmd.Flags().String("external-ref", "", "External reference (empty to clear)")
	rootCmd.AddCommand(updateCmd)

	closeCmd.Flags().StringP("reason", "r", "", "Reason for closing")
	rootCmd.AddCommand(closeCmd)

	reopenCmd.Flags().StringP("reason", "r", "", "Reason for reopening (recorded as a comment)")
	rootCmd.AddCommand(reopenCmd)
}
