package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tracehq/trace/internal/debug"
	"github.com/tracehq/trace/internal/idutil"
	"github.com/tracehq/trace/internal/types"
)

var createCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new issue",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		if len(args) > 0 {
			if title != "" && title != args[0] {
				return fmt.Errorf("both a title argument (%q) and --title (%q) were given", args[0], title)
			}
			title = args[0]
		}
		if title == "" {
			return fmt.Errorf("title required (trace create \"Title\" or --title)")
		}

		description, _ := cmd.Flags().GetString("description")
		design, _ := cmd.Flags().GetString("design")
		acceptance, _ := cmd.Flags().GetString("acceptance")
		notes, _ := cmd.Flags().GetString("notes")
		priorityStr, _ := cmd.Flags().GetString("priority")
		issueTypeStr, _ := cmd.Flags().GetString("type")
		assignee, _ := cmd.Flags().GetString("assignee")
		labels, _ := cmd.Flags().GetStringSlice("labels")
		explicitID, _ := cmd.Flags().GetString("id")
		externalRef, _ := cmd.Flags().GetString("external-ref")
		deps, _ := cmd.Flags().GetStringSlice("deps")

		priority, err := parsePriority(priorityStr)
		if err != nil {
			return err
		}
		issueType, err := types.ParseIssueType(issueTypeStr)
		if err != nil {
			return err
		}

		issue := &types.Issue{
			ID:                 explicitID,
			Title:              title,
			Description:        description,
			Design:             design,
			AcceptanceCriteria: acceptance,
			Notes:              notes,
			Status:             types.StatusOpen,
			Priority:           priority,
			IssueType:          issueType,
			Assignee:           assignee,
		}
		if cmd.Flags().Changed("estimate") {
			est, _ := cmd.Flags().GetInt("estimate")
			issue.EstimatedMinutes = &est
		}
		if externalRef != "" {
			issue.ExternalRef = &externalRef
		}

		// Resolve dependency targets before writing anything.
		var edges []*types.Dependency
		for _, spec := range deps {
			dep, err := parseDepSpec(spec)
			if err != nil {
				return err
			}
			dep.DependsOnID, err = idutil.ResolvePartialID(rootCtx, store, dep.DependsOnID)
			if err != nil {
				return fmt.Errorf("dependency %q: %w", spec, err)
			}
			edges = append(edges, dep)
		}

		if err := store.CreateIssue(rootCtx, issue, actor); err != nil {
			return err
		}

		for _, label := range labels {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			if err := store.AddLabel(rootCtx, issue.ID, label, actor); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to add label %s: %v\n", label, err)
			}
		}
		for _, dep := range edges {
			dep.IssueID = issue.ID
			if err := store.AddDependency(rootCtx, dep, actor); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to add dependency %s -> %s: %v\n",
					issue.ID, dep.DependsOnID, err)
			}
		}
		debug.Logf("created %s with %d labels, %d dependencies\n", issue.ID, len(labels), len(edges))

		if jsonOutput {
			return outputJSON(cmd, issue)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s Created issue: %s\n", green("✓"), issue.ID)
		if !quiet {
			fmt.Fprintf(out, "  Title: %s\n", issue.Title)
			fmt.Fprintf(out, "  Priority: P%d\n", issue.Priority)
			fmt.Fprintf(out, "  Status: %s\n", issue.Status)
		}
		return nil
	},
}

// parsePriority accepts "0".."4" and "P0".."P4".
func parsePriority(s string) (int, error) {
	trimmed := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "P")
	p, err := strconv.Atoi(trimmed)
	if err != nil || p < 0 || p > 4 {
		return 0, &types.ValidationError{Field: "priority", Message: fmt.Sprintf("invalid priority %q (expected 0-4 or P0-P4)", s)}
	}
	return p, nil
}

// parseDepSpec parses "type:id" or a bare "id" (which means blocks).
func parseDepSpec(spec string) (*types.Dependency, error) {
	spec = strings.TrimSpace(spec)
	depType := types.DepBlocks
	target := spec
	if typ, id, ok := strings.Cut(spec, ":"); ok {
		parsed, err := types.ParseDependencyType(strings.TrimSpace(typ))
		if err != nil {
			return nil, err
		}
		depType, target = parsed, strings.TrimSpace(id)
	}
	if target == "" {
		return nil, fmt.Errorf("invalid dependency %q (expected 'type:id' or 'id')", spec)
	}
	return &types.Dependency{DependsOnID: target, Type: depType}, nil
}

func init() {
	createCmd.Flags().String("title", "", "Issue title (alternative to positional argument)")
	createCmd.Flags().StringP("description", "d", "", "Issue description")
	createCmd.Flags().String("design", "", "Design notes")
	createCmd.Flags().String("acceptance", "", "Acceptance criteria")
	createCmd.Flags().String("notes", "", "Additional notes")
	createCmd.Flags().StringP("priority", "p", "2", "Priority (0-4 or P0-P4, 0=highest)")
	createCmd.Flags().StringP("type", "t", "task", "Issue type (bug|feature|task|epic|chore)")
	createCmd.Flags().StringP("assignee", "a", "", "Assignee")
	createCmd.Flags().Int("estimate", 0, "Estimated minutes")
	createCmd.Flags().StringSliceP("labels", "l", []string{}, "Labels (comma-separated)")
	createCmd.Flags().String("id", "", "Explicit issue ID (e.g., 'bd-42')")
	createCmd.Flags().String("external-ref", "", "External reference (e.g., 'gh-9', 'jira-ABC')")
	createCmd.Flags().StringSlice("deps", []string{}, "Dependencies in format 'type:id' or 'id' (e.g., 'discovered-from:bd-20,blocks:bd-15')")
	rootCmd.AddCommand(createCmd)
}
