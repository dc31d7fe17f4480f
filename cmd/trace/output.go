package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/tracehq/trace/internal/types"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// outputJSON writes v as indented JSON to the command's stdout.
func outputJSON(cmd *cobra.Command, v interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("error encoding JSON: %w", err)
	}
	return nil
}

// newTable returns a borderless, left-aligned table.
func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
}

func statusColor(s types.Status) string {
	switch s {
	case types.StatusOpen:
		return green(string(s))
	case types.StatusInProgress:
		return yellow(string(s))
	case types.StatusBlocked:
		return red(string(s))
	default:
		return string(s)
	}
}

func priorityLabel(p int) string {
	label := fmt.Sprintf("P%d", p)
	if p == 0 {
		return red(label)
	}
	return label
}

// renderIssues prints one row per issue.
func renderIssues(w io.Writer, issues []*types.Issue) error {
	table := newTable(w)
	table.Header([]string{"ID", "PRI", "TYPE", "STATUS", "ASSIGNEE", "TITLE"})
	for _, issue := range issues {
		_ = table.Append([]string{
			cyan(issue.ID),
			priorityLabel(issue.Priority),
			string(issue.IssueType),
			statusColor(issue.Status),
			issue.Assignee,
			truncate(issue.Title, 60),
		})
	}
	return table.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// issueDetails is the JSON shape of "trace show".
type issueDetails struct {
	*types.Issue
	Labels       []string       `json:"labels,omitempty"`
	Dependencies []*types.Issue `json:"dependencies,omitempty"`
	Dependents   []*types.Issue `json:"dependents,omitempty"`
	Events       []*types.Event `json:"events,omitempty"`
}

func printIssueDetails(w io.Writer, d *issueDetails) {
	issue := d.Issue
	fmt.Fprintf(w, "\n%s: %s\n", cyan(issue.ID), bold(issue.Title))
	fmt.Fprintf(w, "Status: %s\n", statusColor(issue.Status))
	fmt.Fprintf(w, "Priority: %s\n", priorityLabel(issue.Priority))
	fmt.Fprintf(w, "Type: %s\n", issue.IssueType)
	if issue.Assignee != "" {
		fmt.Fprintf(w, "Assignee: %s\n", issue.Assignee)
	}
	if issue.EstimatedMinutes != nil {
		fmt.Fprintf(w, "Estimated: %d minutes\n", *issue.EstimatedMinutes)
	}
	if issue.ExternalRef != nil {
		fmt.Fprintf(w, "External: %s\n", *issue.ExternalRef)
	}
	fmt.Fprintf(w, "Created: %s\n", issue.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "Updated: %s\n", issue.UpdatedAt.Local().Format("2006-01-02 15:04"))
	if issue.ClosedAt != nil {
		fmt.Fprintf(w, "Closed: %s\n", issue.ClosedAt.Local().Format("2006-01-02 15:04"))
	}

	for _, section := range []struct{ name, body string }{
		{"Description", issue.Description},
		{"Design", issue.Design},
		{"Notes", issue.Notes},
		{"Acceptance Criteria", issue.AcceptanceCriteria},
	} {
		if section.body != "" {
			fmt.Fprintf(w, "\n%s:\n%s\n", section.name, section.body)
		}
	}

	if len(d.Labels) > 0 {
		fmt.Fprintf(w, "\nLabels: %s\n", strings.Join(d.Labels, ", "))
	}
	if len(d.Dependencies) > 0 {
		fmt.Fprintf(w, "\nDepends on (%d):\n", len(d.Dependencies))
		for _, dep := range d.Dependencies {
			fmt.Fprintf(w, "  → %s: %s [P%d] (%s)\n", dep.ID, dep.Title, dep.Priority, dep.Status)
		}
	}
	if len(d.Dependents) > 0 {
		fmt.Fprintf(w, "\nBlocks (%d):\n", len(d.Dependents))
		for _, dep := range d.Dependents {
			fmt.Fprintf(w, "  ← %s: %s [P%d] (%s)\n", dep.ID, dep.Title, dep.Priority, dep.Status)
		}
	}
	fmt.Fprintln(w)
}

// describeEvent renders an audit entry on one line.
func describeEvent(e *types.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-18s %s", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.EventType, e.Actor)
	switch {
	case e.Comment != nil:
		fmt.Fprintf(&b, "  %q", *e.Comment)
	case e.EventType == types.EventCreated || e.EventType == types.EventUpdated:
	case e.OldValue != nil && e.NewValue != nil:
		fmt.Fprintf(&b, "  %s → %s", *e.OldValue, *e.NewValue)
	case e.NewValue != nil:
		fmt.Fprintf(&b, "  %s", *e.NewValue)
	case e.OldValue != nil:
		fmt.Fprintf(&b, "  %s", *e.OldValue)
	}
	return b.String()
}
