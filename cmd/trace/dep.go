package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tracehq/trace/internal/idutil"
	"github.com/tracehq/trace/internal/types"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage dependencies",
}

var depAddCmd = &cobra.Command{
	Use:   "add [issue-id] [depends-on-id]",
	Short: "Add a dependency",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		depTypeStr, _ := cmd.Flags().GetString("type")
		depType, err := types.ParseDependencyType(depTypeStr)
		if err != nil {
			return err
		}
		ids, err := idutil.ResolvePartialIDs(rootCtx, store, args)
		if err != nil {
			return err
		}

		dep := &types.Dependency{IssueID: ids[0], DependsOnID: ids[1], Type: depType}
		if err := store.AddDependency(rootCtx, dep, actor); err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(cmd, dep)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Added dependency: %s depends on %s (%s)\n",
			green("✓"), dep.IssueID, dep.DependsOnID, dep.Type)
		return nil
	},
}

var depRemoveCmd = &cobra.Command{
	Use:   "remove [issue-id] [depends-on-id]",
	Short: "Remove a dependency",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := idutil.ResolvePartialIDs(rootCtx, store, args)
		if err != nil {
			return err
		}
		if err := store.RemoveDependency(rootCtx, ids[0], ids[1], actor); err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd, map[string]string{
				"status":        "removed",
				"issue_id":      ids[0],
				"depends_on_id": ids[1],
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Removed dependency: %s no longer depends on %s\n",
			green("✓"), ids[0], ids[1])
		return nil
	},
}

var depTreeCmd = &cobra.Command{
	Use:   "tree [issue-id]",
	Short: "Show the dependency tree below an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxDepth, _ := cmd.Flags().GetInt("max-depth")
		if maxDepth < 1 {
			return fmt.Errorf("--max-depth must be >= 1")
		}
		id, err := idutil.ResolvePartialID(rootCtx, store, args[0])
		if err != nil {
			return err
		}
		tree, err := store.GetDependencyTree(rootCtx, id, maxDepth)
		if err != nil {
			return err
		}

		if jsonOutput {
			if tree == nil {
				tree = []*types.TreeNode{}
			}
			return outputJSON(cmd, tree)
		}
		out := cmd.OutOrStdout()
		if len(tree) <= 1 {
			fmt.Fprintf(out, "\n%s has no dependencies\n", id)
			return nil
		}
		fmt.Fprintf(out, "\n%s Dependency tree for %s:\n\n", cyan("🌲"), id)
		hitLimit := false
		for _, node := range tree {
			line := fmt.Sprintf("%s→ %s: %s [P%d] (%s)",
				strings.Repeat("  ", node.Depth), node.ID, node.Title, node.Priority, statusColor(node.Status))
			if node.Truncated {
				line += yellow(" …")
				hitLimit = true
			}
			fmt.Fprintln(out, line)
		}
		if hitLimit {
			fmt.Fprintf(out, "\n%s Tree truncated at depth %d; use --max-depth to see more\n", yellow("⚠"), maxDepth)
		}
		fmt.Fprintln(out)
		return nil
	},
}

var depCyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Detect dependency cycles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cycles, err := store.DetectCycles(rootCtx)
		if err != nil {
			return err
		}
		if jsonOutput {
			if cycles == nil {
				cycles = [][]*types.Issue{}
			}
			return outputJSON(cmd, cycles)
		}
		out := cmd.OutOrStdout()
		if len(cycles) == 0 {
			fmt.Fprintf(out, "\n%s No dependency cycles detected\n\n", green("✓"))
			return nil
		}
		fmt.Fprintf(out, "\n%s Found %d dependency cycles:\n\n", red("⚠"), len(cycles))
		for i, cycle := range cycles {
			ids := make([]string, 0, len(cycle)+1)
			for _, issue := range cycle {
				ids = append(ids, issue.ID)
			}
			if len(cycle) > 0 {
				ids = append(ids, cycle[0].ID)
			}
			fmt.Fprintf(out, "%d. %s\n", i+1, strings.Join(ids, " → "))
		}
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	depAddCmd.Flags().StringP("type", "t", "blocks", "Dependency type (blocks|related|parent-child|discovered-from)")
	depTreeCmd.Flags().IntP("max-depth", "d", types.DefaultMaxTreeDepth, "Maximum tree depth to display")
	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRemoveCmd)
	depCmd.AddCommand(depTreeCmd)
	depCmd.AddCommand(depCyclesCmd)
	rootCmd.AddCommand(depCmd)
}
