package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show issue statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := store.GetStatistics(rootCtx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd, stats)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\n%s Issue statistics\n\n", bold("📊"))
		table := newTable(out)
		table.Header([]string{"METRIC", "VALUE"})
		rows := [][]string{
			{"Total", strconv.Itoa(stats.TotalIssues)},
			{"Open", green(strconv.Itoa(stats.OpenIssues))},
			{"In progress", yellow(strconv.Itoa(stats.InProgressIssues))},
			{"Closed", strconv.Itoa(stats.ClosedIssues)},
			{"Blocked", red(strconv.Itoa(stats.BlockedIssues))},
			{"Ready", green(strconv.Itoa(stats.ReadyIssues))},
		}
		if stats.AverageLeadTimeHours > 0 {
			rows = append(rows, []string{"Avg lead time", fmt.Sprintf("%.1f hours", stats.AverageLeadTimeHours)})
		}
		for _, row := range rows {
			_ = table.Append(row)
		}
		if err := table.Render(); err != nil {
			return err
		}
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
