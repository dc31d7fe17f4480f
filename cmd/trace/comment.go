package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tracehq/trace/internal/idutil"
)

var commentCmd = &cobra.Command{
	Use:   "comment [id] [text...]",
	Short: "Add a comment to an issue's history",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := idutil.ResolvePartialID(rootCtx, store, args[0])
		if err != nil {
			return err
		}
		text := strings.Join(args[1:], " ")
		if err := store.AddComment(rootCtx, id, actor, text); err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd, map[string]string{"issue_id": id, "actor": actor, "comment": text})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Comment added to %s\n", green("✓"), id)
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events [id]",
	Short: "Show an issue's audit history, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		id, err := idutil.ResolvePartialID(rootCtx, store, args[0])
		if err != nil {
			return err
		}
		events, err := store.GetEvents(rootCtx, id, limit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd, events)
		}
		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintf(out, "No events for %s\n", id)
			return nil
		}
		for _, e := range events {
			fmt.Fprintln(out, describeEvent(e))
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().IntP("limit", "n", 0, "Maximum number of events (0 for all)")
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(eventsCmd)
}
