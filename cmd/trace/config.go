package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tracehq/trace/internal/config"
	"github.com/tracehq/trace/internal/storage"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Read and write configuration.

Startup settings (json, no-auto-flush, no-auto-import, db, actor,
watch-debounce, debug.log-file) live in .trace/config.yaml because they are
needed before the database is opened. Everything else, including
issue_prefix, is stored in the database.`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		location := "config.yaml"
		if config.IsStartupKey(key) {
			if err := config.SetYamlConfig(key, value); err != nil {
				return fmt.Errorf("error setting config: %w", err)
			}
		} else {
			if err := ensureStore(cmd); err != nil {
				return err
			}
			if err := store.SetConfig(rootCtx, key, value); err != nil {
				return fmt.Errorf("error setting config: %w", err)
			}
			location = "database"
		}

		if jsonOutput {
			return outputJSON(cmd, map[string]string{"key": key, "value": value, "location": location})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s (in %s)\n", key, value, location)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		var value string
		if config.IsStartupKey(key) {
			value = config.GetString(key)
		} else {
			if err := ensureStore(cmd); err != nil {
				return err
			}
			v, err := store.GetConfig(rootCtx, key)
			if err != nil {
				return fmt.Errorf("error getting config: %w", err)
			}
			value = v
			if value == "" && key == storage.ConfigIssuePrefix {
				value = storage.DefaultIssuePrefix
			}
		}

		if jsonOutput {
			return outputJSON(cmd, map[string]string{"key": key, "value": value})
		}
		if value == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (not set)\n", key)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), value)
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configuration values stored in the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd); err != nil {
			return err
		}
		all, err := store.GetAllConfig(rootCtx)
		if err != nil {
			return fmt.Errorf("error listing config: %w", err)
		}
		if jsonOutput {
			return outputJSON(cmd, all)
		}

		out := cmd.OutOrStdout()
		if used := config.ConfigFileUsed(); used != "" {
			fmt.Fprintf(out, "Startup settings: %s\n\n", used)
		}
		if len(all) == 0 {
			fmt.Fprintln(out, "No configuration set")
			return nil
		}
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		table := newTable(out)
		table.Header([]string{"KEY", "VALUE"})
		for _, k := range keys {
			_ = table.Append([]string{k, all[k]})
		}
		return table.Render()
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Delete a configuration value from the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if config.IsStartupKey(key) {
			return fmt.Errorf("%s lives in config.yaml; edit it there or use 'trace config set %s <value>'", key, key)
		}
		if err := ensureStore(cmd); err != nil {
			return err
		}
		if err := store.DeleteConfig(rootCtx, key); err != nil {
			return fmt.Errorf("error deleting config: %w", err)
		}
		if jsonOutput {
			return outputJSON(cmd, map[string]string{"key": key, "status": "unset"})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}
