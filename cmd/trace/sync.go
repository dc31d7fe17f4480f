package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tracehq/trace/internal/config"
	"github.com/tracehq/trace/internal/reconcile"
	"github.com/tracehq/trace/internal/types"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export issues to JSONL",
	Long: `Export issues, with their dependencies, as one JSON object per line.

Exporting to the project snapshot (-o .trace/issues.jsonl) rewrites it from
the full store and clears the dirty set. Any other destination, including
stdout, leaves the store untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		statusStr, _ := cmd.Flags().GetString("status")

		var filter types.IssueFilter
		if statusStr != "" {
			status, err := types.ParseStatus(statusStr)
			if err != nil {
				return err
			}
			filter.Status = &status
		}

		if output == "" {
			_, err := reconcile.ExportAll(rootCtx, store, cmd.OutOrStdout(), filter)
			return err
		}

		target, err := filepath.Abs(output)
		if err != nil {
			return fmt.Errorf("invalid output path: %w", err)
		}
		if target == snapshotPath && filter.Status == nil {
			result, err := reconcile.ExportToFile(rootCtx, store, target)
			if err != nil {
				return err
			}
			return reportExport(cmd, target, result.Total)
		}

		f, err := os.Create(target) // #nosec G304 - user-chosen output file
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", target, err)
		}
		n, err := reconcile.ExportAll(rootCtx, store, f, filter)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		return reportExport(cmd, target, n)
	},
}

func reportExport(cmd *cobra.Command, path string, n int) error {
	if jsonOutput {
		return outputJSON(cmd, map[string]interface{}{"path": path, "exported": n})
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s Exported %d issues to %s\n", green("✓"), n, path)
	return nil
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import issues from JSONL",
	Long: `Import issues from a JSONL file (or stdin). New issues are created,
changed ones updated, identical ones left alone. Dependencies are added
once both endpoints exist. The whole input is validated before anything is
written, and an edge to an issue found neither in the input nor in the
database rejects the import.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		skipExisting, _ := cmd.Flags().GetBool("skip-existing")

		var r io.Reader = cmd.InOrStdin()
		source := "stdin"
		if input != "" {
			f, err := os.Open(input) // #nosec G304 - user-chosen input file
			if err != nil {
				return fmt.Errorf("failed to open input file: %w", err)
			}
			defer func() { _ = f.Close() }()
			r, source = f, input
		}

		result, err := reconcile.ImportReader(rootCtx, store, r, reconcile.ImportOptions{
			Actor:        actor,
			DryRun:       dryRun,
			SkipExisting: skipExisting,
		})
		if err != nil {
			return fmt.Errorf("import from %s failed: %w", source, err)
		}

		if jsonOutput {
			return outputJSON(cmd, result)
		}
		verb := "Import complete"
		if dryRun {
			verb = "Dry run"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %d created, %d updated, %d unchanged, %d skipped\n",
			green("✓"), verb, result.Created, result.Updated, result.Unchanged, result.Skipped)
		if result.DependenciesAdded > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "  Dependencies: %d added\n", result.DependenciesAdded)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Import snapshot changes as they happen",
	Long: `Watch the project snapshot and import it whenever another process
(git checkout, git pull, an editor) changes it. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		debounce := config.GetDuration("watch-debounce")
		if cmd.Flags().Changed("debounce") {
			debounce, _ = cmd.Flags().GetDuration("debounce")
		}

		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.ErrOrStderr()
		fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", snapshotPath)
		return reconcile.Watch(ctx, snapshotPath, debounce, func() {
			result, err := reconcile.ImportIfNewer(ctx, store, snapshotPath, actor)
			if err != nil {
				fmt.Fprintf(out, "%s import failed: %v\n", yellow("⚠"), err)
				return
			}
			if result.Changed() {
				fmt.Fprintf(out, "%s Imported %d new and %d updated issues\n", green("✓"), result.Created, result.Updated)
			}
		})
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().StringP("status", "s", "", "Only export issues with this status")
	rootCmd.AddCommand(exportCmd)

	importCmd.Flags().StringP("input", "i", "", "Input file (default: stdin)")
	importCmd.Flags().Bool("dry-run", false, "Report what would change without writing")
	importCmd.Flags().Bool("skip-existing", false, "Only create new issues, never update existing ones")
	rootCmd.AddCommand(importCmd)

	watchCmd.Flags().Duration("debounce", reconcile.DefaultDebounce, "Quiet period before importing a change")
	rootCmd.AddCommand(watchCmd)
}
