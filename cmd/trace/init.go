package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tracehq/trace/internal/config"
	"github.com/tracehq/trace/internal/configfile"
	"github.com/tracehq/trace/internal/discover"
	"github.com/tracehq/trace/internal/idutil"
	"github.com/tracehq/trace/internal/reconcile"
	"github.com/tracehq/trace/internal/storage"
)

const gitignoreTemplate = `# SQLite database and its journals are local; commit issues.jsonl instead.
*.db
*.db-journal
*.db-wal
*.db-shm
debug.log*
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize trace in the current directory",
	Long: `Initialize trace in the current directory by creating a .trace/ directory
holding the database, metadata.json and config.yaml.

If .trace/issues.jsonl already exists (for example after cloning a repository
that uses trace) it is imported into the new database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		prefix, _ := cmd.Flags().GetString("prefix")

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		clean := filepath.Clean(cwd)
		if filepath.Base(clean) == config.DirName ||
			strings.Contains(clean, string(filepath.Separator)+config.DirName+string(filepath.Separator)) {
			return fmt.Errorf("cannot initialize trace inside a %s directory (%s)", config.DirName, cwd)
		}

		traceDir := filepath.Join(cwd, config.DirName)
		cfg := configfile.DefaultConfig()
		initDBPath := filepath.Join(traceDir, cfg.Database)
		if dbPath != "" {
			abs, err := filepath.Abs(dbPath)
			if err != nil {
				return fmt.Errorf("invalid --db path: %w", err)
			}
			initDBPath = abs
			traceDir = filepath.Dir(abs)
			cfg.Database = filepath.Base(abs)
		}

		if err := os.MkdirAll(traceDir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", traceDir, err)
		}
		if err := os.WriteFile(filepath.Join(traceDir, ".gitignore"), []byte(gitignoreTemplate), 0o600); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to create .gitignore: %v\n", err)
		}
		if existing, err := configfile.Load(traceDir); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: replacing unreadable %s: %v\n", configfile.ConfigFileName, err)
		} else if existing != nil && existing.Snapshot != "" {
			cfg.Snapshot = existing.Snapshot
		}
		if err := cfg.Save(traceDir); err != nil {
			return fmt.Errorf("failed to write %s: %w", configfile.ConfigFileName, err)
		}
		if err := config.WriteDefaultConfig(traceDir); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}

		snapshot := discover.FindSnapshotPath(initDBPath)
		if prefix == "" {
			prefix = config.GetString("issue-prefix")
		}
		if prefix == "" {
			prefix = prefixFromSnapshot(snapshot)
		}
		if prefix == "" {
			prefix = filepath.Base(cwd)
		}
		prefix = strings.TrimRight(prefix, "-")

		s, err := openStore(rootCtx, initDBPath)
		if err != nil {
			return err
		}
		store, dbPath, snapshotPath = s, initDBPath, snapshot
		actor = resolveActor(actor)

		if err := store.SetConfig(rootCtx, storage.ConfigIssuePrefix, prefix); err != nil {
			return fmt.Errorf("failed to set issue prefix: %w", err)
		}
		if err := store.SetMetadata(rootCtx, storage.MetadataVersion, Version); err != nil {
			return fmt.Errorf("failed to record version: %w", err)
		}

		imported := 0
		if _, err := os.Stat(snapshot); err == nil {
			result, err := reconcile.ImportIfNewer(rootCtx, store, snapshot, actor)
			if err != nil {
				return fmt.Errorf("failed to import existing %s: %w", filepath.Base(snapshot), err)
			}
			imported = result.Created + result.Updated
		}

		if jsonOutput {
			return outputJSON(cmd, map[string]interface{}{
				"database": initDBPath,
				"snapshot": snapshot,
				"prefix":   prefix,
				"imported": imported,
			})
		}
		if quiet {
			return nil
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\n%s trace initialized successfully!\n\n", green("✓"))
		fmt.Fprintf(out, "  Database: %s\n", cyan(initDBPath))
		fmt.Fprintf(out, "  Issue prefix: %s\n", cyan(prefix))
		fmt.Fprintf(out, "  Issues will be named: %s\n", cyan(prefix+"-1, "+prefix+"-2, ..."))
		if imported > 0 {
			fmt.Fprintf(out, "  Imported %d issues from %s\n", imported, filepath.Base(snapshot))
		}
		fmt.Fprintf(out, "\nRun %s to create your first issue.\n\n", cyan("trace create \"Title\""))
		return nil
	},
}

// prefixFromSnapshot returns the prefix of the first issue in an existing
// snapshot, or "".
func prefixFromSnapshot(path string) string {
	f, err := os.Open(path) // #nosec G304 - inside the .trace directory
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()
	issues, err := reconcile.ReadJSONL(f)
	if err != nil || len(issues) == 0 {
		return ""
	}
	return idutil.ExtractIssuePrefix(issues[0].ID)
}

func init() {
	initCmd.Flags().StringP("prefix", "p", "", "Issue prefix (default: current directory name)")
	rootCmd.AddCommand(initCmd)
}
