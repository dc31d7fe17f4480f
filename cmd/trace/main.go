package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracehq/trace/internal/config"
	"github.com/tracehq/trace/internal/debug"
	"github.com/tracehq/trace/internal/discover"
	"github.com/tracehq/trace/internal/storage"
)

var (
	dbPath       string
	actor        string
	store        storage.Storage
	snapshotPath string
	jsonOutput   bool
	verbose      bool
	quiet        bool

	// Auto-sync state
	noAutoFlush  bool
	noAutoImport bool

	profileEnabled bool
	profileFile    *os.File

	rootCtx = context.Background()
)

// noDbCommands run without opening the store. The config subcommands open
// it lazily for keys that live in the database.
var noDbCommands = []string{
	"completion",
	"config",
	"help",
	"init",
	"version",
}

func needsStore(cmd *cobra.Command) bool {
	if !cmd.HasParent() {
		return false
	}
	for c := cmd; c != nil; c = c.Parent() {
		if slices.Contains(noDbCommands, c.Name()) {
			return false
		}
	}
	return true
}

// skipAutoImport names commands that must see the store exactly as it is:
// import reads the snapshot itself, delete would resurrect from a stale one.
var skipAutoImport = []string{"import", "delete"}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: auto-discover .trace/*.db)")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "Actor name for audit trail (default: $TRACE_ACTOR or $USER)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noAutoFlush, "no-auto-flush", false, "Disable automatic JSONL export after each command")
	rootCmd.PersistentFlags().BoolVar(&noAutoImport, "no-auto-import", false, "Disable automatic JSONL import when the snapshot changed")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Print debug output to stderr")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress informational output")
	rootCmd.PersistentFlags().BoolVar(&profileEnabled, "profile", false, "Write a CPU profile for this command")

	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}

var rootCmd = &cobra.Command{
	Use:           "trace",
	Short:         "trace - Dependency-aware issue tracker",
	Long:          `A local issue tracker with first-class dependencies, backed by SQLite and a JSONL snapshot you can commit.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintf(cmd.OutOrStdout(), "trace version %s (%s)\n", Version, Build)
			return nil
		}
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to initialize config: %v\n", err)
		}

		// Priority: flags > config.yaml / TRACE_* env > defaults
		if !cmd.Flags().Changed("json") {
			jsonOutput = config.GetBool("json")
		}
		if !cmd.Flags().Changed("no-auto-flush") {
			noAutoFlush = config.GetBool("no-auto-flush")
		}
		if !cmd.Flags().Changed("no-auto-import") {
			noAutoImport = config.GetBool("no-auto-import")
		}
		if !cmd.Flags().Changed("db") && dbPath == "" {
			dbPath = config.GetString("db")
		}
		if !cmd.Flags().Changed("actor") && actor == "" {
			actor = config.GetString("actor")
		}

		debug.SetVerbose(verbose)
		debug.SetQuiet(quiet)
		logFile := config.GetString("debug.log-file")
		if logFile == "" {
			logFile = os.Getenv("TRACE_DEBUG_LOG")
		}
		if logFile != "" {
			if err := debug.SetLogFile(logFile); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
		}

		if profileEnabled {
			name := fmt.Sprintf("trace-profile-%s-%s.prof", cmd.Name(), time.Now().Format("20060102-150405"))
			if f, err := os.Create(name); err == nil { // #nosec G304 - fixed name in cwd
				profileFile = f
				_ = pprof.StartCPUProfile(f)
			}
		}

		if !needsStore(cmd) {
			return nil
		}
		return ensureStore(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		flushOnExit(cmd)
		return nil
	},
}

// ensureStore opens the database for commands that need it and brings it
// up to date with the snapshot. It is a no-op once the store is open.
func ensureStore(cmd *cobra.Command) error {
	if store != nil {
		return nil
	}

	if dbPath == "" {
		found := discover.FindDatabasePath()
		if found == "" {
			return fmt.Errorf("no trace database found\n" +
				"Hint: run 'trace init' to create a database in the current directory\n" +
				"      or set TRACE_DIR to point to your .trace directory\n" +
				"      or set TRACE_DB to point to your database file")
		}
		dbPath = found
	}
	if abs, err := filepath.Abs(dbPath); err == nil {
		dbPath = abs
	}

	actor = resolveActor(actor)

	s, err := openStore(rootCtx, dbPath)
	if err != nil {
		return err
	}
	store = s
	snapshotPath = discover.FindSnapshotPath(dbPath)
	debug.Logf("using database %s, snapshot %s, actor %s\n", dbPath, snapshotPath, actor)

	if !noAutoImport && !slices.Contains(skipAutoImport, cmd.Name()) {
		if err := autoImportIfNewer(cmd); err != nil {
			return err
		}
	}
	return nil
}

// resolveActor picks the audit actor: --actor, then config.yaml or
// $TRACE_ACTOR (already folded in by the caller), then $USER.
func resolveActor(current string) string {
	if current != "" {
		return current
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

// finish releases everything PersistentPreRunE acquired. It runs after the
// command whether or not it failed.
func finish() {
	if store != nil {
		if err := store.Close(); err != nil {
			debug.Logf("closing store: %v\n", err)
		}
		store = nil
	}
	if profileFile != nil {
		pprof.StopCPUProfile()
		_ = profileFile.Close()
		profileFile = nil
	}
	_ = debug.Close()
}

func main() {
	err := rootCmd.Execute()
	finish()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}
