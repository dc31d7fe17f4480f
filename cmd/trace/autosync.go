package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/tracehq/trace/internal/debug"
	"github.com/tracehq/trace/internal/reconcile"
	"github.com/tracehq/trace/internal/storage"
	"github.com/tracehq/trace/internal/storage/sqlite"
)

// openStore opens the database at path and refuses databases last written
// by a newer major version of trace. Older databases are stamped with the
// running version.
func openStore(ctx context.Context, path string) (storage.Storage, error) {
	s, err := backoff.RetryWithData(func() (*sqlite.SQLiteStorage, error) {
		s, err := sqlite.New(path)
		if err != nil && !isBusyError(err) {
			return nil, backoff.Permanent(err)
		}
		return s, err
	}, backoff.WithContext(newOpenBackoff(), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	stored, err := s.GetMetadata(ctx, storage.MetadataVersion)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to read database version: %w", err)
	}
	newer, err := checkVersionCompatibility(stored, Version)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if !newer && stored != Version {
		if err := s.SetMetadata(ctx, storage.MetadataVersion, Version); err != nil {
			debug.Logf("failed to record database version: %v\n", err)
		}
	}
	return s, nil
}

const openMaxElapsed = 5 * time.Second

func newOpenBackoff() backoff.BackOff {
	// BackOff values are stateful; build a fresh one per open.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = openMaxElapsed
	return bo
}

// isBusyError reports whether err is SQLite lock contention, typically a
// concurrent trace process running migrations.
func isBusyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

func semverOf(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// checkVersionCompatibility compares the version recorded in a database
// with the running binary. It reports whether the database is newer, and
// fails when the major versions differ in that direction.
func checkVersionCompatibility(dbVersion, binVersion string) (bool, error) {
	if dbVersion == "" {
		return false, nil
	}
	dbVer, binVer := semverOf(dbVersion), semverOf(binVersion)

	// dev builds and hand-edited values are let through
	if !semver.IsValid(dbVer) || !semver.IsValid(binVer) {
		return false, nil
	}

	if semver.Compare(dbVer, binVer) <= 0 {
		return false, nil
	}
	if semver.Major(dbVer) != semver.Major(binVer) {
		return true, fmt.Errorf("incompatible database version: database was written by trace %s, this is trace %s; upgrade the trace CLI",
			dbVersion, binVersion)
	}
	debug.Logf("database written by newer trace %s (running %s)\n", dbVersion, binVersion)
	return true, nil
}

// autoImportIfNewer pulls in snapshot changes made outside this process,
// typically by git pull. A broken snapshot is fatal.
func autoImportIfNewer(cmd *cobra.Command) error {
	result, err := reconcile.ImportIfNewer(rootCtx, store, snapshotPath, actor)
	if err != nil {
		return fmt.Errorf("auto-import failed: %w\nHint: fix %s or rerun with --no-auto-import", err, snapshotPath)
	}
	if result.Changed() && !debug.IsQuiet() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Auto-imported %d new and %d updated issues from %s\n",
			result.Created, result.Updated, snapshotPath)
	}
	return nil
}

// flushOnExit writes dirty issues back to the snapshot. Failures are
// reported but never fail the command.
func flushOnExit(cmd *cobra.Command) {
	if store == nil || noAutoFlush || snapshotPath == "" {
		return
	}
	result, err := reconcile.ExportIfDirty(rootCtx, store, snapshotPath)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s auto-flush failed: %v\n", yellow("⚠"), err)
		if dirty, derr := store.GetDirtyIssues(rootCtx); derr == nil && len(dirty) > 0 {
			critical := color.New(color.FgRed, color.Bold).SprintFunc()
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %d issue(s) not yet written to %s; run 'trace export -o %s'\n",
				critical("!"), len(dirty), snapshotPath, snapshotPath)
		}
		return
	}
	if result.Exported+result.Removed > 0 {
		debug.Logf("auto-flushed %d issue(s), removed %d, to %s\n", result.Exported, result.Removed, snapshotPath)
	}
}
