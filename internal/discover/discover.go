// Package discover locates a project's .trace directory, database and
// snapshot file.
package discover

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tracehq/trace/internal/config"
	"github.com/tracehq/trace/internal/configfile"
	"github.com/tracehq/trace/internal/debug"
)

// canonicalize returns the absolute, symlink-resolved form of path, or the
// best approximation available.
func canonicalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// FindTraceDir returns the .trace directory for the current project:
// $TRACE_DIR if it names a directory, else the nearest .trace directory at
// or above the working directory. It returns "" when there is none.
func FindTraceDir() string {
	if dir := os.Getenv("TRACE_DIR"); dir != "" {
		abs := canonicalize(dir)
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return abs
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := canonicalize(cwd); ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, config.DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		if dir == filepath.Dir(dir) {
			return ""
		}
	}
}

// FindDatabasePath discovers the database using this search order:
//  1. $TRACE_DB (points directly at the database file)
//  2. the database named in metadata.json of the .trace directory
//  3. trace.db, then any other *.db, in the .trace directory
//
// It returns "" if no database is found.
func FindDatabasePath() string {
	if envDB := os.Getenv("TRACE_DB"); envDB != "" {
		return canonicalize(envDB)
	}
	traceDir := FindTraceDir()
	if traceDir == "" {
		return ""
	}
	return databaseIn(traceDir)
}

func databaseIn(traceDir string) string {
	if cfg, err := configfile.Load(traceDir); err != nil {
		debug.Logf("ignoring %s: %v\n", configfile.ConfigPath(traceDir), err)
	} else if cfg != nil {
		if path := cfg.DatabasePath(traceDir); exists(path) {
			return path
		}
	}

	if path := filepath.Join(traceDir, configfile.DefaultDatabase); exists(path) {
		return path
	}

	matches, err := filepath.Glob(filepath.Join(traceDir, "*.db"))
	if err != nil {
		return ""
	}
	var valid []string
	for _, match := range matches {
		if !strings.Contains(filepath.Base(match), ".backup") {
			valid = append(valid, match)
		}
	}
	if len(valid) > 1 {
		debug.Logf("multiple databases in %s, using %s\n", traceDir, filepath.Base(valid[0]))
	}
	if len(valid) > 0 {
		return valid[0]
	}
	return ""
}

// FindSnapshotPath returns the snapshot file paired with dbPath. $TRACE_JSONL
// wins; otherwise metadata.json, then an existing *.jsonl beside the
// database, then issues.jsonl. The file need not exist.
func FindSnapshotPath(dbPath string) string {
	if env := os.Getenv("TRACE_JSONL"); env != "" {
		return canonicalize(env)
	}
	if dbPath == "" {
		return ""
	}
	dir := filepath.Dir(dbPath)

	if cfg, err := configfile.Load(dir); err == nil && cfg != nil && cfg.Snapshot != "" {
		return cfg.SnapshotPath(dir)
	}
	if matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl")); err == nil && len(matches) > 0 {
		return matches[0]
	}
	return filepath.Join(dir, configfile.DefaultSnapshot)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
