package discover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tracehq/trace/internal/configfile"
)

// project creates root/.trace, chdirs into root/sub and clears the
// discovery environment.
func project(t *testing.T) (root, traceDir string) {
	t.Helper()
	root = canonicalize(t.TempDir())
	traceDir = filepath.Join(root, ".trace")
	sub := filepath.Join(root, "sub")
	for _, dir := range []string{traceDir, sub} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("TRACE_DIR", "")
	t.Setenv("TRACE_DB", "")
	t.Setenv("TRACE_JSONL", "")
	t.Chdir(sub)
	return root, traceDir
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestFindTraceDirWalksUp(t *testing.T) {
	_, traceDir := project(t)
	if got := FindTraceDir(); got != traceDir {
		t.Errorf("FindTraceDir() = %q, want %q", got, traceDir)
	}
}

func TestFindTraceDirNone(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRACE_DIR", "")
	t.Chdir(dir)
	// a .trace directory above the temp dir would be found; only assert
	// that the result is not inside it
	if got := FindTraceDir(); got != "" && filepath.Dir(got) == canonicalize(dir) {
		t.Errorf("FindTraceDir() = %q in an empty directory", got)
	}
}

func TestFindTraceDirFromEnv(t *testing.T) {
	project(t)
	other := filepath.Join(canonicalize(t.TempDir()), "elsewhere")
	if err := os.MkdirAll(other, 0o750); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRACE_DIR", other)
	if got := FindTraceDir(); got != other {
		t.Errorf("FindTraceDir() = %q, want %q", got, other)
	}
}

func TestFindDatabasePath(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		project(t)
		if got := FindDatabasePath(); got != "" {
			t.Errorf("FindDatabasePath() = %q, want empty", got)
		}
	})

	t.Run("canonical name", func(t *testing.T) {
		_, traceDir := project(t)
		touch(t, filepath.Join(traceDir, "other.db"))
		touch(t, filepath.Join(traceDir, "trace.db"))
		if got, want := FindDatabasePath(), filepath.Join(traceDir, "trace.db"); got != want {
			t.Errorf("FindDatabasePath() = %q, want %q", got, want)
		}
	})

	t.Run("metadata wins", func(t *testing.T) {
		_, traceDir := project(t)
		touch(t, filepath.Join(traceDir, "trace.db"))
		touch(t, filepath.Join(traceDir, "work.db"))
		if err := (&configfile.Config{Database: "work.db"}).Save(traceDir); err != nil {
			t.Fatal(err)
		}
		if got, want := FindDatabasePath(), filepath.Join(traceDir, "work.db"); got != want {
			t.Errorf("FindDatabasePath() = %q, want %q", got, want)
		}
	})

	t.Run("backups ignored", func(t *testing.T) {
		_, traceDir := project(t)
		touch(t, filepath.Join(traceDir, "trace.backup.db"))
		if got := FindDatabasePath(); got != "" {
			t.Errorf("FindDatabasePath() = %q, want empty", got)
		}
	})

	t.Run("env override", func(t *testing.T) {
		root, _ := project(t)
		want := filepath.Join(root, "custom.db")
		t.Setenv("TRACE_DB", want)
		if got := FindDatabasePath(); got != want {
			t.Errorf("FindDatabasePath() = %q, want %q", got, want)
		}
	})
}

func TestFindSnapshotPath(t *testing.T) {
	_, traceDir := project(t)
	dbPath := filepath.Join(traceDir, "trace.db")

	if got, want := FindSnapshotPath(dbPath), filepath.Join(traceDir, "issues.jsonl"); got != want {
		t.Errorf("default: got %q, want %q", got, want)
	}

	touch(t, filepath.Join(traceDir, "legacy.jsonl"))
	if got, want := FindSnapshotPath(dbPath), filepath.Join(traceDir, "legacy.jsonl"); got != want {
		t.Errorf("existing file: got %q, want %q", got, want)
	}

	if err := (&configfile.Config{Database: "trace.db", Snapshot: "named.jsonl"}).Save(traceDir); err != nil {
		t.Fatal(err)
	}
	if got, want := FindSnapshotPath(dbPath), filepath.Join(traceDir, "named.jsonl"); got != want {
		t.Errorf("metadata: got %q, want %q", got, want)
	}

	env := filepath.Join(traceDir, "env.jsonl")
	t.Setenv("TRACE_JSONL", env)
	if got := FindSnapshotPath(dbPath); got != env {
		t.Errorf("env: got %q, want %q", got, env)
	}

	if got := FindSnapshotPath(""); got != env {
		t.Errorf("env applies without a database: got %q", got)
	}
}
