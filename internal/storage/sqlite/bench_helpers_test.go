//go:build bench

package sqlite

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/pprof"
	"sync"
	"testing"
	"time"

	"github.com/tracehq/trace/internal/storage"
	"github.com/tracehq/trace/internal/testutil/fixtures"
)

var (
	profileOnce   sync.Once
	profileFile   *os.File
	benchCacheDir = filepath.Join(os.TempDir(), "trace-bench-cache")
)

// startBenchmarkProfiling starts one CPU profile for the whole benchmark
// run, saved to bench-cpu-<timestamp>.prof.
func startBenchmarkProfiling(b *testing.B) {
	b.Helper()
	profileOnce.Do(func() {
		profilePath := fmt.Sprintf("bench-cpu-%s.prof", time.Now().Format("2006-01-02-150405"))
		f, err := os.Create(profilePath)
		if err != nil {
			b.Logf("Warning: failed to create CPU profile: %v", err)
			return
		}
		profileFile = f

		if err := pprof.StartCPUProfile(f); err != nil {
			b.Logf("Warning: failed to start CPU profiling: %v", err)
			_ = f.Close()
			return
		}
		b.Logf("CPU profiling enabled: %s", profilePath)

		b.Cleanup(func() {
			pprof.StopCPUProfile()
			if profileFile != nil {
				_ = profileFile.Close()
				b.Logf("CPU profile saved: %s", profilePath)
			}
		})
	})
}

// cachedDB returns the path of a generated database, building it on the
// first run. Datasets are cached across runs under benchCacheDir.
func cachedDB(b *testing.B, cacheKey string, generate func(context.Context, storage.Storage) error) string {
	b.Helper()

	if err := os.MkdirAll(benchCacheDir, 0o750); err != nil {
		b.Fatalf("Failed to create benchmark cache directory: %v", err)
	}
	dbPath := filepath.Join(benchCacheDir, cacheKey+".db")
	if stat, err := os.Stat(dbPath); err == nil {
		b.Logf("Using cached benchmark database: %s (%.1f MB)", dbPath, float64(stat.Size())/(1024*1024))
		return dbPath
	}

	b.Logf("Generating benchmark database %s (one-time)", dbPath)
	store, err := New(dbPath)
	if err != nil {
		b.Fatalf("Failed to create storage: %v", err)
	}
	if err := generate(context.Background(), store); err != nil {
		_ = store.Close()
		_ = os.Remove(dbPath)
		b.Fatalf("Failed to generate dataset: %v", err)
	}
	// the copy below only sees the main file
	if err := store.CheckpointWAL(); err != nil {
		b.Logf("Warning: checkpoint failed: %v", err)
	}
	_ = store.Close()
	return dbPath
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src) // #nosec G304 - benchmark cache
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst) // #nosec G304 - benchmark temp dir
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}
	return dstFile.Sync()
}

// openBenchCopy opens a private copy of a cached dataset so mutating
// benchmarks leave the cache alone.
func openBenchCopy(b *testing.B, cacheKey string, generate func(context.Context, storage.Storage) error) *SQLiteStorage {
	b.Helper()
	startBenchmarkProfiling(b)

	cachedPath := cachedDB(b, cacheKey, generate)
	tmpPath := filepath.Join(b.TempDir(), cacheKey+".db")
	if err := copyFile(cachedPath, tmpPath); err != nil {
		b.Fatalf("Failed to copy cached database: %v", err)
	}
	store, err := New(tmpPath)
	if err != nil {
		b.Fatalf("Failed to open database: %v", err)
	}
	b.Cleanup(func() { _ = store.Close() })
	return store
}

func setupLargeBenchDB(b *testing.B) *SQLiteStorage {
	return openBenchCopy(b, "large", fixtures.Large)
}

func setupXLargeBenchDB(b *testing.B) *SQLiteStorage {
	return openBenchCopy(b, "xlarge", fixtures.XLarge)
}

func setupLargeFromSnapshot(b *testing.B) *SQLiteStorage {
	return openBenchCopy(b, "large-snapshot", func(ctx context.Context, store storage.Storage) error {
		return fixtures.LargeFromSnapshot(ctx, store, b.TempDir())
	})
}

// setupEmptyBenchDB opens a fresh database for benchmarks that build their
// own graph.
func setupEmptyBenchDB(b *testing.B) *SQLiteStorage {
	b.Helper()
	store, err := New(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatalf("Failed to create storage: %v", err)
	}
	b.Cleanup(func() { _ = store.Close() })
	return store
}
