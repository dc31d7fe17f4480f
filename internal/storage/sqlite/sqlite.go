// Package sqlite implements the storage interface using SQLite.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/tracehq/trace/internal/storage"
)

var _ storage.Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
	closed atomic.Bool
}

// setupWASMCache points the embedded SQLite runtime at a persistent
// compilation cache under the user cache dir, falling back to memory.
// Returns the cache directory, or "" for the in-memory fallback.
func setupWASMCache() string {
	cacheDir := ""
	if userCache, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(userCache, "trace", "wasm")
	}

	var cache wazero.CompilationCache
	if cacheDir != "" {
		if c, err := wazero.NewCompilationCacheWithDir(cacheDir); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
		cacheDir = ""
	}

	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
	return cacheDir
}

func init() {
	// Compiling the SQLite module dominates startup; cache it across runs.
	_ = setupWASMCache()
}

const pragmas = "_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"

// memSeq names each ":memory:" store so two stores in one process stay apart.
var memSeq atomic.Int64

// connString builds the driver DSN for a path.
func connString(path string) (string, bool, error) {
	switch {
	case path == ":memory:":
		// WAL does not work with shared in-memory databases.
		name := fmt.Sprintf("memdb%d", memSeq.Add(1))
		return "file:" + name + "?mode=memory&cache=shared&_pragma=journal_mode(DELETE)&" + pragmas, true, nil
	case strings.HasPrefix(path, "file:"):
		connStr := path
		if !strings.Contains(path, "_pragma=foreign_keys") {
			sep := "?"
			if strings.Contains(path, "?") {
				sep = "&"
			}
			connStr += sep + pragmas
		}
		return connStr, strings.Contains(path, "mode=memory"), nil
	default:
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return "", false, fmt.Errorf("failed to create directory: %w", err)
		}
		return "file:" + path + "?_pragma=journal_mode(WAL)&" + pragmas, false, nil
	}
}

// New opens (creating if needed) the store at path and brings its schema
// up to date. ":memory:" and "file:...mode=memory" URIs open an in-memory
// store.
func New(path string) (*SQLiteStorage, error) {
	connStr, inMemory, err := connString(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// In-memory databases are per connection; pin the pool to one.
	if inMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	absPath := path
	if !inMemory {
		absPath, err = filepath.Abs(path)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
	}

	return &SQLiteStorage{db: db, dbPath: absPath}, nil
}

// initSchema applies the base schema and migrations, then probes the
// result. A failed probe gets one more migration pass.
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		return err
	}

	if err := verifySchemaCompatibility(db); err != nil {
		if retryErr := RunMigrations(db); retryErr != nil {
			return fmt.Errorf("migration retry failed after schema probe failure: %w (original: %v)", retryErr, err)
		}
		if err := verifySchemaCompatibility(db); err != nil {
			return fmt.Errorf("schema probe failed after migration retry: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	s.closed.Store(true)
	return s.db.Close()
}

// Path returns the absolute path to the database file
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// IsClosed returns true if Close() has been called on this storage
func (s *SQLiteStorage) IsClosed() bool {
	return s.closed.Load()
}

// UnderlyingDB returns the underlying *sql.DB. Callers must not close it
// or change its pragmas.
func (s *SQLiteStorage) UnderlyingDB() *sql.DB {
	return s.db
}

// CheckpointWAL flushes the write-ahead log into the main database file,
// which makes the file safe to copy.
func (s *SQLiteStorage) CheckpointWAL() error {
	_, err := s.db.Exec("PRAGMA wal_checkpoint(FULL)")
	return wrapDBError("checkpoint wal", err)
}
