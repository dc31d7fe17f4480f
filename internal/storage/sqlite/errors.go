package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/ncruces/go-sqlite3"
	"github.com/tracehq/trace/internal/storage"
)

// wrapDBError wraps a database error with operation context.
// It converts sql.ErrNoRows to storage.ErrNotFound and constraint
// violations to storage.ErrConflict so callers can test with errors.Is.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if isConstraintError(err) {
		return &storage.StorageError{Op: op, Err: fmt.Errorf("%w: %w", storage.ErrConflict, err)}
	}
	return &storage.StorageError{Op: op, Err: err}
}

// wrapDBErrorf wraps a database error with formatted operation context.
func wrapDBErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return wrapDBError(fmt.Sprintf(format, args...), err)
}

// isConstraintError checks if an error is a UNIQUE or PRIMARY KEY violation
func isConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sqlite3.CONSTRAINT) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
