// Package reconcile keeps the SQLite store and the line-delimited JSON
// snapshot that lives in version control convergent.
package reconcile

import (
	"errors"
	"fmt"

	"github.com/tracehq/trace/internal/debug"
)

// ErrConflictMarkers reports unresolved git merge markers in a snapshot.
var ErrConflictMarkers = errors.New("unresolved merge conflict markers")

// Error is returned for any snapshot read, parse or write failure.
type Error struct {
	Op   string // "read", "parse", "import", "export", "write"
	Path string
	Line int // 1-based; 0 when not tied to a line
	Err  error
}

func (e *Error) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "snapshot"
	}
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, loc, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Warnf receives non-fatal problems such as skipped snapshot lines.
var Warnf = debug.Logf
