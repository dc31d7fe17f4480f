// Package trace provides a minimal public API for programs that want to
// read or drive a trace issue store directly.
//
// Most integrations should shell out to the trace CLI with --json. This
// package exports only the types and entry points needed to open the
// store in-process.
package trace

import (
	"context"

	"github.com/tracehq/trace/internal/discover"
	"github.com/tracehq/trace/internal/reconcile"
	"github.com/tracehq/trace/internal/storage"
	"github.com/tracehq/trace/internal/storage/sqlite"
	"github.com/tracehq/trace/internal/types"
)

// Storage is the store contract shared by every backend.
type Storage = storage.Storage

// Core types from internal/types
type (
	Issue          = types.Issue
	IssueUpdate    = types.IssueUpdate
	Status         = types.Status
	IssueType      = types.IssueType
	Dependency     = types.Dependency
	DependencyType = types.DependencyType
	Label          = types.Label
	Event          = types.Event
	EventType      = types.EventType
	BlockedIssue   = types.BlockedIssue
	TreeNode       = types.TreeNode
	Statistics     = types.Statistics
	IssueFilter    = types.IssueFilter
	WorkFilter     = types.WorkFilter
)

// Status constants
const (
	StatusOpen       = types.StatusOpen
	StatusInProgress = types.StatusInProgress
	StatusBlocked    = types.StatusBlocked
	StatusClosed     = types.StatusClosed
)

// IssueType constants
const (
	TypeBug     = types.TypeBug
	TypeFeature = types.TypeFeature
	TypeTask    = types.TypeTask
	TypeEpic    = types.TypeEpic
	TypeChore   = types.TypeChore
)

// DependencyType constants
const (
	DepBlocks         = types.DepBlocks
	DepRelated        = types.DepRelated
	DepParentChild    = types.DepParentChild
	DepDiscoveredFrom = types.DepDiscoveredFrom
)

// EventType constants
const (
	EventCreated           = types.EventCreated
	EventUpdated           = types.EventUpdated
	EventStatusChanged     = types.EventStatusChanged
	EventCommented         = types.EventCommented
	EventClosed            = types.EventClosed
	EventReopened          = types.EventReopened
	EventDependencyAdded   = types.EventDependencyAdded
	EventDependencyRemoved = types.EventDependencyRemoved
	EventLabelAdded        = types.EventLabelAdded
	EventLabelRemoved      = types.EventLabelRemoved
)

// IsNotFound reports whether err means a missing issue, edge or key.
func IsNotFound(err error) bool { return storage.IsNotFound(err) }

// Open opens (creating if needed) the SQLite store at dbPath.
func Open(dbPath string) (Storage, error) {
	s, err := sqlite.New(dbPath)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FindDatabasePath discovers the project database: $TRACE_DB, then the
// nearest .trace directory. Returns "" if none is found.
func FindDatabasePath() string {
	return discover.FindDatabasePath()
}

// FindSnapshotPath returns the snapshot file paired with dbPath.
func FindSnapshotPath(dbPath string) string {
	return discover.FindSnapshotPath(dbPath)
}

// Sync brings store and the snapshot at path into agreement: it imports
// the snapshot if it changed since the last sync, then exports any local
// changes.
func Sync(ctx context.Context, store Storage, path, actor string) error {
	if _, err := reconcile.ImportIfNewer(ctx, store, path, actor); err != nil {
		return err
	}
	_, err := reconcile.ExportIfDirty(ctx, store, path)
	return err
}
