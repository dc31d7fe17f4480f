// Package storage defines the interface for issue storage backends.
package storage

import (
	"context"

	"github.com/tracehq/trace/internal/types"
)

// Storage defines the interface for issue storage backends.
//
// Every method is synchronous and takes a context. Mutations mark the
// touched issue dirty so the snapshot exporter can pick it up.
type Storage interface {
	// Issues
	CreateIssue(ctx context.Context, issue *types.Issue, actor string) error
	GetIssue(ctx context.Context, id string) (*types.Issue, error)
	UpdateIssue(ctx context.Context, id string, update types.IssueUpdate, actor string) error
	CloseIssue(ctx context.Context, id string, reason string, actor string) error
	DeleteIssue(ctx context.Context, id string) error
	SearchIssues(ctx context.Context, filter types.IssueFilter) ([]*types.Issue, error)
	AddComment(ctx context.Context, issueID, actor, text string) error

	// IDs
	NextIssueID(ctx context.Context, prefix string) (string, error)

	// Dependencies
	AddDependency(ctx context.Context, dep *types.Dependency, actor string) error
	RemoveDependency(ctx context.Context, issueID, dependsOnID string, actor string) error
	GetDependencies(ctx context.Context, issueID string) ([]*types.Issue, error)
	GetDependents(ctx context.Context, issueID string) ([]*types.Issue, error)
	GetDependencyRecords(ctx context.Context, issueID string) ([]*types.Dependency, error)
	GetAllDependencyRecords(ctx context.Context) (map[string][]*types.Dependency, error)
	GetDependencyTree(ctx context.Context, issueID string, maxDepth int) ([]*types.TreeNode, error)
	DetectCycles(ctx context.Context) ([][]*types.Issue, error)

	// Ready work & blocking
	GetReadyWork(ctx context.Context, filter types.WorkFilter) ([]*types.Issue, error)
	GetBlockedIssues(ctx context.Context) ([]*types.BlockedIssue, error)

	// Labels
	AddLabel(ctx context.Context, issueID, label, actor string) error
	RemoveLabel(ctx context.Context, issueID, label, actor string) error
	GetLabels(ctx context.Context, issueID string) ([]string, error)
	GetIssuesByLabel(ctx context.Context, label string) ([]*types.Issue, error)

	// Events
	AddEvent(ctx context.Context, event *types.Event) error
	GetEvents(ctx context.Context, issueID string, limit int) ([]*types.Event, error)

	// Dirty tracking (for incremental JSONL export)
	MarkIssueDirty(ctx context.Context, issueID string) error
	GetDirtyIssues(ctx context.Context) ([]string, error)
	ClearDirtyIssues(ctx context.Context) error
	ClearDirtyIssuesByID(ctx context.Context, issueIDs []string) error

	// Statistics
	GetStatistics(ctx context.Context) (*types.Statistics, error)

	// Config
	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, error)
	GetAllConfig(ctx context.Context) (map[string]string, error)
	DeleteConfig(ctx context.Context, key string) error

	// Metadata (for internal state like import hashes)
	SetMetadata(ctx context.Context, key, value string) error
	GetMetadata(ctx context.Context, key string) (string, error)

	// Lifecycle
	Close() error
	Path() string
}

// Well-known config and metadata keys.
const (
	ConfigIssuePrefix      = "issue_prefix"
	DefaultIssuePrefix     = "bd"
	MetadataLastImportHash = "last_import_hash"
	MetadataVersion        = "trace_version"
)
