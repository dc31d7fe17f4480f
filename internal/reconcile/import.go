package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tracehq/trace/internal/debug"
	"github.com/tracehq/trace/internal/storage"
	"github.com/tracehq/trace/internal/types"
)

// ImportOptions controls a manual import.
type ImportOptions struct {
	Actor        string
	DryRun       bool // count what would change, write nothing
	SkipExisting bool // never update issues already in the store
}

// ImportResult counts what an import did (or would do, for a dry run).
type ImportResult struct {
	Created           int    `json:"created"`
	Updated           int    `json:"updated"`
	Unchanged         int    `json:"unchanged"`
	Skipped           int    `json:"skipped"`
	DependenciesAdded int    `json:"dependencies_added"`
	Hash              string `json:"hash,omitempty"`
	UpToDate          bool   `json:"up_to_date"` // hash matched, nothing read
}

// Changed reports whether the import wrote anything.
func (r *ImportResult) Changed() bool {
	return r.Created+r.Updated+r.DependenciesAdded > 0
}

// ImportIfNewer imports the snapshot at path unless its content hash
// matches the last one imported or exported. A missing snapshot is not an
// error.
func ImportIfNewer(ctx context.Context, store storage.Storage, path, actor string) (*ImportResult, error) {
	data, err := os.ReadFile(path) // #nosec G304 - snapshot path comes from discovery
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			debug.Logf("auto-import skipped, snapshot not found: %s\n", path)
			return &ImportResult{UpToDate: true}, nil
		}
		return nil, &Error{Op: "read", Path: path, Err: err}
	}

	hash := hashBytes(data)
	lastHash, err := store.GetMetadata(ctx, storage.MetadataLastImportHash)
	if err != nil {
		// unreadable metadata means a first import, not a skipped one
		debug.Logf("metadata read failed (%v), treating as first import\n", err)
		lastHash = ""
	}
	if hash == lastHash {
		debug.Logf("auto-import skipped, snapshot unchanged (hash match)\n")
		return &ImportResult{UpToDate: true, Hash: hash}, nil
	}

	debug.Logf("auto-import triggered (hash changed)\n")
	records, err := readRecords(bytes.NewReader(data))
	if err != nil {
		return nil, withPath(err, path)
	}

	result, err := importRecords(ctx, store, records, ImportOptions{Actor: actor})
	if err != nil {
		return nil, withPath(err, path)
	}
	result.Hash = hash
	if err := store.SetMetadata(ctx, storage.MetadataLastImportHash, hash); err != nil {
		return nil, &Error{Op: "import", Path: path, Err: fmt.Errorf("record import hash: %w", err)}
	}
	return result, nil
}

// ImportReader imports every record read from r. It does not consult or
// update the last import hash.
func ImportReader(ctx context.Context, store storage.Storage, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	return importRecords(ctx, store, records, opts)
}

func withPath(err error, path string) error {
	var re *Error
	if errors.As(err, &re) && re.Path == "" {
		re.Path = path
	}
	return err
}

// importRecords validates everything first, then creates or updates each
// issue, then adds missing edges once every issue exists. An edge whose
// target is neither in the input nor in the store fails the whole import.
func importRecords(ctx context.Context, store storage.Storage, records []record, opts ImportOptions) (*ImportResult, error) {
	present := make(map[string]bool, len(records))
	for _, rec := range records {
		present[rec.issue.ID] = true
	}

	for _, rec := range records {
		normalize(rec.issue)
		if rec.issue.ID == "" {
			return nil, &Error{Op: "import", Line: rec.line, Err: &types.ValidationError{Field: "id", Message: "id is required"}}
		}
		if err := rec.issue.Validate(); err != nil {
			return nil, &Error{Op: "import", Line: rec.line, Err: fmt.Errorf("issue %s: %w", rec.issue.ID, err)}
		}
		for _, dep := range rec.issue.Dependencies {
			edge := types.Dependency{IssueID: rec.issue.ID, DependsOnID: dep.DependsOnID, Type: dep.Type}
			if edge.Type == "" {
				edge.Type = types.DepBlocks
			}
			if err := edge.Validate(); err != nil {
				return nil, &Error{Op: "import", Line: rec.line, Err: fmt.Errorf("issue %s: %w", rec.issue.ID, err)}
			}
			if err := checkTarget(ctx, store, present, edge); err != nil {
				return nil, &Error{Op: "import", Line: rec.line, Err: err}
			}
		}
	}

	result := &ImportResult{}
	for _, rec := range records {
		if err := importIssue(ctx, store, rec.issue, opts, result); err != nil {
			return nil, &Error{Op: "import", Line: rec.line, Err: err}
		}
	}

	for _, rec := range records {
		if err := importDependencies(ctx, store, rec.issue, opts, result); err != nil {
			return nil, &Error{Op: "import", Line: rec.line, Err: err}
		}
	}
	return result, nil
}

func checkTarget(ctx context.Context, store storage.Storage, present map[string]bool, edge types.Dependency) error {
	if present[edge.DependsOnID] {
		return nil
	}
	_, err := store.GetIssue(ctx, edge.DependsOnID)
	if storage.IsNotFound(err) {
		return storage.NotFoundf("issue %s depends on %s", edge.IssueID, edge.DependsOnID)
	}
	return err
}

// normalize applies defaults and repairs closed records without closed_at.
func normalize(issue *types.Issue) {
	issue.ApplyDefaults()
	if issue.Status == types.StatusClosed && issue.ClosedAt == nil {
		closed := issue.UpdatedAt
		if closed.IsZero() {
			closed = issue.CreatedAt
		}
		issue.ClosedAt = &closed
	}
}

func importIssue(ctx context.Context, store storage.Storage, src *types.Issue, opts ImportOptions, result *ImportResult) error {
	existing, err := store.GetIssue(ctx, src.ID)
	switch {
	case storage.IsNotFound(err):
		result.Created++
		if opts.DryRun {
			return nil
		}
		issue := *src
		issue.Dependencies = nil
		return store.CreateIssue(ctx, &issue, opts.Actor)
	case err != nil:
		return err
	case opts.SkipExisting:
		result.Skipped++
		return nil
	case types.SameContent(src, existing):
		result.Unchanged++
		return nil
	}

	result.Updated++
	if opts.DryRun {
		return nil
	}
	return store.UpdateIssue(ctx, src.ID, types.FullUpdate(src), opts.Actor)
}

// importDependencies adds edges the store lacks. Edges present only in the
// store are left alone.
func importDependencies(ctx context.Context, store storage.Storage, src *types.Issue, opts ImportOptions, result *ImportResult) error {
	if len(src.Dependencies) == 0 {
		return nil
	}
	records, err := store.GetDependencyRecords(ctx, src.ID)
	if err != nil {
		return err
	}
	have := make(map[string]types.DependencyType, len(records))
	for _, dep := range records {
		have[dep.DependsOnID] = dep.Type
	}

	for _, dep := range src.Dependencies {
		depType := dep.Type
		if depType == "" {
			depType = types.DepBlocks
		}
		if t, ok := have[dep.DependsOnID]; ok && t == depType {
			continue
		}

		result.DependenciesAdded++
		if opts.DryRun {
			continue
		}
		edge := &types.Dependency{
			IssueID:     src.ID,
			DependsOnID: dep.DependsOnID,
			Type:        depType,
			CreatedAt:   dep.CreatedAt,
			CreatedBy:   dep.CreatedBy,
		}
		if err := store.AddDependency(ctx, edge, opts.Actor); err != nil {
			return err
		}
	}
	return nil
}
