package reconcile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tracehq/trace/internal/debug"
	"github.com/tracehq/trace/internal/storage"
	"github.com/tracehq/trace/internal/types"
)

// ExportResult counts what an export wrote.
type ExportResult struct {
	Exported int    `json:"exported"` // dirty issues rewritten
	Removed  int    `json:"removed"`  // dirty issues no longer in the store
	Total    int    `json:"total"`    // records in the written file
	Hash     string `json:"hash,omitempty"`
}

// ExportIfDirty merges every dirty issue into the snapshot at path and
// clears exactly the IDs it wrote. Nothing happens when the dirty set is
// empty. On failure the dirty set is left intact for the next attempt.
func ExportIfDirty(ctx context.Context, store storage.Storage, path string) (*ExportResult, error) {
	dirty, err := store.GetDirtyIssues(ctx)
	if err != nil {
		return nil, &Error{Op: "export", Path: path, Err: fmt.Errorf("get dirty issues: %w", err)}
	}
	if len(dirty) == 0 {
		return &ExportResult{}, nil
	}

	snapshot, onDisk, err := loadSnapshot(path)
	if err != nil {
		return nil, err
	}
	// Records merged from an unimported snapshot must stay visible to the
	// next import, so the hash is only advanced from an imported state.
	record := onDisk == "" || onDisk == lastImportHash(ctx, store)

	result := &ExportResult{}
	for _, id := range dirty {
		issue, err := issueWithDependencies(ctx, store, id)
		if storage.IsNotFound(err) {
			delete(snapshot, id)
			result.Removed++
			continue
		}
		if err != nil {
			return nil, &Error{Op: "export", Path: path, Err: err}
		}
		snapshot[id] = issue
		result.Exported++
	}

	issues := make([]*types.Issue, 0, len(snapshot))
	for _, issue := range snapshot {
		issues = append(issues, issue)
	}
	hash, err := WriteJSONLAtomic(path, issues)
	if err != nil {
		return nil, err
	}
	result.Total = len(issues)
	result.Hash = hash

	finishExport(ctx, store, dirty, hash, record)
	return result, nil
}

// ExportToFile rewrites the snapshot at path from every issue in the store
// and clears the whole dirty set. The written file mirrors the store, so
// its hash becomes the last import hash.
func ExportToFile(ctx context.Context, store storage.Storage, path string) (*ExportResult, error) {
	dirty, err := store.GetDirtyIssues(ctx)
	if err != nil {
		return nil, &Error{Op: "export", Path: path, Err: fmt.Errorf("get dirty issues: %w", err)}
	}
	issues, err := collect(ctx, store, types.IssueFilter{})
	if err != nil {
		return nil, &Error{Op: "export", Path: path, Err: err}
	}
	hash, err := WriteJSONLAtomic(path, issues)
	if err != nil {
		return nil, err
	}
	finishExport(ctx, store, dirty, hash, true)
	return &ExportResult{Exported: len(issues), Total: len(issues), Hash: hash}, nil
}

// ExportAll writes every issue matching filter, with dependencies, to w.
func ExportAll(ctx context.Context, store storage.Storage, w io.Writer, filter types.IssueFilter) (int, error) {
	issues, err := collect(ctx, store, filter)
	if err != nil {
		return 0, &Error{Op: "export", Err: err}
	}
	if err := WriteJSONL(w, issues); err != nil {
		return 0, err
	}
	return len(issues), nil
}

// finishExport clears the written IDs and, when record is set, stores the
// file hash so the next import-if-newer skips our own output. Failures here
// only warn: the snapshot is already on disk.
func finishExport(ctx context.Context, store storage.Storage, written []string, hash string, record bool) {
	if len(written) > 0 {
		if err := store.ClearDirtyIssuesByID(ctx, written); err != nil {
			Warnf("failed to clear dirty issues: %v\n", err)
		}
	}
	if !record {
		debug.Logf("snapshot had unimported changes, leaving %s for the next import\n", storage.MetadataLastImportHash)
		return
	}
	if err := store.SetMetadata(ctx, storage.MetadataLastImportHash, hash); err != nil {
		Warnf("failed to update %s after export: %v\n", storage.MetadataLastImportHash, err)
	}
}

func collect(ctx context.Context, store storage.Storage, filter types.IssueFilter) ([]*types.Issue, error) {
	issues, err := store.SearchIssues(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	deps, err := store.GetAllDependencyRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("get dependencies: %w", err)
	}
	for _, issue := range issues {
		issue.Dependencies = deps[issue.ID]
	}
	return issues, nil
}

func issueWithDependencies(ctx context.Context, store storage.Storage, id string) (*types.Issue, error) {
	issue, err := store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	deps, err := store.GetDependencyRecords(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get dependencies for %s: %w", id, err)
	}
	issue.Dependencies = deps
	return issue, nil
}

func lastImportHash(ctx context.Context, store storage.Storage) string {
	h, err := store.GetMetadata(ctx, storage.MetadataLastImportHash)
	if err != nil {
		debug.Logf("failed to read %s: %v\n", storage.MetadataLastImportHash, err)
		return ""
	}
	return h
}

// loadSnapshot reads the current snapshot keyed by ID along with the hash
// of its content. A missing file is an empty snapshot with no hash;
// malformed lines are skipped with a warning.
func loadSnapshot(path string) (map[string]*types.Issue, string, error) {
	snapshot := make(map[string]*types.Issue)
	data, err := os.ReadFile(path) // #nosec G304 - snapshot path comes from discovery
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return snapshot, "", nil
		}
		return nil, "", &Error{Op: "read", Path: path, Err: err}
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var issue types.Issue
		if err := json.Unmarshal(line, &issue); err != nil {
			Warnf("skipping malformed snapshot line %d: %v\n", lineNo, err)
			continue
		}
		snapshot[issue.ID] = &issue
	}
	if err := scanner.Err(); err != nil {
		return nil, "", &Error{Op: "read", Path: path, Line: lineNo + 1, Err: err}
	}
	return snapshot, hashBytes(data), nil
}

// WriteJSONLAtomic writes issues sorted by ID to a temp file beside path
// and renames it into place. It returns the hash of the written content.
func WriteJSONLAtomic(path string, issues []*types.Issue) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", &Error{Op: "write", Path: path, Err: err}
	}

	tempPath := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	f, err := os.Create(tempPath) // #nosec G304 - derived from the snapshot path
	if err != nil {
		return "", &Error{Op: "write", Path: path, Err: fmt.Errorf("create temp file: %w", err)}
	}
	defer func() {
		if f != nil {
			_ = f.Close()
			_ = os.Remove(tempPath)
		}
	}()

	hasher := newHashWriter(f)
	w := bufio.NewWriter(hasher)
	if err := WriteJSONL(w, issues); err != nil {
		return "", &Error{Op: "write", Path: path, Err: errors.Unwrap(err)}
	}
	if err := w.Flush(); err != nil {
		return "", &Error{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &Error{Op: "write", Path: path, Err: fmt.Errorf("close temp file: %w", err)}
	}
	f = nil

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return "", &Error{Op: "write", Path: path, Err: fmt.Errorf("rename temp file: %w", err)}
	}
	// nolint:gosec // G302: the snapshot is meant to be read by other tools
	if err := os.Chmod(path, 0o644); err != nil {
		debug.Logf("failed to set snapshot permissions: %v\n", err)
	}
	return hasher.Sum(), nil
}
