package sqlite

import (
	"context"
	"fmt"
	"time"
)

// MarkIssueDirty marks an issue as needing export. Marking an issue that
// is already dirty keeps its original position.
func (s *SQLiteStorage) MarkIssueDirty(ctx context.Context, issueID string) error {
	return markDirty(ctx, s.db, issueID, time.Now().UTC())
}

// GetDirtyIssues returns the IDs awaiting export, oldest mark first
func (s *SQLiteStorage) GetDirtyIssues(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT issue_id FROM dirty_issues
		ORDER BY julianday(marked_at) ASC, rowid ASC
	`)
	if err != nil {
		return nil, wrapDBError("get dirty issues", err)
	}
	return scanIDs(rows)
}

// ClearDirtyIssues empties the dirty set.
func (s *SQLiteStorage) ClearDirtyIssues(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dirty_issues`)
	return wrapDBError("clear dirty issues", err)
}

// ClearDirtyIssuesByID removes exactly the given IDs from the dirty set,
// leaving anything marked since the caller read the set.
func (s *SQLiteStorage) ClearDirtyIssuesByID(ctx context.Context, issueIDs []string) error {
	if len(issueIDs) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM dirty_issues WHERE issue_id IN (%s)`, placeholders(len(issueIDs))) // #nosec G201 - placeholders only
	_, err := s.db.ExecContext(ctx, query, stringArgs(issueIDs)...)
	return wrapDBError("clear dirty issues by id", err)
}
