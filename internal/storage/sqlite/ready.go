package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/tracehq/trace/internal/types"
)

// activeBlockers selects issues that have a blocks edge to an issue that
// is not closed. Other edge types never block.
const activeBlockers = `
	SELECT d.issue_id
	FROM dependencies d
	JOIN issues blocker ON d.depends_on_id = blocker.id
	WHERE d.type = 'blocks' AND blocker.status != 'closed'
`

// GetReadyWork returns open issues with no active blocker, ordered by
// priority then newest first.
func (s *SQLiteStorage) GetReadyWork(ctx context.Context, filter types.WorkFilter) ([]*types.Issue, error) {
	whereClauses := []string{
		"i.status = 'open'",
		"i.id NOT IN (" + activeBlockers + ")",
	}
	args := []interface{}{}

	if filter.Priority != nil {
		whereClauses = append(whereClauses, "i.priority = ?")
		args = append(args, *filter.Priority)
	}
	if filter.Assignee != nil {
		clause, arg := assigneeClause("i.assignee", *filter.Assignee)
		whereClauses = append(whereClauses, clause)
		args = append(args, arg...)
	}

	limitSQL := ""
	if filter.Limit > 0 {
		limitSQL = "LIMIT ?"
		args = append(args, filter.Limit)
	}

	// #nosec G201 - safe SQL with controlled formatting
	query := fmt.Sprintf(`
		SELECT %s
		FROM issues i
		WHERE %s
		ORDER BY i.priority ASC, julianday(i.created_at) DESC, i.rowid DESC
		%s
	`, prefixed("i", issueColumns), strings.Join(whereClauses, " AND "), limitSQL)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("get ready work", err)
	}
	return scanIssues(rows)
}

// GetBlockedIssues returns every non-closed issue with at least one active
// blocker, with the blocker IDs in ascending order.
func (s *SQLiteStorage) GetBlockedIssues(ctx context.Context) ([]*types.BlockedIssue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixed("i", issueColumns)+`
		FROM issues i
		WHERE i.status != 'closed'
		  AND i.id IN (`+activeBlockers+`)
		ORDER BY i.priority ASC, julianday(i.created_at) DESC, i.rowid DESC
	`)
	if err != nil {
		return nil, wrapDBError("get blocked issues", err)
	}
	issues, err := scanIssues(rows)
	if err != nil {
		return nil, err
	}

	blockers, err := s.activeBlockerIDs(ctx)
	if err != nil {
		return nil, err
	}

	blocked := make([]*types.BlockedIssue, 0, len(issues))
	for _, issue := range issues {
		ids := blockers[issue.ID]
		blocked = append(blocked, &types.BlockedIssue{
			Issue:          *issue,
			BlockedByCount: len(ids),
			BlockedBy:      ids,
		})
	}
	return blocked, nil
}

// activeBlockerIDs maps each blocked issue to the IDs blocking it.
func (s *SQLiteStorage) activeBlockerIDs(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.issue_id, d.depends_on_id
		FROM dependencies d
		JOIN issues blocker ON d.depends_on_id = blocker.id
		WHERE d.type = 'blocks' AND blocker.status != 'closed'
		ORDER BY d.issue_id ASC, d.depends_on_id ASC
	`)
	if err != nil {
		return nil, wrapDBError("get blockers", err)
	}
	defer func() { _ = rows.Close() }()

	blockers := make(map[string][]string)
	for rows.Next() {
		var issueID, blockerID string
		if err := rows.Scan(&issueID, &blockerID); err != nil {
			return nil, wrapDBError("scan blocker", err)
		}
		blockers[issueID] = append(blockers[issueID], blockerID)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate blockers", err)
	}
	return blockers, nil
}
