package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tracehq/trace/internal/storage"
	"github.com/tracehq/trace/internal/types"
)

// issueColumns is the SELECT list shared by every issue query.
const issueColumns = `id, title, description, design, acceptance_criteria, notes,
	status, priority, issue_type, assignee, estimated_minutes,
	created_at, updated_at, closed_at, external_ref`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIssue(row rowScanner) (*types.Issue, error) {
	var issue types.Issue
	var closedAt sql.NullTime
	var estimatedMinutes sql.NullInt64
	var assignee sql.NullString
	var externalRef sql.NullString

	err := row.Scan(
		&issue.ID, &issue.Title, &issue.Description, &issue.Design,
		&issue.AcceptanceCriteria, &issue.Notes, &issue.Status,
		&issue.Priority, &issue.IssueType, &assignee, &estimatedMinutes,
		&issue.CreatedAt, &issue.UpdatedAt, &closedAt, &externalRef,
	)
	if err != nil {
		return nil, err
	}

	if closedAt.Valid {
		t := closedAt.Time
		issue.ClosedAt = &t
	}
	if estimatedMinutes.Valid {
		mins := int(estimatedMinutes.Int64)
		issue.EstimatedMinutes = &mins
	}
	if assignee.Valid {
		issue.Assignee = assignee.String
	}
	if externalRef.Valid {
		ref := externalRef.String
		issue.ExternalRef = &ref
	}
	return &issue, nil
}

func scanIssues(rows *sql.Rows) ([]*types.Issue, error) {
	defer func() { _ = rows.Close() }()

	var issues []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, wrapDBError("scan issue", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate issues", err)
	}
	return issues, nil
}

func getIssue(ctx context.Context, q dbExecutor, id string) (*types.Issue, error) {
	row := q.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	issue, err := scanIssue(row)
	if err != nil {
		return nil, wrapDBErrorf(err, "get issue %s", id)
	}
	return issue, nil
}

// assigneeClause matches an assignee filter; "" selects unassigned issues.
func assigneeClause(column, assignee string) (string, []interface{}) {
	if assignee == "" {
		return column + " IS NULL", nil
	}
	return column + " = ?", []interface{}{assignee}
}

// nullableAssignee stores the unassigned state as NULL.
func nullableAssignee(assignee string) interface{} {
	if assignee == "" {
		return nil
	}
	return assignee
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// insertIssue inserts a single issue into the database
func insertIssue(ctx context.Context, q dbExecutor, issue *types.Issue) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO issues (
			id, title, description, design, acceptance_criteria, notes,
			status, priority, issue_type, assignee, estimated_minutes,
			created_at, updated_at, closed_at, external_ref
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		issue.ID, issue.Title, issue.Description, issue.Design,
		issue.AcceptanceCriteria, issue.Notes, issue.Status,
		issue.Priority, issue.IssueType, nullableAssignee(issue.Assignee),
		issue.EstimatedMinutes, issue.CreatedAt.UTC(), issue.UpdatedAt.UTC(),
		utcPtr(issue.ClosedAt), issue.ExternalRef,
	)
	return wrapDBErrorf(err, "insert issue %s", issue.ID)
}

// CreateIssue validates and inserts an issue. An empty ID is allocated
// from the configured prefix; an explicit ID is kept as-is and raises the
// counter floor for its prefix. Timestamps already set on the issue (by
// import) are preserved.
func (s *SQLiteStorage) CreateIssue(ctx context.Context, issue *types.Issue, actor string) error {
	issue.ApplyDefaults()
	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = issue.CreatedAt
	}
	if err := issue.Validate(); err != nil {
		return err
	}

	generated := issue.ID == ""
	err := s.withImmediate(ctx, func(conn *sql.Conn) error {
		if generated {
			prefix, err := issuePrefix(ctx, conn)
			if err != nil {
				return err
			}
			id, err := nextIssueID(ctx, conn, prefix)
			if err != nil {
				return err
			}
			issue.ID = id
		} else if err := raiseCounterFloor(ctx, conn, issue.ID); err != nil {
			return err
		}

		if err := insertIssue(ctx, conn, issue); err != nil {
			return err
		}
		if err := recordEvent(ctx, conn, &types.Event{
			IssueID:   issue.ID,
			EventType: types.EventCreated,
			Actor:     actor,
			NewValue:  jsonString(issue),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return markDirty(ctx, conn, issue.ID, now)
	})
	if err != nil && generated {
		issue.ID = ""
	}
	return err
}

// GetIssue retrieves an issue by ID. Dependencies are not attached.
func (s *SQLiteStorage) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	return getIssue(ctx, s.db, id)
}

// UpdateIssue applies a sparse update. The merged issue is validated
// before anything is written.
func (s *SQLiteStorage) UpdateIssue(ctx context.Context, id string, update types.IssueUpdate, actor string) error {
	return s.withImmediate(ctx, func(conn *sql.Conn) error {
		oldIssue, err := getIssue(ctx, conn, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		merged := update.Apply(oldIssue, now)
		if err := merged.Validate(); err != nil {
			return err
		}

		setClauses, args, changes := updateClauses(&update, oldIssue, merged)
		setClauses = append(setClauses, "updated_at = ?")
		args = append(args, now, id)

		query := fmt.Sprintf("UPDATE issues SET %s WHERE id = ?", strings.Join(setClauses, ", ")) // #nosec G201 - fixed column names
		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			return wrapDBErrorf(err, "update issue %s", id)
		}

		if err := recordEvent(ctx, conn, &types.Event{
			IssueID:   id,
			EventType: types.EventUpdated,
			Actor:     actor,
			OldValue:  jsonString(oldIssue),
			NewValue:  jsonString(changes),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if merged.Status != oldIssue.Status {
			if err := recordEvent(ctx, conn, &types.Event{
				IssueID:   id,
				EventType: types.EventStatusChanged,
				Actor:     actor,
				OldValue:  strPtr(string(oldIssue.Status)),
				NewValue:  strPtr(string(merged.Status)),
				CreatedAt: now,
			}); err != nil {
				return err
			}
			if oldIssue.Status == types.StatusClosed {
				if err := recordEvent(ctx, conn, &types.Event{
					IssueID:   id,
					EventType: types.EventReopened,
					Actor:     actor,
					CreatedAt: now,
				}); err != nil {
					return err
				}
			}
		}

		return markDirty(ctx, conn, id, now)
	})
}

// updateClauses lists the columns an update touches, with their merged
// values, and a column -> value map for the audit record.
func updateClauses(u *types.IssueUpdate, oldIssue, merged *types.Issue) ([]string, []interface{}, map[string]interface{}) {
	var setClauses []string
	var args []interface{}
	changes := make(map[string]interface{})

	set := func(column string, value interface{}) {
		setClauses = append(setClauses, column+" = ?")
		args = append(args, value)
		changes[column] = value
	}

	if u.Title != nil {
		set("title", merged.Title)
	}
	if u.Description != nil {
		set("description", merged.Description)
	}
	if u.Design != nil {
		set("design", merged.Design)
	}
	if u.AcceptanceCriteria != nil {
		set("acceptance_criteria", merged.AcceptanceCriteria)
	}
	if u.Notes != nil {
		set("notes", merged.Notes)
	}
	if u.Status != nil {
		set("status", merged.Status)
	}
	if u.Priority != nil {
		set("priority", merged.Priority)
	}
	if u.IssueType != nil {
		set("issue_type", merged.IssueType)
	}
	if !u.Assignee.IsUntouched() {
		set("assignee", nullableAssignee(merged.Assignee))
	}
	if !u.EstimatedMinutes.IsUntouched() {
		set("estimated_minutes", merged.EstimatedMinutes)
	}
	if !u.ExternalRef.IsUntouched() {
		set("external_ref", merged.ExternalRef)
	}
	// closed_at follows status even when not patched directly
	if !u.ClosedAt.IsUntouched() || !sameTime(oldIssue.ClosedAt, merged.ClosedAt) {
		set("closed_at", utcPtr(merged.ClosedAt))
	}
	return setClauses, args, changes
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// CloseIssue closes an issue with a reason. Closing an already closed
// issue keeps its original closed_at.
func (s *SQLiteStorage) CloseIssue(ctx context.Context, id string, reason string, actor string) error {
	return s.withImmediate(ctx, func(conn *sql.Conn) error {
		now := time.Now().UTC()
		result, err := conn.ExecContext(ctx, `
			UPDATE issues SET status = ?, closed_at = COALESCE(closed_at, ?), updated_at = ?
			WHERE id = ?
		`, types.StatusClosed, now, now, id)
		if err != nil {
			return wrapDBErrorf(err, "close issue %s", id)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return storage.NotFoundf("issue %s", id)
		}

		if err := recordEvent(ctx, conn, &types.Event{
			IssueID:   id,
			EventType: types.EventClosed,
			Actor:     actor,
			Comment:   strPtr(reason),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return markDirty(ctx, conn, id, now)
	})
}

// DeleteIssue permanently removes an issue. Dependencies, labels and
// events cascade. The issue and every issue that depended on it stay in
// the dirty set so the next export drops or rewrites their records.
func (s *SQLiteStorage) DeleteIssue(ctx context.Context, id string) error {
	return s.withImmediate(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `SELECT issue_id FROM dependencies WHERE depends_on_id = ?`, id)
		if err != nil {
			return wrapDBErrorf(err, "find dependents of %s", id)
		}
		dependents, err := scanIDs(rows)
		if err != nil {
			return err
		}

		result, err := conn.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id)
		if err != nil {
			return wrapDBErrorf(err, "delete issue %s", id)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return wrapDBError("check rows affected", err)
		}
		if rowsAffected == 0 {
			return storage.NotFoundf("issue %s", id)
		}

		now := time.Now().UTC()
		for _, dep := range append([]string{id}, dependents...) {
			if err := markDirty(ctx, conn, dep, now); err != nil {
				return err
			}
		}
		for _, dep := range dependents {
			if err := touchIssue(ctx, conn, dep, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// SearchIssues finds issues matching the filter, ordered by priority then
// newest first.
func (s *SQLiteStorage) SearchIssues(ctx context.Context, filter types.IssueFilter) ([]*types.Issue, error) {
	whereClauses := []string{}
	args := []interface{}{}

	if filter.Status != nil {
		whereClauses = append(whereClauses, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Priority != nil {
		whereClauses = append(whereClauses, "priority = ?")
		args = append(args, *filter.Priority)
	}
	if filter.IssueType != nil {
		whereClauses = append(whereClauses, "issue_type = ?")
		args = append(args, *filter.IssueType)
	}
	if filter.Assignee != nil {
		clause, arg := assigneeClause("assignee", *filter.Assignee)
		whereClauses = append(whereClauses, clause)
		args = append(args, arg...)
	}

	// Label filtering: issue must have AT LEAST ONE of these labels
	if len(filter.Labels) > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("id IN (SELECT issue_id FROM labels WHERE label IN (%s))", placeholders(len(filter.Labels))))
		args = append(args, stringArgs(filter.Labels)...)
	}

	if len(filter.IDs) > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("id IN (%s)", placeholders(len(filter.IDs))))
		args = append(args, stringArgs(filter.IDs)...)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = "WHERE " + strings.Join(whereClauses, " AND ")
	}

	limitSQL := ""
	if filter.Limit > 0 {
		limitSQL = "LIMIT ?"
		args = append(args, filter.Limit)
	}

	// #nosec G201 - safe SQL with controlled formatting
	query := fmt.Sprintf(`
		SELECT %s
		FROM issues
		%s
		ORDER BY priority ASC, julianday(created_at) DESC, rowid DESC
		%s
	`, issueColumns, whereSQL, limitSQL)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("search issues", err)
	}
	return scanIssues(rows)
}

// AddComment appends a comment to an issue's audit trail.
func (s *SQLiteStorage) AddComment(ctx context.Context, issueID, actor, text string) error {
	if strings.TrimSpace(text) == "" {
		return &types.ValidationError{Field: "comment", Message: "comment text is required"}
	}
	return s.withImmediate(ctx, func(conn *sql.Conn) error {
		exists, err := issueExists(ctx, conn, issueID)
		if err != nil {
			return err
		}
		if !exists {
			return storage.NotFoundf("issue %s", issueID)
		}

		now := time.Now().UTC()
		if err := recordEvent(ctx, conn, &types.Event{
			IssueID:   issueID,
			EventType: types.EventCommented,
			Actor:     actor,
			Comment:   strPtr(text),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := touchIssue(ctx, conn, issueID, now); err != nil {
			return err
		}
		return markDirty(ctx, conn, issueID, now)
	})
}

// scanIDs drains a single-column result of issue IDs.
func scanIDs(rows *sql.Rows) ([]string, error) {
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError("scan issue id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate issue ids", err)
	}
	return ids, nil
}
