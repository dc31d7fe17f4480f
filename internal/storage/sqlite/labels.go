package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/tracehq/trace/internal/storage"
	"github.com/tracehq/trace/internal/types"
)

func validateLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return &types.ValidationError{Field: "label", Message: "label is required"}
	}
	return nil
}

// AddLabel tags an issue. Adding a label it already has is harmless.
func (s *SQLiteStorage) AddLabel(ctx context.Context, issueID, label, actor string) error {
	if err := validateLabel(label); err != nil {
		return err
	}
	return s.mutateLabel(ctx, issueID, label, actor, types.EventLabelAdded,
		`INSERT OR IGNORE INTO labels (issue_id, label) VALUES (?, ?)`)
}

// RemoveLabel untags an issue. Removing an absent label is not an error.
func (s *SQLiteStorage) RemoveLabel(ctx context.Context, issueID, label, actor string) error {
	return s.mutateLabel(ctx, issueID, label, actor, types.EventLabelRemoved,
		`DELETE FROM labels WHERE issue_id = ? AND label = ?`)
}

func (s *SQLiteStorage) mutateLabel(ctx context.Context, issueID, label, actor string, eventType types.EventType, stmt string) error {
	return s.withImmediate(ctx, func(conn *sql.Conn) error {
		exists, err := issueExists(ctx, conn, issueID)
		if err != nil {
			return err
		}
		if !exists {
			return storage.NotFoundf("issue %s", issueID)
		}

		if _, err := conn.ExecContext(ctx, stmt, issueID, label); err != nil {
			return wrapDBErrorf(err, "%s %q on %s", eventType, label, issueID)
		}

		now := time.Now().UTC()
		event := &types.Event{IssueID: issueID, EventType: eventType, Actor: actor, CreatedAt: now}
		if eventType == types.EventLabelAdded {
			event.NewValue = strPtr(label)
		} else {
			event.OldValue = strPtr(label)
		}
		if err := recordEvent(ctx, conn, event); err != nil {
			return err
		}
		if err := touchIssue(ctx, conn, issueID, now); err != nil {
			return err
		}
		return markDirty(ctx, conn, issueID, now)
	})
}

// GetLabels returns an issue's labels in sorted order.
func (s *SQLiteStorage) GetLabels(ctx context.Context, issueID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label FROM labels WHERE issue_id = ? ORDER BY label
	`, issueID)
	if err != nil {
		return nil, wrapDBErrorf(err, "get labels of %s", issueID)
	}
	return scanIDs(rows)
}

// GetIssuesByLabel returns every issue carrying label.
func (s *SQLiteStorage) GetIssuesByLabel(ctx context.Context, label string) ([]*types.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixed("i", issueColumns)+`
		FROM issues i
		JOIN labels l ON i.id = l.issue_id
		WHERE l.label = ?
		ORDER BY i.priority ASC, julianday(i.created_at) DESC, i.rowid DESC
	`, label)
	if err != nil {
		return nil, wrapDBErrorf(err, "get issues with label %q", label)
	}
	return scanIssues(rows)
}
