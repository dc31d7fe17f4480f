package sqlite

import (
	"context"
	"database/sql"

	"github.com/tracehq/trace/internal/storage"
	"github.com/tracehq/trace/internal/types"
)

// AddEvent appends an event to an issue's audit trail. Events are never
// updated or deleted except by deleting the issue.
func (s *SQLiteStorage) AddEvent(ctx context.Context, event *types.Event) error {
	if !event.EventType.IsValid() {
		return &types.ValidationError{Field: "event_type", Message: "invalid event type: " + string(event.EventType)}
	}
	exists, err := issueExists(ctx, s.db, event.IssueID)
	if err != nil {
		return err
	}
	if !exists {
		return storage.NotFoundf("issue %s", event.IssueID)
	}
	return recordEvent(ctx, s.db, event)
}

// GetEvents returns an issue's events, most recent first. limit <= 0
// returns all of them.
func (s *SQLiteStorage) GetEvents(ctx context.Context, issueID string, limit int) ([]*types.Event, error) {
	query := `
		SELECT id, issue_id, event_type, actor, old_value, new_value, comment, created_at
		FROM events
		WHERE issue_id = ?
		ORDER BY id DESC
	`
	args := []interface{}{issueID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErrorf(err, "get events of %s", issueID)
	}
	defer func() { _ = rows.Close() }()

	var events []*types.Event
	for rows.Next() {
		var e types.Event
		var oldValue, newValue, comment sql.NullString
		if err := rows.Scan(&e.ID, &e.IssueID, &e.EventType, &e.Actor, &oldValue, &newValue, &comment, &e.CreatedAt); err != nil {
			return nil, wrapDBError("scan event", err)
		}
		e.OldValue = nullStringPtr(oldValue)
		e.NewValue = nullStringPtr(newValue)
		e.Comment = nullStringPtr(comment)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate events", err)
	}
	return events, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
