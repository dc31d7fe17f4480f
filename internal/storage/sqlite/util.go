package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/tracehq/trace/internal/types"
)

// dbExecutor is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withImmediate runs fn on a dedicated connection inside BEGIN IMMEDIATE,
// taking the write lock before the first read.
func (s *SQLiteStorage) withImmediate(ctx context.Context, fn func(*sql.Conn) error) error {
	// database/sql cannot express transaction modes, so the statements are
	// issued by hand on one connection.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return wrapDBError("acquire connection", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return wrapDBError("begin immediate transaction", err)
	}

	// ROLLBACK uses a background context so cleanup survives cancellation.
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return wrapDBError("commit transaction", err)
	}
	committed = true
	return nil
}

// issueExists reports whether a row with the given ID is present.
func issueExists(ctx context.Context, q dbExecutor, id string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM issues WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, wrapDBErrorf(err, "check issue %s exists", id)
	}
	return exists, nil
}

// markDirty records that an issue needs to be exported. The first mark
// keeps its position in the queue.
func markDirty(ctx context.Context, q dbExecutor, issueID string, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO dirty_issues (issue_id, marked_at)
		VALUES (?, ?)
		ON CONFLICT (issue_id) DO NOTHING
	`, issueID, now)
	return wrapDBErrorf(err, "mark issue %s dirty", issueID)
}

// touchIssue bumps updated_at on a mutated issue.
func touchIssue(ctx context.Context, q dbExecutor, issueID string, now time.Time) error {
	_, err := q.ExecContext(ctx, `UPDATE issues SET updated_at = ? WHERE id = ?`, now, issueID)
	return wrapDBErrorf(err, "touch issue %s", issueID)
}

// recordEvent appends one audit row.
func recordEvent(ctx context.Context, q dbExecutor, e *types.Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO events (issue_id, event_type, actor, old_value, new_value, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.IssueID, e.EventType, e.Actor, e.OldValue, e.NewValue, e.Comment, e.CreatedAt)
	if err != nil {
		return wrapDBErrorf(err, "record %s event for %s", e.EventType, e.IssueID)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// jsonString marshals v for an event payload. Marshaling failures fall
// back to an empty object.
func jsonString(v interface{}) *string {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(`{}`)
	}
	s := string(data)
	return &s
}

func strPtr(s string) *string { return &s }

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}

func stringArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
