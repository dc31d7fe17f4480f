package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tracehq/trace/internal/idutil"
	"github.com/tracehq/trace/internal/storage"
)

// NextIssueID allocates the next sequential ID for prefix. The increment
// and read are one statement, so concurrent processes sharing the file
// never receive the same number.
func (s *SQLiteStorage) NextIssueID(ctx context.Context, prefix string) (string, error) {
	return nextIssueID(ctx, s.db, prefix)
}

func nextIssueID(ctx context.Context, q dbExecutor, prefix string) (string, error) {
	prefix = strings.TrimSuffix(prefix, "-")
	if prefix == "" {
		return "", fmt.Errorf("issue prefix is required")
	}
	var next int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO issue_counters (prefix, last_id) VALUES (?, 1)
		ON CONFLICT (prefix) DO UPDATE SET last_id = last_id + 1
		RETURNING last_id
	`, prefix).Scan(&next)
	if err != nil {
		return "", wrapDBErrorf(err, "allocate id for prefix %s", prefix)
	}
	return idutil.FormatID(prefix, next), nil
}

// raiseCounterFloor moves the counter for an explicit ID's prefix up to
// its number. It never moves a counter down.
func raiseCounterFloor(ctx context.Context, q dbExecutor, issueID string) error {
	prefix, n, ok := idutil.SplitID(issueID)
	if !ok {
		return nil
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO issue_counters (prefix, last_id) VALUES (?, ?)
		ON CONFLICT (prefix) DO UPDATE SET last_id = MAX(last_id, excluded.last_id)
	`, prefix, n)
	return wrapDBErrorf(err, "raise counter for %s", issueID)
}

// issuePrefix reads the configured prefix, defaulting when unset.
func issuePrefix(ctx context.Context, q dbExecutor) (string, error) {
	var prefix string
	err := q.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, storage.ConfigIssuePrefix).Scan(&prefix)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", wrapDBError("get issue prefix", err)
	}
	if prefix == "" {
		prefix = storage.DefaultIssuePrefix
	}
	return prefix, nil
}
