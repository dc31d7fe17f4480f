package sqlite

import (
	"context"
	"database/sql"

	"github.com/tracehq/trace/internal/types"
)

// GetStatistics returns aggregate counts and the mean lead time (created
// to closed) in hours over issues that have a closed_at.
func (s *SQLiteStorage) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	var stats types.Statistics

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'open' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'closed' THEN 1 ELSE 0 END), 0)
		FROM issues
	`).Scan(&stats.TotalIssues, &stats.OpenIssues, &stats.InProgressIssues, &stats.ClosedIssues)
	if err != nil {
		return nil, wrapDBError("count issues", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM issues
		WHERE status != 'closed' AND id IN (`+activeBlockers+`)
	`).Scan(&stats.BlockedIssues)
	if err != nil {
		return nil, wrapDBError("count blocked issues", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM issues
		WHERE status = 'open' AND id NOT IN (`+activeBlockers+`)
	`).Scan(&stats.ReadyIssues)
	if err != nil {
		return nil, wrapDBError("count ready issues", err)
	}

	lead, err := s.averageLeadTimeHours(ctx)
	if err != nil {
		return nil, err
	}
	stats.AverageLeadTimeHours = lead
	return &stats, nil
}

// averageLeadTimeHours is computed in Go from the scanned timestamps so
// the result does not depend on SQLite's date parsing.
func (s *SQLiteStorage) averageLeadTimeHours(ctx context.Context) (float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT created_at, closed_at FROM issues WHERE closed_at IS NOT NULL
	`)
	if err != nil {
		return 0, wrapDBError("get lead times", err)
	}
	defer func() { _ = rows.Close() }()

	var total float64
	var n int
	for rows.Next() {
		var created sql.NullTime
		var closed sql.NullTime
		if err := rows.Scan(&created, &closed); err != nil {
			return 0, wrapDBError("scan lead time", err)
		}
		if !created.Valid || !closed.Valid {
			continue
		}
		total += closed.Time.Sub(created.Time).Hours()
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, wrapDBError("iterate lead times", err)
	}
	if n == 0 {
		return 0, nil
	}
	return total / float64(n), nil
}
