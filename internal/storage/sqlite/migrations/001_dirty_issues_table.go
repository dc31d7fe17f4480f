package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateDirtyIssuesTable creates the dirty set used by incremental export.
// No foreign key: a deleted issue stays dirty until the exporter drops it
// from the snapshot.
func MigrateDirtyIssuesTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dirty_issues (
			issue_id TEXT PRIMARY KEY,
			marked_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create dirty_issues table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_dirty_issues_marked_at ON dirty_issues(marked_at)`)
	if err != nil {
		return fmt.Errorf("failed to create index on dirty_issues: %w", err)
	}
	return nil
}
