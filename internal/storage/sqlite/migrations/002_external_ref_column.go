package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateExternalRefColumn adds issues.external_ref to stores created
// before the column existed.
func MigrateExternalRefColumn(db *sql.DB) error {
	exists, err := columnExists(db, "issues", "external_ref")
	if err != nil {
		return err
	}

	if !exists {
		if _, err := db.Exec(`ALTER TABLE issues ADD COLUMN external_ref TEXT`); err != nil {
			return fmt.Errorf("failed to add external_ref column: %w", err)
		}
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_issues_external_ref ON issues(external_ref)`)
	if err != nil {
		return fmt.Errorf("failed to create index on external_ref: %w", err)
	}
	return nil
}
