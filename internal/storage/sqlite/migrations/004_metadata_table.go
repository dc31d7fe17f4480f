package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateMetadataTable creates the internal key/value store for stores
// that predate it.
func MigrateMetadataTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}
	return nil
}
