package migrations

import (
	"database/sql"
	"fmt"
)

// columnExists reads PRAGMA table_info. Rows are closed before the caller
// issues any DDL, since in-memory stores run with a single connection.
func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table)) // #nosec G201 - fixed identifier
	if err != nil {
		return false, fmt.Errorf("failed to check schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var cid int
		var name, typ string
		var notnull, pk int
		var dflt *string
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("failed to scan column info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("error reading column info: %w", err)
	}
	return false, nil
}
