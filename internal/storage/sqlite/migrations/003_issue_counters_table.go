package migrations

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// MigrateIssueCountersTable creates the per-prefix ID counters. When the
// table is empty, counters are seeded from the highest numeric suffix
// already in use so that new IDs cannot collide with existing ones.
func MigrateIssueCountersTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS issue_counters (
			prefix TEXT PRIMARY KEY,
			last_id INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create issue_counters table: %w", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM issue_counters`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count issue counters: %w", err)
	}
	if count > 0 {
		return nil
	}

	floors, err := highestSuffixes(db)
	if err != nil {
		return err
	}
	for prefix, last := range floors {
		_, err := db.Exec(`INSERT INTO issue_counters (prefix, last_id) VALUES (?, ?)`, prefix, last)
		if err != nil {
			return fmt.Errorf("failed to seed counter for %s: %w", prefix, err)
		}
	}
	return nil
}

// highestSuffixes scans existing IDs of the form <prefix>-<n>. The rows are
// fully drained before the caller writes.
func highestSuffixes(db *sql.DB) (map[string]int64, error) {
	rows, err := db.Query(`SELECT id FROM issues`)
	if err != nil {
		return nil, fmt.Errorf("failed to read issue ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	floors := make(map[string]int64)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan issue id: %w", err)
		}
		idx := strings.LastIndex(id, "-")
		if idx <= 0 {
			continue
		}
		n, err := strconv.ParseInt(id[idx+1:], 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		if prefix := id[:idx]; n > floors[prefix] {
			floors[prefix] = n
		}
	}
	return floors, rows.Err()
}
