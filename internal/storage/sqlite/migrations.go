package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/tracehq/trace/internal/storage/sqlite/migrations"
)

// Migration is one additive, idempotent schema change.
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

// migrationsList runs in order at every open.
var migrationsList = []Migration{
	{"dirty_issues_table", migrations.MigrateDirtyIssuesTable},
	{"external_ref_column", migrations.MigrateExternalRefColumn},
	{"issue_counters_table", migrations.MigrateIssueCountersTable},
	{"metadata_table", migrations.MigrateMetadataTable},
}

// MigrationNames lists the registered migrations in execution order.
func MigrationNames() []string {
	names := make([]string, len(migrationsList))
	for i, m := range migrationsList {
		names[i] = m.Name
	}
	return names
}

// RunMigrations applies every migration. Each one is safe to rerun.
func RunMigrations(db *sql.DB) error {
	for _, m := range migrationsList {
		if err := m.Func(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}
	return nil
}
