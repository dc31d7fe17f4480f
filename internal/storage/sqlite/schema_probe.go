package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSchemaIncompatible is returned when migrations could not bring the
// database to the layout this build expects.
var ErrSchemaIncompatible = errors.New("database schema is incompatible")

// expectedSchema lists every table and the columns queries rely on.
var expectedSchema = map[string][]string{
	"issues": {
		"id", "title", "description", "design", "acceptance_criteria", "notes",
		"status", "priority", "issue_type", "assignee", "estimated_minutes",
		"created_at", "updated_at", "closed_at", "external_ref",
	},
	"dependencies":   {"issue_id", "depends_on_id", "type", "created_at", "created_by"},
	"labels":         {"issue_id", "label"},
	"events":         {"id", "issue_id", "event_type", "actor", "old_value", "new_value", "comment", "created_at"},
	"config":         {"key", "value"},
	"metadata":       {"key", "value"},
	"dirty_issues":   {"issue_id", "marked_at"},
	"issue_counters": {"prefix", "last_id"},
}

// SchemaProbeResult describes what a probe found missing.
type SchemaProbeResult struct {
	Compatible     bool
	MissingTables  []string
	MissingColumns map[string][]string // table -> missing columns
	ErrorMessage   string
}

// probeSchema selects every expected column with LIMIT 0 and classifies
// the failures.
func probeSchema(db *sql.DB) SchemaProbeResult {
	result := SchemaProbeResult{
		Compatible:     true,
		MissingTables:  []string{},
		MissingColumns: make(map[string][]string),
	}

	tables := make([]string, 0, len(expectedSchema))
	for table := range expectedSchema {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		cols := expectedSchema[table]
		query := fmt.Sprintf("SELECT %s FROM %s LIMIT 0", strings.Join(cols, ", "), table) // #nosec G201 - fixed identifiers
		rows, err := db.Query(query)
		if err == nil {
			_ = rows.Close()
			continue
		}

		msg := err.Error()
		switch {
		case strings.Contains(msg, "no such table"):
			result.Compatible = false
			result.MissingTables = append(result.MissingTables, table)
		case strings.Contains(msg, "no such column"):
			result.Compatible = false
			if missing := findMissingColumns(db, table, cols); len(missing) > 0 {
				result.MissingColumns[table] = missing
			}
		default:
			result.Compatible = false
			result.ErrorMessage = msg
			return result
		}
	}

	if !result.Compatible {
		var parts []string
		if len(result.MissingTables) > 0 {
			parts = append(parts, "missing tables: "+strings.Join(result.MissingTables, ", "))
		}
		for _, table := range tables {
			if cols, ok := result.MissingColumns[table]; ok {
				parts = append(parts, fmt.Sprintf("missing columns in %s: %s", table, strings.Join(cols, ", ")))
			}
		}
		result.ErrorMessage = strings.Join(parts, "; ")
	}
	return result
}

// findMissingColumns probes one column at a time.
func findMissingColumns(db *sql.DB, table string, cols []string) []string {
	var missing []string
	for _, col := range cols {
		rows, err := db.Query(fmt.Sprintf("SELECT %s FROM %s LIMIT 0", col, table)) // #nosec G201 - fixed identifiers
		if err != nil {
			if strings.Contains(err.Error(), "no such column") {
				missing = append(missing, col)
			}
			continue
		}
		_ = rows.Close()
	}
	return missing
}

func verifySchemaCompatibility(db *sql.DB) error {
	result := probeSchema(db)
	if !result.Compatible {
		return fmt.Errorf("%w: %s", ErrSchemaIncompatible, result.ErrorMessage)
	}
	return nil
}
