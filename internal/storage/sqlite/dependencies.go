package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tracehq/trace/internal/graph"
	"github.com/tracehq/trace/internal/storage"
	"github.com/tracehq/trace/internal/types"
)

// AddDependency adds or replaces the edge dep.IssueID -> dep.DependsOnID.
// Both issues must exist. Cycles are not checked here; see DetectCycles.
// CreatedAt and CreatedBy are kept when set (import), otherwise they are
// filled from the clock and actor.
func (s *SQLiteStorage) AddDependency(ctx context.Context, dep *types.Dependency, actor string) error {
	if dep.Type == "" {
		dep.Type = types.DepBlocks
	}
	if err := dep.Validate(); err != nil {
		return err
	}

	return s.withImmediate(ctx, func(conn *sql.Conn) error {
		for _, id := range []string{dep.IssueID, dep.DependsOnID} {
			exists, err := issueExists(ctx, conn, id)
			if err != nil {
				return err
			}
			if !exists {
				return storage.NotFoundf("issue %s", id)
			}
		}

		now := time.Now().UTC()
		if dep.CreatedAt.IsZero() {
			dep.CreatedAt = now
		}
		if dep.CreatedBy == "" {
			dep.CreatedBy = actor
		}

		_, err := conn.ExecContext(ctx, `
			INSERT INTO dependencies (issue_id, depends_on_id, type, created_at, created_by)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (issue_id, depends_on_id) DO UPDATE SET
				type = excluded.type,
				created_at = excluded.created_at,
				created_by = excluded.created_by
		`, dep.IssueID, dep.DependsOnID, dep.Type, dep.CreatedAt.UTC(), dep.CreatedBy)
		if err != nil {
			return wrapDBErrorf(err, "add dependency %s -> %s", dep.IssueID, dep.DependsOnID)
		}

		if err := recordEvent(ctx, conn, &types.Event{
			IssueID:   dep.IssueID,
			EventType: types.EventDependencyAdded,
			Actor:     actor,
			NewValue:  strPtr(dep.DependsOnID),
			Comment:   strPtr(fmt.Sprintf("added %s dependency on %s", dep.Type, dep.DependsOnID)),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := touchIssue(ctx, conn, dep.IssueID, now); err != nil {
			return err
		}
		return markDirty(ctx, conn, dep.IssueID, now)
	})
}

// RemoveDependency deletes the edge if present. A missing edge is not an
// error; the removal is still recorded against the issue.
func (s *SQLiteStorage) RemoveDependency(ctx context.Context, issueID, dependsOnID string, actor string) error {
	return s.withImmediate(ctx, func(conn *sql.Conn) error {
		exists, err := issueExists(ctx, conn, issueID)
		if err != nil {
			return err
		}
		if !exists {
			return storage.NotFoundf("issue %s", issueID)
		}

		_, err = conn.ExecContext(ctx, `
			DELETE FROM dependencies WHERE issue_id = ? AND depends_on_id = ?
		`, issueID, dependsOnID)
		if err != nil {
			return wrapDBErrorf(err, "remove dependency %s -> %s", issueID, dependsOnID)
		}

		now := time.Now().UTC()
		if err := recordEvent(ctx, conn, &types.Event{
			IssueID:   issueID,
			EventType: types.EventDependencyRemoved,
			Actor:     actor,
			OldValue:  strPtr(dependsOnID),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if err := touchIssue(ctx, conn, issueID, now); err != nil {
			return err
		}
		return markDirty(ctx, conn, issueID, now)
	})
}

// GetDependencies returns the issues that issueID depends on.
func (s *SQLiteStorage) GetDependencies(ctx context.Context, issueID string) ([]*types.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixed("i", issueColumns)+`
		FROM issues i
		JOIN dependencies d ON i.id = d.depends_on_id
		WHERE d.issue_id = ?
		ORDER BY i.priority ASC, i.id ASC
	`, issueID)
	if err != nil {
		return nil, wrapDBErrorf(err, "get dependencies of %s", issueID)
	}
	return scanIssues(rows)
}

// GetDependents returns the issues that depend on issueID.
func (s *SQLiteStorage) GetDependents(ctx context.Context, issueID string) ([]*types.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixed("i", issueColumns)+`
		FROM issues i
		JOIN dependencies d ON i.id = d.issue_id
		WHERE d.depends_on_id = ?
		ORDER BY i.priority ASC, i.id ASC
	`, issueID)
	if err != nil {
		return nil, wrapDBErrorf(err, "get dependents of %s", issueID)
	}
	return scanIssues(rows)
}

// GetDependencyRecords returns the raw outgoing edges of one issue,
// ordered by target ID.
func (s *SQLiteStorage) GetDependencyRecords(ctx context.Context, issueID string) ([]*types.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT issue_id, depends_on_id, type, created_at, created_by
		FROM dependencies
		WHERE issue_id = ?
		ORDER BY depends_on_id ASC
	`, issueID)
	if err != nil {
		return nil, wrapDBErrorf(err, "get dependency records of %s", issueID)
	}
	return scanDependencies(rows)
}

// GetAllDependencyRecords returns every edge grouped by dependent issue.
func (s *SQLiteStorage) GetAllDependencyRecords(ctx context.Context) (map[string][]*types.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT issue_id, depends_on_id, type, created_at, created_by
		FROM dependencies
		ORDER BY issue_id ASC, depends_on_id ASC
	`)
	if err != nil {
		return nil, wrapDBError("get all dependency records", err)
	}
	deps, err := scanDependencies(rows)
	if err != nil {
		return nil, err
	}

	byIssue := make(map[string][]*types.Dependency)
	for _, dep := range deps {
		byIssue[dep.IssueID] = append(byIssue[dep.IssueID], dep)
	}
	return byIssue, nil
}

func scanDependencies(rows *sql.Rows) ([]*types.Dependency, error) {
	defer func() { _ = rows.Close() }()

	var deps []*types.Dependency
	for rows.Next() {
		var dep types.Dependency
		if err := rows.Scan(&dep.IssueID, &dep.DependsOnID, &dep.Type, &dep.CreatedAt, &dep.CreatedBy); err != nil {
			return nil, wrapDBError("scan dependency", err)
		}
		deps = append(deps, &dep)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate dependencies", err)
	}
	return deps, nil
}

// GetDependencyTree returns the bounded pre-order tree rooted at issueID.
func (s *SQLiteStorage) GetDependencyTree(ctx context.Context, issueID string, maxDepth int) ([]*types.TreeNode, error) {
	return graph.Tree(&treeSource{ctx: ctx, s: s}, issueID, maxDepth)
}

// treeSource adapts the store to graph.Source.
type treeSource struct {
	ctx context.Context
	s   *SQLiteStorage
}

func (t *treeSource) Issue(id string) (*types.Issue, error) {
	issue, err := t.s.GetIssue(t.ctx, id)
	if storage.IsNotFound(err) {
		return nil, nil
	}
	return issue, err
}

func (t *treeSource) DependsOn(id string) ([]string, error) {
	rows, err := t.s.db.QueryContext(t.ctx, `
		SELECT depends_on_id FROM dependencies WHERE issue_id = ? ORDER BY depends_on_id ASC
	`, id)
	if err != nil {
		return nil, wrapDBErrorf(err, "get dependency ids of %s", id)
	}
	return scanIDs(rows)
}

// DetectCycles reports every dependency cycle, over edges of any type.
func (s *SQLiteStorage) DetectCycles(ctx context.Context) ([][]*types.Issue, error) {
	records, err := s.GetAllDependencyRecords(ctx)
	if err != nil {
		return nil, err
	}
	cycles := graph.FindCycles(graph.Adjacency(records))
	return graph.ResolveCycles(cycles, (&treeSource{ctx: ctx, s: s}).Issue)
}

// prefixed qualifies each column in a comma separated list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
