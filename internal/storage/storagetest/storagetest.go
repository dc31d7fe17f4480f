// Package storagetest holds the behavioural suite every storage.Storage
// implementation must pass.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracehq/trace/internal/storage"
	"github.com/tracehq/trace/internal/types"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) storage.Storage

// Run executes the whole suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Storage)
	}{
		{"CreateAllocatesSequentialIDs", testCreateAllocatesSequentialIDs},
		{"CreateValidates", testCreateValidates},
		{"ExplicitIDRaisesCounter", testExplicitIDRaisesCounter},
		{"DuplicateIDConflicts", testDuplicateIDConflicts},
		{"ConfiguredPrefix", testConfiguredPrefix},
		{"GetMissingIsNotFound", testGetMissingIsNotFound},
		{"SparseUpdate", testSparseUpdate},
		{"UpdateRejectsInvalidMerge", testUpdateRejectsInvalidMerge},
		{"CloseAndReopen", testCloseAndReopen},
		{"SearchOrderingAndFilters", testSearchOrderingAndFilters},
		{"ReadyAndBlockedScenario", testReadyAndBlockedScenario},
		{"NonBlockingEdgesStayReady", testNonBlockingEdgesStayReady},
		{"DependencyEndpointsMustExist", testDependencyEndpointsMustExist},
		{"RemoveMissingDependency", testRemoveMissingDependency},
		{"DependencyTreeTruncation", testDependencyTreeTruncation},
		{"DependencyTreeVisitsOnce", testDependencyTreeVisitsOnce},
		{"DetectCycles", testDetectCycles},
		{"Labels", testLabels},
		{"EventsMostRecentFirst", testEventsMostRecentFirst},
		{"DirtyTracking", testDirtyTracking},
		{"DeleteKeepsDirtyMarker", testDeleteKeepsDirtyMarker},
		{"Statistics", testStatistics},
		{"ConfigAndMetadata", testConfigAndMetadata},
		{"ConcurrentAllocation", testConcurrentAllocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

const actor = "tester"

func create(t *testing.T, s storage.Storage, title string, priority int) *types.Issue {
	t.Helper()
	issue := &types.Issue{Title: title, Priority: priority, IssueType: types.TypeTask, Status: types.StatusOpen}
	require.NoError(t, s.CreateIssue(context.Background(), issue, actor))
	return issue
}

func block(t *testing.T, s storage.Storage, from, to string, depType types.DependencyType) {
	t.Helper()
	dep := &types.Dependency{IssueID: from, DependsOnID: to, Type: depType}
	require.NoError(t, s.AddDependency(context.Background(), dep, actor))
}

func ids(issues []*types.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.ID)
	}
	return out
}

func testCreateAllocatesSequentialIDs(t *testing.T, s storage.Storage) {
	for i := 1; i <= 5; i++ {
		issue := create(t, s, fmt.Sprintf("issue %d", i), 2)
		assert.Equal(t, fmt.Sprintf("bd-%d", i), issue.ID)
		assert.False(t, issue.CreatedAt.IsZero())
		assert.Equal(t, types.StatusOpen, issue.Status)
	}
}

func testCreateValidates(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	bad := []*types.Issue{
		{Title: ""},
		{Title: "p", Priority: 7},
		{Title: "e", EstimatedMinutes: func() *int { v := -1; return &v }()},
	}
	for _, issue := range bad {
		err := s.CreateIssue(ctx, issue, actor)
		require.ErrorIs(t, err, types.ErrValidation)
		assert.Empty(t, issue.ID, "failed create must not keep an allocated id")
	}
	all, err := s.SearchIssues(ctx, types.IssueFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	dirty, err := s.GetDirtyIssues(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty)
}

func testExplicitIDRaisesCounter(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	explicit := &types.Issue{ID: "bd-10", Title: "imported", Priority: 1}
	require.NoError(t, s.CreateIssue(ctx, explicit, actor))
	next := create(t, s, "after", 1)
	assert.Equal(t, "bd-11", next.ID)

	// a lower explicit id never rewinds the counter
	require.NoError(t, s.CreateIssue(ctx, &types.Issue{ID: "bd-3", Title: "old", Priority: 1}, actor))
	assert.Equal(t, "bd-12", create(t, s, "later", 1).ID)
}

func testDuplicateIDConflicts(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	first := create(t, s, "first", 2)
	err := s.CreateIssue(ctx, &types.Issue{ID: first.ID, Title: "dupe", Priority: 2}, actor)
	require.Error(t, err)
	assert.True(t, storage.IsConflict(err), "want conflict, got %v", err)
	var se *storage.StorageError
	assert.ErrorAs(t, err, &se)

	got, err := s.GetIssue(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
}

func testConfiguredPrefix(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.SetConfig(ctx, storage.ConfigIssuePrefix, "web"))
	assert.Equal(t, "web-1", create(t, s, "a", 2).ID)

	id, err := s.NextIssueID(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, "api-1", id)
	id, err = s.NextIssueID(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, "api-2", id)

	_, err = s.NextIssueID(ctx, "")
	assert.Error(t, err)
}

func testGetMissingIsNotFound(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	_, err := s.GetIssue(ctx, "bd-404")
	assert.True(t, storage.IsNotFound(err), "got %v", err)

	title := "x"
	err = s.UpdateIssue(ctx, "bd-404", types.IssueUpdate{Title: &title}, actor)
	assert.True(t, storage.IsNotFound(err), "got %v", err)
	assert.True(t, storage.IsNotFound(s.CloseIssue(ctx, "bd-404", "gone", actor)))
	assert.True(t, storage.IsNotFound(s.DeleteIssue(ctx, "bd-404")))
	assert.True(t, storage.IsNotFound(s.AddComment(ctx, "bd-404", actor, "hi")))
	assert.True(t, storage.IsNotFound(s.AddLabel(ctx, "bd-404", "l", actor)))
}

func testSparseUpdate(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	est := 30
	ref := "gh-7"
	issue := &types.Issue{
		Title: "Original", Description: "keep", Priority: 2, Assignee: "alice",
		EstimatedMinutes: &est, ExternalRef: &ref,
	}
	require.NoError(t, s.CreateIssue(ctx, issue, actor))

	title := "Renamed"
	require.NoError(t, s.UpdateIssue(ctx, issue.ID, types.IssueUpdate{
		Title:            &title,
		EstimatedMinutes: types.Clear[int](),
	}, actor))

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "keep", got.Description)
	assert.Equal(t, "alice", got.Assignee)
	assert.Nil(t, got.EstimatedMinutes)
	require.NotNil(t, got.ExternalRef)
	assert.Equal(t, "gh-7", *got.ExternalRef)
	assert.False(t, got.UpdatedAt.Before(issue.UpdatedAt))

	events, err := s.GetEvents(ctx, issue.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, types.EventUpdated, events[0].EventType)
	assert.Equal(t, types.EventCreated, events[1].EventType)
}

func testUpdateRejectsInvalidMerge(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	issue := create(t, s, "valid", 2)
	bad := 9
	err := s.UpdateIssue(ctx, issue.ID, types.IssueUpdate{Priority: &bad}, actor)
	require.ErrorIs(t, err, types.ErrValidation)

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Priority)
	events, err := s.GetEvents(ctx, issue.ID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func testCloseAndReopen(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	issue := create(t, s, "closable", 1)
	require.NoError(t, s.CloseIssue(ctx, issue.ID, "done", actor))

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusClosed, got.Status)
	require.NotNil(t, got.ClosedAt)
	firstClose := *got.ClosedAt

	require.NoError(t, s.CloseIssue(ctx, issue.ID, "again", actor))
	got, err = s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.True(t, got.ClosedAt.Equal(firstClose), "second close must keep closed_at")

	events, err := s.GetEvents(ctx, issue.ID, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventClosed, events[0].EventType)
	require.NotNil(t, events[0].Comment)
	assert.Equal(t, "again", *events[0].Comment)

	open := types.StatusOpen
	require.NoError(t, s.UpdateIssue(ctx, issue.ID, types.IssueUpdate{Status: &open}, actor))
	got, err = s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusOpen, got.Status)
	assert.Nil(t, got.ClosedAt)

	events, err = s.GetEvents(ctx, issue.ID, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, types.EventReopened, events[0].EventType)
	assert.Equal(t, types.EventStatusChanged, events[1].EventType)
	require.NotNil(t, events[1].NewValue)
	assert.Equal(t, "open", *events[1].NewValue)
	assert.Equal(t, types.EventUpdated, events[2].EventType)
}

func testSearchOrderingAndFilters(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mk := func(title string, priority int, offset time.Duration, assignee string) *types.Issue {
		issue := &types.Issue{Title: title, Priority: priority, Assignee: assignee, CreatedAt: base.Add(offset)}
		require.NoError(t, s.CreateIssue(ctx, issue, actor))
		return issue
	}
	older := mk("older p1", 1, 0, "alice")
	newer := mk("newer p1", 1, time.Hour, "bob")
	low := mk("p3", 3, 2*time.Hour, "alice")
	urgent := mk("p0", 0, -time.Hour, "")

	all, err := s.SearchIssues(ctx, types.IssueFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{urgent.ID, newer.ID, older.ID, low.ID}, ids(all))

	alice := "alice"
	got, err := s.SearchIssues(ctx, types.IssueFilter{Assignee: &alice})
	require.NoError(t, err)
	assert.Equal(t, []string{older.ID, low.ID}, ids(got))

	unassigned := ""
	got, err = s.SearchIssues(ctx, types.IssueFilter{Assignee: &unassigned})
	require.NoError(t, err)
	assert.Equal(t, []string{urgent.ID}, ids(got))
	ready, err := s.GetReadyWork(ctx, types.WorkFilter{Assignee: &unassigned})
	require.NoError(t, err)
	assert.Equal(t, []string{urgent.ID}, ids(ready))

	one := 1
	got, err = s.SearchIssues(ctx, types.IssueFilter{Priority: &one, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{newer.ID}, ids(got))

	require.NoError(t, s.AddLabel(ctx, low.ID, "backend", actor))
	require.NoError(t, s.AddLabel(ctx, urgent.ID, "frontend", actor))
	got, err = s.SearchIssues(ctx, types.IssueFilter{Labels: []string{"backend", "frontend"}})
	require.NoError(t, err)
	assert.Equal(t, []string{urgent.ID, low.ID}, ids(got))

	got, err = s.SearchIssues(ctx, types.IssueFilter{IDs: []string{low.ID, older.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{older.ID, low.ID}, ids(got))
}

func testReadyAndBlockedScenario(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	bd1 := create(t, s, "foundation", 2)
	bd2 := create(t, s, "follow-up", 1)
	require.Equal(t, "bd-1", bd1.ID)
	require.Equal(t, "bd-2", bd2.ID)
	block(t, s, bd2.ID, bd1.ID, types.DepBlocks)

	ready, err := s.GetReadyWork(ctx, types.WorkFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bd-1"}, ids(ready))

	blocked, err := s.GetBlockedIssues(ctx)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, "bd-2", blocked[0].ID)
	assert.Equal(t, []string{"bd-1"}, blocked[0].BlockedBy)
	assert.Equal(t, 1, blocked[0].BlockedByCount)

	require.NoError(t, s.CloseIssue(ctx, bd1.ID, "shipped", actor))
	ready, err = s.GetReadyWork(ctx, types.WorkFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bd-2"}, ids(ready))

	blocked, err = s.GetBlockedIssues(ctx)
	require.NoError(t, err)
	assert.Empty(t, blocked)
}

func testNonBlockingEdgesStayReady(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	target := create(t, s, "target", 2)
	issue := create(t, s, "loosely linked", 2)
	block(t, s, issue.ID, target.ID, types.DepRelated)
	other := create(t, s, "child", 2)
	block(t, s, other.ID, target.ID, types.DepParentChild)
	found := create(t, s, "found", 2)
	block(t, s, found.ID, target.ID, types.DepDiscoveredFrom)

	ready, err := s.GetReadyWork(ctx, types.WorkFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{target.ID, issue.ID, other.ID, found.ID}, ids(ready))

	one := 1
	ready, err = s.GetReadyWork(ctx, types.WorkFilter{Priority: &one})
	require.NoError(t, err)
	assert.Empty(t, ready)

	ready, err = s.GetReadyWork(ctx, types.WorkFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, ready, 2)
}

func testDependencyEndpointsMustExist(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := create(t, s, "a", 2)
	err := s.AddDependency(ctx, &types.Dependency{IssueID: a.ID, DependsOnID: "bd-99"}, actor)
	require.Error(t, err)
	assert.True(t, storage.IsNotFound(err))
	assert.Contains(t, err.Error(), "bd-99")

	err = s.AddDependency(ctx, &types.Dependency{IssueID: a.ID, DependsOnID: a.ID}, actor)
	assert.ErrorIs(t, err, types.ErrValidation)

	b := create(t, s, "b", 2)
	block(t, s, a.ID, b.ID, types.DepRelated)
	block(t, s, a.ID, b.ID, types.DepBlocks)
	recs, err := s.GetDependencyRecords(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1, "re-adding an edge replaces it")
	assert.Equal(t, types.DepBlocks, recs[0].Type)
	assert.Equal(t, actor, recs[0].CreatedBy)

	deps, err := s.GetDependencies(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids(deps))
	dependents, err := s.GetDependents(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, ids(dependents))
}

func testRemoveMissingDependency(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := create(t, s, "a", 2)
	b := create(t, s, "b", 2)
	block(t, s, a.ID, b.ID, types.DepBlocks)
	require.NoError(t, s.RemoveDependency(ctx, a.ID, b.ID, actor))
	require.NoError(t, s.RemoveDependency(ctx, a.ID, b.ID, actor))

	recs, err := s.GetDependencyRecords(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, recs)

	events, err := s.GetEvents(ctx, a.ID, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventDependencyRemoved, events[0].EventType)
}

func testDependencyTreeTruncation(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	root := create(t, s, "root", 2)
	a := create(t, s, "a", 2)
	b := create(t, s, "b", 2)
	block(t, s, root.ID, a.ID, types.DepBlocks)
	block(t, s, a.ID, b.ID, types.DepBlocks)

	tree, err := s.GetDependencyTree(ctx, root.ID, 1)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, root.ID, tree[0].ID)
	assert.Equal(t, 0, tree[0].Depth)
	assert.False(t, tree[0].Truncated)
	assert.Equal(t, a.ID, tree[1].ID)
	assert.Equal(t, 1, tree[1].Depth)
	assert.Equal(t, root.ID, tree[1].ParentID)
	assert.True(t, tree[1].Truncated)

	tree, err = s.GetDependencyTree(ctx, root.ID, 0)
	require.NoError(t, err)
	require.Len(t, tree, 3)
	assert.Equal(t, b.ID, tree[2].ID)
	assert.Equal(t, 2, tree[2].Depth)
}

func testDependencyTreeVisitsOnce(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	root := create(t, s, "root", 2)
	left := create(t, s, "left", 2)
	right := create(t, s, "right", 2)
	shared := create(t, s, "shared", 2)
	block(t, s, root.ID, left.ID, types.DepBlocks)
	block(t, s, root.ID, right.ID, types.DepRelated)
	block(t, s, left.ID, shared.ID, types.DepBlocks)
	block(t, s, right.ID, shared.ID, types.DepBlocks)
	block(t, s, shared.ID, root.ID, types.DepBlocks)

	tree, err := s.GetDependencyTree(ctx, root.ID, 10)
	require.NoError(t, err)
	seen := map[string]int{}
	for _, n := range tree {
		seen[n.ID]++
	}
	assert.Len(t, tree, 4)
	for id, n := range seen {
		assert.Equal(t, 1, n, "node %s emitted more than once", id)
	}
}

func testDetectCycles(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := create(t, s, "a", 2)
	b := create(t, s, "b", 2)
	c := create(t, s, "c", 2)
	d := create(t, s, "d", 2)
	block(t, s, a.ID, b.ID, types.DepBlocks)
	block(t, s, b.ID, c.ID, types.DepRelated)
	block(t, s, c.ID, a.ID, types.DepParentChild)
	block(t, s, d.ID, a.ID, types.DepBlocks)

	cycles, err := s.DetectCycles(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, cycles)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, ids(cycles[0]))
	for _, cycle := range cycles {
		assert.NotContains(t, ids(cycle), d.ID)
	}

	require.NoError(t, s.RemoveDependency(ctx, c.ID, a.ID, actor))
	cycles, err = s.DetectCycles(ctx)
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func testLabels(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	issue := create(t, s, "labelled", 2)
	require.NoError(t, s.AddLabel(ctx, issue.ID, "zeta", actor))
	require.NoError(t, s.AddLabel(ctx, issue.ID, "alpha", actor))
	require.NoError(t, s.AddLabel(ctx, issue.ID, "alpha", actor))

	labels, err := s.GetLabels(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, labels)

	byLabel, err := s.GetIssuesByLabel(ctx, "zeta")
	require.NoError(t, err)
	assert.Equal(t, []string{issue.ID}, ids(byLabel))

	require.NoError(t, s.RemoveLabel(ctx, issue.ID, "zeta", actor))
	require.NoError(t, s.RemoveLabel(ctx, issue.ID, "missing", actor))
	labels, err = s.GetLabels(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, labels)

	assert.ErrorIs(t, s.AddLabel(ctx, issue.ID, "  ", actor), types.ErrValidation)
}

func testEventsMostRecentFirst(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	issue := create(t, s, "audited", 2)
	require.NoError(t, s.AddComment(ctx, issue.ID, "alice", "first"))
	require.NoError(t, s.AddComment(ctx, issue.ID, "bob", "second"))
	old, updated := "a", "b"
	require.NoError(t, s.AddEvent(ctx, &types.Event{
		IssueID: issue.ID, EventType: types.EventUpdated, Actor: "carol", OldValue: &old, NewValue: &updated,
	}))

	events, err := s.GetEvents(ctx, issue.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "carol", events[0].Actor)
	assert.Equal(t, "bob", events[1].Actor)
	require.NotNil(t, events[1].Comment)
	assert.Equal(t, "second", *events[1].Comment)
	assert.Equal(t, types.EventCreated, events[3].EventType)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i-1].ID, events[i].ID)
	}

	limited, err := s.GetEvents(ctx, issue.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	err = s.AddEvent(ctx, &types.Event{IssueID: issue.ID, EventType: "exploded", Actor: "x"})
	assert.ErrorIs(t, err, types.ErrValidation)
	err = s.AddEvent(ctx, &types.Event{IssueID: "bd-404", EventType: types.EventCommented, Actor: "x"})
	assert.True(t, storage.IsNotFound(err))
	assert.ErrorIs(t, s.AddComment(ctx, issue.ID, "x", " "), types.ErrValidation)
}

func testDirtyTracking(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := create(t, s, "a", 2)
	b := create(t, s, "b", 2)
	c := create(t, s, "c", 2)
	title := "a2"
	require.NoError(t, s.UpdateIssue(ctx, a.ID, types.IssueUpdate{Title: &title}, actor))

	dirty, err := s.GetDirtyIssues(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, dirty, "oldest mark first, deduplicated")

	require.NoError(t, s.ClearDirtyIssuesByID(ctx, []string{b.ID}))
	dirty, err = s.GetDirtyIssues(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, c.ID}, dirty)

	require.NoError(t, s.ClearDirtyIssues(ctx))
	dirty, err = s.GetDirtyIssues(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty)

	// every mutation kind re-marks
	block(t, s, b.ID, a.ID, types.DepBlocks)
	require.NoError(t, s.AddLabel(ctx, c.ID, "x", actor))
	require.NoError(t, s.MarkIssueDirty(ctx, a.ID))
	require.NoError(t, s.MarkIssueDirty(ctx, a.ID))
	dirty, err = s.GetDirtyIssues(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, dirty)
}

func testDeleteKeepsDirtyMarker(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	a := create(t, s, "a", 2)
	b := create(t, s, "b", 2)
	block(t, s, b.ID, a.ID, types.DepBlocks)
	require.NoError(t, s.AddLabel(ctx, a.ID, "gone", actor))
	require.NoError(t, s.ClearDirtyIssues(ctx))

	require.NoError(t, s.DeleteIssue(ctx, a.ID))
	_, err := s.GetIssue(ctx, a.ID)
	assert.True(t, storage.IsNotFound(err))

	dirty, err := s.GetDirtyIssues(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, dirty)

	recs, err := s.GetDependencyRecords(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, recs)

	// ids are never reused
	assert.Equal(t, "bd-3", create(t, s, "c", 2).ID)
}

func testStatistics(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	closedAt := created.Add(10 * time.Hour)
	require.NoError(t, s.CreateIssue(ctx, &types.Issue{
		Title: "done", Priority: 2, Status: types.StatusClosed, CreatedAt: created, ClosedAt: &closedAt,
	}, actor))
	blocker := create(t, s, "blocker", 2)
	blocked := create(t, s, "blocked", 2)
	block(t, s, blocked.ID, blocker.ID, types.DepBlocks)
	wip := types.StatusInProgress
	require.NoError(t, s.UpdateIssue(ctx, blocker.ID, types.IssueUpdate{Status: &wip}, actor))

	stats, err := s.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalIssues)
	assert.Equal(t, 1, stats.OpenIssues)
	assert.Equal(t, 1, stats.InProgressIssues)
	assert.Equal(t, 1, stats.ClosedIssues)
	assert.Equal(t, 1, stats.BlockedIssues)
	assert.Equal(t, 0, stats.ReadyIssues)
	assert.InDelta(t, 10.0, stats.AverageLeadTimeHours, 0.001)
}

func testConfigAndMetadata(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	v, err := s.GetConfig(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetConfig(ctx, "issue_prefix", "app"))
	require.NoError(t, s.SetConfig(ctx, "issue_prefix", "web"))
	v, err = s.GetConfig(ctx, "issue_prefix")
	require.NoError(t, err)
	assert.Equal(t, "web", v)

	all, err := s.GetAllConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "web", all["issue_prefix"])

	require.NoError(t, s.DeleteConfig(ctx, "issue_prefix"))
	v, err = s.GetConfig(ctx, "issue_prefix")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata(ctx, storage.MetadataLastImportHash, "abc"))
	v, err = s.GetMetadata(ctx, storage.MetadataLastImportHash)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
	v, err = s.GetConfig(ctx, storage.MetadataLastImportHash)
	require.NoError(t, err)
	assert.Empty(t, v, "metadata and config are separate namespaces")
}

func testConcurrentAllocation(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	const workers, perWorker = 4, 10

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last int64
			for i := 0; i < perWorker; i++ {
				id, err := s.NextIssueID(ctx, "bd")
				if err != nil {
					errs <- err
					return
				}
				var n int64
				if _, err := fmt.Sscanf(id, "bd-%d", &n); err != nil || n <= last {
					errs <- fmt.Errorf("id %s not increasing after %d", id, last)
					return
				}
				last = n
				mu.Lock()
				if seen[id] {
					mu.Unlock()
					errs <- fmt.Errorf("duplicate id %s", id)
					return
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, seen, workers*perWorker)
}
