// Package memory implements the storage interface in process memory. It
// honours the same contract as the SQLite backend and is used where a
// throwaway store is enough, mostly tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tracehq/trace/internal/graph"
	"github.com/tracehq/trace/internal/idutil"
	"github.com/tracehq/trace/internal/storage"
	"github.com/tracehq/trace/internal/types"
)

var _ storage.Storage = (*MemoryStorage)(nil)

// MemoryStorage is a mutex-guarded, map-backed Storage.
type MemoryStorage struct {
	mu sync.RWMutex

	issues   map[string]*types.Issue
	created  map[string]int64 // insertion sequence, newest-first tiebreak
	deps     map[string]map[string]*types.Dependency
	labels   map[string]map[string]struct{}
	events   map[string][]*types.Event
	dirty    map[string]int64 // issue -> mark sequence
	counters map[string]int64
	config   map[string]string
	metadata map[string]string

	seq     int64
	eventID int64
	path    string
	now     func() time.Time
}

// New creates an empty store. path is only reported back by Path.
func New(path string) *MemoryStorage {
	return &MemoryStorage{
		issues:   make(map[string]*types.Issue),
		created:  make(map[string]int64),
		deps:     make(map[string]map[string]*types.Dependency),
		labels:   make(map[string]map[string]struct{}),
		events:   make(map[string][]*types.Event),
		dirty:    make(map[string]int64),
		counters: make(map[string]int64),
		config:   make(map[string]string),
		metadata: make(map[string]string),
		path:     path,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStorage) nextSeq() int64 {
	m.seq++
	return m.seq
}

func cloneIssue(issue *types.Issue) *types.Issue {
	c := *issue
	c.Dependencies = nil
	if issue.EstimatedMinutes != nil {
		v := *issue.EstimatedMinutes
		c.EstimatedMinutes = &v
	}
	if issue.ClosedAt != nil {
		v := *issue.ClosedAt
		c.ClosedAt = &v
	}
	if issue.ExternalRef != nil {
		v := *issue.ExternalRef
		c.ExternalRef = &v
	}
	return &c
}

func cloneDep(dep *types.Dependency) *types.Dependency {
	c := *dep
	return &c
}

// Caller holds m.mu for writing.
func (m *MemoryStorage) appendEvent(e *types.Event) {
	m.eventID++
	stored := *e
	stored.ID = m.eventID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = m.now()
	}
	m.events[e.IssueID] = append(m.events[e.IssueID], &stored)
	e.ID = stored.ID
}

func jsonString(v interface{}) *string {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(`{}`)
	}
	s := string(data)
	return &s
}

// changedFields maps each touched column to its merged value.
func changedFields(u *types.IssueUpdate, merged *types.Issue) map[string]interface{} {
	changes := make(map[string]interface{})
	if u.Title != nil {
		changes["title"] = merged.Title
	}
	if u.Description != nil {
		changes["description"] = merged.Description
	}
	if u.Design != nil {
		changes["design"] = merged.Design
	}
	if u.AcceptanceCriteria != nil {
		changes["acceptance_criteria"] = merged.AcceptanceCriteria
	}
	if u.Notes != nil {
		changes["notes"] = merged.Notes
	}
	if u.Status != nil {
		changes["status"] = merged.Status
		changes["closed_at"] = merged.ClosedAt
	}
	if u.Priority != nil {
		changes["priority"] = merged.Priority
	}
	if u.IssueType != nil {
		changes["issue_type"] = merged.IssueType
	}
	if !u.Assignee.IsUntouched() {
		changes["assignee"] = merged.Assignee
	}
	if !u.EstimatedMinutes.IsUntouched() {
		changes["estimated_minutes"] = merged.EstimatedMinutes
	}
	if !u.ExternalRef.IsUntouched() {
		changes["external_ref"] = merged.ExternalRef
	}
	if !u.ClosedAt.IsUntouched() {
		changes["closed_at"] = merged.ClosedAt
	}
	return changes
}

// Caller holds m.mu for writing.
func (m *MemoryStorage) markDirty(id string) {
	if _, ok := m.dirty[id]; !ok {
		m.dirty[id] = m.nextSeq()
	}
}

// Caller holds m.mu for writing.
func (m *MemoryStorage) touch(id string, now time.Time) {
	if issue, ok := m.issues[id]; ok {
		issue.UpdatedAt = now
	}
}

func (m *MemoryStorage) mustExist(id string) error {
	if _, ok := m.issues[id]; !ok {
		return storage.NotFoundf("issue %s", id)
	}
	return nil
}

// sortIssues orders by priority, then newest first.
func (m *MemoryStorage) sortIssues(issues []*types.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return m.created[a.ID] > m.created[b.ID]
	})
}

func limitIssues(issues []*types.Issue, limit int) []*types.Issue {
	if limit > 0 && len(issues) > limit {
		return issues[:limit]
	}
	return issues
}

// CreateIssue validates and stores an issue, allocating an ID if needed.
func (m *MemoryStorage) CreateIssue(ctx context.Context, issue *types.Issue, actor string) error {
	issue.ApplyDefaults()
	now := m.now()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = issue.CreatedAt
	}
	if err := issue.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if issue.ID == "" {
		prefix := m.config[storage.ConfigIssuePrefix]
		if prefix == "" {
			prefix = storage.DefaultIssuePrefix
		}
		issue.ID = m.allocate(prefix)
	} else {
		if _, exists := m.issues[issue.ID]; exists {
			return &storage.StorageError{Op: "insert issue " + issue.ID, Err: storage.ErrConflict}
		}
		if prefix, n, ok := idutil.SplitID(issue.ID); ok && n > m.counters[prefix] {
			m.counters[prefix] = n
		}
	}

	m.issues[issue.ID] = cloneIssue(issue)
	m.created[issue.ID] = m.nextSeq()
	m.appendEvent(&types.Event{IssueID: issue.ID, EventType: types.EventCreated, Actor: actor, NewValue: jsonString(issue), CreatedAt: now})
	m.markDirty(issue.ID)
	return nil
}

// Caller holds m.mu for writing.
func (m *MemoryStorage) allocate(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "-")
	m.counters[prefix]++
	return idutil.FormatID(prefix, m.counters[prefix])
}

// NextIssueID allocates the next ID for prefix.
func (m *MemoryStorage) NextIssueID(ctx context.Context, prefix string) (string, error) {
	if strings.TrimSuffix(prefix, "-") == "" {
		return "", fmt.Errorf("issue prefix is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocate(prefix), nil
}

// GetIssue returns a copy of the stored issue.
func (m *MemoryStorage) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	issue, ok := m.issues[id]
	if !ok {
		return nil, storage.NotFoundf("issue %s", id)
	}
	return cloneIssue(issue), nil
}

// UpdateIssue applies a sparse update after validating the merged result.
func (m *MemoryStorage) UpdateIssue(ctx context.Context, id string, update types.IssueUpdate, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.issues[id]
	if !ok {
		return storage.NotFoundf("issue %s", id)
	}
	now := m.now()
	merged := update.Apply(old, now)
	if err := merged.Validate(); err != nil {
		return err
	}

	m.issues[id] = cloneIssue(merged)
	m.appendEvent(&types.Event{
		IssueID: id, EventType: types.EventUpdated, Actor: actor,
		OldValue: jsonString(old), NewValue: jsonString(changedFields(&update, merged)), CreatedAt: now,
	})
	if merged.Status != old.Status {
		oldStatus, newStatus := string(old.Status), string(merged.Status)
		m.appendEvent(&types.Event{
			IssueID: id, EventType: types.EventStatusChanged, Actor: actor,
			OldValue: &oldStatus, NewValue: &newStatus, CreatedAt: now,
		})
		if old.Status == types.StatusClosed {
			m.appendEvent(&types.Event{IssueID: id, EventType: types.EventReopened, Actor: actor, CreatedAt: now})
		}
	}
	m.markDirty(id)
	return nil
}

// CloseIssue closes an issue, keeping closed_at if it was already closed.
func (m *MemoryStorage) CloseIssue(ctx context.Context, id string, reason string, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	issue, ok := m.issues[id]
	if !ok {
		return storage.NotFoundf("issue %s", id)
	}
	now := m.now()
	issue.Status = types.StatusClosed
	if issue.ClosedAt == nil {
		closed := now
		issue.ClosedAt = &closed
	}
	issue.UpdatedAt = now
	m.appendEvent(&types.Event{IssueID: id, EventType: types.EventClosed, Actor: actor, Comment: &reason, CreatedAt: now})
	m.markDirty(id)
	return nil
}

// DeleteIssue removes an issue with its edges, labels and events.
func (m *MemoryStorage) DeleteIssue(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.mustExist(id); err != nil {
		return err
	}
	now := m.now()
	for issueID, edges := range m.deps {
		if _, ok := edges[id]; ok {
			delete(edges, id)
			m.touch(issueID, now)
			m.markDirty(issueID)
		}
	}
	delete(m.issues, id)
	delete(m.created, id)
	delete(m.deps, id)
	delete(m.labels, id)
	delete(m.events, id)
	m.markDirty(id)
	return nil
}

// SearchIssues filters issues; labels match if any listed label is present.
func (m *MemoryStorage) SearchIssues(ctx context.Context, filter types.IssueFilter) ([]*types.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids map[string]bool
	if len(filter.IDs) > 0 {
		ids = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}

	var results []*types.Issue
	for id, issue := range m.issues {
		if filter.Status != nil && issue.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && issue.Priority != *filter.Priority {
			continue
		}
		if filter.IssueType != nil && issue.IssueType != *filter.IssueType {
			continue
		}
		if filter.Assignee != nil && issue.Assignee != *filter.Assignee {
			continue
		}
		if ids != nil && !ids[id] {
			continue
		}
		if len(filter.Labels) > 0 && !m.hasAnyLabel(id, filter.Labels) {
			continue
		}
		results = append(results, cloneIssue(issue))
	}
	m.sortIssues(results)
	return limitIssues(results, filter.Limit), nil
}

func (m *MemoryStorage) hasAnyLabel(id string, labels []string) bool {
	for _, l := range labels {
		if _, ok := m.labels[id][l]; ok {
			return true
		}
	}
	return false
}

// AddComment records a comment event.
func (m *MemoryStorage) AddComment(ctx context.Context, issueID, actor, text string) error {
	if strings.TrimSpace(text) == "" {
		return &types.ValidationError{Field: "comment", Message: "comment text is required"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.mustExist(issueID); err != nil {
		return err
	}
	now := m.now()
	m.appendEvent(&types.Event{IssueID: issueID, EventType: types.EventCommented, Actor: actor, Comment: &text, CreatedAt: now})
	m.touch(issueID, now)
	m.markDirty(issueID)
	return nil
}

// AddDependency adds or replaces an edge between two existing issues.
func (m *MemoryStorage) AddDependency(ctx context.Context, dep *types.Dependency, actor string) error {
	if dep.Type == "" {
		dep.Type = types.DepBlocks
	}
	if err := dep.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range []string{dep.IssueID, dep.DependsOnID} {
		if err := m.mustExist(id); err != nil {
			return err
		}
	}
	now := m.now()
	if dep.CreatedAt.IsZero() {
		dep.CreatedAt = now
	}
	if dep.CreatedBy == "" {
		dep.CreatedBy = actor
	}
	if m.deps[dep.IssueID] == nil {
		m.deps[dep.IssueID] = make(map[string]*types.Dependency)
	}
	m.deps[dep.IssueID][dep.DependsOnID] = cloneDep(dep)

	target := dep.DependsOnID
	comment := fmt.Sprintf("added %s dependency on %s", dep.Type, dep.DependsOnID)
	m.appendEvent(&types.Event{IssueID: dep.IssueID, EventType: types.EventDependencyAdded, Actor: actor, NewValue: &target, Comment: &comment, CreatedAt: now})
	m.touch(dep.IssueID, now)
	m.markDirty(dep.IssueID)
	return nil
}

// RemoveDependency deletes an edge; a missing edge is not an error.
func (m *MemoryStorage) RemoveDependency(ctx context.Context, issueID, dependsOnID string, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.mustExist(issueID); err != nil {
		return err
	}
	delete(m.deps[issueID], dependsOnID)
	now := m.now()
	target := dependsOnID
	m.appendEvent(&types.Event{IssueID: issueID, EventType: types.EventDependencyRemoved, Actor: actor, OldValue: &target, CreatedAt: now})
	m.touch(issueID, now)
	m.markDirty(issueID)
	return nil
}

// GetDependencies returns the issues issueID depends on.
func (m *MemoryStorage) GetDependencies(ctx context.Context, issueID string) ([]*types.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.Issue
	for target := range m.deps[issueID] {
		if issue, ok := m.issues[target]; ok {
			out = append(out, cloneIssue(issue))
		}
	}
	sortByPriorityThenID(out)
	return out, nil
}

// GetDependents returns the issues that depend on issueID.
func (m *MemoryStorage) GetDependents(ctx context.Context, issueID string) ([]*types.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.Issue
	for source, edges := range m.deps {
		if _, ok := edges[issueID]; !ok {
			continue
		}
		if issue, ok := m.issues[source]; ok {
			out = append(out, cloneIssue(issue))
		}
	}
	sortByPriorityThenID(out)
	return out, nil
}

func sortByPriorityThenID(issues []*types.Issue) {
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Priority != issues[j].Priority {
			return issues[i].Priority < issues[j].Priority
		}
		return issues[i].ID < issues[j].ID
	})
}

// GetDependencyRecords returns the outgoing edges of one issue.
func (m *MemoryStorage) GetDependencyRecords(ctx context.Context, issueID string) ([]*types.Dependency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records(issueID), nil
}

// Caller holds m.mu.
func (m *MemoryStorage) records(issueID string) []*types.Dependency {
	var out []*types.Dependency
	for _, dep := range m.deps[issueID] {
		out = append(out, cloneDep(dep))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DependsOnID < out[j].DependsOnID })
	return out
}

// GetAllDependencyRecords returns every edge grouped by dependent issue.
func (m *MemoryStorage) GetAllDependencyRecords(ctx context.Context) (map[string][]*types.Dependency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]*types.Dependency)
	for issueID := range m.deps {
		if recs := m.records(issueID); len(recs) > 0 {
			out[issueID] = recs
		}
	}
	return out, nil
}

// GetDependencyTree returns the bounded pre-order tree rooted at issueID.
func (m *MemoryStorage) GetDependencyTree(ctx context.Context, issueID string, maxDepth int) ([]*types.TreeNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return graph.Tree(memSource{m}, issueID, maxDepth)
}

// memSource reads the maps directly; the caller holds m.mu.
type memSource struct{ m *MemoryStorage }

func (s memSource) Issue(id string) (*types.Issue, error) {
	issue, ok := s.m.issues[id]
	if !ok {
		return nil, nil
	}
	return cloneIssue(issue), nil
}

func (s memSource) DependsOn(id string) ([]string, error) {
	var out []string
	for _, dep := range s.m.records(id) {
		out = append(out, dep.DependsOnID)
	}
	return out, nil
}

// DetectCycles reports every dependency cycle over edges of any type.
func (m *MemoryStorage) DetectCycles(ctx context.Context) ([][]*types.Issue, error) {
	records, err := m.GetAllDependencyRecords(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return graph.ResolveCycles(graph.FindCycles(graph.Adjacency(records)), memSource{m}.Issue)
}

// Caller holds m.mu.
func (m *MemoryStorage) activeBlockers(issueID string) []string {
	var out []string
	for target, dep := range m.deps[issueID] {
		if dep.Type != types.DepBlocks {
			continue
		}
		if blocker, ok := m.issues[target]; ok && blocker.Status != types.StatusClosed {
			out = append(out, target)
		}
	}
	sort.Strings(out)
	return out
}

// GetReadyWork returns open issues with no active blocker.
func (m *MemoryStorage) GetReadyWork(ctx context.Context, filter types.WorkFilter) ([]*types.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.Issue
	for id, issue := range m.issues {
		if issue.Status != types.StatusOpen || len(m.activeBlockers(id)) > 0 {
			continue
		}
		if filter.Priority != nil && issue.Priority != *filter.Priority {
			continue
		}
		if filter.Assignee != nil && issue.Assignee != *filter.Assignee {
			continue
		}
		out = append(out, cloneIssue(issue))
	}
	m.sortIssues(out)
	return limitIssues(out, filter.Limit), nil
}

// GetBlockedIssues returns non-closed issues with at least one active blocker.
func (m *MemoryStorage) GetBlockedIssues(ctx context.Context) ([]*types.BlockedIssue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var issues []*types.Issue
	for id, issue := range m.issues {
		if issue.Status != types.StatusClosed && len(m.activeBlockers(id)) > 0 {
			issues = append(issues, cloneIssue(issue))
		}
	}
	m.sortIssues(issues)

	out := make([]*types.BlockedIssue, 0, len(issues))
	for _, issue := range issues {
		blockers := m.activeBlockers(issue.ID)
		out = append(out, &types.BlockedIssue{Issue: *issue, BlockedByCount: len(blockers), BlockedBy: blockers})
	}
	return out, nil
}

// AddLabel tags an issue.
func (m *MemoryStorage) AddLabel(ctx context.Context, issueID, label, actor string) error {
	if strings.TrimSpace(label) == "" {
		return &types.ValidationError{Field: "label", Message: "label is required"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.mustExist(issueID); err != nil {
		return err
	}
	if m.labels[issueID] == nil {
		m.labels[issueID] = make(map[string]struct{})
	}
	m.labels[issueID][label] = struct{}{}
	now := m.now()
	m.appendEvent(&types.Event{IssueID: issueID, EventType: types.EventLabelAdded, Actor: actor, NewValue: &label, CreatedAt: now})
	m.touch(issueID, now)
	m.markDirty(issueID)
	return nil
}

// RemoveLabel untags an issue; an absent label is not an error.
func (m *MemoryStorage) RemoveLabel(ctx context.Context, issueID, label, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.mustExist(issueID); err != nil {
		return err
	}
	delete(m.labels[issueID], label)
	now := m.now()
	m.appendEvent(&types.Event{IssueID: issueID, EventType: types.EventLabelRemoved, Actor: actor, OldValue: &label, CreatedAt: now})
	m.touch(issueID, now)
	m.markDirty(issueID)
	return nil
}

// GetLabels returns an issue's labels sorted.
func (m *MemoryStorage) GetLabels(ctx context.Context, issueID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for l := range m.labels[issueID] {
		out = append(out, l)
	}
	sort.Strings(out)
	return out, nil
}

// GetIssuesByLabel returns every issue carrying label.
func (m *MemoryStorage) GetIssuesByLabel(ctx context.Context, label string) ([]*types.Issue, error) {
	return m.SearchIssues(ctx, types.IssueFilter{Labels: []string{label}})
}

// AddEvent appends an event for an existing issue.
func (m *MemoryStorage) AddEvent(ctx context.Context, event *types.Event) error {
	if !event.EventType.IsValid() {
		return &types.ValidationError{Field: "event_type", Message: "invalid event type: " + string(event.EventType)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.mustExist(event.IssueID); err != nil {
		return err
	}
	m.appendEvent(event)
	return nil
}

// GetEvents returns an issue's events, most recent first.
func (m *MemoryStorage) GetEvents(ctx context.Context, issueID string, limit int) ([]*types.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.events[issueID]
	out := make([]*types.Event, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		e := *stored[i]
		out = append(out, &e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkIssueDirty marks an issue for export; re-marking is a no-op.
func (m *MemoryStorage) MarkIssueDirty(ctx context.Context, issueID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markDirty(issueID)
	return nil
}

// GetDirtyIssues returns dirty IDs, oldest mark first.
func (m *MemoryStorage) GetDirtyIssues(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.dirty))
	for id := range m.dirty {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return m.dirty[out[i]] < m.dirty[out[j]] })
	return out, nil
}

// ClearDirtyIssues empties the dirty set.
func (m *MemoryStorage) ClearDirtyIssues(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = make(map[string]int64)
	return nil
}

// ClearDirtyIssuesByID removes the given IDs from the dirty set.
func (m *MemoryStorage) ClearDirtyIssuesByID(ctx context.Context, issueIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range issueIDs {
		delete(m.dirty, id)
	}
	return nil
}

// GetStatistics aggregates counts and mean lead time.
func (m *MemoryStorage) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats types.Statistics
	var leadHours float64
	var closedWithTime int
	for id, issue := range m.issues {
		stats.TotalIssues++
		switch issue.Status {
		case types.StatusOpen:
			stats.OpenIssues++
		case types.StatusInProgress:
			stats.InProgressIssues++
		case types.StatusClosed:
			stats.ClosedIssues++
		}
		blocked := len(m.activeBlockers(id)) > 0
		if blocked && issue.Status != types.StatusClosed {
			stats.BlockedIssues++
		}
		if !blocked && issue.Status == types.StatusOpen {
			stats.ReadyIssues++
		}
		if issue.ClosedAt != nil {
			leadHours += issue.ClosedAt.Sub(issue.CreatedAt).Hours()
			closedWithTime++
		}
	}
	if closedWithTime > 0 {
		stats.AverageLeadTimeHours = leadHours / float64(closedWithTime)
	}
	return &stats, nil
}

// SetConfig sets a configuration value.
func (m *MemoryStorage) SetConfig(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = value
	return nil
}

// GetConfig returns a configuration value, "" when unset.
func (m *MemoryStorage) GetConfig(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config[key], nil
}

// GetAllConfig returns a copy of the configuration map.
func (m *MemoryStorage) GetAllConfig(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.config))
	for k, v := range m.config {
		out[k] = v
	}
	return out, nil
}

// DeleteConfig removes a configuration value.
func (m *MemoryStorage) DeleteConfig(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.config, key)
	return nil
}

// SetMetadata sets a metadata value.
func (m *MemoryStorage) SetMetadata(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[key] = value
	return nil
}

// GetMetadata returns a metadata value, "" when unset.
func (m *MemoryStorage) GetMetadata(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metadata[key], nil
}

// Close is a no-op.
func (m *MemoryStorage) Close() error { return nil }

// Path returns the path given to New.
func (m *MemoryStorage) Path() string { return m.path }
