package types

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func strPtr(s string) *string { return &s }

func TestPatchStates(t *testing.T) {
	var untouched Patch[int]
	if !untouched.IsUntouched() || untouched.IsSet() || untouched.IsCleared() {
		t.Errorf("zero Patch should be untouched")
	}
	set := Set(30)
	if v, ok := set.Value(); !ok || v != 30 {
		t.Errorf("Set(30).Value() = %d, %v", v, ok)
	}
	cleared := Clear[int]()
	if !cleared.IsCleared() {
		t.Errorf("Clear() should be cleared")
	}
	if _, ok := cleared.Value(); ok {
		t.Errorf("cleared patch must not report a value")
	}
	if !SetOrClear[int](nil).IsCleared() {
		t.Errorf("SetOrClear(nil) should clear")
	}
	if !SetOrClear(intPtr(4)).IsSet() {
		t.Errorf("SetOrClear(&4) should set")
	}
}

func TestIssueUpdateApplySparse(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)
	base := &Issue{
		ID:               "bd-1",
		Title:            "Original",
		Description:      "keep me",
		Status:           StatusOpen,
		Priority:         2,
		IssueType:        TypeTask,
		Assignee:         "alice",
		EstimatedMinutes: intPtr(60),
		ExternalRef:      strPtr("gh-1"),
		CreatedAt:        created,
		UpdatedAt:        created,
	}

	tests := []struct {
		name   string
		update IssueUpdate
		check  func(t *testing.T, got *Issue)
	}{
		{
			name:   "untouched fields preserved",
			update: IssueUpdate{Title: strPtr("Renamed")},
			check: func(t *testing.T, got *Issue) {
				want := *base
				want.Title = "Renamed"
				want.UpdatedAt = now
				if diff := cmp.Diff(&want, got); diff != "" {
					t.Errorf("Apply mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name:   "clear estimate and external ref",
			update: IssueUpdate{EstimatedMinutes: Clear[int](), ExternalRef: Clear[string]()},
			check: func(t *testing.T, got *Issue) {
				if got.EstimatedMinutes != nil || got.ExternalRef != nil {
					t.Errorf("expected cleared fields, got %v %v", got.EstimatedMinutes, got.ExternalRef)
				}
				if got.Assignee != "alice" {
					t.Errorf("assignee changed unexpectedly: %q", got.Assignee)
				}
			},
		},
		{
			name:   "set estimate to zero differs from clear",
			update: IssueUpdate{EstimatedMinutes: Set(0)},
			check: func(t *testing.T, got *Issue) {
				if got.EstimatedMinutes == nil || *got.EstimatedMinutes != 0 {
					t.Errorf("expected estimate 0, got %v", got.EstimatedMinutes)
				}
			},
		},
		{
			name:   "clear assignee",
			update: IssueUpdate{Assignee: Clear[string]()},
			check: func(t *testing.T, got *Issue) {
				if got.Assignee != "" {
					t.Errorf("expected unassigned, got %q", got.Assignee)
				}
			},
		},
		{
			name: "closing stamps closed_at",
			update: func() IssueUpdate {
				s := StatusClosed
				return IssueUpdate{Status: &s}
			}(),
			check: func(t *testing.T, got *Issue) {
				if got.ClosedAt == nil || !got.ClosedAt.Equal(now) {
					t.Errorf("expected closed_at = now, got %v", got.ClosedAt)
				}
				if err := got.Validate(); err != nil {
					t.Errorf("closed issue should validate: %v", err)
				}
			},
		},
		{
			name: "explicit closed_at wins",
			update: func() IssueUpdate {
				s := StatusClosed
				return IssueUpdate{Status: &s, ClosedAt: Set(created)}
			}(),
			check: func(t *testing.T, got *Issue) {
				if got.ClosedAt == nil || !got.ClosedAt.Equal(created) {
					t.Errorf("expected explicit closed_at, got %v", got.ClosedAt)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.update.Apply(base, now)
			tt.check(t, got)
		})
	}
}

func TestIssueUpdateReopenClearsClosedAt(t *testing.T) {
	closedAt := time.Now()
	issue := &Issue{Title: "t", Status: StatusClosed, Priority: 1, IssueType: TypeBug, ClosedAt: &closedAt}
	open := StatusOpen
	u := IssueUpdate{Status: &open}
	got := u.Apply(issue, time.Now())
	if got.ClosedAt != nil {
		t.Errorf("reopened issue kept closed_at %v", got.ClosedAt)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("reopened issue should validate: %v", err)
	}
}

func TestIssueUpdateIsEmpty(t *testing.T) {
	var u IssueUpdate
	if !u.IsEmpty() {
		t.Errorf("zero IssueUpdate should be empty")
	}
	u.ExternalRef = Clear[string]()
	if u.IsEmpty() {
		t.Errorf("update with a clear should not be empty")
	}
}

func TestFullUpdateAndSameContent(t *testing.T) {
	closedAt := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	src := &Issue{
		ID: "bd-3", Title: "Imported", Description: "d", Status: StatusClosed, Priority: 0,
		IssueType: TypeBug, EstimatedMinutes: intPtr(15), ClosedAt: &closedAt,
	}
	stored := &Issue{ID: "bd-3", Title: "Old", Status: StatusOpen, Priority: 3, IssueType: TypeTask, Assignee: "bob"}

	if SameContent(src, stored) {
		t.Fatalf("different issues reported as same content")
	}
	u := FullUpdate(src)
	got := u.Apply(stored, time.Now())
	if !SameContent(src, got) {
		t.Errorf("full update did not converge:\n%s", cmp.Diff(src, got))
	}
	if err := got.Validate(); err != nil {
		t.Errorf("merged issue should validate: %v", err)
	}
}
