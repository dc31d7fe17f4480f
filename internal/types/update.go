package types

import "time"

type patchState uint8

const (
	patchUntouched patchState = iota
	patchSet
	patchCleared
)

// Patch is a three-state update value for an optional field: untouched
// (the zero value), set to a value, or explicitly cleared.
type Patch[T any] struct {
	state patchState
	value T
}

// Set returns a patch that assigns v.
func Set[T any](v T) Patch[T] {
	return Patch[T]{state: patchSet, value: v}
}

// Clear returns a patch that removes the field's value.
func Clear[T any]() Patch[T] {
	return Patch[T]{state: patchCleared}
}

// SetOrClear builds a patch from an optional value: nil clears.
func SetOrClear[T any](v *T) Patch[T] {
	if v == nil {
		return Clear[T]()
	}
	return Set(*v)
}

// IsUntouched reports whether the patch leaves the field alone.
func (p Patch[T]) IsUntouched() bool { return p.state == patchUntouched }

// IsSet reports whether the patch assigns a value.
func (p Patch[T]) IsSet() bool { return p.state == patchSet }

// IsCleared reports whether the patch clears the field.
func (p Patch[T]) IsCleared() bool { return p.state == patchCleared }

// Value returns the assigned value and whether one was set.
func (p Patch[T]) Value() (T, bool) {
	return p.value, p.state == patchSet
}

// applyPtr resolves the patch against the current optional value.
func (p Patch[T]) applyPtr(cur *T) *T {
	switch p.state {
	case patchSet:
		v := p.value
		return &v
	case patchCleared:
		return nil
	}
	return cur
}

// IssueUpdate is a sparse patch: nil pointers and untouched patches leave
// the stored value as it is.
type IssueUpdate struct {
	Title              *string
	Description        *string
	Design             *string
	AcceptanceCriteria *string
	Notes              *string
	Status             *Status
	Priority           *int
	IssueType          *IssueType

	Assignee         Patch[string]
	EstimatedMinutes Patch[int]
	ExternalRef      Patch[string]
	// ClosedAt is normally driven by status transitions. Setting it
	// explicitly (import) overrides that.
	ClosedAt Patch[time.Time]
}

// IsEmpty reports whether the update touches no field.
func (u *IssueUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Design == nil &&
		u.AcceptanceCriteria == nil && u.Notes == nil && u.Status == nil &&
		u.Priority == nil && u.IssueType == nil &&
		u.Assignee.IsUntouched() && u.EstimatedMinutes.IsUntouched() &&
		u.ExternalRef.IsUntouched() && u.ClosedAt.IsUntouched()
}

// Apply returns a copy of issue with the update merged in. closed_at
// follows status transitions unless ClosedAt is patched: entering closed
// stamps now, leaving closed clears it.
func (u *IssueUpdate) Apply(issue *Issue, now time.Time) *Issue {
	out := *issue
	out.Dependencies = nil
	if u.Title != nil {
		out.Title = *u.Title
	}
	if u.Description != nil {
		out.Description = *u.Description
	}
	if u.Design != nil {
		out.Design = *u.Design
	}
	if u.AcceptanceCriteria != nil {
		out.AcceptanceCriteria = *u.AcceptanceCriteria
	}
	if u.Notes != nil {
		out.Notes = *u.Notes
	}
	if u.Priority != nil {
		out.Priority = *u.Priority
	}
	if u.IssueType != nil {
		out.IssueType = *u.IssueType
	}
	switch {
	case u.Assignee.IsSet():
		out.Assignee = u.Assignee.value
	case u.Assignee.IsCleared():
		out.Assignee = ""
	}
	out.EstimatedMinutes = u.EstimatedMinutes.applyPtr(issue.EstimatedMinutes)
	out.ExternalRef = u.ExternalRef.applyPtr(issue.ExternalRef)

	if u.Status != nil {
		out.Status = *u.Status
		if u.ClosedAt.IsUntouched() {
			switch {
			case out.Status == StatusClosed && issue.Status != StatusClosed:
				closed := now
				out.ClosedAt = &closed
			case out.Status != StatusClosed:
				out.ClosedAt = nil
			}
		}
	}
	out.ClosedAt = u.ClosedAt.applyPtr(out.ClosedAt)
	out.UpdatedAt = now
	return &out
}

// FullUpdate builds an update that supersedes every mutable field of the
// stored issue with the values of src.
func FullUpdate(src *Issue) IssueUpdate {
	status := src.Status
	priority := src.Priority
	issueType := src.IssueType
	u := IssueUpdate{
		Title:              &src.Title,
		Description:        &src.Description,
		Design:             &src.Design,
		AcceptanceCriteria: &src.AcceptanceCriteria,
		Notes:              &src.Notes,
		Status:             &status,
		Priority:           &priority,
		IssueType:          &issueType,
		EstimatedMinutes:   SetOrClear(src.EstimatedMinutes),
		ExternalRef:        SetOrClear(src.ExternalRef),
		ClosedAt:           SetOrClear(src.ClosedAt),
	}
	if src.Assignee == "" {
		u.Assignee = Clear[string]()
	} else {
		u.Assignee = Set(src.Assignee)
	}
	return u
}

// SameContent reports whether two issues agree on every field a snapshot
// carries, ignoring timestamps other than closed_at.
func SameContent(a, b *Issue) bool {
	if a.ID != b.ID || a.Title != b.Title || a.Description != b.Description ||
		a.Design != b.Design || a.AcceptanceCriteria != b.AcceptanceCriteria ||
		a.Notes != b.Notes || a.Status != b.Status || a.Priority != b.Priority ||
		a.IssueType != b.IssueType || a.Assignee != b.Assignee {
		return false
	}
	if !equalPtr(a.EstimatedMinutes, b.EstimatedMinutes) || !equalPtr(a.ExternalRef, b.ExternalRef) {
		return false
	}
	switch {
	case a.ClosedAt == nil && b.ClosedAt == nil:
		return true
	case a.ClosedAt == nil || b.ClosedAt == nil:
		return false
	}
	return a.ClosedAt.Equal(*b.ClosedAt)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
