// Package types defines core data structures for the trace issue tracker.
package types

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxTitleLength is the longest title, in characters, an issue may carry.
const MaxTitleLength = 500

// Issue represents a trackable work item
type Issue struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	Description        string        `json:"description,omitempty"`
	Design             string        `json:"design,omitempty"`
	AcceptanceCriteria string        `json:"acceptance_criteria,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	Status             Status        `json:"status"`
	Priority           int           `json:"priority"` // No omitempty: 0 is valid (P0/critical)
	IssueType          IssueType     `json:"issue_type"`
	Assignee           string        `json:"assignee,omitempty"`
	EstimatedMinutes   *int          `json:"estimated_minutes,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	ClosedAt           *time.Time    `json:"closed_at,omitempty"`
	ExternalRef        *string       `json:"external_ref,omitempty"`
	Dependencies       []*Dependency `json:"dependencies,omitempty"`
}

// ErrValidation is matched by every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError reports malformed input. It is always returned before
// anything is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Is lets callers test for the ErrValidation sentinel.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks if the issue has valid field values
func (i *Issue) Validate() error {
	if len(i.Title) == 0 {
		return invalid("title", "title is required")
	}
	if n := utf8.RuneCountInString(i.Title); n > MaxTitleLength {
		return invalid("title", "title must be %d characters or less (got %d)", MaxTitleLength, n)
	}
	if i.Priority < 0 || i.Priority > 4 {
		return invalid("priority", "priority must be between 0 and 4 (got %d)", i.Priority)
	}
	if !i.Status.IsValid() {
		return invalid("status", "invalid status: %q", i.Status)
	}
	if !i.IssueType.IsValid() {
		return invalid("issue_type", "invalid issue type: %q", i.IssueType)
	}
	if i.EstimatedMinutes != nil && *i.EstimatedMinutes < 0 {
		return invalid("estimated_minutes", "estimated_minutes cannot be negative")
	}
	// closed_at is set if and only if the issue is closed
	if i.Status == StatusClosed && i.ClosedAt == nil {
		return invalid("closed_at", "closed issues must have closed_at timestamp")
	}
	if i.Status != StatusClosed && i.ClosedAt != nil {
		return invalid("closed_at", "non-closed issues cannot have closed_at timestamp")
	}
	return nil
}

// ApplyDefaults fills in the zero-valued status and type.
func (i *Issue) ApplyDefaults() {
	if i.Status == "" {
		i.Status = StatusOpen
	}
	if i.IssueType == "" {
		i.IssueType = TypeTask
	}
}

// Status represents the current state of an issue
type Status string

// Issue status constants
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusClosed     Status = "closed"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusClosed:
		return true
	}
	return false
}

// ParseStatus converts user input into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", invalid("status", "invalid status: %q", s)
	}
	return st, nil
}

// IssueType categorizes the kind of work
type IssueType string

// Issue type constants
const (
	TypeBug     IssueType = "bug"
	TypeFeature IssueType = "feature"
	TypeTask    IssueType = "task"
	TypeEpic    IssueType = "epic"
	TypeChore   IssueType = "chore"
)

// IsValid checks if the issue type value is valid
func (t IssueType) IsValid() bool {
	switch t {
	case TypeBug, TypeFeature, TypeTask, TypeEpic, TypeChore:
		return true
	}
	return false
}

// ParseIssueType converts user input into an IssueType.
func ParseIssueType(s string) (IssueType, error) {
	t := IssueType(s)
	if !t.IsValid() {
		return "", invalid("issue_type", "invalid issue type: %q", s)
	}
	return t, nil
}

// Dependency represents a relationship between issues
type Dependency struct {
	IssueID     string         `json:"issue_id"`
	DependsOnID string         `json:"depends_on_id"`
	Type        DependencyType `json:"type"`
	CreatedAt   time.Time      `json:"created_at"`
	CreatedBy   string         `json:"created_by"`
}

// Validate checks the edge before it is stored.
func (d *Dependency) Validate() error {
	if d.IssueID == "" || d.DependsOnID == "" {
		return invalid("dependency", "both issue_id and depends_on_id are required")
	}
	if d.IssueID == d.DependsOnID {
		return invalid("dependency", "issue %s cannot depend on itself", d.IssueID)
	}
	if !d.Type.IsValid() {
		return invalid("type", "invalid dependency type: %q", d.Type)
	}
	return nil
}

// DependencyType categorizes the relationship
type DependencyType string

// Dependency type constants
const (
	DepBlocks         DependencyType = "blocks"
	DepRelated        DependencyType = "related"
	DepParentChild    DependencyType = "parent-child"
	DepDiscoveredFrom DependencyType = "discovered-from"
)

// IsValid checks if the dependency type value is valid
func (d DependencyType) IsValid() bool {
	switch d {
	case DepBlocks, DepRelated, DepParentChild, DepDiscoveredFrom:
		return true
	}
	return false
}

// ParseDependencyType converts user input into a DependencyType.
func ParseDependencyType(s string) (DependencyType, error) {
	d := DependencyType(s)
	if !d.IsValid() {
		return "", invalid("type", "invalid dependency type: %q", s)
	}
	return d, nil
}

// Label represents a tag on an issue
type Label struct {
	IssueID string `json:"issue_id"`
	Label   string `json:"label"`
}

// Event represents an audit trail entry
type Event struct {
	ID        int64     `json:"id"`
	IssueID   string    `json:"issue_id"`
	EventType EventType `json:"event_type"`
	Actor     string    `json:"actor"`
	OldValue  *string   `json:"old_value,omitempty"`
	NewValue  *string   `json:"new_value,omitempty"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventType categorizes audit trail events
type EventType string

// Event type constants for audit trail
const (
	EventCreated           EventType = "created"
	EventUpdated           EventType = "updated"
	EventStatusChanged     EventType = "status_changed"
	EventCommented         EventType = "commented"
	EventClosed            EventType = "closed"
	EventReopened          EventType = "reopened"
	EventDependencyAdded   EventType = "dependency_added"
	EventDependencyRemoved EventType = "dependency_removed"
	EventLabelAdded        EventType = "label_added"
	EventLabelRemoved      EventType = "label_removed"
)

// IsValid checks if the event type value is valid
func (e EventType) IsValid() bool {
	switch e {
	case EventCreated, EventUpdated, EventStatusChanged, EventCommented, EventClosed,
		EventReopened, EventDependencyAdded, EventDependencyRemoved, EventLabelAdded, EventLabelRemoved:
		return true
	}
	return false
}

// BlockedIssue extends Issue with blocking information
type BlockedIssue struct {
	Issue
	BlockedByCount int      `json:"blocked_by_count"`
	BlockedBy      []string `json:"blocked_by"`
}

// TreeNode represents a node in a dependency tree
type TreeNode struct {
	Issue
	Depth     int    `json:"depth"`
	ParentID  string `json:"parent_id,omitempty"`
	Truncated bool   `json:"truncated"`
}

// Statistics provides aggregate metrics
type Statistics struct {
	TotalIssues          int     `json:"total_issues"`
	OpenIssues           int     `json:"open_issues"`
	InProgressIssues     int     `json:"in_progress_issues"`
	ClosedIssues         int     `json:"closed_issues"`
	BlockedIssues        int     `json:"blocked_issues"`
	ReadyIssues          int     `json:"ready_issues"`
	AverageLeadTimeHours float64 `json:"average_lead_time_hours"`
}

// IssueFilter is used to filter issue queries
type IssueFilter struct {
	Status    *Status
	Priority  *int
	IssueType *IssueType
	Assignee  *string
	Labels    []string // issue must carry at least one of these
	IDs       []string
	Limit     int
}

// WorkFilter is used to filter ready work queries
type WorkFilter struct {
	Priority *int
	Assignee *string
	Limit    int
}

// DefaultMaxTreeDepth bounds dependency tree traversal when no depth is given.
const DefaultMaxTreeDepth = 50
