package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func intPtr(i int) *int { return &i }

func TestIssueValidation(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		issue   Issue
		wantErr bool
		field   string
	}{
		{
			name:  "valid issue",
			issue: Issue{Title: "Valid", Status: StatusOpen, Priority: 2, IssueType: TypeTask},
		},
		{
			name:    "missing title",
			issue:   Issue{Status: StatusOpen, Priority: 2, IssueType: TypeTask},
			wantErr: true,
			field:   "title",
		},
		{
			name:  "title at limit",
			issue: Issue{Title: strings.Repeat("x", 500), Status: StatusOpen, Priority: 2, IssueType: TypeTask},
		},
		{
			name:    "title too long",
			issue:   Issue{Title: strings.Repeat("x", 501), Status: StatusOpen, Priority: 2, IssueType: TypeTask},
			wantErr: true,
			field:   "title",
		},
		{
			name:  "multibyte title counted in characters",
			issue: Issue{Title: strings.Repeat("é", 500), Status: StatusOpen, Priority: 2, IssueType: TypeTask},
		},
		{
			name:    "priority too low",
			issue:   Issue{Title: "t", Status: StatusOpen, Priority: -1, IssueType: TypeTask},
			wantErr: true,
			field:   "priority",
		},
		{
			name:    "priority too high",
			issue:   Issue{Title: "t", Status: StatusOpen, Priority: 5, IssueType: TypeTask},
			wantErr: true,
			field:   "priority",
		},
		{
			name:    "invalid status",
			issue:   Issue{Title: "t", Status: "done", Priority: 1, IssueType: TypeTask},
			wantErr: true,
			field:   "status",
		},
		{
			name:    "invalid type",
			issue:   Issue{Title: "t", Status: StatusOpen, Priority: 1, IssueType: "story"},
			wantErr: true,
			field:   "issue_type",
		},
		{
			name:    "negative estimate",
			issue:   Issue{Title: "t", Status: StatusOpen, Priority: 1, IssueType: TypeTask, EstimatedMinutes: intPtr(-5)},
			wantErr: true,
			field:   "estimated_minutes",
		},
		{
			name:  "zero estimate",
			issue: Issue{Title: "t", Status: StatusOpen, Priority: 1, IssueType: TypeTask, EstimatedMinutes: intPtr(0)},
		},
		{
			name:    "closed without closed_at",
			issue:   Issue{Title: "t", Status: StatusClosed, Priority: 1, IssueType: TypeTask},
			wantErr: true,
			field:   "closed_at",
		},
		{
			name:    "open with closed_at",
			issue:   Issue{Title: "t", Status: StatusOpen, Priority: 1, IssueType: TypeTask, ClosedAt: &now},
			wantErr: true,
			field:   "closed_at",
		},
		{
			name:  "closed with closed_at",
			issue: Issue{Title: "t", Status: StatusClosed, Priority: 1, IssueType: TypeTask, ClosedAt: &now},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.issue.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected errors.Is(err, ErrValidation), got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	issue := Issue{Title: "t"}
	issue.ApplyDefaults()
	if issue.Status != StatusOpen {
		t.Errorf("Status = %q, want open", issue.Status)
	}
	if issue.IssueType != TypeTask {
		t.Errorf("IssueType = %q, want task", issue.IssueType)
	}
}

func TestParseEnums(t *testing.T) {
	if _, err := ParseStatus("in_progress"); err != nil {
		t.Errorf("ParseStatus(in_progress) failed: %v", err)
	}
	if _, err := ParseStatus("wip"); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseStatus(wip) = %v, want validation error", err)
	}
	if _, err := ParseIssueType("epic"); err != nil {
		t.Errorf("ParseIssueType(epic) failed: %v", err)
	}
	if _, err := ParseIssueType("story"); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseIssueType(story) = %v, want validation error", err)
	}
	if _, err := ParseDependencyType("discovered-from"); err != nil {
		t.Errorf("ParseDependencyType(discovered-from) failed: %v", err)
	}
	if _, err := ParseDependencyType("depends"); !errors.Is(err, ErrValidation) {
		t.Errorf("ParseDependencyType(depends) = %v, want validation error", err)
	}
}

func TestDependencyValidate(t *testing.T) {
	tests := []struct {
		name    string
		dep     Dependency
		wantErr bool
	}{
		{"valid", Dependency{IssueID: "bd-1", DependsOnID: "bd-2", Type: DepBlocks}, false},
		{"self", Dependency{IssueID: "bd-1", DependsOnID: "bd-1", Type: DepBlocks}, true},
		{"missing endpoint", Dependency{IssueID: "bd-1", Type: DepRelated}, true},
		{"bad type", Dependency{IssueID: "bd-1", DependsOnID: "bd-2", Type: "needs"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.dep.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDependencyWireFormat(t *testing.T) {
	dep := Dependency{IssueID: "bd-2", DependsOnID: "bd-1", Type: DepBlocks, CreatedBy: "alice"}
	data, err := json.Marshal(dep)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"type":"blocks"`) {
		t.Errorf("expected dependency type under \"type\", got %s", s)
	}
	if strings.Contains(s, "dep_type") {
		t.Errorf("unexpected dep_type key in %s", s)
	}
}

func TestIssueWireFormatOmitsLabelsKeepsPriority(t *testing.T) {
	issue := Issue{ID: "bd-1", Title: "t", Status: StatusOpen, Priority: 0, IssueType: TypeBug}
	data, err := json.Marshal(issue)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"priority":0`) {
		t.Errorf("priority 0 must be emitted, got %s", s)
	}
	if strings.Contains(s, "labels") {
		t.Errorf("labels must not be part of the wire format, got %s", s)
	}
}
