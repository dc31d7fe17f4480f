package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/tracehq/trace/internal/types"
)

func TestCheckVersionCompatibility(t *testing.T) {
	tests := []struct {
		name      string
		db, bin   string
		wantNewer bool
		wantErr   bool
	}{
		{"fresh database", "", "0.4.0", false, false},
		{"same version", "0.4.0", "0.4.0", false, false},
		{"older database", "0.3.2", "0.4.0", false, false},
		{"newer minor", "0.5.0", "0.4.0", true, false},
		{"newer major", "1.0.0", "0.4.0", true, true},
		{"older major", "0.9.0", "1.2.0", false, false},
		{"dev build", "0.4.0", "dev", false, false},
		{"v prefix", "v0.4.1", "0.4.0", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newer, err := checkVersionCompatibility(tt.db, tt.bin)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if newer != tt.wantNewer {
				t.Errorf("newer = %v, want %v", newer, tt.wantNewer)
			}
		})
	}
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]int{"0": 0, "P0": 0, "p3": 3, " 4 ": 4} {
		got, err := parsePriority(in)
		if err != nil || got != want {
			t.Errorf("parsePriority(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"", "5", "P-1", "high"} {
		if _, err := parsePriority(in); !errors.Is(err, types.ErrValidation) {
			t.Errorf("parsePriority(%q) = %v, want validation error", in, err)
		}
	}
}

func TestParseDepSpec(t *testing.T) {
	tests := []struct {
		spec     string
		wantType types.DependencyType
		wantID   string
		wantErr  bool
	}{
		{"bd-1", types.DepBlocks, "bd-1", false},
		{"related:bd-2", types.DepRelated, "bd-2", false},
		{" discovered-from : 7 ", types.DepDiscoveredFrom, "7", false},
		{"needs:bd-3", "", "", true},
		{"blocks:", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			dep, err := parseDepSpec(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if dep.Type != tt.wantType || dep.DependsOnID != tt.wantID {
				t.Errorf("got %s:%s, want %s:%s", dep.Type, dep.DependsOnID, tt.wantType, tt.wantID)
			}
		})
	}
}

func TestDescribeEvent(t *testing.T) {
	old, now := "open", "closed"
	e := &types.Event{EventType: types.EventStatusChanged, Actor: "alice", OldValue: &old, NewValue: &now}
	if got := describeEvent(e); !strings.Contains(got, "open → closed") || !strings.Contains(got, "alice") {
		t.Errorf("describeEvent = %q", got)
	}
	label := "ui"
	e = &types.Event{EventType: types.EventLabelRemoved, Actor: "bob", OldValue: &label}
	if got := describeEvent(e); !strings.Contains(got, "ui") {
		t.Errorf("describeEvent = %q", got)
	}
}

func TestIsBusyError(t *testing.T) {
	if !isBusyError(errors.New("sqlite3: database is locked")) {
		t.Error("locked database should be retried")
	}
	if isBusyError(errors.New("unable to open database file")) {
		t.Error("missing database should not be retried")
	}
}
