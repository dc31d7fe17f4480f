package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate runs the test from an empty directory with no user config.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", dir)
	return dir
}

func TestDefaults(t *testing.T) {
	isolate(t)
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"json", false, func(k string) interface{} { return GetBool(k) }},
		{"no-auto-flush", false, func(k string) interface{} { return GetBool(k) }},
		{"no-auto-import", false, func(k string) interface{} { return GetBool(k) }},
		{"db", "", func(k string) interface{} { return GetString(k) }},
		{"actor", "", func(k string) interface{} { return GetString(k) }},
		{"watch-debounce", 500 * time.Millisecond, func(k string) interface{} { return GetDuration(k) }},
		{"debug.log-file", "", func(k string) interface{} { return GetString(k) }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := tt.getter(tt.key); got != tt.expected {
				t.Errorf("Get(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
	if ConfigFileUsed() != "" {
		t.Errorf("unexpected config file %q", ConfigFileUsed())
	}
}

func TestEnvironmentBinding(t *testing.T) {
	tests := []struct {
		envVar   string
		key      string
		value    string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"TRACE_JSON", "json", "true", true, func(k string) interface{} { return GetBool(k) }},
		{"TRACE_NO_AUTO_FLUSH", "no-auto-flush", "true", true, func(k string) interface{} { return GetBool(k) }},
		{"TRACE_ACTOR", "actor", "testuser", "testuser", func(k string) interface{} { return GetString(k) }},
		{"TRACE_DB", "db", "/tmp/test.db", "/tmp/test.db", func(k string) interface{} { return GetString(k) }},
		{"TRACE_WATCH_DEBOUNCE", "watch-debounce", "2s", 2 * time.Second, func(k string) interface{} { return GetDuration(k) }},
		{"TRACE_DEBUG_LOG_FILE", "debug.log-file", "/tmp/trace.log", "/tmp/trace.log", func(k string) interface{} { return GetString(k) }},
	}
	for _, tt := range tests {
		t.Run(tt.envVar, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.envVar, tt.value)
			if err := Initialize(); err != nil {
				t.Fatalf("Initialize() returned error: %v", err)
			}
			if got := tt.getter(tt.key); got != tt.expected {
				t.Errorf("Get(%q) = %v, want %v", tt.key, got, tt.expected)
			}
			if !IsSet(tt.key) {
				t.Errorf("IsSet(%q) = false with %s set", tt.key, tt.envVar)
			}
		})
	}
}

func TestProjectConfigFoundFromSubdirectory(t *testing.T) {
	dir := isolate(t)
	traceDir := filepath.Join(dir, DirName)
	if err := os.MkdirAll(traceDir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(traceDir, "config.yaml"), []byte("json: true\nactor: alice\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o750); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if !GetBool("json") || GetString("actor") != "alice" {
		t.Errorf("config file not applied: json=%v actor=%q", GetBool("json"), GetString("actor"))
	}
	if !IsSet("actor") {
		t.Error("IsSet(actor) = false for a key in config.yaml")
	}

	// environment beats the file
	t.Setenv("TRACE_ACTOR", "bob")
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	if got := GetString("actor"); got != "bob" {
		t.Errorf("actor = %q, want env override bob", got)
	}
}

func TestSetOverridesForProcess(t *testing.T) {
	isolate(t)
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	Set("json", true)
	if !GetBool("json") {
		t.Error("Set did not take effect")
	}
	if _, ok := AllSettings()["json"]; !ok {
		t.Error("AllSettings missing json")
	}
}
