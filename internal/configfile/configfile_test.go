package configfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Database != "trace.db" {
		t.Errorf("Database = %q, want trace.db", cfg.Database)
	}
	if cfg.Snapshot != "issues.jsonl" {
		t.Errorf("Snapshot = %q, want issues.jsonl", cfg.Snapshot)
	}
}

func TestLoadSaveRoundtrip(t *testing.T) {
	traceDir := filepath.Join(t.TempDir(), ".trace")
	if err := os.MkdirAll(traceDir, 0o750); err != nil {
		t.Fatalf("failed to create .trace directory: %v", err)
	}

	cfg := &Config{Database: "work.db", Snapshot: "work.jsonl"}
	if err := cfg.Save(traceDir); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	loaded, err := Load(traceDir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load() returned nil config")
	}
	if *loaded != *cfg {
		t.Errorf("Load() = %+v, want %+v", loaded, cfg)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() returned error for nonexistent config: %v", err)
	}
	if cfg != nil {
		t.Errorf("Load() = %v, want nil for nonexistent config", cfg)
	}
}

func TestLoadRejectsBadNames(t *testing.T) {
	tests := []string{
		`{"database": "../outside.db"}`,
		`{"database": "/abs/trace.db"}`,
		`{"database": "trace.db", "snapshot": "sub/issues.jsonl"}`,
		`{not json}`,
	}
	for _, content := range tests {
		t.Run(content, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(ConfigPath(dir), []byte(content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(dir); err == nil {
				t.Errorf("Load(%s) succeeded, want error", content)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	traceDir := "/home/user/project/.trace"

	tests := []struct {
		name         string
		cfg          *Config
		wantDB       string
		wantSnapshot string
	}{
		{
			name:         "default",
			cfg:          DefaultConfig(),
			wantDB:       filepath.Join(traceDir, "trace.db"),
			wantSnapshot: filepath.Join(traceDir, "issues.jsonl"),
		},
		{
			name:         "custom",
			cfg:          &Config{Database: "x.db", Snapshot: "x.jsonl"},
			wantDB:       filepath.Join(traceDir, "x.db"),
			wantSnapshot: filepath.Join(traceDir, "x.jsonl"),
		},
		{
			name:         "empty falls back to default",
			cfg:          &Config{},
			wantDB:       filepath.Join(traceDir, "trace.db"),
			wantSnapshot: filepath.Join(traceDir, "issues.jsonl"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DatabasePath(traceDir); got != tt.wantDB {
				t.Errorf("DatabasePath() = %q, want %q", got, tt.wantDB)
			}
			if got := tt.cfg.SnapshotPath(traceDir); got != tt.wantSnapshot {
				t.Errorf("SnapshotPath() = %q, want %q", got, tt.wantSnapshot)
			}
		})
	}
}

func TestConfigPath(t *testing.T) {
	traceDir := "/home/user/project/.trace"
	if got, want := ConfigPath(traceDir), filepath.Join(traceDir, "metadata.json"); got != want {
		t.Errorf("ConfigPath() = %q, want %q", got, want)
	}
}
