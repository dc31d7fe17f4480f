// Package configfile reads and writes .trace/metadata.json, which names
// the database and snapshot files inside a project's .trace directory.
package configfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigFileName is the metadata file inside the .trace directory.
const ConfigFileName = "metadata.json"

// Default file names.
const (
	DefaultDatabase = "trace.db"
	DefaultSnapshot = "issues.jsonl"
)

// Config names the files a project uses. Both are relative to the .trace
// directory.
type Config struct {
	Database string `json:"database"`
	Snapshot string `json:"snapshot,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{Database: DefaultDatabase, Snapshot: DefaultSnapshot}
}

func ConfigPath(traceDir string) string {
	return filepath.Join(traceDir, ConfigFileName)
}

// Load reads metadata.json from traceDir. A missing file yields (nil, nil).
func Load(traceDir string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(traceDir)) // #nosec G304 - controlled path
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects file names that would escape the .trace directory.
func (c *Config) Validate() error {
	for field, name := range map[string]string{"database": c.Database, "snapshot": c.Snapshot} {
		if name == "" {
			continue
		}
		if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return fmt.Errorf("invalid %s file name %q in %s", field, name, ConfigFileName)
		}
	}
	return nil
}

func (c *Config) Save(traceDir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(traceDir), append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) DatabasePath(traceDir string) string {
	if c.Database == "" {
		return filepath.Join(traceDir, DefaultDatabase)
	}
	return filepath.Join(traceDir, c.Database)
}

func (c *Config) SnapshotPath(traceDir string) string {
	if c.Snapshot == "" {
		return filepath.Join(traceDir, DefaultSnapshot)
	}
	return filepath.Join(traceDir, c.Snapshot)
}
