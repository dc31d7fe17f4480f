// Package config resolves trace's startup settings: command-line flags,
// TRACE_* environment variables, config.yaml and built-in defaults, in that
// order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DirName is the per-project directory holding the database, snapshot and
// config.yaml.
const DirName = ".trace"

var v *viper.Viper

// Initialize sets up the viper instance. It is safe to call again; each
// call starts from a clean instance.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("TRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("json", false)
	v.SetDefault("no-auto-flush", false)
	v.SetDefault("no-auto-import", false)
	v.SetDefault("db", "")
	v.SetDefault("actor", "")
	v.SetDefault("issue-prefix", "")
	v.SetDefault("watch-debounce", 500*time.Millisecond)
	v.SetDefault("debug.log-file", "")

	path := findConfigFile()
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return nil
}

// findConfigFile returns the project config.yaml nearest the working
// directory, else the user-level one, else "".
func findConfigFile() string {
	if path, err := findProjectConfigYaml(); err == nil {
		return path
	}
	if dir, err := os.UserConfigDir(); err == nil {
		path := filepath.Join(dir, "trace", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigFileUsed returns the config.yaml read at startup, or "".
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// IsSet reports whether key has a value from any source other than the
// defaults.
func IsSet(key string) bool {
	if v == nil {
		return false
	}
	return v.InConfig(key) || os.Getenv(envName(key)) != ""
}

// Set overrides a value for this process only.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns every resolved setting.
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}

func envName(key string) string {
	return "TRACE_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}
