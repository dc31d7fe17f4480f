package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// StartupKeys are read before the database is opened, so they live in
// config.yaml rather than in the store's config table.
var StartupKeys = map[string]bool{
	"json":           true,
	"no-auto-flush":  true,
	"no-auto-import": true,
	"db":             true,
	"actor":          true,
	"watch-debounce": true,
	"debug.log-file": true,
}

// IsStartupKey reports whether key belongs in config.yaml.
func IsStartupKey(key string) bool {
	return StartupKeys[key]
}

// ErrNoProjectConfig is returned when no .trace/config.yaml exists between
// the working directory and the filesystem root.
var ErrNoProjectConfig = errors.New("no .trace/config.yaml found (run 'trace init' first)")

// SetYamlConfig sets key in the project's config.yaml, keeping comments and
// the order of existing keys. Dotted keys are written as nested mappings.
func SetYamlConfig(key, value string) error {
	configPath, err := findProjectConfigYaml()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(configPath) // #nosec G304 - found by walking up from cwd
	if err != nil {
		return fmt.Errorf("failed to read config.yaml: %w", err)
	}
	updated, err := updateYamlKey(content, key, value)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, updated, 0o600); err != nil {
		return fmt.Errorf("failed to write config.yaml: %w", err)
	}
	return nil
}

// WriteDefaultConfig creates dir/config.yaml with commented defaults unless
// it already exists.
func WriteDefaultConfig(dir string) error {
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	const template = `# trace startup settings. Environment variables (TRACE_JSON,
# TRACE_ACTOR, ...) and command-line flags take precedence.
#
# json: false
# no-auto-flush: false
# no-auto-import: false
# actor: ""
# watch-debounce: 500ms
`
	if err := os.WriteFile(path, []byte(template), 0o600); err != nil {
		return fmt.Errorf("failed to write config.yaml: %w", err)
	}
	return nil
}

func findProjectConfigYaml() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		configPath := filepath.Join(dir, DirName, "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
		if dir == filepath.Dir(dir) {
			return "", ErrNoProjectConfig
		}
	}
}

// updateYamlKey sets a scalar at the dotted key path inside a YAML document.
func updateYamlKey(content []byte, key, value string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config.yaml: %w", err)
	}
	if doc.Kind == 0 {
		// empty or comment-only file
		doc = yaml.Node{Kind: yaml.DocumentNode, HeadComment: doc.HeadComment}
	}
	if len(doc.Content) == 0 || doc.Content[0].Tag == "!!null" {
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config.yaml: top level is not a mapping")
	}

	node := root
	parts := strings.Split(key, ".")
	for i, part := range parts {
		last := i == len(parts)-1
		child := lookup(node, part)
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode}
			if last {
				child = &yaml.Node{}
			}
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: part}, child)
		}
		if last {
			setScalar(child, value)
			break
		}
		if child.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("config.yaml: %s is not a mapping", part)
		}
		node = child
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config.yaml: %w", err)
	}
	return out, nil
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// setScalar lets yaml.v3 pick the tag so booleans and numbers stay unquoted.
func setScalar(n *yaml.Node, value string) {
	var typed yaml.Node
	if err := yaml.Unmarshal([]byte(value), &typed); err == nil &&
		len(typed.Content) == 1 && typed.Content[0].Kind == yaml.ScalarNode {
		*n = yaml.Node{Kind: yaml.ScalarNode, Tag: typed.Content[0].Tag, Value: value,
			HeadComment: n.HeadComment, LineComment: n.LineComment}
		return
	}
	*n = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, Style: yaml.DoubleQuotedStyle,
		HeadComment: n.HeadComment, LineComment: n.LineComment}
}

// LocalConfig is the subset of config.yaml read without going through viper,
// for callers working on a directory other than the current one.
type LocalConfig struct {
	Actor        string `yaml:"actor"`
	DB           string `yaml:"db"`
	NoAutoFlush  bool   `yaml:"no-auto-flush"`
	NoAutoImport bool   `yaml:"no-auto-import"`
}

// LoadLocalConfig reads dir/config.yaml. It returns an empty LocalConfig
// (never nil) when the file is missing or unparsable.
func LoadLocalConfig(dir string) *LocalConfig {
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml")) // #nosec G304 - project directory
	if err != nil {
		return &LocalConfig{}
	}
	var cfg LocalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &LocalConfig{}
	}
	return &cfg
}
