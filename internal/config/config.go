// Package config loads the deployctl configuration file and validates
// per-action field requirements.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file read when --config is not given.
const DefaultPath = "/etc/deployctl/config.yaml"

// Defaults applied when the corresponding project fields are empty.
const (
	DefaultDataFile       = "storage/database.sqlite"
	DefaultDataFileOwner  = "nginx:nginx-data"
	DefaultCommandTimeout = 10 * time.Minute
)

// Config is the top-level configuration: global settings plus one entry per
// deployable project.
type Config struct {
	// LogFile receives the structured audit log. Empty means stderr.
	LogFile string `yaml:"log_file"`

	// CommandTimeout bounds every external command, e.g. "5m". Empty or
	// unparseable values fall back to DefaultCommandTimeout.
	CommandTimeout string `yaml:"command_timeout"`

	Projects map[string]ProjectConfig `yaml:"projects"`
}

// ProjectConfig identifies one deployable unit. Which fields are required
// depends on the action; see Require.
type ProjectConfig struct {
	Path                 string   `yaml:"path"`
	Branch               string   `yaml:"branch"`
	DeployingUser        string   `yaml:"deploying_user"`
	Container            string   `yaml:"container"`
	SupervisorProcess    string   `yaml:"supervisor_process"`
	SystemdService       string   `yaml:"systemd_service"`
	BlockNPMUpdates      bool     `yaml:"block_npm_updates"`
	BlockComposerUpdates bool     `yaml:"block_composer_updates"`
	DataFile             string   `yaml:"data_file"`
	DataFileOwner        string   `yaml:"data_file_owner"`
	TrackerSyncCommand   []string `yaml:"tracker_sync_command"`
}

// ConfigurationError reports every missing required field at once, so the
// operator fixes the file in one pass instead of one error per run.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration field(s): %s", strings.Join(e.Missing, ", "))
}

// Load reads and parses the configuration file at path, or DefaultPath when
// path is empty. A missing or unparseable file is a fatal configuration error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file %s not found", path)
		}
		return nil, fmt.Errorf("reading configuration file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration file %s: %w", path, err)
	}
	if len(cfg.Projects) == 0 {
		return nil, fmt.Errorf("no projects defined in %s", path)
	}
	return &cfg, nil
}

// Project looks up the configuration for a project key.
func (c *Config) Project(key string) (ProjectConfig, error) {
	p, ok := c.Projects[key]
	if !ok {
		keys := make([]string, 0, len(c.Projects))
		for k := range c.Projects {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return ProjectConfig{}, fmt.Errorf("no project found for key %q (known: %s)", key, strings.Join(keys, ", "))
	}
	return p, nil
}

// Timeout returns the per-command timeout, applying the default when unset.
func (c *Config) Timeout() time.Duration {
	if c.CommandTimeout == "" {
		return DefaultCommandTimeout
	}
	d, err := time.ParseDuration(c.CommandTimeout)
	if err != nil || d <= 0 {
		return DefaultCommandTimeout
	}
	return d
}

// Require checks that the named fields are set, returning a single
// ConfigurationError listing every missing one. Field names match the yaml
// keys so the message points at the configuration file directly.
func (p *ProjectConfig) Require(fields ...string) error {
	var missing []string
	for _, f := range fields {
		if !p.has(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

func (p *ProjectConfig) has(field string) bool {
	switch field {
	case "path":
		return p.Path != ""
	case "branch":
		return p.Branch != ""
	case "deploying_user":
		return p.DeployingUser != ""
	case "container":
		return p.Container != ""
	case "supervisor_process":
		return p.SupervisorProcess != ""
	case "systemd_service":
		return p.SystemdService != ""
	case "tracker_sync_command":
		return len(p.TrackerSyncCommand) > 0
	default:
		// Unknown field names are a programming error; treat as missing so
		// the mistake surfaces in tests instead of passing silently.
		return false
	}
}

// DataFilePath returns the absolute path of the local data file whose
// ownership is normalized after a deploy.
func (p *ProjectConfig) DataFilePath() string {
	f := p.DataFile
	if f == "" {
		f = DefaultDataFile
	}
	if filepath.IsAbs(f) {
		return f
	}
	return filepath.Join(p.Path, f)
}

// Owner returns the user:group the data file is reconciled to.
func (p *ProjectConfig) Owner() string {
	if p.DataFileOwner == "" {
		return DefaultDataFileOwner
	}
	return p.DataFileOwner
}
