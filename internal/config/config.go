package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models pressroom.yml.
type Config struct {
	Database struct {
		Workspace string `yaml:"workspace"`
		Path      string `yaml:"path"`
	} `yaml:"database"`
	Server struct {
		Addr              string `yaml:"addr"`
		BasePath          string `yaml:"base_path"`
		JWTSecret         string `yaml:"jwt_secret"`
		AllowCallerHeader bool   `yaml:"allow_caller_header"`
	} `yaml:"server"`
	Workflow struct {
		RecentWindow time.Duration `yaml:"recent_window"`
	} `yaml:"workflow"`
	Roster        []RosterEntry `yaml:"roster"`
	Notifications struct {
		Log       bool            `yaml:"log"`
		QueueSize int             `yaml:"queue_size"`
		Webhooks  []WebhookConfig `yaml:"webhooks"`
	} `yaml:"notifications"`
	Logging Logging `yaml:"logging"`
}

// RosterEntry seeds an identity at startup.
type RosterEntry struct {
	CallerID    string `yaml:"caller_id"`
	Username    string `yaml:"username"`
	Outlet      string `yaml:"outlet"`
	Editor      bool   `yaml:"editor"`
	SuperEditor bool   `yaml:"super_editor"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Retries        int      `yaml:"retries"`
}

type Logging struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with pressroom config init", path)
		}
		return nil, err
	}
	cfg, err := FromYAML(data)
	if err != nil {
		return nil, err
	}
	cfg.resolveWorkspace(workspace)
	return cfg, nil
}

// LoadOptional falls back to Default when the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	cfg, err := Load(workspace)
	if err == nil {
		return cfg, nil
	}
	if _, statErr := os.Stat(Path(workspace)); !os.IsNotExist(statErr) {
		return nil, err
	}
	cfg = Default()
	cfg.resolveWorkspace(workspace)
	return cfg, nil
}

// resolveWorkspace makes a relative database workspace relative to the
// directory holding the config file.
func (c *Config) resolveWorkspace(workspace string) {
	if workspace == "" {
		workspace = "."
	}
	ws := c.Database.Workspace
	switch {
	case ws == "":
		c.Database.Workspace = workspace
	case !filepath.IsAbs(ws):
		c.Database.Workspace = filepath.Join(workspace, ws)
	}
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Workflow.RecentWindow < 0 {
		return fmt.Errorf("config.workflow.recent_window must not be negative")
	}
	seen := map[string]bool{}
	for i, entry := range c.Roster {
		id := strings.TrimSpace(entry.CallerID)
		if id == "" {
			return fmt.Errorf("config.roster[%d].caller_id is required", i)
		}
		if seen[id] {
			return fmt.Errorf("config.roster has duplicate caller_id %s", id)
		}
		seen[id] = true
		if entry.SuperEditor && !entry.Editor {
			return fmt.Errorf("roster entry %s: super_editor requires editor", id)
		}
		if !entry.Editor && strings.TrimSpace(entry.Outlet) == "" {
			return fmt.Errorf("roster entry %s needs an outlet or the editor role", id)
		}
	}
	if c.Notifications.QueueSize < 0 {
		return fmt.Errorf("config.notifications.queue_size must not be negative")
	}
	for i, hook := range c.Notifications.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.notifications.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 || hook.Retries < 0 {
			return fmt.Errorf("webhook %s: timeout_seconds and retries must not be negative", hook.URL)
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.logging.format must be text or json")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "pressroom.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `database:
  workspace: "."

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  allow_caller_header: false

workflow:
  # submissions newer than this stay in an author's active list
  recent_window: 24h

roster: []

notifications:
  log: true
  queue_size: 256
  webhooks: []

logging:
  level: info
  format: text
  max_size_mb: 50
  max_backups: 3
  max_age_days: 28
`
