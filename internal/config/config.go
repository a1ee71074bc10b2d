package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// TUIConfig holds TUI-specific settings
type TUIConfig struct {
	SidebarWidth   int    `json:"sidebar_width"`
	MarkdownRender bool   `json:"markdown_render"`
	Theme          string `json:"theme"`
}

// Config represents the application configuration
type Config struct {
	ServerURL    string `json:"server_url"`
	AuthToken    string `json:"auth_token,omitempty"`
	Model        string `json:"model,omitempty"`
	UseColpali   bool   `json:"use_colpali"`
	Stream       bool   `json:"stream"`
	DatabasePath string `json:"database_path"`
	LogPath      string `json:"log_path"`

	// PollIntervalMS is the processing-status poll interval in milliseconds
	PollIntervalMS int `json:"poll_interval_ms"`

	TUI TUIConfig `json:"tui"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		ServerURL:      "http://localhost:8000",
		UseColpali:     true,
		Stream:         true,
		DatabasePath:   "~/.dqc/dqc.db",
		LogPath:        "~/.dqc/dqc.log",
		PollIntervalMS: 2000,
		TUI: TUIConfig{
			SidebarWidth:   30,
			MarkdownRender: true,
			Theme:          "default",
		},
	}
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".dqc"), nil
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ExpandPath expands ~ to home directory
func ExpandPath(path string) (string, error) {
	if len(path) == 0 {
		return path, nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Load loads configuration from the default config file
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads configuration from the given file, creating it with
// defaults if it does not exist, then applies environment overrides.
func LoadFrom(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnv()
		if err := SaveTo(cfg, configPath); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = 2000
	}
	cfg.applyEnv()

	return &cfg, nil
}

// applyEnv applies environment variable overrides
func (c *Config) applyEnv() {
	if v := os.Getenv("DQC_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("DQC_AUTH_TOKEN"); v != "" {
		c.AuthToken = v
	}
	if v := os.Getenv("DQC_MODEL"); v != "" {
		c.Model = v
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server_url %q is not a valid URL", c.ServerURL)
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive")
	}
	return nil
}

// Save saves configuration to the default config file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, configPath)
}

// SaveTo saves configuration to the given file
func SaveTo(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// GetDatabasePath returns the expanded database path
func (c *Config) GetDatabasePath() (string, error) {
	return ExpandPath(c.DatabasePath)
}

// GetLogPath returns the expanded log file path
func (c *Config) GetLogPath() (string, error) {
	return ExpandPath(c.LogPath)
}

// PollInterval returns the poll interval as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}
