package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/scrappey/scrappey-go"
	"gopkg.in/yaml.v3"
)

const (
	// GlobalConfigDir is the directory under the user config dir.
	GlobalConfigDir = "scrappey"

	// LocalConfigFileName is looked up in the current directory first.
	LocalConfigFileName = ".scrappeyrc.yaml"

	// GlobalConfigFileName is looked up in GlobalConfigDir.
	GlobalConfigFileName = "config.yaml"
)

// Config holds CLI settings.
// Precedence: flags > env > config file > defaults.
type Config struct {
	APIKey      string `yaml:"apiKey"`
	BaseURL     string `yaml:"baseUrl"`
	Timeout     int    `yaml:"timeout"` // seconds
	APIProxy    string `yaml:"apiProxy"`
	Impersonate string `yaml:"impersonate"`

	// Options are merged into every request payload.
	Options map[string]any `yaml:"options"`

	// Source is the config file that was loaded, if any.
	Source string `yaml:"-"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: scrappey.DefaultBaseURL,
		Timeout: int(scrappey.DefaultTimeout / time.Second),
	}
}

// ConfigError is a configuration file error.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Path + ": " + e.Message
}

// LoadConfigFile loads a Config from a YAML file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Path: path, Message: err.Error()}
	}
	cfg.Source = path
	return &cfg, nil
}

// FindConfig returns the first existing config file, or "" if none exists.
func FindConfig() string {
	if cwd, err := os.Getwd(); err == nil {
		path := filepath.Join(cwd, LocalConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	if dir, err := os.UserConfigDir(); err == nil {
		path := filepath.Join(dir, GlobalConfigDir, GlobalConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadConfig merges defaults, the config file and environment variables.
// An explicit path must exist; otherwise FindConfig is used.
func LoadConfig(explicitPath string) (*Config, error) {
	cfg := DefaultConfig()

	path := explicitPath
	if path == "" {
		path = FindConfig()
	}
	if path != "" {
		fileCfg, err := LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg.merge(fileCfg)
		cfg.Source = path
	}

	cfg.loadEnv()
	return cfg, nil
}

func (c *Config) merge(other *Config) {
	if other.APIKey != "" {
		c.APIKey = other.APIKey
	}
	if other.BaseURL != "" {
		c.BaseURL = other.BaseURL
	}
	if other.Timeout != 0 {
		c.Timeout = other.Timeout
	}
	if other.APIProxy != "" {
		c.APIProxy = other.APIProxy
	}
	if other.Impersonate != "" {
		c.Impersonate = other.Impersonate
	}
	if len(other.Options) > 0 {
		c.Options = other.Options
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv("SCRAPPEY_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("SCRAPPEY_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("SCRAPPEY_API_PROXY"); v != "" {
		c.APIProxy = v
	}
}

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout %d must be a positive number of seconds", c.Timeout)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("baseUrl %q is not an absolute URL", c.BaseURL)
	}
	return nil
}

var errNoAPIKey = errors.New("API key required. Use -K/--api-key or set SCRAPPEY_API_KEY environment variable")

func (c *Config) requireAPIKey() error {
	if c.APIKey == "" {
		return errNoAPIKey
	}
	return nil
}
