// Package config loads the resultsync configuration from a YAML or TOML
// file, merges it over defaults and validates it.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileNames are the configuration files LoadConfigFromDir looks for, in order.
var FileNames = []string{"resultsync.yaml", "resultsync.yml", "resultsync.toml"}

// FileConfig locates report files
type FileConfig struct {
	// Folder holds the report files, relative to the runner work directory
	Folder string `yaml:"folder" toml:"folder"`

	// Name is the label in "<timestamp> <name>.csv"
	Name string `yaml:"name" toml:"name"`
}

// PageConfig identifies the results page
type PageConfig struct {
	URL      string
	ID       string
	Title    string
	SpaceKey string

	// RequirementsSpaceKey is the space requirement links point to.
	// Defaults to SpaceKey.
	RequirementsSpaceKey string
}

// TestsConfig selects the tests to run
type TestsConfig struct {
	// Conditions are passed to the test command as extra arguments
	Conditions []string `yaml:"conditions" toml:"conditions"`
}

// RunnerConfig configures the test and report commands
type RunnerConfig struct {
	WorkDir string `yaml:"work_dir" toml:"work_dir"`

	// Command runs the tests; empty uses the built-in pytest command
	Command string `yaml:"command" toml:"command"`

	// ReportCommand converts raw results; empty uses the built-in allure command
	ReportCommand string `yaml:"report_command" toml:"report_command"`
}

// ClientConfig tunes the Confluence HTTP client
type ClientConfig struct {
	Timeout  time.Duration
	RetryMax int
}

// Config represents resultsync configuration options
type Config struct {
	File   FileConfig
	Page   PageConfig
	Tests  TestsConfig
	Runner RunnerConfig
	Client ClientConfig

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string

	// LogDir is the directory where run logs will be written
	LogDir string

	// LedgerPath is the SQLite database recording exports
	LedgerPath string
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		File: FileConfig{
			Folder: "reports",
		},
		Runner: RunnerConfig{
			WorkDir: ".",
		},
		Client: ClientConfig{
			Timeout:  30 * time.Second,
			RetryMax: 3,
		},
		LogLevel:   "info",
		LogDir:     filepath.Join(".resultsync", "logs"),
		LedgerPath: filepath.Join(".resultsync", "ledger.db"),
	}
}

// rawConfig mirrors the file layout. Durations and the page id are decoded
// loosely and converted afterwards.
type rawConfig struct {
	File       FileConfig   `yaml:"file" toml:"file"`
	Page       rawPage      `yaml:"page" toml:"page"`
	Tests      TestsConfig  `yaml:"tests" toml:"tests"`
	Runner     RunnerConfig `yaml:"runner" toml:"runner"`
	Client     rawClient    `yaml:"client" toml:"client"`
	LogLevel   string       `yaml:"log_level" toml:"log_level"`
	LogDir     string       `yaml:"log_dir" toml:"log_dir"`
	LedgerPath string       `yaml:"ledger_path" toml:"ledger_path"`
}

type rawPage struct {
	URL                  string      `yaml:"url" toml:"url"`
	ID                   interface{} `yaml:"id" toml:"id"`
	Title                string      `yaml:"title" toml:"title"`
	SpaceKey             string      `yaml:"space_key" toml:"space_key"`
	RequirementsSpaceKey string      `yaml:"requirements_space_key" toml:"requirements_space_key"`
}

type rawClient struct {
	Timeout  string `yaml:"timeout" toml:"timeout"`
	RetryMax *int   `yaml:"retry_max" toml:"retry_max"`
}

// Format is a configuration file syntax
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the syntax from the file extension; anything but .toml is
// read as YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	format := FormatOf(path)
	if err := ValidateDocument(data, format); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var raw rawConfig
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.apply(&raw); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply merges non-zero values from the file over the defaults.
func (c *Config) apply(raw *rawConfig) error {
	if raw.File.Folder != "" {
		c.File.Folder = raw.File.Folder
	}
	if raw.File.Name != "" {
		c.File.Name = raw.File.Name
	}

	c.Page.URL = raw.Page.URL
	if raw.Page.ID != nil {
		c.Page.ID = strings.TrimSpace(fmt.Sprint(raw.Page.ID))
	}
	c.Page.Title = raw.Page.Title
	c.Page.SpaceKey = raw.Page.SpaceKey
	c.Page.RequirementsSpaceKey = raw.Page.RequirementsSpaceKey

	if raw.Tests.Conditions != nil {
		c.Tests.Conditions = raw.Tests.Conditions
	}

	if raw.Runner.WorkDir != "" {
		c.Runner.WorkDir = raw.Runner.WorkDir
	}
	if raw.Runner.Command != "" {
		c.Runner.Command = raw.Runner.Command
	}
	if raw.Runner.ReportCommand != "" {
		c.Runner.ReportCommand = raw.Runner.ReportCommand
	}

	if raw.Client.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Client.Timeout)
		if err != nil {
			return fmt.Errorf("invalid client.timeout format %q: %w", raw.Client.Timeout, err)
		}
		c.Client.Timeout = timeout
	}
	// retry_max: 0 is meaningful, so presence is tracked with a pointer
	if raw.Client.RetryMax != nil {
		c.Client.RetryMax = *raw.Client.RetryMax
	}

	if raw.LogLevel != "" {
		c.LogLevel = raw.LogLevel
	}
	if raw.LogDir != "" {
		c.LogDir = raw.LogDir
	}
	if raw.LedgerPath != "" {
		c.LedgerPath = raw.LedgerPath
	}
	return nil
}

// LoadConfigFromDir loads the first of FileNames found in dir.
// If none exists, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadConfig(path)
			return cfg, path, err
		}
	}
	return DefaultConfig(), "", nil
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(logLevel *string, logDir *string, ledgerPath *string) {
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if ledgerPath != nil {
		c.LedgerPath = *ledgerPath
	}
}

// RequirementsSpace returns the space requirement links point to.
func (c *Config) RequirementsSpace() string {
	if c.Page.RequirementsSpaceKey != "" {
		return c.Page.RequirementsSpaceKey
	}
	return c.Page.SpaceKey
}

// ReportFolder returns the report folder resolved against the work directory.
func (c *Config) ReportFolder() string {
	if filepath.IsAbs(c.File.Folder) {
		return c.File.Folder
	}
	return filepath.Join(c.Runner.WorkDir, c.File.Folder)
}

// ValidateLocal checks only what building a report needs.
func (c *Config) ValidateLocal() error {
	if c.File.Folder == "" {
		return fmt.Errorf("file.folder cannot be empty")
	}
	if c.File.Name == "" {
		return fmt.Errorf("file.name cannot be empty")
	}
	if strings.ContainsAny(c.File.Name, `/\`) {
		return fmt.Errorf("file.name %q must not contain path separators", c.File.Name)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}
	return nil
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if err := c.ValidateLocal(); err != nil {
		return err
	}

	if c.Page.URL == "" {
		return fmt.Errorf("page.url cannot be empty")
	}
	u, err := url.Parse(c.Page.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("page.url %q must be an http(s) URL", c.Page.URL)
	}
	if c.Page.ID == "" {
		return fmt.Errorf("page.id cannot be empty")
	}
	if c.Page.Title == "" {
		return fmt.Errorf("page.title cannot be empty")
	}
	if c.Page.SpaceKey == "" {
		return fmt.Errorf("page.space_key cannot be empty")
	}

	// Timeout can be 0 (no timeout) or positive, negative is invalid
	if c.Client.Timeout < 0 {
		return fmt.Errorf("client.timeout must be >= 0, got %v", c.Client.Timeout)
	}
	if c.Client.RetryMax < 0 {
		return fmt.Errorf("client.retry_max must be >= 0, got %d", c.Client.RetryMax)
	}

	return nil
}
