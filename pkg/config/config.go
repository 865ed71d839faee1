package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the Civitai downloader
type Config struct {
	// Civitai API settings
	API APIConfig `yaml:"api" json:"api"`

	// Credential lookup
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Retry policy shared by page fetches and downloads
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds Civitai listing endpoint configuration
type APIConfig struct {
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	UserAgent   string        `yaml:"user_agent" json:"user_agent"`
	PageTimeout time.Duration `yaml:"page_timeout" json:"page_timeout"`
	PageLimit   int           `yaml:"page_limit" json:"page_limit"`
	NSFW        string        `yaml:"nsfw" json:"nsfw"`
	Sort        string        `yaml:"sort" json:"sort"`
	Period      string        `yaml:"period" json:"period"`
	// MaxPages stops pagination after this many pages; 0 means no limit
	MaxPages int `yaml:"max_pages" json:"max_pages"`
}

// AuthConfig holds credential lookup configuration
type AuthConfig struct {
	TokenFile string `yaml:"token_file" json:"token_file"`
	// Token is never written to disk by Save
	Token string `yaml:"-" json:"-"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Concurrency       int           `yaml:"concurrency" json:"concurrency"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	PageDelay         time.Duration `yaml:"page_delay" json:"page_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig holds the backoff schedule
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Multiplier  time.Duration `yaml:"multiplier" json:"multiplier"`
	MinDelay    time.Duration `yaml:"min_delay" json:"min_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory     string `yaml:"base_directory" json:"base_directory"`
	CreateUserFolders bool   `yaml:"create_user_folders" json:"create_user_folders"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Type    string `yaml:"type" json:"type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

const (
	// DefaultBaseURL is the Civitai images listing endpoint
	DefaultBaseURL = "https://civitai.com/api/v1/images"

	// DefaultUserAgent is sent with every request
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// DefaultTokenFile is looked up in the working directory
	DefaultTokenFile = "civitai_api_key.txt"

	envPrefix = "CIVITDL_"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     DefaultBaseURL,
			UserAgent:   DefaultUserAgent,
			PageTimeout: 30 * time.Second,
			PageLimit:   100,
			NSFW:        "X",
			Sort:        "Newest",
			Period:      "AllTime",
			MaxPages:    0,
		},
		Auth: AuthConfig{
			TokenFile: DefaultTokenFile,
		},
		Download: DownloadConfig{
			Concurrency:       5,
			Timeout:           300 * time.Second,
			PageDelay:         1 * time.Second,
			RequestsPerMinute: 0,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Multiplier:  1 * time.Second,
			MinDelay:    2 * time.Second,
			MaxDelay:    10 * time.Second,
		},
		Output: OutputConfig{
			BaseDirectory:     ".",
			CreateUserFolders: true,
		},
		Notifications: NotificationConfig{
			Enabled: true,
			Type:    "terminal",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from CIVITDL_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(envPrefix + "BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(envPrefix + "USER_AGENT"); v != "" {
		c.API.UserAgent = v
	}
	if v := os.Getenv(envPrefix + "API_KEY"); v != "" {
		c.Auth.Token = strings.TrimSpace(v)
	}
	if v := os.Getenv(envPrefix + "TOKEN_FILE"); v != "" {
		c.Auth.TokenFile = v
	}
	if v := os.Getenv(envPrefix + "OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv(envPrefix + "NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}

	intVars := map[string]*int{
		"CONCURRENCY":         &c.Download.Concurrency,
		"REQUESTS_PER_MINUTE": &c.Download.RequestsPerMinute,
		"MAX_PAGES":           &c.API.MaxPages,
		"MAX_ATTEMPTS":        &c.Retry.MaxAttempts,
	}
	for name, target := range intVars {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			continue
		}
		*target = n
	}

	durationVars := map[string]*time.Duration{
		"PAGE_TIMEOUT":     &c.API.PageTimeout,
		"DOWNLOAD_TIMEOUT": &c.Download.Timeout,
		"PAGE_DELAY":       &c.Download.PageDelay,
	}
	for name, target := range durationVars {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			continue
		}
		*target = d
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".civitdl.yaml",
		".civitdl.yml",
	}
	if home != "" {
		locations = append(locations,
			filepath.Join(home, ".config", "civitdl", "config.yaml"),
			filepath.Join(home, ".config", "civitdl", "config.yml"),
			filepath.Join(home, ".civitdl.yaml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api base URL is required"))
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api base URL %q is not an absolute URL", c.API.BaseURL))
	}
	if c.API.PageTimeout <= 0 {
		errs = append(errs, errors.New("page timeout must be positive"))
	}
	if c.API.PageLimit <= 0 || c.API.PageLimit > 200 {
		errs = append(errs, errors.New("page limit must be between 1 and 200"))
	}
	if c.API.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}

	if c.Download.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	if c.Download.Concurrency > 32 {
		errs = append(errs, errors.New("concurrency should not exceed 32"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.PageDelay < 0 {
		errs = append(errs, errors.New("page delay cannot be negative"))
	}
	if c.Download.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}
	if c.Retry.MinDelay < 0 || c.Retry.MaxDelay < 0 || c.Retry.Multiplier < 0 {
		errs = append(errs, errors.New("retry delays cannot be negative"))
	}
	if c.Retry.MaxDelay > 0 && c.Retry.MinDelay > c.Retry.MaxDelay {
		errs = append(errs, errors.New("retry min delay exceeds max delay"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.Type)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := flags["token-file"].(string); ok && v != "" {
		c.Auth.TokenFile = v
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Download.Concurrency = v
	}
	if v, ok := flags["max-pages"].(int); ok && v >= 0 {
		c.API.MaxPages = v
	}
	if v, ok := flags["max-attempts"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["rate-limit"].(int); ok && v >= 0 {
		c.Download.RequestsPerMinute = v
	}
	if v, ok := flags["download-timeout"].(time.Duration); ok && v > 0 {
		c.Download.Timeout = v
	}
	if v, ok := flags["page-delay"].(time.Duration); ok && v >= 0 {
		c.Download.PageDelay = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".civitdl.env"))
	}

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
