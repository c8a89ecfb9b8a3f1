// Package config loads activator settings from a YAML file, the environment
// and command line overrides, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/strrl/activator/internal/ai"
	"github.com/strrl/activator/internal/scheduler"
)

const (
	EnvAPIKey = "ACTIVATOR_API_KEY"
	EnvURL    = "ACTIVATOR_URL"
	EnvModel  = "ACTIVATOR_MODEL"
)

// MaxIntervalHours bounds the interval from above; time.Duration cannot hold it.
const MaxIntervalHours = float64(math.MaxInt64) / float64(time.Hour)

const (
	DefaultInterval  = 3.0
	DefaultTokens    = 1000
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 5
)

type Config struct {
	Activator ActivatorConfig `yaml:"activator"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
	History   HistoryConfig   `yaml:"history"`
}

type ActivatorConfig struct {
	// Interval between activations, in hours.
	Interval float64 `yaml:"interval"`
	Tokens   int     `yaml:"tokens"`
	// Schedule is an optional cron expression that replaces Interval.
	Schedule string `yaml:"schedule"`
}

type APIConfig struct {
	URL           string `yaml:"url"`
	APIKey        string `yaml:"apikey"`
	Model         string `yaml:"model"`
	InterfaceType string `yaml:"interface_type"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
	// The file rotates once it reaches MaxSizeMB; MaxBackups old files are kept.
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

type HistoryConfig struct {
	Path string `yaml:"path"`
}

// Error reports a configuration value that cannot be used.
type Error struct {
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "invalid config: " + e.Message
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Default() *Config {
	return &Config{
		Activator: ActivatorConfig{
			Interval: DefaultInterval,
			Tokens:   DefaultTokens,
		},
		API: APIConfig{
			InterfaceType: string(ai.KindOpenAI),
		},
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
		},
	}
}

// Load reads an optional .env file, then the YAML file at path (skipped when
// path is empty), then applies environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	return load(path, os.LookupEnv)
}

// LoadWithEnvFiles is Load with explicit dotenv files, which must exist.
func LoadWithEnvFiles(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, &Error{Message: "failed to load env file", Err: err}
		}
	}
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv(lookup)
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Error{Message: fmt.Sprintf("config file not found: %s", path), Err: err}
		}
		return &Error{Message: fmt.Sprintf("failed to read config file %s", path), Err: err}
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return &Error{Message: fmt.Sprintf("failed to parse config file %s", path), Err: err}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.API.APIKey = v
	}
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.API.URL = v
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		c.API.Model = v
	}
}

// Overrides carries command line values. Nil fields were not set by the user.
type Overrides struct {
	Interval      *float64
	Tokens        *int
	Schedule      *string
	URL           *string
	APIKey        *string
	Model         *string
	InterfaceType *string
	LogLevel      *string
	HistoryPath   *string
}

func (c *Config) Apply(o Overrides) {
	if o.Interval != nil {
		c.Activator.Interval = *o.Interval
	}
	if o.Tokens != nil {
		c.Activator.Tokens = *o.Tokens
	}
	if o.Schedule != nil {
		c.Activator.Schedule = *o.Schedule
	}
	if o.URL != nil {
		c.API.URL = *o.URL
	}
	if o.APIKey != nil {
		c.API.APIKey = *o.APIKey
	}
	if o.Model != nil {
		c.API.Model = *o.Model
	}
	if o.InterfaceType != nil {
		c.API.InterfaceType = *o.InterfaceType
	}
	if o.LogLevel != nil {
		c.Logging.Level = *o.LogLevel
	}
	if o.HistoryPath != nil {
		c.History.Path = *o.HistoryPath
	}
}

// Validate checks every field against registry, which may be nil for the
// built-in providers.
func (c *Config) Validate(registry *ai.Registry) error {
	if registry == nil {
		registry = ai.DefaultRegistry()
	}

	if iv := c.Activator.Interval; math.IsNaN(iv) || math.IsInf(iv, 0) || iv <= 0 {
		return &Error{Field: "activator.interval", Message: fmt.Sprintf("must be a positive number of hours, got %v", iv)}
	}
	if c.Activator.Interval >= MaxIntervalHours {
		return &Error{Field: "activator.interval", Message: fmt.Sprintf("must be below %.0f hours, got %v", MaxIntervalHours, c.Activator.Interval)}
	}
	if c.Activator.Tokens <= 0 {
		return &Error{Field: "activator.tokens", Message: fmt.Sprintf("must be greater than 0, got %d", c.Activator.Tokens)}
	}
	if c.Activator.Schedule != "" {
		if _, err := scheduler.ParseCron(c.Activator.Schedule); err != nil {
			return &Error{Field: "activator.schedule", Message: err.Error(), Err: err}
		}
	}

	if strings.TrimSpace(c.API.URL) == "" {
		return &Error{Field: "api.url", Message: "must not be empty"}
	}
	if err := ai.ValidateURL(c.API.URL); err != nil {
		return &Error{Field: "api.url", Message: err.Error(), Err: err}
	}
	if c.API.APIKey == "" {
		return &Error{Field: "api.apikey", Message: "must not be empty"}
	}
	if c.API.Model == "" {
		return &Error{Field: "api.model", Message: "must not be empty"}
	}
	if !registry.Supports(ai.Kind(c.API.InterfaceType)) {
		return &Error{
			Field:   "api.interface_type",
			Message: fmt.Sprintf("unsupported value %q, expected one of %s", c.API.InterfaceType, joinKinds(registry.Kinds())),
			Err:     ai.ErrUnsupportedInterface,
		}
	}

	if _, ok := ParseLevel(c.Logging.Level); !ok {
		return &Error{Field: "logging.level", Message: fmt.Sprintf("unknown level %q, expected debug, info, warn or error", c.Logging.Level)}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return &Error{Field: "logging.format", Message: fmt.Sprintf("unknown format %q, expected text or json", c.Logging.Format)}
	}
	if c.Logging.MaxSizeMB < 0 {
		return &Error{Field: "logging.max_size_mb", Message: fmt.Sprintf("must not be negative, got %d", c.Logging.MaxSizeMB)}
	}
	if c.Logging.MaxBackups < 0 {
		return &Error{Field: "logging.max_backups", Message: fmt.Sprintf("must not be negative, got %d", c.Logging.MaxBackups)}
	}
	if c.Logging.MaxAgeDays < 0 {
		return &Error{Field: "logging.max_age_days", Message: fmt.Sprintf("must not be negative, got %d", c.Logging.MaxAgeDays)}
	}
	return nil
}

func (c *Config) Interval() time.Duration {
	return scheduler.HoursToDuration(c.Activator.Interval)
}

// Schedule returns the cron schedule when one is configured and the fixed
// interval otherwise.
func (c *Config) Schedule() (scheduler.Schedule, error) {
	if c.Activator.Schedule != "" {
		return scheduler.ParseCron(c.Activator.Schedule)
	}
	return scheduler.Every(c.Interval()), nil
}

// Describe renders the cadence for log lines.
func (c *Config) Describe() string {
	if c.Activator.Schedule != "" {
		return "cron " + c.Activator.Schedule
	}
	return fmt.Sprintf("every %vh", c.Activator.Interval)
}

func joinKinds(kinds []ai.Kind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
