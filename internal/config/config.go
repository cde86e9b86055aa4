// Package config handles TOML and YAML configuration for ferry.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/yairfalse/ferry/internal/retry"
)

// Config is the root configuration structure.
type Config struct {
	AWS     AWSConfig     `toml:"aws" yaml:"aws"`
	Storage StorageConfig `toml:"storage" yaml:"storage"`
	Queue   QueueConfig   `toml:"queue" yaml:"queue"`
	Manager ManagerConfig `toml:"manager" yaml:"manager"`
	Retry   RetryConfig   `toml:"retry" yaml:"retry"`
	OTEL    OTELConfig    `toml:"otel" yaml:"otel"`
	Log     LogConfig     `toml:"log" yaml:"log"`
}

// AWSConfig holds AWS provider settings.
type AWSConfig struct {
	Region  string `toml:"region" yaml:"region"`
	Profile string `toml:"profile" yaml:"profile"`
}

// StorageConfig holds the upload target.
type StorageConfig struct {
	Bucket     string `toml:"bucket" yaml:"bucket"`
	PublicRead bool   `toml:"public_read" yaml:"public_read"`
	Create     bool   `toml:"create" yaml:"create"`
}

// QueueConfig holds the notification queue.
type QueueConfig struct {
	Name   string `toml:"name" yaml:"name"`
	Create bool   `toml:"create" yaml:"create"`
}

// ManagerConfig identifies the manager instance.
type ManagerConfig struct {
	TagKey   string `toml:"tag_key" yaml:"tag_key"`
	TagValue string `toml:"tag_value" yaml:"tag_value"`
	DryRun   bool   `toml:"dry_run" yaml:"dry_run"`
}

// RetryConfig holds retry settings for AWS calls.
type RetryConfig struct {
	MaxAttempts        uint          `toml:"max_attempts" yaml:"max_attempts"`
	InitialIntervalStr string        `toml:"initial_interval" yaml:"initial_interval"`
	MaxIntervalStr     string        `toml:"max_interval" yaml:"max_interval"`
	InitialInterval    time.Duration `toml:"-" yaml:"-"`
	MaxInterval        time.Duration `toml:"-" yaml:"-"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint" yaml:"endpoint"`
	Insecure    bool          `toml:"insecure" yaml:"insecure"`
	ServiceName string        `toml:"service_name" yaml:"service_name"`
	Traces      TracesConfig  `toml:"traces" yaml:"traces"`
	Metrics     MetricsConfig `toml:"metrics" yaml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled" yaml:"enabled"`
	SampleRate float64 `toml:"sample_rate" yaml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
// Textfile is a node_exporter textfile collector path written once per run.
type MetricsConfig struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	Textfile string `toml:"textfile" yaml:"textfile"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	def := retry.DefaultPolicy()
	return &Config{
		AWS: AWSConfig{Region: "us-east-1"},
		Storage: StorageConfig{
			Bucket:     "ferry-uploads",
			PublicRead: true,
			Create:     true,
		},
		Queue: QueueConfig{
			Name:   "ferry-notifications",
			Create: true,
		},
		Manager: ManagerConfig{
			TagKey:   "Name",
			TagValue: "manager",
		},
		Retry: RetryConfig{
			MaxAttempts:        def.MaxAttempts,
			InitialIntervalStr: def.InitialInterval.String(),
			MaxIntervalStr:     def.MaxInterval.String(),
			InitialInterval:    def.InitialInterval,
			MaxInterval:        def.MaxInterval,
		},
		OTEL: OTELConfig{ServiceName: "ferry"},
		Log:  LogConfig{Level: "info"},
	}
}

// Load reads a config file. The format follows the extension:
// .toml, or .yaml / .yml. An empty path yields Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (use .toml, .yaml or .yml)", ext)
	}

	applyDefaults(cfg)

	if err := parseIntervals(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = def.AWS.Region
	}
	if cfg.Manager.TagKey == "" {
		cfg.Manager.TagKey = def.Manager.TagKey
	}
	if cfg.Manager.TagValue == "" {
		cfg.Manager.TagValue = def.Manager.TagValue
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = def.OTEL.ServiceName
	}
	if cfg.Retry.InitialIntervalStr == "" {
		cfg.Retry.InitialIntervalStr = def.Retry.InitialIntervalStr
	}
	if cfg.Retry.MaxIntervalStr == "" {
		cfg.Retry.MaxIntervalStr = def.Retry.MaxIntervalStr
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}

func parseIntervals(cfg *Config) error {
	d, err := time.ParseDuration(cfg.Retry.InitialIntervalStr)
	if err != nil {
		return fmt.Errorf("parse retry.initial_interval %q: %w", cfg.Retry.InitialIntervalStr, err)
	}
	cfg.Retry.InitialInterval = d

	d, err = time.ParseDuration(cfg.Retry.MaxIntervalStr)
	if err != nil {
		return fmt.Errorf("parse retry.max_interval %q: %w", cfg.Retry.MaxIntervalStr, err)
	}
	cfg.Retry.MaxInterval = d
	return nil
}

var (
	bucketName = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
	queueName  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,80}$`)
)

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.AWS.Region == "" {
		return fmt.Errorf("aws: region required")
	}
	if !bucketName.MatchString(c.Storage.Bucket) {
		return fmt.Errorf("storage: invalid bucket name %q", c.Storage.Bucket)
	}
	if !queueName.MatchString(c.Queue.Name) {
		return fmt.Errorf("queue: invalid queue name %q", c.Queue.Name)
	}
	if c.Manager.TagKey == "" {
		return fmt.Errorf("manager: tag_key required")
	}
	if c.Retry.InitialInterval < 0 || c.Retry.MaxInterval < 0 {
		return fmt.Errorf("retry: intervals must not be negative")
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// RetryPolicy converts the retry section into a retry.Policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     c.Retry.MaxAttempts,
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
	}
}
