// Package config loads and validates the keygate.yaml runtime configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	kgerrors "github.com/systmms/keygate/internal/errors"
	"github.com/systmms/keygate/internal/logging"
	"gopkg.in/yaml.v3"
)

// Deployment modes. Durable uses Google Cloud Secret Manager as the sole
// source of truth; local keeps credentials in process memory only.
const (
	ModeDurable = "durable"
	ModeLocal   = "local"
)

// Config holds the runtime configuration.
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the keygate.yaml structure.
type Definition struct {
	Mode                string        `yaml:"mode"`
	ProjectID           string        `yaml:"project_id,omitempty"`
	DefaultPeriodDays   int           `yaml:"default_rotation_period_days"`
	Listen              string        `yaml:"listen"`
	Metrics             MetricsConfig `yaml:"metrics"`
	Retry               RetryConfig   `yaml:"retry"`
	ServiceAccountKey   string        `yaml:"service_account_key_path,omitempty"`
	ShutdownGraceMs     int           `yaml:"shutdown_grace_ms,omitempty"`
}

// MetricsConfig holds the optional Prometheus listener settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// RetryConfig holds the bounded-backoff policy for durable store calls.
type RetryConfig struct {
	MaxAttempts       int     `yaml:"max_attempts,omitempty"`
	BackoffMs         int     `yaml:"backoff_ms,omitempty"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier,omitempty"`
}

// Backoff returns the initial backoff as a duration.
func (r RetryConfig) Backoff() time.Duration {
	return time.Duration(r.BackoffMs) * time.Millisecond
}

// Default returns the configuration used when no file is present.
func Default() *Definition {
	return &Definition{
		Mode:              ModeLocal,
		DefaultPeriodDays: 30,
		Listen:            ":8000",
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			BackoffMs:         500,
			BackoffMultiplier: 2.0,
		},
	}
}

// Load reads the keygate.yaml file, applies environment overrides, and
// validates the result. A missing file is not an error: defaults plus
// environment overrides apply.
func (c *Config) Load() error {
	def := Default()

	if c.Path != "" {
		data, err := os.ReadFile(c.Path)
		if err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("failed to read config file %s: %w", c.Path, err)
			}
		} else if err := yaml.Unmarshal(data, def); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", c.Path, err)
		}
	}

	applyEnvOverrides(def)

	if err := def.Validate(); err != nil {
		return err
	}

	c.Definition = def
	return nil
}

// applyEnvOverrides lets deployment environments win over the file.
func applyEnvOverrides(def *Definition) {
	if mode := os.Getenv("KEYGATE_MODE"); mode != "" {
		def.Mode = mode
	}
	if project := os.Getenv("GOOGLE_CLOUD_PROJECT"); project != "" {
		def.ProjectID = project
	}
	if listen := os.Getenv("KEYGATE_LISTEN"); listen != "" {
		def.Listen = listen
	}
	if days := os.Getenv("KEYGATE_DEFAULT_ROTATION_DAYS"); days != "" {
		if d, err := strconv.Atoi(days); err == nil {
			def.DefaultPeriodDays = d
		}
	}
	if key := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); key != "" && def.ServiceAccountKey == "" {
		def.ServiceAccountKey = key
	}
}

// Validate checks the definition for consistency before anything is built
// from it.
func (def *Definition) Validate() error {
	switch def.Mode {
	case ModeDurable, ModeLocal:
	default:
		return kgerrors.ValidationError{
			Field:   "mode",
			Value:   def.Mode,
			Message: fmt.Sprintf("must be %q or %q", ModeDurable, ModeLocal),
		}
	}

	if def.Mode == ModeDurable && def.ProjectID == "" {
		return kgerrors.ValidationError{
			Field:   "project_id",
			Message: "required in durable mode; set project_id or GOOGLE_CLOUD_PROJECT",
		}
	}

	if def.DefaultPeriodDays < 1 || def.DefaultPeriodDays > 365 {
		return kgerrors.ValidationError{
			Field:   "default_rotation_period_days",
			Value:   def.DefaultPeriodDays,
			Message: "must be between 1 and 365",
		}
	}

	if def.Retry.MaxAttempts < 1 {
		def.Retry.MaxAttempts = 1
	}
	if def.Retry.BackoffMultiplier < 1 {
		def.Retry.BackoffMultiplier = 2.0
	}
	if def.Retry.BackoffMs <= 0 {
		def.Retry.BackoffMs = 500
	}

	return nil
}
