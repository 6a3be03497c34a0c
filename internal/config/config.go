// Package config loads the agent configuration from a YAML file and
// environment via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full agent configuration.
type Config struct {
	// StorePath is the learned-answer database file.
	StorePath string `mapstructure:"store-path"`
	// ResumePath is the document offered to file-upload fields.
	ResumePath string `mapstructure:"resume-path"`
	// StorageState is the optional playwright cookie/state file.
	StorageState string `mapstructure:"storage-state"`
	Headless     bool   `mapstructure:"headless"`

	// Answers are the static configured answers, keyed by question or
	// field label.
	Answers map[string]string `mapstructure:"answers"`

	Matching Matching `mapstructure:"matching"`
	Retry    Retry    `mapstructure:"retry"`
	AI       AI       `mapstructure:"ai"`
}

// Matching holds the fuzzy-matching thresholds. The defaults are
// empirically chosen; tune against real data before trusting them.
type Matching struct {
	// FieldThreshold gates answer-to-field label matches.
	FieldThreshold float64 `mapstructure:"field-threshold"`
	// MinScore is the confidence gate below which a question is skipped.
	MinScore float64 `mapstructure:"min-score"`
	// ReuseThreshold gates learned-store fuzzy hits.
	ReuseThreshold float64 `mapstructure:"reuse-threshold"`
}

// Retry tunes the recovery manager.
type Retry struct {
	MaxRetries               int           `mapstructure:"max-retries"`
	InitialBackoff           time.Duration `mapstructure:"initial-backoff"`
	MaxBackoff               time.Duration `mapstructure:"max-backoff"`
	Multiplier               float64       `mapstructure:"multiplier"`
	MaxConsecutiveRateLimits int           `mapstructure:"max-consecutive-rate-limits"`
	CaptchaMaxWait           time.Duration `mapstructure:"captcha-max-wait"`
	CaptchaBlockingWait      bool          `mapstructure:"captcha-blocking-wait"`
}

// AI configures the answer generator.
type AI struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
	// APIKey overrides the GEMINI_API_KEY environment variable.
	APIKey string `mapstructure:"api-key"`
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store-path", "data/questions.db")
	v.SetDefault("headless", true)
	v.SetDefault("matching.field-threshold", 0.6)
	v.SetDefault("matching.min-score", 0.45)
	v.SetDefault("matching.reuse-threshold", 0.8)
	v.SetDefault("retry.max-retries", 3)
	v.SetDefault("retry.initial-backoff", 5*time.Second)
	v.SetDefault("retry.max-backoff", 300*time.Second)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.max-consecutive-rate-limits", 3)
	v.SetDefault("retry.captcha-max-wait", 300*time.Second)
	v.SetDefault("retry.captcha-blocking-wait", true)
	v.SetDefault("ai.enabled", false)
}

// Load unmarshals the configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
