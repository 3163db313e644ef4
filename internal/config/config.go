// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// RegistryPath is the capability registry YAML file (subject_type -> profile).
	RegistryPath string `mapstructure:"REGISTRY_PATH"`
	// DatabaseURL is the Postgres DSN; when empty, accepted records are kept in memory.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// ClaimWindow is the exact-duplicate suppression TTL (e.g. "60s").
	ClaimWindow string `mapstructure:"CLAIM_WINDOW"`
	// SimilarityThreshold is the cosine similarity above which a near-duplicate is flagged.
	SimilarityThreshold float64 `mapstructure:"SIMILARITY_THRESHOLD"`
	// EmbeddingURL is the embedding service base URL; empty disables similarity flagging.
	EmbeddingURL string `mapstructure:"EMBEDDING_URL"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables OTel export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// PrometheusAddr serves /metrics when set (e.g. :9090); empty disables it.
	PrometheusAddr string `mapstructure:"PROMETHEUS_ADDR"`
	// AlertPolicyPath is an optional Rego policy overriding the built-in alert thresholds.
	AlertPolicyPath string `mapstructure:"ALERT_POLICY_PATH"`
	// ClockSkew is the allowed future skew on occurred_at (e.g. "0s").
	ClockSkew string `mapstructure:"CLOCK_SKEW"`
	// LatencyToleranceMs absorbs rounding in the latency decomposition check.
	LatencyToleranceMs float64 `mapstructure:"LATENCY_TOLERANCE_MS"`
	// VectorLength is the expected control-vector length.
	VectorLength int `mapstructure:"VECTOR_LENGTH"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI). Env vars
// override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("REGISTRY_PATH", "configs/capabilities.yaml")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("CLAIM_WINDOW", "60s")
	v.SetDefault("SIMILARITY_THRESHOLD", 0.95)
	v.SetDefault("EMBEDDING_URL", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("PROMETHEUS_ADDR", "")
	v.SetDefault("ALERT_POLICY_PATH", "")
	v.SetDefault("CLOCK_SKEW", "0s")
	v.SetDefault("LATENCY_TOLERANCE_MS", 1.0)
	v.SetDefault("VECTOR_LENGTH", 7)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.RegistryPath == "" {
		return nil, errors.New("config: REGISTRY_PATH must be set")
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		return nil, errors.New("config: SIMILARITY_THRESHOLD must be in (0, 1]")
	}
	if cfg.VectorLength <= 0 {
		return nil, errors.New("config: VECTOR_LENGTH must be positive")
	}
	if _, err := time.ParseDuration(cfg.ClaimWindow); err != nil {
		return nil, errors.New("config: CLAIM_WINDOW must be a duration (e.g. 60s)")
	}

	return &cfg, nil
}

// ClaimWindowDuration parses ClaimWindow. Returns 60s if unset or invalid.
func (c *Config) ClaimWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.ClaimWindow)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// ClockSkewDuration parses ClockSkew. Returns 0 if unset or invalid.
func (c *Config) ClockSkewDuration() time.Duration {
	d, err := time.ParseDuration(c.ClockSkew)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
