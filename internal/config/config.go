// Package config loads lakefind configuration from .lakefind/config.json
// with environment variable overrides.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete lakefind configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Backends       BackendsConfig    `json:"backends" mapstructure:"backends"`
	QueryPolicy    QueryPolicyConfig `json:"queryPolicy" mapstructure:"queryPolicy"`
	Limits         LimitsConfig      `json:"limits" mapstructure:"limits"`
	Logging        LoggingConfig     `json:"logging" mapstructure:"logging"`
	VocabularyPath string            `json:"vocabularyPath,omitempty" mapstructure:"vocabularyPath"`
}

// BackendsConfig contains backend-specific configuration
type BackendsConfig struct {
	FullText    FullTextConfig    `json:"fulltext" mapstructure:"fulltext"`
	Catalog     CatalogConfig     `json:"catalog" mapstructure:"catalog"`
	ObjectStore ObjectStoreConfig `json:"objectstore" mapstructure:"objectstore"`
}

// FullTextConfig configures the bleve full-text backend
type FullTextConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	IndexPath string `json:"indexPath" mapstructure:"indexPath"`
}

// CatalogConfig configures the SQLite metadata catalog backend
type CatalogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	DBPath  string `json:"dbPath" mapstructure:"dbPath"`
}

// ObjectStoreConfig configures the object-listing backend
type ObjectStoreConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	RootDir string `json:"rootDir" mapstructure:"rootDir"`
}

// HealthThresholds contains health status transition thresholds
type HealthThresholds struct {
	DegradedAfter         int     `json:"degradedAfter" mapstructure:"degradedAfter"`
	UnavailableAfter      int     `json:"unavailableAfter" mapstructure:"unavailableAfter"`
	LatencyP95ThresholdMs float64 `json:"latencyP95ThresholdMs" mapstructure:"latencyP95ThresholdMs"`
	WindowSize            int     `json:"windowSize" mapstructure:"windowSize"`
	ProbeEvery            int     `json:"probeEvery" mapstructure:"probeEvery"`
}

// QueryPolicyConfig contains query execution policy
type QueryPolicyConfig struct {
	PreferenceOrder  map[string][]string `json:"preferenceOrder" mapstructure:"preferenceOrder"`
	TimeoutMs        map[string]int      `json:"timeoutMs" mapstructure:"timeoutMs"`
	MaxInFlight      map[string]int      `json:"maxInFlight" mapstructure:"maxInFlight"`
	OverallTimeoutMs int                 `json:"overallTimeoutMs" mapstructure:"overallTimeoutMs"`
	SafetyMarginMs   int                 `json:"safetyMarginMs" mapstructure:"safetyMarginMs"`
	Fusion           string              `json:"fusion" mapstructure:"fusion"`
	Health           HealthThresholds    `json:"health" mapstructure:"health"`
}

// LimitsConfig bounds result counts
type LimitsConfig struct {
	DefaultLimit int `json:"defaultLimit" mapstructure:"defaultLimit"`
	MaxLimit     int `json:"maxLimit" mapstructure:"maxLimit"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the configuration used when no config file exists
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Backends: BackendsConfig{
			FullText:    FullTextConfig{Enabled: true, IndexPath: ".lakefind/fulltext.bleve"},
			Catalog:     CatalogConfig{Enabled: true, DBPath: ".lakefind/catalog.db"},
			ObjectStore: ObjectStoreConfig{Enabled: true, RootDir: "."},
		},
		Limits: LimitsConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from <root>/.lakefind/config.json.
// Environment variables prefixed LAKEFIND_ override file values.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, ".lakefind"))

	v.SetEnvPrefix("LAKEFIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to <root>/.lakefind/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, ".lakefind")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Limits.DefaultLimit < 0 || c.Limits.MaxLimit < 0 {
		return &ConfigError{Field: "limits", Message: "limits must not be negative"}
	}
	if c.Limits.MaxLimit > 0 && c.Limits.DefaultLimit > c.Limits.MaxLimit {
		return &ConfigError{Field: "limits", Message: "defaultLimit exceeds maxLimit"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
