// Package config loads and validates gemcheck's on-disk configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config represents the complete gemcheck configuration (v1 schema).
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	FastPath  FastPathConfig  `json:"fastPath" mapstructure:"fastPath"`
	Workers   WorkersConfig   `json:"workers" mapstructure:"workers"`
	Cache     CacheConfig     `json:"cache" mapstructure:"cache"`
	Watch     WatchConfig     `json:"watch" mapstructure:"watch"`
	Telemetry TelemetryConfig `json:"telemetry" mapstructure:"telemetry"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// FastPathConfig controls the edit committer's fast/slow-path decision.
type FastPathConfig struct {
	// Disabled forces every update down the slow path, regardless of
	// hash comparisons. Spec §4.5: "Fast path is not globally disabled."
	Disabled bool `json:"disabled" mapstructure:"disabled"`
}

// WorkersConfig controls the parallelism of the hasher and indexer pools.
type WorkersConfig struct {
	HashWorkers  int `json:"hashWorkers" mapstructure:"hashWorkers"`
	IndexWorkers int `json:"indexWorkers" mapstructure:"indexWorkers"`
	QueueSize    int `json:"queueSize" mapstructure:"queueSize"`
}

// CacheConfig controls the optional persistent tree cache.
type CacheConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// WatchConfig controls the optional filesystem watcher adapter.
type WatchConfig struct {
	Enabled        bool     `json:"enabled" mapstructure:"enabled"`
	DebounceMs     int      `json:"debounceMs" mapstructure:"debounceMs"`
	IgnorePatterns []string `json:"ignorePatterns" mapstructure:"ignorePatterns"`
}

// TelemetryConfig controls the metrics sink adapter.
type TelemetryConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		FastPath: FastPathConfig{
			Disabled: false,
		},
		Workers: WorkersConfig{
			HashWorkers:  4,
			IndexWorkers: 4,
			QueueSize:    64,
		},
		Cache: CacheConfig{
			Enabled: false,
			Path:    ".gemcheck/cache.db",
		},
		Watch: WatchConfig{
			Enabled:        false,
			DebounceMs:     200,
			IgnorePatterns: []string{".git", "vendor", "node_modules"},
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
			Addr:    ":9091",
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .gemcheck/config.json under repoRoot,
// falling back to defaults if no config file exists.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)
	v.SetDefault("repoRoot", ".")

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, ".gemcheck"))

	cfg := DefaultConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	extra, err := loadIgnoreManifest(repoRoot)
	if err != nil {
		return nil, err
	}
	cfg.Watch.IgnorePatterns = append(cfg.Watch.IgnorePatterns, extra...)

	return cfg, nil
}

// ignoreManifest is the schema of the optional .gemcheck/ignore.toml file.
// TOML reads better than JSON for a hand-maintained list, so watch-ignore
// patterns get their own small side-file instead of crowding config.json.
type ignoreManifest struct {
	Ignore []string `toml:"ignore"`
}

// loadIgnoreManifest reads .gemcheck/ignore.toml under repoRoot, returning
// nil with no error if the file doesn't exist.
func loadIgnoreManifest(repoRoot string) ([]string, error) {
	path := filepath.Join(repoRoot, ".gemcheck", "ignore.toml")
	var manifest ignoreManifest
	if _, err := toml.DecodeFile(path, &manifest); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return manifest.Ignore, nil
}

// Save writes the configuration to .gemcheck/config.json under repoRoot.
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".gemcheck")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// Validate checks whether the configuration is well-formed.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Workers.HashWorkers <= 0 {
		return &ConfigError{Field: "workers.hashWorkers", Message: "must be positive"}
	}
	if c.Workers.IndexWorkers <= 0 {
		return &ConfigError{Field: "workers.indexWorkers", Message: "must be positive"}
	}
	if c.Workers.QueueSize <= 0 {
		return &ConfigError{Field: "workers.queueSize", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
