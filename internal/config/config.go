package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"psl/internal/store"
)

// Config holds all psl configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Backing store: schema, data and partition layout
	Store StoreConfig `yaml:"store"`

	// Rule model and term generation
	Reasoner ReasonerConfig `yaml:"reasoner"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Prometheus collectors
	Metrics MetricsConfig `yaml:"metrics"`
}

// StoreConfig configures the data store and the database view opened on it.
type StoreConfig struct {
	Driver       string `yaml:"driver"`        // sqlite3, sqlite
	DatabasePath string `yaml:"database_path"` // empty keeps everything in memory

	// Mangle Decl statements, then YAML data files loaded in order
	SchemaPath string   `yaml:"schema_path"`
	DataFiles  []string `yaml:"data_files,omitempty"`

	WritePartition   string   `yaml:"write_partition"`
	ReadPartitions   []string `yaml:"read_partitions,omitempty"`
	ClosedPredicates []string `yaml:"closed_predicates,omitempty"`

	QueryTimeout string `yaml:"query_timeout"`
}

// ReasonerConfig configures the rule model.
type ReasonerConfig struct {
	ModelPath string `yaml:"model_path"`
}

// MetricsConfig configures Prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "psl",
		Version: "0.3.0",

		Store: StoreConfig{
			Driver:         DriverSQLite3,
			WritePartition: "targets",
			ReadPartitions: []string{"observations"},
			QueryTimeout:   "30s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},

		Metrics: MetricsConfig{
			Namespace: "psl",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("PSL_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if driver := os.Getenv("PSL_DB_DRIVER"); driver != "" {
		c.Store.Driver = driver
	}
	if level := os.Getenv("PSL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if model := os.Getenv("PSL_MODEL"); model != "" {
		c.Reasoner.ModelPath = model
	}
}

// GetQueryTimeout returns the store query timeout as a duration.
func (c *Config) GetQueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Store.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Supported database/sql driver names.
const (
	DriverSQLite3 = store.DriverCGO
	DriverSQLite  = store.DriverPureGo
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	validDriver := false
	for _, d := range store.Drivers {
		if c.Store.Driver == d {
			validDriver = true
			break
		}
	}
	if !validDriver {
		return fmt.Errorf("invalid store driver: %s (valid: %v)", c.Store.Driver, store.Drivers)
	}

	if c.Store.WritePartition == "" {
		return fmt.Errorf("store.write_partition must be set")
	}
	for _, r := range c.Store.ReadPartitions {
		if r == c.Store.WritePartition {
			return fmt.Errorf("partition %s is both read and write", r)
		}
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Logging.Format)
	}

	return nil
}

// HasPersistence reports whether a database path is configured.
func (c *Config) HasPersistence() bool {
	return c.Store.DatabasePath != ""
}
