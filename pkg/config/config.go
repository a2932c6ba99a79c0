// Package config loads and validates the filesource configuration and
// builds the storage backends it names.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FILESOURCE_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Backend configuration pattern: the filesystem and catalog sections carry
// a type selector plus one map per implementation; only the map matching
// the selected type is decoded, by the factory for that implementation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete filesource configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Source describes the data source the connector exposes.
	Source SourceConfig `mapstructure:"source"`

	// Filesystem selects and configures the storage backend.
	Filesystem FilesystemConfig `mapstructure:"filesystem"`

	// Catalog selects and configures the dataset catalog.
	Catalog CatalogConfig `mapstructure:"catalog"`

	// Permissions tunes permission verification.
	Permissions PermissionsConfig `mapstructure:"permissions"`

	// Metrics controls Prometheus metrics collection and exposure.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output specifies where logs are written: stdout, stderr, or a file
	// path.
	Output string `mapstructure:"output" validate:"required"`
}

// SourceConfig describes the connector itself.
type SourceConfig struct {
	// Name is the source name as registered in the catalog. Leaving it
	// empty creates an ephemeral source.
	Name string `mapstructure:"name"`

	// RootPath is the absolute path all tables live under.
	RootPath string `mapstructure:"root_path" validate:"required,startswith=/"`

	// ImpersonationEnabled turns on per-identity filesystem access and
	// permission verification.
	ImpersonationEnabled bool `mapstructure:"impersonation_enabled"`

	// ProcessIdentity is the identity used for catalog-driven work.
	ProcessIdentity string `mapstructure:"process_identity"`

	// ViewFileMode is the Unix permission mode for view metadata files
	// (e.g. 0600).
	ViewFileMode uint32 `mapstructure:"view_file_mode" validate:"lte=511"` // 511 = 0777 in decimal
}

// FilesystemConfig selects the storage backend.
//
// The Type field determines which implementation is used; only the
// corresponding section is decoded.
type FilesystemConfig struct {
	// Type specifies the backend implementation.
	// Valid values: local, memory, s3.
	Type string `mapstructure:"type" validate:"required,oneof=local memory s3"`

	// Local contains local-backend configuration. Only used when
	// Type = "local".
	Local map[string]any `mapstructure:"local"`

	// Memory contains memory-backend configuration. Only used when
	// Type = "memory".
	Memory map[string]any `mapstructure:"memory"`

	// S3 contains S3-backend configuration. Only used when Type = "s3".
	S3 map[string]any `mapstructure:"s3"`
}

// CatalogConfig selects the dataset catalog.
type CatalogConfig struct {
	// Type specifies the catalog implementation.
	// Valid values: memory, badger.
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-catalog configuration. Only used when
	// Type = "memory".
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB catalog configuration. Only used when
	// Type = "badger".
	Badger map[string]any `mapstructure:"badger"`
}

// PermissionsConfig tunes permission verification.
type PermissionsConfig struct {
	// ProbesPerSecond caps the sustained rate of access probes against
	// the backend. Zero disables throttling.
	ProbesPerSecond uint `mapstructure:"probes_per_second"`

	// ProbeBurst is the probe burst capacity. Zero defaults to the rate.
	ProbeBurst uint `mapstructure:"probe_burst"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns metrics collection on and starts the HTTP server.
	Enabled bool `mapstructure:"enabled"`

	// Port the metrics HTTP server listens on.
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: path to config file (empty string uses the default
//     location)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable support and the config file
// location. Environment variables use the FILESOURCE_ prefix with
// underscores, e.g. FILESOURCE_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FILESOURCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if one exists. A missing
// file is fine; defaults and environment cover everything.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory: XDG_CONFIG_HOME if
// set, otherwise ~/.config, or the current directory as a last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "filesource")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "filesource")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
