package config

import "strings"

// ApplyDefaults fills unspecified configuration fields with defaults.
// Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applySourceDefaults(&cfg.Source)
	applyFilesystemDefaults(&cfg.Filesystem)
	applyCatalogDefaults(&cfg.Catalog)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize for consistent internal representation.
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applySourceDefaults(cfg *SourceConfig) {
	if cfg.RootPath == "" {
		cfg.RootPath = "/data"
	}
	if cfg.ProcessIdentity == "" {
		cfg.ProcessIdentity = "filesource"
	}
	if cfg.ViewFileMode == 0 {
		cfg.ViewFileMode = 0o600
	}
}

func applyFilesystemDefaults(cfg *FilesystemConfig) {
	if cfg.Type == "" {
		cfg.Type = "local"
	}
	if cfg.Local == nil {
		cfg.Local = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyCatalogDefaults(cfg *CatalogConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
}
