package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	// An explicitly named but missing file is an error from viper.
	require.Error(t, err)

	// With no explicit path and no file present, defaults apply.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err = Load("")
	require.NoError(t, err)
	require.Equal(t, "INFO", cfg.Logging.Level)
	require.Equal(t, "local", cfg.Filesystem.Type)
	require.Equal(t, "memory", cfg.Catalog.Type)
	require.Equal(t, "/data", cfg.Source.RootPath)
	require.Equal(t, uint32(0o600), cfg.Source.ViewFileMode)
	require.False(t, cfg.Metrics.Enabled)
	require.Equal(t, 9090, cfg.Metrics.Port)
}

func TestLoadFromFile(t *testing.T) {
	doc := map[string]any{
		"logging": map[string]any{"level": "debug"},
		"source": map[string]any{
			"name":                  "warehouse",
			"root_path":             "/srv/warehouse",
			"impersonation_enabled": true,
			"process_identity":      "svc",
		},
		"filesystem": map[string]any{"type": "memory"},
		"catalog": map[string]any{
			"type":   "badger",
			"badger": map[string]any{"db_path": "/var/lib/filesource"},
		},
		"permissions": map[string]any{
			"probes_per_second": 100,
			"probe_burst":       200,
		},
		"metrics": map[string]any{
			"enabled": true,
			"port":    9100,
		},
	}
	raw, err := yaml.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to uppercase")
	require.Equal(t, "warehouse", cfg.Source.Name)
	require.Equal(t, "/srv/warehouse", cfg.Source.RootPath)
	require.True(t, cfg.Source.ImpersonationEnabled)
	require.Equal(t, "memory", cfg.Filesystem.Type)
	require.Equal(t, "badger", cfg.Catalog.Type)
	require.Equal(t, "/var/lib/filesource", cfg.Catalog.Badger["db_path"])
	require.Equal(t, uint(100), cfg.Permissions.ProbesPerSecond)
	require.Equal(t, uint(200), cfg.Permissions.ProbeBurst)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, 9100, cfg.Metrics.Port)
}
