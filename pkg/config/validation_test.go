package config

import (
	"strings"
	"testing"
)

// validConfig returns a configuration that passes validation; tests mutate
// one field at a time.
func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidateDefaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateLoggingLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "VERBOSE"
	if err := Validate(cfg); err == nil {
		t.Fatal("invalid log level should fail validation")
	}
}

func TestValidateRootPath(t *testing.T) {
	cfg := validConfig()
	cfg.Source.RootPath = "relative/path"
	if err := Validate(cfg); err == nil {
		t.Fatal("relative root path should fail validation")
	}

	cfg = validConfig()
	cfg.Source.RootPath = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("empty root path should fail validation")
	}
}

func TestValidateFilesystemType(t *testing.T) {
	cfg := validConfig()
	cfg.Filesystem.Type = "hdfs"
	if err := Validate(cfg); err == nil {
		t.Fatal("unknown filesystem type should fail validation")
	}
}

func TestValidateViewFileMode(t *testing.T) {
	cfg := validConfig()
	cfg.Source.ViewFileMode = 0o1000
	if err := Validate(cfg); err == nil {
		t.Fatal("mode beyond 0777 should fail validation")
	}
}

func TestValidateImpersonationNeedsIdentity(t *testing.T) {
	cfg := validConfig()
	cfg.Source.ImpersonationEnabled = true
	cfg.Source.ProcessIdentity = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("impersonation without process identity should fail validation")
	}
	if !strings.Contains(err.Error(), "process_identity") {
		t.Fatalf("error should name the missing field, got: %v", err)
	}
}

func TestValidateBadgerNeedsPath(t *testing.T) {
	cfg := validConfig()
	cfg.Catalog.Type = "badger"
	if err := Validate(cfg); err == nil {
		t.Fatal("badger catalog without db_path should fail validation")
	}

	cfg.Catalog.Badger["in_memory"] = true
	if err := Validate(cfg); err != nil {
		t.Fatalf("in-memory badger catalog needs no path: %v", err)
	}
}

func TestValidateMetricsPort(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Port = 70000
	if err := Validate(cfg); err == nil {
		t.Fatal("out-of-range metrics port should fail validation")
	}
}

func TestValidateProbeBurstNeedsRate(t *testing.T) {
	cfg := validConfig()
	cfg.Permissions.ProbeBurst = 10
	if err := Validate(cfg); err == nil {
		t.Fatal("probe burst without a rate should fail validation")
	}

	cfg.Permissions.ProbesPerSecond = 5
	if err := Validate(cfg); err != nil {
		t.Fatalf("burst with a rate should validate: %v", err)
	}
}
