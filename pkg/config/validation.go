package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags plus custom rules
// that tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules performs cross-field validation.
func validateCustomRules(cfg *Config) error {
	// Impersonation needs a process identity to fall back to for
	// catalog-driven work.
	if cfg.Source.ImpersonationEnabled && cfg.Source.ProcessIdentity == "" {
		return fmt.Errorf("source: process_identity is required when impersonation is enabled")
	}

	// A durable catalog needs a location.
	if cfg.Catalog.Type == "badger" {
		if inMemory, _ := cfg.Catalog.Badger["in_memory"].(bool); !inMemory {
			if p, _ := cfg.Catalog.Badger["db_path"].(string); p == "" {
				return fmt.Errorf("catalog: badger db_path is required unless in_memory is set")
			}
		}
	}

	// Burst without a rate is meaningless.
	if cfg.Permissions.ProbeBurst > 0 && cfg.Permissions.ProbesPerSecond == 0 {
		return fmt.Errorf("permissions: probe_burst requires probes_per_second")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
