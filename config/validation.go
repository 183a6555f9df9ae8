package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report koanf key paths instead of Go field names.
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("koanf"), ",")
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks field constraints and that a configured database can be reached with
// either a connection string or a host and database name.
func Validate(cfg *Config) error {
	if err := structValidator().Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return NewInvalidFieldError(keyPath(fe.Namespace()), describe(fe))
		}
		return err
	}

	return validateDatabase(&cfg.Database)
}

// IsDatabaseConfigured reports whether any connection setting is present.
func IsDatabaseConfigured(cfg *DatabaseConfig) bool {
	return cfg.ConnectionString != "" || cfg.Host != "" || cfg.Type != ""
}

func validateDatabase(cfg *DatabaseConfig) error {
	if !IsDatabaseConfigured(cfg) {
		return nil
	}
	if cfg.Type == "" {
		return NewMissingFieldError("database.type")
	}
	if cfg.ConnectionString != "" {
		return nil
	}
	if cfg.Host == "" {
		return NewMissingFieldError("database.host")
	}
	if cfg.Database == "" {
		return NewMissingFieldError("database.database")
	}
	if cfg.Username == "" {
		return NewMissingFieldError("database.username")
	}
	return nil
}

func keyPath(namespace string) string {
	// Namespace is "Config.database.query.slow.threshold"; drop the root type.
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%v is not one of: %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "gte":
		return fmt.Sprintf("%v must be at least %s", fe.Value(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%v must be at most %s", fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
