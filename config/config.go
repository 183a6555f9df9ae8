// Package config loads the database and logging configuration from defaults,
// YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvKey names the variable selecting the config.<env>.yaml overlay.
const EnvKey = "APP_ENV"

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. config.yaml, then config.<APP_ENV>.yaml
// 3. Default values (lowest priority)
//
// Missing YAML files are skipped.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	files := []string{"config.yaml"}
	if env := os.Getenv(EnvKey); env != "" {
		files = append(files, fmt.Sprintf("config.%s.yaml", env))
	}
	for _, path := range files {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := loadEnv(k); err != nil {
		return nil, err
	}

	return finish(k)
}

// LoadFromBytes loads defaults overlaid with a YAML document. Environment variables are not read.
func LoadFromBytes(data []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return finish(k)
}

func finish(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnv maps DATABASE_QUERY_SLOW_THRESHOLD style variables onto database.query.slow.threshold.
// Only the database and log sections are read.
func loadEnv(k *koanf.Koanf) error {
	provider := env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ReplaceAll(strings.ToLower(key), "_", ".")
			if !strings.HasPrefix(key, "database.") && !strings.HasPrefix(key, "log.") {
				return "", nil
			}
			return key, value
		},
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		// Connection settings have no defaults; the database is configured explicitly.
		"database.pool.max.connections":  25,
		"database.pool.idle.connections": 2,
		"database.pool.idle.time":        "5m",
		"database.pool.lifetime.max":     "30m",
		"database.query.slow.threshold":  "200ms",
		"database.query.log.parameters":  false,
		"database.query.log.max":         1000,
		"database.notify.interval":       "1s",

		"log.level":  "info",
		"log.pretty": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
