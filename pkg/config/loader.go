package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/finnews/finnews/pkg/logger"
)

const envPrefix = "FINNEWS_"

// Load builds the configuration in precedence order: struct defaults, a
// best-effort .env file in the working directory, the legacy DATABASE_URL
// variable, then FINNEWS_-prefixed environment variables.
func Load(ctx context.Context) (*Config, error) {
	loadDotenv(ctx)
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	// DATABASE_URL predates the FINNEWS_ prefix and is still honored.
	if url := os.Getenv("DATABASE_URL"); url != "" {
		if err := k.Set("database.url", url); err != nil {
			return nil, fmt.Errorf("failed to apply DATABASE_URL: %w", err)
		}
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key string, value string) (string, any) {
			return transformEnvKey(key), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// loadDotenv seeds the process environment from ./.env without overriding
// variables that are already set, mirroring a plain `source .env`.
func loadDotenv(ctx context.Context) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			logger.FromContext(ctx).Debug("Skipping .env bootstrap", "error", err)
		}
	}
}

// transformEnvKey converts environment variable names to koanf paths.
// For example: DATABASE_AUTO_PROVISION -> database.auto_provision.
func transformEnvKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_'
	})
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	// First part is the section; the rest stays a single snake_case field
	// name (DATABASE_AUTO_PROVISION has one section and one field).
	return parts[0] + "." + strings.Join(parts[1:], "_")
}
