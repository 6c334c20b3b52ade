package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses process environment variables into cfg using `env` tags.
func Load(cfg any) error {
	return LoadFrom(cfg, nil)
}

// LoadFrom parses cfg from the given variables instead of the process
// environment. A nil map falls back to os.Environ.
func LoadFrom(cfg any, environ map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
