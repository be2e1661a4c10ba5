package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadOptions controls where configuration values come from.
type LoadOptions struct {
	// EnvFile is an optional KEY=VALUE file. Its values never override
	// variables that are already set.
	EnvFile string

	// Environment replaces the process environment when non-nil.
	Environment map[string]string
}

// Load builds the configuration from the environment and validates it.
func Load(opts LoadOptions) (*Config, error) {
	environ := opts.Environment
	if environ == nil {
		environ = env.ToMap(os.Environ())
	}

	if opts.EnvFile != "" {
		// #nosec G304 - path is supplied by the operator on the command line
		fileEnv, err := godotenv.Read(opts.EnvFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", opts.EnvFile, err)
		}
		merged := make(map[string]string, len(environ)+len(fileEnv))
		for k, v := range fileEnv {
			merged[k] = v
		}
		for k, v := range environ {
			merged[k] = v
		}
		environ = merged
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration, ignoring the environment.
func Default() *Config {
	cfg, err := Load(LoadOptions{Environment: map[string]string{}})
	if err != nil {
		// The defaults are static; failing here is a programming error.
		panic(errors.Join(errors.New("invalid default configuration"), err))
	}
	return cfg
}
