package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// Load populates the configuration struct from environment variables based on
// `env` field tags. A .env file in the working directory is loaded once per
// process before the first parse; a missing file is not an error.
//
// Example:
//
//	type CacheConfig struct {
//		TTL      time.Duration `env:"ROLLOUT_CACHE_TTL" envDefault:"5m"`
//		Capacity int           `env:"ROLLOUT_CACHE_CAPACITY" envDefault:"10000"`
//	}
//
//	var cfg CacheConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	dotenvOnce.Do(func() {
		// The .env file is a local development convenience; production
		// deployments set real environment variables.
		_ = godotenv.Load()
	})

	if v == nil {
		return ErrNilPointer
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// LoadFrom populates the configuration struct after loading the named env
// files. Unlike Load, a missing file is an error: callers asking for specific
// files expect them to exist.
func LoadFrom[T any](v *T, files ...string) error {
	if v == nil {
		return ErrNilPointer
	}
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return errors.Join(ErrLoadingEnvFile, err)
		}
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics on failure. Intended for configuration
// the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
