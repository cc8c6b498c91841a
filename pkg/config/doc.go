// Package config loads application configuration from environment variables
// into tagged Go structs.
//
// It wraps `github.com/joho/godotenv` and `github.com/caarlos0/env/v11`:
// godotenv makes a local .env file visible during development, env.Parse
// populates any struct from `env` field tags. Every component of the control
// plane (storage, cache, safety monitor, event pipeline) declares its own
// Config struct and loads it through this package so environment handling
// stays uniform.
//
// # Usage
//
//	type SafetyConfig struct {
//	    CheckInterval  time.Duration `env:"ROLLOUT_SAFETY_CHECK_INTERVAL" envDefault:"5m"`
//	    AutoRollback   bool          `env:"ROLLOUT_SAFETY_AUTO_ROLLBACK" envDefault:"true"`
//	}
//
//	var cfg SafetyConfig
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatalf("parsing env: %v", err)
//	}
//
// LoadFrom reads explicit env files first (missing files are an error there,
// unlike the implicit .env), and MustLoad panics for configuration the
// process cannot run without.
//
// # Error Handling
//
// Sentinel errors compare with errors.Is:
//
//   - ErrParsingConfig – env vars could not be parsed into the struct.
//   - ErrLoadingEnvFile – an explicitly named env file could not be read.
//   - ErrNilPointer – nil pointer passed to Load/LoadFrom/MustLoad.
package config
