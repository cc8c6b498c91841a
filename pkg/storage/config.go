package storage

import "time"

// Config holds PostgreSQL connection and migration settings for the control
// plane's flag, assignment, and audit storage.
type Config struct {
	ConnectionString  string        `env:"ROLLOUT_DB_URL,required"`                       // ConnectionString is the postgres connection URL.
	MaxOpenConns      int32         `env:"ROLLOUT_DB_MAX_OPEN_CONNS" envDefault:"10"`     // MaxOpenConns is the maximum number of open connections.
	MaxIdleConns      int32         `env:"ROLLOUT_DB_MAX_IDLE_CONNS" envDefault:"5"`      // MaxIdleConns is the maximum number of idle connections.
	HealthCheckPeriod time.Duration `env:"ROLLOUT_DB_HEALTHCHECK_PERIOD" envDefault:"1m"` // HealthCheckPeriod is the period between pool health checks.
	MaxConnIdleTime   time.Duration `env:"ROLLOUT_DB_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"ROLLOUT_DB_MAX_CONN_LIFETIME" envDefault:"30m"`

	RetryAttempts int           `env:"ROLLOUT_DB_RETRY_ATTEMPTS" envDefault:"3"` // RetryAttempts is the number of connection attempts at startup.
	RetryInterval time.Duration `env:"ROLLOUT_DB_RETRY_INTERVAL" envDefault:"5s"`

	MigrationsPath  string `env:"ROLLOUT_DB_MIGRATIONS_PATH" envDefault:"pkg/storage/migrations"`
	MigrationsTable string `env:"ROLLOUT_DB_MIGRATIONS_TABLE" envDefault:"schema_migrations"`
}
