package redis

import "time"

// Config holds Redis connection settings for the assignment store.
type Config struct {
	ConnectionURL  string        `env:"ROLLOUT_REDIS_URL" envDefault:"redis://localhost:6379/0"` // ConnectionURL in the format "redis://:password@localhost:6379/0"
	RetryAttempts  int           `env:"ROLLOUT_REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"ROLLOUT_REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"ROLLOUT_REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}
