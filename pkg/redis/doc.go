// Package redis provides the Redis connection layer for the assignment
// store. It wraps the go-redis client with a retrying Connect, env-driven
// Config, and a health probe.
//
// # Usage
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store, err := assignment.NewRedisStore(client)
//
// Register the health probe in a readiness endpoint:
//
//	check := redis.Healthcheck(client)
//	if err := check(ctx); err != nil {
//		// redis is not healthy
//	}
//
// Sentinel errors (ErrNotReady, ErrHealthcheckFailed, ...) wrap the
// underlying go-redis errors with errors.Join for errors.Is comparison.
package redis
