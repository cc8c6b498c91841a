// Package configcache provides the warm-start TTL cache that sits between
// the evaluation path and the external configuration store.
//
// Flag and experiment configurations change rarely but are read on every
// evaluation, so a short-lived process-local cache removes almost all store
// round trips from the request path. Misses resolve through a caller-supplied
// fetch function; the result is cached whether the key was found or not, so
// repeated lookups of an unknown key stay cheap. Fetch errors are surfaced to
// the caller and never cached.
//
// # Usage
//
//	cache := configcache.New[*flags.FlagConfig](configcache.WithTTL(5 * time.Minute))
//	defer cache.Close()
//
//	cfg, found, err := cache.GetOrFetch(ctx, "checkout-v2", func(ctx context.Context) (*flags.FlagConfig, bool, error) {
//		return store.GetFlag(ctx, "checkout-v2")
//	})
//
// HitRate exposes cache effectiveness for observability dashboards.
package configcache
