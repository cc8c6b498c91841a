package assignment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/rolloutkit/pkg/flags"
)

// RedisStore is a Store implementation over Redis. Conditional creation maps
// directly onto SET NX, which makes the winner of a concurrent first-exposure
// race unambiguous across processes.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisOption configures the Redis store.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides the default "assignment:" key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithTTL bounds assignment lifetime in Redis. Zero (the default) keeps
// assignments until external retention removes them; the control plane itself
// never deletes an assignment.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewRedisStore creates a Redis-backed assignment store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("assignment: redis client cannot be nil")
	}

	store := &RedisStore{
		client:    client,
		keyPrefix: "assignment:",
	}
	for _, opt := range opts {
		opt(store)
	}

	return store, nil
}

func (s *RedisStore) key(userID, experimentID string) string {
	return s.keyPrefix + experimentID + ":" + userID
}

// Get returns the stored assignment or ErrAssignmentNotFound.
func (s *RedisStore) Get(ctx context.Context, userID, experimentID string) (*flags.Assignment, error) {
	payload, err := s.client.Get(ctx, s.key(userID, experimentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("assignment: redis get: %w", err)
	}

	var a flags.Assignment
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("assignment: decode stored assignment: %w", err)
	}
	return &a, nil
}

// PutIfAbsent stores the assignment with SET NX; false means another writer
// already created one for the pair.
func (s *RedisStore) PutIfAbsent(ctx context.Context, a *flags.Assignment) (bool, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("assignment: encode assignment: %w", err)
	}

	won, err := s.client.SetNX(ctx, s.key(a.UserID, a.ExperimentID), payload, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("assignment: redis setnx: %w", err)
	}
	return won, nil
}
