package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session or key is absent.
var ErrNotFound = errors.New("session key not found")

// ErrStoreUnavailable wraps backend failures.
var ErrStoreUnavailable = errors.New("session store unavailable")

// ErrInvalidSessionID is returned for empty session ids.
var ErrInvalidSessionID = errors.New("invalid session id")

const minSlidingTTL = time.Second

// Store maps an opaque session id and key to a value.
//
// Implementations must be safe for concurrent use. Writes are last-writer-wins.
type Store interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, error)
	Set(ctx context.Context, sessionID, key string, value []byte) error
	Clear(ctx context.Context, sessionID, key string) error
	DeleteAll(ctx context.Context, sessionID string) error
}

// RedisStore is a Redis-backed [Store]. Each session is one hash; every write
// renews the hash TTL.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a [RedisStore] backed by the given Redis client.
// prefix sets the Redis key namespace; ttl is the sliding session lifetime.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if ttl < minSlidingTTL {
		ttl = minSlidingTTL
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Get returns the value stored under key, or [ErrNotFound].
//
//	Performance: 1 Redis HGET.
func (s *RedisStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}

	data, err := s.redis.HGet(ctx, s.key(sessionID), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return data, nil
}

// Set stores value under key and renews the session TTL.
//
//	Performance: 1 MULTI/EXEC round trip (HSET + PEXPIRE).
func (s *RedisStore) Set(ctx context.Context, sessionID, key string, value []byte) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}

	sessionKey := s.key(sessionID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey, key, value)
		pipe.PExpire(ctx, sessionKey, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Clear removes one key. Clearing an absent key is not an error.
func (s *RedisStore) Clear(ctx context.Context, sessionID, key string) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	if err := s.redis.HDel(ctx, s.key(sessionID), key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteAll removes every key of the session.
func (s *RedisStore) DeleteAll(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping checks backend connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
