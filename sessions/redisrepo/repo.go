// Package redisrepo implements the session store on Redis. Key TTLs are
// Redis-native, so expiry needs no sweeper.
package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/sessions"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// RedisSessionStore stores session records as JSON blobs under
// "<prefix><session-id>" and advisory refresh locks under
// "<prefix>refresh-lock:<user>:<provider>".
type RedisSessionStore struct {
	client    *redis.Client
	keyPrefix string
}

var _ sessions.Store = (*RedisSessionStore)(nil)

// New creates a session store from a Redis URL
// (e.g. "redis://localhost:6379/0").
func New(redisURL, keyPrefix string) (*RedisSessionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("[redisrepo New] parse url: %w", err)
	}
	opts.DialTimeout = DefaultDialTimeout
	opts.ReadTimeout = DefaultReadTimeout
	opts.WriteTimeout = DefaultWriteTimeout

	return &RedisSessionStore{
		client:    redis.NewClient(opts),
		keyPrefix: keyPrefix,
	}, nil
}

// NewWithClient wraps an existing client. Used by tests and by callers that
// manage the client lifecycle themselves.
func NewWithClient(client *redis.Client, keyPrefix string) *RedisSessionStore {
	return &RedisSessionStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisSessionStore) key(id string) string {
	return s.keyPrefix + id
}

func (s *RedisSessionStore) lockKey(userID int64, provider string) string {
	return fmt.Sprintf("%srefresh-lock:%d:%s", s.keyPrefix, userID, provider)
}

// Get retrieves and decodes the session record. A missing or expired key maps
// to ErrSessionNotFound; a blob that no longer decodes maps to
// ErrSessionMalformed.
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*sessions.Record, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Result()
	if err == redis.Nil {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[RedisSessionStore Get] %w", err)
	}

	var record sessions.Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSessionMalformed, err)
	}
	return &record, nil
}

// Set encodes and stores the whole record with the given TTL.
func (s *RedisSessionStore) Set(ctx context.Context, id string, record *sessions.Record, ttl time.Duration) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("[RedisSessionStore Set] marshal: %w", err)
	}
	if err := s.client.Set(ctx, s.key(id), raw, ttl).Err(); err != nil {
		return fmt.Errorf("[RedisSessionStore Set] %w", err)
	}
	return nil
}

// Expire extends the TTL of an existing key. Redis EXPIRE on a missing key is
// a no-op, which is exactly the contract.
func (s *RedisSessionStore) Expire(ctx context.Context, id string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, s.key(id), ttl).Err(); err != nil {
		return fmt.Errorf("[RedisSessionStore Expire] %w", err)
	}
	return nil
}

// Delete removes the session record.
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("[RedisSessionStore Delete] %w", err)
	}
	return nil
}

// AcquireRefreshLock does a conditional set-if-absent with a short TTL. The
// TTL bounds how long a crashed holder can block other refreshes.
func (s *RedisSessionStore) AcquireRefreshLock(ctx context.Context, userID int64, provider string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.lockKey(userID, provider), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("[RedisSessionStore AcquireRefreshLock] %w", err)
	}
	return ok, nil
}

// ReleaseRefreshLock drops the lock key.
func (s *RedisSessionStore) ReleaseRefreshLock(ctx context.Context, userID int64, provider string) error {
	if err := s.client.Del(ctx, s.lockKey(userID, provider)).Err(); err != nil {
		return fmt.Errorf("[RedisSessionStore ReleaseRefreshLock] %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
