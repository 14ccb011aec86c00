package credential

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/reimburse/internal/errors"
)

const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second
)

// RedisStore keeps the credential under a single Redis key. It lets several
// processes on different hosts share one session.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    key,
	}
}

// DialRedis parses redisURL, connects and verifies connectivity.
func DialRedis(ctx context.Context, redisURL, key string) (*RedisStore, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreBackend, "invalid redis URL", err)
	}

	options.PoolSize = 2
	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.ErrCodeStoreBackend, "redis ping failed", err)
	}

	return NewRedisStore(client, key), nil
}

// Load returns the stored credential, or "" when the key does not exist.
func (s *RedisStore) Load(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", errors.Wrap(errors.ErrCodeStoreRead, "failed to read credential from redis", err)
	}
	return token, nil
}

// Save replaces the stored credential. The key never expires on its own: an
// expired token is still needed for the refresh exchange.
func (s *RedisStore) Save(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, token, 0).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to write credential to redis", err)
	}
	return nil
}

// Clear deletes the key.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to delete credential from redis", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
