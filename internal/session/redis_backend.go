package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable indicates the Redis backend could not be reached.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisBackend shares one session between several front-end processes. The
// three persisted keys live under a common prefix and are replaced in a
// single MULTI/EXEC transaction. The prefix is a hash tag so that the keys
// share one slot on Redis Cluster.
type RedisBackend struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// DefaultRedisPrefix is used when no prefix is configured.
const DefaultRedisPrefix = "{healthdash:session}:"

// NewRedisBackend creates a backend on client. A prefix without a hash tag
// is wrapped in one, so "app:" becomes "{app}:". ttl of zero keeps the keys
// until they are cleared.
func NewRedisBackend(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisBackend {
	return &RedisBackend{redis: client, prefix: hashTagged(prefix), ttl: ttl}
}

func hashTagged(prefix string) string {
	if prefix == "" {
		return DefaultRedisPrefix
	}
	if open := strings.Index(prefix, "{"); open >= 0 {
		if end := strings.Index(prefix[open+1:], "}"); end > 0 {
			return prefix
		}
	}
	return "{" + strings.TrimSuffix(prefix, ":") + "}:"
}

func (b *RedisBackend) key(name string) string {
	return b.prefix + name
}

func (b *RedisBackend) Load(ctx context.Context) (Record, bool, error) {
	vals, err := b.redis.MGet(ctx, b.key(KeyToken), b.key(KeyRefresh), b.key(KeyUser)).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	str := func(v interface{}) string {
		s, _ := v.(string)
		return s
	}
	rec := Record{
		Token:   str(vals[0]),
		Refresh: str(vals[1]),
		User:    str(vals[2]),
	}
	return rec, rec.Token != "", nil
}

func (b *RedisBackend) Replace(ctx context.Context, rec Record) error {
	_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.key(KeyToken), b.key(KeyRefresh), b.key(KeyUser))
		pipe.Set(ctx, b.key(KeyToken), rec.Token, b.ttl)
		if rec.Refresh != "" {
			pipe.Set(ctx, b.key(KeyRefresh), rec.Refresh, b.ttl)
		}
		if rec.User != "" {
			pipe.Set(ctx, b.key(KeyUser), rec.User, b.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context) error {
	if err := b.redis.Del(ctx, b.key(KeyToken), b.key(KeyRefresh), b.key(KeyUser)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
