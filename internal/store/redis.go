package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/billboard-signals/internal/model"
)

// RedisStore implements SignalStore on Redis. Each (location, kind) is one
// string key holding the JSON-encoded signal; a per-location set indexes the
// kinds present so DeleteSignals can find them. Keys are written without
// expiry: staleness is decided by the gateway, not by eviction.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis connects to the Redis server at redisURL (redis:// or rediss://).
func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrap(err, "redis: parse url")
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrap(err, "redis: ping")
	}
	return NewRedisWithClient(client), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "signals"}
}

func (s *RedisStore) signalKey(locationKey string, kind model.SignalKind) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, kind, locationKey)
}

func (s *RedisStore) indexKey(locationKey string) string {
	return fmt.Sprintf("%s:index:%s", s.prefix, locationKey)
}

// Migrate only verifies connectivity; Redis has no schema.
func (s *RedisStore) Migrate(ctx context.Context) error {
	return eris.Wrap(s.client.Ping(ctx).Err(), "redis: ping")
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) GetSignal(ctx context.Context, locationKey string, kind model.SignalKind) (*model.CachedSignal, error) {
	data, err := s.client.Get(ctx, s.signalKey(locationKey, kind)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "redis: get signal %s/%s", locationKey, kind)
	}

	var sig model.CachedSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, eris.Wrapf(err, "redis: decode signal %s/%s", locationKey, kind)
	}
	sig.ComputedAt = sig.ComputedAt.UTC()
	return &sig, nil
}

func (s *RedisStore) UpsertSignal(ctx context.Context, sig *model.CachedSignal) error {
	if sig == nil {
		return eris.New("redis: upsert nil signal")
	}
	data, err := json.Marshal(sig)
	if err != nil {
		return eris.Wrap(err, "redis: encode signal")
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.signalKey(sig.LocationKey, sig.Kind), data, 0)
		pipe.SAdd(ctx, s.indexKey(sig.LocationKey), string(sig.Kind))
		return nil
	})
	return eris.Wrapf(err, "redis: upsert signal %s/%s", sig.LocationKey, sig.Kind)
}

func (s *RedisStore) DeleteSignals(ctx context.Context, locationKey string) (int, error) {
	kinds, err := s.client.SMembers(ctx, s.indexKey(locationKey)).Result()
	if err != nil {
		return 0, eris.Wrapf(err, "redis: list signals %s", locationKey)
	}
	if len(kinds) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(kinds))
	for _, k := range kinds {
		keys = append(keys, s.signalKey(locationKey, model.SignalKind(k)))
	}

	var removed *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, keys...)
		pipe.Del(ctx, s.indexKey(locationKey))
		return nil
	})
	if err != nil {
		return 0, eris.Wrapf(err, "redis: delete signals %s", locationKey)
	}
	return int(removed.Val()), nil
}
