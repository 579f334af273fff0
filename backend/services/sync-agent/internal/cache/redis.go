package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisWatchRetries = 5

// RedisStore keeps a family in one redis hash (id -> JSON payload). Batches run in MULTI/EXEC;
// scoped replaces WATCH the hash and retry on concurrent modification.
type RedisStore[T Entity] struct {
	client *redis.Client
	key    string
	hub    *hub[T]
}

// NewRedisStore returns a redis-backed family stored under "<prefix>:<family>".
func NewRedisStore[T Entity](client *redis.Client, prefix, family string, logger *zap.Logger) (*RedisStore[T], error) {
	if client == nil {
		return nil, errors.New("cache: nil redis client")
	}
	if err := validateFamily(family); err != nil {
		return nil, err
	}
	return &RedisStore[T]{client: client, key: hashKey(prefix, family), hub: newHub[T](family, logger)}, nil
}

func hashKey(prefix, family string) string {
	if prefix == "" {
		prefix = "evsync"
	}
	return fmt.Sprintf("%s:cache:%s", prefix, family)
}

func (s *RedisStore[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	result, err := s.client.HGet(ctx, s.key, id).Result()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var item T
	if err := json.Unmarshal([]byte(result), &item); err != nil {
		return zero, false, fmt.Errorf("cache: decode %s/%s: %w", s.key, id, err)
	}
	return item, true, nil
}

func (s *RedisStore[T]) GetAll(ctx context.Context) ([]T, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	return decodeHash[T](s.key, values)
}

func decodeHash[T Entity](key string, values map[string]string) ([]T, error) {
	out := make([]T, 0, len(values))
	for id, payload := range values {
		var item T
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, fmt.Errorf("cache: decode %s/%s: %w", key, id, err)
		}
		out = append(out, item)
	}
	sortByKey(out)
	return out, nil
}

func (s *RedisStore[T]) Upsert(ctx context.Context, items ...T) error {
	if len(items) == 0 {
		return nil
	}
	fields, err := encodeFields(items)
	if err != nil {
		return err
	}
	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, fields...)
		return nil
	}); err != nil {
		return err
	}
	s.hub.notify()
	return nil
}

func (s *RedisStore[T]) ReplaceScope(ctx context.Context, inScope Filter[T], items []T) error {
	fields, err := encodeFields(items)
	if err != nil {
		return err
	}
	replace := func(tx *redis.Tx) error {
		var stale []string
		if inScope != nil {
			values, err := tx.HGetAll(ctx, s.key).Result()
			if err != nil {
				return err
			}
			current, err := decodeHash[T](s.key, values)
			if err != nil {
				return err
			}
			stale = keysOf(Select(current, inScope))
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if inScope == nil {
				pipe.Del(ctx, s.key)
			} else if len(stale) > 0 {
				pipe.HDel(ctx, s.key, stale...)
			}
			if len(fields) > 0 {
				pipe.HSet(ctx, s.key, fields...)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisWatchRetries; attempt++ {
		err = s.client.Watch(ctx, replace, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		s.hub.notify()
		return nil
	}
	return fmt.Errorf("cache: replace %s: %w", s.key, err)
}

func (s *RedisStore[T]) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.key, ids...).Err(); err != nil {
		return err
	}
	s.hub.notify()
	return nil
}

func (s *RedisStore[T]) Subscribe(ctx context.Context, filter Filter[T]) <-chan []T {
	return s.hub.subscribe(ctx, filter, s.GetAll)
}

func encodeFields[T Entity](items []T) ([]any, error) {
	fields := make([]any, 0, 2*len(items))
	for _, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("cache: encode %s: %w", item.CacheKey(), err)
		}
		fields = append(fields, item.CacheKey(), string(payload))
	}
	return fields, nil
}
