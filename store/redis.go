package store

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// The redis cache shares suggestion responses between router instances.
// Entries are stored as JSON under `<prefix>/suggestions/<key>`
// and expire with the cache TTL, the size limit is not enforced.

const scanBatch = 100

type redisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache returns a cache backed by Redis
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) Cache {
	return &redisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (m *redisCache) getRedisKey(key string) string {
	return path.Join(m.prefix, "suggestions", key)
}

func (m *redisCache) pattern() string {
	return path.Join(m.prefix, "suggestions") + "/*"
}

func (m *redisCache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := m.client.Get(ctx, m.getRedisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get entry from Redis")
	}

	e := new(Entry)
	if err = json.Unmarshal(data, e); err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "reason", "unmarshal entry", "key", key, "err", err.Error())
		return nil, nil
	}
	if e.Response == nil || e.Expired(time.Now(), m.ttl) {
		return nil, nil
	}
	return e, nil
}

func (m *redisCache) Set(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to marshal entry")
	}
	if err = m.client.Set(ctx, m.getRedisKey(key), data, m.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to store entry in Redis")
	}
	return nil
}

func (m *redisCache) Clear(ctx context.Context) (int, error) {
	keys, err := m.keys(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		n, err := m.client.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return deleted, errors.Wrap(err, "failed to delete entries from Redis")
		}
		deleted += int(n)
	}
	return deleted, nil
}

func (m *redisCache) Len(ctx context.Context) (int, error) {
	keys, err := m.keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (m *redisCache) keys(ctx context.Context) ([]string, error) {
	// Use SCAN instead of KEYS for better performance
	iter := m.client.Scan(ctx, 0, m.pattern(), scanBatch).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan entries from Redis")
	}
	return keys, nil
}
