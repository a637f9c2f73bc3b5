package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStorage keeps partition names in a sorted set scored by creation time
// and each partition's entries in a hash.
type RedisStorage struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStorage(rdb *redis.Client, prefix string) *RedisStorage {
	return &RedisStorage{rdb: rdb, prefix: prefix}
}

func (s *RedisStorage) indexKey() string { return s.prefix + "caches" }

func (s *RedisStorage) partitionKey(name string) string { return s.prefix + "cache:" + name }

func (s *RedisStorage) Open(ctx context.Context, name string) (Partition, error) {
	err := s.rdb.ZAddNX(ctx, s.indexKey(), &redis.Z{
		Score:  float64(time.Now().UnixMicro()),
		Member: name,
	}).Err()
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", name, err)
	}
	return &redisPartition{rdb: s.rdb, key: s.partitionKey(name)}, nil
}

func (s *RedisStorage) Keys(ctx context.Context) ([]string, error) {
	names, err := s.rdb.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	return names, nil
}

func (s *RedisStorage) Delete(ctx context.Context, name string) (bool, error) {
	n, err := s.rdb.ZRem(ctx, s.indexKey(), name).Result()
	if err != nil {
		return false, fmt.Errorf("delete cache %s: %w", name, err)
	}
	if err := s.rdb.Del(ctx, s.partitionKey(name)).Err(); err != nil {
		return false, fmt.Errorf("delete cache %s: %w", name, err)
	}
	return n > 0, nil
}

func (s *RedisStorage) Match(ctx context.Context, key string) (*Response, bool, error) {
	names, err := s.Keys(ctx)
	if err != nil {
		return nil, false, err
	}
	for _, n := range names {
		p := &redisPartition{rdb: s.rdb, key: s.partitionKey(n)}
		r, ok, err := p.Match(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return r, true, nil
		}
	}
	return nil, false, nil
}

type redisPartition struct {
	rdb *redis.Client
	key string
}

func (p *redisPartition) Match(ctx context.Context, key string) (*Response, bool, error) {
	raw, err := p.rdb.HGet(ctx, p.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache match %s: %w", key, err)
	}
	var r Response
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return &r, true, nil
}

func (p *redisPartition) Put(ctx context.Context, key string, r *Response) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode cached %s: %w", key, err)
	}
	if err := p.rdb.HSet(ctx, p.key, key, raw).Err(); err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	return nil
}
