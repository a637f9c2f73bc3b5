package kvs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Redis keeps values under <prefix><key> and announces writes on <prefix>changes.
type Redis struct {
	rdb    *redis.Client
	prefix string
	origin string
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, origin: uuid.NewString()}
}

func (r *Redis) Key(key string) string { return r.prefix + key }

func (r *Redis) channel() string { return r.prefix + "changes" }

func (r *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := r.rdb.Get(ctx, r.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", r.Key(key), err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", r.Key(key), err)
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.Key(key), err)
	}
	if err := r.rdb.Set(ctx, r.Key(key), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.Key(key), err)
	}
	return r.publish(ctx, r.Key(key))
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	n, err := r.rdb.Del(ctx, r.Key(key)).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", r.Key(key), err)
	}
	if n == 0 {
		return nil
	}
	return r.publish(ctx, r.Key(key))
}

func (r *Redis) Clear(ctx context.Context) error {
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if err := r.rdb.Del(ctx, k).Err(); err != nil {
			return fmt.Errorf("redis del %s: %w", k, err)
		}
		if err := r.publish(ctx, k); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s*: %w", r.prefix, err)
	}
	return nil
}

func (r *Redis) publish(ctx context.Context, nk string) error {
	msg, _ := json.Marshal(Change{Key: nk, Origin: r.origin})
	if err := r.rdb.Publish(ctx, r.channel(), msg).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", r.channel(), err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, key string) (<-chan Change, error) {
	nk := ""
	if key != "" {
		nk = r.Key(key)
	}
	ps := r.rdb.Subscribe(ctx, r.channel())
	// wait for the subscription so changes written right after are not missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", r.channel(), err)
	}

	out := make(chan Change, changeBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
					continue
				}
				if c.Origin == r.origin || !matches(nk, c.Key) {
					continue
				}
				select {
				case out <- c:
				default:
				}
			}
		}
	}()
	return out, nil
}
