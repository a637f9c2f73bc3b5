package pending

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"automart/internal/common/logger"
	"automart/internal/domain"
)

// Redis keeps the queue in one hash, field = order id.
type Redis struct {
	rdb *redis.Client
	key string
	log *logger.Logger
	now func() time.Time
}

func NewRedis(rdb *redis.Client, prefix string, lg *logger.Logger) *Redis {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Redis{rdb: rdb, key: prefix + "offline_orders", log: lg, now: time.Now}
}

func (r *Redis) Enqueue(ctx context.Context, p domain.CheckoutPayload) error {
	if p.OrderID == "" {
		return domain.Validationf("queued order without id")
	}
	raw, err := json.Marshal(Order{Payload: p, QueuedAt: r.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode pending order %s: %w", p.OrderID, err)
	}
	if err := r.rdb.HSetNX(ctx, r.key, p.OrderID, raw).Err(); err != nil {
		return fmt.Errorf("redis hsetnx %s: %w", r.key, err)
	}
	return nil
}

// List skips entries that no longer decode so one bad field cannot stall
// the drain. They stay in the hash for inspection.
func (r *Redis) List(ctx context.Context) ([]Order, error) {
	all, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", r.key, err)
	}
	out := make([]Order, 0, len(all))
	for id, raw := range all {
		var o Order
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			r.log.Error("pending_order_undecodable", err, map[string]any{"order_id": id, "key": r.key})
			continue
		}
		out = append(out, o)
	}
	sortOldestFirst(out)
	return out, nil
}

func (r *Redis) Remove(ctx context.Context, orderID string) error {
	if err := r.rdb.HDel(ctx, r.key, orderID).Err(); err != nil {
		return fmt.Errorf("redis hdel %s: %w", r.key, err)
	}
	return nil
}
