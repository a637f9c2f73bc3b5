package pending

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"automart/internal/common/logger"
	"automart/internal/domain"
)

// DB is the part of *pgxpool.Pool the queue needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Postgres struct {
	db  DB
	log *logger.Logger
	now func() time.Time
}

func NewPostgres(db DB, lg *logger.Logger) *Postgres {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Postgres{db: db, log: lg, now: time.Now}
}

const pendingSchema = `
CREATE TABLE IF NOT EXISTS pending_orders (
    order_id   TEXT PRIMARY KEY,
    payload    JSONB NOT NULL,
    queued_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, pendingSchema); err != nil {
		return fmt.Errorf("create pending_orders: %w", err)
	}
	return nil
}

func (p *Postgres) Enqueue(ctx context.Context, payload domain.CheckoutPayload) error {
	if payload.OrderID == "" {
		return domain.Validationf("queued order without id")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode pending order %s: %w", payload.OrderID, err)
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO pending_orders (order_id, payload, queued_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id) DO NOTHING
	`, payload.OrderID, raw, p.now().UTC())
	if err != nil {
		return fmt.Errorf("insert pending order %s: %w", payload.OrderID, err)
	}
	return nil
}

// List skips rows whose payload no longer decodes into an order.
func (p *Postgres) List(ctx context.Context) ([]Order, error) {
	rows, err := p.db.Query(ctx, `
		SELECT order_id, payload, queued_at FROM pending_orders
		ORDER BY queued_at, order_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var (
			id  string
			raw []byte
			o   Order
		)
		if err := rows.Scan(&id, &raw, &o.QueuedAt); err != nil {
			return nil, fmt.Errorf("scan pending order: %w", err)
		}
		if err := json.Unmarshal(raw, &o.Payload); err != nil {
			p.log.Error("pending_order_undecodable", err, map[string]any{"order_id": id, "table": "pending_orders"})
			continue
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	return out, nil
}

func (p *Postgres) Remove(ctx context.Context, orderID string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM pending_orders WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("delete pending order %s: %w", orderID, err)
	}
	return nil
}
