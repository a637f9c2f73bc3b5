package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"automart/internal/domain"
)

type OrderRepositoryInterface interface {
	// AddOrder reports false when an order with the same id already exists.
	AddOrder(ctx context.Context, order domain.Order) (bool, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	// ListOrders returns one page, newest first, and the total count.
	ListOrders(ctx context.Context, offset, limit int) ([]domain.Order, int, error)
}

// DB is the part of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type OrderRepository struct {
	db DB
}

func NewOrderRepository(db DB) OrderRepositoryInterface {
	return &OrderRepository{db: db}
}

const ordersSchema = `
CREATE TABLE IF NOT EXISTS orders (
    id          TEXT PRIMARY KEY,
    locker_id   TEXT NOT NULL,
    customer    TEXT NOT NULL DEFAULT '',
    location    TEXT NOT NULL DEFAULT '',
    items       JSONB NOT NULL DEFAULT '[]',
    total       NUMERIC(10,2) NOT NULL DEFAULT 0,
    compartment TEXT NOT NULL DEFAULT 'mixed',
    quantity    INT NOT NULL DEFAULT 1,
    status      TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS orders_created_at_idx ON orders (created_at DESC)`

// EnsureSchema creates the orders table when it is missing.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, ordersSchema); err != nil {
		return fmt.Errorf("create orders table: %w", err)
	}
	return nil
}

func (or *OrderRepository) AddOrder(ctx context.Context, order domain.Order) (bool, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return false, fmt.Errorf("encode items of %s: %w", order.ID, err)
	}
	tag, err := or.db.Exec(ctx, `
		INSERT INTO orders
		    (id, locker_id, customer, location, items, total, compartment, quantity, status, created_at)
		VALUES
		    ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`,
		order.ID,
		order.LockerID,
		order.Customer,
		order.Location,
		items,
		order.Total.StringFixed(2),
		string(order.Compartment),
		order.Quantity,
		order.Status,
		order.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const orderColumns = `id, locker_id, customer, location, items, total::text, compartment, quantity, status, created_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o           domain.Order
		items       []byte
		total       string
		compartment string
	)
	if err := row.Scan(&o.ID, &o.LockerID, &o.Customer, &o.Location, &items, &total, &compartment, &o.Quantity, &o.Status, &o.CreatedAt); err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return domain.Order{}, fmt.Errorf("decode items of %s: %w", o.ID, err)
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return domain.Order{}, fmt.Errorf("decode total of %s: %w", o.ID, err)
	}
	o.Total = d
	o.Compartment = domain.Compartment(compartment)
	return o, nil
}

func (or *OrderRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(or.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.NotFoundf("order %s", id)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return o, nil
}

func (or *OrderRepository) ListOrders(ctx context.Context, offset, limit int) ([]domain.Order, int, error) {
	var total int
	if err := or.db.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to get order count: %w", err)
	}

	rows, err := or.db.Query(ctx, `SELECT `+orderColumns+` FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}
