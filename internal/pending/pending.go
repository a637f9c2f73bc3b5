// Package pending is the durable queue of checkouts that could not be
// submitted while offline.
package pending

import (
	"context"
	"sort"
	"sync"
	"time"

	"automart/internal/domain"
)

// Order is one queued submission.
type Order struct {
	Payload  domain.CheckoutPayload `json:"payload"`
	QueuedAt time.Time              `json:"queuedAt"`
}

// Queue holds at most one entry per order id.
type Queue interface {
	Enqueue(ctx context.Context, p domain.CheckoutPayload) error
	// List returns the entries oldest first.
	List(ctx context.Context) ([]Order, error)
	Remove(ctx context.Context, orderID string) error
}

func sortOldestFirst(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].QueuedAt.Equal(orders[j].QueuedAt) {
			return orders[i].QueuedAt.Before(orders[j].QueuedAt)
		}
		return orders[i].Payload.OrderID < orders[j].Payload.OrderID
	})
}

type Memory struct {
	mu     sync.Mutex
	orders map[string]Order
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{orders: make(map[string]Order), now: time.Now}
}

func (m *Memory) Enqueue(_ context.Context, p domain.CheckoutPayload) error {
	if p.OrderID == "" {
		return domain.Validationf("queued order without id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[p.OrderID]; ok {
		return nil
	}
	m.orders[p.OrderID] = Order{Payload: p, QueuedAt: m.now()}
	return nil
}

func (m *Memory) List(_ context.Context) ([]Order, error) {
	m.mu.Lock()
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	m.mu.Unlock()
	sortOldestFirst(out)
	return out, nil
}

func (m *Memory) Remove(_ context.Context, orderID string) error {
	m.mu.Lock()
	delete(m.orders, orderID)
	m.mu.Unlock()
	return nil
}
