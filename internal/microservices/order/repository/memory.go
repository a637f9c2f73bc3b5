package repository

import (
	"context"
	"sort"
	"sync"

	"automart/internal/domain"
)

type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	seq    map[string]int
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]domain.Order), seq: make(map[string]int)}
}

func (m *MemoryOrderRepository) AddOrder(_ context.Context, order domain.Order) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; ok {
		return false, nil
	}
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders[order.ID] = order
	m.seq[order.ID] = len(m.seq)
	return true, nil
}

func (m *MemoryOrderRepository) GetOrder(_ context.Context, id string) (domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.NotFoundf("order %s", id)
	}
	return o, nil
}

func (m *MemoryOrderRepository) ListOrders(_ context.Context, offset, limit int) ([]domain.Order, int, error) {
	m.mu.RLock()
	all := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		all = append(all, o)
	}
	seq := make(map[string]int, len(m.seq))
	for k, v := range m.seq {
		seq[k] = v
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return seq[all[i].ID] > seq[all[j].ID]
	})
	if offset >= len(all) {
		return []domain.Order{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}
