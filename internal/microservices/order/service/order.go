package service

import (
	"context"
	"fmt"
	"time"

	"automart/internal/common/logger"
	"automart/internal/domain"
	"automart/internal/locker"
	"automart/internal/metrics"
	"automart/internal/microservices/order/repository"
)

const (
	StatusOK = "ok"

	defaultPageSize = 20
	maxPageSize     = 100
	publishTimeout  = 5 * time.Second
)

type OrderServiceInterface interface {
	CompleteOrder(ctx context.Context, req domain.OrderCompleteRequest) (domain.OrderCompleteResponse, error)
	OpenPickup(ctx context.Context, req domain.PickupRequest) (domain.OrderCompleteResponse, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, page, limit int) (domain.OrderPage, error)
}

type OrderService struct {
	db       repository.OrderRepositoryInterface
	sink     locker.Sink
	defaults domain.OrderDefaults
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewOrderService(db repository.OrderRepositoryInterface, sink locker.Sink, defaults domain.OrderDefaults, log *logger.Logger, m *metrics.Metrics) OrderServiceInterface {
	if log == nil {
		log = logger.Nop()
	}
	return &OrderService{db: db, sink: sink, defaults: defaults, log: log, metrics: m, now: time.Now}
}

// CompleteOrder records the order and tells the locker to open. A repeated
// order id is answered like the first one without a second command. A
// failing sink is logged; the order still counts as completed.
func (s *OrderService) CompleteOrder(ctx context.Context, req domain.OrderCompleteRequest) (domain.OrderCompleteResponse, error) {
	if err := req.Validate(); err != nil {
		s.metrics.Order("invalid")
		return domain.OrderCompleteResponse{}, err
	}
	now := s.now()
	req = req.WithDefaults(s.defaults, now)
	products := req.LockerProducts()

	order := domain.Order{
		ID:          req.OrderID,
		LockerID:    req.LockerID,
		Customer:    req.Customer,
		Location:    req.Location,
		Items:       products,
		Total:       req.Total,
		Compartment: req.Compartment,
		Quantity:    req.Quantity,
		Status:      StatusOK,
		CreatedAt:   now.UTC(),
	}
	resp := domain.OrderCompleteResponse{
		Status:   StatusOK,
		OrderID:  req.OrderID,
		LockerID: req.LockerID,
		Products: products,
	}

	created, err := s.db.AddOrder(ctx, order)
	if err != nil {
		s.metrics.Order("error")
		return domain.OrderCompleteResponse{}, fmt.Errorf("failed to save order: %w", err)
	}
	if !created {
		s.metrics.Order("duplicate")
		s.log.Info("order_duplicate", map[string]any{"order_id": req.OrderID})
		return resp, nil
	}
	s.log.Info("order_received", map[string]any{
		"order_id":  order.ID,
		"locker_id": order.LockerID,
		"items":     len(products),
		"total":     order.Total.StringFixed(2),
	})

	if err := s.dispatch(ctx, order.ID, order.LockerID, products); err != nil {
		s.log.Error("locker_publish_failed", err, map[string]any{"order_id": order.ID, "locker_id": order.LockerID})
	}
	s.metrics.Order(StatusOK)
	return resp, nil
}

// OpenPickup sends the open command again for a recorded order.
func (s *OrderService) OpenPickup(ctx context.Context, req domain.PickupRequest) (domain.OrderCompleteResponse, error) {
	if req.OrderID == "" {
		return domain.OrderCompleteResponse{}, domain.Validationf("orderId is required")
	}
	order, err := s.db.GetOrder(ctx, req.OrderID)
	if err != nil {
		return domain.OrderCompleteResponse{}, err
	}
	lockerID := order.LockerID
	if req.LockerID != "" {
		lockerID = req.LockerID
	}
	if err := s.dispatch(ctx, order.ID, lockerID, order.Items); err != nil {
		return domain.OrderCompleteResponse{}, fmt.Errorf("open locker %s: %w", lockerID, err)
	}
	s.log.Info("pickup_opened", map[string]any{"order_id": order.ID, "locker_id": lockerID})
	return domain.OrderCompleteResponse{Status: StatusOK, OrderID: order.ID, LockerID: lockerID, Products: order.Items}, nil
}

func (s *OrderService) dispatch(ctx context.Context, orderID, lockerID string, products []domain.OrderItem) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	return s.sink.Send(pctx, locker.OpenCommand(orderID, lockerID, products, s.now()))
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.db.GetOrder(ctx, id)
}

func (s *OrderService) ListOrders(ctx context.Context, page, limit int) (domain.OrderPage, error) {
	page, limit = clampPage(page, limit)
	orders, total, err := s.db.ListOrders(ctx, (page-1)*limit, limit)
	if err != nil {
		return domain.OrderPage{}, err
	}
	return domain.OrderPage{Orders: orders, Total: total, Page: page, Limit: limit}, nil
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
