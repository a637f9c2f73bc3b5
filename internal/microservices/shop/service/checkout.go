package service

import (
	"context"
	"errors"
	"fmt"

	"automart/internal/cart"
	"automart/internal/common/logger"
	"automart/internal/domain"
	"automart/internal/pending"
)

const (
	CheckoutOK     = "ok"
	CheckoutQueued = "queued"
)

type CheckoutRequest struct {
	Location      string `json:"location"`
	TimeSlot      string `json:"timeSlot"`
	PaymentMethod string `json:"paymentMethod"`
}

type CheckoutResult struct {
	Status       string             `json:"status"`
	OrderID      string             `json:"orderId"`
	LockerID     string             `json:"lockerId"`
	LocationName string             `json:"locationName"`
	Products     []domain.OrderItem `json:"products"`
	Total        string             `json:"total"`
}

type CheckoutServiceInterface interface {
	Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error)
}

type CheckoutService struct {
	engine *cart.Engine
	submit Submitter
	queue  pending.Queue
	log    *logger.Logger
}

func NewCheckoutService(e *cart.Engine, s Submitter, q pending.Queue, log *logger.Logger) CheckoutServiceInterface {
	return &CheckoutService{engine: e, submit: s, queue: q, log: log}
}

// Checkout submits the cart. When the order service cannot be reached the
// payload is queued for background sync; either way the cart is emptied.
// A server-side rejection keeps the cart.
func (cs *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	payload, err := cs.engine.GenerateCheckoutData(req.Location, req.TimeSlot, req.PaymentMethod)
	if err != nil {
		return CheckoutResult{}, err
	}
	res := CheckoutResult{
		OrderID:      payload.OrderID,
		LockerID:     payload.LockerID,
		LocationName: payload.LocationName,
		Products:     payload.Items,
		Total:        domain.FormatPrice(payload.Total),
	}

	resp, err := cs.submit.CompleteOrder(ctx, payload.OrderRequest())
	switch {
	case err == nil:
		res.Status = CheckoutOK
		if len(resp.Products) > 0 {
			res.Products = resp.Products
		}
		cs.engine.Clear(ctx)
		cs.log.Info("checkout_completed", map[string]any{"order_id": payload.OrderID, "locker_id": payload.LockerID})
		return res, nil

	case domain.IsQueueEligible(err):
		if qerr := cs.queue.Enqueue(context.WithoutCancel(ctx), payload); qerr != nil {
			cs.log.Error("checkout_queue_failed", qerr, map[string]any{"order_id": payload.OrderID})
			return CheckoutResult{}, fmt.Errorf("queue order %s: %w", payload.OrderID, errors.Join(err, qerr))
		}
		res.Status = CheckoutQueued
		cs.engine.Clear(ctx)
		cs.log.Warn("checkout_queued", map[string]any{"order_id": payload.OrderID, "reason": err.Error()})
		return res, nil

	default:
		cs.log.Error("checkout_failed", err, map[string]any{"order_id": payload.OrderID})
		return CheckoutResult{}, err
	}
}
