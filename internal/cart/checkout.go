package cart

import (
	"fmt"

	"github.com/google/uuid"

	"automart/internal/domain"
)

// GenerateCheckoutData derives the order payload from the current cart.
// Empty cart is reported before any location problem.
func (e *Engine) GenerateCheckoutData(locationKey, timeSlot, paymentMethod string) (domain.CheckoutPayload, error) {
	e.mu.Lock()
	items := copyLines(e.items)
	e.mu.Unlock()

	if len(items) == 0 {
		return domain.CheckoutPayload{}, domain.ErrEmptyCart
	}
	if locationKey == "" {
		return domain.CheckoutPayload{}, domain.ErrLocationRequired
	}
	loc, ok := e.locations.Location(locationKey)
	if !ok || len(loc.Lockers) == 0 {
		return domain.CheckoutPayload{}, fmt.Errorf("%w: %q", domain.ErrInvalidLocation, locationKey)
	}

	if timeSlot == "" && len(e.cfg.TimeSlots) > 0 {
		timeSlot = e.cfg.TimeSlots[0]
	}
	if paymentMethod == "" && len(e.cfg.PaymentMethods) > 0 {
		paymentMethod = e.cfg.PaymentMethods[0]
	}

	view := buildView(items)
	orderItems := make([]domain.OrderItem, 0, len(items))
	compartments := make([]domain.Compartment, 0, len(items))
	for _, l := range items {
		orderItems = append(orderItems, domain.OrderItem{
			ProductID:   l.Product.ID,
			Name:        l.Product.Name,
			Price:       l.Product.Price,
			Quantity:    l.Quantity,
			Compartment: l.Product.Compartment,
		})
		compartments = append(compartments, l.Product.Compartment)
	}
	dominant := DominantCompartment(compartments)
	now := e.now()

	p := domain.CheckoutPayload{
		OrderID:       newOrderID(now.UnixMilli()),
		LockerID:      loc.Lockers[0],
		Location:      locationKey,
		LocationName:  loc.Name,
		Customer:      e.cfg.DefaultCustomer,
		TimeSlot:      timeSlot,
		PaymentMethod: paymentMethod,
		Items:         orderItems,
		Total:         view.TotalPrice,
		Product:       dominant,
		Compartment:   dominant,
		Quantity:      view.TotalItems,
		Timestamp:     now.UnixMilli(),
	}
	e.log.Debug("checkout_generated", map[string]any{"order_id": p.OrderID, "locker_id": p.LockerID, "compartment": string(dominant)})
	return p, nil
}

func newOrderID(ms int64) string {
	return fmt.Sprintf("ORD-%d-%s", ms, uuid.NewString()[:8])
}

// DominantCompartment is the most frequent compartment. On a tie the one that
// reached the top count first wins; no compartments means mixed.
func DominantCompartment(cs []domain.Compartment) domain.Compartment {
	freq := make(map[domain.Compartment]int, len(cs))
	best, top := domain.CompartmentMixed, 0
	for _, c := range cs {
		freq[c]++
		if freq[c] > top {
			top = freq[c]
			best = c
		}
	}
	return best
}
