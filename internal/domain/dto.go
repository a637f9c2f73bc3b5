package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is the line snapshot sent with an order.
type OrderItem struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Compartment Compartment     `json:"compartment"`
}

// CheckoutPayload is derived from cart state right before submission.
type CheckoutPayload struct {
	OrderID       string          `json:"orderId"`
	LockerID      string          `json:"lockerId"`
	Location      string          `json:"location"`
	LocationName  string          `json:"locationName"`
	Customer      string          `json:"customer"`
	TimeSlot      string          `json:"timeSlot"`
	PaymentMethod string          `json:"paymentMethod"`
	Items         []OrderItem     `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Product       Compartment     `json:"product"`
	Compartment   Compartment     `json:"compartment"`
	Quantity      int             `json:"quantity"`
	Timestamp     int64           `json:"timestamp"`
}

// OrderRequest converts the payload into the POST /order/complete body.
func (p CheckoutPayload) OrderRequest() OrderCompleteRequest {
	return OrderCompleteRequest{
		OrderID:     p.OrderID,
		LockerID:    p.LockerID,
		Product:     p.Product,
		Items:       append([]OrderItem(nil), p.Items...),
		Total:       p.Total,
		Customer:    p.Customer,
		Location:    p.Location,
		Compartment: p.Compartment,
		Quantity:    p.Quantity,
		Timestamp:   p.Timestamp,
	}
}

// OrderCompleteRequest is the body of POST /order/complete.
// Products is accepted for callers that send the locker payload directly.
type OrderCompleteRequest struct {
	OrderID     string          `json:"orderId"`
	LockerID    string          `json:"lockerId"`
	Product     Compartment     `json:"product,omitempty"`
	Items       []OrderItem     `json:"items"`
	Products    []OrderItem     `json:"products,omitempty"`
	Total       decimal.Decimal `json:"total"`
	Customer    string          `json:"customer,omitempty"`
	Location    string          `json:"location,omitempty"`
	Compartment Compartment     `json:"compartment,omitempty"`
	Quantity    int             `json:"quantity,omitempty"`
	Timestamp   int64           `json:"timestamp,omitempty"`
}

// OrderDefaults fill the optional fields of an order request.
type OrderDefaults struct {
	Customer string
	Location string
}

// Validate checks the fields an order cannot be dispatched without.
func (r OrderCompleteRequest) Validate() error {
	if r.OrderID == "" || r.LockerID == "" {
		return Validationf("incomplete order data: orderId and lockerId are required")
	}
	return nil
}

// WithDefaults returns a copy with every missing optional field filled.
func (r OrderCompleteRequest) WithDefaults(d OrderDefaults, now time.Time) OrderCompleteRequest {
	if r.Product == "" {
		r.Product = CompartmentMixed
	}
	if r.Items == nil {
		r.Items = []OrderItem{}
	}
	if r.Customer == "" {
		r.Customer = d.Customer
	}
	if r.Location == "" {
		r.Location = d.Location
	}
	if r.Compartment == "" {
		r.Compartment = CompartmentMixed
	}
	if r.Quantity <= 0 {
		r.Quantity = 1
	}
	if r.Timestamp == 0 {
		r.Timestamp = now.UnixMilli()
	}
	return r
}

// LockerProducts is what the locker is told to release.
func (r OrderCompleteRequest) LockerProducts() []OrderItem {
	if len(r.Products) > 0 {
		return r.Products
	}
	return r.Items
}

type OrderCompleteResponse struct {
	Status   string      `json:"status"`
	OrderID  string      `json:"orderId"`
	LockerID string      `json:"lockerId"`
	Products []OrderItem `json:"products"`
}

type PickupRequest struct {
	OrderID   string `json:"orderId"`
	LockerID  string `json:"lockerId"`
	Action    string `json:"action,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Order is a completed order as recorded by the order service.
type Order struct {
	ID          string          `json:"id"`
	LockerID    string          `json:"lockerId"`
	Customer    string          `json:"customer"`
	Location    string          `json:"location"`
	Items       []OrderItem     `json:"items"`
	Total       decimal.Decimal `json:"total"`
	Compartment Compartment     `json:"compartment"`
	Quantity    int             `json:"quantity"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type ProductPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	HasMore  bool      `json:"hasMore"`
}

type OrderPage struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}
