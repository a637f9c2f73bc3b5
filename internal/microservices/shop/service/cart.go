package service

import (
	"context"

	"automart/internal/cart"
	"automart/internal/catalog"
	"automart/internal/domain"
)

type CartServiceInterface interface {
	View() cart.View
	AddItem(ctx context.Context, productID string, quantity int) (domain.CartLineItem, error)
	UpdateItem(ctx context.Context, lineID string, quantity int) error
	RemoveItem(ctx context.Context, lineID string) (domain.CartLineItem, error)
	Clear(ctx context.Context)
	Validate() []string
	Subscribe(l cart.Listener) (unsubscribe func())
}

type CartService struct {
	engine  *cart.Engine
	catalog *catalog.Catalog
}

func NewCartService(e *cart.Engine, c *catalog.Catalog) CartServiceInterface {
	return &CartService{engine: e, catalog: c}
}

func (cs *CartService) View() cart.View { return cs.engine.CartView() }

// AddItem looks the product up in the catalog; quantity 0 means one.
func (cs *CartService) AddItem(ctx context.Context, productID string, quantity int) (domain.CartLineItem, error) {
	if productID == "" {
		return domain.CartLineItem{}, domain.Validationf("productId is required")
	}
	p, err := cs.catalog.Product(productID)
	if err != nil {
		return domain.CartLineItem{}, err
	}
	if quantity == 0 {
		quantity = 1
	}
	return cs.engine.AddItem(ctx, p, quantity)
}

func (cs *CartService) UpdateItem(ctx context.Context, lineID string, quantity int) error {
	return cs.engine.UpdateItemQuantity(ctx, lineID, quantity)
}

func (cs *CartService) RemoveItem(ctx context.Context, lineID string) (domain.CartLineItem, error) {
	return cs.engine.RemoveItem(ctx, lineID)
}

func (cs *CartService) Clear(ctx context.Context) { cs.engine.Clear(ctx) }

func (cs *CartService) Validate() []string { return cs.engine.Validate() }

func (cs *CartService) Subscribe(l cart.Listener) func() { return cs.engine.Subscribe(l) }
