package service

import (
	"context"

	"automart/internal/cart"
	"automart/internal/catalog"
	"automart/internal/common/logger"
	"automart/internal/domain"
	"automart/internal/kvs"
	"automart/internal/pending"
)

// Submitter sends an order to the order service.
type Submitter interface {
	CompleteOrder(ctx context.Context, req domain.OrderCompleteRequest) (domain.OrderCompleteResponse, error)
}

type Service struct {
	CartService        CartServiceInterface
	CheckoutService    CheckoutServiceInterface
	PreferencesService PreferencesServiceInterface
	Catalog            *catalog.Catalog
}

type Deps struct {
	Engine      *cart.Engine
	Catalog     *catalog.Catalog
	Store       kvs.Store
	Queue       pending.Queue
	Submitter   Submitter
	Preferences PreferencesConfig
	Log         *logger.Logger
}

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return &Service{
		CartService:        NewCartService(d.Engine, d.Catalog),
		CheckoutService:    NewCheckoutService(d.Engine, d.Submitter, d.Queue, d.Log),
		PreferencesService: NewPreferencesService(d.Store, d.Catalog, d.Preferences),
		Catalog:            d.Catalog,
	}
}
