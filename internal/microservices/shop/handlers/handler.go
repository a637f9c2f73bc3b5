package handlers

import (
	"automart/internal/common/logger"
	"automart/internal/microservices/shop/service"
)

type Handler struct {
	CartHandler        *CartHandler
	CheckoutHandler    *CheckoutHandler
	PreferencesHandler *PreferencesHandler
	ShopHandler        *ShopHandler
}

func New(s *service.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		CartHandler:        NewCartHandler(s.CartService, log),
		CheckoutHandler:    NewCheckoutHandler(s.CheckoutService),
		PreferencesHandler: NewPreferencesHandler(s.PreferencesService),
		ShopHandler:        NewShopHandler(s),
	}
}
