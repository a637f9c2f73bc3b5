package handlers

import "automart/internal/microservices/order/service"

type Handler struct {
	OrderHandler   *OrderHandler
	CatalogHandler *CatalogHandler
}

func New(s *service.Service) *Handler {
	return &Handler{
		OrderHandler:   NewOrderHandler(s.OrderService),
		CatalogHandler: NewCatalogHandler(s.CatalogService),
	}
}
