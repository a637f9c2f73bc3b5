package service

import (
	"automart/internal/catalog"
	"automart/internal/common/logger"
	"automart/internal/domain"
	"automart/internal/locker"
	"automart/internal/metrics"
	"automart/internal/microservices/order/repository"
)

type Service struct {
	OrderService   OrderServiceInterface
	CatalogService CatalogServiceInterface
}

func New(db *repository.Repository, sink locker.Sink, cat *catalog.Catalog, defaults domain.OrderDefaults, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		OrderService:   NewOrderService(db.OrderRepo, sink, defaults, log, m),
		CatalogService: NewCatalogService(cat),
	}
}
