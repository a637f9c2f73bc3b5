package order

import (
	"context"
	"net/http"
	"strconv"

	"automart/internal/catalog"
	"automart/internal/common/httpx"
	"automart/internal/common/logger"
	"automart/internal/config"
	"automart/internal/connections/database"
	"automart/internal/domain"
	"automart/internal/locker"
	"automart/internal/metrics"
	"automart/internal/microservices/order/handlers"
	"automart/internal/microservices/order/repository"
	"automart/internal/microservices/order/service"
)

func Run(ctx context.Context, cfg *config.Config, port int) error {
	lg := logger.New("order-service")
	m := metrics.New()

	cat, err := catalog.Open(cfg.Catalog.File)
	if err != nil {
		return err
	}

	repo := repository.NewInMemory()
	if cfg.Database.Host != "" {
		pool, err := database.Connect(ctx, cfg.Database, lg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := repository.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		repo = repository.New(pool)
	}

	sink, err := locker.Build(ctx, cfg, lg, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			lg.Error("locker_close_failed", err, nil)
		}
	}()

	defaults := domain.OrderDefaults{Customer: cfg.User.DefaultName, Location: cfg.User.DefaultLocation}
	svc := service.New(repo, sink, cat, defaults, lg, m)
	handler := handlers.New(svc)

	lg.Info("listening", map[string]any{"port": port, "locker_driver": cfg.Locker.Driver, "postgres": cfg.Database.Host != ""})
	return httpx.New(":"+strconv.Itoa(port), Routes(handler, m)).Run(ctx)
}

func Routes(handler *handlers.Handler, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", handler.CatalogHandler.Root)
	mux.HandleFunc("GET /health", handler.CatalogHandler.Health)
	mux.HandleFunc("GET /products", handler.CatalogHandler.ListProducts)
	mux.HandleFunc("GET /products/{id}", handler.CatalogHandler.GetProduct)
	mux.HandleFunc("GET /locations", handler.CatalogHandler.ListLocations)
	mux.HandleFunc("GET /categories", handler.CatalogHandler.ListCategories)

	mux.HandleFunc("POST /order/complete", handler.OrderHandler.CompleteOrder)
	mux.HandleFunc("POST /pickup/open", handler.OrderHandler.OpenPickup)
	mux.HandleFunc("GET /orders", handler.OrderHandler.ListOrders)
	mux.HandleFunc("GET /orders/{id}", handler.OrderHandler.GetOrder)

	mux.Handle("GET /metrics", m.Handler())
	return httpx.CORS(mux)
}
