package shop

import (
	"context"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"automart/internal/apiclient"
	"automart/internal/cart"
	"automart/internal/catalog"
	"automart/internal/common/httpx"
	"automart/internal/common/logger"
	"automart/internal/config"
	"automart/internal/connections"
	"automart/internal/metrics"
	"automart/internal/microservices/shop/handlers"
	"automart/internal/microservices/shop/service"
	"automart/internal/offline"
)

func Run(ctx context.Context, cfg *config.Config, port int) error {
	lg := logger.New("shop-service")
	m := metrics.New()
	res := connections.New(cfg, lg)
	defer res.Close()

	cat, err := catalog.Open(cfg.Catalog.File)
	if err != nil {
		return err
	}
	store, err := res.KVS(ctx, nil)
	if err != nil {
		return err
	}
	queue, err := res.PendingQueue(ctx)
	if err != nil {
		return err
	}

	api := apiclient.New(apiclient.Config{
		BaseURL:         cfg.API.BaseURL,
		Timeout:         cfg.API.Timeout,
		DefaultCustomer: cfg.User.DefaultName,
		DefaultLocation: cfg.User.DefaultLocation,
	}, apiclient.WithLogger(lg.With("api-client")))

	engine := cart.New(ctx, store, cat, CartConfig(cfg), cart.WithLogger(lg.With("cart")), cart.WithMetrics(m))
	if err := engine.Watch(ctx, store); err != nil {
		return err
	}

	svc := service.New(service.Deps{
		Engine:    engine,
		Catalog:   cat,
		Store:     store,
		Queue:     queue,
		Submitter: api,
		Preferences: service.PreferencesConfig{
			StorageKey:      cfg.User.StorageKey,
			DefaultName:     cfg.User.DefaultName,
			DefaultLocation: cfg.User.DefaultLocation,
		},
		Log: lg,
	})
	handler := handlers.New(svc, lg)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Queue.Driver == "" || cfg.Queue.Driver == "memory" {
		// no other process can reach an in-memory queue, so drain it here
		syncer := offline.NewSyncer(queue, api, cfg.Sync.Tag, lg.With("sync"), m)
		watcher := offline.NewConnectivityWatcher(api, syncer, cfg.Sync.ProbeInterval, 0, lg.With("sync"))
		g.Go(func() error { return watcher.Run(gctx) })
	}
	g.Go(func() error {
		lg.Info("listening", map[string]any{"port": port, "api": cfg.API.BaseURL, "storage": cfg.Storage.Driver, "queue": cfg.Queue.Driver})
		return httpx.New(":"+strconv.Itoa(port), Routes(handler, m)).Run(gctx)
	})
	return g.Wait()
}

// CartConfig maps the cart and checkout settings onto the engine.
func CartConfig(cfg *config.Config) cart.Config {
	methods := make([]string, 0, len(cfg.Checkout.PaymentMethods))
	for _, pm := range cfg.Checkout.PaymentMethods {
		methods = append(methods, pm.ID)
	}
	return cart.Config{
		MaxItems:           cfg.Cart.MaxItems,
		MaxQuantityPerItem: cfg.Cart.MaxQuantityPerItem,
		StorageKey:         cfg.Cart.StorageKey,
		DefaultCustomer:    cfg.User.DefaultName,
		TimeSlots:          cfg.Checkout.TimeSlots,
		PaymentMethods:     methods,
	}
}

func Routes(handler *handlers.Handler, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.ShopHandler.Health)
	mux.HandleFunc("GET /products", handler.ShopHandler.ListProducts)
	mux.HandleFunc("GET /products/featured", handler.ShopHandler.Featured)
	mux.HandleFunc("GET /locations", handler.ShopHandler.Locations)

	mux.HandleFunc("GET /cart", handler.CartHandler.GetCart)
	mux.HandleFunc("GET /cart/validate", handler.CartHandler.Validate)
	mux.HandleFunc("GET /cart/events", handler.CartHandler.Events)
	mux.HandleFunc("POST /cart/items", handler.CartHandler.AddItem)
	mux.HandleFunc("PATCH /cart/items/{lineId}", handler.CartHandler.UpdateItem)
	mux.HandleFunc("DELETE /cart/items/{lineId}", handler.CartHandler.RemoveItem)
	mux.HandleFunc("DELETE /cart", handler.CartHandler.Clear)

	mux.HandleFunc("POST /checkout", handler.CheckoutHandler.Checkout)

	mux.HandleFunc("GET /preferences", handler.PreferencesHandler.Get)
	mux.HandleFunc("PUT /preferences", handler.PreferencesHandler.Put)

	mux.Handle("GET /metrics", m.Handler())
	mux.Handle("GET /", Assets())
	return httpx.CORS(mux)
}
