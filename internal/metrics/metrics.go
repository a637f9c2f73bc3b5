package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry. A nil *Metrics records nothing.
type Metrics struct {
	reg *prometheus.Registry

	CacheRequests  *prometheus.CounterVec
	CartMutations  *prometheus.CounterVec
	Orders         *prometheus.CounterVec
	SyncOrders     *prometheus.CounterVec
	LockerCommands *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automart_cache_requests_total",
			Help: "Intercepted requests by caching strategy and outcome.",
		}, []string{"strategy", "result"}),
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automart_cart_mutations_total",
			Help: "Cart operations by kind and outcome.",
		}, []string{"op", "result"}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automart_orders_total",
			Help: "Order submissions by outcome.",
		}, []string{"result"}),
		SyncOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automart_sync_orders_total",
			Help: "Queued offline orders resubmitted by background sync.",
		}, []string{"result"}),
		LockerCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "automart_locker_commands_total",
			Help: "Locker commands handed to the sink.",
		}, []string{"driver", "result"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CacheRequests, m.CartMutations, m.Orders, m.SyncOrders, m.LockerCommands,
	)
	return m
}

// Handler serves the registry in the text exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Cache(strategy, result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(strategy, result).Inc()
}

func (m *Metrics) Cart(op string, err error) {
	if m == nil {
		return
	}
	m.CartMutations.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) Order(res string) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(res).Inc()
}

func (m *Metrics) Sync(err error) {
	if m == nil {
		return
	}
	m.SyncOrders.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) Locker(driver string, err error) {
	if m == nil {
		return
	}
	m.LockerCommands.WithLabelValues(driver, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
