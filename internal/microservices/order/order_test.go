package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automart/internal/catalog"
	"automart/internal/domain"
	"automart/internal/metrics"
	"automart/internal/microservices/order/handlers"
	"automart/internal/microservices/order/repository"
	"automart/internal/microservices/order/service"
)

type recordingSink struct {
	mu   sync.Mutex
	cmds []domain.LockerCommand
	err  error
}

func (s *recordingSink) Send(_ context.Context, cmd domain.LockerCommand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmds = append(s.cmds, cmd)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

func newServer(t *testing.T, sink *recordingSink) *httptest.Server {
	t.Helper()
	defaults := domain.OrderDefaults{Customer: "Testbenutzer 1", Location: "markt-xy"}
	svc := service.New(repository.NewInMemory(), sink, catalog.Default(), defaults, nil, metrics.New())
	srv := httptest.NewServer(Routes(handlers.New(svc), metrics.New()))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

const orderBody = `{"orderId":"ORD-1","lockerId":"locker-001","items":[{"productId":"p001","name":"Tiefkühlpizza","price":2.21,"quantity":2,"compartment":"freezer"}],"total":4.42}`

func TestCompleteOrderSendsOpenCommand(t *testing.T) {
	sink := &recordingSink{}
	srv := newServer(t, sink)

	resp, out := post(t, srv, "/order/complete", orderBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "ORD-1", out["orderId"])
	assert.Equal(t, "locker-001", out["lockerId"])
	assert.Len(t, out["products"], 1)

	require.Len(t, sink.cmds, 1)
	cmd := sink.cmds[0]
	assert.Equal(t, domain.LockerCmdOpen, cmd.Cmd)
	assert.Equal(t, "locker-001", cmd.LockerID)
	assert.Equal(t, 2, cmd.Products[0].Quantity)
	assert.NotZero(t, cmd.Ts)

	var order domain.Order
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/orders/ORD-1", &order))
	assert.Equal(t, "Testbenutzer 1", order.Customer)
	assert.Equal(t, "markt-xy", order.Location)
	assert.Equal(t, domain.CompartmentMixed, order.Compartment)
	assert.Equal(t, "4.42", order.Total.StringFixed(2))
}

func TestCompleteOrderIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	srv := newServer(t, sink)

	for i := 0; i < 2; i++ {
		resp, out := post(t, srv, "/order/complete", orderBody)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", out["status"])
	}
	assert.Len(t, sink.cmds, 1)
}

func TestCompleteOrderValidation(t *testing.T) {
	sink := &recordingSink{}
	srv := newServer(t, sink)

	resp, out := post(t, srv, "/order/complete", `{"orderId":"ORD-1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["detail"], "lockerId")

	resp, _ = post(t, srv, "/order/complete", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, sink.cmds)
}

func TestCompleteOrderSurvivesSinkFailure(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	srv := newServer(t, sink)

	resp, out := post(t, srv, "/order/complete", orderBody)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])
}

func TestOpenPickup(t *testing.T) {
	sink := &recordingSink{}
	srv := newServer(t, sink)

	resp, _ := post(t, srv, "/pickup/open", `{"orderId":"ORD-404"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	post(t, srv, "/order/complete", orderBody)
	resp, out := post(t, srv, "/pickup/open", `{"orderId":"ORD-1","action":"open"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "locker-001", out["lockerId"])
	assert.Len(t, sink.cmds, 2)

	sink.err = errors.New("broker down")
	resp, _ = post(t, srv, "/pickup/open", `{"orderId":"ORD-1"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestListOrdersNewestFirst(t *testing.T) {
	srv := newServer(t, &recordingSink{})
	for _, id := range []string{"ORD-1", "ORD-2", "ORD-3"} {
		body := strings.Replace(orderBody, "ORD-1", id, 1)
		resp, _ := post(t, srv, "/order/complete", body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	var page domain.OrderPage
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/orders?limit=2", &page))
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, "ORD-3", page.Orders[0].ID)
	assert.Equal(t, "ORD-2", page.Orders[1].ID)

	require.Equal(t, http.StatusOK, getJSON(t, srv, "/orders?page=2&limit=2", &page))
	require.Len(t, page.Orders, 1)
	assert.Equal(t, "ORD-1", page.Orders[0].ID)
}

func TestCatalogRoutes(t *testing.T) {
	srv := newServer(t, &recordingSink{})

	var page domain.ProductPage
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/products?category=all&limit=4", &page))
	assert.Equal(t, 6, page.Total)
	assert.Len(t, page.Products, 4)
	assert.True(t, page.HasMore)

	var p domain.Product
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/products/p001", &p))
	assert.Equal(t, "p001", p.ID)
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv, "/products/nope", nil))

	var locs []domain.Location
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/locations", &locs))
	assert.NotEmpty(t, locs)

	var health map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/health", &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
