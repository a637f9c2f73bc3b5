package handlers

import (
	"net/http"
	"time"

	"automart/internal/catalog"
	"automart/internal/common/httpx"
	"automart/internal/microservices/order/service"
)

type CatalogHandler struct {
	service service.CatalogServiceInterface
	started time.Time
}

func NewCatalogHandler(s service.CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{service: s, started: time.Now()}
}

func (ch *CatalogHandler) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Backend läuft!"))
}

func (ch *CatalogHandler) Health(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "order-service",
		"uptime":  time.Since(ch.started).Round(time.Second).String(),
	})
}

func (ch *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		category = catalog.CategoryAll
	}
	httpx.WriteJSON(w, http.StatusOK, ch.service.ListProducts(category, httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "limit", 0)))
}

func (ch *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := ch.service.GetProduct(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (ch *CatalogHandler) ListLocations(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, ch.service.ListLocations())
}

func (ch *CatalogHandler) ListCategories(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"categories": ch.service.ListCategories()})
}
