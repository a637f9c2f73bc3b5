package handlers

import (
	"net/http"

	"automart/internal/catalog"
	"automart/internal/common/httpx"
	"automart/internal/microservices/shop/service"
)

type ShopHandler struct {
	svc *service.Service
}

func NewShopHandler(s *service.Service) *ShopHandler { return &ShopHandler{svc: s} }

func (sh *ShopHandler) Health(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "shop-service"})
}

func (sh *ShopHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		category = catalog.CategoryAll
	}
	httpx.WriteJSON(w, http.StatusOK, sh.svc.Catalog.ListProducts(category, httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "limit", 20)))
}

func (sh *ShopHandler) Featured(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, sh.svc.Catalog.Featured(httpx.QueryInt(r, "limit", 4)))
}

func (sh *ShopHandler) Locations(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, sh.svc.Catalog.Locations())
}
