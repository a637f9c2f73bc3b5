package handlers

import (
	"net/http"

	"automart/internal/common/httpx"
	"automart/internal/domain"
	"automart/internal/microservices/order/service"
)

type OrderHandler struct {
	service service.OrderServiceInterface
}

func NewOrderHandler(s service.OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: s}
}

func (oh *OrderHandler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderCompleteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	resp, err := oh.service.CompleteOrder(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (oh *OrderHandler) OpenPickup(w http.ResponseWriter, r *http.Request) {
	var req domain.PickupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	resp, err := oh.service.OpenPickup(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (oh *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := oh.service.ListOrders(r.Context(), httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "limit", 0))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

func (oh *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := oh.service.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}
