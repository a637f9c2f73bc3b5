package handlers

import (
	"net/http"

	"automart/internal/common/httpx"
	"automart/internal/microservices/shop/service"
)

type CheckoutHandler struct {
	service service.CheckoutServiceInterface
}

func NewCheckoutHandler(s service.CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{service: s}
}

func (ch *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req service.CheckoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	res, err := ch.service.Checkout(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if res.Status == service.CheckoutQueued {
		status = http.StatusAccepted
	}
	httpx.WriteJSON(w, status, res)
}
