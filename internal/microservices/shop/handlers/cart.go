package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"automart/internal/cart"
	"automart/internal/common/httpx"
	"automart/internal/common/logger"
	"automart/internal/microservices/shop/service"
)

const keepAlive = 25 * time.Second

type CartHandler struct {
	service service.CartServiceInterface
	log     *logger.Logger
}

func NewCartHandler(s service.CartServiceInterface, log *logger.Logger) *CartHandler {
	return &CartHandler{service: s, log: log}
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (ch *CartHandler) GetCart(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, ch.service.View())
}

func (ch *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	line, err := ch.service.AddItem(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"item": line, "cart": ch.service.View()})
}

func (ch *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.Quantity == nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad request", "quantity is required")
		return
	}
	if err := ch.service.UpdateItem(r.Context(), r.PathValue("lineId"), *req.Quantity); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ch.service.View())
}

func (ch *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if _, err := ch.service.RemoveItem(r.Context(), r.PathValue("lineId")); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ch.service.View())
}

func (ch *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ch.service.Clear(r.Context())
	httpx.WriteJSON(w, http.StatusOK, ch.service.View())
}

func (ch *CartHandler) Validate(w http.ResponseWriter, _ *http.Request) {
	problems := ch.service.Validate()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"valid": len(problems) == 0, "problems": problems})
}

// Events streams the cart view as server-sent events, starting with the
// current state. A slow client misses intermediate views, never the latest.
func (ch *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteProblem(w, http.StatusInternalServerError, "internal server error", "streaming unsupported")
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	views := make(chan cart.View, 1)
	unsubscribe := ch.service.Subscribe(func(v cart.View) {
		for {
			select {
			case views <- v:
				return
			default:
			}
			select {
			case <-views:
			default:
			}
		}
	})
	defer unsubscribe()

	if err := writeEvent(w, ch.service.View()); err != nil {
		return
	}
	flusher.Flush()
	ch.log.Debug("cart_stream_opened", map[string]any{"remote": r.RemoteAddr})

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			ch.log.Debug("cart_stream_closed", map[string]any{"remote": r.RemoteAddr})
			return
		case v := <-views:
			if err := writeEvent(w, v); err != nil {
				return
			}
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, v cart.View) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: cart\ndata: %s\n\n", b)
	return err
}
