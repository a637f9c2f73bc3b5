package handlers

import (
	"net/http"

	"automart/internal/common/httpx"
	"automart/internal/domain"
	"automart/internal/microservices/shop/service"
)

type PreferencesHandler struct {
	service service.PreferencesServiceInterface
}

func NewPreferencesHandler(s service.PreferencesServiceInterface) *PreferencesHandler {
	return &PreferencesHandler{service: s}
}

func (ph *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := ph.service.Get(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (ph *PreferencesHandler) Put(w http.ResponseWriter, r *http.Request) {
	var p domain.Preferences
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.WriteError(w, err)
		return
	}
	saved, err := ph.service.Put(r.Context(), p)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, saved)
}
