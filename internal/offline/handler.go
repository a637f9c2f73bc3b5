package offline

import (
	"context"
	"net/http"
	"strconv"

	"automart/internal/common/httpx"
	"automart/internal/domain"
)

const HeaderStrategy = "X-Cache-Strategy"

// Handler intercepts requests once the manager is active. Before that, and for
// passthrough rules, requests go to next untouched.
func (m *Manager) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.State() != StateActivated {
			next.ServeHTTP(w, r)
			return
		}
		resp, rule, result, err := m.Serve(r.Context(), r)
		if rule.Strategy == Passthrough {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			m.log.Warn("offline_unavailable", map[string]any{"url": cacheKey(r), "strategy": string(rule.Strategy), "reason": err.Error()})
			w.Header().Set(HeaderStrategy, string(rule.Strategy))
			httpx.WriteProblem(w, http.StatusGatewayTimeout, "offline", err.Error())
			return
		}
		writeResponse(w, resp, rule.Strategy, result)
	})
}

func writeResponse(w http.ResponseWriter, resp *Response, s Strategy, result string) {
	h := w.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	h.Set(HeaderStrategy, string(s))
	h.Set("X-Cache-Result", result)
	h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

const (
	MsgSkipWaiting = "SKIP_WAITING"
	MsgGetVersion  = "GET_VERSION"
)

type Message struct {
	Type string `json:"type"`
}

type VersionReply struct {
	Version string `json:"version"`
}

// HandleMessage processes a message posted by a page. GET_VERSION returns a
// VersionReply, SKIP_WAITING returns nil.
func (m *Manager) HandleMessage(ctx context.Context, msg Message) (any, error) {
	m.log.Debug("message_received", map[string]any{"type": msg.Type})
	switch msg.Type {
	case MsgSkipWaiting:
		return nil, m.SkipWaiting(ctx)
	case MsgGetVersion:
		return VersionReply{Version: m.cfg.Version}, nil
	default:
		return nil, domain.Validationf("unknown message type %q", msg.Type)
	}
}

// MessageHandler serves POST /__sw/message.
func (m *Manager) MessageHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		if err := httpx.DecodeJSON(r, &msg); err != nil {
			httpx.WriteError(w, err)
			return
		}
		reply, err := m.HandleMessage(r.Context(), msg)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		if reply == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, reply)
	})
}
