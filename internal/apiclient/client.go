package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"automart/internal/common/logger"
	"automart/internal/domain"
)

type Config struct {
	BaseURL         string
	Timeout         time.Duration
	DefaultCustomer string
	DefaultLocation string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithLogger(l *logger.Logger) Option { return func(c *Client) { c.log = l } }

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// Client talks JSON to the order service. Every failure is translated into
// the domain error kinds, so callers can tell transient from final.
type Client struct {
	base    string
	timeout time.Duration
	defs    domain.OrderDefaults
	http    *http.Client
	log     *logger.Logger
	now     func() time.Time
}

func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		defs:    domain.OrderDefaults{Customer: cfg.DefaultCustomer, Location: cfg.DefaultLocation},
		http:    &http.Client{},
		log:     logger.Nop(),
		now:     time.Now,
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

const maxErrorBody = 4 << 10

// Do sends one request and decodes a 2xx body into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, endpoint string, query url.Values, body, out any) (int, error) {
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.base + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode %s %s: %w", method, endpoint, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(rctx, method, target, rdr)
	if err != nil {
		return 0, fmt.Errorf("build %s %s: %w", method, endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.Canceled):
			return 0, ctx.Err()
		case errors.Is(rctx.Err(), context.DeadlineExceeded):
			c.log.Warn("api_timeout", map[string]any{"method": method, "endpoint": endpoint, "timeout_ms": c.timeout.Milliseconds()})
			return 0, fmt.Errorf("%s %s: %w", method, endpoint, domain.ErrTimeout)
		default:
			c.log.Error("api_network_error", err, map[string]any{"method": method, "endpoint": endpoint})
			return 0, fmt.Errorf("%s %s: %w: %v", method, endpoint, domain.ErrNetwork, err)
		}
	}
	defer resp.Body.Close()

	c.log.Debug("api_response", map[string]any{
		"method": method, "endpoint": endpoint, "status": resp.StatusCode,
		"duration_ms": c.now().Sub(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, fmt.Errorf("%s %s: %w", method, endpoint,
			&domain.ServerError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))})
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, endpoint, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) Get(ctx context.Context, endpoint string, query url.Values, out any) error {
	_, err := c.Do(ctx, http.MethodGet, endpoint, query, nil, out)
	return err
}

func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	_, err := c.Do(ctx, http.MethodPost, endpoint, nil, body, out)
	return err
}

func (c *Client) Put(ctx context.Context, endpoint string, body, out any) error {
	_, err := c.Do(ctx, http.MethodPut, endpoint, nil, body, out)
	return err
}

func (c *Client) Delete(ctx context.Context, endpoint string, out any) error {
	_, err := c.Do(ctx, http.MethodDelete, endpoint, nil, nil, out)
	return err
}

// CompleteOrder submits a finished checkout. Order and locker ids are required;
// the other fields fall back to the configured defaults.
func (c *Client) CompleteOrder(ctx context.Context, req domain.OrderCompleteRequest) (domain.OrderCompleteResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.OrderCompleteResponse{}, err
	}
	body := req.WithDefaults(c.defs, c.now())

	var resp domain.OrderCompleteResponse
	if err := c.Post(ctx, "/order/complete", body, &resp); err != nil {
		c.log.Error("order_submit_failed", err, map[string]any{"order_id": req.OrderID, "locker_id": req.LockerID})
		return domain.OrderCompleteResponse{}, err
	}
	c.log.Info("order_submitted", map[string]any{"order_id": req.OrderID, "locker_id": req.LockerID})
	return resp, nil
}

func (c *Client) GetProducts(ctx context.Context, category string, page, limit int) (domain.ProductPage, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out domain.ProductPage
	err := c.Get(ctx, "/products", q, &out)
	return out, err
}

func (c *Client) GetOrders(ctx context.Context, page, limit int) (domain.OrderPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out domain.OrderPage
	err := c.Get(ctx, "/orders", q, &out)
	return out, err
}

func (c *Client) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var out domain.Order
	err := c.Get(ctx, "/orders/"+url.PathEscape(id), nil, &out)
	return out, err
}

// OpenPickup asks the order service to release the locker of an order again.
func (c *Client) OpenPickup(ctx context.Context, orderID, lockerID string) error {
	if orderID == "" || lockerID == "" {
		return domain.Validationf("orderId and lockerId are required")
	}
	body := domain.PickupRequest{
		OrderID:   orderID,
		LockerID:  lockerID,
		Action:    domain.LockerCmdOpen,
		Timestamp: c.now().UnixMilli(),
	}
	return c.Post(ctx, "/pickup/open", body, nil)
}

func (c *Client) GetLocations(ctx context.Context) ([]domain.Location, error) {
	var out []domain.Location
	err := c.Get(ctx, "/locations", nil, &out)
	return out, err
}

// HealthCheck reports whether GET /health answers 2xx.
func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.Get(ctx, "/health", nil, nil) == nil
}
