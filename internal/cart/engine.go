package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"automart/internal/common/logger"
	"automart/internal/domain"
	"automart/internal/kvs"
	"automart/internal/metrics"
)

type Config struct {
	MaxItems           int
	MaxQuantityPerItem int
	StorageKey         string
	DefaultCustomer    string
	TimeSlots          []string
	PaymentMethods     []string
}

// Locations resolves a pickup location key.
type Locations interface {
	Location(key string) (domain.Location, bool)
}

// Listener receives the cart view after every change.
type Listener func(View)

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithIDs(newID func() string) Option { return func(e *Engine) { e.newID = newID } }

func WithLogger(l *logger.Logger) Option { return func(e *Engine) { e.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// Engine is the cart of one shop context. Every mutation holds mu across
// read, modify and persist, so no other mutation observes a half-applied state.
type Engine struct {
	cfg       Config
	store     kvs.Store
	locations Locations
	log       *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func() string

	mu    sync.Mutex
	items []domain.CartLineItem

	lmu       sync.Mutex
	listeners map[int]Listener
	nextL     int
}

// New loads the persisted cart. A load failure leaves the cart empty.
func New(ctx context.Context, store kvs.Store, locations Locations, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		store:     store,
		locations: locations,
		log:       logger.Nop(),
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, o := range opts {
		o(e)
	}
	if e.newID == nil {
		e.newID = func() string {
			return fmt.Sprintf("item_%d_%s", e.now().UnixMilli(), uuid.NewString()[:9])
		}
	}
	e.mu.Lock()
	e.loadLocked(ctx)
	e.mu.Unlock()
	return e
}

func (e *Engine) loadLocked(ctx context.Context) {
	var items []domain.CartLineItem
	if _, err := e.store.Get(ctx, e.cfg.StorageKey, &items); err != nil {
		e.log.Error("cart_load_failed", err, map[string]any{"key": e.store.Key(e.cfg.StorageKey)})
		items = nil
	}
	e.items = items
	e.log.Debug("cart_loaded", map[string]any{"lines": len(items)})
}

// persistLocked writes the whole line list. A failed write is logged; the
// in-memory change stands.
func (e *Engine) persistLocked(ctx context.Context) {
	items := e.items
	if items == nil {
		items = []domain.CartLineItem{}
	}
	if err := e.store.Set(context.WithoutCancel(ctx), e.cfg.StorageKey, items); err != nil {
		e.log.Error("cart_save_failed", err, map[string]any{"key": e.store.Key(e.cfg.StorageKey)})
		return
	}
	e.log.Debug("cart_saved", map[string]any{"lines": len(items)})
}

func (e *Engine) totalQuantityLocked() int {
	n := 0
	for _, l := range e.items {
		n += l.Quantity
	}
	return n
}

func (e *Engine) indexLocked(lineID string) int {
	for i, l := range e.items {
		if l.ID == lineID {
			return i
		}
	}
	return -1
}

// commitAndUnlock persists, releases mu and notifies with the resulting view.
func (e *Engine) commitAndUnlock(ctx context.Context) {
	e.persistLocked(ctx)
	v := buildView(e.items)
	e.mu.Unlock()
	e.notify(v)
}

// AddItem adds quantity of product, merging with an existing line for the same product.
// It returns the affected line.
func (e *Engine) AddItem(ctx context.Context, product domain.Product, quantity int) (domain.CartLineItem, error) {
	line, err := e.addItem(ctx, product, quantity)
	e.metrics.Cart("add", err)
	if err != nil {
		e.log.Warn("cart_add_rejected", map[string]any{"product_id": product.ID, "quantity": quantity, "reason": err.Error()})
	}
	return line, err
}

func (e *Engine) addItem(ctx context.Context, product domain.Product, quantity int) (domain.CartLineItem, error) {
	if product.ID == "" {
		return domain.CartLineItem{}, domain.Validationf("invalid product")
	}
	if quantity < 1 || quantity > e.cfg.MaxQuantityPerItem {
		return domain.CartLineItem{}, domain.Validationf("invalid quantity %d", quantity)
	}

	e.mu.Lock()
	if total := e.totalQuantityLocked(); total+quantity > e.cfg.MaxItems {
		e.mu.Unlock()
		return domain.CartLineItem{}, domain.Validationf("too many items in cart (max %d)", e.cfg.MaxItems)
	}

	now := e.now()
	var line domain.CartLineItem
	if i := e.indexOfProductLocked(product.ID); i >= 0 {
		merged := e.items[i].Quantity + quantity
		if merged > e.cfg.MaxQuantityPerItem {
			e.mu.Unlock()
			return domain.CartLineItem{}, domain.Validationf("max %d per product", e.cfg.MaxQuantityPerItem)
		}
		e.items[i].Quantity = merged
		e.items[i].UpdatedAt = now
		line = e.items[i]
	} else {
		line = domain.CartLineItem{
			ID:        e.newID(),
			Product:   product.Clone(),
			Quantity:  quantity,
			AddedAt:   now,
			UpdatedAt: now,
		}
		e.items = append(e.items, line)
	}
	line.Product = line.Product.Clone()
	e.commitAndUnlock(ctx)
	return line, nil
}

func (e *Engine) indexOfProductLocked(productID string) int {
	for i, l := range e.items {
		if l.Product.ID == productID {
			return i
		}
	}
	return -1
}

// UpdateItemQuantity sets a line's quantity; zero removes the line.
func (e *Engine) UpdateItemQuantity(ctx context.Context, lineID string, quantity int) error {
	err := e.updateItemQuantity(ctx, lineID, quantity)
	e.metrics.Cart("update", err)
	return err
}

func (e *Engine) updateItemQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity < 0 || quantity > e.cfg.MaxQuantityPerItem {
		return domain.Validationf("invalid quantity %d", quantity)
	}

	e.mu.Lock()
	i := e.indexLocked(lineID)
	if i < 0 {
		e.mu.Unlock()
		return domain.NotFoundf("cart line %q", lineID)
	}
	if quantity == 0 {
		e.items = append(e.items[:i], e.items[i+1:]...)
		e.commitAndUnlock(ctx)
		return nil
	}
	if total := e.totalQuantityLocked() - e.items[i].Quantity + quantity; total > e.cfg.MaxItems {
		e.mu.Unlock()
		return domain.Validationf("too many items in cart (max %d)", e.cfg.MaxItems)
	}
	e.items[i].Quantity = quantity
	e.items[i].UpdatedAt = e.now()
	e.commitAndUnlock(ctx)
	return nil
}

// RemoveItem deletes a line and returns it.
func (e *Engine) RemoveItem(ctx context.Context, lineID string) (domain.CartLineItem, error) {
	e.mu.Lock()
	i := e.indexLocked(lineID)
	if i < 0 {
		e.mu.Unlock()
		err := domain.NotFoundf("cart line %q", lineID)
		e.metrics.Cart("remove", err)
		return domain.CartLineItem{}, err
	}
	removed := e.items[i]
	e.items = append(e.items[:i], e.items[i+1:]...)
	e.commitAndUnlock(ctx)
	e.metrics.Cart("remove", nil)
	return removed, nil
}

func (e *Engine) Clear(ctx context.Context) {
	e.mu.Lock()
	e.items = nil
	e.commitAndUnlock(ctx)
	e.metrics.Cart("clear", nil)
	e.log.Info("cart_cleared", nil)
}

// Items returns a copy of the lines in display order.
func (e *Engine) Items() []domain.CartLineItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyLines(e.items)
}

func (e *Engine) CartView() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return buildView(e.items)
}

// Validate re-checks the invariants on the current lines and lists every violation.
func (e *Engine) Validate() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var problems []string
	if len(e.items) == 0 {
		problems = append(problems, domain.ErrEmptyCart.Error())
	}
	seen := make(map[string]bool, len(e.items))
	for i, l := range e.items {
		if l.Product.ID == "" {
			problems = append(problems, fmt.Sprintf("line %d: invalid product", i+1))
		} else if seen[l.Product.ID] {
			problems = append(problems, fmt.Sprintf("line %d: duplicate product %s", i+1, l.Product.ID))
		}
		seen[l.Product.ID] = true
		if l.Quantity <= 0 || l.Quantity > e.cfg.MaxQuantityPerItem {
			problems = append(problems, fmt.Sprintf("line %d: invalid quantity", i+1))
		}
	}
	if e.totalQuantityLocked() > e.cfg.MaxItems {
		problems = append(problems, fmt.Sprintf("too many items in cart (max %d)", e.cfg.MaxItems))
	}
	return problems
}

// Subscribe registers l and returns the function that removes it.
func (e *Engine) Subscribe(l Listener) (unsubscribe func()) {
	e.lmu.Lock()
	id := e.nextL
	e.nextL++
	e.listeners[id] = l
	e.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.lmu.Lock()
			delete(e.listeners, id)
			e.lmu.Unlock()
		})
	}
}

func (e *Engine) notify(v View) {
	e.lmu.Lock()
	ls := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		ls = append(ls, l)
	}
	e.lmu.Unlock()

	for _, l := range ls {
		e.call(l, v)
	}
}

func (e *Engine) call(l Listener, v View) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("cart_listener_failed", fmt.Errorf("panic: %v", r), nil)
		}
	}()
	l(v)
}

// Watch reloads the cart whenever another context writes it, then notifies
// listeners. It returns once the subscription is in place.
func (e *Engine) Watch(ctx context.Context, n kvs.Notifier) error {
	changes, err := n.Subscribe(ctx, e.cfg.StorageKey)
	if err != nil {
		return fmt.Errorf("watch cart: %w", err)
	}
	go func() {
		for c := range changes {
			e.mu.Lock()
			e.loadLocked(ctx)
			v := buildView(e.items)
			e.mu.Unlock()
			e.log.Debug("cart_reloaded", map[string]any{"key": c.Key, "origin": c.Origin})
			e.notify(v)
		}
	}()
	return nil
}

func copyLines(in []domain.CartLineItem) []domain.CartLineItem {
	out := make([]domain.CartLineItem, len(in))
	for i, l := range in {
		l.Product = l.Product.Clone()
		out[i] = l
	}
	return out
}
