package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xelth-com/f8tracker/internal/calc"
	"github.com/xelth-com/f8tracker/internal/models"
	"github.com/xelth-com/f8tracker/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrRecordNotFound is returned when an edit targets an unknown id.
	ErrRecordNotFound = errors.New("record not found")
	// ErrFieldNotEditable is returned for identity, base, derived and unknown fields.
	ErrFieldNotEditable = errors.New("field is not editable")
	// ErrInvalidStatus is returned for an estado outside the workflow.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrPersistence wraps any store failure.
	ErrPersistence = errors.New("persistence failure")
)

// Change describes an applied edit.
type Change struct {
	Edit     models.Edit
	OldValue string
	Order    models.Order
	At       time.Time
}

// EditListener is notified after an edit has been persisted.
type EditListener func(ctx context.Context, c Change)

// Engine owns the working set of orders and keeps it in step with the
// store. Every mutation runs under one write lock so a bulk replace never
// interleaves with a single-record upsert.
type Engine struct {
	store     store.Store
	log       *zap.Logger
	orphans   OrphanPolicy
	now       func() time.Time
	listeners []EditListener
	observe   func(field string, err error)

	mu     sync.RWMutex
	orders []models.Order
	index  map[string]int
}

// Option configures an Engine.
type Option func(*Engine)

// WithOrphanPolicy sets how Reconcile treats orders missing from the feed.
func WithOrphanPolicy(p OrphanPolicy) Option {
	return func(e *Engine) { e.orphans = p }
}

// WithClock overrides time.Now for derived fields.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithEditObserver registers fn to be told the outcome of every edit
// attempt, rejected ones included.
func WithEditObserver(fn func(field string, err error)) Option {
	return func(e *Engine) { e.observe = fn }
}

// NewEngine creates an engine over s with an empty working set.
func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		log:   zap.NewNop(),
		now:   time.Now,
		index: map[string]int{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnEdit registers a listener. It must be called before the engine is shared.
func (e *Engine) OnEdit(l EditListener) {
	e.listeners = append(e.listeners, l)
}

// OrphanPolicy returns the configured orphan policy.
func (e *Engine) OrphanPolicy() OrphanPolicy {
	return e.orphans
}

// Load replaces the working set with the store content.
func (e *Engine) Load(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	orders, err := e.store.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: load cache: %w", ErrPersistence, err)
	}
	e.swap(orders)
	return len(orders), nil
}

// Reconcile merges incoming into the working set, persists the result and
// only then swaps it in. On a store failure the working set is unchanged.
func (e *Engine) Reconcile(ctx context.Context, incoming []models.Order) (MergeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := Merge(e.orders, incoming, MergeOptions{Orphans: e.orphans, Now: e.now()})
	if err := e.store.ReplaceAll(ctx, res.Orders); err != nil {
		return res, fmt.Errorf("%w: replace cache: %w", ErrPersistence, err)
	}
	e.swap(res.Orders)
	res.Orders = cloneAll(res.Orders)

	e.log.Info("orders reconciled",
		zap.Int("total", len(res.Orders)),
		zap.Int("added", res.Added),
		zap.Int("updated", res.Updated),
		zap.Int("orphans", len(res.Orphans)),
		zap.Stringer("orphan_policy", e.orphans))
	return res, nil
}

// ApplyEdit sets one user-editable field, refreshes derived fields when the
// field feeds them and persists the single record.
func (e *Engine) ApplyEdit(ctx context.Context, edit models.Edit) (_ models.Order, err error) {
	if e.observe != nil {
		defer func() { e.observe(edit.Field, err) }()
	}
	if !models.IsEditable(edit.Field) {
		return models.Order{}, fmt.Errorf("%w: %q", ErrFieldNotEditable, edit.Field)
	}
	if edit.Field == models.KeyEstado && edit.Value != "" && !models.IsValidStatus(edit.Value) {
		return models.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, edit.Value)
	}

	e.mu.Lock()
	i, ok := e.index[edit.ID]
	if !ok {
		e.mu.Unlock()
		return models.Order{}, fmt.Errorf("%w: %q", ErrRecordNotFound, edit.ID)
	}

	updated := e.orders[i].Clone()
	old := updated.Get(edit.Field)
	updated.Set(edit.Field, edit.Value)
	if calc.DependsOn(edit.Field) {
		calc.ComputeDerived(&updated, e.now())
	}

	if err := e.store.Put(ctx, updated); err != nil {
		e.mu.Unlock()
		return models.Order{}, fmt.Errorf("%w: save %q: %w", ErrPersistence, edit.ID, err)
	}
	e.orders[i] = updated
	e.mu.Unlock()

	change := Change{Edit: edit, OldValue: old, Order: updated.Clone(), At: e.now()}
	for _, l := range e.listeners {
		l(ctx, change)
	}
	return updated.Clone(), nil
}

// Orders returns a copy of the working set.
func (e *Engine) Orders() []models.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return cloneAll(e.orders)
}

// Get returns a copy of one order.
func (e *Engine) Get(id string) (models.Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	i, ok := e.index[id]
	if !ok {
		return models.Order{}, false
	}
	return e.orders[i].Clone(), true
}

// Len returns the working set size.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.orders)
}

// FindBy looks orders up through a store secondary index.
func (e *Engine) FindBy(ctx context.Context, index, value string) ([]models.Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	orders, err := e.store.FindBy(ctx, index, value)
	if err != nil && !errors.Is(err, store.ErrUnknownIndex) {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return orders, err
}

func (e *Engine) swap(orders []models.Order) {
	index := make(map[string]int, len(orders))
	for i := range orders {
		index[orders[i].Forma8Salmi] = i
	}
	e.orders = orders
	e.index = index
}

func cloneAll(orders []models.Order) []models.Order {
	out := make([]models.Order, len(orders))
	for i := range orders {
		out[i] = orders[i].Clone()
	}
	return out
}
