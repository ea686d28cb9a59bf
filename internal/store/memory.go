package store

import (
	"context"
	"sync"

	"github.com/xelth-com/f8tracker/internal/models"
)

// MemoryStore keeps orders in a map. It backs tests and dry runs.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]models.Order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: map[string]models.Order{}}
}

func (m *MemoryStore) GetAll(ctx context.Context) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o.Clone())
	}
	sortByID(out)
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	return o.Clone(), nil
}

func (m *MemoryStore) Put(ctx context.Context, o models.Order) error {
	if o.ID() == "" {
		return ErrEmptyID
	}
	m.mu.Lock()
	m.orders[o.ID()] = o.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ReplaceAll(ctx context.Context, orders []models.Order) error {
	byID, err := dedupe(orders)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.orders = byID
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.orders = map[string]models.Order{}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) FindBy(ctx context.Context, index, value string) ([]models.Order, error) {
	if err := checkIndex(index); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Order
	for _, o := range m.orders {
		if o.Get(index) == value {
			out = append(out, o.Clone())
		}
	}
	sortByID(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
