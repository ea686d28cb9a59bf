// Package store persists the order cache across restarts. Records are keyed
// by their Forma 8 SALMI number and carry two non-unique secondary lookups.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xelth-com/f8tracker/internal/models"
)

// SchemaVersion is bumped whenever the persisted layout changes.
const SchemaVersion = 1

// Secondary index names accepted by FindBy.
const (
	IndexUnidad = models.KeyUnidadEjecutora
	IndexEstado = models.KeyEstado
)

var (
	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = errors.New("order not found")
	// ErrUnknownIndex is returned by FindBy for an index that does not exist.
	ErrUnknownIndex = errors.New("unknown index")
	// ErrEmptyID is returned when writing a record without an id.
	ErrEmptyID = errors.New("order has no id")
)

// Store is the persistent cache of orders. GetAll and FindBy return records
// ordered by id. ReplaceAll swaps the whole content atomically.
type Store interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	Get(ctx context.Context, id string) (models.Order, error)
	Put(ctx context.Context, o models.Order) error
	ReplaceAll(ctx context.Context, orders []models.Order) error
	Clear(ctx context.Context) error
	FindBy(ctx context.Context, index, value string) ([]models.Order, error)
	Close() error
}

func checkIndex(index string) error {
	switch index {
	case IndexUnidad, IndexEstado:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownIndex, index)
}

// dedupe keeps the last record for each id. A record without an id fails
// the whole call.
func dedupe(orders []models.Order) (map[string]models.Order, error) {
	byID := make(map[string]models.Order, len(orders))
	for i := range orders {
		id := orders[i].ID()
		if id == "" {
			return nil, ErrEmptyID
		}
		byID[id] = orders[i].Clone()
	}
	return byID, nil
}

func sortByID(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].Forma8Salmi < orders[j].Forma8Salmi
	})
}
