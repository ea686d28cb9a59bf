package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/xelth-com/f8tracker/internal/models"
	"go.uber.org/zap"
)

const (
	orderPrefix   = "order/"
	indexPrefix   = "idx/"
	schemaKey     = "meta/schema_version"
	pebbleDirName = "orders.pebble"
)

var indexNames = []string{IndexUnidad, IndexEstado}

// PebbleStore implements Store on a local Pebble database. Records are JSON
// under order/<id>; each secondary index entry is an empty value under
// idx/<index>/<value>/<id>.
type PebbleStore struct {
	db  *pebble.DB
	log *zap.Logger
	// serializes read-modify-write of index entries
	mu sync.Mutex
}

// OpenPebble opens or creates the database under dir and brings the
// keyspace to the current schema version.
func OpenPebble(dir string, log *zap.Logger) (*PebbleStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d, err := pebble.Open(filepath.Join(filepath.Clean(dir), pebbleDirName), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	p := &PebbleStore{db: d, log: log}
	if err := p.migrate(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func orderKey(id string) []byte {
	return []byte(orderPrefix + id)
}

func indexKey(index, value, id string) []byte {
	return []byte(indexPrefix + index + "/" + value + "/" + id)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix string) []byte {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func encodeOrder(o models.Order) ([]byte, error) { return json.Marshal(o) }

func decodeOrder(val []byte) (models.Order, error) {
	var o models.Order
	if err := json.Unmarshal(val, &o); err != nil {
		return models.Order{}, err
	}
	return o, nil
}

// migrate rebuilds the index keyspace when the stored schema version is
// missing or stale.
func (p *PebbleStore) migrate() error {
	current := 0
	v, closer, err := p.db.Get([]byte(schemaKey))
	switch {
	case err == nil:
		current, _ = strconv.Atoi(string(v))
		closer.Close()
	case !errors.Is(err, pebble.ErrNotFound):
		return fmt.Errorf("read schema version: %w", err)
	}
	if current == SchemaVersion {
		return nil
	}

	orders, err := p.scan(orderPrefix)
	if err != nil {
		return err
	}

	wb := p.db.NewBatch()
	defer wb.Close()
	if err := wb.DeleteRange([]byte(indexPrefix), prefixEnd(indexPrefix), nil); err != nil {
		return err
	}
	for i := range orders {
		if err := addIndexes(wb, &orders[i]); err != nil {
			return err
		}
	}
	if err := wb.Set([]byte(schemaKey), []byte(strconv.Itoa(SchemaVersion)), nil); err != nil {
		return err
	}
	if err := wb.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	p.log.Info("store schema migrated",
		zap.Int("from", current),
		zap.Int("to", SchemaVersion),
		zap.Int("orders", len(orders)))
	return nil
}

func addIndexes(wb *pebble.Batch, o *models.Order) error {
	for _, index := range indexNames {
		if err := wb.Set(indexKey(index, o.Get(index), o.ID()), nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func deleteIndexes(wb *pebble.Batch, o *models.Order) error {
	for _, index := range indexNames {
		if err := wb.Delete(indexKey(index, o.Get(index), o.ID()), nil); err != nil {
			return err
		}
	}
	return nil
}

// scan decodes every record stored under prefix, in key order.
func (p *PebbleStore) scan(prefix string) ([]models.Order, error) {
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []models.Order
	for it.First(); it.Valid(); it.Next() {
		o, err := decodeOrder(it.Value())
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.Key(), err)
		}
		out = append(out, o)
	}
	return out, it.Error()
}

func (p *PebbleStore) GetAll(ctx context.Context) ([]models.Order, error) {
	return p.scan(orderPrefix)
}

func (p *PebbleStore) Get(ctx context.Context, id string) (models.Order, error) {
	v, closer, err := p.db.Get(orderKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return models.Order{}, ErrNotFound
	}
	if err != nil {
		return models.Order{}, err
	}
	defer closer.Close()
	return decodeOrder(v)
}

func (p *PebbleStore) Put(ctx context.Context, o models.Order) error {
	if o.ID() == "" {
		return ErrEmptyID
	}
	val, err := encodeOrder(o)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	wb := p.db.NewBatch()
	defer wb.Close()

	prev, err := p.Get(ctx, o.ID())
	switch {
	case err == nil:
		if err := deleteIndexes(wb, &prev); err != nil {
			return err
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}
	if err := wb.Set(orderKey(o.ID()), val, nil); err != nil {
		return err
	}
	if err := addIndexes(wb, &o); err != nil {
		return err
	}
	return wb.Commit(pebble.Sync)
}

// ReplaceAll drops every record and index entry and writes orders in one
// atomic batch.
func (p *PebbleStore) ReplaceAll(ctx context.Context, orders []models.Order) error {
	byID, err := dedupe(orders)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	wb := p.db.NewBatch()
	defer wb.Close()

	if err := clearBatch(wb); err != nil {
		return err
	}
	for id, o := range byID {
		val, err := encodeOrder(o)
		if err != nil {
			return err
		}
		if err := wb.Set(orderKey(id), val, nil); err != nil {
			return err
		}
		if err := addIndexes(wb, &o); err != nil {
			return err
		}
	}
	return wb.Commit(pebble.Sync)
}

func (p *PebbleStore) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	wb := p.db.NewBatch()
	defer wb.Close()
	if err := clearBatch(wb); err != nil {
		return err
	}
	return wb.Commit(pebble.Sync)
}

func clearBatch(wb *pebble.Batch) error {
	if err := wb.DeleteRange([]byte(orderPrefix), prefixEnd(orderPrefix), nil); err != nil {
		return err
	}
	return wb.DeleteRange([]byte(indexPrefix), prefixEnd(indexPrefix), nil)
}

func (p *PebbleStore) FindBy(ctx context.Context, index, value string) ([]models.Order, error) {
	if err := checkIndex(index); err != nil {
		return nil, err
	}

	prefix := indexPrefix + index + "/" + value + "/"
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	var ids []string
	for it.First(); it.Valid(); it.Next() {
		ids = append(ids, string(it.Key()[len(prefix):]))
	}
	if err := it.Close(); err != nil {
		return nil, err
	}

	out := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		o, err := p.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		// a value containing "/" can share a prefix with a longer value
		if o.Get(index) != value {
			continue
		}
		out = append(out, o)
	}
	sortByID(out)
	return out, nil
}
