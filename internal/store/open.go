package store

import (
	"fmt"

	"github.com/xelth-com/f8tracker/internal/config"
	"github.com/xelth-com/f8tracker/internal/database"
	"go.uber.org/zap"
)

// Open returns the backend selected by cfg.Store.Backend.
func Open(cfg *config.Config, log *zap.Logger) (Store, error) {
	switch cfg.Store.Backend {
	case config.BackendPebble, "":
		return OpenPebble(cfg.Store.Dir, log)
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendPostgres:
		db, err := database.Connect(cfg.Database, cfg.Store.Dir, log)
		if err != nil {
			return nil, err
		}
		s, err := NewGormStore(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
