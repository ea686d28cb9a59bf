package main

import (
	"context"
	"fmt"

	"github.com/xelth-com/f8tracker/internal/feed"
	"github.com/xelth-com/f8tracker/internal/metrics"
	"github.com/xelth-com/f8tracker/internal/reconcile"
	"github.com/xelth-com/f8tracker/internal/services/feedsync"
	"github.com/xelth-com/f8tracker/internal/store"
	"go.uber.org/zap"
)

// app bundles the pieces every command needs: the cache, the engine over it
// and the feed sync service.
type app struct {
	store  store.Store
	engine *reconcile.Engine
	sync   *feedsync.Service
}

func openApp(ctx context.Context, reg *metrics.Registry, opts ...feedsync.Option) (*app, error) {
	policy, err := reconcile.ParseOrphanPolicy(cfg.Feed.OrphanPolicy)
	if err != nil {
		return nil, err
	}

	mapper := feed.NewMapper()
	if cfg.Feed.HeaderAliases != "" {
		aliases, err := feed.LoadAliases(cfg.Feed.HeaderAliases)
		if err != nil {
			return nil, err
		}
		if mapper, err = mapper.WithAliases(aliases); err != nil {
			return nil, err
		}
	}

	s, err := store.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	engineOpts := []reconcile.Option{
		reconcile.WithOrphanPolicy(policy),
		reconcile.WithLogger(logger.Named("engine")),
	}
	if reg != nil {
		engineOpts = append(engineOpts, reconcile.WithEditObserver(reg.ObserveEdit))
	}
	engine := reconcile.NewEngine(s, engineOpts...)

	n, err := engine.Load(ctx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("load cache: %w", err)
	}
	logger.Info("cache loaded", zap.Int("orders", n), zap.String("backend", cfg.Store.Backend))

	client := feed.NewClient(cfg.Feed.URL, cfg.Feed.Timeout, logger.Named("feed"))
	opts = append([]feedsync.Option{
		feedsync.WithLogger(logger.Named("sync")),
		feedsync.WithInterval(cfg.Feed.SyncInterval),
		feedsync.WithEnabled(cfg.Feed.Enabled()),
	}, opts...)
	if reg != nil {
		opts = append(opts, feedsync.WithMetrics(reg))
	}
	svc := feedsync.NewService(engine, client, feed.NewParser(mapper, nil), opts...)

	return &app{store: s, engine: engine, sync: svc}, nil
}

func (a *app) Close() error {
	a.sync.Stop()
	return a.store.Close()
}
