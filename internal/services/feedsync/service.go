// Package feedsync runs the fetch, parse, reconcile and notify cycle against
// the published sheet and falls back to the local cache when it is offline.
package feedsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xelth-com/f8tracker/internal/feed"
	"github.com/xelth-com/f8tracker/internal/metrics"
	"github.com/xelth-com/f8tracker/internal/models"
	"github.com/xelth-com/f8tracker/internal/reconcile"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Push message types.
const (
	MsgOrdersUpdated = "ORDERS_UPDATED"
	MsgSyncStatus    = "SYNC_STATUS"
)

// ErrEmptyFeed is reported when the feed answers but yields no orders.
var ErrEmptyFeed = errors.New("feed returned no orders")

// Outcome is the result class of one cycle.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
)

// Fetcher downloads the raw CSV.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Notifier pushes a typed message to connected clients.
type Notifier interface {
	Broadcast(msgType string, payload interface{})
}

// Status is a snapshot of the sync state.
type Status struct {
	Enabled     bool      `json:"enabled"`
	Online      bool      `json:"online"`
	InProgress  bool      `json:"inProgress"`
	LastCycleID string    `json:"lastCycleId,omitempty"`
	LastAttempt time.Time `json:"lastAttempt,omitempty"`
	LastSuccess time.Time `json:"lastSuccess,omitempty"`
	LastOutcome Outcome   `json:"lastOutcome,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	Orders      int       `json:"orders"`
	Added       int       `json:"added"`
	Updated     int       `json:"updated"`
	Orphans     []string  `json:"orphans,omitempty"`
}

// Result describes one finished cycle.
type Result struct {
	CycleID string
	Outcome Outcome
	Merge   reconcile.MergeResult
	Err     error
}

// Service orchestrates synchronization between the published sheet and the
// local cache.
type Service struct {
	fetcher  Fetcher
	parser   *feed.Parser
	engine   *reconcile.Engine
	notifier Notifier
	metrics  *metrics.Registry
	log      *zap.Logger
	interval time.Duration
	enabled  bool

	group   singleflight.Group
	cycleMu sync.Mutex

	mu     sync.RWMutex
	status Status

	// ctx lives until Stop and bounds every cycle
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// Option configures a Service.
type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }
func WithMetrics(m *metrics.Registry) Option { return func(s *Service) { s.metrics = m } }
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

// WithInterval sets the timer period. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithEnabled turns the periodic timer on or off. Manual triggers always run.
func WithEnabled(enabled bool) Option { return func(s *Service) { s.enabled = enabled } }

// NewService creates a synchronization service.
func NewService(engine *reconcile.Engine, fetcher Fetcher, parser *feed.Parser, opts ...Option) *Service {
	s := &Service{
		fetcher:  fetcher,
		parser:   parser,
		engine:   engine,
		log:      zap.NewNop(),
		interval: 30 * time.Minute,
		enabled:  true,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = feed.NewParser(nil, nil)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.status.Enabled = s.enabled
	return s
}

// Start runs one cycle now and then one per interval until Stop.
func (s *Service) Start() {
	s.startOnce.Do(func() {
		if !s.enabled {
			s.log.Info("feed sync disabled: FEED_URL not configured")
			close(s.done)
			return
		}

		ctx := s.ctx
		go func() {
			defer close(s.done)
			s.log.Info("feed sync started", zap.Duration("interval", s.interval))

			s.Trigger(ctx)

			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.Trigger(ctx)
				case <-ctx.Done():
					s.log.Info("feed sync stopped")
					return
				}
			}
		}()
	})
}

// Stop halts the timer loop and waits for it to exit. An in-flight cycle
// sees its context cancelled.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.startOnce.Do(func() { close(s.done) })
		s.cancel()
		<-s.done
	})
}

// Trigger runs a cycle. Callers arriving while a cycle is running share its
// result instead of starting another. The shared cycle keeps ctx's values
// but not its cancellation, so one caller going away does not fail the
// cycle for the others. Stop still cancels it.
func (s *Service) Trigger(ctx context.Context) Result {
	v, _, _ := s.group.Do("cycle", func() (interface{}, error) {
		cycleCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(s.ctx, cancel)
		defer stop()
		return s.RunCycle(cycleCtx), nil
	})
	return v.(Result)
}

// Status returns the current sync state.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.status
	st.Orphans = append([]string(nil), s.status.Orphans...)
	return st
}

// RunCycle performs one fetch, parse, reconcile and notify pass. Cycles are
// serialized.
func (s *Service) RunCycle(ctx context.Context) Result {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()
	res := Result{CycleID: uuid.NewString()}
	log := s.log.With(zap.String("cycle", res.CycleID))

	s.mu.Lock()
	s.status.InProgress = true
	s.status.LastAttempt = start
	s.status.LastCycleID = res.CycleID
	s.mu.Unlock()

	online := false
	orders, err := s.fetch(ctx)
	switch {
	case err != nil:
		log.Warn("feed unavailable, serving cache", zap.Error(err))
		res.Err = err
		res.Outcome = OutcomeDegraded
		if _, loadErr := s.engine.Load(ctx); loadErr != nil {
			log.Error("cache fallback failed", zap.Error(loadErr))
			res.Err = errors.Join(err, loadErr)
			res.Outcome = OutcomeFailed
		}
	default:
		online = true
		merged, recErr := s.engine.Reconcile(ctx, orders)
		if recErr != nil {
			log.Error("persisting merged orders failed", zap.Error(recErr))
			res.Err = recErr
			res.Outcome = OutcomeFailed
			break
		}
		res.Merge = merged
		res.Outcome = OutcomeSuccess
		if len(merged.Orphans) > 0 {
			log.Info("orders missing from feed",
				zap.Strings("ids", merged.Orphans),
				zap.Stringer("policy", s.engine.OrphanPolicy()))
		}
	}

	took := time.Since(start)
	count := s.engine.Len()
	s.finish(res, online, count)

	if s.metrics != nil {
		s.metrics.ObserveCycle(string(res.Outcome), online, took, count, len(res.Merge.Orphans))
	}
	log.Info("sync cycle finished",
		zap.String("outcome", string(res.Outcome)),
		zap.Bool("online", online),
		zap.Int("orders", count),
		zap.Duration("took", took))

	s.notify(res, count)
	return res
}

func (s *Service) fetch(ctx context.Context) ([]models.Order, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("%w: no fetcher", feed.ErrFeedUnavailable)
	}
	text, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	orders := s.parser.Parse(text)
	if len(orders) == 0 {
		return nil, ErrEmptyFeed
	}
	return orders, nil
}

func (s *Service) finish(res Result, online bool, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.InProgress = false
	s.status.Online = online
	s.status.LastOutcome = res.Outcome
	s.status.Orders = count
	s.status.LastError = ""
	if res.Err != nil {
		s.status.LastError = res.Err.Error()
	}
	if res.Outcome == OutcomeSuccess {
		s.status.LastSuccess = time.Now()
		s.status.Added = res.Merge.Added
		s.status.Updated = res.Merge.Updated
		s.status.Orphans = res.Merge.Orphans
	}
}

func (s *Service) notify(res Result, count int) {
	if s.notifier == nil {
		return
	}
	if res.Outcome == OutcomeSuccess {
		s.notifier.Broadcast(MsgOrdersUpdated, map[string]interface{}{
			"count":   count,
			"added":   res.Merge.Added,
			"updated": res.Merge.Updated,
			"orphans": res.Merge.Orphans,
		})
	}
	s.notifier.Broadcast(MsgSyncStatus, s.Status())
}
