package main

import (
	"context"
	"sync"
	"time"

	"github.com/xelth-com/f8tracker/internal/journal"
	"github.com/xelth-com/f8tracker/internal/metrics"
	"github.com/xelth-com/f8tracker/internal/reconcile"
	"github.com/xelth-com/f8tracker/internal/websocket"
	"go.uber.org/zap"
)

// editRecorder fans applied edits out to the journal and the websocket hub
// on its own goroutine so a slow sink never holds up an edit.
type editRecorder struct {
	writer  journal.Writer
	hub     *websocket.Hub
	metrics *metrics.Registry
	log     *zap.Logger

	queue chan reconcile.Change
	done  chan struct{}

	// guards queue against sends after Close
	mu     sync.Mutex
	closed bool
}

func openJournal() (*journal.MultiWriter, error) {
	var writers []journal.Writer
	if cfg.Journal.File != "" {
		fw, err := journal.NewFileWriter(cfg.Journal.File)
		if err != nil {
			return nil, err
		}
		writers = append(writers, fw)
	}
	if len(cfg.Journal.KafkaBrokers) > 0 {
		writers = append(writers, journal.NewKafkaWriter(cfg.Journal.KafkaBrokers, cfg.Journal.KafkaTopic))
	}
	return journal.NewMultiWriter(writers...), nil
}

func newEditRecorder(w journal.Writer, hub *websocket.Hub, reg *metrics.Registry, log *zap.Logger) *editRecorder {
	r := &editRecorder{
		writer:  w,
		hub:     hub,
		metrics: reg,
		log:     log,
		queue:   make(chan reconcile.Change, 256),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record is a reconcile.EditListener.
func (r *editRecorder) Record(_ context.Context, c reconcile.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		select {
		case r.queue <- c:
			return
		default:
		}
	}
	r.log.Warn("edit not recorded",
		zap.String("id", c.Edit.ID),
		zap.String("field", c.Edit.Field),
		zap.Bool("closed", r.closed))
	if r.metrics != nil {
		r.metrics.JournalFailures.Inc()
	}
}

func (r *editRecorder) run() {
	defer close(r.done)
	for c := range r.queue {
		if r.hub != nil {
			r.hub.Broadcast(websocket.MsgOrderEdited, c.Order)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := r.writer.Append(ctx, changeEntry(c))
		cancel()
		if err != nil {
			r.log.Error("journal append failed", zap.String("id", c.Edit.ID), zap.Error(err))
			if r.metrics != nil {
				r.metrics.JournalFailures.Inc()
			}
		}
	}
}

// Close drains pending changes and closes the journal. Later changes are
// dropped and counted.
func (r *editRecorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	return r.writer.Close()
}

func changeEntry(c reconcile.Change) journal.Entry {
	return journal.NewEntry(c.Edit.ID, c.Edit.Field, c.OldValue, c.Edit.Value, c.At)
}
