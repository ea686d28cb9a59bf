package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xelth-com/f8tracker/internal/models"
)

// unknownField labels edits to fields outside the order catalog so client
// input cannot grow the label set.
const unknownField = "unknown"

type Registry struct {
	reg             *prometheus.Registry
	SyncCycles      *prometheus.CounterVec
	SyncDurationSec prometheus.Histogram
	LastSuccessTS   prometheus.Gauge
	FeedOnline      prometheus.Gauge
	Orders          prometheus.Gauge
	OrphansTotal    prometheus.Counter
	Edits           *prometheus.CounterVec
	JournalFailures prometheus.Counter
	WSClients       prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "f8_sync_cycles_total",
		Help: "Sync cycles by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "f8_sync_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{Name: "f8_sync_last_success_timestamp_seconds"})
	online := prometheus.NewGauge(prometheus.GaugeOpts{Name: "f8_feed_online"})
	orders := prometheus.NewGauge(prometheus.GaugeOpts{Name: "f8_orders"})
	orphans := prometheus.NewCounter(prometheus.CounterOpts{Name: "f8_orphans_total"})
	edits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "f8_edits_total",
		Help: "Edit attempts by field and result.",
	}, []string{"field", "result"})
	journalFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "f8_journal_failures_total"})
	wsClients := prometheus.NewGauge(prometheus.GaugeOpts{Name: "f8_ws_clients"})

	r.MustRegister(cycles, duration, lastSuccess, online, orders, orphans, edits, journalFailures, wsClients)
	return &Registry{
		reg:             r,
		SyncCycles:      cycles,
		SyncDurationSec: duration,
		LastSuccessTS:   lastSuccess,
		FeedOnline:      online,
		Orders:          orders,
		OrphansTotal:    orphans,
		Edits:           edits,
		JournalFailures: journalFailures,
		WSClients:       wsClients,
	}
}

// ObserveCycle records one finished sync cycle.
func (r *Registry) ObserveCycle(outcome string, online bool, took time.Duration, orders, orphans int) {
	r.SyncCycles.WithLabelValues(outcome).Inc()
	r.SyncDurationSec.Observe(took.Seconds())
	r.Orders.Set(float64(orders))
	r.OrphansTotal.Add(float64(orphans))
	if online {
		r.FeedOnline.Set(1)
	} else {
		r.FeedOnline.Set(0)
	}
	if outcome == "success" {
		r.LastSuccessTS.SetToCurrentTime()
	}
}

// ObserveEdit records one edit attempt.
func (r *Registry) ObserveEdit(field string, err error) {
	if !models.IsKnownField(field) {
		field = unknownField
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	r.Edits.WithLabelValues(field, result).Inc()
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
