package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/f8tracker/internal/buildinfo"
	"github.com/xelth-com/f8tracker/internal/metrics"
	"github.com/xelth-com/f8tracker/internal/models"
	"github.com/xelth-com/f8tracker/internal/services/feedsync"
	"github.com/xelth-com/f8tracker/internal/websocket"
	"go.uber.org/zap"
)

// OrderService is the slice of the reconciliation engine the API needs.
type OrderService interface {
	Orders() []models.Order
	Get(id string) (models.Order, bool)
	Len() int
	FindBy(ctx context.Context, index, value string) ([]models.Order, error)
	ApplyEdit(ctx context.Context, e models.Edit) (models.Order, error)
}

// Syncer runs and reports feed sync cycles.
type Syncer interface {
	Trigger(ctx context.Context) feedsync.Result
	Status() feedsync.Status
}

// Router wraps the mux router and the services behind the API
type Router struct {
	*mux.Router
	orders  OrderService
	sync    Syncer
	hub     *websocket.Hub
	metrics *metrics.Registry
	log     *zap.Logger
}

// Deps are the services the router serves. Hub and Metrics are optional.
type Deps struct {
	Orders  OrderService
	Sync    Syncer
	Hub     *websocket.Hub
	Metrics *metrics.Registry
	Logger  *zap.Logger
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(d Deps) *Router {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := &Router{
		Router:  mux.NewRouter(),
		orders:  d.Orders,
		sync:    d.Sync,
		hub:     d.Hub,
		metrics: d.Metrics,
		log:     d.Logger,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", r.getStatus).Methods("GET")
	api.HandleFunc("/statuses", r.listStatuses).Methods("GET")

	orders := api.PathPrefix("/orders").Subrouter()
	orders.HandleFunc("", r.listOrders).Methods("GET")
	orders.HandleFunc("/{id}", r.getOrder).Methods("GET")
	orders.HandleFunc("/{id}", r.editOrder).Methods("PUT")
	orders.HandleFunc("/{id}/slip.pdf", r.orderSlip).Methods("GET")

	api.HandleFunc("/export.csv", r.exportCSV).Methods("GET")
	api.HandleFunc("/export.pdf", r.exportPDF).Methods("GET")

	NewSyncHandler(d.Sync).RegisterRoutes(api)

	if r.hub != nil {
		r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
			websocket.ServeWs(r.hub, w, req)
		})
	}
	if r.metrics != nil {
		r.Handle("/metrics", r.metrics.Handler()).Methods("GET")
	}

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// getStatus reports build info, the record count and the sync state
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "running",
		"build": map[string]string{
			"buildTime":  buildinfo.BuildTime,
			"commitTime": buildinfo.CommitTime,
			"commitHash": buildinfo.CommitHash,
			"startTime":  buildinfo.StartTime,
		},
		"orders": r.orders.Len(),
		"sync":   r.sync.Status(),
	})
}

func (r *Router) listStatuses(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, models.OrderStatuses)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
