package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/f8tracker/internal/services/feedsync"
)

// SyncHandler exposes the feed sync service.
type SyncHandler struct {
	sync Syncer
}

func NewSyncHandler(s Syncer) *SyncHandler {
	return &SyncHandler{sync: s}
}

// RegisterRoutes registers sync routes
func (sh *SyncHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/sync", sh.TriggerSync).Methods("POST")
	r.HandleFunc("/sync/status", sh.GetSyncStatus).Methods("GET")
}

// GetSyncStatus returns the current sync state
func (sh *SyncHandler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, sh.sync.Status())
}

// TriggerSync runs a manual cycle and reports its outcome. A degraded cycle
// still answers 200 so the UI can show the stale-data banner.
func (sh *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	res := sh.sync.Trigger(r.Context())

	body := map[string]interface{}{
		"status":  res.Outcome,
		"cycleId": res.CycleID,
		"added":   res.Merge.Added,
		"updated": res.Merge.Updated,
		"orphans": res.Merge.Orphans,
	}
	if res.Err != nil {
		body["error"] = res.Err.Error()
	}

	status := http.StatusOK
	if res.Outcome == feedsync.OutcomeFailed {
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, body)
}
