package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/f8tracker/internal/models"
	"github.com/xelth-com/f8tracker/internal/reconcile"
	"github.com/xelth-com/f8tracker/internal/store"
	"go.uber.org/zap"
)

// listOrders returns every order, or those matching ?unidad= or ?estado=.
func (r *Router) listOrders(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	var (
		index string
		value string
	)
	switch {
	case q.Has("unidad"):
		index, value = store.IndexUnidad, q.Get("unidad")
	case q.Has("estado"):
		index, value = store.IndexEstado, q.Get("estado")
	default:
		respondJSON(w, http.StatusOK, r.orders.Orders())
		return
	}

	orders, err := r.orders.FindBy(req.Context(), index, value)
	if err != nil {
		r.log.Error("order lookup failed", zap.String("index", index), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "order lookup failed")
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (r *Router) getOrder(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	o, ok := r.orders.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	respondJSON(w, http.StatusOK, o)
}

type editRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// editOrder applies a single field edit.
func (r *Router) editOrder(w http.ResponseWriter, req *http.Request) {
	var body editRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	edit := models.Edit{ID: mux.Vars(req)["id"], Field: body.Field, Value: body.Value}
	o, err := r.orders.ApplyEdit(req.Context(), edit)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, o)
	case errors.Is(err, reconcile.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reconcile.ErrFieldNotEditable), errors.Is(err, reconcile.ErrInvalidStatus):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		r.log.Error("edit failed", zap.String("id", edit.ID), zap.String("field", edit.Field), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "edit could not be saved")
	}
}
