package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/xelth-com/f8tracker/internal/feed"
	"github.com/xelth-com/f8tracker/internal/services/printer"
	"go.uber.org/zap"
)

// exportCSV downloads the record set in the fixed export layout.
func (r *Router) exportCSV(w http.ResponseWriter, req *http.Request) {
	data := feed.ExportCSV(r.orders.Orders())
	sendFile(w, "text/csv; charset=utf-8", feed.ExportFilename, data)
}

// exportPDF downloads the printable status report.
func (r *Router) exportPDF(w http.ResponseWriter, req *http.Request) {
	pdfBytes, err := printer.OrdersReportPDF(r.orders.Orders(), time.Now())
	if err != nil {
		r.log.Error("report generation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate PDF: %v", err))
		return
	}
	sendFile(w, "application/pdf", printer.ReportFilename, pdfBytes)
}

// orderSlip downloads the packing slip of one order.
func (r *Router) orderSlip(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	o, ok := r.orders.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	pdfBytes, err := printer.OrderSlipPDF(o)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate PDF: %v", err))
		return
	}
	sendFile(w, "application/pdf", fmt.Sprintf("f8_%s.pdf", id), pdfBytes)
}

func sendFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
