// Package calc computes the derived columns of an order: processing time,
// progress percentage and the two fill-rate quotients. Everything here is a
// pure function of the order and the supplied clock reading.
package calc

import (
	"fmt"
	"math"
	"time"

	"github.com/xelth-com/f8tracker/internal/models"
)

// NotAvailable is the ratio value when the denominator is zero.
const NotAvailable = "N/A"

// milestoneFields are scanned, in order, for the latest date after receipt.
var milestoneFields = []string{
	models.KeyFechaF8,
	models.KeyFechaAsignacion,
	models.KeyFechaSalidaSalmi,
	models.KeyFechaDespacho,
	models.KeyFechaFacturacion,
	models.KeyFechaEmpacado,
	models.KeyFechaProyectadaEntrega,
	models.KeyFechaEntregaReal,
}

// trackedDateFields count towards the progress percentage.
var trackedDateFields = []string{
	models.KeyFechaF8,
	models.KeyFechaRecepcionF8,
	models.KeyFechaAsignacion,
	models.KeyFechaSalidaSalmi,
	models.KeyFechaDespacho,
	models.KeyFechaFacturacion,
	models.KeyFechaEmpacado,
	models.KeyFechaProyectadaEntrega,
	models.KeyFechaEntregaReal,
}

// ComputeDerived overwrites the four derived fields of o.
func ComputeDerived(o *models.Order, now time.Time) {
	o.TiempoProcesamiento = ProcessingTime(o, now)
	o.PorcentajeAvance = ProgressPercentage(o)
	o.CocienteIJ = CalculateRatio(o.CantidadTotalAsignada, o.CantidadTotalSolicitada)
	o.CocienteKL = CalculateRatio(o.CantidadRenglonesAsignados, o.CantidadRenglonesSolicitados)
}

// DependsOn reports whether changing field can change a derived value.
// Status is included so a status change always refreshes the row.
func DependsOn(field string) bool {
	switch models.KindOf(field) {
	case models.KindDate, models.KindQuantity, models.KindStatus:
		return true
	}
	return false
}

// ProcessingTime returns "<N> días" measured from the receipt date to the
// latest later milestone, or to now when no milestone is later. It returns
// "" when the receipt date is missing or unparseable.
func ProcessingTime(o *models.Order, now time.Time) string {
	receipt, ok := ParseDate(o.FechaRecepcionF8)
	if !ok {
		return ""
	}

	last := receipt
	for _, field := range milestoneFields {
		if d, ok := ParseDate(o.Get(field)); ok && d.After(last) {
			last = d
		}
	}
	if last.Equal(receipt) {
		last = now
	}

	diff := last.Sub(receipt)
	if diff < 0 {
		diff = -diff
	}
	days := int64(math.Ceil(float64(diff) / float64(24*time.Hour)))
	return fmt.Sprintf("%d días", days)
}

// ProgressPercentage is the share of the nine tracked dates that are
// filled in, rounded to a whole percent.
func ProgressPercentage(o *models.Order) int {
	completed := 0
	for _, field := range trackedDateFields {
		if !isBlank(o.Get(field)) {
			completed++
		}
	}
	pct := float64(completed) / float64(len(trackedDateFields)) * 100
	return int(math.Floor(pct + 0.5))
}
