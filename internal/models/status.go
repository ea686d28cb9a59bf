package models

// OrderStatus is one step of the Forma 8 fulfillment workflow.
type OrderStatus string

const (
	StatusF8Recibida           OrderStatus = "F8 RECIBIDA"
	StatusF8RecibidaSinAsignar OrderStatus = "F8 RECIBIDA SIN ASIGNAR"
	StatusEnAsignacion         OrderStatus = "EN ASIGNACION"
	StatusSalidaDeSalmi        OrderStatus = "SALIDA DE SALMI"
	StatusFacturado            OrderStatus = "FACTURADO"
	StatusEmpacado             OrderStatus = "EMPACADO"
	StatusEntregada            OrderStatus = "ENTREGADA"
)

// OrderStatuses lists the allowed statuses in workflow order.
var OrderStatuses = []OrderStatus{
	StatusF8Recibida,
	StatusF8RecibidaSinAsignar,
	StatusEnAsignacion,
	StatusSalidaDeSalmi,
	StatusFacturado,
	StatusEmpacado,
	StatusEntregada,
}

// IsValidStatus returns true if s is one of OrderStatuses
func IsValidStatus(s string) bool {
	for _, st := range OrderStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

// Edit is a single field change emitted by the presentation layer.
type Edit struct {
	ID    string `json:"id"`
	Field string `json:"field"`
	Value string `json:"value"`
}
