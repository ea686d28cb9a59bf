package models

import (
	"strconv"

	"gorm.io/datatypes"
)

// Canonical field keys. These are the JSON names of Order fields and the
// names the feed headers are mapped onto.
const (
	KeyForma8Salmi = "forma8Salmi"

	KeyUnidadEjecutora        = "unidadEjecutora"
	KeyTipoPedido             = "tipoPedido"
	KeyForma8Sisconi          = "forma8Sisconi"
	KeyDivision               = "division"
	KeyGrupo                  = "grupo"
	KeyTipoSustancias         = "tipoSustancias"
	KeyFechaProyectadaEntrega = "fechaProyectadaEntrega"

	KeyCantidadTotalAsignada        = "cantidadTotalAsignada"
	KeyCantidadTotalSolicitada      = "cantidadTotalSolicitada"
	KeyCantidadRenglonesAsignados   = "cantidadRenglonesAsignados"
	KeyCantidadRenglonesSolicitados = "cantidadRenglonesSolicitados"

	KeyFechaF8          = "fechaF8"
	KeyFechaRecepcionF8 = "fechaRecepcionF8"
	KeyFechaAsignacion  = "fechaAsignacion"
	KeyFechaSalidaSalmi = "fechaSalidaSalmi"
	KeyFechaDespacho    = "fechaDespacho"
	KeyFechaFacturacion = "fechaFacturacion"
	KeyFechaEmpacado    = "fechaEmpacado"
	KeyFechaEntregaReal = "fechaEntregaReal"

	KeyEstado      = "estado"
	KeyComentarios = "comentarios"

	KeyPedidoCompletado = "pedidoCompletado"
	KeyFillRateCantidad = "fillRateCantidad"
	KeyFillRateRenglon  = "fillRateRenglon"

	KeyTiempoProcesamiento = "tiempoProcesamiento"
	KeyPorcentajeAvance    = "porcentajeAvance"
	KeyCocienteIJ          = "cocienteIJ"
	KeyCocienteKL          = "cocienteKL"
)

// DateFieldPrefix is shared by every date field key.
const DateFieldPrefix = "fecha"

// Order is one Forma 8 requisition as tracked locally.
// Raw values are kept as the feed carries them; derived values are
// recomputed by the calc package and never edited directly.
type Order struct {
	// Identity
	Forma8Salmi string `gorm:"column:forma8_salmi;primaryKey;type:varchar(255)" json:"forma8Salmi"`

	// Base fields, refreshed from the feed on every merge
	UnidadEjecutora        string `gorm:"index:idx_orders_unidad" json:"unidadEjecutora"`
	TipoPedido             string `json:"tipoPedido"`
	Forma8Sisconi          string `json:"forma8Sisconi"`
	Division               string `json:"division"`
	Grupo                  string `json:"grupo"`
	TipoSustancias         string `json:"tipoSustancias"`
	FechaProyectadaEntrega string `json:"fechaProyectadaEntrega"`

	// Quantities (editable)
	CantidadTotalAsignada        string `json:"cantidadTotalAsignada"`
	CantidadTotalSolicitada      string `json:"cantidadTotalSolicitada"`
	CantidadRenglonesAsignados   string `json:"cantidadRenglonesAsignados"`
	CantidadRenglonesSolicitados string `json:"cantidadRenglonesSolicitados"`

	// Milestone dates (editable)
	FechaF8          string `gorm:"column:fecha_f8" json:"fechaF8"`
	FechaRecepcionF8 string `gorm:"column:fecha_recepcion_f8" json:"fechaRecepcionF8"`
	FechaAsignacion  string `json:"fechaAsignacion"`
	FechaSalidaSalmi string `json:"fechaSalidaSalmi"`
	FechaDespacho    string `json:"fechaDespacho"`
	FechaFacturacion string `json:"fechaFacturacion"`
	FechaEmpacado    string `json:"fechaEmpacado"`
	FechaEntregaReal string `json:"fechaEntregaReal"`

	Estado      string `gorm:"index:idx_orders_estado" json:"estado"`
	Comentarios string `gorm:"type:text" json:"comentarios"`

	// Columns the sheet computes itself; passed through untouched
	PedidoCompletado string `json:"pedidoCompletado"`
	FillRateCantidad string `json:"fillRateCantidad"`
	FillRateRenglon  string `json:"fillRateRenglon"`

	// Derived
	TiempoProcesamiento string `json:"tiempoProcesamiento"`
	PorcentajeAvance    int    `json:"porcentajeAvance"`
	CocienteIJ          string `gorm:"column:cociente_ij" json:"cocienteIJ"`
	CocienteKL          string `gorm:"column:cociente_kl" json:"cocienteKL"`

	// Unknown feed columns keyed by their fallback key
	Extra datatypes.JSONMap `gorm:"type:jsonb" json:"extra,omitempty"`
}

// TableName specifies the table name for Order model
func (Order) TableName() string {
	return "orders"
}

// ID returns the storage key of the order.
func (o *Order) ID() string {
	return o.Forma8Salmi
}

// Get returns the raw value stored under a canonical key. Unknown keys are
// looked up in Extra.
func (o *Order) Get(key string) string {
	if key == KeyPorcentajeAvance {
		return strconv.Itoa(o.PorcentajeAvance)
	}
	if f, ok := catalog[key]; ok {
		return *f.ref(o)
	}
	if o.Extra == nil {
		return ""
	}
	if v, ok := o.Extra[key].(string); ok {
		return v
	}
	return ""
}

// Set stores value under a canonical key. Unknown keys go to Extra so no
// feed column is ever lost.
func (o *Order) Set(key, value string) {
	if key == KeyPorcentajeAvance {
		n, _ := strconv.Atoi(value)
		o.PorcentajeAvance = n
		return
	}
	if f, ok := catalog[key]; ok {
		*f.ref(o) = value
		return
	}
	if o.Extra == nil {
		o.Extra = datatypes.JSONMap{}
	}
	o.Extra[key] = value
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	if o.Extra != nil {
		extra := make(datatypes.JSONMap, len(o.Extra))
		for k, v := range o.Extra {
			extra[k] = v
		}
		o.Extra = extra
	}
	return o
}
