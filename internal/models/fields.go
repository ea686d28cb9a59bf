package models

import "strings"

// FieldKind classifies a canonical field by who owns its value: the feed
// (base and pass-through columns), the user (quantities, dates, status,
// comments) or the calculator (derived).
type FieldKind int

const (
	KindUnknown FieldKind = iota
	KindIdentity
	KindBase
	KindFeed
	KindQuantity
	KindDate
	KindStatus
	KindComment
	KindDerived
)

type fieldSpec struct {
	kind FieldKind
	ref  func(o *Order) *string
}

var catalog = map[string]fieldSpec{
	KeyForma8Salmi: {KindIdentity, func(o *Order) *string { return &o.Forma8Salmi }},

	KeyUnidadEjecutora: {KindBase, func(o *Order) *string { return &o.UnidadEjecutora }},
	KeyTipoPedido:      {KindBase, func(o *Order) *string { return &o.TipoPedido }},
	KeyForma8Sisconi:   {KindBase, func(o *Order) *string { return &o.Forma8Sisconi }},
	KeyDivision:        {KindBase, func(o *Order) *string { return &o.Division }},
	KeyGrupo:           {KindBase, func(o *Order) *string { return &o.Grupo }},
	KeyTipoSustancias:  {KindBase, func(o *Order) *string { return &o.TipoSustancias }},

	KeyCantidadTotalAsignada:        {KindQuantity, func(o *Order) *string { return &o.CantidadTotalAsignada }},
	KeyCantidadTotalSolicitada:      {KindQuantity, func(o *Order) *string { return &o.CantidadTotalSolicitada }},
	KeyCantidadRenglonesAsignados:   {KindQuantity, func(o *Order) *string { return &o.CantidadRenglonesAsignados }},
	KeyCantidadRenglonesSolicitados: {KindQuantity, func(o *Order) *string { return &o.CantidadRenglonesSolicitados }},

	KeyFechaF8:                {KindDate, func(o *Order) *string { return &o.FechaF8 }},
	KeyFechaRecepcionF8:       {KindDate, func(o *Order) *string { return &o.FechaRecepcionF8 }},
	KeyFechaAsignacion:        {KindDate, func(o *Order) *string { return &o.FechaAsignacion }},
	KeyFechaSalidaSalmi:       {KindDate, func(o *Order) *string { return &o.FechaSalidaSalmi }},
	KeyFechaDespacho:          {KindDate, func(o *Order) *string { return &o.FechaDespacho }},
	KeyFechaFacturacion:       {KindDate, func(o *Order) *string { return &o.FechaFacturacion }},
	KeyFechaEmpacado:          {KindDate, func(o *Order) *string { return &o.FechaEmpacado }},
	KeyFechaProyectadaEntrega: {KindDate, func(o *Order) *string { return &o.FechaProyectadaEntrega }},
	KeyFechaEntregaReal:       {KindDate, func(o *Order) *string { return &o.FechaEntregaReal }},

	KeyEstado:      {KindStatus, func(o *Order) *string { return &o.Estado }},
	KeyComentarios: {KindComment, func(o *Order) *string { return &o.Comentarios }},

	KeyPedidoCompletado: {KindFeed, func(o *Order) *string { return &o.PedidoCompletado }},
	KeyFillRateCantidad: {KindFeed, func(o *Order) *string { return &o.FillRateCantidad }},
	KeyFillRateRenglon:  {KindFeed, func(o *Order) *string { return &o.FillRateRenglon }},

	KeyTiempoProcesamiento: {KindDerived, func(o *Order) *string { return &o.TiempoProcesamiento }},
	KeyCocienteIJ:          {KindDerived, func(o *Order) *string { return &o.CocienteIJ }},
	KeyCocienteKL:          {KindDerived, func(o *Order) *string { return &o.CocienteKL }},
}

// KindOf reports the kind of a canonical key. The projected delivery date
// is a date for editing purposes even though the merge treats it as base.
func KindOf(key string) FieldKind {
	if key == KeyPorcentajeAvance {
		return KindDerived
	}
	if f, ok := catalog[key]; ok {
		return f.kind
	}
	return KindUnknown
}

// IsKnownField reports whether key is one of the canonical Order fields.
func IsKnownField(key string) bool {
	return KindOf(key) != KindUnknown
}

// IsEditable reports whether a user may set key directly.
func IsEditable(key string) bool {
	switch KindOf(key) {
	case KindQuantity, KindDate, KindStatus, KindComment:
		return true
	}
	return false
}

// IsDateField reports whether key names a date field.
func IsDateField(key string) bool {
	return strings.HasPrefix(key, DateFieldPrefix)
}

// BaseFields are replaced by the incoming feed value on every merge.
var BaseFields = []string{
	KeyUnidadEjecutora,
	KeyTipoPedido,
	KeyDivision,
	KeyGrupo,
	KeyTipoSustancias,
	KeyForma8Sisconi,
	KeyFechaProyectadaEntrega,
}

// FeedFields are sheet-side columns carried through from the feed.
var FeedFields = []string{
	KeyPedidoCompletado,
	KeyFillRateCantidad,
	KeyFillRateRenglon,
}

// PreservedFields keep the local value across a merge unless it is empty.
var PreservedFields = []string{
	KeyCantidadTotalAsignada,
	KeyCantidadTotalSolicitada,
	KeyCantidadRenglonesAsignados,
	KeyCantidadRenglonesSolicitados,
	KeyFechaAsignacion,
	KeyFechaSalidaSalmi,
	KeyFechaDespacho,
	KeyFechaFacturacion,
	KeyFechaEmpacado,
	KeyFechaEntregaReal,
	KeyEstado,
	KeyComentarios,
}

// SourcePreferredFields take the feed value unless the feed sends a blank
// and a local value exists.
var SourcePreferredFields = []string{
	KeyFechaF8,
	KeyFechaRecepcionF8,
}

// DerivedFields are recomputed from the other fields.
var DerivedFields = []string{
	KeyTiempoProcesamiento,
	KeyPorcentajeAvance,
	KeyCocienteIJ,
	KeyCocienteKL,
}
