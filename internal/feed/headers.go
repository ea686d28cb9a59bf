package feed

import (
	"fmt"
	"os"
	"strings"

	"github.com/xelth-com/f8tracker/internal/models"
	"gopkg.in/yaml.v3"
)

// knownHeaders maps the published sheet's column labels to canonical keys.
// The last three labels are the ones the CSV export writes for the derived
// columns, so an exported file parses back onto the same keys.
var knownHeaders = map[string]string{
	"UNIDAD EJECUTORA":                  models.KeyUnidadEjecutora,
	"TIPO PEDIDO":                       models.KeyTipoPedido,
	"FORMA 8 SALMI":                     models.KeyForma8Salmi,
	"FORMA 8 SISCONI":                   models.KeyForma8Sisconi,
	"DIVISION":                          models.KeyDivision,
	"GRUPO":                             models.KeyGrupo,
	"TIPO DE SUSTANCIAS":                models.KeyTipoSustancias,
	"CANTIDAD TOTAL ASIGNADA":           models.KeyCantidadTotalAsignada,
	"CANTIDAD TOTAL SOLICITADA":         models.KeyCantidadTotalSolicitada,
	"CANTIDAD DE RENGLONES ASIGNADOS":   models.KeyCantidadRenglonesAsignados,
	"CANTIDAD DE RENGLONES SOLICITADOS": models.KeyCantidadRenglonesSolicitados,
	"FECHA DE LA F8":                    models.KeyFechaF8,
	"FECHA DE RECIBO DE LA F8":          models.KeyFechaRecepcionF8,
	"FECHA DE ASIGNACION":               models.KeyFechaAsignacion,
	"FECHA DE SALIDA EN SALMI":          models.KeyFechaSalidaSalmi,
	"FECHA DE DESPACHO":                 models.KeyFechaDespacho,
	"FECHA DE FACTURACION EN COMPUTO":   models.KeyFechaFacturacion,
	"FECHA DE EMPACADO":                 models.KeyFechaEmpacado,
	"FECHA PROYECTADA DE ENTREGA":       models.KeyFechaProyectadaEntrega,
	"FECHA DE ENTREGA REAL":             models.KeyFechaEntregaReal,
	"ESTADO":                            models.KeyEstado,
	"TIEMPO DE PROCESAMIENTO":           models.KeyTiempoProcesamiento,
	"PEDIDO COMPLETADO":                 models.KeyPedidoCompletado,
	"FILL RATE POR CANTIDAD":            models.KeyFillRateCantidad,
	"FILL RATE POR RENGLON":             models.KeyFillRateRenglon,
	"COMENTARIOS":                       models.KeyComentarios,

	"PORCENTAJE AVANCE": models.KeyPorcentajeAvance,
	"COCIENTE I/J":      models.KeyCocienteIJ,
	"COCIENTE K/L":      models.KeyCocienteKL,
}

// Mapper translates column labels into canonical field keys.
type Mapper struct {
	table map[string]string
}

// NewMapper returns a mapper over the built-in header table.
func NewMapper() *Mapper {
	table := make(map[string]string, len(knownHeaders))
	for label, key := range knownHeaders {
		table[label] = key
	}
	return &Mapper{table: table}
}

// WithAliases returns a copy of m that also knows the given label aliases.
// Every alias must point at a canonical Order field.
func (m *Mapper) WithAliases(aliases map[string]string) (*Mapper, error) {
	out := &Mapper{table: make(map[string]string, len(m.table)+len(aliases))}
	for label, key := range m.table {
		out.table[label] = key
	}
	for label, key := range aliases {
		if !models.IsKnownField(key) {
			return nil, fmt.Errorf("header alias %q: unknown field %q", label, key)
		}
		out.table[strings.TrimSpace(label)] = key
	}
	return out, nil
}

// Key returns the canonical key for label. Unknown labels fall back to the
// label lowercased with spaces removed, so no column is ever dropped.
func (m *Mapper) Key(label string) string {
	if key, ok := m.table[label]; ok {
		return key
	}
	return strings.ReplaceAll(strings.ToLower(label), " ", "")
}

var defaultMapper = NewMapper()

// MapHeader maps label with the built-in header table.
func MapHeader(label string) string {
	return defaultMapper.Key(label)
}

// LoadAliases reads a YAML document of `label: canonicalKey` pairs.
func LoadAliases(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read header aliases: %w", err)
	}
	aliases := map[string]string{}
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("parse header aliases %s: %w", path, err)
	}
	return aliases, nil
}
