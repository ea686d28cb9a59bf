package feed

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/xelth-com/f8tracker/internal/models"
)

// ExportFilename is the suggested download name for an export.
const ExportFilename = "pedidos_actualizados.csv"

type exportColumn struct {
	label string
	key   string
}

var exportColumns = []exportColumn{
	{"UNIDAD EJECUTORA", models.KeyUnidadEjecutora},
	{"TIPO PEDIDO", models.KeyTipoPedido},
	{"FORMA 8 SALMI", models.KeyForma8Salmi},
	{"DIVISION", models.KeyDivision},
	{"GRUPO", models.KeyGrupo},
	{"TIPO DE SUSTANCIAS", models.KeyTipoSustancias},
	{"CANTIDAD TOTAL ASIGNADA", models.KeyCantidadTotalAsignada},
	{"CANTIDAD TOTAL SOLICITADA", models.KeyCantidadTotalSolicitada},
	{"CANTIDAD DE RENGLONES ASIGNADOS", models.KeyCantidadRenglonesAsignados},
	{"CANTIDAD DE RENGLONES SOLICITADOS", models.KeyCantidadRenglonesSolicitados},
	{"FECHA DE LA F8", models.KeyFechaF8},
	{"FECHA DE RECIBO DE LA F8", models.KeyFechaRecepcionF8},
	{"FECHA DE ASIGNACION", models.KeyFechaAsignacion},
	{"FECHA DE SALIDA EN SALMI", models.KeyFechaSalidaSalmi},
	{"FECHA DE DESPACHO", models.KeyFechaDespacho},
	{"FECHA DE FACTURACION EN COMPUTO", models.KeyFechaFacturacion},
	{"FECHA DE EMPACADO", models.KeyFechaEmpacado},
	{"FECHA PROYECTADA DE ENTREGA", models.KeyFechaProyectadaEntrega},
	{"FECHA DE ENTREGA REAL", models.KeyFechaEntregaReal},
	{"ESTADO", models.KeyEstado},
	{"TIEMPO DE PROCESAMIENTO", models.KeyTiempoProcesamiento},
	{"PORCENTAJE AVANCE", models.KeyPorcentajeAvance},
	{"COCIENTE I/J", models.KeyCocienteIJ},
	{"COCIENTE K/L", models.KeyCocienteKL},
	{"COMENTARIOS", models.KeyComentarios},
}

// ExportHeaders returns the fixed export header labels.
func ExportHeaders() []string {
	labels := make([]string, len(exportColumns))
	for i, c := range exportColumns {
		labels[i] = c.label
	}
	return labels
}

// WriteCSV writes orders with the fixed 25-column header. Values containing
// a comma are wrapped in double quotes; embedded quotes and newlines are
// written as-is.
func WriteCSV(w io.Writer, orders []models.Order) error {
	bw := bufio.NewWriter(w)

	bw.WriteString(strings.Join(ExportHeaders(), ","))
	bw.WriteByte('\n')

	row := make([]string, len(exportColumns))
	for i := range orders {
		for j, c := range exportColumns {
			row[j] = escapeValue(exportValue(&orders[i], c.key))
		}
		bw.WriteString(strings.Join(row, ","))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// ExportCSV renders orders to a byte slice.
func ExportCSV(orders []models.Order) []byte {
	var buf bytes.Buffer
	_ = WriteCSV(&buf, orders)
	return buf.Bytes()
}

// exportValue reads one cell. A progress of zero is written as an empty cell
// like any other unset value.
func exportValue(o *models.Order, key string) string {
	if key == models.KeyPorcentajeAvance && o.PorcentajeAvance == 0 {
		return ""
	}
	return o.Get(key)
}

func escapeValue(v string) string {
	if strings.Contains(v, ",") {
		return `"` + v + `"`
	}
	return v
}
