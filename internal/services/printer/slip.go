package printer

import (
	"bytes"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"github.com/xelth-com/f8tracker/internal/models"
)

// slipFields are printed, in order, under the slip heading.
var slipFields = []struct {
	label string
	key   string
}{
	{"Unidad ejecutora", models.KeyUnidadEjecutora},
	{"Tipo de pedido", models.KeyTipoPedido},
	{"Tipo de sustancias", models.KeyTipoSustancias},
	{"Estado", models.KeyEstado},
	{"Fecha de recibo", models.KeyFechaRecepcionF8},
	{"Fecha de despacho", models.KeyFechaDespacho},
	{"Entrega proyectada", models.KeyFechaProyectadaEntrega},
	{"Tiempo de procesamiento", models.KeyTiempoProcesamiento},
	{"Comentarios", models.KeyComentarios},
}

// OrderSlipPDF renders an A6 packing slip for one order. The QR code
// carries the Forma 8 SALMI number so the package can be scanned back to
// its record.
func OrderSlipPDF(o models.Order) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A6", "")
	pdf.SetMargins(6, 6, 6)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	qrPng, err := qrcode.Encode(o.Forma8Salmi, qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("qr", imgOptions, bytes.NewReader(qrPng))
	pdf.ImageOptions("qr", 69, 6, 30, 30, false, imgOptions, 0, "")

	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(60, 5, "FORMA 8 SALMI", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(60, 9, tr(o.Forma8Salmi), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(60, 6, "Avance: "+strconv.Itoa(o.PorcentajeAvance)+"%", "", 1, "L", false, 0, "")

	pdf.SetY(40)
	for _, f := range slipFields {
		pdf.SetFont("Arial", "B", 8)
		pdf.CellFormat(38, 6, tr(f.label), "B", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 8)
		pdf.MultiCell(0, 6, tr(o.Get(f.key)), "B", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
