package printer

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xelth-com/f8tracker/internal/models"
)

// ReportFilename is the suggested download name for the status report.
const ReportFilename = "pedidos_estado.pdf"

type reportColumn struct {
	title string
	width float64
	value func(o *models.Order) string
}

var reportColumns = []reportColumn{
	{"FORMA 8 SALMI", 32, func(o *models.Order) string { return o.Forma8Salmi }},
	{"UNIDAD EJECUTORA", 62, func(o *models.Order) string { return o.UnidadEjecutora }},
	{"TIPO", 24, func(o *models.Order) string { return o.TipoPedido }},
	{"ESTADO", 44, func(o *models.Order) string { return o.Estado }},
	{"AVANCE", 16, func(o *models.Order) string { return strconv.Itoa(o.PorcentajeAvance) + "%" }},
	{"TIEMPO", 22, func(o *models.Order) string { return o.TiempoProcesamiento }},
	{"I/J", 14, func(o *models.Order) string { return o.CocienteIJ }},
	{"K/L", 14, func(o *models.Order) string { return o.CocienteKL }},
	{"DESPACHO", 24, func(o *models.Order) string { return o.FechaDespacho }},
	{"ENTREGA REAL", 25, func(o *models.Order) string { return o.FechaEntregaReal }},
}

// OrdersReportPDF renders a landscape A4 status table of orders.
func OrdersReportPDF(orders []models.Order, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	header := func() {
		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(220, 220, 220)
		for _, c := range reportColumns {
			pdf.CellFormat(c.width, 6, tr(c.title), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 7)
	}

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, tr("Seguimiento de Formas 8"), "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 8)
		pdf.CellFormat(0, 8, tr(fmt.Sprintf("%d pedidos · %s", len(orders), generated.Format("2006-01-02 15:04"))), "", 1, "R", false, 0, "")
		header()
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("%d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AliasNbPages("")
	pdf.AddPage()

	for i := range orders {
		for _, c := range reportColumns {
			pdf.CellFormat(c.width, 5, tr(fit(pdf, c.value(&orders[i]), c.width-1)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fit truncates s so it renders within width at the current font.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
