package calc

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xelth-com/f8tracker/internal/models"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCalculateRatio(t *testing.T) {
	tests := []struct {
		num, den string
		want     string
	}{
		{"10", "4", "2.50"},
		{"5", "0", "N/A"},
		{"abc", "3", "0.00"},
		{"", "", "N/A"},
		{"1", "3", "0.33"},
		{"2", "3", "0.67"},
		{"12abc", "4", "3.00"},
		{" 7.5 ", "2", "3.75"},
		{"-6", "4", "-1.50"},
		{"3", "abc", "N/A"},
	}

	for _, tt := range tests {
		if got := CalculateRatio(tt.num, tt.den); got != tt.want {
			t.Errorf("CalculateRatio(%q, %q) = %q, want %q", tt.num, tt.den, got, tt.want)
		}
	}
}

func TestProgressPercentage(t *testing.T) {
	o := &models.Order{
		FechaF8:          "2024-01-01",
		FechaRecepcionF8: "2024-01-02",
		FechaAsignacion:  "2024-01-03",
		FechaSalidaSalmi: "2024-01-04",
		FechaDespacho:    "2024-01-05",
	}
	if got := ProgressPercentage(o); got != 56 {
		t.Errorf("5 of 9 dates: got %d, want 56", got)
	}

	o.FechaEmpacado = "   "
	if got := ProgressPercentage(o); got != 56 {
		t.Errorf("whitespace-only date must not count: got %d", got)
	}

	if got := ProgressPercentage(&models.Order{}); got != 0 {
		t.Errorf("empty order: got %d, want 0", got)
	}

	full := &models.Order{}
	for _, f := range trackedDateFields {
		full.Set(f, "2024-01-01")
	}
	if got := ProgressPercentage(full); got != 100 {
		t.Errorf("all dates: got %d, want 100", got)
	}
}

func TestProcessingTime(t *testing.T) {
	o := &models.Order{
		FechaRecepcionF8: "2024-01-01",
		FechaDespacho:    "2024-01-10",
		FechaAsignacion:  "2024-01-05",
	}
	if got := ProcessingTime(o, fixedNow); got != "9 días" {
		t.Errorf("got %q, want %q", got, "9 días")
	}

	// earlier milestones are ignored
	o = &models.Order{FechaRecepcionF8: "2024-01-10", FechaF8: "2024-01-01"}
	if got := ProcessingTime(o, fixedNow); got != "52 días" {
		t.Errorf("against now: got %q, want %q", got, "52 días")
	}

	if got := ProcessingTime(&models.Order{FechaDespacho: "2024-01-10"}, fixedNow); got != "" {
		t.Errorf("missing receipt date: got %q, want empty", got)
	}
	if got := ProcessingTime(&models.Order{FechaRecepcionF8: "not a date"}, fixedNow); got != "" {
		t.Errorf("invalid receipt date: got %q, want empty", got)
	}
}

func TestProcessingTimeNeverNegative(t *testing.T) {
	// receipt in the future relative to now
	o := &models.Order{FechaRecepcionF8: "2024-03-05"}
	got := ProcessingTime(o, fixedNow)
	n, err := strconv.Atoi(strings.TrimSuffix(got, " días"))
	if err != nil {
		t.Fatalf("unexpected format %q: %v", got, err)
	}
	if n < 0 {
		t.Errorf("day count must be non-negative, got %d", n)
	}
	if n != 4 {
		t.Errorf("got %d, want 4 (ceil of 3.5 days)", n)
	}
}

func TestParseDate(t *testing.T) {
	valid := map[string]time.Time{
		"2024-01-10":           time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		" 2024-01-10 ":         time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		"2024-01-10T08:30:00Z": time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC),
		"1/10/2024":            time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		"2024/01/10":           time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		"Jan 10, 2024":         time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		"2024-1-5":             time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		"2024-01-10 10:00":     time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC),
		"2024-01-10 10:00:30":  time.Date(2024, 1, 10, 10, 0, 30, 0, time.UTC),
	}
	for in, want := range valid {
		got, ok := ParseDate(in)
		if !ok {
			t.Errorf("ParseDate(%q) failed", in)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, want %v", in, got, want)
		}
	}

	for _, in := range []string{"", "   ", "abc", "10:30", "2024-13-45"} {
		if _, ok := ParseDate(in); ok {
			t.Errorf("ParseDate(%q) should fail", in)
		}
	}
}

func TestComputeDerivedISODates(t *testing.T) {
	o := &models.Order{FechaRecepcionF8: "2024-01-01", FechaEntregaReal: "2024-01-10"}
	ComputeDerived(o, fixedNow)
	if o.TiempoProcesamiento != "9 días" {
		t.Errorf("tiempoProcesamiento = %q, want %q", o.TiempoProcesamiento, "9 días")
	}
}

func TestComputeDerivedIsIdempotent(t *testing.T) {
	o := &models.Order{
		FechaRecepcionF8:             "2024-01-01",
		FechaEntregaReal:             "2024-01-20",
		CantidadTotalAsignada:        "8",
		CantidadTotalSolicitada:      "10",
		CantidadRenglonesAsignados:   "3",
		CantidadRenglonesSolicitados: "0",
	}
	ComputeDerived(o, fixedNow)
	first := o.Clone()
	ComputeDerived(o, fixedNow)

	if diff := cmp.Diff(first, *o); diff != "" {
		t.Errorf("recompute drifted (-first +second):\n%s", diff)
	}
	if o.TiempoProcesamiento != "19 días" || o.PorcentajeAvance != 22 || o.CocienteIJ != "0.80" || o.CocienteKL != "N/A" {
		t.Errorf("unexpected derived values: %q %d %q %q", o.TiempoProcesamiento, o.PorcentajeAvance, o.CocienteIJ, o.CocienteKL)
	}
}

func TestDependsOn(t *testing.T) {
	for _, f := range []string{models.KeyFechaF8, models.KeyEstado, models.KeyCantidadTotalAsignada, models.KeyFechaProyectadaEntrega} {
		if !DependsOn(f) {
			t.Errorf("DependsOn(%q) should be true", f)
		}
	}
	for _, f := range []string{models.KeyComentarios, models.KeyUnidadEjecutora, "foobar"} {
		if DependsOn(f) {
			t.Errorf("DependsOn(%q) should be false", f)
		}
	}
}
