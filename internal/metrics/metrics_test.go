package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCycle(t *testing.T) {
	r := NewRegistry()
	r.ObserveCycle("success", true, time.Second, 12, 2)
	r.ObserveCycle("degraded", false, time.Second, 12, 0)

	if got := testutil.ToFloat64(r.SyncCycles.WithLabelValues("success")); got != 1 {
		t.Errorf("success cycles = %v", got)
	}
	if got := testutil.ToFloat64(r.Orders); got != 12 {
		t.Errorf("orders = %v", got)
	}
	if got := testutil.ToFloat64(r.FeedOnline); got != 0 {
		t.Errorf("online = %v", got)
	}
	if got := testutil.ToFloat64(r.OrphansTotal); got != 2 {
		t.Errorf("orphans = %v", got)
	}
}

func TestObserveEditAndHandler(t *testing.T) {
	r := NewRegistry()
	r.ObserveEdit("estado", nil)
	r.ObserveEdit("estado", errors.New("invalid"))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`f8_edits_total{field="estado",result="ok"} 1`,
		`f8_edits_total{field="estado",result="rejected"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestObserveEditFoldsUnknownFields(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 100; i++ {
		r.ObserveEdit(fmt.Sprintf("junk%d", i), errors.New("not editable"))
	}
	r.ObserveEdit("comentarios", nil)

	if got := testutil.CollectAndCount(r.Edits); got != 2 {
		t.Errorf("series = %d, want 2", got)
	}
	if got := testutil.ToFloat64(r.Edits.WithLabelValues("unknown", "rejected")); got != 100 {
		t.Errorf("unknown rejected = %v, want 100", got)
	}
}

func TestLastSuccessOnlyOnSuccess(t *testing.T) {
	r := NewRegistry()
	r.ObserveCycle("failed", true, time.Second, 3, 0)
	if got := testutil.ToFloat64(r.LastSuccessTS); got != 0 {
		t.Errorf("failed cycle set last success to %v", got)
	}
	if got := testutil.ToFloat64(r.FeedOnline); got != 1 {
		t.Errorf("online = %v, want 1", got)
	}

	r.ObserveCycle("success", true, time.Second, 3, 0)
	if got := testutil.ToFloat64(r.LastSuccessTS); got == 0 {
		t.Error("success cycle did not set last success")
	}
}
