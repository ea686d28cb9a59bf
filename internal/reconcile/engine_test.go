package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xelth-com/f8tracker/internal/models"
	"github.com/xelth-com/f8tracker/internal/store"
)

// flakyStore fails writes while fail is set.
type flakyStore struct {
	*store.MemoryStore
	fail bool
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) Put(ctx context.Context, o models.Order) error {
	if f.fail {
		return errDiskFull
	}
	return f.MemoryStore.Put(ctx, o)
}

func (f *flakyStore) ReplaceAll(ctx context.Context, orders []models.Order) error {
	if f.fail {
		return errDiskFull
	}
	return f.MemoryStore.ReplaceAll(ctx, orders)
}

func newTestEngine(t *testing.T, s store.Store, seed ...models.Order) *Engine {
	t.Helper()
	e := NewEngine(s, WithClock(func() time.Time { return fixedNow }))
	if len(seed) > 0 {
		_, err := e.Reconcile(context.Background(), seed)
		require.NoError(t, err)
	}
	return e
}

func TestEngineReconcilePersists(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	e := newTestEngine(t, s, models.Order{Forma8Salmi: "A1", Estado: "FACTURADO", Comentarios: "urgent"})

	res, err := e.Reconcile(ctx, []models.Order{{Forma8Salmi: "A1", UnidadEjecutora: "UE1"}})
	require.NoError(t, err)
	require.Equal(t, 1, res.Updated)

	got, ok := e.Get("A1")
	require.True(t, ok)
	require.Equal(t, "FACTURADO", got.Estado)
	require.Equal(t, "urgent", got.Comentarios)
	require.Equal(t, "UE1", got.UnidadEjecutora)

	stored, err := s.Get(ctx, "A1")
	require.NoError(t, err)
	require.Equal(t, "UE1", stored.UnidadEjecutora)

	// a fresh engine over the same store sees the same set
	reloaded := NewEngine(s)
	n, err := reloaded.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, reloaded.Len())
}

func TestEngineReconcileFailureKeepsWorkingSet(t *testing.T) {
	s := &flakyStore{MemoryStore: store.NewMemoryStore()}
	e := newTestEngine(t, s, models.Order{Forma8Salmi: "A1"})

	s.fail = true
	_, err := e.Reconcile(context.Background(), []models.Order{{Forma8Salmi: "B1"}})
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, errDiskFull)

	require.Equal(t, 1, e.Len())
	_, ok := e.Get("A1")
	require.True(t, ok)
}

func TestEngineApplyEdit(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	e := newTestEngine(t, s, models.Order{
		Forma8Salmi:             "A1",
		CantidadTotalSolicitada: "4",
		FechaRecepcionF8:        "2024-01-01",
	})

	var changes []Change
	e.OnEdit(func(_ context.Context, c Change) { changes = append(changes, c) })

	got, err := e.ApplyEdit(ctx, models.Edit{ID: "A1", Field: models.KeyCantidadTotalAsignada, Value: "10"})
	require.NoError(t, err)
	require.Equal(t, "2.50", got.CocienteIJ)

	got, err = e.ApplyEdit(ctx, models.Edit{ID: "A1", Field: models.KeyFechaDespacho, Value: "2024-01-10"})
	require.NoError(t, err)
	require.Equal(t, "9 días", got.TiempoProcesamiento)
	require.Equal(t, 22, got.PorcentajeAvance)

	_, err = e.ApplyEdit(ctx, models.Edit{ID: "A1", Field: models.KeyEstado, Value: string(models.StatusEmpacado)})
	require.NoError(t, err)
	_, err = e.ApplyEdit(ctx, models.Edit{ID: "A1", Field: models.KeyComentarios, Value: "llamar"})
	require.NoError(t, err)

	stored, err := s.Get(ctx, "A1")
	require.NoError(t, err)
	require.Equal(t, "10", stored.CantidadTotalAsignada)
	require.Equal(t, "2024-01-10", stored.FechaDespacho)
	require.Equal(t, "EMPACADO", stored.Estado)
	require.Equal(t, "llamar", stored.Comentarios)
	require.Equal(t, "2.50", stored.CocienteIJ)

	require.Len(t, changes, 4)
	require.Equal(t, "", changes[0].OldValue)
	require.Equal(t, "10", changes[0].Order.CantidadTotalAsignada)

	// the edit survives the next feed refresh
	_, err = e.Reconcile(ctx, []models.Order{{Forma8Salmi: "A1", UnidadEjecutora: "UE1"}})
	require.NoError(t, err)
	after, _ := e.Get("A1")
	require.Equal(t, "EMPACADO", after.Estado)
	require.Equal(t, "llamar", after.Comentarios)
	require.Equal(t, "2.50", after.CocienteIJ)
}

func TestEngineApplyEditRejections(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, store.NewMemoryStore(), models.Order{Forma8Salmi: "A1", Estado: "FACTURADO"})

	tests := []struct {
		name string
		edit models.Edit
		want error
	}{
		{"unknown id", models.Edit{ID: "ZZ", Field: models.KeyComentarios, Value: "x"}, ErrRecordNotFound},
		{"identity", models.Edit{ID: "A1", Field: models.KeyForma8Salmi, Value: "A2"}, ErrFieldNotEditable},
		{"derived", models.Edit{ID: "A1", Field: models.KeyCocienteIJ, Value: "9"}, ErrFieldNotEditable},
		{"base", models.Edit{ID: "A1", Field: models.KeyUnidadEjecutora, Value: "x"}, ErrFieldNotEditable},
		{"unknown field", models.Edit{ID: "A1", Field: "foobar", Value: "x"}, ErrFieldNotEditable},
		{"bad status", models.Edit{ID: "A1", Field: models.KeyEstado, Value: "PERDIDO"}, ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ApplyEdit(ctx, tt.edit)
			require.ErrorIs(t, err, tt.want)
		})
	}

	got, _ := e.Get("A1")
	require.Equal(t, "FACTURADO", got.Estado)

	// clearing the status is allowed
	got, err := e.ApplyEdit(ctx, models.Edit{ID: "A1", Field: models.KeyEstado, Value: ""})
	require.NoError(t, err)
	require.Equal(t, "", got.Estado)
}

func TestEngineApplyEditPersistenceFailure(t *testing.T) {
	s := &flakyStore{MemoryStore: store.NewMemoryStore()}
	e := newTestEngine(t, s, models.Order{Forma8Salmi: "A1"})

	s.fail = true
	_, err := e.ApplyEdit(context.Background(), models.Edit{ID: "A1", Field: models.KeyComentarios, Value: "x"})
	require.ErrorIs(t, err, ErrPersistence)

	got, _ := e.Get("A1")
	require.Equal(t, "", got.Comentarios)
}

func TestEngineReturnsCopies(t *testing.T) {
	e := newTestEngine(t, store.NewMemoryStore(), models.Order{Forma8Salmi: "A1"})

	orders := e.Orders()
	orders[0].Comentarios = "mutated"
	got, _ := e.Get("A1")
	require.Equal(t, "", got.Comentarios)
}

func TestEngineFindBy(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, store.NewMemoryStore(),
		models.Order{Forma8Salmi: "A1", UnidadEjecutora: "UE1"},
		models.Order{Forma8Salmi: "A2", UnidadEjecutora: "UE2"},
	)

	got, err := e.FindBy(ctx, store.IndexUnidad, "UE2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "A2", got[0].Forma8Salmi)

	_, err = e.FindBy(ctx, "grupo", "x")
	require.ErrorIs(t, err, store.ErrUnknownIndex)
}

func TestEngineConcurrentEditsAndReconciles(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	e := newTestEngine(t, s, models.Order{Forma8Salmi: "A1"}, models.Order{Forma8Salmi: "A2"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = e.ApplyEdit(ctx, models.Edit{ID: "A1", Field: models.KeyComentarios, Value: "edited"})
		}()
		go func() {
			defer wg.Done()
			_, _ = e.Reconcile(ctx, []models.Order{{Forma8Salmi: "A1"}, {Forma8Salmi: "A2"}})
		}()
	}
	wg.Wait()

	got, _ := e.Get("A1")
	require.Equal(t, "edited", got.Comentarios)
	stored, err := s.Get(ctx, "A1")
	require.NoError(t, err)
	require.Equal(t, "edited", stored.Comentarios)
}

func TestEngineEditObserver(t *testing.T) {
	type attempt struct {
		field string
		ok    bool
	}
	var seen []attempt
	e := NewEngine(store.NewMemoryStore(), WithEditObserver(func(field string, err error) {
		seen = append(seen, attempt{field, err == nil})
	}))
	_, err := e.Reconcile(context.Background(), []models.Order{{Forma8Salmi: "A1"}})
	require.NoError(t, err)

	_, _ = e.ApplyEdit(context.Background(), models.Edit{ID: "A1", Field: models.KeyComentarios, Value: "x"})
	_, _ = e.ApplyEdit(context.Background(), models.Edit{ID: "A1", Field: models.KeyCocienteKL, Value: "1"})

	require.Equal(t, []attempt{{models.KeyComentarios, true}, {models.KeyCocienteKL, false}}, seen)
}
