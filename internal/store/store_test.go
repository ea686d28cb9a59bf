package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/f8tracker/internal/database"
	"github.com/xelth-com/f8tracker/internal/models"
	"go.uber.org/zap"
)

func sampleOrders() []models.Order {
	a2 := models.Order{
		Forma8Salmi:     "A2",
		UnidadEjecutora: "Hospital, Central",
		Estado:          string(models.StatusFacturado),
		Comentarios:     "urgente",
	}
	a2.Set("columnanueva", "x")
	return []models.Order{
		{Forma8Salmi: "A1", UnidadEjecutora: "UE1", Estado: string(models.StatusEmpacado), PorcentajeAvance: 56, CocienteIJ: "2.50"},
		a2,
		{Forma8Salmi: "B7", UnidadEjecutora: "UE1"},
	}
}

func requireOrders(t *testing.T, want, got []models.Order) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("orders mismatch (-want +got):\n%s", diff)
	}
}

func ids(orders []models.Order) []string {
	out := make([]string, len(orders))
	for i := range orders {
		out[i] = orders[i].Forma8Salmi
	}
	return out
}

// runStoreContract exercises the behaviour every backend shares.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.Clear(ctx))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	_, err = s.Get(ctx, "A1")
	require.ErrorIs(t, err, ErrNotFound)

	// ReplaceAll in non-sorted order, read back sorted
	orders := sampleOrders()
	require.NoError(t, s.ReplaceAll(ctx, []models.Order{orders[2], orders[0], orders[1]}))
	all, err = s.GetAll(ctx)
	require.NoError(t, err)
	requireOrders(t, orders, all)

	got, err := s.Get(ctx, "A2")
	require.NoError(t, err)
	require.Equal(t, "x", got.Get("columnanueva"))

	byUnidad, err := s.FindBy(ctx, IndexUnidad, "UE1")
	require.NoError(t, err)
	require.Equal(t, []string{"A1", "B7"}, ids(byUnidad))

	byEstado, err := s.FindBy(ctx, IndexEstado, string(models.StatusFacturado))
	require.NoError(t, err)
	require.Equal(t, []string{"A2"}, ids(byEstado))

	_, err = s.FindBy(ctx, "grupo", "x")
	require.ErrorIs(t, err, ErrUnknownIndex)

	// Put moves the record between index values
	a1 := orders[0]
	a1.UnidadEjecutora = "UE9"
	a1.Estado = string(models.StatusEntregada)
	require.NoError(t, s.Put(ctx, a1))

	byUnidad, err = s.FindBy(ctx, IndexUnidad, "UE1")
	require.NoError(t, err)
	require.Equal(t, []string{"B7"}, ids(byUnidad))
	byUnidad, err = s.FindBy(ctx, IndexUnidad, "UE9")
	require.NoError(t, err)
	require.Equal(t, []string{"A1"}, ids(byUnidad))

	// Put inserts unknown ids
	require.NoError(t, s.Put(ctx, models.Order{Forma8Salmi: "C1"}))
	all, err = s.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"A1", "A2", "B7", "C1"}, ids(all))

	require.ErrorIs(t, s.Put(ctx, models.Order{}), ErrEmptyID)
	require.ErrorIs(t, s.ReplaceAll(ctx, []models.Order{{}}), ErrEmptyID)

	// ReplaceAll drops records that are not in the new set
	require.NoError(t, s.ReplaceAll(ctx, []models.Order{{Forma8Salmi: "Z1", UnidadEjecutora: "UE1"}}))
	all, err = s.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Z1"}, ids(all))
	byUnidad, err = s.FindBy(ctx, IndexUnidad, "UE1")
	require.NoError(t, err)
	require.Equal(t, []string{"Z1"}, ids(byUnidad))

	require.NoError(t, s.Clear(ctx))
	all, err = s.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
	byUnidad, err = s.FindBy(ctx, IndexUnidad, "UE1")
	require.NoError(t, err)
	require.Empty(t, byUnidad)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	runStoreContract(t, s)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.ReplaceAll(ctx, sampleOrders()))

	got, err := s.Get(ctx, "A2")
	require.NoError(t, err)
	got.Set("columnanueva", "changed")

	again, err := s.Get(ctx, "A2")
	require.NoError(t, err)
	require.Equal(t, "x", again.Get("columnanueva"))
}

func TestPebbleStore(t *testing.T) {
	s, err := OpenPebble(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	runStoreContract(t, s)
}

func TestPebbleStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenPebble(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceAll(ctx, sampleOrders()))
	require.NoError(t, s.Close())

	s, err = OpenPebble(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	requireOrders(t, sampleOrders(), all)

	byUnidad, err := s.FindBy(ctx, IndexUnidad, "UE1")
	require.NoError(t, err)
	require.Equal(t, []string{"A1", "B7"}, ids(byUnidad))
}

func TestPebbleStoreRebuildsIndexesOnVersionChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenPebble(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceAll(ctx, sampleOrders()))
	// simulate a keyspace written by an older layout
	require.NoError(t, s.db.DeleteRange([]byte(indexPrefix), prefixEnd(indexPrefix), nil))
	require.NoError(t, s.db.Delete([]byte(schemaKey), nil))
	require.NoError(t, s.Close())

	s, err = OpenPebble(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	byEstado, err := s.FindBy(ctx, IndexEstado, string(models.StatusEmpacado))
	require.NoError(t, err)
	require.Equal(t, []string{"A1"}, ids(byEstado))
}

func TestPebbleFindByIgnoresLongerValues(t *testing.T) {
	ctx := context.Background()
	s, err := OpenPebble(t.TempDir(), nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.ReplaceAll(ctx, []models.Order{
		{Forma8Salmi: "1", UnidadEjecutora: "UE"},
		{Forma8Salmi: "2", UnidadEjecutora: "UE/2"},
	}))
	got, err := s.FindBy(ctx, IndexUnidad, "UE")
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, ids(got))
}

func TestPrefixEnd(t *testing.T) {
	require.Equal(t, []byte("order0"), prefixEnd("order/"))
	require.Equal(t, []byte("b"), prefixEnd("a\xff"))
	require.Nil(t, prefixEnd("\xff\xff"))
}

func TestGormStore(t *testing.T) {
	dsn := os.Getenv("F8_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("F8_TEST_PG_DSN not set")
	}
	db, err := database.Open(dsn, true)
	require.NoError(t, err)

	s, err := NewGormStore(db)
	require.NoError(t, err)
	defer s.Close()
	runStoreContract(t, s)
}
