package hungcall

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
	"github.com/hamzaKhattat/cdr-reconciler/internal/staging"
)

func newStore(t *testing.T) *staging.Store {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scratch.db")
	store, err := staging.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.BuildIndexes(ctx))
	require.NoError(t, store.CreateMatchTables(ctx))
	t.Cleanup(func() { store.Cleanup() })
	return store
}

func hungRow(bNumber string, rawIndex int64) models.CanonicalRow {
	seize := int64(1000)
	return models.CanonicalRow{
		ANumber:        "5550000000",
		BNumber:        bNumber,
		SeizeTime:      &seize,
		BilledDuration: 240,
		Rate:           decimal.RequireFromString("0.010"),
		LRN:            "X",
		RawIndex:       rawIndex,
	}
}

func TestRunDetectsHungClusterOnProvider(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	var rows []models.CanonicalRow
	for i := int64(0); i < 5; i++ {
		rows = append(rows, hungRow("55591111"+string(rune('0'+i)), i))
	}
	require.NoError(t, store.InsertBatch(ctx, models.SideB, rows))

	res, err := Run(ctx, store, DefaultMinDurationSeconds, DefaultMinGroupSize, DefaultMaxExemplarsPerSide)
	require.NoError(t, err)

	require.Equal(t, int64(5), res.CountProvider)
	require.Equal(t, int64(1), res.GroupsProvider)
	require.Len(t, res.ExemplarsProvider, 5)
	for _, d := range res.ExemplarsProvider {
		require.Equal(t, models.DiscHungCallProvider, d.Type)
		require.NotNil(t, d.HungCallCount)
		require.Equal(t, 5, *d.HungCallCount)
	}
}

func TestRunIgnoresGroupsBelowMinimumSize(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertBatch(ctx, models.SideA, []models.CanonicalRow{
		hungRow("5559111110", 0),
		hungRow("5559111111", 1),
	}))

	res, err := Run(ctx, store, DefaultMinDurationSeconds, DefaultMinGroupSize, DefaultMaxExemplarsPerSide)
	require.NoError(t, err)
	require.Equal(t, int64(0), res.CountYours)
	require.Equal(t, int64(0), res.GroupsYours)
	require.Empty(t, res.ExemplarsYours)
}

func TestRunIgnoresShortDurationGroups(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	var rows []models.CanonicalRow
	for i := int64(0); i < 5; i++ {
		r := hungRow("5559111110", i)
		r.BilledDuration = 10
		rows = append(rows, r)
	}
	require.NoError(t, store.InsertBatch(ctx, models.SideA, rows))

	res, err := Run(ctx, store, DefaultMinDurationSeconds, DefaultMinGroupSize, DefaultMaxExemplarsPerSide)
	require.NoError(t, err)
	require.Equal(t, int64(0), res.CountYours)
}

func TestRunExcludesMatchedRowsFromHungScan(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	var rowsB []models.CanonicalRow
	for i := int64(0); i < 5; i++ {
		rowsB = append(rowsB, hungRow("5559111110", i))
	}
	require.NoError(t, store.InsertBatch(ctx, models.SideB, rowsB))
	require.NoError(t, store.InsertBatch(ctx, models.SideA, []models.CanonicalRow{hungRow("5559111110", 0)}))
	require.NoError(t, store.RecordMatch(ctx, 1, 1))

	res, err := Run(ctx, store, DefaultMinDurationSeconds, DefaultMinGroupSize, DefaultMaxExemplarsPerSide)
	require.NoError(t, err)
	require.Equal(t, int64(4), res.CountProvider)
}
