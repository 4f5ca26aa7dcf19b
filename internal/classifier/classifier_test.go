package classifier

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
	"github.com/hamzaKhattat/cdr-reconciler/internal/staging"
)

type recordingSink struct {
	offered []models.Discrepancy
}

func (s *recordingSink) Offer(d models.Discrepancy) {
	s.offered = append(s.offered, d)
}

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

func canonRow(dur int64, rate string, lrn string, rawIndex int64) models.CanonicalRow {
	seize := int64(1000)
	return models.CanonicalRow{
		ANumber:        "5551234567",
		BNumber:        "5559876543",
		SeizeTime:      &seize,
		BilledDuration: dur,
		Rate:           decimal.RequireFromString(rate),
		LRN:            lrn,
		RawIndex:       rawIndex,
	}
}

func TestClassifyUnmatchedNonZeroDuration(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertBatch(ctx, models.SideA, []models.CanonicalRow{canonRow(180, "0.015", "X", 3)}))

	sink := &recordingSink{}
	require.NoError(t, Run(ctx, store, sink))

	require.Len(t, sink.offered, 1)
	d := sink.offered[0]
	require.Equal(t, models.DiscMissingInB, d.Type)
	require.True(t, d.CostDifference.Equal(decimal.RequireFromString("0.045")))
	require.NotNil(t, d.SourceIndex)
	require.Equal(t, int64(3), *d.SourceIndex)
}

func TestClassifyUnmatchedZeroDuration(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertBatch(ctx, models.SideB, []models.CanonicalRow{canonRow(0, "0.015", "X", 0)}))

	sink := &recordingSink{}
	require.NoError(t, Run(ctx, store, sink))

	require.Len(t, sink.offered, 1)
	require.Equal(t, models.DiscZeroDurationInA, sink.offered[0].Type)
}

func TestClassifyMatchedPairLRNMismatchSupersedesRate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rowA := canonRow(120, "0.020", "AAA", 0)
	rowB := canonRow(120, "0.018", "BBB", 0)
	require.NoError(t, store.InsertBatch(ctx, models.SideA, []models.CanonicalRow{rowA}))
	require.NoError(t, store.InsertBatch(ctx, models.SideB, []models.CanonicalRow{rowB}))
	require.NoError(t, store.RecordMatch(ctx, 1, 1))

	sink := &recordingSink{}
	require.NoError(t, Run(ctx, store, sink))

	require.Len(t, sink.offered, 1)
	d := sink.offered[0]
	require.Equal(t, models.DiscLRNMismatch, d.Type)
	require.True(t, d.CostDifference.Equal(decimal.RequireFromString("0.004")), "got %s", d.CostDifference)
}

func TestClassifyMatchedPairOneSidedEmptyLRNFallsThroughToDuration(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rowA := canonRow(60, "0.015", "", 0)
	rowB := canonRow(90, "0.015", "BBB", 0)
	require.NoError(t, store.InsertBatch(ctx, models.SideA, []models.CanonicalRow{rowA}))
	require.NoError(t, store.InsertBatch(ctx, models.SideB, []models.CanonicalRow{rowB}))
	require.NoError(t, store.RecordMatch(ctx, 1, 1))

	sink := &recordingSink{}
	require.NoError(t, Run(ctx, store, sink))

	require.Len(t, sink.offered, 1)
	require.Equal(t, models.DiscDurationMismatch, sink.offered[0].Type)
}

func TestClassifyMatchedPairDurationMismatch(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rowA := canonRow(60, "0.015", "X", 0)
	rowB := canonRow(90, "0.015", "X", 0)
	require.NoError(t, store.InsertBatch(ctx, models.SideA, []models.CanonicalRow{rowA}))
	require.NoError(t, store.InsertBatch(ctx, models.SideB, []models.CanonicalRow{rowB}))
	require.NoError(t, store.RecordMatch(ctx, 1, 1))

	sink := &recordingSink{}
	require.NoError(t, Run(ctx, store, sink))

	require.Len(t, sink.offered, 1)
	d := sink.offered[0]
	require.Equal(t, models.DiscDurationMismatch, d.Type)
	require.True(t, d.CostDifference.Equal(decimal.RequireFromString("-0.0075")), "got %s", d.CostDifference)
}

func TestClassifyMatchedPairNoMismatchEmitsNothing(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	row := canonRow(120, "0.015", "X", 0)
	require.NoError(t, store.InsertBatch(ctx, models.SideA, []models.CanonicalRow{row}))
	require.NoError(t, store.InsertBatch(ctx, models.SideB, []models.CanonicalRow{row}))
	require.NoError(t, store.RecordMatch(ctx, 1, 1))

	sink := &recordingSink{}
	require.NoError(t, Run(ctx, store, sink))

	require.Empty(t, sink.offered)
}
