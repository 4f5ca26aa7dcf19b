package collector

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
)

func discWithCostDiff(t models.DiscrepancyType, v float64) models.Discrepancy {
	return models.Discrepancy{Type: t, CostDifference: decimal.NewFromFloat(v)}
}

func TestOfferTracksExactCountsAndSumsIndependentOfRetention(t *testing.T) {
	c := New(DefaultMaxPerType)
	for i := 0; i < DefaultMaxPerType+5; i++ {
		c.Offer(discWithCostDiff(models.DiscCostMismatch, 1.0))
	}

	require.Equal(t, int64(DefaultMaxPerType+5), c.Count(models.DiscCostMismatch))
	require.True(t, c.CostSum(models.DiscCostMismatch).Equal(decimal.NewFromInt(int64(DefaultMaxPerType+5))))

	rows, hasMore := c.Readout()
	require.True(t, hasMore)
	require.Len(t, rows, DefaultMaxPerType)
}

func TestReadoutOrdersByTypeThenCostMagnitudeDescending(t *testing.T) {
	c := New(DefaultMaxPerType)
	c.Offer(discWithCostDiff(models.DiscMissingInB, 1.0))
	c.Offer(discWithCostDiff(models.DiscMissingInB, 9.0))
	c.Offer(discWithCostDiff(models.DiscMissingInB, 5.0))
	c.Offer(discWithCostDiff(models.DiscLRNMismatch, 100.0))

	rows, hasMore := c.Readout()
	require.False(t, hasMore)
	require.Len(t, rows, 4)

	// DiscLRNMismatch precedes DiscMissingInB in models.TypeOrder.
	require.Equal(t, models.DiscLRNMismatch, rows[0].Type)
	require.Equal(t, models.DiscMissingInB, rows[1].Type)
	require.True(t, rows[1].CostDifference.Equal(decimal.NewFromFloat(9.0)))
	require.True(t, rows[2].CostDifference.Equal(decimal.NewFromFloat(5.0)))
	require.True(t, rows[3].CostDifference.Equal(decimal.NewFromFloat(1.0)))
}

func TestEvictionKeepsLargestMagnitudeExemplars(t *testing.T) {
	c := New(DefaultMaxPerType)
	for i := 0; i < DefaultMaxPerType; i++ {
		c.Offer(discWithCostDiff(models.DiscRateMismatch, 1.0))
	}
	c.Offer(discWithCostDiff(models.DiscRateMismatch, 500.0))

	rows, hasMore := c.Readout()
	require.True(t, hasMore)
	require.True(t, rows[0].CostDifference.Equal(decimal.NewFromFloat(500.0)))
}
