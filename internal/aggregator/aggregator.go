// Package aggregator computes the summary totals of spec.md §4.8
// directly in SQL, so the full row sets never need to pass through
// application memory a second time after staging.
package aggregator

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hamzaKhattat/cdr-reconciler/internal/collector"
	"github.com/hamzaKhattat/cdr-reconciler/internal/hungcall"
	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
	"github.com/hamzaKhattat/cdr-reconciler/internal/staging"
	"github.com/hamzaKhattat/cdr-reconciler/pkg/errors"
)

const totalsQueryA = `
SELECT
	COUNT(*),
	COALESCE(SUM((billed_duration + 5) / 6 * (rate / 10.0)), 0),
	COALESCE(SUM(billed_duration), 0),
	COALESCE(SUM(CASE
		WHEN billed_duration = 0 AND id NOT IN (SELECT a_id FROM matches) THEN 1
		ELSE 0
	END), 0)
FROM records_a
`

const totalsQueryB = `
SELECT
	COUNT(*),
	COALESCE(SUM((billed_duration + 5) / 6 * (rate / 10.0)), 0),
	COALESCE(SUM(billed_duration), 0),
	COALESCE(SUM(CASE
		WHEN billed_duration = 0 AND id NOT IN (SELECT b_id FROM matches) THEN 1
		ELSE 0
	END), 0)
FROM records_b
`

// Build assembles the final Summary from the staging store's totals,
// the matcher's match count, the hung-call scan, and the collector's
// exact per-type counts and cost sums.
func Build(ctx context.Context, store *staging.Store, hc hungcall.Result, coll *collector.Collector) (models.Summary, error) {
	var s models.Summary

	totalA, billedA, secondsA, zeroA, err := queryTotals(ctx, store, totalsQueryA)
	if err != nil {
		return s, err
	}
	totalB, billedB, secondsB, zeroB, err := queryTotals(ctx, store, totalsQueryB)
	if err != nil {
		return s, err
	}

	matched, err := store.CountMatched(ctx)
	if err != nil {
		return s, err
	}

	s.TotalRecordsA = totalA
	s.TotalRecordsB = totalB
	s.MatchedRecords = matched

	s.YourTotalBilled = billedA
	s.ProviderTotalBilled = billedB
	s.BillingDifference = billedA.Sub(billedB)

	s.YourTotalMinutes = decimal.NewFromInt(secondsA).Div(decimal.NewFromInt(60))
	s.ProviderTotalMinutes = decimal.NewFromInt(secondsB).Div(decimal.NewFromInt(60))
	s.MinutesDifference = s.YourTotalMinutes.Sub(s.ProviderTotalMinutes)

	s.ZeroDurationInYours = zeroA
	s.ZeroDurationInProvider = zeroB

	s.MissingInProvider = coll.Count(models.DiscMissingInB)
	s.MissingInYours = coll.Count(models.DiscMissingInA)
	s.BilledMissingInYours = s.MissingInProvider
	s.BilledMissingInProvider = s.MissingInYours
	s.DurationMismatches = coll.Count(models.DiscDurationMismatch)
	s.RateMismatches = coll.Count(models.DiscRateMismatch)
	s.CostMismatches = coll.Count(models.DiscCostMismatch)
	s.LRNMismatches = coll.Count(models.DiscLRNMismatch)

	s.HungCallsYours = hc.CountYours
	s.HungCallGroupsYours = hc.GroupsYours
	s.HungCallsProvider = hc.CountProvider
	s.HungCallGroupsProvider = hc.GroupsProvider

	s.ImpactBreakdown = make(map[models.DiscrepancyType]decimal.Decimal)
	var impact decimal.Decimal
	var total int64
	for _, t := range models.TypeOrder {
		sum := coll.CostSum(t)
		s.ImpactBreakdown[t] = sum
		impact = impact.Add(sum)
		total += coll.Count(t)
	}
	s.MonetaryImpact = impact
	s.TotalDiscrepancies = total

	return s, nil
}

func queryTotals(ctx context.Context, store *staging.Store, query string) (count int64, billed decimal.Decimal, seconds int64, zero int64, err error) {
	var billedF float64
	row := store.DB().QueryRowContext(ctx, query)
	if scanErr := row.Scan(&count, &billedF, &seconds, &zero); scanErr != nil {
		return 0, decimal.Zero, 0, 0, errors.Wrap(scanErr, errors.ErrInternal, "failed to compute staging totals")
	}
	return count, decimal.NewFromFloat(billedF), seconds, zero, nil
}
