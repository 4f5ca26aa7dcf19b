// Package classifier emits typed discrepancies from the staging
// store's matched pairs and unmatched rows, per the exact rules of
// spec.md §4.6.
package classifier

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/hamzaKhattat/cdr-reconciler/internal/billing"
	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
	"github.com/hamzaKhattat/cdr-reconciler/internal/staging"
	"github.com/hamzaKhattat/cdr-reconciler/pkg/errors"
)

// durationToleranceSeconds and rateTolerance are the equality
// thresholds of spec.md §4.6: two values within tolerance are
// considered matching, not a mismatch.
const (
	durationToleranceSeconds = 1
	rateTolerance            = "0.0001"
)

var rateToleranceDec = decimal.RequireFromString(rateTolerance)

// Sink receives discrepancies as they are classified. The collector
// package implements Sink with its bounded top-K retention.
type Sink interface {
	Offer(models.Discrepancy)
}

const unmatchedQuery = `
SELECT a.id, a.a_number, a.b_number, a.seize_time, a.billed_duration, a.rate, a.lrn, a.raw_index
FROM records_a a
WHERE a.id NOT IN (SELECT a_id FROM matches)
`

const unmatchedQueryB = `
SELECT b.id, b.a_number, b.b_number, b.seize_time, b.billed_duration, b.rate, b.lrn, b.raw_index
FROM records_b b
WHERE b.id NOT IN (SELECT b_id FROM matches)
`

const matchedPairsQuery = `
SELECT
	a.id, a.a_number, a.b_number, a.seize_time, a.billed_duration, a.rate, a.lrn, a.raw_index,
	b.id, b.seize_time, b.billed_duration, b.rate, b.lrn, b.raw_index
FROM matches m
JOIN records_a a ON a.id = m.a_id
JOIN records_b b ON b.id = m.b_id
`

// Run classifies every unmatched row and every matched pair, pushing
// each resulting discrepancy (if any) to sink.
func Run(ctx context.Context, store *staging.Store, sink Sink) error {
	if err := classifyUnmatchedA(ctx, store, sink); err != nil {
		return err
	}
	if err := classifyUnmatchedB(ctx, store, sink); err != nil {
		return err
	}
	return classifyMatchedPairs(ctx, store, sink)
}

func classifyUnmatchedA(ctx context.Context, store *staging.Store, sink Sink) error {
	rows, err := store.DB().QueryContext(ctx, unmatchedQuery)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to query unmatched A rows")
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanSide(rows)
		if err != nil {
			return err
		}
		sink.Offer(unmatchedDiscrepancy(models.SideA, r))
	}
	return wrapRowsErr(rows)
}

func classifyUnmatchedB(ctx context.Context, store *staging.Store, sink Sink) error {
	rows, err := store.DB().QueryContext(ctx, unmatchedQueryB)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to query unmatched B rows")
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanSide(rows)
		if err != nil {
			return err
		}
		sink.Offer(unmatchedDiscrepancy(models.SideB, r))
	}
	return wrapRowsErr(rows)
}

type sideRow struct {
	id             int64
	aNumber        string
	bNumber        string
	seizeTime      *int64
	billedDuration int64
	rate           decimal.Decimal
	lrn            string
	rawIndex       int64
}

func scanSide(rows *sql.Rows) (sideRow, error) {
	var r sideRow
	var seize sql.NullInt64
	var rate float64

	if err := rows.Scan(&r.id, &r.aNumber, &r.bNumber, &seize, &r.billedDuration, &rate, &r.lrn, &r.rawIndex); err != nil {
		return r, errors.Wrap(err, errors.ErrInternal, "failed to scan unmatched row")
	}
	if seize.Valid {
		r.seizeTime = &seize.Int64
	}
	r.rate = decimal.NewFromFloat(rate)
	return r, nil
}

// unmatchedDiscrepancy classifies a row with no counterpart, per
// spec.md §4.6: a zero-duration unmatched row is reported as
// zero_duration_in_<side>, not missing_in_<side> — zero duration
// narrows the finding to a specific billing anomaly rather than the
// generic "never happened on the other side" case.
func unmatchedDiscrepancy(side models.Side, r sideRow) models.Discrepancy {
	idx := r.rawIndex
	cost := billing.CallCost(r.billedDuration, r.rate)

	d := models.Discrepancy{
		ANumber:     r.aNumber,
		BNumber:     r.bNumber,
		SeizeTime:   r.seizeTime,
		SourceIndex: &idx,
	}

	if r.billedDuration == 0 {
		if side == models.SideA {
			d.Type = models.DiscZeroDurationInB
			d.YourDuration = &r.billedDuration
			d.YourRate = &r.rate
			d.YourCost = &cost
			d.CostDifference = cost
		} else {
			d.Type = models.DiscZeroDurationInA
			d.ProviderDuration = &r.billedDuration
			d.ProviderRate = &r.rate
			d.ProviderCost = &cost
			d.CostDifference = cost.Neg()
		}
		return d
	}

	if side == models.SideA {
		d.Type = models.DiscMissingInB
		d.YourDuration = &r.billedDuration
		d.YourRate = &r.rate
		d.YourCost = &cost
		d.YourLRN = &r.lrn
		d.CostDifference = cost
	} else {
		d.Type = models.DiscMissingInA
		d.ProviderDuration = &r.billedDuration
		d.ProviderRate = &r.rate
		d.ProviderCost = &cost
		d.ProviderLRN = &r.lrn
		d.CostDifference = cost.Neg()
	}
	return d
}

func classifyMatchedPairs(ctx context.Context, store *staging.Store, sink Sink) error {
	rows, err := store.DB().QueryContext(ctx, matchedPairsQuery)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to query matched pairs")
	}
	defer rows.Close()

	for rows.Next() {
		pair, err := scanPair(rows)
		if err != nil {
			return err
		}
		if d, ok := pairDiscrepancy(pair); ok {
			sink.Offer(d)
		}
	}
	return wrapRowsErr(rows)
}

type pairRow struct {
	aID, bID                 int64
	aNumber, bNumber         string
	seizeA, seizeB           *int64
	durA, durB               int64
	rateA, rateB             decimal.Decimal
	lrnA, lrnB               string
	idxA, idxB               int64
}

func scanPair(rows *sql.Rows) (pairRow, error) {
	var p pairRow
	var seizeA, seizeB sql.NullInt64
	var rateA, rateB float64

	err := rows.Scan(
		&p.aID, &p.aNumber, &p.bNumber, &seizeA, &p.durA, &rateA, &p.lrnA, &p.idxA,
		&p.bID, &seizeB, &p.durB, &rateB, &p.lrnB, &p.idxB,
	)
	if err != nil {
		return p, errors.Wrap(err, errors.ErrInternal, "failed to scan matched pair")
	}
	if seizeA.Valid {
		p.seizeA = &seizeA.Int64
	}
	if seizeB.Valid {
		p.seizeB = &seizeB.Int64
	}
	p.rateA = decimal.NewFromFloat(rateA)
	p.rateB = decimal.NewFromFloat(rateB)
	return p, nil
}

// pairDiscrepancy classifies one matched pair. A LRN mismatch
// supersedes the cost-family checks (spec.md §4.6): once the routing
// identity itself disagrees, duration/rate/cost deltas are a
// consequence of that, not independent findings.
func pairDiscrepancy(p pairRow) (models.Discrepancy, bool) {
	costA := billing.CallCost(p.durA, p.rateA)
	costB := billing.CallCost(p.durB, p.rateB)
	costDiff := costA.Sub(costB)

	base := models.Discrepancy{
		ANumber:          p.aNumber,
		BNumber:          p.bNumber,
		SeizeTime:        p.seizeA,
		YourDuration:     &p.durA,
		ProviderDuration: &p.durB,
		YourRate:         &p.rateA,
		ProviderRate:     &p.rateB,
		YourCost:         &costA,
		ProviderCost:     &costB,
		CostDifference:   costDiff,
		YourLRN:          &p.lrnA,
		ProviderLRN:      &p.lrnB,
		SourceIndexA:     &p.idxA,
		SourceIndexB:     &p.idxB,
	}

	if p.lrnA != "" && p.lrnB != "" && p.lrnA != p.lrnB {
		base.Type = models.DiscLRNMismatch
		return base, true
	}

	durMismatch := abs64(p.durA-p.durB) > durationToleranceSeconds
	rateMismatch := p.rateA.Sub(p.rateB).Abs().GreaterThan(rateToleranceDec)
	costMismatch := costDiff.Abs().GreaterThan(rateToleranceDec)

	if !costMismatch {
		return models.Discrepancy{}, false
	}
	switch {
	case durMismatch && !rateMismatch:
		base.Type = models.DiscDurationMismatch
	case rateMismatch && !durMismatch:
		base.Type = models.DiscRateMismatch
	default:
		base.Type = models.DiscCostMismatch
	}
	return base, true
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func wrapRowsErr(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "row iteration failed")
	}
	return nil
}
