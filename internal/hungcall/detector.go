// Package hungcall detects groups of unmatched calls that look like
// stuck/hung sessions rather than ordinary discrepancies, per
// spec.md §4.7: on each side, unmatched rows sharing the same billed
// duration, with that duration over 30 seconds and at least 3 rows in
// the group, are reported as a hung-call cluster in addition to their
// individual missing/zero-duration findings.
package hungcall

import (
	"context"
	"database/sql"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hamzaKhattat/cdr-reconciler/internal/billing"
	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
	"github.com/hamzaKhattat/cdr-reconciler/internal/staging"
	"github.com/hamzaKhattat/cdr-reconciler/pkg/errors"
)

// Default* mirror spec.md §4.7's constants; Run still accepts them as
// explicit parameters so internal/config can retune a deployment
// without a code change.
const (
	DefaultMinDurationSeconds  = 30
	DefaultMinGroupSize        = 3
	DefaultMaxExemplarsPerSide = 200
)

const groupQueryA = `
SELECT billed_duration, COUNT(*) AS n
FROM records_a
WHERE id NOT IN (SELECT a_id FROM matches)
  AND billed_duration > ?
GROUP BY billed_duration
HAVING COUNT(*) >= ?
`

const groupQueryB = `
SELECT billed_duration, COUNT(*) AS n
FROM records_b
WHERE id NOT IN (SELECT b_id FROM matches)
  AND billed_duration > ?
GROUP BY billed_duration
HAVING COUNT(*) >= ?
`

const exemplarQueryA = `
SELECT a_number, b_number, seize_time, billed_duration, rate, lrn, raw_index
FROM records_a
WHERE id NOT IN (SELECT a_id FROM matches) AND billed_duration = ?
`

const exemplarQueryB = `
SELECT a_number, b_number, seize_time, billed_duration, rate, lrn, raw_index
FROM records_b
WHERE id NOT IN (SELECT b_id FROM matches) AND billed_duration = ?
`

// Result carries the counts of spec.md §4.8 plus up to maxExemplars
// (per Run's caller) representative discrepancies, ranked by rate x
// duration so the highest-impact clusters survive the cap.
type Result struct {
	CountYours, GroupsYours       int64
	CountProvider, GroupsProvider int64
	ExemplarsYours, ExemplarsProvider []models.Discrepancy
}

// Run scans both sides for hung-call clusters. minDurationSeconds and
// minGroupSize gate which unmatched-row groups qualify; maxExemplars
// caps how many ranked exemplars survive per side.
func Run(ctx context.Context, store *staging.Store, minDurationSeconds int64, minGroupSize int, maxExemplars int) (Result, error) {
	var res Result

	yCount, yGroups, yEx, err := scanSide(ctx, store, models.SideA, minDurationSeconds, minGroupSize, maxExemplars)
	if err != nil {
		return res, err
	}
	res.CountYours, res.GroupsYours, res.ExemplarsYours = yCount, yGroups, yEx

	pCount, pGroups, pEx, err := scanSide(ctx, store, models.SideB, minDurationSeconds, minGroupSize, maxExemplars)
	if err != nil {
		return res, err
	}
	res.CountProvider, res.GroupsProvider, res.ExemplarsProvider = pCount, pGroups, pEx

	return res, nil
}

func scanSide(ctx context.Context, store *staging.Store, side models.Side, minDurationSeconds int64, minGroupSize int, maxExemplars int) (int64, int64, []models.Discrepancy, error) {
	groupQuery, exemplarQuery := groupQueryA, exemplarQueryA
	if side == models.SideB {
		groupQuery, exemplarQuery = groupQueryB, exemplarQueryB
	}

	rows, err := store.DB().QueryContext(ctx, groupQuery, minDurationSeconds, minGroupSize)
	if err != nil {
		return 0, 0, nil, errors.Wrap(err, errors.ErrInternal, "failed to query hung-call groups")
	}
	defer rows.Close()

	var totalCount, groupCount int64
	var exemplars []models.Discrepancy
	var groups [][2]int64 // (duration, group size)

	for rows.Next() {
		var duration, n int64
		if err := rows.Scan(&duration, &n); err != nil {
			return 0, 0, nil, errors.Wrap(err, errors.ErrInternal, "failed to scan hung-call group")
		}
		groupCount++
		totalCount += n
		groups = append(groups, [2]int64{duration, n})
	}
	if err := rows.Err(); err != nil {
		return 0, 0, nil, errors.Wrap(err, errors.ErrInternal, "hung-call group cursor failed")
	}
	// The store has a single connection; release it before the
	// per-group exemplar queries.
	rows.Close()

	for _, g := range groups {
		group, err := loadExemplars(ctx, store, exemplarQuery, g[0], side, g[1])
		if err != nil {
			return 0, 0, nil, err
		}
		exemplars = append(exemplars, group...)
	}

	sort.Slice(exemplars, func(i, j int) bool {
		return exemplarRank(exemplars[i]) > exemplarRank(exemplars[j])
	})
	if len(exemplars) > maxExemplars {
		exemplars = exemplars[:maxExemplars]
	}

	return totalCount, groupCount, exemplars, nil
}

func loadExemplars(ctx context.Context, store *staging.Store, query string, duration int64, side models.Side, groupSize int64) ([]models.Discrepancy, error) {
	rows, err := store.DB().QueryContext(ctx, query, duration)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to query hung-call exemplars")
	}
	defer rows.Close()

	var out []models.Discrepancy
	for rows.Next() {
		var aNumber, bNumber, lrn string
		var seize sql.NullInt64
		var billedDuration, rawIndex int64
		var rate float64

		if err := rows.Scan(&aNumber, &bNumber, &seize, &billedDuration, &rate, &lrn, &rawIndex); err != nil {
			return nil, errors.Wrap(err, errors.ErrInternal, "failed to scan hung-call exemplar")
		}

		rateDec := decimal.NewFromFloat(rate)
		cost := billing.CallCost(billedDuration, rateDec)
		idx := rawIndex
		count := int(groupSize)

		d := models.Discrepancy{
			ANumber:     aNumber,
			BNumber:     bNumber,
			SourceIndex: &idx,
			HungCallCount: &count,
		}
		if seize.Valid {
			d.SeizeTime = &seize.Int64
		}
		if side == models.SideA {
			d.Type = models.DiscHungCallYours
			d.YourDuration = &billedDuration
			d.YourRate = &rateDec
			d.YourCost = &cost
			d.YourLRN = &lrn
			d.CostDifference = cost
		} else {
			d.Type = models.DiscHungCallProvider
			d.ProviderDuration = &billedDuration
			d.ProviderRate = &rateDec
			d.ProviderCost = &cost
			d.ProviderLRN = &lrn
			d.CostDifference = cost.Neg()
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "hung-call exemplar cursor failed")
	}
	return out, nil
}

// exemplarRank orders hung-call exemplars by rate x duration, the
// ranking spec.md §4.7 uses to pick which rows survive the cap.
func exemplarRank(d models.Discrepancy) decimal.Decimal {
	var duration int64
	var rate decimal.Decimal
	if d.YourDuration != nil {
		duration = *d.YourDuration
		rate = *d.YourRate
	} else if d.ProviderDuration != nil {
		duration = *d.ProviderDuration
		rate = *d.ProviderRate
	}
	return rate.Mul(decimal.NewFromInt(duration))
}
