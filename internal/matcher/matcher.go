// Package matcher implements the lazy greedy 1-to-1 matching pass of
// spec.md §4.5: candidate pairs stream from a SQL cursor ordered by
// closeness, and are accepted greedily without ever materializing the
// full A×B cross product in memory.
package matcher

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
	"github.com/hamzaKhattat/cdr-reconciler/internal/staging"
	"github.com/hamzaKhattat/cdr-reconciler/pkg/errors"
	"github.com/hamzaKhattat/cdr-reconciler/pkg/logger"
)

// SeizeTimeTolerance bounds how far apart two candidate rows' seize
// times may be before they are no longer considered for a match,
// per spec.md §4.5. A nil seize_time coalesces to 0 on its side, so
// it is still subject to the same distance bound, not exempt from it.
const SeizeTimeTolerance = 60 // seconds

// candidateQuery streams candidate pairs ordered by |Δtime| asc then
// |Δduration| asc, letting the greedy loop below accept in that order
// without sorting in application memory. The anti-joins skip rows that
// are already in the matches table when the query starts; within one
// pass, the usedA/usedB sets in Run keep acceptance one-to-one.
const candidateQuery = `
SELECT
	a.id, a.a_number, a.b_number, a.seize_time,
	a.billed_duration, a.rate, a.lrn, a.raw_index,
	b.id, b.seize_time,
	b.billed_duration, b.rate, b.lrn, b.raw_index
FROM records_a a
JOIN records_b b
	ON a.a_number = b.a_number AND a.b_number = b.b_number
WHERE a.id NOT IN (SELECT a_id FROM matches)
  AND b.id NOT IN (SELECT b_id FROM matches)
  AND ABS(COALESCE(a.seize_time, 0) - COALESCE(b.seize_time, 0)) <= ?
ORDER BY
	ABS(COALESCE(a.seize_time, 0) - COALESCE(b.seize_time, 0)) ASC,
	ABS(a.billed_duration - b.billed_duration) ASC
`

// Run performs the greedy matching pass: it reads candidates in
// closeness order and accepts the first time each row id is seen. The
// accepted pairs are written to the store's matches table once the
// cursor is closed (the store has a single connection, which the open
// cursor holds), so downstream anti-joins see only unmatched rows.
// This loop is intentionally
// sequential (spec.md §5): parallelizing it would change which pair
// wins a contested row.
func Run(ctx context.Context, store *staging.Store, toleranceSeconds int64) (int64, error) {
	rows, err := store.DB().QueryContext(ctx, candidateQuery, toleranceSeconds)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrInternal, "failed to open candidate cursor")
	}
	defer rows.Close()

	usedA := make(map[int64]bool)
	usedB := make(map[int64]bool)
	var acceptedPairs [][2]int64
	var accepted int64

	for rows.Next() {
		pair, err := scanCandidate(rows)
		if err != nil {
			return accepted, err
		}
		if usedA[pair.AID] || usedB[pair.BID] {
			continue
		}
		usedA[pair.AID] = true
		usedB[pair.BID] = true
		acceptedPairs = append(acceptedPairs, [2]int64{pair.AID, pair.BID})
	}
	if err := rows.Err(); err != nil {
		return accepted, errors.Wrap(err, errors.ErrInternal, "candidate cursor failed")
	}
	rows.Close()

	for _, p := range acceptedPairs {
		if err := store.RecordMatch(ctx, p[0], p[1]); err != nil {
			return accepted, err
		}
		accepted++
	}

	logger.WithContext(ctx).WithField("matched_pairs", accepted).Debug("matching pass complete")
	return accepted, nil
}

func scanCandidate(rows *sql.Rows) (models.MatchPair, error) {
	var p models.MatchPair
	var seizeA, seizeB sql.NullInt64
	var rateA, rateB float64
	var lrnA, lrnB string

	err := rows.Scan(
		&p.AID, &p.ANumber, &p.BNumber, &seizeA,
		&p.DurationA, &rateA, &lrnA, &p.IndexA,
		&p.BID, &seizeB,
		&p.DurationB, &rateB, &lrnB, &p.IndexB,
	)
	if err != nil {
		return p, errors.Wrap(err, errors.ErrInternal, "failed to scan candidate row")
	}

	if seizeA.Valid {
		p.SeizeA = &seizeA.Int64
	}
	if seizeB.Valid {
		p.SeizeB = &seizeB.Int64
	}

	p.RateA = decimal.NewFromFloat(rateA)
	p.RateB = decimal.NewFromFloat(rateB)
	p.LRNA = lrnA
	p.LRNB = lrnB

	return p, nil
}
