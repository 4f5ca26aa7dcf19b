// Package billing implements the six-second increment billing
// semantics of spec.md §4.3. Increments and cost are pure functions;
// the staging store reproduces the same arithmetic in SQL so that
// summary totals computed by aggregation equal, to 2 decimals, the sum
// of per-row call costs computed here.
package billing

import "github.com/shopspring/decimal"

var (
	six  = decimal.NewFromInt(6)
	ten  = decimal.NewFromInt(10)
	zero = decimal.Zero
)

// Increments returns ceil(d/6) for d > 0, and 0 for d <= 0.
func Increments(durationSeconds int64) int64 {
	if durationSeconds <= 0 {
		return 0
	}
	return (durationSeconds + 5) / 6
}

// CallCost returns increments(d) * (r/10), the per-minute rate divided
// by 10 per six-second increment.
func CallCost(durationSeconds int64, ratePerMinute decimal.Decimal) decimal.Decimal {
	inc := Increments(durationSeconds)
	if inc == 0 {
		return zero
	}
	return decimal.NewFromInt(inc).Mul(ratePerMinute.Div(ten))
}

// Round2 rounds a decimal half-up to 2 decimal places, as required of
// all monetary output in spec.md §4.3.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Round4 rounds a decimal half-up to 4 decimal places, the precision
// at which per-row cost_difference is reported.
func Round4(d decimal.Decimal) decimal.Decimal {
	return d.Round(4)
}
