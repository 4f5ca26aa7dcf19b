// Package normalize implements the four pure normalization functions of
// spec.md §4.2: normalize_phone, normalize_timestamp, normalize_duration
// and normalize_rate. Each is total on its declared input domain and
// idempotent on its own output.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
	"github.com/shopspring/decimal"
)

// excelEpoch is the spreadsheet serial-date origin, 1899-12-30 (Excel's
// epoch minus the historical leap-year bug offset), per spec.md §4.2.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Phone returns a string of ASCII digits, stripping everything else and
// then a single pass of country/trunk-prefix removal. Applying Phone to
// its own output is a no-op: none of the prefix rules re-fire once the
// leading digit(s) have already been dropped and the string is shorter.
func Phone(c models.CellValue) string {
	s := cellToString(c)
	digits := onlyDigits(s)

	switch {
	case len(digits) == 11 && digits[0] == '1':
		return digits[1:]
	case len(digits) == 12 && strings.HasPrefix(digits, "01"):
		return digits[2:]
	case len(digits) == 13 && strings.HasPrefix(digits, "001"):
		return digits[3:]
	default:
		return digits
	}
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func cellToString(c models.CellValue) string {
	switch c.Kind {
	case models.CellNull:
		return ""
	case models.CellString:
		return c.Str
	case models.CellInt:
		return strconv.FormatInt(c.Int, 10)
	case models.CellDecimal:
		return c.Decimal.String()
	case models.CellBool:
		if c.Bool {
			return "true"
		}
		return "false"
	case models.CellDate:
		return c.Time.Format(time.RFC3339)
	default:
		return ""
	}
}

// Timestamp returns an optional Unix epoch-second value, per the rules
// of spec.md §4.2. Any parse failure is swallowed and reported as
// ok=false, never as an error: the normalizer is total. Every numeric
// value in (0, 100000) is read as a spreadsheet serial date, whichever
// column it came from.
func Timestamp(c models.CellValue) (sec int64, ok bool) {
	switch c.Kind {
	case models.CellNull:
		return 0, false

	case models.CellDate:
		return c.Time.Unix(), true

	case models.CellInt:
		return timestampFromNumber(float64(c.Int))

	case models.CellDecimal:
		f, _ := c.Decimal.Float64()
		return timestampFromNumber(f)

	case models.CellString:
		s := strings.TrimSpace(c.Str)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return timestampFromNumber(n)
		}
		return timestampFromString(s)

	default:
		return 0, false
	}
}

func timestampFromNumber(v float64) (int64, bool) {
	switch {
	case v > 0 && v < 100000:
		// Spreadsheet serial date: days since 1899-12-30.
		days := v
		t := excelEpoch.Add(time.Duration(days * float64(24*time.Hour)))
		return t.Unix(), true
	case v > 10_000_000_000:
		// Epoch milliseconds.
		return int64(v) / 1000, true
	default:
		return int64(v), true
	}
}

var usLayouts = []string{
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
}

func timestampFromString(s string) (int64, bool) {
	if looksOffsetAware(s) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.Unix(), true
		}
		for _, layout := range []string{
			"2006-01-02T15:04:05Z0700",
			"2006-01-02 15:04:05 -0700 MST",
			"Mon, 02 Jan 2006 15:04:05 -0700",
			"2006-01-02 15:04:05 MST",
			"2006-01-02 15:04:05 UTC",
			"2006-01-02 15:04:05 GMT",
		} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Unix(), true
			}
		}
	}

	for _, layout := range usLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Unix(), true
		}
	}

	for _, layout := range []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"01/02/2006",
		time.RFC1123,
		time.RFC1123Z,
		time.RFC822,
	} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.Unix(), true
		}
	}

	return 0, false
}

func looksOffsetAware(s string) bool {
	return strings.Contains(s, "+") ||
		strings.Contains(s, "Z") ||
		strings.Contains(s, " UTC") ||
		strings.Contains(s, " GMT")
}

// Duration returns the parsed value rounded to whole seconds (halves
// away from zero). A negative value is returned as is; Row clamps it
// to 0 before staging, and billing.Increments treats d <= 0 as zero
// increments.
func Duration(c models.CellValue) int64 {
	switch c.Kind {
	case models.CellNull:
		return 0
	case models.CellInt:
		return c.Int
	case models.CellDecimal:
		f, _ := c.Decimal.Float64()
		return roundHalfAwayFromZero(f)
	case models.CellString:
		s := strings.TrimSpace(c.Str)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return roundHalfAwayFromZero(f)
	default:
		return 0
	}
}

func roundHalfAwayFromZero(f float64) int64 {
	if f >= 0 {
		return int64(f + 0.5)
	}
	return -int64(-f + 0.5)
}

// Rate returns a non-negative decimal per-minute rate. Null, empty,
// unparseable or negative input normalizes to zero.
func Rate(c models.CellValue) decimal.Decimal {
	switch c.Kind {
	case models.CellNull:
		return decimal.Zero
	case models.CellInt:
		return nonNegative(decimal.NewFromInt(c.Int))
	case models.CellDecimal:
		return nonNegative(c.Decimal)
	case models.CellString:
		s := strings.TrimSpace(c.Str)
		if s == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return nonNegative(d)
	default:
		return decimal.Zero
	}
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
