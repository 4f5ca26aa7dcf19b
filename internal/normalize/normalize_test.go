package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
)

func TestPhoneStripsCountryAndTrunkPrefixes(t *testing.T) {
	require.Equal(t, "5551234567", Phone(models.StringCell("15551234567")))
	require.Equal(t, "5551234567", Phone(models.StringCell("015551234567")))
	require.Equal(t, "5551234567", Phone(models.StringCell("0015551234567")))
	require.Equal(t, "5551234567", Phone(models.StringCell("555-123-4567")))
}

func TestPhoneIsIdempotent(t *testing.T) {
	once := Phone(models.StringCell("15551234567"))
	twice := Phone(models.StringCell(once))
	require.Equal(t, once, twice)
}

func TestTimestampFromExcelSerial(t *testing.T) {
	// 45000 is a plausible spreadsheet serial date well inside (0, 100000).
	sec, ok := Timestamp(models.IntCell(45000))
	require.True(t, ok)
	got := time.Unix(sec, 0).UTC()
	require.Equal(t, 2023, got.Year())
}

func TestTimestampFromEpochMillis(t *testing.T) {
	sec, ok := Timestamp(models.IntCell(1_700_000_000_000))
	require.True(t, ok)
	require.Equal(t, int64(1_700_000_000), sec)
}

func TestTimestampFromEpochSeconds(t *testing.T) {
	sec, ok := Timestamp(models.IntCell(1_700_000_000))
	require.True(t, ok)
	require.Equal(t, int64(1_700_000_000), sec)
}

func TestTimestampFromUSDateString(t *testing.T) {
	sec, ok := Timestamp(models.StringCell("1/15/2024 10:30:00"))
	require.True(t, ok)
	got := time.Unix(sec, 0).UTC()
	require.Equal(t, time.January, got.Month())
	require.Equal(t, 15, got.Day())
}

func TestTimestampFromOffsetAwareString(t *testing.T) {
	sec, ok := Timestamp(models.StringCell("2024-01-15T10:30:00Z"))
	require.True(t, ok)
	require.Equal(t, int64(1705314600), sec)
}

func TestTimestampUnparseableReturnsNotOK(t *testing.T) {
	_, ok := Timestamp(models.StringCell("not a date"))
	require.False(t, ok)
}

func TestDurationRoundsHalfAwayFromZero(t *testing.T) {
	require.Equal(t, int64(5), Duration(models.DecimalCell(decimal.NewFromFloat(4.5))))
	require.Equal(t, int64(-5), Duration(models.DecimalCell(decimal.NewFromFloat(-4.5))))
}

func TestDurationAllowsNegative(t *testing.T) {
	require.Equal(t, int64(-10), Duration(models.IntCell(-10)))
}

func TestRateDefaultsToZero(t *testing.T) {
	require.True(t, Rate(models.NullCell()).IsZero())
	require.True(t, Rate(models.StringCell("")).IsZero())
	require.True(t, Rate(models.StringCell("garbage")).IsZero())
}

func TestRateParsesDecimalString(t *testing.T) {
	r := Rate(models.StringCell("0.0150"))
	require.True(t, r.Equal(decimal.RequireFromString("0.0150")))
}
