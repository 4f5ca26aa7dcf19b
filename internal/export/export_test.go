package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
)

func TestWriteCSVProducesPrefaceBlankRowThenHeaderThenData(t *testing.T) {
	dur := int64(180)
	rate := decimal.RequireFromString("0.015")
	cost := decimal.RequireFromString("0.045")
	idx := int64(3)

	out := models.JobOutput{
		Summary: models.Summary{
			YourTotalBilled: decimal.RequireFromString("10.00"),
			MonetaryImpact:  decimal.RequireFromString("0.045"),
			ImpactBreakdown: map[models.DiscrepancyType]decimal.Decimal{
				models.DiscMissingInB: decimal.RequireFromString("0.045"),
			},
		},
		Discrepancies: []models.Discrepancy{
			{
				Type:           models.DiscMissingInB,
				ANumber:        "5551234567",
				BNumber:        "5559876543",
				YourDuration:   &dur,
				YourRate:       &rate,
				YourCost:       &cost,
				CostDifference: cost,
				SourceIndex:    &idx,
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, out))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	// 10 summary lines + 1 impact-breakdown line + 1 blank row + header + 1 data row.
	require.Len(t, lines, 14)
	require.Equal(t, "Your Total Billed,10.00", lines[0])
	require.Equal(t, "", lines[11])
	require.Equal(t, strings.Join(header, ","), lines[12])

	dataRow := strings.Split(lines[len(lines)-1], ",")
	require.Equal(t, "missing_in_b", dataRow[0])
	require.Equal(t, "5551234567", dataRow[1])
	require.Equal(t, "180", dataRow[4])
	require.Equal(t, "0.05", dataRow[8])
	require.Equal(t, "5", dataRow[13])
	require.Equal(t, "", dataRow[14])
}

func TestSourceRowStringResolvesSingleSidedDiscrepancy(t *testing.T) {
	idx := int64(5)
	require.Equal(t, "7", sourceRowString(nil, &idx, models.DiscMissingInB, true))
	require.Equal(t, "", sourceRowString(nil, &idx, models.DiscMissingInB, false))
}

func TestSourceRowStringPrefersPairIndexWhenPresent(t *testing.T) {
	pairIdx := int64(9)
	require.Equal(t, "11", sourceRowString(&pairIdx, nil, models.DiscDurationMismatch, true))
	require.Equal(t, "11", sourceRowString(&pairIdx, nil, models.DiscDurationMismatch, false))
}

func TestDecimalPtrStringHandlesNilWithoutPanicking(t *testing.T) {
	require.Equal(t, "", decimalPtrString(nil))
}
