package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(s)
}

// csvMapping is the column mapping shared by every scenario fixture
// below; all fixtures use the same header names.
func csvMapping() models.Mapping {
	return models.Mapping{
		ANumber:        "a_number",
		BNumber:        "b_number",
		SeizeTime:      "seize_time",
		BilledDuration: "duration",
		Rate:           "rate",
		LRN:            "lrn",
	}
}

func writeCSV(t *testing.T, dir, name string, rows []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := "a_number,b_number,seize_time,duration,rate,lrn\n"
	for _, r := range rows {
		content += r + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runScenario(t *testing.T, rowsA, rowsB []string) models.JobOutput {
	t.Helper()
	dir := t.TempDir()
	pathA := writeCSV(t, dir, "a.csv", rowsA)
	pathB := writeCSV(t, dir, "b.csv", rowsB)

	eng := New(dir)
	out, err := eng.Reconcile(context.Background(), models.JobInput{
		FileAPath:         pathA,
		FileADeclaredName: "a.csv",
		FileBPath:         pathB,
		FileBDeclaredName: "b.csv",
		MappingA:          csvMapping(),
		MappingB:          csvMapping(),
	})
	require.NoError(t, err)
	return out
}

// Scenario 1: perfect match.
func TestScenarioPerfectMatch(t *testing.T) {
	row := "5551234567,5559876543,2024-01-15T10:30:00Z,120,0.015,5559876543"
	out := runScenario(t, []string{row}, []string{row})

	require.Equal(t, int64(1), out.Summary.MatchedRecords)
	require.Equal(t, int64(0), out.Summary.TotalDiscrepancies)
	require.True(t, out.Summary.MonetaryImpact.IsZero())
}

// Scenario 2: duration mismatch.
func TestScenarioDurationMismatch(t *testing.T) {
	rowA := "5551234567,5559876543,2024-01-15T10:30:00Z,60,0.015,5559876543"
	rowB := "5551234567,5559876543,2024-01-15T10:30:00Z,90,0.015,5559876543"
	out := runScenario(t, []string{rowA}, []string{rowB})

	require.Equal(t, int64(1), out.Summary.DurationMismatches)
	require.Len(t, out.Discrepancies, 1)

	d := out.Discrepancies[0]
	require.Equal(t, models.DiscDurationMismatch, d.Type)
	require.True(t, d.YourCost.Equal(decimalFromString(t, "0.015")))
	require.True(t, d.ProviderCost.Equal(decimalFromString(t, "0.0225")))
	require.True(t, d.CostDifference.Equal(decimalFromString(t, "-0.0075")))
}

// Scenario 3: missing in provider.
func TestScenarioMissingInProvider(t *testing.T) {
	rowA := "5551234567,5559876543,2024-01-15T10:30:00Z,180,0.015,5559876543"
	out := runScenario(t, []string{rowA}, nil)

	require.Equal(t, int64(1), out.Summary.MissingInProvider)
	require.Len(t, out.Discrepancies, 1)

	d := out.Discrepancies[0]
	require.Equal(t, models.DiscMissingInB, d.Type)
	require.True(t, d.CostDifference.Equal(decimalFromString(t, "0.045")))
	require.NotNil(t, d.SourceIndex)
	require.Equal(t, int64(0), *d.SourceIndex)
}

// Scenario 4: LRN mismatch supersedes cost-derived mismatches.
func TestScenarioLRNMismatchSupersedesCost(t *testing.T) {
	rowA := "5551234567,5559876543,2024-01-15T10:30:00Z,120,0.020,5550001111"
	rowB := "5551234567,5559876543,2024-01-15T10:30:00Z,120,0.018,5550002222"
	out := runScenario(t, []string{rowA}, []string{rowB})

	require.Equal(t, int64(1), out.Summary.LRNMismatches)
	require.Equal(t, int64(0), out.Summary.RateMismatches)
	require.Len(t, out.Discrepancies, 1)

	d := out.Discrepancies[0]
	require.Equal(t, models.DiscLRNMismatch, d.Type)
	require.True(t, d.CostDifference.Equal(decimalFromString(t, "0.004")), "got %s", d.CostDifference)
}

// Scenario 5: hung cluster on the provider side.
func TestScenarioHungClusterProvider(t *testing.T) {
	var rowsB []string
	for i := 0; i < 5; i++ {
		rowsB = append(rowsB, "555000000"+itoa(i)+",555111111"+itoa(i)+",2024-01-15T10:30:00Z,240,0.010,LRN"+itoa(i))
	}
	out := runScenario(t, nil, rowsB)

	require.Equal(t, int64(5), out.Summary.HungCallsProvider)
	require.Equal(t, int64(1), out.Summary.HungCallGroupsProvider)

	var exemplars int
	for _, d := range out.Discrepancies {
		if d.Type == models.DiscHungCallProvider {
			exemplars++
			require.NotNil(t, d.HungCallCount)
			require.Equal(t, 5, *d.HungCallCount)
		}
	}
	require.True(t, exemplars > 0 && exemplars <= 5)
}

// Scenario 6: seize-time tolerance boundary.
func TestScenarioTimeToleranceBoundary(t *testing.T) {
	rowA := "5551234567,5559876543,2024-01-15T10:30:00Z,120,0.015,5559876543"
	rowBWithin := "5551234567,5559876543,2024-01-15T10:30:59Z,120,0.015,5559876543"
	out := runScenario(t, []string{rowA}, []string{rowBWithin})
	require.Equal(t, int64(1), out.Summary.MatchedRecords)
	require.Equal(t, int64(0), out.Summary.TotalDiscrepancies)

	rowBBeyond := "5551234567,5559876543,2024-01-15T10:31:01Z,120,0.015,5559876543"
	out2 := runScenario(t, []string{rowA}, []string{rowBBeyond})
	require.Equal(t, int64(0), out2.Summary.MatchedRecords)
	require.Equal(t, int64(1), out2.Summary.MissingInProvider)
	require.Equal(t, int64(1), out2.Summary.MissingInYours)
}

func itoa(i int) string {
	digits := "0123456789"
	return string(digits[i])
}
