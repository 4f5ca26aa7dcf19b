// Package export writes the CSV representation of a completed job,
// per spec.md §6.3: a preface of billing totals and discrepancy
// breakdown, a blank separator row, a fixed header row, then one row
// per discrepancy. This lives inside the module even though spec.md
// treats CSV formatting as an external-collaborator concern, since a
// CLI front end needs somewhere to put `--out`.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
)

var header = []string{
	"Type", "A-Number", "B-Number", "Seize Time (ISO-8601)",
	"Your Duration (s)", "Provider Duration (s)",
	"Your Rate", "Provider Rate", "Your Cost", "Provider Cost",
	"Difference ($)", "Your LRN", "Provider LRN",
	"Your Source Row", "Provider Source Row",
}

// WriteCSV writes the preface, a blank row, the header, and one row
// per discrepancy in out.Discrepancies (already in final sort order).
func WriteCSV(w io.Writer, out models.JobOutput) error {
	cw := csv.NewWriter(w)

	for _, row := range preface(out.Summary) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{}); err != nil {
		return err
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, d := range out.Discrepancies {
		if err := cw.Write(discrepancyRow(d)); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func preface(s models.Summary) [][]string {
	rows := [][]string{
		{"Your Total Billed", s.YourTotalBilled.StringFixed(2)},
		{"Provider Total Billed", s.ProviderTotalBilled.StringFixed(2)},
		{"Billing Difference", s.BillingDifference.StringFixed(2)},
		{"Your Total Minutes", s.YourTotalMinutes.StringFixed(2)},
		{"Provider Total Minutes", s.ProviderTotalMinutes.StringFixed(2)},
		{"Total Records A", fmt.Sprintf("%d", s.TotalRecordsA)},
		{"Total Records B", fmt.Sprintf("%d", s.TotalRecordsB)},
		{"Matched Records", fmt.Sprintf("%d", s.MatchedRecords)},
		{"Total Discrepancies", fmt.Sprintf("%d", s.TotalDiscrepancies)},
		{"Monetary Impact", s.MonetaryImpact.StringFixed(2)},
	}
	for _, t := range models.TypeOrder {
		if sum, ok := s.ImpactBreakdown[t]; ok {
			rows = append(rows, []string{"Impact: " + string(t), sum.StringFixed(2)})
		}
	}
	return rows
}

func discrepancyRow(d models.Discrepancy) []string {
	return []string{
		string(d.Type),
		d.ANumber,
		d.BNumber,
		seizeTimeString(d.SeizeTime),
		intPtrString(d.YourDuration),
		intPtrString(d.ProviderDuration),
		decimalPtrString(d.YourRate),
		decimalPtrString(d.ProviderRate),
		decimalPtrString(d.YourCost),
		decimalPtrString(d.ProviderCost),
		d.CostDifference.StringFixed(4),
		strPtrString(d.YourLRN),
		strPtrString(d.ProviderLRN),
		sourceRowString(d.SourceIndexA, d.SourceIndex, d.Type, true),
		sourceRowString(d.SourceIndexB, d.SourceIndex, d.Type, false),
	}
}

func seizeTimeString(sec *int64) string {
	if sec == nil {
		return ""
	}
	return time.Unix(*sec, 0).UTC().Format(time.RFC3339)
}

func intPtrString(v *int64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func decimalPtrString(v *decimal.Decimal) string {
	if v == nil {
		return ""
	}
	return v.StringFixed(2)
}

func strPtrString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// sourceRowString resolves a discrepancy's source row for one side.
// Matched-pair discrepancies carry SourceIndexA/B directly; unmatched
// single-side discrepancies carry only SourceIndex, which applies to
// whichever side produced them. raw_index is offset by 2 to align
// with a spreadsheet row (header row plus 1-based numbering).
func sourceRowString(pairIdx, singleIdx *int64, t models.DiscrepancyType, isSideA bool) string {
	if pairIdx != nil {
		return fmt.Sprintf("%d", *pairIdx+2)
	}
	if singleIdx == nil {
		return ""
	}
	belongsToA := t == models.DiscMissingInB || t == models.DiscZeroDurationInB || t == models.DiscHungCallYours
	if belongsToA == isSideA {
		return fmt.Sprintf("%d", *singleIdx+2)
	}
	return ""
}
