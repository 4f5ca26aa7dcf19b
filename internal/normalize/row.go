package normalize

import (
	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
	"github.com/shopspring/decimal"
)

// Row applies the four field normalizers to one decoded row according
// to mapping, producing a CanonicalRow ready for the staging store.
// rawIndex is the row's 0-based position in its source file, carried
// through untouched for later CSV export (spec.md §6.3).
func Row(row models.Row, mapping models.Mapping, rawIndex int64) models.CanonicalRow {
	r := models.CanonicalRow{
		ANumber:        Phone(row.Columns[mapping.ANumber]),
		BNumber:        Phone(row.Columns[mapping.BNumber]),
		BilledDuration: Duration(row.Columns[mapping.BilledDuration]),
		LRN:            Phone(row.Columns[mapping.LRN]),
		RawIndex:       rawIndex,
	}

	if sec, ok := Timestamp(row.Columns[mapping.SeizeTime]); ok {
		r.SeizeTime = &sec
	}
	if mapping.AnswerTime != "" {
		if sec, ok := Timestamp(row.Columns[mapping.AnswerTime]); ok {
			r.AnswerTime = &sec
		}
	}
	if mapping.EndTime != "" {
		if sec, ok := Timestamp(row.Columns[mapping.EndTime]); ok {
			r.EndTime = &sec
		}
	}
	if mapping.Rate != "" {
		r.Rate = Rate(row.Columns[mapping.Rate])
	} else {
		r.Rate = decimal.Zero
	}
	if r.BilledDuration < 0 {
		r.BilledDuration = 0
	}

	return r
}
