// Package models holds the canonical data types shared by every stage
// of the reconciliation pipeline: decoded cells, canonical rows, match
// pairs, discrepancies and the job input/output contract.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CellKind tags the dynamic value a decoder produced for one cell.
type CellKind int

const (
	CellNull CellKind = iota
	CellString
	CellInt
	CellDecimal
	CellBool
	CellDate
)

// CellValue is the tagged sum type the normalizer switches on. Decoders
// preserve source typing (a numeric cell stays numeric, a date cell
// stays a date) so the normalizer can apply the Excel-serial and
// epoch-millisecond rules of normalize_timestamp.
type CellValue struct {
	Kind    CellKind
	Str     string
	Int     int64
	Decimal decimal.Decimal
	Bool    bool
	Time    time.Time
}

func NullCell() CellValue { return CellValue{Kind: CellNull} }

func StringCell(s string) CellValue { return CellValue{Kind: CellString, Str: s} }

func IntCell(v int64) CellValue { return CellValue{Kind: CellInt, Int: v} }

func DecimalCell(v decimal.Decimal) CellValue { return CellValue{Kind: CellDecimal, Decimal: v} }

func BoolCell(v bool) CellValue { return CellValue{Kind: CellBool, Bool: v} }

func DateCell(t time.Time) CellValue { return CellValue{Kind: CellDate, Time: t} }

// IsEmpty reports whether the cell carries no meaningful value: either
// the null tag or an empty/whitespace string.
func (c CellValue) IsEmpty() bool {
	if c.Kind == CellNull {
		return true
	}
	if c.Kind == CellString {
		return strings.TrimSpace(c.Str) == ""
	}
	return false
}

// Row is one decoded data row, keyed by header name, with its 0-based
// position among data rows (headers excluded).
type Row struct {
	Index   int
	Columns map[string]CellValue
}

// Side identifies which of the two reconciled streams a row or
// discrepancy originates from.
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

// Mapping is the caller-supplied column mapping from canonical field
// name to source column header, for one side.
type Mapping struct {
	ANumber        string
	BNumber        string
	SeizeTime      string
	AnswerTime     string // optional
	EndTime        string // optional
	BilledDuration string
	Rate           string // optional; absent => rate treated as 0
	LRN            string
}

// RequiredFields returns the canonical field names that must be present
// in a Mapping for the engine to accept the job (spec.md §6.1).
func RequiredFields() []string {
	return []string{"a_number", "b_number", "seize_time", "billed_duration", "lrn"}
}

// CanonicalRow is the normalized schema of §3, common to both sides.
// Rows are immutable once inserted into the staging store.
type CanonicalRow struct {
	ID             int64
	ANumber        string
	BNumber        string
	SeizeTime      *int64 // epoch seconds, nil when unparseable/absent
	AnswerTime     *int64
	EndTime        *int64
	BilledDuration int64 // seconds, >= 0
	Rate           decimal.Decimal // per-minute, >= 0
	LRN            string
	RawIndex       int64
}

// MatchPair is the matcher's output: two canonical rows sharing
// normalized A/B numbers within the seize-time tolerance.
type MatchPair struct {
	AID, BID             int64
	ANumber, BNumber     string
	SeizeA, SeizeB       *int64
	DurationA, DurationB int64
	RateA, RateB         decimal.Decimal
	LRNA, LRNB           string
	IndexA, IndexB       int64
}

// DiscrepancyType enumerates the discrepancy kinds of spec.md §3. Order
// here is the readout tiebreak order of §4.9.
type DiscrepancyType string

const (
	DiscMissingInA       DiscrepancyType = "missing_in_a"
	DiscLRNMismatch      DiscrepancyType = "lrn_mismatch"
	DiscDurationMismatch DiscrepancyType = "duration_mismatch"
	DiscRateMismatch     DiscrepancyType = "rate_mismatch"
	DiscCostMismatch     DiscrepancyType = "cost_mismatch"
	DiscMissingInB       DiscrepancyType = "missing_in_b"
	DiscZeroDurationInA  DiscrepancyType = "zero_duration_in_a"
	DiscZeroDurationInB  DiscrepancyType = "zero_duration_in_b"
	DiscHungCallYours    DiscrepancyType = "hung_call_yours"
	DiscHungCallProvider DiscrepancyType = "hung_call_provider"
)

// TypeOrder is the §4.9 final sort order, by type.
var TypeOrder = []DiscrepancyType{
	DiscMissingInA,
	DiscLRNMismatch,
	DiscDurationMismatch,
	DiscRateMismatch,
	DiscCostMismatch,
	DiscMissingInB,
	DiscZeroDurationInA,
	DiscZeroDurationInB,
	DiscHungCallYours,
	DiscHungCallProvider,
}

// Discrepancy is one emitted finding, per the table in spec.md §3.
type Discrepancy struct {
	Type DiscrepancyType

	ANumber, BNumber string
	SeizeTime        *int64

	YourDuration, ProviderDuration *int64
	YourRate, ProviderRate         *decimal.Decimal
	YourCost, ProviderCost         *decimal.Decimal
	CostDifference                 decimal.Decimal

	YourLRN, ProviderLRN *string

	SourceIndex                *int64
	SourceIndexA, SourceIndexB *int64

	HungCallCount *int
}

// Summary is the aggregate counts and dollar totals of spec.md §4.8.
type Summary struct {
	TotalRecordsA, TotalRecordsB int64
	MatchedRecords               int64

	YourTotalBilled, ProviderTotalBilled   decimal.Decimal
	YourTotalMinutes, ProviderTotalMinutes decimal.Decimal
	BillingDifference, MinutesDifference   decimal.Decimal

	MissingInYours, MissingInProvider int64

	ZeroDurationInYours, BilledMissingInYours       int64
	ZeroDurationInProvider, BilledMissingInProvider int64

	DurationMismatches, RateMismatches int64
	CostMismatches, LRNMismatches      int64
	TotalDiscrepancies                 int64

	MonetaryImpact  decimal.Decimal
	ImpactBreakdown map[DiscrepancyType]decimal.Decimal

	HungCallsYours, HungCallGroupsYours       int64
	HungCallsProvider, HungCallGroupsProvider int64
}

// JobInput is the engine's single entry-point argument (spec.md §6.1).
type JobInput struct {
	FileAPath, FileADeclaredName string
	FileBPath, FileBDeclaredName string
	MappingA, MappingB           Mapping
}

// JobOutput is the engine's result (spec.md §6.1).
type JobOutput struct {
	JobID                 string
	Summary               Summary
	Discrepancies         []Discrepancy
	HasMore               bool
	TotalDiscrepancyCount int64
}
