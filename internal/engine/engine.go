// Package engine orchestrates one reconciliation job end to end:
// decode both files, normalize and stage their rows, match, classify,
// detect hung calls, and collect the final summary and discrepancy
// readout, per spec.md §6.1. Every job gets its own scratch SQLite
// file, created and torn down around the call, with an all-or-nothing
// contract: a job either returns a complete JobOutput or an error,
// never a partial result.
package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/hamzaKhattat/cdr-reconciler/internal/aggregator"
	"github.com/hamzaKhattat/cdr-reconciler/internal/classifier"
	"github.com/hamzaKhattat/cdr-reconciler/internal/collector"
	"github.com/hamzaKhattat/cdr-reconciler/internal/config"
	"github.com/hamzaKhattat/cdr-reconciler/internal/decoder"
	"github.com/hamzaKhattat/cdr-reconciler/internal/hungcall"
	"github.com/hamzaKhattat/cdr-reconciler/internal/matcher"
	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
	"github.com/hamzaKhattat/cdr-reconciler/internal/normalize"
	"github.com/hamzaKhattat/cdr-reconciler/internal/staging"
	"github.com/hamzaKhattat/cdr-reconciler/pkg/errors"
	"github.com/hamzaKhattat/cdr-reconciler/pkg/logger"
)

// MaxRowsPerFile is the default row-count limit used when an Engine is
// constructed with New instead of NewFromConfig, matching the caller
// limit of spec.md §6.2/§7 and internal/config's own default.
const MaxRowsPerFile = 2_000_000

// MaxDiscrepancyReadout bounds how many discrepancy rows JobOutput
// carries back to the caller directly; the full counts and cost sums
// in Summary are always exact regardless of this cap (spec.md §6.1).
const MaxDiscrepancyReadout = 5000

// defaultSeizeTimeTolerance mirrors matcher.SeizeTimeTolerance so New
// (no config) still enforces spec.md §4.5's 60-second window.
const defaultSeizeTimeTolerance = 60

// ScratchDir is the parent directory under which each job's UUID-named
// scratch SQLite file is created. Overridable by config/tests.
var ScratchDir = os.TempDir()

// Engine runs reconciliation jobs. Every tunable defaults to the
// spec.md constant it was originally hardcoded to; NewFromConfig
// overrides them from internal/config so an operator can retune a
// running deployment without a code change.
type Engine struct {
	scratchDir string

	seizeTimeTolerance int64

	hungCallMinDuration  int64
	hungCallMinGroupSize int
	hungCallMaxExemplars int

	collectorMaxPerType int

	maxRowsPerFile        int64
	maxDiscrepancyReadout int
}

func New(scratchDir string) *Engine {
	if scratchDir == "" {
		scratchDir = ScratchDir
	}
	return &Engine{
		scratchDir:            scratchDir,
		seizeTimeTolerance:    defaultSeizeTimeTolerance,
		hungCallMinDuration:   hungcall.DefaultMinDurationSeconds,
		hungCallMinGroupSize:  hungcall.DefaultMinGroupSize,
		hungCallMaxExemplars:  hungcall.DefaultMaxExemplarsPerSide,
		collectorMaxPerType:   collector.DefaultMaxPerType,
		maxRowsPerFile:        MaxRowsPerFile,
		maxDiscrepancyReadout: MaxDiscrepancyReadout,
	}
}

// NewFromConfig builds an Engine whose limits and tunables come from
// cfg's Staging/Matcher/HungCall/Collector/Limits sections instead of
// the package's hardcoded defaults.
func NewFromConfig(cfg *config.Config) *Engine {
	scratchDir := cfg.Staging.ScratchDir
	if scratchDir == "" {
		scratchDir = ScratchDir
	}
	return &Engine{
		scratchDir:            scratchDir,
		seizeTimeTolerance:    cfg.Matcher.SeizeTimeToleranceSeconds,
		hungCallMinDuration:   cfg.HungCall.MinDurationSeconds,
		hungCallMinGroupSize:  cfg.HungCall.MinGroupSize,
		hungCallMaxExemplars:  cfg.HungCall.MaxExemplarsPerSide,
		collectorMaxPerType:   cfg.Collector.MaxPerType,
		maxRowsPerFile:        cfg.Limits.MaxRowsPerFile,
		maxDiscrepancyReadout: cfg.Collector.MaxDiscrepancyReadout,
	}
}

// Reconcile runs one job to completion. The returned error, if any, is
// always an *errors.AppError with one of the spec.md §7 kinds.
func (e *Engine) Reconcile(ctx context.Context, input models.JobInput) (out models.JobOutput, err error) {
	jobID := uuid.NewString()
	log := logger.WithContext(ctx).WithField("job_id", jobID)

	if verr := validateMapping(input.MappingA, "A"); verr != nil {
		return out, verr
	}
	if verr := validateMapping(input.MappingB, "B"); verr != nil {
		return out, verr
	}

	scratchPath := filepath.Join(e.scratchDir, "cdr-recon-"+jobID+".db")

	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrInternal, "panic during reconciliation").WithContext("panic", r)
		}
		for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
			os.Remove(scratchPath + suffix)
		}
	}()

	store, err := staging.Open(ctx, scratchPath)
	if err != nil {
		return out, err
	}
	defer store.Close()

	if err := loadSide(ctx, store, models.SideA, input.FileAPath, input.FileADeclaredName, input.MappingA, e.maxRowsPerFile); err != nil {
		return out, err
	}
	if err := loadSide(ctx, store, models.SideB, input.FileBPath, input.FileBDeclaredName, input.MappingB, e.maxRowsPerFile); err != nil {
		return out, err
	}

	if err := store.BuildIndexes(ctx); err != nil {
		return out, err
	}
	if err := store.CreateMatchTables(ctx); err != nil {
		return out, err
	}

	matched, err := matcher.Run(ctx, store, e.seizeTimeTolerance)
	if err != nil {
		return out, err
	}
	log.WithField("matched_pairs", matched).Info("match pass complete")

	coll := collector.New(e.collectorMaxPerType)
	if err := classifier.Run(ctx, store, coll); err != nil {
		return out, err
	}

	hcResult, err := hungcall.Run(ctx, store, e.hungCallMinDuration, e.hungCallMinGroupSize, e.hungCallMaxExemplars)
	if err != nil {
		return out, err
	}
	for _, d := range hcResult.ExemplarsYours {
		coll.Offer(d)
	}
	for _, d := range hcResult.ExemplarsProvider {
		coll.Offer(d)
	}

	summary, err := aggregator.Build(ctx, store, hcResult, coll)
	if err != nil {
		return out, err
	}

	rows, hasMore := coll.Readout()
	total := coll.TotalOffered()
	if len(rows) > e.maxDiscrepancyReadout {
		rows = rows[:e.maxDiscrepancyReadout]
		hasMore = true
	}

	out = models.JobOutput{
		JobID:                 jobID,
		Summary:               summary,
		Discrepancies:         rows,
		HasMore:               hasMore,
		TotalDiscrepancyCount: total,
	}
	return out, nil
}

func validateMapping(m models.Mapping, side string) error {
	required := map[string]string{
		"a_number":        m.ANumber,
		"b_number":        m.BNumber,
		"seize_time":      m.SeizeTime,
		"billed_duration": m.BilledDuration,
		"lrn":             m.LRN,
	}
	for _, field := range models.RequiredFields() {
		if required[field] == "" {
			return errors.New(errors.ErrInput, "missing required column mapping").
				WithContext("side", side).WithContext("field", field)
		}
	}
	return nil
}

func loadSide(ctx context.Context, store *staging.Store, side models.Side, path, declaredName string, mapping models.Mapping, maxRows int64) error {
	stream, err := decoder.Decode(path, declaredName)
	if err != nil {
		return err
	}
	defer stream.Close()

	batch := make([]models.CanonicalRow, 0, 10000)
	var rawIndex int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.InsertBatch(ctx, side, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		row, ok, err := stream.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if rawIndex >= maxRows {
			return errors.New(errors.ErrLimit, "input file exceeds maximum row count").
				WithContext("side", string(side)).WithContext("limit", maxRows)
		}

		batch = append(batch, normalize.Row(row, mapping, rawIndex))
		rawIndex++

		if len(batch) >= 10000 {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}
