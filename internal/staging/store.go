// Package staging implements the relational scratch store of
// spec.md §4.4: two tables holding canonical rows, backed by an
// embedded SQLite engine with write-ahead logging for bulk-insert
// throughput. The store is job-scoped and discarded at end of job,
// mirroring the teacher's connection-pool wrapper (internal/db in the
// ara-production-system repo) but over a throwaway file instead of a
// long-lived MySQL instance.
package staging

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/hamzaKhattat/cdr-reconciler/internal/models"
	"github.com/hamzaKhattat/cdr-reconciler/pkg/errors"
	"github.com/hamzaKhattat/cdr-reconciler/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

const insertBatchSize = 10000

// Store is the scratch store for one reconciliation job.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates a fresh SQLite scratch file at path, with WAL journaling
// and synchronous commit disabled for bulk-insert throughput, and
// creates the two canonical-row tables.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=OFF&cache=shared", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to open scratch store")
	}
	db.SetMaxOpenConns(1) // one writer; SQLite serializes anyway, avoid "database is locked"

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to create scratch schema")
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the underlying connection. Close does NOT delete the
// scratch file; callers use Cleanup for full teardown so that a
// caller inspecting a failed job's scratch file for debugging still
// can, right up until the engine's deferred cleanup runs.
func (s *Store) Close() error {
	return s.db.Close()
}

// Cleanup closes the store and removes the scratch file (and its
// SQLite WAL/SHM siblings). Safe to call multiple times.
func (s *Store) Cleanup() error {
	closeErr := s.Close()
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		os.Remove(s.path + suffix)
	}
	return closeErr
}

// DB exposes the underlying connection for packages that need to run
// ad-hoc queries the Store doesn't wrap directly (the matcher's
// candidate cursor, the classifier's anti-joins, the aggregator's
// summary queries).
func (s *Store) DB() *sql.DB {
	return s.db
}

func tableFor(side models.Side) string {
	if side == models.SideA {
		return "records_a"
	}
	return "records_b"
}

// InsertBatch bulk-inserts rows for one side in transactions of
// insertBatchSize, per spec.md §4.4.
func (s *Store) InsertBatch(ctx context.Context, side models.Side, rows []models.CanonicalRow) error {
	table := tableFor(side)
	query := fmt.Sprintf(`INSERT INTO %s
		(a_number, b_number, seize_time, answer_time, end_time, billed_duration, rate, lrn, raw_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, table)

	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := s.insertChunk(ctx, query, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertChunk(ctx context.Context, query string, chunk []models.CanonicalRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to start staging transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to prepare staging insert")
	}
	defer stmt.Close()

	for _, r := range chunk {
		rateF, _ := r.Rate.Float64()
		if _, err := stmt.ExecContext(ctx,
			r.ANumber, r.BNumber, r.SeizeTime, r.AnswerTime, r.EndTime,
			r.BilledDuration, rateF, r.LRN, r.RawIndex,
		); err != nil {
			return errors.Wrap(err, errors.ErrInternal, "failed to insert staging row")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to commit staging batch")
	}
	return nil
}

// BuildIndexes creates the secondary indexes of spec.md §4.4 after
// bulk load: a composite index on (a_number, b_number) driving the
// matcher's join, and a singleton index on seize_time for each side.
func (s *Store) BuildIndexes(ctx context.Context) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_a_numbers ON records_a(a_number, b_number)`,
		`CREATE INDEX IF NOT EXISTS idx_b_numbers ON records_b(a_number, b_number)`,
		`CREATE INDEX IF NOT EXISTS idx_a_seize ON records_a(seize_time)`,
		`CREATE INDEX IF NOT EXISTS idx_b_seize ON records_b(seize_time)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, errors.ErrInternal, "failed to build staging index")
		}
	}
	return nil
}

// CreateMatchTables creates the temporary matches table the matcher
// populates and every anti-join and pair readout downstream reads
// from (spec.md §4.4). Keeping a_id and b_id on the same row (rather
// than two separate id-only tables) is what lets the classifier
// recover which A row was paired with which B row.
func (s *Store) CreateMatchTables(ctx context.Context) error {
	const stmt = `CREATE TEMP TABLE IF NOT EXISTS matches (a_id INTEGER PRIMARY KEY, b_id INTEGER NOT NULL)`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to create match table")
	}
	const idx = `CREATE INDEX IF NOT EXISTS idx_matches_b ON matches(b_id)`
	if _, err := s.db.ExecContext(ctx, idx); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to index match table")
	}
	return nil
}

// RecordMatch records one accepted match pair. Called once per
// accepted pair by the matcher.
func (s *Store) RecordMatch(ctx context.Context, aID, bID int64) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO matches(a_id, b_id) VALUES (?, ?)`, aID, bID); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to record match")
	}
	return nil
}

// CountRows returns the total row count for one side.
func (s *Store) CountRows(ctx context.Context, side models.Side) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", tableFor(side))).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrInternal, "failed to count staging rows")
	}
	return n, nil
}

// CountMatched returns the number of accepted match pairs, i.e. the
// cardinality of used_a (spec.md §4.8).
func (s *Store) CountMatched(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrInternal, "failed to count matched rows")
	}
	return n, nil
}

// scanRow scans one staging row (any side, same column order) into a
// CanonicalRow.
func scanRow(rows *sql.Rows) (models.CanonicalRow, error) {
	var r models.CanonicalRow
	var seize, answer, end sql.NullInt64
	var rate float64

	if err := rows.Scan(&r.ID, &r.ANumber, &r.BNumber, &seize, &answer, &end,
		&r.BilledDuration, &rate, &r.LRN, &r.RawIndex); err != nil {
		return r, errors.Wrap(err, errors.ErrInternal, "failed to scan staging row")
	}

	if seize.Valid {
		r.SeizeTime = &seize.Int64
	}
	if answer.Valid {
		r.AnswerTime = &answer.Int64
	}
	if end.Valid {
		r.EndTime = &end.Int64
	}
	r.Rate = decimal.NewFromFloat(rate)

	return r, nil
}

func logRowCounts(ctx context.Context, s *Store) {
	a, _ := s.CountRows(ctx, models.SideA)
	b, _ := s.CountRows(ctx, models.SideB)
	logger.WithContext(ctx).WithField("records_a", a).WithField("records_b", b).Debug("staging store populated")
}
