//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of TripETL.
//
// TripETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TripETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TripETL. If not, see https://www.gnu.org/licenses/.

// Package ledger records job runs in PostgreSQL.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	tripetl "github.com/aaronlmathis/tripetl"
	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/writers"
)

// Run states stored in the status column.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// LedgerError wraps ledger failures with the operation that failed.
type LedgerError struct {
	Op  string
	Err error
}

// Error returns the error string for LedgerError.
func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for LedgerError.
func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Options configures a PostgresLedger.
type Options struct {
	Table          string        // Run table, default job_runs
	PartitionTable string        // Per-partition counts, empty to skip
	Timeout        time.Duration // Per-statement timeout
}

// Option represents a configuration function for Options.
type Option func(*Options)

// WithTable sets the run table name.
func WithTable(name string) Option {
	return func(o *Options) { o.Table = name }
}

// WithPartitionTable also stores one row per output partition in name.
func WithPartitionTable(name string) Option {
	return func(o *Options) { o.PartitionTable = name }
}

// WithTimeout bounds every ledger statement.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// PostgresLedger implements tripetl.Lifecycle on a job_runs table:
// Begin inserts a running row, Commit marks it succeeded with its counts
// and Abort marks it failed with the error text.
type PostgresLedger struct {
	db     *sql.DB
	ownsDB bool
	opts   Options
}

var _ tripetl.Lifecycle = (*PostgresLedger)(nil)

// NewPostgresLedger connects to dsn and creates the run table if missing.
func NewPostgresLedger(ctx context.Context, dsn string, options ...Option) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &LedgerError{Op: "connect", Err: err}
	}
	l, err := NewPostgresLedgerFromDB(ctx, db, options...)
	if err != nil {
		db.Close()
		return nil, err
	}
	l.ownsDB = true
	return l, nil
}

// NewPostgresLedgerFromDB uses an existing pool, which Close leaves open.
func NewPostgresLedgerFromDB(ctx context.Context, db *sql.DB, options ...Option) (*PostgresLedger, error) {
	opts := Options{Table: "job_runs", Timeout: 30 * time.Second}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Table == "" {
		return nil, &LedgerError{Op: "validate", Err: fmt.Errorf("table name is required")}
	}

	l := &PostgresLedger{db: db, opts: opts}
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, &LedgerError{Op: "ping", Err: err}
	}
	if err := l.ensureSchema(ctx); err != nil {
		return nil, &LedgerError{Op: "create_table", Err: err}
	}
	return l, nil
}

func (l *PostgresLedger) ensureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		run_id       TEXT PRIMARY KEY,
		job_name     TEXT NOT NULL,
		status       TEXT NOT NULL,
		started_at   TIMESTAMPTZ NOT NULL,
		finished_at  TIMESTAMPTZ,
		args         JSONB,
		rows_read    BIGINT,
		rows_written BIGINT,
		partitions   JSONB,
		error        TEXT
	)`, pq.QuoteIdentifier(l.opts.Table))
	_, err := l.db.ExecContext(ctx, query)
	return err
}

// Begin inserts the run as running.
func (l *PostgresLedger) Begin(ctx context.Context, run tripetl.RunInfo) error {
	args, err := json.Marshal(run.Args)
	if err != nil {
		return &LedgerError{Op: "begin", Err: err}
	}
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO %s (run_id, job_name, status, started_at, args)
		VALUES ($1, $2, $3, $4, $5)`, pq.QuoteIdentifier(l.opts.Table))
	if _, err := l.db.ExecContext(ctx, query, run.RunID, run.JobName, StatusRunning, run.Start, string(args)); err != nil {
		return &LedgerError{Op: "begin", Err: err}
	}
	return nil
}

// Commit marks the run succeeded and stores its counts.
func (l *PostgresLedger) Commit(ctx context.Context, run tripetl.RunInfo, summary tripetl.RunSummary) error {
	partitions, err := json.Marshal(summary.Partitions)
	if err != nil {
		return &LedgerError{Op: "commit", Err: err}
	}
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`UPDATE %s
		SET status = $2, finished_at = $3, rows_read = $4, rows_written = $5, partitions = $6
		WHERE run_id = $1`, pq.QuoteIdentifier(l.opts.Table))
	if err := l.update(ctx, query, run.RunID, StatusSucceeded, time.Now().UTC(),
		summary.RowsRead, summary.RowsWritten, string(partitions)); err != nil {
		return &LedgerError{Op: "commit", Err: err}
	}

	if l.opts.PartitionTable != "" && len(summary.Partitions) > 0 {
		if err := l.writePartitions(ctx, run.RunID, summary.Partitions); err != nil {
			return &LedgerError{Op: "commit_partitions", Err: err}
		}
	}
	return nil
}

// Abort marks the run failed with the text of cause.
func (l *PostgresLedger) Abort(ctx context.Context, run tripetl.RunInfo, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`UPDATE %s SET status = $2, finished_at = $3, error = $4 WHERE run_id = $1`,
		pq.QuoteIdentifier(l.opts.Table))
	if err := l.update(ctx, query, run.RunID, StatusFailed, time.Now().UTC(), msg); err != nil {
		return &LedgerError{Op: "abort", Err: err}
	}
	return nil
}

// Status returns the stored status of a run.
func (l *PostgresLedger) Status(ctx context.Context, runID string) (string, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	var status string
	query := fmt.Sprintf(`SELECT status FROM %s WHERE run_id = $1`, pq.QuoteIdentifier(l.opts.Table))
	if err := l.db.QueryRowContext(ctx, query, runID).Scan(&status); err != nil {
		return "", &LedgerError{Op: "status", Err: err}
	}
	return status, nil
}

// Close releases the connection pool when the ledger opened it.
func (l *PostgresLedger) Close() error {
	if !l.ownsDB || l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func (l *PostgresLedger) update(ctx context.Context, query string, args ...interface{}) error {
	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %v not found", args[0])
	}
	return nil
}

func (l *PostgresLedger) writePartitions(ctx context.Context, runID string, partitions map[string]int64) error {
	w, err := writers.NewPostgresWriter(
		writers.WithPostgresDB(l.db),
		writers.WithTableName(l.opts.PartitionTable),
		writers.WithColumns([]string{"run_id", "partition", "rows"}),
		writers.WithCreateTable(true),
		writers.WithConflictResolution(writers.ConflictUpdate,
			[]string{"run_id", "partition"}, []string{"rows"}),
	)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(partitions))
	for k := range partitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.Write(ctx, core.Record{"run_id": runID, "partition": k, "rows": partitions[k]}); err != nil {
			return err
		}
	}
	if err := w.FlushContext(ctx); err != nil {
		return err
	}
	return w.Close()
}

func (l *PostgresLedger) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.opts.Timeout)
}
