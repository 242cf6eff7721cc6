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

// Package tripetl runs the trip ETL job: a DAG of stages executed between
// Lifecycle.Begin and Lifecycle.Commit or Lifecycle.Abort.
//
// Example usage:
//
//	summary, err := tripetl.NewPipeline("nyc-trips").
//		WithDAG(graph).
//		WithLifecycle(ledger).
//		WithSummarizer(taxi.Summarize).
//		Execute(ctx)
package tripetl

import (
	"context"
	"time"

	"github.com/aaronlmathis/tripetl/internal/logger"
)

// RunInfo identifies one run of the job.
type RunInfo struct {
	RunID   string
	JobName string
	Args    map[string]string
	Start   time.Time
}

// RunSummary reports the outcome of a successful run.
type RunSummary struct {
	RowsRead      int64
	RowsWritten   int64
	Partitions    map[string]int64            // Rows per output partition value
	Distributions map[string]map[string]int64 // Column -> value -> rows
	Duration      time.Duration
}

// Lifecycle brackets a run. Begin is called before any stage runs, then
// exactly one of Commit or Abort.
type Lifecycle interface {
	Begin(ctx context.Context, run RunInfo) error
	Commit(ctx context.Context, run RunInfo, summary RunSummary) error
	Abort(ctx context.Context, run RunInfo, cause error) error
}

// LogLifecycle reports lifecycle events through the logger.
type LogLifecycle struct{}

func (LogLifecycle) Begin(ctx context.Context, run RunInfo) error {
	logger.WithJob(run.JobName, run.RunID).Info("job started", "args", len(run.Args))
	return nil
}

func (LogLifecycle) Commit(ctx context.Context, run RunInfo, summary RunSummary) error {
	logger.WithJob(run.JobName, run.RunID).Info("job committed",
		"rows_read", summary.RowsRead,
		"rows_written", summary.RowsWritten,
		"partitions", len(summary.Partitions),
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return nil
}

func (LogLifecycle) Abort(ctx context.Context, run RunInfo, cause error) error {
	logger.WithJob(run.JobName, run.RunID).Error("job aborted", "error", cause)
	return nil
}

// MultiLifecycle fans every call out to each lifecycle in order. The first
// error is returned after all of them have been called.
type MultiLifecycle []Lifecycle

func (m MultiLifecycle) Begin(ctx context.Context, run RunInfo) error {
	var first error
	for _, l := range m {
		if err := l.Begin(ctx, run); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiLifecycle) Commit(ctx context.Context, run RunInfo, summary RunSummary) error {
	var first error
	for _, l := range m {
		if err := l.Commit(ctx, run, summary); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiLifecycle) Abort(ctx context.Context, run RunInfo, cause error) error {
	var first error
	for _, l := range m {
		if err := l.Abort(ctx, run, cause); err != nil && first == nil {
			first = err
		}
	}
	return first
}
