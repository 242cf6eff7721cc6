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

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aaronlmathis/tripetl"
	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/dag"
	"github.com/aaronlmathis/tripetl/internal/config"
	"github.com/aaronlmathis/tripetl/internal/logger"
	"github.com/aaronlmathis/tripetl/ledger"
	"github.com/aaronlmathis/tripetl/readers"
	"github.com/aaronlmathis/tripetl/storage"
	"github.com/aaronlmathis/tripetl/taxi"
	"github.com/aaronlmathis/tripetl/writers"
)

func newRunCmd(verbose, quiet *bool) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trip job",
		Long: `Run the trip job with settings from flags, TRIPETL_* environment
variables, a .env file and an optional YAML or TOML config file.

Flags:
  --dry-run   Open the inputs and print the task graph without executing it

Exit codes:
  0 - Job succeeded
  1 - Runtime error
  2 - Configuration error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := configureLogger(cfg, *verbose || *quiet); err != nil {
				return err
			}
			return runJob(cmd.Context(), cfg, dryRun, cmd.OutOrStdout())
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Open the inputs and print the task graph without executing it")
	return cmd
}

// configureLogger applies the configured format, and the level unless
// --verbose or --quiet already set one.
func configureLogger(cfg *config.Config, levelFromFlags bool) error {
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		return &config.ConfigError{Field: "log-format", Err: err}
	}
	if levelFromFlags {
		return nil
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return &config.ConfigError{Field: "log-level", Err: err}
	}
	logger.SetLevel(level)
	return nil
}

func runJob(ctx context.Context, cfg *config.Config, dryRun bool, stdout io.Writer) error {
	yearSource, err := taxi.ParseYearSource(cfg.YearSource)
	if err != nil {
		return &config.ConfigError{Field: "year-source", Err: err}
	}

	trips, err := readers.Open(ctx, cfg.Trips, readers.OpenOptions{Suffix: cfg.TripsSuffix, S3: cfg.S3Options()})
	if err != nil {
		return fmt.Errorf("open trips: %w", err)
	}
	defer trips.Close()

	zones, err := openZones(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open zones: %w", err)
	}
	defer zones.Close()

	location, err := storage.NewLocation(ctx, cfg.Output, cfg.S3Options())
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	runID := uuid.NewString()
	// The sink is closed by its task; closing it here would commit an
	// empty output.
	sink, err := writers.NewPartitionedWriter(location,
		writers.WithRunID(runID),
		writers.WithPartitionColumn(taxi.Year),
		writers.WithPartitionFieldOrder(taxi.OutputFieldOrder),
	)
	if err != nil {
		return err
	}

	graph, err := taxi.BuildDAG(taxi.GraphConfig{
		Trips:      trips,
		Zones:      zones,
		Sink:       sink,
		YearSource: yearSource,
		Workers:    cfg.Workers,
		Partitions: cfg.Partitions,
		Timeout:    cfg.Timeout,
	})
	if err != nil {
		return err
	}
	if dryRun {
		return graph.Describe(stdout)
	}

	var lifecycle tripetl.Lifecycle = tripetl.LogLifecycle{}
	if cfg.LedgerDSN != "" {
		runs, err := ledger.NewPostgresLedger(ctx, cfg.LedgerDSN,
			ledger.WithTable(cfg.LedgerTable),
			ledger.WithPartitionTable(cfg.LedgerPartitionTable),
		)
		if err != nil {
			return err
		}
		defer runs.Close()
		lifecycle = tripetl.MultiLifecycle{tripetl.LogLifecycle{}, runs}
	}

	summary, err := tripetl.NewPipeline(cfg.JobName).
		WithDAG(graph).
		WithExecutor(dag.NewDAGExecutor(dag.WithMaxWorkers(cfg.Workers))).
		WithLifecycle(lifecycle).
		WithRunID(runID).
		WithArgs(cfg.Args()).
		WithSummarizer(taxi.Summarize).
		Execute(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "run %s: read %d rows, wrote %d rows in %d partitions to %s (%s)\n",
		runID, summary.RowsRead, summary.RowsWritten, len(summary.Partitions), cfg.Output, summary.Duration.Round(time.Millisecond))
	return nil
}

// openZones opens the zone lookup from the configured source.
func openZones(ctx context.Context, cfg *config.Config) (core.DataSource, error) {
	switch cfg.ZoneSource {
	case config.ZoneSourcePostgres:
		return readers.NewPostgresReader(ctx,
			readers.WithPostgresDSN(cfg.ZonePostgresDSN),
			readers.WithPostgresQuery(cfg.ZoneQuery),
		)
	case config.ZoneSourceMongo:
		return readers.NewMongoReader(
			readers.WithMongoURI(cfg.ZoneMongoURI),
			readers.WithMongoDB(cfg.ZoneMongoDatabase),
			readers.WithMongoCollection(cfg.ZoneMongoCollection),
			readers.WithMongoFields(taxi.LocationID, taxi.Zone, taxi.Borough),
		)
	default:
		return readers.Open(ctx, cfg.Zones, readers.OpenOptions{S3: cfg.S3Options()})
	}
}
