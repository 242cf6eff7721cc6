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

// Package main provides the tripetl command: it runs the NYC taxi trip job
// and inspects the Parquet files it produces.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/tripetl/internal/config"
	"github.com/aaronlmathis/tripetl/internal/logger"
	"github.com/aaronlmathis/tripetl/readers"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitRuntimeError = 1
	ExitConfigError  = 2
)

var (
	// Build information (set via ldflags during build)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	return ExitRuntimeError
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var verbose, quiet bool

	root := &cobra.Command{
		Use:   "tripetl",
		Short: "TripETL - NYC taxi trip batch job",
		Long: `TripETL cleans, enriches and partitions NYC yellow taxi trip records.

It reads trip Parquet files and the taxi zone lookup, applies the quality
filter, joins pickup and dropoff zones, derives time and category columns,
drops outliers and writes the result as year-partitioned Parquet.

Examples:
  # Run the job against local files
  tripetl run --job-name nightly --trips ./trips --zones zones.csv --output ./out

  # Run against S3 with settings from a config file
  tripetl run --config tripetl.yaml

  # Check an output file
  tripetl inspect out/year=2023/part-00000-<run>.snappy.parquet`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				logger.SetLevel(slog.LevelDebug)
			} else if quiet {
				logger.SetLevel(slog.LevelError)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	root.SetOut(stdout)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &config.ConfigError{Field: "flags", Err: err}
	})

	root.AddCommand(newRunCmd(&verbose, &quiet))
	root.AddCommand(newInspectCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <parquet-file>",
		Short: "Print the schema and row count of a Parquet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := readers.NewParquetReader(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()
			return printParquetInfo(cmd.OutOrStdout(), args[0], reader)
		},
	}
}

func printParquetInfo(w io.Writer, name string, reader *readers.ParquetReader) error {
	fmt.Fprintf(w, "%s: %d rows in %d row groups\n", name, reader.NumRows(), reader.NumRowGroups())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tNULLABLE")
	for _, f := range reader.Schema().Fields() {
		fmt.Fprintf(tw, "%s\t%s\t%v\n", f.Name, f.Type, f.Nullable)
	}
	return tw.Flush()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print version, commit hash, and build date information.",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tripetl version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", buildDate)
		},
	}
}
