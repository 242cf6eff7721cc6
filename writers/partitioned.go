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

package writers

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/storage"
)

const (
	// DefaultPartitionValue names the directory holding rows whose partition
	// value is null.
	DefaultPartitionValue = "__HIVE_DEFAULT_PARTITION__"
	// SuccessMarker is written after every partition file.
	SuccessMarker = "_SUCCESS"
)

// PartitionedWriterError wraps partitioned write failures.
type PartitionedWriterError struct {
	Op  string // Operation that failed (e.g., "schema", "begin", "write_partition", "commit")
	Err error  // Underlying error
}

func (e *PartitionedWriterError) Error() string {
	return fmt.Sprintf("partitioned writer %s: %v", e.Op, e.Err)
}

func (e *PartitionedWriterError) Unwrap() error {
	return e.Err
}

// PartitionStats describes one written partition.
type PartitionStats struct {
	Value string // Directory value, e.g. "2019"
	Key   string // Object key relative to the location
	Rows  int64
}

// PartitionedWriterStats holds the result of a flush.
type PartitionedWriterStats struct {
	RecordsWritten int64
	Partitions     []PartitionStats
}

// PartitionedWriter implements core.DataSink by buffering the whole table
// and writing it on flush as one Snappy parquet file per partition value,
// Hive style: <column>=<value>/part-<n>-<runID>.snappy.parquet. The
// destination is overwritten and a _SUCCESS marker is written last.
type PartitionedWriter struct {
	location        storage.Location
	partitionColumn string
	runID           string
	fieldOrder      []string
	parquetOpts     []WriterOption
	buffer          []core.Record
	flushed         bool
	stats           PartitionedWriterStats
}

// PartitionedWriterOption configures a PartitionedWriter.
type PartitionedWriterOption func(*PartitionedWriter)

// WithPartitionColumn sets the column encoded in directory names.
func WithPartitionColumn(column string) PartitionedWriterOption {
	return func(w *PartitionedWriter) { w.partitionColumn = column }
}

// WithRunID sets the run id embedded in file names.
func WithRunID(runID string) PartitionedWriterOption {
	return func(w *PartitionedWriter) { w.runID = runID }
}

// WithPartitionFieldOrder sets the leading column order of the shared schema.
func WithPartitionFieldOrder(fields []string) PartitionedWriterOption {
	return func(w *PartitionedWriter) { w.fieldOrder = append([]string(nil), fields...) }
}

// WithParquetOptions passes options through to each partition's ParquetWriter.
func WithParquetOptions(options ...WriterOption) PartitionedWriterOption {
	return func(w *PartitionedWriter) { w.parquetOpts = append(w.parquetOpts, options...) }
}

// NewPartitionedWriter creates a writer targeting location.
func NewPartitionedWriter(location storage.Location, options ...PartitionedWriterOption) (*PartitionedWriter, error) {
	w := &PartitionedWriter{
		location:        location,
		partitionColumn: "year",
		runID:           "00000000-0000-0000-0000-000000000000",
	}
	for _, option := range options {
		option(w)
	}
	if location == nil {
		return nil, &PartitionedWriterError{Op: "validate", Err: fmt.Errorf("location is required")}
	}
	if w.partitionColumn == "" {
		return nil, &PartitionedWriterError{Op: "validate", Err: fmt.Errorf("partition column is required")}
	}
	return w, nil
}

// Write buffers a record until flush.
func (w *PartitionedWriter) Write(ctx context.Context, record core.Record) error {
	if w.flushed {
		return &PartitionedWriterError{Op: "write", Err: fmt.Errorf("writer already flushed")}
	}
	w.buffer = append(w.buffer, record)
	return nil
}

// Flush writes the buffered table with a background context.
func (w *PartitionedWriter) Flush() error {
	return w.FlushContext(context.Background())
}

// FlushContext writes every partition and the success marker. It runs once;
// later calls are no-ops.
func (w *PartitionedWriter) FlushContext(ctx context.Context) error {
	if w.flushed {
		return nil
	}
	w.flushed = true

	schema, err := InferSchema(w.buffer, w.fieldOrder, w.partitionColumn)
	if err != nil {
		return &PartitionedWriterError{Op: "schema", Err: err}
	}

	groups := make(map[string][]core.Record)
	for _, record := range w.buffer {
		value := PartitionValue(record[w.partitionColumn])
		groups[value] = append(groups[value], record)
	}
	values := make([]string, 0, len(groups))
	for v := range groups {
		values = append(values, v)
	}
	sort.Strings(values)

	if err := w.location.Begin(ctx); err != nil {
		return &PartitionedWriterError{Op: "begin", Err: err}
	}

	for i, value := range values {
		key := fmt.Sprintf("%s=%s/part-%05d-%s.snappy.parquet", w.partitionColumn, value, i, w.runID)
		if err := w.writePartition(ctx, key, groups[value], WithSchema(schema)); err != nil {
			w.location.Abort(ctx)
			return &PartitionedWriterError{Op: "write_partition", Err: fmt.Errorf("%s: %w", key, err)}
		}
		rows := int64(len(groups[value]))
		w.stats.Partitions = append(w.stats.Partitions, PartitionStats{Value: value, Key: key, Rows: rows})
		w.stats.RecordsWritten += rows
	}

	marker, err := w.location.Create(ctx, SuccessMarker)
	if err == nil {
		err = marker.Close()
	}
	if err != nil {
		w.location.Abort(ctx)
		return &PartitionedWriterError{Op: "success_marker", Err: err}
	}

	if err := w.location.Commit(ctx); err != nil {
		return &PartitionedWriterError{Op: "commit", Err: err}
	}
	w.buffer = nil
	return nil
}

func (w *PartitionedWriter) writePartition(ctx context.Context, key string, records []core.Record, schemaOpt WriterOption) error {
	out, err := w.location.Create(ctx, key)
	if err != nil {
		return err
	}

	opts := append(append([]WriterOption{}, w.parquetOpts...), schemaOpt)
	pw, err := NewParquetWriter(out, opts...)
	if err != nil {
		out.Close()
		return err
	}

	for i, record := range records {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				pw.Close()
				return err
			}
		}
		if err := pw.Write(ctx, record); err != nil {
			pw.Close()
			return err
		}
	}
	return pw.Close()
}

// Close flushes if no flush happened yet.
func (w *PartitionedWriter) Close() error {
	return w.Flush()
}

// Stats returns what the flush wrote.
func (w *PartitionedWriter) Stats() PartitionedWriterStats {
	return w.stats
}

// PartitionValue renders a partition directory value. Nulls map to the Hive
// default partition.
func PartitionValue(value interface{}) string {
	if value == nil {
		return DefaultPartitionValue
	}
	s, _ := core.AsString(value)
	if s == "" {
		return DefaultPartitionValue
	}
	return url.PathEscape(s)
}
