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
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/tripetl/core"
)

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "schema", "append_value", "write_batch")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// ParquetWriter implements core.DataSink for one Parquet stream.
// Records are buffered and written as arrow record batches.
type ParquetWriter struct {
	sink         io.Writer
	writer       *pqarrow.FileWriter
	schema       *arrow.Schema
	closed       bool
	recordBuffer []core.Record
	fieldOrder   []string
	builders     []array.Builder
	allocator    memory.Allocator
	stats        WriterStats
	opts         ParquetWriterOptions
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Number of records to buffer before writing
	Schema       *arrow.Schema        // Pre-defined schema; inferred from the first record when nil
	Compression  compress.Compression // Compression algorithm
	FieldOrder   []string             // Column order used when inferring the schema
	RowGroupSize int64                // Maximum rows per row group
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	NullValueCounts map[string]int64
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of records to buffer before writing a batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithFieldOrder sets the column order for an inferred schema. Fields not
// listed follow in sorted order.
func WithFieldOrder(fields []string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.FieldOrder = append([]string(nil), fields...)
	}
}

// WithSchema fixes the output schema.
func WithSchema(schema *arrow.Schema) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Schema = schema
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// NewParquetWriter creates a Parquet writer on w. Close closes w when it is
// an io.Closer.
func NewParquetWriter(w io.Writer, options ...WriterOption) (*ParquetWriter, error) {
	opts := ParquetWriterOptions{
		BatchSize:    4096,
		Compression:  compress.Codecs.Snappy,
		RowGroupSize: 128 * 1024,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.BatchSize <= 0 {
		return nil, &ParquetWriterError{Op: "validate", Err: fmt.Errorf("batch size must be positive")}
	}

	p := &ParquetWriter{
		sink:         w,
		recordBuffer: make([]core.Record, 0, opts.BatchSize),
		allocator:    memory.NewGoAllocator(),
		stats:        WriterStats{NullValueCounts: make(map[string]int64)},
		opts:         opts,
	}
	if opts.Schema != nil {
		if err := p.initializeWriter(opts.Schema); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewParquetFileWriter creates filename, and its parent directories, and
// returns a writer on it.
func NewParquetFileWriter(filename string, options ...WriterOption) (*ParquetWriter, error) {
	if dir := filepath.Dir(filename); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &ParquetWriterError{Op: "create_directory", Err: err}
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, &ParquetWriterError{Op: "open_file", Err: err}
	}
	w, err := NewParquetWriter(file, options...)
	if err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	return p.stats
}

// Schema returns the output schema, or nil before the first record when
// the schema is inferred.
func (p *ParquetWriter) Schema() *arrow.Schema {
	return p.schema
}

// Write implements the core.DataSink interface.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}

	if p.schema == nil {
		schema, err := InferSchema([]core.Record{record}, p.opts.FieldOrder)
		if err != nil {
			return &ParquetWriterError{Op: "schema", Err: err}
		}
		if err := p.initializeWriter(schema); err != nil {
			return err
		}
	}

	p.recordBuffer = append(p.recordBuffer, record)
	if int64(len(p.recordBuffer)) >= p.opts.BatchSize {
		return p.flushBatch()
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (p *ParquetWriter) Flush() error {
	return p.flushBatch()
}

// Close flushes buffered rows, writes the footer and closes the sink.
func (p *ParquetWriter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	flushErr := p.flushBatch()

	for _, builder := range p.builders {
		builder.Release()
	}
	p.builders = nil

	var closeErr error
	if p.writer != nil {
		closeErr = p.writer.Close()
		p.writer = nil
	}

	var sinkErr error
	if c, ok := p.sink.(io.Closer); ok {
		sinkErr = c.Close()
	}

	switch {
	case flushErr != nil:
		return flushErr
	case closeErr != nil:
		return &ParquetWriterError{Op: "close_writer", Err: closeErr}
	case sinkErr != nil:
		return &ParquetWriterError{Op: "close_sink", Err: sinkErr}
	}
	return nil
}

// initializeWriter fixes the schema and opens the pqarrow writer. The sink
// is wrapped so the pqarrow writer never closes it.
func (p *ParquetWriter) initializeWriter(schema *arrow.Schema) error {
	p.schema = schema
	p.fieldOrder = make([]string, len(schema.Fields()))
	for i, f := range schema.Fields() {
		p.fieldOrder[i] = f.Name
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(p.opts.Compression),
		parquet.WithMaxRowGroupLength(p.opts.RowGroupSize),
		parquet.WithCreatedBy("tripetl"),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, struct{ io.Writer }{p.sink}, props, arrowProps)
	if err != nil {
		return &ParquetWriterError{Op: "create_writer", Err: err}
	}
	p.writer = writer

	p.builders = make([]array.Builder, len(schema.Fields()))
	for i, f := range schema.Fields() {
		p.builders[i] = array.NewBuilder(p.allocator, f.Type)
	}
	return nil
}

func (p *ParquetWriter) flushBatch() error {
	if len(p.recordBuffer) == 0 {
		return nil
	}
	startTime := time.Now()

	record, err := p.createArrowRecord(p.recordBuffer)
	if err != nil {
		p.recordBuffer = p.recordBuffer[:0]
		return err
	}
	defer record.Release()

	if err := p.writer.Write(record); err != nil {
		return &ParquetWriterError{Op: "write_batch", Err: err}
	}

	p.stats.RecordsWritten += int64(len(p.recordBuffer))
	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(startTime)
	p.recordBuffer = p.recordBuffer[:0]
	return nil
}

// createArrowRecord converts buffered records to one arrow record batch.
func (p *ParquetWriter) createArrowRecord(records []core.Record) (arrow.Record, error) {
	for _, record := range records {
		for i, fieldName := range p.fieldOrder {
			value, exists := record[fieldName]
			if !exists || value == nil {
				p.builders[i].AppendNull()
				p.stats.NullValueCounts[fieldName]++
				continue
			}
			if err := appendValue(p.builders[i], value); err != nil {
				for _, b := range p.builders {
					if arr := b.NewArray(); arr != nil {
						arr.Release()
					}
				}
				return nil, &ParquetWriterError{Op: "append_value", Err: fmt.Errorf("field %s: %w", fieldName, err)}
			}
		}
	}

	arrays := make([]arrow.Array, len(p.builders))
	for i, builder := range p.builders {
		arrays[i] = builder.NewArray()
	}
	defer func() {
		for _, arr := range arrays {
			arr.Release()
		}
	}()

	return array.NewRecord(p.schema, arrays, int64(len(records))), nil
}

// appendValue appends value to builder, widening numeric types where the
// column type is wider than the value.
func appendValue(builder array.Builder, value interface{}) error {
	switch b := builder.(type) {
	case *array.BooleanBuilder:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		b.Append(v)
	case *array.Int32Builder:
		n, err := core.AsInt64(value)
		if err != nil || !isInteger(value) {
			return fmt.Errorf("expected integer, got %T", value)
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return fmt.Errorf("value %d out of int32 range", n)
		}
		b.Append(int32(n))
	case *array.Int64Builder:
		n, err := core.AsInt64(value)
		if err != nil || !isInteger(value) {
			return fmt.Errorf("expected integer, got %T", value)
		}
		b.Append(n)
	case *array.Float64Builder:
		if _, ok := value.(string); ok {
			return fmt.Errorf("expected number, got string")
		}
		f, err := core.AsFloat64(value)
		if err != nil {
			return err
		}
		b.Append(f)
	case *array.StringBuilder:
		if v, ok := value.(string); ok {
			b.Append(v)
		} else {
			b.Append(fmt.Sprintf("%v", value))
		}
	case *array.BinaryBuilder:
		v, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("expected []byte, got %T", value)
		}
		b.Append(v)
	case *array.TimestampBuilder:
		v, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", value)
		}
		b.Append(arrow.Timestamp(v.UnixMicro()))
	default:
		return fmt.Errorf("unsupported builder type %T", builder)
	}
	return nil
}

func isInteger(value interface{}) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64, uint:
		return true
	}
	return false
}

// columnKind is the inferred logical type of a column.
type columnKind int

const (
	kindUnknown columnKind = iota
	kindBool
	kindInt32
	kindInt64
	kindFloat64
	kindString
	kindBinary
	kindTimestamp
)

func kindOf(value interface{}) (columnKind, error) {
	switch v := value.(type) {
	case nil:
		return kindUnknown, nil
	case bool:
		return kindBool, nil
	case int8, int16, int32, uint8, uint16:
		return kindInt32, nil
	case int64, uint32, uint64, uint:
		return kindInt64, nil
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return kindInt32, nil
		}
		return kindInt64, nil
	case float32, float64:
		return kindFloat64, nil
	case string:
		return kindString, nil
	case []byte:
		return kindBinary, nil
	case time.Time:
		return kindTimestamp, nil
	default:
		return kindUnknown, fmt.Errorf("unsupported type %T", value)
	}
}

// mergeKinds widens two column kinds to one that holds both. Integers widen
// to int64, integers and floats to float64, anything else to string.
func mergeKinds(a, b columnKind) columnKind {
	switch {
	case a == b:
		return a
	case a == kindUnknown:
		return b
	case b == kindUnknown:
		return a
	}
	isInt := func(k columnKind) bool { return k == kindInt32 || k == kindInt64 }
	switch {
	case isInt(a) && isInt(b):
		return kindInt64
	case (isInt(a) || a == kindFloat64) && (isInt(b) || b == kindFloat64):
		return kindFloat64
	}
	return kindString
}

func (k columnKind) arrowType() arrow.DataType {
	switch k {
	case kindBool:
		return arrow.FixedWidthTypes.Boolean
	case kindInt32:
		return arrow.PrimitiveTypes.Int32
	case kindInt64:
		return arrow.PrimitiveTypes.Int64
	case kindFloat64:
		return arrow.PrimitiveTypes.Float64
	case kindBinary:
		return arrow.BinaryTypes.Binary
	case kindTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	default:
		return arrow.BinaryTypes.String
	}
}

// InferSchema derives one nullable arrow schema covering every record.
// Columns listed in fieldOrder come first, in that order, when present in
// any record; the remaining columns follow sorted by name. A column that is
// null everywhere is typed as string.
func InferSchema(records []core.Record, fieldOrder []string, exclude ...string) (*arrow.Schema, error) {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	kinds := make(map[string]columnKind)
	for _, record := range records {
		for name, value := range record {
			if skip[name] {
				continue
			}
			k, err := kindOf(value)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			kinds[name] = mergeKinds(kinds[name], k)
		}
	}

	names := make([]string, 0, len(kinds))
	placed := make(map[string]bool, len(fieldOrder))
	for _, name := range fieldOrder {
		if _, ok := kinds[name]; ok && !placed[name] {
			names = append(names, name)
			placed[name] = true
		}
	}
	var rest []string
	for name := range kinds {
		if !placed[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: kinds[name].arrowType(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}
