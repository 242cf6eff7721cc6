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
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/internal/s3mem"
	"github.com/aaronlmathis/tripetl/readers"
	"github.com/aaronlmathis/tripetl/storage"
)

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, p)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

func writeTable(t *testing.T, w *PartitionedWriter, records []core.Record) {
	t.Helper()
	ctx := context.Background()
	for _, r := range records {
		require.NoError(t, w.Write(ctx, r))
	}
	require.NoError(t, w.FlushContext(ctx))
	require.NoError(t, w.Close())
}

func TestPartitionedWriter_Local(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "year=2001"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "year=2001", "stale.parquet"), []byte("x"), 0o644))

	w, err := NewPartitionedWriter(storage.NewFileLocation(dest),
		WithRunID("run1"),
		WithPartitionFieldOrder([]string{"Id", "fare_amount"}),
	)
	require.NoError(t, err)

	writeTable(t, w, []core.Record{
		{"Id": int64(1), "fare_amount": 10.0, "year": int32(2019)},
		{"Id": int64(2), "fare_amount": 11.0, "year": int32(2020)},
		{"Id": int64(3), "fare_amount": 12.0, "year": int32(2019), "extra": "x"},
		{"Id": int64(4), "fare_amount": 13.0, "year": nil},
	})

	assert.Equal(t, []string{
		"_SUCCESS",
		"year=2019/part-00000-run1.snappy.parquet",
		"year=2020/part-00001-run1.snappy.parquet",
		"year=__HIVE_DEFAULT_PARTITION__/part-00002-run1.snappy.parquet",
	}, listTree(t, dest))

	stats := w.Stats()
	assert.Equal(t, int64(4), stats.RecordsWritten)
	require.Len(t, stats.Partitions, 3)
	assert.Equal(t, PartitionStats{Value: "2019", Key: "year=2019/part-00000-run1.snappy.parquet", Rows: 2}, stats.Partitions[0])

	got, schema := readAll(t, filepath.Join(dest, "year=2019", "part-00000-run1.snappy.parquet"))
	require.Len(t, got, 2)
	assert.Equal(t, 3, len(schema.Fields()), "shared schema, partition column omitted")
	assert.Equal(t, "Id", schema.Field(0).Name)
	assert.NotContains(t, got[0], "year")
	assert.Nil(t, got[0]["extra"])
	assert.Equal(t, "x", got[1]["extra"])

	_, other := readAll(t, filepath.Join(dest, "year=2020", "part-00001-run1.snappy.parquet"))
	assert.True(t, schema.Equal(other))

	assert.Error(t, w.Write(context.Background(), core.Record{}), "write after flush")
}

func TestPartitionedWriter_EmptyTable(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "year=2019"), 0o755))

	w, err := NewPartitionedWriter(storage.NewFileLocation(dest))
	require.NoError(t, err)
	writeTable(t, w, nil)

	assert.Equal(t, []string{"_SUCCESS"}, listTree(t, dest))
	assert.Zero(t, w.Stats().RecordsWritten)
}

type failingLocation struct {
	*storage.FileLocation
	failPrefix string
}

func (f failingLocation) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	if strings.HasPrefix(key, f.failPrefix) {
		return nil, errors.New("disk full")
	}
	return f.FileLocation.Create(ctx, key)
}

func TestPartitionedWriter_FailureLeavesDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "keep"), []byte("x"), 0o644))

	loc := failingLocation{FileLocation: storage.NewFileLocation(dest), failPrefix: "year=2020"}
	w, err := NewPartitionedWriter(loc)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, w.Write(ctx, core.Record{"year": int32(2019), "v": int32(1)}))
	require.NoError(t, w.Write(ctx, core.Record{"year": int32(2020), "v": int32(2)}))

	err = w.FlushContext(ctx)
	var pwErr *PartitionedWriterError
	require.ErrorAs(t, err, &pwErr)
	assert.Equal(t, "write_partition", pwErr.Op)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, []string{"keep"}, listTree(t, dest))

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging removed on failure")
}

func TestPartitionedWriter_SchemaError(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	w, err := NewPartitionedWriter(storage.NewFileLocation(dest))
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), core.Record{"year": int32(2019), "v": struct{}{}}))

	var pwErr *PartitionedWriterError
	require.ErrorAs(t, w.Flush(), &pwErr)
	assert.Equal(t, "schema", pwErr.Op)
	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))

	_, err = NewPartitionedWriter(nil)
	assert.Error(t, err)
}

func TestPartitionedWriter_S3(t *testing.T) {
	client := s3mem.New()
	client.Put("bkt", "trips/year=2001/old.parquet", []byte("old"))

	w, err := NewPartitionedWriter(storage.NewS3Location(client, "bkt", "trips"), WithRunID("r"))
	require.NoError(t, err)
	writeTable(t, w, []core.Record{
		{"Id": int64(1), "year": int32(2019)},
		{"Id": int64(2), "year": int32(2019)},
	})

	keys := client.Keys("bkt")
	assert.Equal(t, []string{"trips/_SUCCESS", "trips/year=2019/part-00000-r.snappy.parquet"}, keys)

	data, ok := client.Object("bkt", "trips/year=2019/part-00000-r.snappy.parquet")
	require.True(t, ok)
	r, err := readers.NewParquetReaderFrom(bytes.NewReader(data), "part")
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, int64(2), r.NumRows())
	rec, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec["Id"])
	_, err = r.Read(context.Background())
	require.NoError(t, err)
	_, err = r.Read(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestPartitionValue(t *testing.T) {
	assert.Equal(t, "2019", PartitionValue(int32(2019)))
	assert.Equal(t, DefaultPartitionValue, PartitionValue(nil))
	assert.Equal(t, DefaultPartitionValue, PartitionValue(""))
	assert.True(t, strings.Contains(PartitionValue("a/b"), "%2F"))
}
