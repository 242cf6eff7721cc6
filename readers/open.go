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

package readers

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v12/parquet"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/storage"
)

// OpenOptions configures Open.
type OpenOptions struct {
	Suffix   string            // File suffix selected inside directories and prefixes
	S3       storage.S3Options // Client settings for s3:// locations
	S3Client S3Client          // Prebuilt client, mainly for tests
	CSV      []ReaderOptionCSV
	Parquet  []ReaderOption
}

// Open returns a DataSource for a local file, a local directory or an
// s3://bucket/key-or-prefix. Directories and prefixes are read file by file
// in lexical order; files are decoded by extension.
func Open(ctx context.Context, location string, opts OpenOptions) (core.DataSource, error) {
	uri, err := storage.ParseURI(location)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", location, err)
	}

	if uri.IsS3() {
		s3opts := []ReaderOptionS3{
			WithS3Bucket(uri.Bucket),
			WithS3Key(uri.Path),
			WithS3Suffix(opts.Suffix),
			WithS3Config(opts.S3),
			WithS3CSVOptions(opts.CSV...),
			WithS3ParquetOptions(opts.Parquet...),
		}
		if opts.S3Client != nil {
			s3opts = append(s3opts, WithS3Client(opts.S3Client))
		}
		return NewS3Reader(ctx, s3opts...)
	}

	paths, err := ListFiles(uri.Path, opts.Suffix)
	if err != nil {
		return nil, err
	}
	openers := make([]Opener, len(paths))
	for i, p := range paths {
		openers[i] = func(context.Context) (core.DataSource, error) {
			f, err := os.Open(p)
			if err != nil {
				return nil, err
			}
			src, err := openByExtension(p, f, opts.CSV, opts.Parquet)
			if err != nil {
				f.Close()
				return nil, err
			}
			return src, nil
		}
	}
	return NewMultiReader(openers...), nil
}

// ListFiles returns path itself when it is a file, or every file with the
// given suffix beneath it in lexical order. Hidden and underscore-prefixed
// files such as _SUCCESS are skipped.
func ListFiles(path, suffix string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if p != path && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && (suffix == "" || strings.HasSuffix(name, suffix)) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found in %s", suffix, path)
	}
	return files, nil
}

// openByExtension picks the decoder for name. Sources that are io.Closers
// are closed with the returned reader.
func openByExtension(name string, src parquet.ReaderAtSeeker, csvOpts []ReaderOptionCSV, pqOpts []ReaderOption) (core.DataSource, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".parquet":
		return NewParquetReaderFrom(src, name, pqOpts...)
	case ".csv":
		var rc io.ReadCloser
		switch r := src.(type) {
		case io.ReadCloser:
			rc = r
		case io.Reader:
			rc = io.NopCloser(r)
		default:
			rc = io.NopCloser(io.NewSectionReader(src, 0, math.MaxInt64))
		}
		return NewCSVReader(rc, csvOpts...)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", name)
	}
}

// Opener lazily opens one DataSource.
type Opener func(ctx context.Context) (core.DataSource, error)

// MultiReader reads a sequence of sources back to back, opening each one
// only when the previous is exhausted.
type MultiReader struct {
	openers []Opener
	current core.DataSource
	next    int
}

// NewMultiReader concatenates the sources produced by openers.
func NewMultiReader(openers ...Opener) *MultiReader {
	return &MultiReader{openers: openers}
}

// Read implements the core.DataSource interface
func (m *MultiReader) Read(ctx context.Context) (core.Record, error) {
	for {
		if m.current == nil {
			if m.next >= len(m.openers) {
				return nil, io.EOF
			}
			src, err := m.openers[m.next](ctx)
			if err != nil {
				return nil, fmt.Errorf("open source %d: %w", m.next, err)
			}
			m.current = src
			m.next++
		}

		record, err := m.current.Read(ctx)
		if err == io.EOF {
			err = m.current.Close()
			m.current = nil
			if err != nil {
				return nil, err
			}
			continue
		}
		return record, err
	}
}

// Close implements the core.DataSource interface
func (m *MultiReader) Close() error {
	if m.current == nil {
		return nil
	}
	err := m.current.Close()
	m.current = nil
	return err
}
