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
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/storage"
)

// S3ReaderError provides structured error information for S3 reader operations
type S3ReaderError struct {
	Op  string // Operation that failed (e.g., "list_objects", "get_object", "read")
	Err error  // Underlying error
}

func (e *S3ReaderError) Error() string {
	return fmt.Sprintf("s3 reader %s: %v", e.Op, e.Err)
}

func (e *S3ReaderError) Unwrap() error {
	return e.Err
}

// S3Client is the subset of the S3 API the reader needs.
type S3Client interface {
	s3.ListObjectsV2APIClient
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ReaderStats holds statistics about the S3 reader
type S3ReaderStats struct {
	ObjectsListed  int64    // Total objects selected for reading
	ObjectsRead    int64    // Objects opened so far
	RecordsRead    int64    // Records read across all objects
	BytesRead      int64    // Bytes downloaded
	ProcessedFiles []string // Keys opened, in order
}

// S3ReaderOptions configures the S3 reader behavior
type S3ReaderOptions struct {
	Bucket  string            // S3 bucket name
	Key     string            // Object key, or a prefix holding many objects
	Suffix  string            // Key suffix filter for prefixes (e.g., ".parquet")
	Client  S3Client          // Prebuilt client; built from Config when nil
	Config  storage.S3Options // Client settings
	CSV     []ReaderOptionCSV // Options for .csv objects
	Parquet []ReaderOption    // Options for .parquet objects
}

// ReaderOptionS3 represents a configuration function for S3Reader
type ReaderOptionS3 func(*S3ReaderOptions)

func WithS3Bucket(bucket string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.Bucket = bucket }
}

func WithS3Key(key string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.Key = key }
}

func WithS3Suffix(suffix string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.Suffix = suffix }
}

func WithS3Client(client S3Client) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.Client = client }
}

func WithS3Config(cfg storage.S3Options) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.Config = cfg }
}

func WithS3CSVOptions(options ...ReaderOptionCSV) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.CSV = append(opts.CSV, options...) }
}

func WithS3ParquetOptions(options ...ReaderOption) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.Parquet = append(opts.Parquet, options...) }
}

// S3Reader implements core.DataSource over one object or every object under
// a prefix, read in lexical key order. Each object is downloaded whole and
// decoded by extension. Any object failure is returned to the caller.
type S3Reader struct {
	client        S3Client
	keys          []string
	currentIndex  int
	currentReader core.DataSource
	stats         S3ReaderStats
	opts          S3ReaderOptions
}

// NewS3Reader creates a new S3 reader with the specified options
func NewS3Reader(ctx context.Context, options ...ReaderOptionS3) (*S3Reader, error) {
	var opts S3ReaderOptions
	for _, option := range options {
		option(&opts)
	}

	if opts.Bucket == "" {
		return nil, &S3ReaderError{Op: "validate_options", Err: fmt.Errorf("bucket is required")}
	}

	client := opts.Client
	if client == nil {
		c, err := storage.NewS3Client(ctx, opts.Config)
		if err != nil {
			return nil, &S3ReaderError{Op: "create_client", Err: err}
		}
		client = c
	}

	reader := &S3Reader{client: client, opts: opts}
	if err := reader.listObjects(ctx); err != nil {
		return nil, &S3ReaderError{Op: "list_objects", Err: err}
	}
	return reader, nil
}

// Read implements the core.DataSource interface
func (s *S3Reader) Read(ctx context.Context) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &S3ReaderError{Op: "read", Err: err}
	}

	for {
		if s.currentReader == nil {
			if s.currentIndex >= len(s.keys) {
				return nil, io.EOF
			}
			if err := s.openNextObject(ctx); err != nil {
				return nil, &S3ReaderError{Op: "open_object", Err: err}
			}
		}

		record, err := s.currentReader.Read(ctx)
		if err == io.EOF {
			if err := s.closeCurrentReader(); err != nil {
				return nil, &S3ReaderError{Op: "close_object", Err: err}
			}
			continue
		}
		if err != nil {
			return nil, &S3ReaderError{Op: "read_record", Err: err}
		}

		s.stats.RecordsRead++
		return record, nil
	}
}

// Close implements the core.DataSource interface
func (s *S3Reader) Close() error {
	return s.closeCurrentReader()
}

// Keys returns the object keys selected for reading.
func (s *S3Reader) Keys() []string {
	return s.keys
}

// Stats returns S3 reader statistics
func (s *S3Reader) Stats() S3ReaderStats {
	return s.stats
}

// listObjects selects the exact key when it exists, otherwise every key
// beneath it treated as a directory, filtered by suffix.
func (s *S3Reader) listObjects(ctx context.Context) error {
	keys, err := storage.ListKeys(ctx, s.client, s.opts.Bucket, s.opts.Key)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if key == s.opts.Key && s.opts.Key != "" {
			s.keys = []string{key}
			s.stats.ObjectsListed = 1
			return nil
		}
	}

	dir := s.opts.Key
	if dir != "" && !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	for _, key := range keys {
		if strings.HasPrefix(key, dir) && s.shouldIncludeObject(key) {
			s.keys = append(s.keys, key)
		}
	}
	if len(s.keys) == 0 {
		return fmt.Errorf("no objects found at s3://%s/%s", s.opts.Bucket, s.opts.Key)
	}
	s.stats.ObjectsListed = int64(len(s.keys))
	return nil
}

func (s *S3Reader) shouldIncludeObject(key string) bool {
	if strings.HasSuffix(key, "/") {
		return false
	}
	base := path.Base(key)
	if strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".") {
		return false
	}
	return s.opts.Suffix == "" || strings.HasSuffix(key, s.opts.Suffix)
}

func (s *S3Reader) openNextObject(ctx context.Context) error {
	key := s.keys[s.currentIndex]

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get object %s: %w", key, err)
	}
	data, err := io.ReadAll(result.Body)
	result.Body.Close()
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}

	name := "s3://" + s.opts.Bucket + "/" + key
	reader, err := openByExtension(name, bytes.NewReader(data), s.opts.CSV, s.opts.Parquet)
	if err != nil {
		return err
	}

	s.currentReader = reader
	s.stats.ObjectsRead++
	s.stats.BytesRead += int64(len(data))
	s.stats.ProcessedFiles = append(s.stats.ProcessedFiles, key)
	return nil
}

func (s *S3Reader) closeCurrentReader() error {
	if s.currentReader == nil {
		return nil
	}
	err := s.currentReader.Close()
	s.currentReader = nil
	s.currentIndex++
	return err
}
