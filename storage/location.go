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

// Package storage provides the overwrite destinations the partitioned writer
// targets: a local directory or an S3 prefix.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// LocationError provides structured error information for storage operations
type LocationError struct {
	Op  string // Operation that failed (e.g., "begin", "create", "commit")
	Err error  // Underlying error
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *LocationError) Unwrap() error {
	return e.Err
}

// Location is a destination written in full-overwrite mode.
//
// Begin discards or stages away previous contents, Create opens an object
// relative to the location root, and Commit publishes what was written.
// Abort drops whatever Begin staged.
type Location interface {
	Begin(ctx context.Context) error
	Create(ctx context.Context, key string) (io.WriteCloser, error)
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
	String() string
}

// URI is a parsed location string.
type URI struct {
	Scheme string // "file" or "s3"
	Bucket string // set for s3
	Path   string // local path, or key/prefix for s3
}

// ParseURI splits a location into scheme, bucket and path. Anything that is
// not s3:// is treated as a local path; a file:// prefix is stripped.
func ParseURI(raw string) (URI, error) {
	if raw == "" {
		return URI{}, fmt.Errorf("empty location")
	}
	if rest, ok := strings.CutPrefix(raw, "s3://"); ok {
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return URI{}, fmt.Errorf("location %q has no bucket", raw)
		}
		return URI{Scheme: "s3", Bucket: bucket, Path: key}, nil
	}
	if strings.Contains(raw, "://") && !strings.HasPrefix(raw, "file://") {
		return URI{}, fmt.Errorf("unsupported location scheme in %q", raw)
	}
	return URI{Scheme: "file", Path: strings.TrimPrefix(raw, "file://")}, nil
}

// IsS3 reports whether the location is an S3 URI.
func (u URI) IsS3() bool { return u.Scheme == "s3" }

func (u URI) String() string {
	if u.IsS3() {
		return "s3://" + u.Bucket + "/" + u.Path
	}
	return u.Path
}

// NewLocation opens a Location for raw. The S3 client is built from opts only
// when raw is an s3:// URI.
func NewLocation(ctx context.Context, raw string, opts S3Options) (Location, error) {
	uri, err := ParseURI(raw)
	if err != nil {
		return nil, &LocationError{Op: "parse", Err: err}
	}
	if !uri.IsS3() {
		return NewFileLocation(uri.Path), nil
	}
	client, err := NewS3Client(ctx, opts)
	if err != nil {
		return nil, &LocationError{Op: "s3_client", Err: err}
	}
	return NewS3Location(client, uri.Bucket, uri.Path), nil
}
