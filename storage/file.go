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

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileLocation writes output beneath a local directory. Objects are written
// to a sibling staging directory which replaces the destination on Commit.
type FileLocation struct {
	Path    string
	staging string
}

// NewFileLocation creates a location rooted at path.
func NewFileLocation(path string) *FileLocation {
	return &FileLocation{Path: filepath.Clean(path)}
}

// Begin creates a fresh staging directory next to the destination.
func (f *FileLocation) Begin(ctx context.Context) error {
	parent := filepath.Dir(f.Path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return &LocationError{Op: "begin", Err: err}
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(f.Path)+".staging-")
	if err != nil {
		return &LocationError{Op: "begin", Err: err}
	}
	f.staging = staging
	return nil
}

// Create opens key for writing inside the staging directory.
func (f *FileLocation) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	if f.staging == "" {
		return nil, &LocationError{Op: "create", Err: fmt.Errorf("location %s not begun", f.Path)}
	}
	if !filepath.IsLocal(key) {
		return nil, &LocationError{Op: "create", Err: fmt.Errorf("key %q escapes location", key)}
	}
	full := filepath.Join(f.staging, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, &LocationError{Op: "create", Err: err}
	}
	file, err := os.Create(full)
	if err != nil {
		return nil, &LocationError{Op: "create", Err: err}
	}
	return file, nil
}

// Commit removes the previous destination and renames staging into place.
func (f *FileLocation) Commit(ctx context.Context) error {
	if f.staging == "" {
		return &LocationError{Op: "commit", Err: fmt.Errorf("location %s not begun", f.Path)}
	}
	if err := os.RemoveAll(f.Path); err != nil {
		return &LocationError{Op: "commit", Err: err}
	}
	if err := os.Rename(f.staging, f.Path); err != nil {
		return &LocationError{Op: "commit", Err: err}
	}
	f.staging = ""
	return nil
}

// Abort deletes the staging directory and leaves the destination untouched.
func (f *FileLocation) Abort(ctx context.Context) error {
	if f.staging == "" {
		return nil
	}
	err := os.RemoveAll(f.staging)
	f.staging = ""
	if err != nil {
		return &LocationError{Op: "abort", Err: err}
	}
	return nil
}

func (f *FileLocation) String() string { return f.Path }
