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

package core

import (
	"errors"
	"fmt"
)

// ErrNullValue is returned by the conversion helpers when the value is nil.
var ErrNullValue = errors.New("null value")

// CastError reports a value that could not be converted to the column's target type.
// A CastError is fatal for the run.
type CastError struct {
	Field  string      // Column being cast
	Value  interface{} // Offending value
	Target string      // Target type name, e.g. "timestamp" or "int32"
	Err    error       // Underlying parse error
}

// Error returns the error string for CastError.
func (e *CastError) Error() string {
	return fmt.Sprintf("cast %s to %s: value %v (%T): %v", e.Field, e.Target, e.Value, e.Value, e.Err)
}

// Unwrap returns the underlying error for CastError.
func (e *CastError) Unwrap() error {
	return e.Err
}

// StageError wraps the failure of a single pipeline stage.
type StageError struct {
	Stage string
	Err   error
}

// Error returns the error string for StageError.
func (e *StageError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error for StageError.
func (e *StageError) Unwrap() error {
	return e.Err
}
