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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsFloat64(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		want    float64
		wantErr bool
	}{
		{"float64", 2.5, 2.5, false},
		{"int32", int32(7), 7, false},
		{"int64", int64(-3), -3, false},
		{"numeric string", " 12.75 ", 12.75, false},
		{"bad string", "abc", 0, true},
		{"bool", true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AsFloat64(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := AsFloat64(nil)
	assert.True(t, errors.Is(err, ErrNullValue))
}

func TestAsInt64_TruncatesFloats(t *testing.T) {
	v, err := AsInt64(2.9)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	v, err = AsInt64(-1.7)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)

	v, err = AsInt64("99")
	require.NoError(t, err)
	assert.Equal(t, int64(99), v)

	v, err = AsInt64("5.0")
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	_, err = AsInt64("five")
	assert.Error(t, err)
}

func TestAsTime(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	got, err := AsTime(now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	_, err = AsTime("2024-01-02")
	assert.Error(t, err)

	_, err = AsTime(nil)
	assert.ErrorIs(t, err, ErrNullValue)
}

func TestRecordClone_DoesNotShareStorage(t *testing.T) {
	orig := Record{"a": 1, "b": "x"}
	c := orig.Clone()
	c["a"] = 2
	delete(c, "b")

	assert.Equal(t, 1, orig["a"])
	assert.Equal(t, "x", orig["b"])
}

func TestCastError_Unwrap(t *testing.T) {
	base := errors.New("boom")
	err := &CastError{Field: "f", Value: "v", Target: "int32", Err: base}
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "cast f to int32")

	var ce *CastError
	wrapped := &StageError{Stage: "normalize", Err: err}
	require.True(t, errors.As(wrapped, &ce))
	assert.Equal(t, "f", ce.Field)
	assert.Equal(t, "task normalize failed: "+err.Error(), wrapped.Error())
}
