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

package transform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aaronlmathis/tripetl/core"
)

// Package transform provides reusable, composable record transformations for TripETL pipelines.
//
// Every transformer returns a new record and leaves its input untouched.

// timestampLayouts are tried in order by ToTimestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Chain applies transformers in order, feeding each output into the next.
func Chain(transformers ...core.Transformer) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		current := record
		for _, t := range transformers {
			next, err := t.Transform(ctx, current)
			if err != nil {
				return nil, err
			}
			current = next
		}
		return current, nil
	})
}

// Select creates a transformer that selects only the specified fields from each record.
// Fields not listed are omitted from the output record.
func Select(fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(fields))
		for _, field := range fields {
			if value, exists := record[field]; exists {
				result[field] = value
			}
		}
		return result, nil
	})
}

// Rename creates a transformer that renames fields according to the provided mapping.
// Keys are original field names, values are new field names.
func Rename(mapping map[string]string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(record))
		for key, value := range record {
			if newKey, exists := mapping[key]; exists {
				result[newKey] = value
			} else {
				result[key] = value
			}
		}
		return result, nil
	})
}

// AddField creates a transformer that adds a new field with a computed value to each record.
func AddField(field string, fn func(core.Record) interface{}) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := record.CloneWith(1)
		result[field] = fn(record)
		return result, nil
	})
}

// RemoveFields creates a transformer that removes the specified fields from each record.
// Fields that don't exist are ignored.
func RemoveFields(fields ...string) core.Transformer {
	fieldsToRemove := make(map[string]bool, len(fields))
	for _, field := range fields {
		fieldsToRemove[field] = true
	}

	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(record))
		for k, v := range record {
			if !fieldsToRemove[k] {
				result[k] = v
			}
		}
		return result, nil
	})
}

// ToTimestamp strictly casts a field to a UTC time.Time.
// Strings are accepted in RFC 3339, "2006-01-02 15:04:05[.fraction]" or
// "2006-01-02" form. Anything else fails with a *core.CastError. Null stays null.
func ToTimestamp(field string) core.Transformer {
	return cast(field, "timestamp", func(value interface{}) (interface{}, error) {
		return ParseTimestamp(value)
	})
}

// ToInt32 strictly casts a numeric field to int32, truncating floats toward zero.
func ToInt32(field string) core.Transformer {
	return cast(field, "int32", func(value interface{}) (interface{}, error) {
		n, err := core.AsInt64(value)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("value %d out of int32 range", n)
		}
		return int32(n), nil
	})
}

// ToFloat64 strictly casts a numeric field to float64.
func ToFloat64(field string) core.Transformer {
	return cast(field, "float64", func(value interface{}) (interface{}, error) {
		return core.AsFloat64(value)
	})
}

// ParseTimestamp converts a time.Time or a timestamp string into a UTC time.Time.
func ParseTimestamp(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timestampLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
	default:
		return core.AsTime(value)
	}
}

func cast(field, target string, convert func(interface{}) (interface{}, error)) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		value, exists := record[field]
		if !exists || value == nil {
			return record.Clone(), nil
		}
		converted, err := convert(value)
		if err != nil {
			if errors.Is(err, core.ErrNullValue) {
				return record.Clone(), nil
			}
			return nil, &core.CastError{Field: field, Value: value, Target: target, Err: err}
		}
		result := record.Clone()
		result[field] = converted
		return result, nil
	})
}
