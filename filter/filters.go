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

package filter

import (
	"context"

	"github.com/aaronlmathis/tripetl/core"
)

// Package filter provides composable record filters for TripETL pipelines.
//
// Comparisons follow SQL null semantics: a missing or nil value, or a value
// that cannot be read as a number, never satisfies a predicate.

// NotNull creates a filter that excludes records where the field is missing or nil.
func NotNull(field string) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		value, exists := record[field]
		return exists && value != nil, nil
	})
}

// Equals creates a filter that includes records whose numeric field equals value.
func Equals(field string, value float64) core.Filter {
	return compare(field, func(n float64) bool { return n == value })
}

// NotEquals creates a filter that includes records whose numeric field differs from value.
// A null field is excluded, as in SQL.
func NotEquals(field string, value float64) core.Filter {
	return compare(field, func(n float64) bool { return n != value })
}

// GreaterThan creates a filter that includes records where the numeric field is greater than threshold.
func GreaterThan(field string, threshold float64) core.Filter {
	return compare(field, func(n float64) bool { return n > threshold })
}

// LessThan creates a filter that includes records where the numeric field is less than threshold.
func LessThan(field string, threshold float64) core.Filter {
	return compare(field, func(n float64) bool { return n < threshold })
}

// AtMost creates a filter that includes records where the numeric field is <= limit.
func AtMost(field string, limit float64) core.Filter {
	return compare(field, func(n float64) bool { return n <= limit })
}

// Between creates a filter that includes records where the numeric field is in [min, max].
func Between(field string, min, max float64) core.Filter {
	return compare(field, func(n float64) bool { return n >= min && n <= max })
}

// In creates a filter that includes records where the string field is one of values.
func In(field string, values ...string) core.Filter {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		s, ok := record[field].(string)
		if !ok {
			return false, nil
		}
		_, found := set[s]
		return found, nil
	})
}

// And creates a filter that requires all provided filters to pass
func And(filters ...core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		for _, filter := range filters {
			include, err := filter.ShouldInclude(ctx, record)
			if err != nil {
				return false, err
			}
			if !include {
				return false, nil
			}
		}
		return true, nil
	})
}

// Or creates a filter that requires at least one of the provided filters to pass
func Or(filters ...core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		for _, filter := range filters {
			include, err := filter.ShouldInclude(ctx, record)
			if err != nil {
				return false, err
			}
			if include {
				return true, nil
			}
		}
		return false, nil
	})
}

// Not creates a filter that negates the provided filter
func Not(filter core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		include, err := filter.ShouldInclude(ctx, record)
		if err != nil {
			return false, err
		}
		return !include, nil
	})
}

// Custom creates a filter from a plain predicate.
func Custom(predicate func(core.Record) bool) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		return predicate(record), nil
	})
}

func compare(field string, pred func(float64) bool) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		value, exists := record[field]
		if !exists || value == nil {
			return false, nil
		}
		num, err := core.AsFloat64(value)
		if err != nil {
			return false, nil
		}
		return pred(num), nil
	})
}
