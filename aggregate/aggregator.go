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

package aggregate

import (
	"context"
	"strings"
	"time"

	"github.com/aaronlmathis/tripetl/core"
)

// Aggregator defines the interface for data aggregation operations.
// Aggregators process multiple records and produce a summary or grouped result.
type Aggregator interface {
	// Add processes a record for aggregation.
	Add(ctx context.Context, record core.Record) error
	// Result returns the aggregated result as a Record.
	Result() (core.Record, error)
	// Reset clears the aggregator state for reuse.
	Reset()
	// Clone returns a fresh aggregator with the same configuration.
	Clone() Aggregator
}

// CountAggregator counts the number of records
type CountAggregator struct {
	count int64
}

func (c *CountAggregator) Add(ctx context.Context, record core.Record) error {
	c.count++
	return nil
}

func (c *CountAggregator) Result() (core.Record, error) {
	return core.Record{"count": c.count}, nil
}

func (c *CountAggregator) Reset() { c.count = 0 }

func (c *CountAggregator) Clone() Aggregator { return &CountAggregator{} }

// MinAggregator finds the minimum non-null value of a field.
type MinAggregator struct {
	Field string
	min   interface{}
	set   bool
}

func (m *MinAggregator) Add(ctx context.Context, record core.Record) error {
	value := record[m.Field]
	if value == nil {
		return nil
	}
	if !m.set || compareValues(value, m.min) < 0 {
		m.min = value
		m.set = true
	}
	return nil
}

func (m *MinAggregator) Result() (core.Record, error) {
	return core.Record{"min": m.min}, nil
}

func (m *MinAggregator) Reset() {
	m.min = nil
	m.set = false
}

func (m *MinAggregator) Clone() Aggregator { return &MinAggregator{Field: m.Field} }

// MaxAggregator finds the maximum non-null value of a field.
type MaxAggregator struct {
	Field string
	max   interface{}
	set   bool
}

func (m *MaxAggregator) Add(ctx context.Context, record core.Record) error {
	value := record[m.Field]
	if value == nil {
		return nil
	}
	if !m.set || compareValues(value, m.max) > 0 {
		m.max = value
		m.set = true
	}
	return nil
}

func (m *MaxAggregator) Result() (core.Record, error) {
	return core.Record{"max": m.max}, nil
}

func (m *MaxAggregator) Reset() {
	m.max = nil
	m.set = false
}

func (m *MaxAggregator) Clone() Aggregator { return &MaxAggregator{Field: m.Field} }

// compareValues orders numbers numerically, times chronologically and
// everything else by string form.
func compareValues(a, b interface{}) int {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	fa, errA := core.AsFloat64(a)
	fb, errB := core.AsFloat64(b)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	sa, _ := core.AsString(a)
	sb, _ := core.AsString(b)
	return strings.Compare(sa, sb)
}
