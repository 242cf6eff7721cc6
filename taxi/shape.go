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

package taxi

import (
	"context"
	"fmt"
	"sort"

	"github.com/aaronlmathis/tripetl/aggregate"
	"github.com/aaronlmathis/tripetl/core"
)

// Shape summarises a table: its columns, its size and how often each value
// of the categorical columns occurs. Two runs over the same input produce
// equal shapes even though Id assignment differs.
type Shape struct {
	Columns       []string
	Rows          int64
	Distributions map[string]map[string]int64
}

// ShapeAggregator emits one {column, value, rows} row per distinct value
// of each summarised column.
type ShapeAggregator struct {
	columns []string
}

// NewShapeAggregator summarises columns, or the categorical columns and
// the year when none are given.
func NewShapeAggregator(columns ...string) *ShapeAggregator {
	if len(columns) == 0 {
		columns = append(append([]string(nil), CategoricalColumns...), Year)
	}
	return &ShapeAggregator{columns: columns}
}

// ProcessRecords implements tasks.RecordsAggregator.
func (s *ShapeAggregator) ProcessRecords(ctx context.Context, records []core.Record) ([]core.Record, error) {
	var out []core.Record
	for _, column := range s.columns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		groups, err := aggregate.NewGroupBy(column).Count("rows").ProcessRecords(ctx, records)
		if err != nil {
			return nil, fmt.Errorf("shape of %s: %w", column, err)
		}
		for _, g := range groups {
			out = append(out, core.Record{
				"column": column,
				"value":  shapeValue(g[column]),
				"rows":   g["rows_count"],
			})
		}
	}
	return out, nil
}

// Distributions folds ShapeAggregator rows into column -> value -> count.
func Distributions(rows []core.Record) map[string]map[string]int64 {
	dist := make(map[string]map[string]int64)
	for _, r := range rows {
		column, _ := r["column"].(string)
		value, _ := r["value"].(string)
		n, _ := core.AsInt64(r["rows"])
		if dist[column] == nil {
			dist[column] = make(map[string]int64)
		}
		dist[column][value] += n
	}
	return dist
}

// ComputeShape builds the Shape of an in-memory table.
func ComputeShape(ctx context.Context, records []core.Record) (Shape, error) {
	rows, err := NewShapeAggregator().ProcessRecords(ctx, records)
	if err != nil {
		return Shape{}, err
	}

	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	return Shape{
		Columns:       columns,
		Rows:          int64(len(records)),
		Distributions: Distributions(rows),
	}, nil
}

func shapeValue(v interface{}) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}
