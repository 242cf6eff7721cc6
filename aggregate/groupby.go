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
	"fmt"
	"sort"
	"strings"

	"github.com/aaronlmathis/tripetl/core"
)

// GroupBy groups records by one or more fields and runs a set of
// aggregators per group. Result columns are named "<output>_<kind>", for
// example "rows_count".
type GroupBy struct {
	groupFields []string
	outputs     []string
	aggregators map[string]Aggregator
}

// NewGroupBy creates a new GroupBy aggregator
func NewGroupBy(groupFields ...string) *GroupBy {
	return &GroupBy{
		groupFields: groupFields,
		aggregators: make(map[string]Aggregator),
	}
}

// Count adds a count aggregator for the specified output field
func (g *GroupBy) Count(outputField string) *GroupBy {
	return g.add(outputField, &CountAggregator{})
}

// Min adds a minimum aggregator for the specified field
func (g *GroupBy) Min(field, outputField string) *GroupBy {
	return g.add(outputField, &MinAggregator{Field: field})
}

// Max adds a maximum aggregator for the specified field
func (g *GroupBy) Max(field, outputField string) *GroupBy {
	return g.add(outputField, &MaxAggregator{Field: field})
}

func (g *GroupBy) add(outputField string, agg Aggregator) *GroupBy {
	if _, exists := g.aggregators[outputField]; !exists {
		g.outputs = append(g.outputs, outputField)
	}
	g.aggregators[outputField] = agg
	return g
}

type group struct {
	key         core.Record
	aggregators map[string]Aggregator
}

// Process aggregates records from a channel until it is closed.
// Groups are returned sorted by their key.
func (g *GroupBy) Process(ctx context.Context, records <-chan core.Record) ([]core.Record, error) {
	groups := make(map[string]*group)

	for record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := g.addRecord(ctx, groups, record); err != nil {
			return nil, err
		}
	}
	return g.collect(groups)
}

// ProcessRecords aggregates an in-memory table.
func (g *GroupBy) ProcessRecords(ctx context.Context, records []core.Record) ([]core.Record, error) {
	groups := make(map[string]*group)
	for _, record := range records {
		if err := g.addRecord(ctx, groups, record); err != nil {
			return nil, err
		}
	}
	return g.collect(groups)
}

func (g *GroupBy) addRecord(ctx context.Context, groups map[string]*group, record core.Record) error {
	groupKey := g.buildGroupKey(record)
	grp, exists := groups[groupKey]
	if !exists {
		grp = &group{
			key:         make(core.Record, len(g.groupFields)),
			aggregators: make(map[string]Aggregator, len(g.aggregators)),
		}
		for _, field := range g.groupFields {
			grp.key[field] = record[field]
		}
		for outputField, aggregator := range g.aggregators {
			grp.aggregators[outputField] = aggregator.Clone()
		}
		groups[groupKey] = grp
	}

	for outputField, aggregator := range grp.aggregators {
		if err := aggregator.Add(ctx, record); err != nil {
			return fmt.Errorf("aggregation error for field %s: %w", outputField, err)
		}
	}
	return nil
}

func (g *GroupBy) collect(groups map[string]*group) ([]core.Record, error) {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]core.Record, 0, len(groups))
	for _, k := range keys {
		grp := groups[k]
		result := grp.key.Clone()
		for _, outputField := range g.outputs {
			value, err := grp.aggregators[outputField].Result()
			if err != nil {
				return nil, fmt.Errorf("failed to get result for field %s: %w", outputField, err)
			}
			for kind, v := range value {
				result[outputField+"_"+kind] = v
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// buildGroupKey encodes the group values with their types so that nil,
// "" and 0 never collide.
func (g *GroupBy) buildGroupKey(record core.Record) string {
	var b strings.Builder
	for i, field := range g.groupFields {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		value := record[field]
		if value == nil {
			b.WriteString("\x00null")
			continue
		}
		fmt.Fprintf(&b, "%T:%v", value, value)
	}
	return b.String()
}
