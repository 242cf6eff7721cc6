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

// transform.go - TransformTask, FilterTask and AggregateTask
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/tripetl/core"
)

// ctxCheckInterval is how many rows a worker processes between context checks.
const ctxCheckInterval = 1024

// TransformTask applies a Transformer to every record, partition by partition.
type TransformTask struct {
	baseTask
	transformer core.Transformer
}

func (tt *TransformTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()
	workers, partitions := tt.metadata.layout()

	out, err := mapPartitions(ctx, input.Records, workers, partitions,
		func(ctx context.Context, _ int, chunk []core.Record) ([]core.Record, error) {
			res := make([]core.Record, 0, len(chunk))
			for i, record := range chunk {
				if i%ctxCheckInterval == 0 {
					if err := ctx.Err(); err != nil {
						return nil, err
					}
				}
				transformed, err := tt.transformer.Transform(ctx, record)
				if err != nil {
					return nil, fmt.Errorf("transform failed: %w", err)
				}
				res = append(res, transformed)
			}
			return res, nil
		})
	if err != nil {
		return TaskOutput{}, err
	}

	return TaskOutput{
		Records:  out,
		Context:  input.Context,
		Metadata: result(start, len(input.Records), len(out)),
	}, nil
}

// NewTransformTask creates a new TransformTask
func NewTransformTask(id string, transformer core.Transformer, dependencies []string, options ...TaskOption) *TransformTask {
	task := &TransformTask{
		baseTask:    newBaseTask(id, TaskTypeTransform, dependencies),
		transformer: transformer,
	}
	applyOptions(task, options)
	return task
}

// FilterTask keeps the records accepted by a Filter. Kept records are passed
// through unchanged.
type FilterTask struct {
	baseTask
	filter core.Filter
}

func (ft *FilterTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()
	workers, partitions := ft.metadata.layout()

	out, err := mapPartitions(ctx, input.Records, workers, partitions,
		func(ctx context.Context, _ int, chunk []core.Record) ([]core.Record, error) {
			var res []core.Record
			for i, record := range chunk {
				if i%ctxCheckInterval == 0 {
					if err := ctx.Err(); err != nil {
						return nil, err
					}
				}
				include, err := ft.filter.ShouldInclude(ctx, record)
				if err != nil {
					return nil, fmt.Errorf("filter failed: %w", err)
				}
				if include {
					res = append(res, record)
				}
			}
			return res, nil
		})
	if err != nil {
		return TaskOutput{}, err
	}

	return TaskOutput{
		Records:  out,
		Context:  input.Context,
		Metadata: result(start, len(input.Records), len(out)),
	}, nil
}

// NewFilterTask creates a new FilterTask
func NewFilterTask(id string, filter core.Filter, dependencies []string, options ...TaskOption) *FilterTask {
	task := &FilterTask{
		baseTask: newBaseTask(id, TaskTypeFilter, dependencies),
		filter:   filter,
	}
	applyOptions(task, options)
	return task
}

// RecordsAggregator summarises a whole table into result rows.
// aggregate.GroupBy implements it.
type RecordsAggregator interface {
	ProcessRecords(ctx context.Context, records []core.Record) ([]core.Record, error)
}

// AggregateTask runs a RecordsAggregator over its input.
type AggregateTask struct {
	baseTask
	aggregator RecordsAggregator
}

func (at *AggregateTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	out, err := at.aggregator.ProcessRecords(ctx, input.Records)
	if err != nil {
		return TaskOutput{}, fmt.Errorf("aggregation failed: %w", err)
	}

	return TaskOutput{
		Records:  out,
		Context:  input.Context,
		Metadata: result(start, len(input.Records), len(out)),
	}, nil
}

// NewAggregateTask creates a new AggregateTask
func NewAggregateTask(id string, aggregator RecordsAggregator, dependencies []string, options ...TaskOption) *AggregateTask {
	task := &AggregateTask{
		baseTask:   newBaseTask(id, TaskTypeAggregate, dependencies),
		aggregator: aggregator,
	}
	applyOptions(task, options)
	return task
}
