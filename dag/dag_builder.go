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

// dag_builder.go - Fluent API for DAG construction
package dag

import (
	"errors"
	"fmt"
	"time"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/dag/tasks"
)

// DAGBuilder provides a fluent API for constructing DAGs
type DAGBuilder struct {
	dag  *DAG
	errs []error
}

// NewDAG creates a new DAG builder
func NewDAG(id, name string) *DAGBuilder {
	return &DAGBuilder{
		dag: &DAG{
			id:           id,
			name:         name,
			tasks:        make(map[string]tasks.Task),
			dependencies: make(map[string][]string),
			metadata: DAGMetadata{
				MaxParallelism: 4,
			},
		},
	}
}

// AddTask adds an already constructed task to the DAG.
func (db *DAGBuilder) AddTask(task tasks.Task) *DAGBuilder {
	id := task.ID()
	if _, exists := db.dag.tasks[id]; exists {
		db.errs = append(db.errs, fmt.Errorf("duplicate task id %s", id))
		return db
	}
	deps := task.Dependencies()
	seen := make(map[string]bool, len(deps))
	for _, dep := range deps {
		if seen[dep] {
			db.errs = append(db.errs, fmt.Errorf("task %s lists dependency %s twice", id, dep))
		}
		seen[dep] = true
	}
	db.dag.tasks[id] = task
	db.dag.order = append(db.dag.order, id)
	db.dag.dependencies[id] = deps
	return db
}

// AddSourceTask adds a data source task to the DAG
func (db *DAGBuilder) AddSourceTask(id string, source core.DataSource, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewSourceTask(id, source, opts...))
}

// AddTransformTask adds a transformation task to the DAG
func (db *DAGBuilder) AddTransformTask(id string, transformer core.Transformer, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewTransformTask(id, transformer, dependencies, opts...))
}

// AddFilterTask adds a filter task to the DAG
func (db *DAGBuilder) AddFilterTask(id string, filter core.Filter, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewFilterTask(id, filter, dependencies, opts...))
}

// AddJoinTask adds a join operation task to the DAG
func (db *DAGBuilder) AddJoinTask(id string, config tasks.JoinConfig, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewJoinTask(id, config, dependencies, opts...))
}

// AddLookupTask adds a left join that projects lookup columns onto the
// records of the first dependency.
func (db *DAGBuilder) AddLookupTask(id, key, lookupKey string, fields map[string]string, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddJoinTask(id, tasks.JoinConfig{
		JoinType:    "left",
		LeftKeys:    []string{key},
		RightKeys:   []string{lookupKey},
		RightFields: fields,
	}, dependencies, opts...)
}

// AddIdentityTask adds a dense id assignment task to the DAG
func (db *DAGBuilder) AddIdentityTask(id, field string, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewIdentityTask(id, field, dependencies, opts...))
}

// AddConditionalTask adds a conditional execution task to the DAG
func (db *DAGBuilder) AddConditionalTask(id string, condition tasks.ConditionalLogic, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewConditionalTask(id, condition, dependencies, opts...))
}

// AddGateTask adds a conditional task that fails the run when its condition is false.
func (db *DAGBuilder) AddGateTask(id string, condition tasks.ConditionalLogic, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewGateTask(id, condition, dependencies, opts...))
}

// AddAggregateTask adds an aggregation task to the DAG
func (db *DAGBuilder) AddAggregateTask(id string, aggregator tasks.RecordsAggregator, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewAggregateTask(id, aggregator, dependencies, opts...))
}

// AddSinkTask adds a data sink task to the DAG
func (db *DAGBuilder) AddSinkTask(id string, sink core.DataSink, dependencies []string, opts ...tasks.TaskOption) *DAGBuilder {
	return db.AddTask(tasks.NewSinkTask(id, sink, dependencies, opts...))
}

// WithDescription sets the DAG description
func (db *DAGBuilder) WithDescription(description string) *DAGBuilder {
	db.dag.metadata.Description = description
	return db
}

// WithMaxParallelism sets the maximum number of concurrent tasks
func (db *DAGBuilder) WithMaxParallelism(max int) *DAGBuilder {
	db.dag.metadata.MaxParallelism = max
	return db
}

// WithDefaultTimeout sets the default timeout for all tasks
func (db *DAGBuilder) WithDefaultTimeout(timeout time.Duration) *DAGBuilder {
	db.dag.metadata.DefaultTimeout = timeout
	return db
}

// WithGlobalContext sets global context available to all tasks
func (db *DAGBuilder) WithGlobalContext(ctx map[string]interface{}) *DAGBuilder {
	db.dag.metadata.GlobalContext = ctx
	return db
}

// Build validates and returns the constructed DAG
func (db *DAGBuilder) Build() (*DAG, error) {
	errs := append([]error(nil), db.errs...)
	errs = append(errs, db.dag.ValidateDAGStructure()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return db.dag, nil
}
