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

// base.go - Task interface and base types
package tasks

import (
	"context"
	"time"

	"github.com/aaronlmathis/tripetl/core"
)

// TaskType represents the type of task
type TaskType string

const (
	TaskTypeSource      TaskType = "source"
	TaskTypeTransform   TaskType = "transform"
	TaskTypeFilter      TaskType = "filter"
	TaskTypeJoin        TaskType = "join"
	TaskTypeIdentity    TaskType = "identity"
	TaskTypeConditional TaskType = "conditional"
	TaskTypeAggregate   TaskType = "aggregate"
	TaskTypeSink        TaskType = "sink"
)

// TriggerRule defines when a task should be triggered
type TriggerRule string

const (
	TriggerAllSuccess TriggerRule = "all_success" // All dependencies succeeded
	TriggerAllDone    TriggerRule = "all_done"    // All dependencies completed (success or failure)
	TriggerOneFailed  TriggerRule = "one_failed"  // At least one dependency failed
	TriggerOneSuccess TriggerRule = "one_success" // At least one dependency succeeded
	TriggerNoneFailed TriggerRule = "none_failed" // No dependencies failed
)

// BackoffStrategy computes the delay before a retry attempt.
type BackoffStrategy interface {
	Delay(attempt int) time.Duration
}

// RetryConfig defines retry behavior for tasks
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration   // Simple backoff duration
	Strategy   BackoffStrategy // Advanced backoff strategy (optional)
	RetryOn    []error         // Errors to retry on, matched with errors.Is
}

// GetDelay returns the delay for a given attempt
func (rc *RetryConfig) GetDelay(attempt int) time.Duration {
	if rc.Strategy != nil {
		return rc.Strategy.Delay(attempt)
	}
	return rc.Backoff
}

// ExponentialBackoff implements BackoffStrategy
type ExponentialBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (eb *ExponentialBackoff) Delay(attempt int) time.Duration {
	delay := eb.BaseDelay * time.Duration(1<<uint(attempt))
	if delay > eb.MaxDelay {
		delay = eb.MaxDelay
	}
	return delay
}

// FixedBackoff implements fixed delay backoff strategy
type FixedBackoff struct {
	FixedDelay time.Duration
}

func (fb *FixedBackoff) Delay(attempt int) time.Duration {
	return fb.FixedDelay
}

// TaskMetadata holds static configuration about a task
type TaskMetadata struct {
	Name        string
	Description string
	TaskType    TaskType
	RetryConfig *RetryConfig
	Timeout     time.Duration
	TriggerRule TriggerRule
	Tags        []string
	Workers     int // Goroutines used inside the task, 0 means one
	Partitions  int // Contiguous chunks the input is split into, 0 means Workers
}

// TaskInput represents input data for task execution
type TaskInput struct {
	Records   []core.Record
	Context   map[string]interface{}
	SourceMap map[string][]core.Record
	Metadata  map[string]TaskResultMetadata
}

// TaskOutput represents output data from task execution
type TaskOutput struct {
	Records  []core.Record
	Context  map[string]interface{}
	Metadata TaskResultMetadata
}

// TaskResultMetadata holds execution result metadata
type TaskResultMetadata struct {
	StartTime    time.Time
	EndTime      time.Time
	RecordsIn    int64
	RecordsOut   int64
	Success      bool
	Error        error
	AttemptCount int
}

// Task defines the interface that all tasks must implement
type Task interface {
	ID() string
	Dependencies() []string
	Execute(ctx context.Context, input TaskInput) (TaskOutput, error)
	Metadata() TaskMetadata
	SetRetryConfig(config *RetryConfig)
	SetTimeout(timeout time.Duration)
	SetTriggerRule(rule TriggerRule)
	SetDescription(description string)
	SetTags(tags ...string)
	SetParallelism(workers, partitions int)
}

// baseTask carries the identity and configuration shared by every task.
type baseTask struct {
	id           string
	dependencies []string
	metadata     TaskMetadata
}

func newBaseTask(id string, taskType TaskType, dependencies []string) baseTask {
	if dependencies == nil {
		dependencies = []string{}
	}
	return baseTask{
		id:           id,
		dependencies: dependencies,
		metadata: TaskMetadata{
			Name:        id,
			TaskType:    taskType,
			TriggerRule: TriggerAllSuccess,
		},
	}
}

func (b *baseTask) ID() string             { return b.id }
func (b *baseTask) Dependencies() []string { return b.dependencies }
func (b *baseTask) Metadata() TaskMetadata { return b.metadata }

func (b *baseTask) SetRetryConfig(config *RetryConfig) { b.metadata.RetryConfig = config }
func (b *baseTask) SetTimeout(timeout time.Duration)   { b.metadata.Timeout = timeout }
func (b *baseTask) SetTriggerRule(rule TriggerRule)    { b.metadata.TriggerRule = rule }
func (b *baseTask) SetDescription(description string)  { b.metadata.Description = description }

func (b *baseTask) SetTags(tags ...string) {
	b.metadata.Tags = append(b.metadata.Tags, tags...)
}

func (b *baseTask) SetParallelism(workers, partitions int) {
	b.metadata.Workers = workers
	b.metadata.Partitions = partitions
}

// result builds the success metadata for an execution that started at start.
func result(start time.Time, in, out int) TaskResultMetadata {
	return TaskResultMetadata{
		StartTime:  start,
		EndTime:    time.Now(),
		RecordsIn:  int64(in),
		RecordsOut: int64(out),
		Success:    true,
	}
}

// TaskOption is a functional option for configuring tasks
type TaskOption func(Task)

// WithRetries sets the retry configuration for a task
func WithRetries(maxRetries int, backoff time.Duration) TaskOption {
	return func(t Task) {
		t.SetRetryConfig(&RetryConfig{
			MaxRetries: maxRetries,
			Backoff:    backoff,
		})
	}
}

// WithRetryConfig sets the retry configuration for a task
func WithRetryConfig(config *RetryConfig) TaskOption {
	return func(t Task) {
		t.SetRetryConfig(config)
	}
}

// WithTimeout sets the timeout for a task
func WithTimeout(timeout time.Duration) TaskOption {
	return func(t Task) {
		t.SetTimeout(timeout)
	}
}

// WithTriggerRule sets the trigger rule for a task
func WithTriggerRule(rule TriggerRule) TaskOption {
	return func(t Task) {
		t.SetTriggerRule(rule)
	}
}

// WithDescription sets the description for a task
func WithDescription(description string) TaskOption {
	return func(t Task) {
		t.SetDescription(description)
	}
}

// WithTags adds tags to a task
func WithTags(tags ...string) TaskOption {
	return func(t Task) {
		t.SetTags(tags...)
	}
}

// WithParallelism splits the task input into partitions processed by at most workers goroutines.
func WithParallelism(workers, partitions int) TaskOption {
	return func(t Task) {
		t.SetParallelism(workers, partitions)
	}
}

func applyOptions(t Task, options []TaskOption) {
	for _, opt := range options {
		opt(t)
	}
}
