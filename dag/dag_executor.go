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

// dag_executor.go - DAG execution engine with topological sort
package dag

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/dag/tasks"
	"github.com/aaronlmathis/tripetl/internal/logger"
)

// DAGExecutor executes DAGs level by level with bounded parallelism.
type DAGExecutor struct {
	maxWorkers   int
	retryBackoff tasks.BackoffStrategy
}

// DAGExecutorOption configures a DAGExecutor
type DAGExecutorOption func(*DAGExecutor)

// WithMaxWorkers sets the maximum number of concurrent workers
func WithMaxWorkers(workers int) DAGExecutorOption {
	return func(de *DAGExecutor) {
		if workers > 0 {
			de.maxWorkers = workers
		}
	}
}

// WithBackoffStrategy sets the backoff used for tasks whose RetryConfig has no strategy.
func WithBackoffStrategy(strategy tasks.BackoffStrategy) DAGExecutorOption {
	return func(de *DAGExecutor) {
		de.retryBackoff = strategy
	}
}

// NewDAGExecutor creates a new DAG executor with options
func NewDAGExecutor(opts ...DAGExecutorOption) *DAGExecutor {
	de := &DAGExecutor{
		maxWorkers: runtime.NumCPU(),
		retryBackoff: &tasks.ExponentialBackoff{
			BaseDelay: time.Second,
			MaxDelay:  time.Minute,
		},
	}

	for _, opt := range opts {
		opt(de)
	}

	return de
}

// DAGResult contains the results of DAG execution
type DAGResult struct {
	Success     bool
	StartTime   time.Time
	EndTime     time.Time
	TaskResults map[string]tasks.TaskResultMetadata
	TaskOutputs map[string]tasks.TaskOutput
	Error       error
}

// executionContext holds state during DAG execution
type executionContext struct {
	dag           *DAG
	taskOutputs   map[string]tasks.TaskOutput
	taskResults   map[string]tasks.TaskResultMetadata
	globalContext map[string]interface{}
	mu            sync.RWMutex
}

// Execute runs the DAG. On failure the partial result is returned together
// with the error of the first failing task, wrapped in a *core.StageError.
func (de *DAGExecutor) Execute(ctx context.Context, dag *DAG) (*DAGResult, error) {
	sortedTasks, err := dag.topologicalSort()
	if err != nil {
		return nil, fmt.Errorf("topological sort failed: %w", err)
	}

	execCtx := &executionContext{
		dag:           dag,
		taskOutputs:   make(map[string]tasks.TaskOutput),
		taskResults:   make(map[string]tasks.TaskResultMetadata),
		globalContext: make(map[string]interface{}),
	}
	for k, v := range dag.metadata.GlobalContext {
		execCtx.globalContext[k] = v
	}

	start := time.Now()
	levels := de.groupTasksByLevel(dag, sortedTasks)

	for levelIdx, level := range levels {
		if err := ctx.Err(); err != nil {
			return de.finish(execCtx, start, err), err
		}
		if err := de.executeLevel(ctx, execCtx, level); err != nil {
			return de.finish(execCtx, start, err), err
		}
		logger.Debug("dag level completed", "dag_id", dag.id, "level", levelIdx, "tasks", len(level))
	}

	return de.finish(execCtx, start, nil), nil
}

func (de *DAGExecutor) finish(execCtx *executionContext, start time.Time, err error) *DAGResult {
	execCtx.mu.RLock()
	defer execCtx.mu.RUnlock()
	return &DAGResult{
		Success:     err == nil,
		StartTime:   start,
		EndTime:     time.Now(),
		TaskResults: execCtx.taskResults,
		TaskOutputs: execCtx.taskOutputs,
		Error:       err,
	}
}

// groupTasksByLevel groups tasks by their dependency depth. Tasks inside a
// level keep topological order.
func (de *DAGExecutor) groupTasksByLevel(dag *DAG, sortedTasks []string) [][]string {
	taskLevel := make(map[string]int, len(sortedTasks))
	maxLevel := 0

	for _, taskID := range sortedTasks {
		level := 0
		for _, dep := range dag.dependencies[taskID] {
			if l := taskLevel[dep] + 1; l > level {
				level = l
			}
		}
		taskLevel[taskID] = level
		if level > maxLevel {
			maxLevel = level
		}
	}

	result := make([][]string, maxLevel+1)
	for _, taskID := range sortedTasks {
		l := taskLevel[taskID]
		result[l] = append(result[l], taskID)
	}
	return result
}

// executeLevel runs all tasks of a level on at most maxWorkers goroutines.
// The first failure cancels the rest of the level.
func (de *DAGExecutor) executeLevel(ctx context.Context, execCtx *executionContext, taskIDs []string) error {
	if len(taskIDs) == 0 {
		return nil
	}

	workers := de.maxWorkers
	if p := execCtx.dag.metadata.MaxParallelism; p > 0 && p < workers {
		workers = p
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, taskID := range taskIDs {
		taskID := taskID
		g.Go(func() error {
			if err := de.executeTaskWithRetry(gctx, execCtx, taskID); err != nil {
				return &core.StageError{Stage: taskID, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

// executeTaskWithRetry executes a single task with retry logic
func (de *DAGExecutor) executeTaskWithRetry(ctx context.Context, execCtx *executionContext, taskID string) error {
	task := execCtx.dag.tasks[taskID]
	metadata := task.Metadata()

	if !de.shouldExecuteTask(execCtx, task) {
		return fmt.Errorf("trigger rule %s not satisfied", metadata.TriggerRule)
	}

	maxRetries := 0
	if metadata.RetryConfig != nil {
		maxRetries = metadata.RetryConfig.MaxRetries
	}
	timeout := metadata.Timeout
	if timeout == 0 {
		timeout = execCtx.dag.metadata.DefaultTimeout
	}

	input := de.prepareTaskInput(execCtx, task)
	recordsIn := len(input.Records)
	if metadata.TaskType == tasks.TaskTypeSource {
		recordsIn = -1
	}
	logger.LogStageStart(taskID, recordsIn)

	var lastErr error
	attempt := 0
retry:
	for ; attempt <= maxRetries; attempt++ {
		output, err := de.runOnce(ctx, task, input, timeout)
		if err == nil {
			output.Metadata.AttemptCount = attempt + 1
			execCtx.mu.Lock()
			execCtx.taskOutputs[taskID] = output
			execCtx.taskResults[taskID] = output.Metadata
			for k, v := range output.Context {
				execCtx.globalContext[k] = v
			}
			execCtx.mu.Unlock()
			logger.LogStageEnd(taskID, int(output.Metadata.RecordsIn), len(output.Records),
				output.Metadata.EndTime.Sub(output.Metadata.StartTime), nil)
			return nil
		}

		lastErr = err
		if ctx.Err() != nil || metadata.RetryConfig == nil || !shouldRetryError(err, metadata.RetryConfig) || attempt == maxRetries {
			break
		}

		delay := metadata.RetryConfig.GetDelay(attempt)
		if metadata.RetryConfig.Strategy == nil && delay == 0 {
			delay = de.retryBackoff.Delay(attempt)
		}
		logger.Warn("task attempt failed, retrying",
			"task_id", taskID, "attempt", attempt+1, "delay_ms", delay.Milliseconds(), "error", err.Error())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			lastErr = ctx.Err()
			break retry
		}
	}

	execCtx.mu.Lock()
	execCtx.taskResults[taskID] = tasks.TaskResultMetadata{
		Success:      false,
		Error:        lastErr,
		AttemptCount: attempt + 1,
		EndTime:      time.Now(),
	}
	execCtx.mu.Unlock()
	logger.LogStageEnd(taskID, len(input.Records), 0, 0, lastErr)

	return lastErr
}

func (de *DAGExecutor) runOnce(ctx context.Context, task tasks.Task, input tasks.TaskInput, timeout time.Duration) (tasks.TaskOutput, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return task.Execute(ctx, input)
}

// shouldExecuteTask checks if a task should execute based on its trigger rule
func (de *DAGExecutor) shouldExecuteTask(execCtx *executionContext, task tasks.Task) bool {
	dependencies := task.Dependencies()
	if len(dependencies) == 0 {
		return true
	}

	execCtx.mu.RLock()
	defer execCtx.mu.RUnlock()

	successCount, failureCount, completeCount := 0, 0, 0
	for _, depID := range dependencies {
		if result, exists := execCtx.taskResults[depID]; exists {
			completeCount++
			if result.Success {
				successCount++
			} else {
				failureCount++
			}
		}
	}

	switch task.Metadata().TriggerRule {
	case tasks.TriggerAllDone:
		return completeCount == len(dependencies)
	case tasks.TriggerOneFailed:
		return failureCount > 0
	case tasks.TriggerOneSuccess:
		return successCount > 0
	case tasks.TriggerNoneFailed:
		return failureCount == 0 && completeCount == len(dependencies)
	default:
		return successCount == len(dependencies)
	}
}

// prepareTaskInput concatenates dependency outputs in dependency order and
// records each one in SourceMap.
func (de *DAGExecutor) prepareTaskInput(execCtx *executionContext, task tasks.Task) tasks.TaskInput {
	execCtx.mu.RLock()
	defer execCtx.mu.RUnlock()

	dependencies := task.Dependencies()
	sourceMap := make(map[string][]core.Record, len(dependencies))
	metadataMap := make(map[string]tasks.TaskResultMetadata, len(dependencies))

	total := 0
	for _, depID := range dependencies {
		total += len(execCtx.taskOutputs[depID].Records)
	}
	var allRecords []core.Record
	if len(dependencies) == 1 {
		allRecords = execCtx.taskOutputs[dependencies[0]].Records
	} else {
		allRecords = make([]core.Record, 0, total)
	}

	for _, depID := range dependencies {
		if output, exists := execCtx.taskOutputs[depID]; exists {
			if len(dependencies) > 1 {
				allRecords = append(allRecords, output.Records...)
			}
			sourceMap[depID] = output.Records
			metadataMap[depID] = output.Metadata
		}
	}

	globalCopy := make(map[string]interface{}, len(execCtx.globalContext))
	for k, v := range execCtx.globalContext {
		globalCopy[k] = v
	}

	return tasks.TaskInput{
		Records:   allRecords,
		Context:   globalCopy,
		SourceMap: sourceMap,
		Metadata:  metadataMap,
	}
}

// shouldRetryError determines if an error should trigger a retry
func shouldRetryError(err error, config *tasks.RetryConfig) bool {
	if len(config.RetryOn) == 0 {
		return true
	}
	for _, retryErr := range config.RetryOn {
		if errors.Is(err, retryErr) {
			return true
		}
	}
	return false
}
