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

// conditional.go - ConditionalTask implementation
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConditionNotMet is returned by a gating ConditionalTask whose condition is false.
var ErrConditionNotMet = errors.New("condition not met")

// ConditionalLogic defines the interface for conditional evaluation
type ConditionalLogic interface {
	Evaluate(ctx context.Context, input TaskInput) (bool, error)
	OnTrue() []string  // Task IDs to execute if condition is true
	OnFalse() []string // Task IDs to execute if condition is false
}

// ConditionalTask evaluates a condition and passes its input through.
// The outcome is published in the context as "<id>_condition_result".
// A gating task fails instead of passing through when the condition is false.
type ConditionalTask struct {
	baseTask
	condition ConditionalLogic
	gate      bool
}

func (ct *ConditionalTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	ok, err := ct.condition.Evaluate(ctx, input)
	if err != nil {
		return TaskOutput{}, fmt.Errorf("condition evaluation failed: %w", err)
	}
	if !ok && ct.gate {
		return TaskOutput{}, ErrConditionNotMet
	}

	updatedContext := make(map[string]interface{}, len(input.Context)+1)
	for k, v := range input.Context {
		updatedContext[k] = v
	}
	updatedContext[ct.id+"_condition_result"] = ok

	return TaskOutput{
		Records:  input.Records,
		Context:  updatedContext,
		Metadata: result(start, len(input.Records), len(input.Records)),
	}, nil
}

// NewConditionalTask creates a new ConditionalTask
func NewConditionalTask(id string, condition ConditionalLogic, dependencies []string, options ...TaskOption) *ConditionalTask {
	task := &ConditionalTask{
		baseTask:  newBaseTask(id, TaskTypeConditional, dependencies),
		condition: condition,
	}
	applyOptions(task, options)
	return task
}

// NewGateTask creates a ConditionalTask that fails the run when the condition is false.
func NewGateTask(id string, condition ConditionalLogic, dependencies []string, options ...TaskOption) *ConditionalTask {
	task := NewConditionalTask(id, condition, dependencies, options...)
	task.gate = true
	return task
}
