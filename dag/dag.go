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

package dag

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aaronlmathis/tripetl/dag/tasks"
)

// GetTasks returns all tasks in the DAG
func (d *DAG) GetTasks() map[string]tasks.Task {
	return d.tasks
}

// GetDependencies returns the dependencies for a specific task
func (d *DAG) GetDependencies(taskID string) []string {
	if deps, exists := d.dependencies[taskID]; exists {
		return deps
	}
	return []string{}
}

// HasTask checks if a task exists in the DAG
func (d *DAG) HasTask(taskID string) bool {
	_, exists := d.tasks[taskID]
	return exists
}

// GetDownstreamTasks returns all tasks that depend on this task, in insertion order.
func (d *DAG) GetDownstreamTasks(taskID string) []string {
	var downstream []string
	for _, id := range d.order {
		for _, dep := range d.dependencies[id] {
			if dep == taskID {
				downstream = append(downstream, id)
				break
			}
		}
	}
	return downstream
}

// GetID returns the DAG's unique identifier
func (d *DAG) GetID() string {
	return d.id
}

// GetName returns the DAG's name
func (d *DAG) GetName() string {
	return d.name
}

// GetMetadata returns the DAG's metadata
func (d *DAG) GetMetadata() DAGMetadata {
	return d.metadata
}

// GetExecutionOrder returns tasks in topological execution order
func (d *DAG) GetExecutionOrder() ([]string, error) {
	return d.topologicalSort()
}

// Describe writes a human-readable outline of the DAG, one task per line in
// execution order.
func (d *DAG) Describe(w io.Writer) error {
	order, err := d.topologicalSort()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "DAG %s (%s): %d tasks\n", d.name, d.id, len(d.tasks)); err != nil {
		return err
	}
	for _, id := range order {
		md := d.tasks[id].Metadata()
		line := fmt.Sprintf("  %s [%s]", id, md.TaskType)
		if deps := d.GetDependencies(id); len(deps) > 0 {
			line += " <- " + strings.Join(deps, ", ")
		}
		if md.Description != "" {
			line += " : " + md.Description
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDAGStructure performs comprehensive DAG validation
func (d *DAG) ValidateDAGStructure() []error {
	var errs []error

	for _, taskID := range d.order {
		for _, dep := range d.dependencies[taskID] {
			if !d.HasTask(dep) {
				errs = append(errs, fmt.Errorf("task %s depends on non-existent task %s", taskID, dep))
			}
		}
	}

	if d.hasCycle() {
		errs = append(errs, fmt.Errorf("DAG contains cycles"))
	}

	for _, taskID := range d.order {
		metadata := d.tasks[taskID].Metadata()
		if metadata.Timeout < 0 {
			errs = append(errs, fmt.Errorf("task %s has invalid negative timeout", taskID))
		}
		if metadata.RetryConfig != nil && metadata.RetryConfig.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("task %s has invalid negative retry count", taskID))
		}
	}

	return errs
}

func (d *DAG) hasCycle() bool {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, taskID := range d.order {
		if !visited[taskID] {
			if d.dfsHasCycle(taskID, visited, recStack) {
				return true
			}
		}
	}
	return false
}

func (d *DAG) dfsHasCycle(taskID string, visited, recStack map[string]bool) bool {
	visited[taskID] = true
	recStack[taskID] = true

	for _, dep := range d.dependencies[taskID] {
		if !visited[dep] {
			if d.dfsHasCycle(dep, visited, recStack) {
				return true
			}
		} else if recStack[dep] {
			return true
		}
	}

	recStack[taskID] = false
	return false
}

// topologicalSort performs Kahn's algorithm. Ties are broken by insertion
// order so that the result is stable between runs.
func (d *DAG) topologicalSort() ([]string, error) {
	position := make(map[string]int, len(d.order))
	for i, id := range d.order {
		position[id] = i
	}

	inDegree := make(map[string]int, len(d.tasks))
	for _, taskID := range d.order {
		inDegree[taskID] = len(d.dependencies[taskID])
	}

	var queue []string
	for _, taskID := range d.order {
		if inDegree[taskID] == 0 {
			queue = append(queue, taskID)
		}
	}

	result := make([]string, 0, len(d.tasks))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		var released []string
		for _, taskID := range d.GetDownstreamTasks(current) {
			inDegree[taskID]--
			if inDegree[taskID] == 0 {
				released = append(released, taskID)
			}
		}
		sort.Slice(released, func(i, j int) bool { return position[released[i]] < position[released[j]] })
		queue = append(queue, released...)
	}

	if len(result) != len(d.tasks) {
		return nil, fmt.Errorf("DAG contains cycles")
	}

	return result, nil
}
