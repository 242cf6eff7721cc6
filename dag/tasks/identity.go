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

// identity.go - IdentityTask assigns dense row identifiers
package tasks

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/tripetl/core"
)

// IdentityTask writes a dense 1-based int64 identifier into Field.
//
// The input is split into contiguous partitions. Each partition is counted in
// parallel, an exclusive prefix sum over the counts gives every partition its
// base offset, and ids base+i+1 are then assigned in parallel. The ids are
// unique and gapless over 1..N; their order carries no meaning.
type IdentityTask struct {
	baseTask
	field string
}

func (it *IdentityTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()
	workers, partitions := it.metadata.layout()
	spans := splitSpans(len(input.Records), partitions)

	counts := make([]int64, len(spans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range spans {
		i, s := i, s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			counts[i] = int64(s.hi - s.lo)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TaskOutput{}, err
	}

	bases := exclusivePrefixSum(counts)

	out := make([]core.Record, len(input.Records))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range spans {
		i, s := i, s
		g.Go(func() error {
			for j := s.lo; j < s.hi; j++ {
				if (j-s.lo)%ctxCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				rec := input.Records[j].CloneWith(1)
				rec[it.field] = bases[i] + int64(j-s.lo) + 1
				out[j] = rec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TaskOutput{}, err
	}

	return TaskOutput{
		Records:  out,
		Context:  input.Context,
		Metadata: result(start, len(input.Records), len(out)),
	}, nil
}

func exclusivePrefixSum(counts []int64) []int64 {
	bases := make([]int64, len(counts))
	var running int64
	for i, c := range counts {
		bases[i] = running
		running += c
	}
	return bases
}

// NewIdentityTask creates a task that assigns ids into field.
func NewIdentityTask(id, field string, dependencies []string, options ...TaskOption) *IdentityTask {
	task := &IdentityTask{
		baseTask: newBaseTask(id, TaskTypeIdentity, dependencies),
		field:    field,
	}
	applyOptions(task, options)
	return task
}
