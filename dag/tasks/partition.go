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

package tasks

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/tripetl/core"
)

// span is a half-open [lo, hi) range of a table.
type span struct {
	lo, hi int
}

// splitSpans cuts n rows into at most p contiguous spans of near equal size.
func splitSpans(n, p int) []span {
	if p < 1 {
		p = 1
	}
	if n == 0 {
		return nil
	}
	if p > n {
		p = n
	}
	spans := make([]span, p)
	size, rem := n/p, n%p
	lo := 0
	for i := 0; i < p; i++ {
		hi := lo + size
		if i < rem {
			hi++
		}
		spans[i] = span{lo: lo, hi: hi}
		lo = hi
	}
	return spans
}

func (m TaskMetadata) layout() (workers, partitions int) {
	workers = m.Workers
	if workers < 1 {
		workers = 1
	}
	partitions = m.Partitions
	if partitions < 1 {
		partitions = workers
	}
	return workers, partitions
}

// mapPartitions applies fn to every partition of records with at most
// workers goroutines and concatenates the outputs in partition order.
// The first error cancels the remaining partitions.
func mapPartitions(ctx context.Context, records []core.Record, workers, partitions int,
	fn func(ctx context.Context, part int, chunk []core.Record) ([]core.Record, error)) ([]core.Record, error) {

	spans := splitSpans(len(records), partitions)
	outs := make([][]core.Record, len(spans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range spans {
		i, s := i, s
		g.Go(func() error {
			out, err := fn(gctx, i, records[s.lo:s.hi])
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, o := range outs {
		total += len(o)
	}
	merged := make([]core.Record, 0, total)
	for _, o := range outs {
		merged = append(merged, o...)
	}
	return merged, nil
}
