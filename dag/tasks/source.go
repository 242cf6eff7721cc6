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

// source.go - SourceTask implementation
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aaronlmathis/tripetl/core"
)

// SourceTask drains a DataSource into a table and closes it.
type SourceTask struct {
	baseTask
	source core.DataSource
}

func (st *SourceTask) Execute(ctx context.Context, input TaskInput) (out TaskOutput, err error) {
	start := time.Now()
	var records []core.Record

	defer func() {
		if cerr := st.source.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("source close failed: %w", cerr)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return TaskOutput{}, err
		}

		record, err := st.source.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return TaskOutput{}, fmt.Errorf("source read failed: %w", err)
		}
		records = append(records, record)
	}

	return TaskOutput{
		Records:  records,
		Context:  input.Context,
		Metadata: result(start, len(records), len(records)),
	}, nil
}

// NewSourceTask creates a new SourceTask with the given ID and source
func NewSourceTask(id string, source core.DataSource, options ...TaskOption) *SourceTask {
	task := &SourceTask{
		baseTask: newBaseTask(id, TaskTypeSource, nil),
		source:   source,
	}
	applyOptions(task, options)
	return task
}
