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

// sink.go - SinkTask implementation
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/tripetl/core"
)

// SinkTask writes its input to a DataSink, then flushes and closes it.
type SinkTask struct {
	baseTask
	sink core.DataSink
}

func (st *SinkTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()
	written := 0

	for _, record := range input.Records {
		if err := st.sink.Write(ctx, record); err != nil {
			_ = st.sink.Close()
			return TaskOutput{}, fmt.Errorf("sink write failed: %w", err)
		}
		written++
	}

	flush := st.sink.Flush
	if cf, ok := st.sink.(core.ContextFlusher); ok {
		flush = func() error { return cf.FlushContext(ctx) }
	}
	if err := flush(); err != nil {
		_ = st.sink.Close()
		return TaskOutput{}, fmt.Errorf("sink flush failed: %w", err)
	}
	if err := st.sink.Close(); err != nil {
		return TaskOutput{}, fmt.Errorf("sink close failed: %w", err)
	}

	return TaskOutput{
		Records:  []core.Record{},
		Context:  input.Context,
		Metadata: result(start, len(input.Records), written),
	}, nil
}

// NewSinkTask creates a new SinkTask
func NewSinkTask(id string, sink core.DataSink, dependencies []string, options ...TaskOption) *SinkTask {
	task := &SinkTask{
		baseTask: newBaseTask(id, TaskTypeSink, dependencies),
		sink:     sink,
	}
	applyOptions(task, options)
	return task
}
