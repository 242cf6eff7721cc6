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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/dag/tasks"
	"github.com/aaronlmathis/tripetl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rowsSource struct{ rows []core.Record }

func (s *rowsSource) Read(ctx context.Context) (core.Record, error) {
	if len(s.rows) == 0 {
		return nil, io.EOF
	}
	r := s.rows[0]
	s.rows = s.rows[1:]
	return r, nil
}
func (s *rowsSource) Close() error { return nil }

func addOne(field string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, r core.Record) (core.Record, error) {
		out := r.Clone()
		out[field] = r[field].(int) + 1
		return out, nil
	})
}

func TestBuild_Validation(t *testing.T) {
	_, err := NewDAG("d", "d").
		AddTransformTask("a", addOne("x"), []string{"b"}).
		AddTransformTask("b", addOne("x"), []string{"a"}).
		Build()
	assert.ErrorContains(t, err, "cycles")

	_, err = NewDAG("d", "d").
		AddTransformTask("a", addOne("x"), []string{"missing"}).
		Build()
	assert.ErrorContains(t, err, "non-existent")

	_, err = NewDAG("d", "d").
		AddSourceTask("a", &rowsSource{}).
		AddSourceTask("a", &rowsSource{}).
		Build()
	assert.ErrorContains(t, err, "duplicate")
}

func TestExecutionOrder_Deterministic(t *testing.T) {
	d, err := NewDAG("d", "d").
		AddSourceTask("src", &rowsSource{}).
		AddSourceTask("lookup", &rowsSource{}).
		AddTransformTask("t1", addOne("x"), []string{"src"}).
		AddTransformTask("t2", addOne("x"), []string{"t1", "lookup"}).
		Build()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		order, err := d.GetExecutionOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"src", "lookup", "t1", "t2"}, order)
	}

	levels := NewDAGExecutor().groupTasksByLevel(d, []string{"src", "lookup", "t1", "t2"})
	assert.Equal(t, [][]string{{"src", "lookup"}, {"t1"}, {"t2"}}, levels)

	var buf bytes.Buffer
	require.NoError(t, d.Describe(&buf))
	assert.Contains(t, buf.String(), "t2 [transform] <- t1, lookup")
}

func TestExecute_ChainAndOutputs(t *testing.T) {
	d, err := NewDAG("d", "d").
		AddSourceTask("src", &rowsSource{rows: []core.Record{{"x": 1}, {"x": 2}}}).
		AddTransformTask("inc", addOne("x"), []string{"src"}, tasks.WithParallelism(2, 2)).
		AddTransformTask("inc2", addOne("x"), []string{"inc"}).
		Build()
	require.NoError(t, err)

	res, err := NewDAGExecutor(WithMaxWorkers(2)).Execute(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []core.Record{{"x": 3}, {"x": 4}}, res.TaskOutputs["inc2"].Records)
	assert.True(t, res.TaskResults["inc"].Success)
	assert.Equal(t, 1, res.TaskResults["inc"].AttemptCount)
}

func TestExecute_FailureIsStageError(t *testing.T) {
	boom := errors.New("boom")
	fail := core.TransformFunc(func(ctx context.Context, r core.Record) (core.Record, error) { return nil, boom })

	d, err := NewDAG("d", "d").
		AddSourceTask("src", &rowsSource{rows: []core.Record{{"x": 1}}}).
		AddTransformTask("bad", fail, []string{"src"}).
		AddTransformTask("after", addOne("x"), []string{"bad"}).
		Build()
	require.NoError(t, err)

	res, err := NewDAGExecutor().Execute(context.Background(), d)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var se *core.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "bad", se.Stage)
	assert.Contains(t, err.Error(), "task bad failed")

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.False(t, res.TaskResults["bad"].Success)
	assert.NotContains(t, res.TaskResults, "after")
}

func TestExecute_RetriesConfiguredTask(t *testing.T) {
	var calls int32
	flaky := core.TransformFunc(func(ctx context.Context, r core.Record) (core.Record, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("transient")
		}
		return r, nil
	})

	d, err := NewDAG("d", "d").
		AddSourceTask("src", &rowsSource{rows: []core.Record{{"x": 1}}}).
		AddTransformTask("flaky", flaky, []string{"src"},
			tasks.WithRetryConfig(&tasks.RetryConfig{MaxRetries: 2, Strategy: &tasks.FixedBackoff{FixedDelay: time.Millisecond}})).
		Build()
	require.NoError(t, err)

	res, err := NewDAGExecutor().Execute(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TaskResults["flaky"].AttemptCount)
}

func TestExecute_JoinReceivesSourceMap(t *testing.T) {
	d, err := NewDAG("d", "d").
		AddSourceTask("trips", &rowsSource{rows: []core.Record{{"k": int32(1)}, {"k": int32(2)}}}).
		AddSourceTask("zones", &rowsSource{rows: []core.Record{{"id": int64(1), "name": "one"}}}).
		AddLookupTask("enrich", "k", "id", map[string]string{"name": "zone"}, []string{"trips", "zones"}).
		Build()
	require.NoError(t, err)

	res, err := NewDAGExecutor().Execute(context.Background(), d)
	require.NoError(t, err)
	out := res.TaskOutputs["enrich"].Records
	require.Len(t, out, 2)
	assert.Equal(t, "one", out[0]["zone"])
	assert.Nil(t, out[1]["zone"])
}

func TestExecute_CancelledContext(t *testing.T) {
	d, err := NewDAG("d", "d").AddSourceTask("src", &rowsSource{}).Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewDAGExecutor().Execute(ctx, d)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecute_SourceStageLogsRowsRead(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetLevel(slog.LevelDebug)
	require.NoError(t, logger.SetFormat("json"))
	t.Cleanup(func() {
		logger.SetLevel(slog.LevelInfo)
		_ = logger.SetFormat("text")
		logger.SetOutput(os.Stderr)
	})

	d, err := NewDAG("d", "d").
		AddSourceTask("zones", &rowsSource{rows: []core.Record{{"x": 1}, {"x": 2}}}).
		AddTransformTask("inc", addOne("x"), []string{"zones"}).
		Build()
	require.NoError(t, err)
	_, err = NewDAGExecutor().Execute(context.Background(), d)
	require.NoError(t, err)

	entries := map[string]map[string]interface{}{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if id, ok := entry["task_id"].(string); ok {
			entries[id+" "+entry["msg"].(string)] = entry
		}
	}

	started := entries["zones stage started"]
	require.NotNil(t, started)
	assert.NotContains(t, started, "records_in")

	done := entries["zones stage completed"]
	require.NotNil(t, done)
	assert.Equal(t, float64(2), done["records_in"])
	assert.Equal(t, float64(2), done["records_out"])

	assert.Equal(t, float64(2), entries["inc stage completed"]["records_in"])
}
