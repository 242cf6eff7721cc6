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
	"errors"
	"io"
	"sort"
	"testing"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int) []core.Record {
	out := make([]core.Record, n)
	for i := range out {
		out[i] = core.Record{"n": i}
	}
	return out
}

func TestSplitSpans(t *testing.T) {
	spans := splitSpans(10, 3)
	require.Len(t, spans, 3)
	assert.Equal(t, span{0, 4}, spans[0])
	assert.Equal(t, span{4, 7}, spans[1])
	assert.Equal(t, span{7, 10}, spans[2])

	assert.Len(t, splitSpans(2, 8), 2)
	assert.Empty(t, splitSpans(0, 4))
}

func TestTransformTask_PreservesOrderAcrossPartitions(t *testing.T) {
	double := core.TransformFunc(func(ctx context.Context, r core.Record) (core.Record, error) {
		out := r.Clone()
		out["d"] = r["n"].(int) * 2
		return out, nil
	})
	task := NewTransformTask("double", double, []string{"src"}, WithParallelism(4, 7))

	in := numbered(100)
	out, err := task.Execute(context.Background(), TaskInput{Records: in})
	require.NoError(t, err)
	require.Len(t, out.Records, 100)
	for i, r := range out.Records {
		assert.Equal(t, i, r["n"])
		assert.Equal(t, i*2, r["d"])
		assert.NotContains(t, in[i], "d")
	}
	assert.True(t, out.Metadata.Success)
	assert.Equal(t, int64(100), out.Metadata.RecordsOut)
}

func TestTransformTask_ErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	fail := core.TransformFunc(func(ctx context.Context, r core.Record) (core.Record, error) {
		if r["n"].(int) == 57 {
			return nil, boom
		}
		return r, nil
	})
	task := NewTransformTask("t", fail, nil, WithParallelism(3, 5))
	_, err := task.Execute(context.Background(), TaskInput{Records: numbered(80)})
	assert.ErrorIs(t, err, boom)
}

func TestFilterTask(t *testing.T) {
	even := core.FilterFunc(func(ctx context.Context, r core.Record) (bool, error) {
		return r["n"].(int)%2 == 0, nil
	})
	task := NewFilterTask("even", even, nil, WithParallelism(2, 3))
	out, err := task.Execute(context.Background(), TaskInput{Records: numbered(11)})
	require.NoError(t, err)
	require.Len(t, out.Records, 6)
	for i, r := range out.Records {
		assert.Equal(t, i*2, r["n"])
	}
}

func zonesAndTrips() ([]core.Record, []core.Record) {
	zones := []core.Record{
		{"LocationID": int64(1), "Zone": "Airport", "Borough": "Queens"},
		{"LocationID": int64(2), "Zone": "Midtown", "Borough": "Manhattan"},
		{"LocationID": int64(2), "Zone": "Midtown Dup", "Borough": "Manhattan"},
		{"LocationID": nil, "Zone": "Ghost", "Borough": "Nowhere"},
	}
	trips := []core.Record{
		{"trip": "a", "PULocationID": int32(1)},
		{"trip": "b", "PULocationID": "2"},
		{"trip": "c", "PULocationID": int32(42)},
		{"trip": "d", "PULocationID": nil},
	}
	return zones, trips
}

func pickupJoin(joinType string) *JoinTask {
	return NewJoinTask("pickup", JoinConfig{
		JoinType:    joinType,
		LeftKeys:    []string{"PULocationID"},
		RightKeys:   []string{"LocationID"},
		RightFields: map[string]string{"Zone": "pickup_zone", "Borough": "pickup_borough"},
	}, []string{"trips", "zones"}, WithParallelism(2, 3))
}

func TestJoinTask_LeftLookup(t *testing.T) {
	zones, trips := zonesAndTrips()
	out, err := pickupJoin("left").Execute(context.Background(), TaskInput{
		SourceMap: map[string][]core.Record{"trips": trips, "zones": zones},
	})
	require.NoError(t, err)

	// a matches once, b matches the duplicated zone twice, c and d miss.
	require.Len(t, out.Records, 5)
	byTrip := map[string][]core.Record{}
	for _, r := range out.Records {
		byTrip[r["trip"].(string)] = append(byTrip[r["trip"].(string)], r)
	}
	assert.Equal(t, "Airport", byTrip["a"][0]["pickup_zone"])
	assert.Equal(t, "Queens", byTrip["a"][0]["pickup_borough"])
	assert.Len(t, byTrip["b"], 2)
	for _, miss := range []string{"c", "d"} {
		require.Len(t, byTrip[miss], 1)
		assert.Contains(t, byTrip[miss][0], "pickup_zone")
		assert.Nil(t, byTrip[miss][0]["pickup_zone"])
		assert.Nil(t, byTrip[miss][0]["pickup_borough"])
	}
	assert.NotContains(t, out.Records[0], "Zone")
	assert.NotContains(t, trips[0], "pickup_zone")
}

func TestJoinTask_InnerAndFull(t *testing.T) {
	zones, trips := zonesAndTrips()
	input := TaskInput{SourceMap: map[string][]core.Record{"trips": trips, "zones": zones}}

	inner, err := pickupJoin("inner").Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Len(t, inner.Records, 3)

	full, err := pickupJoin("full").Execute(context.Background(), input)
	require.NoError(t, err)
	// 5 left-join rows plus the null-keyed zone that never matches.
	assert.Len(t, full.Records, 6)
}

func TestJoinTask_RejectsBadConfig(t *testing.T) {
	task := NewJoinTask("j", JoinConfig{JoinType: "cross"}, []string{"a", "b"})
	_, err := task.Execute(context.Background(), TaskInput{})
	assert.Error(t, err)

	task = NewJoinTask("j", JoinConfig{JoinType: "left", LeftKeys: []string{"x"}, RightKeys: []string{"y"}}, []string{"a"})
	_, err = task.Execute(context.Background(), TaskInput{})
	assert.Error(t, err)
}

func TestNormalizeKey(t *testing.T) {
	k1, _ := normalizeKey(int32(7))
	k2, _ := normalizeKey(int64(7))
	k3, _ := normalizeKey(7.0)
	k4, _ := normalizeKey(" 7 ")
	assert.Equal(t, k1, k2)
	assert.Equal(t, k1, k3)
	assert.Equal(t, k1, k4)

	_, ok := normalizeKey(nil)
	assert.False(t, ok)
}

func TestIdentityTask_DenseForAnyPartitioning(t *testing.T) {
	for _, layout := range [][2]int{{1, 1}, {2, 3}, {4, 16}, {8, 1000}} {
		task := NewIdentityTask("ids", "Id", nil, WithParallelism(layout[0], layout[1]))
		in := numbered(257)
		out, err := task.Execute(context.Background(), TaskInput{Records: in})
		require.NoError(t, err)
		require.Len(t, out.Records, 257)

		ids := make([]int, 0, 257)
		for _, r := range out.Records {
			ids = append(ids, int(r["Id"].(int64)))
		}
		sort.Ints(ids)
		for i, id := range ids {
			require.Equal(t, i+1, id, "layout %v", layout)
		}
		assert.NotContains(t, in[0], "Id")
	}
}

func TestIdentityTask_Empty(t *testing.T) {
	out, err := NewIdentityTask("ids", "Id", nil, WithParallelism(4, 4)).Execute(context.Background(), TaskInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Records)
}

func TestExclusivePrefixSum(t *testing.T) {
	assert.Equal(t, []int64{0, 3, 3, 7}, exclusivePrefixSum([]int64{3, 0, 4, 2}))
}

type staticCondition struct {
	ok  bool
	err error
}

func (s staticCondition) Evaluate(ctx context.Context, input TaskInput) (bool, error) {
	return s.ok, s.err
}
func (s staticCondition) OnTrue() []string  { return nil }
func (s staticCondition) OnFalse() []string { return nil }

func TestConditionalTask(t *testing.T) {
	in := TaskInput{Records: numbered(3), Context: map[string]interface{}{"k": 1}}

	out, err := NewConditionalTask("check", staticCondition{ok: false}, nil).Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, out.Records, 3)
	assert.Equal(t, false, out.Context["check_condition_result"])
	assert.NotContains(t, in.Context, "check_condition_result")

	_, err = NewGateTask("gate", staticCondition{ok: false}, nil).Execute(context.Background(), in)
	assert.ErrorIs(t, err, ErrConditionNotMet)

	boom := errors.New("bad data")
	_, err = NewGateTask("gate", staticCondition{err: boom}, nil).Execute(context.Background(), in)
	assert.ErrorIs(t, err, boom)
}

type sliceSource struct {
	records []core.Record
	closed  bool
}

func (s *sliceSource) Read(ctx context.Context) (core.Record, error) {
	if len(s.records) == 0 {
		return nil, io.EOF
	}
	r := s.records[0]
	s.records = s.records[1:]
	return r, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

type memorySink struct {
	written  []core.Record
	flushed  bool
	ctxFlush bool
	closed   bool
}

func (m *memorySink) Write(ctx context.Context, r core.Record) error {
	m.written = append(m.written, r)
	return nil
}
func (m *memorySink) Flush() error { m.flushed = true; return nil }
func (m *memorySink) FlushContext(ctx context.Context) error {
	m.ctxFlush = true
	return nil
}
func (m *memorySink) Close() error { m.closed = true; return nil }

func TestSourceAndSinkTasks(t *testing.T) {
	src := &sliceSource{records: numbered(4)}
	out, err := NewSourceTask("src", src).Execute(context.Background(), TaskInput{})
	require.NoError(t, err)
	assert.Len(t, out.Records, 4)
	assert.Equal(t, int64(4), out.Metadata.RecordsIn)
	assert.True(t, src.closed)

	sink := &memorySink{}
	res, err := NewSinkTask("sink", sink, []string{"src"}).Execute(context.Background(), TaskInput{Records: out.Records})
	require.NoError(t, err)
	assert.Len(t, sink.written, 4)
	assert.True(t, sink.ctxFlush)
	assert.False(t, sink.flushed)
	assert.True(t, sink.closed)
	assert.Equal(t, int64(4), res.Metadata.RecordsOut)
}

type countAll struct{}

func (countAll) ProcessRecords(ctx context.Context, records []core.Record) ([]core.Record, error) {
	return []core.Record{{"rows": len(records)}}, nil
}

func TestAggregateTask(t *testing.T) {
	out, err := NewAggregateTask("agg", countAll{}, nil).Execute(context.Background(), TaskInput{Records: numbered(9)})
	require.NoError(t, err)
	assert.Equal(t, []core.Record{{"rows": 9}}, out.Records)
}

func TestTaskOptions(t *testing.T) {
	task := NewTransformTask("t", core.TransformFunc(func(ctx context.Context, r core.Record) (core.Record, error) { return r, nil }), nil,
		WithDescription("noop"), WithTags("a", "b"), WithRetries(2, 0), WithTriggerRule(TriggerAllDone))
	md := task.Metadata()
	assert.Equal(t, "noop", md.Description)
	assert.Equal(t, []string{"a", "b"}, md.Tags)
	assert.Equal(t, 2, md.RetryConfig.MaxRetries)
	assert.Equal(t, TriggerAllDone, md.TriggerRule)
	assert.Equal(t, TaskTypeTransform, md.TaskType)
}
