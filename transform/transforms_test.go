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

package transform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apply(t *testing.T, tr core.Transformer, r core.Record) core.Record {
	t.Helper()
	out, err := tr.Transform(context.Background(), r)
	require.NoError(t, err)
	return out
}

func TestRemoveFields_MoreFieldsThanColumns(t *testing.T) {
	in := core.Record{"a": 1}
	out := apply(t, RemoveFields("a", "b", "c", "d"), in)
	assert.Empty(t, out)
	assert.Equal(t, 1, in["a"], "input must not be mutated")
}

func TestSelectRenameAddField(t *testing.T) {
	in := core.Record{"a": 1, "b": 2, "c": 3}

	assert.Equal(t, core.Record{"a": 1, "c": 3}, apply(t, Select("a", "c", "zz"), in))
	assert.Equal(t, core.Record{"x": 1, "b": 2, "c": 3}, apply(t, Rename(map[string]string{"a": "x"}), in))

	added := apply(t, AddField("sum", func(r core.Record) interface{} { return r["a"].(int) + r["b"].(int) }), in)
	assert.Equal(t, 3, added["sum"])
	assert.NotContains(t, in, "sum")
}

func TestToTimestamp_Layouts(t *testing.T) {
	want := time.Date(2024, 3, 9, 20, 15, 0, 0, time.UTC)
	inputs := []interface{}{
		"2024-03-09 20:15:00",
		"2024-03-09T20:15:00Z",
		"2024-03-09T21:15:00+01:00",
		"2024-03-09 20:15:00.000000",
		want,
	}
	for _, in := range inputs {
		out := apply(t, ToTimestamp("ts"), core.Record{"ts": in})
		got, ok := out["ts"].(time.Time)
		require.True(t, ok, "input %v", in)
		assert.True(t, want.Equal(got), "input %v gave %v", in, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	day := apply(t, ToTimestamp("ts"), core.Record{"ts": "2024-03-09"})
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), day["ts"])
}

func TestToTimestamp_NullAndInvalid(t *testing.T) {
	out := apply(t, ToTimestamp("ts"), core.Record{"ts": nil})
	assert.Nil(t, out["ts"])

	_, err := ToTimestamp("ts").Transform(context.Background(), core.Record{"ts": "yesterday"})
	require.Error(t, err)
	var ce *core.CastError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "ts", ce.Field)
	assert.Equal(t, "timestamp", ce.Target)
	assert.Equal(t, "yesterday", ce.Value)
}

func TestToInt32(t *testing.T) {
	out := apply(t, ToInt32("n"), core.Record{"n": 2.9})
	assert.Equal(t, int32(2), out["n"])

	out = apply(t, ToInt32("n"), core.Record{"n": int64(5)})
	assert.Equal(t, int32(5), out["n"])

	out = apply(t, ToInt32("n"), core.Record{"other": 1})
	assert.NotContains(t, out, "n")

	_, err := ToInt32("n").Transform(context.Background(), core.Record{"n": "x"})
	var ce *core.CastError
	assert.True(t, errors.As(err, &ce))

	_, err = ToInt32("n").Transform(context.Background(), core.Record{"n": int64(1) << 40})
	assert.Error(t, err)
}

func TestChain_StopsOnError(t *testing.T) {
	tr := Chain(RemoveFields("drop"), ToInt32("n"), ToFloat64("f"))
	out := apply(t, tr, core.Record{"drop": 1, "n": "3", "f": int32(2)})
	assert.Equal(t, core.Record{"n": int32(3), "f": 2.0}, out)

	_, err := Chain(ToInt32("n"), ToFloat64("f")).Transform(context.Background(), core.Record{"n": 1, "f": "x"})
	assert.Error(t, err)
}
