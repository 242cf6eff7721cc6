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

package aggregate

import (
	"context"
	"testing"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupBy_CountKeepsKeyValues(t *testing.T) {
	records := []core.Record{
		{"year": int32(2024), "v": 1},
		{"year": int32(2023), "v": 2},
		{"year": int32(2024), "v": 3},
		{"year": nil, "v": 4},
	}

	out, err := NewGroupBy("year").Count("rows").ProcessRecords(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, out, 3)

	counts := map[interface{}]int64{}
	for _, r := range out {
		counts[r["year"]] = r["rows_count"].(int64)
	}
	assert.Equal(t, int64(2), counts[int32(2024)])
	assert.Equal(t, int64(1), counts[int32(2023)])
	assert.Equal(t, int64(1), counts[nil])
}

func TestGroupBy_NullAndEmptyStringAreDistinct(t *testing.T) {
	records := []core.Record{{"k": nil}, {"k": ""}, {"k": 0}}
	out, err := NewGroupBy("k").Count("n").ProcessRecords(context.Background(), records)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestGroupBy_MinMaxOverall(t *testing.T) {
	records := []core.Record{{"Id": int64(3)}, {"Id": int64(1)}, {"Id": nil}, {"Id": int64(7)}}
	out, err := NewGroupBy().Min("Id", "id").Max("Id", "id_hi").Count("rows").ProcessRecords(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0]["id_min"])
	assert.Equal(t, int64(7), out[0]["id_hi_max"])
	assert.Equal(t, int64(4), out[0]["rows_count"])
}

func TestGroupBy_ProcessChannel(t *testing.T) {
	ch := make(chan core.Record, 3)
	ch <- core.Record{"c": "a"}
	ch <- core.Record{"c": "b"}
	ch <- core.Record{"c": "a"}
	close(ch)

	out, err := NewGroupBy("c").Count("rows").Process(context.Background(), ch)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0]["c"])
	assert.Equal(t, int64(2), out[0]["rows_count"])
}
