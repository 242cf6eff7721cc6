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

package validators

import (
	"context"
	"testing"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/dag/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evaluate(v *DataQualityValidator, records ...core.Record) (bool, error) {
	return v.Evaluate(context.Background(), tasks.TaskInput{Records: records})
}

func TestDataQualityValidator_EmptyPasses(t *testing.T) {
	ok, err := evaluate(NewDataQualityValidator(0, []string{"Id"}))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDataQualityValidator_Presence(t *testing.T) {
	v := NewConfigurableDataQualityValidator(0, []string{"Id"}, WithForbiddenFields("airport_fee"))

	ok, err := evaluate(v, core.Record{"Id": int64(1)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = evaluate(v, core.Record{"other": 1})
	assert.False(t, ok)
	assert.ErrorContains(t, err, "missing required field: Id")

	_, err = evaluate(v, core.Record{"Id": int64(1), "airport_fee": 1.0})
	assert.ErrorContains(t, err, "forbidden field: airport_fee")
}

func TestDataQualityValidator_FieldRules(t *testing.T) {
	v := NewConfigurableDataQualityValidator(0, nil,
		WithFieldValidator("week_of_month", FieldValidator{DataType: FieldTypeInt, MinValue: Bound(1), MaxValue: Bound(5)}),
		WithFieldValidator("time_of_day", FieldValidator{DataType: FieldTypeString, AllowedValues: []string{"Day", "Night"}}),
		WithFieldValidator("Id", FieldValidator{DataType: FieldTypeInt, NotNull: true}),
	)

	good := core.Record{"week_of_month": int32(5), "time_of_day": "Night", "Id": int64(1)}
	ok, err := evaluate(v, good, core.Record{"week_of_month": nil, "time_of_day": "Day", "Id": int64(2)})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = evaluate(v, core.Record{"week_of_month": int32(6), "time_of_day": "Day", "Id": int64(1)})
	assert.ErrorContains(t, err, "above maximum")

	_, err = evaluate(v, core.Record{"week_of_month": int32(1), "time_of_day": "Dusk", "Id": int64(1)})
	assert.ErrorContains(t, err, "not in allowed values")

	_, err = evaluate(v, core.Record{"week_of_month": int32(1), "time_of_day": "Day", "Id": nil})
	assert.ErrorContains(t, err, "Id is null")

	_, err = evaluate(v, core.Record{"week_of_month": "1", "time_of_day": "Day", "Id": int64(1)})
	assert.ErrorContains(t, err, "invalid type")
}

func TestDataQualityValidator_CountsAndCustom(t *testing.T) {
	v := NewConfigurableDataQualityValidator(2, nil, WithMaxRecords(3))
	_, err := evaluate(v, core.Record{})
	assert.ErrorContains(t, err, "insufficient records")

	_, err = evaluate(v, core.Record{}, core.Record{}, core.Record{}, core.Record{})
	assert.ErrorContains(t, err, "too many records")

	custom := NewConfigurableDataQualityValidator(0, nil, WithCustomValidator(func(r []core.Record) (bool, error) {
		return len(r) == 1, nil
	}))
	ok, err := evaluate(custom, core.Record{})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = evaluate(custom, core.Record{}, core.Record{})
	assert.False(t, ok)
	assert.Error(t, err)

	assert.Empty(t, custom.OnTrue())
	assert.Empty(t, custom.OnFalse())
}
