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

package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AsFloat64 converts numeric values and numeric strings to float64.
// It returns ErrNullValue for nil.
func AsFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, ErrNullValue
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", value)
	}
}

// AsInt64 converts numeric values and numeric strings to int64.
// Floating point values are truncated toward zero.
func AsInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, ErrNullValue
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", v)
		}
		return int64(f), nil
	default:
		f, err := AsFloat64(value)
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	}
}

// AsString renders a value as a string. It returns ErrNullValue for nil.
func AsString(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", ErrNullValue
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// AsTime returns the time.Time held by value. It does not parse strings.
func AsTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, ErrNullValue
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, ErrNullValue
		}
		return *v, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported time type %T", value)
	}
}
