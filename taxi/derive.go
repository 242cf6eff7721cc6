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

package taxi

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/transform"
)

// YearSource selects where the partition year comes from.
type YearSource string

const (
	// YearFromPickup derives the year from the pickup timestamp.
	YearFromPickup YearSource = "pickup"
	// YearFromColumn keeps an existing year column and derives only the nulls.
	YearFromColumn YearSource = "column"
)

// ParseYearSource validates a year source name. Empty means pickup.
func ParseYearSource(s string) (YearSource, error) {
	switch YearSource(s) {
	case "", YearFromPickup:
		return YearFromPickup, nil
	case YearFromColumn:
		return YearFromColumn, nil
	}
	return "", fmt.Errorf("unknown year source %q (want %q or %q)", s, YearFromPickup, YearFromColumn)
}

// Time of day labels.
const (
	Day   = "Day"
	Night = "Night"
)

// Fallback label for unmapped payment and rate codes.
const Other = "Other"

var paymentTypes = map[int64]string{
	1: "Credit Card",
	2: "Cash",
	3: "No Charge",
	4: "Dispute",
	5: "Unknown",
	6: "Voided",
}

var ratecodes = map[int64]string{
	1: "Standard rate",
	2: "JFK",
	3: "Newark",
	4: "Nassau or Westchester",
	5: "Negotiated fare",
	6: "Group ride",
}

var vendors = map[int64]string{
	1: "Creative Mobile Technologies, LLC",
	2: "Curb Mobility, LLC",
	3: "Third Party",
	4: "Third Party",
	5: "Third Party",
	6: "Myle Technologies Inc",
	7: "Helix",
}

// WeekOfMonth returns 1 for days 1-7, 2 for days 8-14 and so on up to 5.
func WeekOfMonth(t time.Time) int32 {
	return int32((t.Day()-1)/7 + 1)
}

// DayName returns the full English weekday name.
func DayName(t time.Time) string {
	return t.Weekday().String()
}

// TimeOfDay is Day for hours 6 to 17 and Night otherwise.
func TimeOfDay(t time.Time) string {
	if h := t.Hour(); h >= 6 && h < 18 {
		return Day
	}
	return Night
}

// TipPercentage is tip/fare*100 for a positive fare and 0 otherwise.
// A null tip on a positive fare gives nil.
func TipPercentage(tip, fare interface{}) interface{} {
	f, err := core.AsFloat64(fare)
	if err != nil || !(f > 0) {
		return 0.0
	}
	t, err := core.AsFloat64(tip)
	if err != nil {
		return nil
	}
	return t / f * 100
}

// DistanceBucket places a trip distance into one of four buckets.
// Null and non-numeric distances land in the last one.
func DistanceBucket(distance interface{}) string {
	d, err := core.AsFloat64(distance)
	switch {
	case err != nil:
		return "10+ miles"
	case d < 1:
		return "0-1 miles"
	case d < 5:
		return "1-5 miles"
	case d < 10:
		return "5-10 miles"
	default:
		return "10+ miles"
	}
}

// PaymentTypeDesc describes a payment code. It never returns an empty value.
func PaymentTypeDesc(code interface{}) string {
	if c, ok := codeOf(code); ok {
		if desc, found := paymentTypes[c]; found {
			return desc
		}
	}
	return Other
}

// RatecodeDesc describes a rate code. It never returns an empty value.
func RatecodeDesc(code interface{}) string {
	if c, ok := codeOf(code); ok {
		if desc, found := ratecodes[c]; found {
			return desc
		}
	}
	return Other
}

// VendorDesc describes a vendor code, or returns nil when the code is
// null or unmapped.
func VendorDesc(code interface{}) interface{} {
	if c, ok := codeOf(code); ok {
		if desc, found := vendors[c]; found {
			return desc
		}
	}
	return nil
}

// codeOf reads an integral code. 2.0 is code 2, 2.5 is no code.
func codeOf(value interface{}) (int64, bool) {
	f, err := core.AsFloat64(value)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// Deriver adds the analytical columns to a normalized, enriched trip.
func Deriver(source YearSource) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		pickup, ok, err := pickupTime(record)
		if err != nil {
			return nil, err
		}

		out := record.CloneWith(9)
		if ok {
			out[WeekOfMonthCol] = WeekOfMonth(pickup)
			out[DayNameCol] = DayName(pickup)
			out[TimeOfDayCol] = TimeOfDay(pickup)
		} else {
			out[WeekOfMonthCol] = nil
			out[DayNameCol] = nil
			out[TimeOfDayCol] = Night
		}

		if source != YearFromColumn || record[Year] == nil {
			if ok {
				out[Year] = int32(pickup.Year())
			} else {
				out[Year] = nil
			}
		}

		out[TipPercentCol] = TipPercentage(record[TipAmount], record[FareAmount])
		out[DistanceCol] = DistanceBucket(record[TripDistance])
		out[PaymentDescCol] = PaymentTypeDesc(record[PaymentType])
		out[RatecodeDescCol] = RatecodeDesc(record[RatecodeID])
		out[VendorDescCol] = VendorDesc(record[VendorID])
		return out, nil
	})
}

func pickupTime(record core.Record) (time.Time, bool, error) {
	value := record[PickupDatetime]
	if value == nil {
		return time.Time{}, false, nil
	}
	if t, ok := value.(time.Time); ok {
		return t.UTC(), true, nil
	}
	t, err := transform.ParseTimestamp(value)
	if err != nil {
		return time.Time{}, false, &core.CastError{Field: PickupDatetime, Value: value, Target: "timestamp", Err: err}
	}
	return t, true, nil
}
