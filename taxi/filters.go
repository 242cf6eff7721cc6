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
	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/filter"
)

// UnknownRatecode marks a trip whose rate code was not recorded.
const UnknownRatecode = 99

// Outlier limits.
const (
	MaxTripDistance = 100
	MaxFareAmount   = 500
)

// QualityFilter keeps trips with a known, non-zero passenger count and a
// known rate code.
func QualityFilter() core.Filter {
	return filter.And(
		filter.NotNull(PassengerCount),
		filter.NotEquals(PassengerCount, 0),
		filter.NotNull(RatecodeID),
		filter.NotEquals(RatecodeID, UnknownRatecode),
	)
}

// OutlierFilter drops implausibly long or expensive trips. A null distance
// or fare is dropped too.
func OutlierFilter() core.Filter {
	return filter.And(
		filter.AtMost(TripDistance, MaxTripDistance),
		filter.AtMost(FareAmount, MaxFareAmount),
	)
}
