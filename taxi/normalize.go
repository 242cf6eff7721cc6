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
	"github.com/aaronlmathis/tripetl/dag/tasks"
	"github.com/aaronlmathis/tripetl/transform"
)

// Normalizer drops the unused columns and casts the pickup time and the
// integer codes. A value that cannot be cast fails with a *core.CastError.
func Normalizer() core.Transformer {
	return transform.Chain(
		transform.RemoveFields(DroppedColumns...),
		transform.ToTimestamp(PickupDatetime),
		transform.ToInt32(PassengerCount),
		transform.ToInt32(RatecodeID),
	)
}

// PickupLookup joins the pickup location against the zone table.
func PickupLookup() tasks.JoinConfig {
	return zoneLookup(PULocationID, PickupZone, PickupBorough)
}

// DropoffLookup joins the dropoff location against the zone table.
func DropoffLookup() tasks.JoinConfig {
	return zoneLookup(DOLocationID, DropoffZone, DropoffBorough)
}

func zoneLookup(key, zone, borough string) tasks.JoinConfig {
	return tasks.JoinConfig{
		JoinType:  "left",
		LeftKeys:  []string{key},
		RightKeys: []string{LocationID},
		RightFields: map[string]string{
			Zone:    zone,
			Borough: borough,
		},
	}
}
