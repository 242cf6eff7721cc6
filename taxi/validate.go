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
	"github.com/aaronlmathis/tripetl/validators"
)

// OutputValidator checks the identified table before anything is written.
func OutputValidator() *validators.DataQualityValidator {
	required := append([]string{TripDistance, FareAmount}, DerivedColumns...)
	return validators.NewConfigurableDataQualityValidator(0, required,
		validators.WithFieldValidator(WeekOfMonthCol, validators.FieldValidator{
			DataType: validators.FieldTypeInt,
			MinValue: validators.Bound(1),
			MaxValue: validators.Bound(5),
		}),
		validators.WithFieldValidator(TripDistance, validators.FieldValidator{
			NotNull:  true,
			MaxValue: validators.Bound(MaxTripDistance),
		}),
		validators.WithFieldValidator(FareAmount, validators.FieldValidator{
			NotNull:  true,
			MaxValue: validators.Bound(MaxFareAmount),
		}),
		validators.WithFieldValidator(TimeOfDayCol, validators.FieldValidator{
			DataType:      validators.FieldTypeString,
			NotNull:       true,
			AllowedValues: []string{Day, Night},
		}),
		validators.WithFieldValidator(ID, validators.FieldValidator{
			DataType: validators.FieldTypeInt,
			NotNull:  true,
			MinValue: validators.Bound(1),
		}),
	)
}
