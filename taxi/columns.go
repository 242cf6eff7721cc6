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

// Package taxi holds the trip-specific stages of the TripETL job: the
// quality and outlier filters, the schema normalizer, the zone lookups,
// the derived attributes and the DAG that wires them together.
package taxi

// Trip columns.
const (
	VendorID             = "VendorID"
	PickupDatetime       = "tpep_pickup_datetime"
	DropoffDatetime      = "tpep_dropoff_datetime"
	PassengerCount       = "passenger_count"
	TripDistance         = "trip_distance"
	RatecodeID           = "RatecodeID"
	StoreAndFwdFlag      = "store_and_fwd_flag"
	PULocationID         = "PULocationID"
	DOLocationID         = "DOLocationID"
	PaymentType          = "payment_type"
	FareAmount           = "fare_amount"
	TipAmount            = "tip_amount"
	AirportFee           = "airport_fee"
	CongestionSurcharge  = "congestion_surcharge"
	ServiceZone          = "service_zone"
	TotalAmount          = "total_amount"
	ImprovementSurcharge = "improvement_surcharge"
)

// Zone lookup columns.
const (
	LocationID = "LocationID"
	Zone       = "Zone"
	Borough    = "Borough"
)

// Columns added by the job.
const (
	PickupZone      = "pickup_zone"
	PickupBorough   = "pickup_borough"
	DropoffZone     = "dropoff_zone"
	DropoffBorough  = "dropoff_borough"
	WeekOfMonthCol  = "week_of_month"
	DayNameCol      = "day_name"
	TimeOfDayCol    = "time_of_day"
	TipPercentCol   = "tip_percentage"
	DistanceCol     = "distance_bucket"
	PaymentDescCol  = "payment_type_desc"
	RatecodeDescCol = "ratecode_desc"
	VendorDescCol   = "vendor_desc"
	Year            = "year"
	ID              = "Id"
)

// DroppedColumns never reach the output.
var DroppedColumns = []string{StoreAndFwdFlag, AirportFee, CongestionSurcharge, ServiceZone}

// OutputFieldOrder is the leading column order of every output file.
// Columns not listed follow in name order.
var OutputFieldOrder = []string{
	ID,
	VendorID, VendorDescCol,
	PickupDatetime, DropoffDatetime,
	PassengerCount,
	TripDistance, DistanceCol,
	RatecodeID, RatecodeDescCol,
	PULocationID, PickupZone, PickupBorough,
	DOLocationID, DropoffZone, DropoffBorough,
	PaymentType, PaymentDescCol,
	FareAmount, TipAmount, TipPercentCol,
	WeekOfMonthCol, DayNameCol, TimeOfDayCol,
}

// DerivedColumns are the columns every output record carries.
var DerivedColumns = []string{
	PickupZone, PickupBorough, DropoffZone, DropoffBorough,
	WeekOfMonthCol, DayNameCol, TimeOfDayCol,
	TipPercentCol, DistanceCol,
	PaymentDescCol, RatecodeDescCol, VendorDescCol,
	Year, ID,
}

// CategoricalColumns are summarised value by value in a Shape.
var CategoricalColumns = []string{
	DayNameCol, TimeOfDayCol, DistanceCol,
	PaymentDescCol, RatecodeDescCol, VendorDescCol,
	PickupBorough, DropoffBorough,
}
