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
	"fmt"
	"time"

	tripetl "github.com/aaronlmathis/tripetl"
	"github.com/aaronlmathis/tripetl/aggregate"
	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/dag"
	"github.com/aaronlmathis/tripetl/dag/tasks"
	"github.com/aaronlmathis/tripetl/writers"
)

// Task ids of the job graph.
const (
	TaskLoadTrips       = "load_trips"
	TaskLoadZones       = "load_zones"
	TaskQuality         = "quality_filter"
	TaskNormalize       = "normalize"
	TaskEnrichPickup    = "enrich_pickup"
	TaskEnrichDropoff   = "enrich_dropoff"
	TaskDerive          = "derive"
	TaskOutliers        = "outlier_filter"
	TaskAssignIDs       = "assign_ids"
	TaskValidate        = "validate_output"
	TaskWrite           = "write_output"
	TaskPartitionCounts = "partition_counts"
	TaskShape           = "shape"
)

// GraphConfig supplies the endpoints and tuning of the job graph.
type GraphConfig struct {
	Trips      core.DataSource
	Zones      core.DataSource
	Sink       core.DataSink
	YearSource YearSource
	Workers    int           // Goroutines per row-local task, 0 means one
	Partitions int           // Chunks per row-local task, 0 means Workers
	Timeout    time.Duration // Per-task timeout, 0 means none
}

// BuildDAG wires the job:
//
//	load_trips -> quality_filter -> normalize -> enrich_pickup -> enrich_dropoff
//	  -> derive -> outlier_filter -> assign_ids -> validate_output
//	  -> {write_output, partition_counts, shape}
//
// load_zones feeds both enrich tasks.
func BuildDAG(cfg GraphConfig) (*dag.DAG, error) {
	if cfg.Trips == nil || cfg.Zones == nil || cfg.Sink == nil {
		return nil, fmt.Errorf("job graph requires trips, zones and a sink")
	}
	if cfg.YearSource == "" {
		cfg.YearSource = YearFromPickup
	}

	par := tasks.WithParallelism(cfg.Workers, cfg.Partitions)
	builder := dag.NewDAG("tripetl", "Trip record ETL").
		WithDescription("Filter, normalize, enrich and partition trip records").
		WithDefaultTimeout(cfg.Timeout).
		AddSourceTask(TaskLoadTrips, cfg.Trips,
			tasks.WithDescription("Read raw trip records")).
		AddSourceTask(TaskLoadZones, cfg.Zones,
			tasks.WithDescription("Read the zone lookup table")).
		AddFilterTask(TaskQuality, QualityFilter(), []string{TaskLoadTrips}, par,
			tasks.WithDescription("Drop trips without passengers or with an unknown rate code")).
		AddTransformTask(TaskNormalize, Normalizer(), []string{TaskQuality}, par,
			tasks.WithDescription("Drop unused columns and cast types")).
		AddJoinTask(TaskEnrichPickup, PickupLookup(), []string{TaskNormalize, TaskLoadZones}, par,
			tasks.WithDescription("Attach pickup zone and borough")).
		AddJoinTask(TaskEnrichDropoff, DropoffLookup(), []string{TaskEnrichPickup, TaskLoadZones}, par,
			tasks.WithDescription("Attach dropoff zone and borough")).
		AddTransformTask(TaskDerive, Deriver(cfg.YearSource), []string{TaskEnrichDropoff}, par,
			tasks.WithDescription("Derive analytical columns")).
		AddFilterTask(TaskOutliers, OutlierFilter(), []string{TaskDerive}, par,
			tasks.WithDescription("Drop distance and fare outliers")).
		AddIdentityTask(TaskAssignIDs, ID, []string{TaskOutliers}, par,
			tasks.WithDescription("Assign dense ids")).
		AddGateTask(TaskValidate, OutputValidator(), []string{TaskAssignIDs},
			tasks.WithDescription("Check output invariants before writing")).
		AddSinkTask(TaskWrite, cfg.Sink, []string{TaskValidate},
			tasks.WithDescription("Overwrite the partitioned destination")).
		AddAggregateTask(TaskPartitionCounts, aggregate.NewGroupBy(Year).Count("rows"), []string{TaskValidate},
			tasks.WithDescription("Count rows per year")).
		AddAggregateTask(TaskShape, NewShapeAggregator(), []string{TaskValidate},
			tasks.WithDescription("Summarise categorical distributions"))

	return builder.Build()
}

// Summarize reads the run summary out of a finished job graph.
func Summarize(result *dag.DAGResult) tripetl.RunSummary {
	summary := tripetl.RunSummary{
		RowsRead:    result.TaskResults[TaskLoadTrips].RecordsOut,
		RowsWritten: result.TaskResults[TaskWrite].RecordsOut,
		Partitions:  make(map[string]int64),
	}
	for _, r := range result.TaskOutputs[TaskPartitionCounts].Records {
		n, _ := core.AsInt64(r["rows_count"])
		summary.Partitions[writers.PartitionValue(r[Year])] += n
	}
	summary.Distributions = Distributions(result.TaskOutputs[TaskShape].Records)
	return summary
}
