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

package tripetl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aaronlmathis/tripetl/dag"
)

// Summarizer turns a finished DAG result into a RunSummary.
type Summarizer func(result *dag.DAGResult) RunSummary

// PipelineBuilder provides a fluent API for constructing a job run.
// Use NewPipeline() to create a new builder, then chain the With methods and Build.
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a builder for a run of the named job.
func NewPipeline(jobName string) *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			jobName:   jobName,
			lifecycle: LogLifecycle{},
			summarize: func(*dag.DAGResult) RunSummary { return RunSummary{} },
		},
	}
}

// WithDAG sets the graph to execute.
func (pb *PipelineBuilder) WithDAG(d *dag.DAG) *PipelineBuilder {
	pb.pipeline.dag = d
	return pb
}

// WithExecutor replaces the default DAG executor.
func (pb *PipelineBuilder) WithExecutor(executor *dag.DAGExecutor) *PipelineBuilder {
	pb.pipeline.executor = executor
	return pb
}

// WithLifecycle replaces the default LogLifecycle.
func (pb *PipelineBuilder) WithLifecycle(lifecycle Lifecycle) *PipelineBuilder {
	pb.pipeline.lifecycle = lifecycle
	return pb
}

// WithRunID fixes the run id. A random UUID is used otherwise.
func (pb *PipelineBuilder) WithRunID(runID string) *PipelineBuilder {
	pb.pipeline.runID = runID
	return pb
}

// WithArgs records the engine arguments passed to Lifecycle.Begin.
func (pb *PipelineBuilder) WithArgs(args map[string]string) *PipelineBuilder {
	pb.pipeline.args = args
	return pb
}

// WithSummarizer sets how the DAG result is reported on commit.
func (pb *PipelineBuilder) WithSummarizer(summarize Summarizer) *PipelineBuilder {
	pb.pipeline.summarize = summarize
	return pb
}

// Build validates and constructs the Pipeline from the builder.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	p := pb.pipeline
	if p.jobName == "" {
		return nil, fmt.Errorf("pipeline requires a job name")
	}
	if p.dag == nil {
		return nil, fmt.Errorf("pipeline requires a DAG")
	}
	if p.lifecycle == nil {
		return nil, fmt.Errorf("pipeline requires a lifecycle")
	}
	if p.summarize == nil {
		return nil, fmt.Errorf("pipeline requires a summarizer")
	}
	if p.executor == nil {
		p.executor = dag.NewDAGExecutor()
	}
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	return p, nil
}

// Execute is a shorthand for Build followed by Pipeline.Execute.
func (pb *PipelineBuilder) Execute(ctx context.Context) (RunSummary, error) {
	p, err := pb.Build()
	if err != nil {
		return RunSummary{}, err
	}
	return p.Execute(ctx)
}

// Pipeline is one run of the job: a DAG bracketed by lifecycle calls.
type Pipeline struct {
	jobName   string
	runID     string
	args      map[string]string
	dag       *dag.DAG
	executor  *dag.DAGExecutor
	lifecycle Lifecycle
	summarize Summarizer
}

// RunID returns the id of this run.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Execute calls Lifecycle.Begin, runs the DAG and then calls Commit on
// success or Abort on failure. The DAG error is returned unchanged, joined
// with the Abort error if that fails too.
func (p *Pipeline) Execute(ctx context.Context) (RunSummary, error) {
	run := RunInfo{
		RunID:   p.runID,
		JobName: p.jobName,
		Args:    p.args,
		Start:   time.Now().UTC(),
	}

	if err := p.lifecycle.Begin(ctx, run); err != nil {
		return RunSummary{}, fmt.Errorf("begin run %s: %w", run.RunID, err)
	}

	result, err := p.executor.Execute(ctx, p.dag)
	if err != nil {
		if abortErr := p.lifecycle.Abort(context.WithoutCancel(ctx), run, err); abortErr != nil {
			return RunSummary{}, errors.Join(err, fmt.Errorf("abort run %s: %w", run.RunID, abortErr))
		}
		return RunSummary{}, err
	}

	summary := p.summarize(result)
	summary.Duration = time.Since(run.Start)

	if err := p.lifecycle.Commit(ctx, run, summary); err != nil {
		return summary, fmt.Errorf("commit run %s: %w", run.RunID, err)
	}
	return summary, nil
}
