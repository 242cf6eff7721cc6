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

// join.go - JoinTask implementation
package tasks

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/tripetl/core"
)

// JoinConfig defines join operation parameters
type JoinConfig struct {
	JoinType    string            // "inner", "left", "right", "full"
	LeftKeys    []string          // Join keys for left dataset
	RightKeys   []string          // Join keys for right dataset
	FieldPrefix map[string]string // Prefixes to avoid field name conflicts ("left", "right")
	// RightFields projects right columns into the output as source -> target.
	// When set, only these columns are taken from the right side and a
	// missing match sets every target to nil.
	RightFields map[string]string
}

// JoinTask performs an SQL-style hash join of its first dependency (left)
// with its second (right). The right side is indexed once and the left side
// is probed partition by partition.
type JoinTask struct {
	baseTask
	joinConfig JoinConfig
}

func (jt *JoinTask) Execute(ctx context.Context, input TaskInput) (TaskOutput, error) {
	start := time.Now()

	if len(jt.dependencies) < 2 {
		return TaskOutput{}, fmt.Errorf("join task requires at least 2 dependencies, got %d", len(jt.dependencies))
	}
	switch jt.joinConfig.JoinType {
	case "inner", "left", "right", "full":
	default:
		return TaskOutput{}, fmt.Errorf("unsupported join type %q", jt.joinConfig.JoinType)
	}
	if len(jt.joinConfig.LeftKeys) == 0 || len(jt.joinConfig.LeftKeys) != len(jt.joinConfig.RightKeys) {
		return TaskOutput{}, fmt.Errorf("join keys mismatch: %d left, %d right", len(jt.joinConfig.LeftKeys), len(jt.joinConfig.RightKeys))
	}

	leftRecords, okL := input.SourceMap[jt.dependencies[0]]
	rightRecords, okR := input.SourceMap[jt.dependencies[1]]
	if !okL || !okR {
		return TaskOutput{}, fmt.Errorf("missing source data for join operation")
	}

	joinedRecords, err := jt.performJoin(ctx, leftRecords, rightRecords)
	if err != nil {
		return TaskOutput{}, fmt.Errorf("join operation failed: %w", err)
	}

	return TaskOutput{
		Records:  joinedRecords,
		Context:  input.Context,
		Metadata: result(start, len(leftRecords)+len(rightRecords), len(joinedRecords)),
	}, nil
}

func (jt *JoinTask) performJoin(ctx context.Context, leftRecords, rightRecords []core.Record) ([]core.Record, error) {
	joinType := jt.joinConfig.JoinType
	keepLeft := joinType == "left" || joinType == "full"
	keepRight := joinType == "right" || joinType == "full"

	rightIndex := make(map[string][]core.Record, len(rightRecords))
	for _, rightRecord := range rightRecords {
		key, ok := buildJoinKey(rightRecord, jt.joinConfig.RightKeys)
		if !ok {
			continue
		}
		rightIndex[key] = append(rightIndex[key], rightRecord)
	}

	workers, partitions := jt.metadata.layout()
	matched := make([]map[string]struct{}, partitions)

	result, err := mapPartitions(ctx, leftRecords, workers, partitions,
		func(ctx context.Context, part int, chunk []core.Record) ([]core.Record, error) {
			var seen map[string]struct{}
			if keepRight {
				seen = make(map[string]struct{})
				matched[part] = seen
			}
			out := make([]core.Record, 0, len(chunk))
			for i, leftRecord := range chunk {
				if i%ctxCheckInterval == 0 {
					if err := ctx.Err(); err != nil {
						return nil, err
					}
				}
				key, ok := buildJoinKey(leftRecord, jt.joinConfig.LeftKeys)
				rightMatches := rightIndex[key]
				if !ok || len(rightMatches) == 0 {
					if keepLeft {
						out = append(out, jt.mergeRecords(leftRecord, nil))
					}
					continue
				}
				for _, rightRecord := range rightMatches {
					out = append(out, jt.mergeRecords(leftRecord, rightRecord))
				}
				if keepRight {
					seen[key] = struct{}{}
				}
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}

	if keepRight {
		used := make(map[string]struct{})
		for _, m := range matched {
			for k := range m {
				used[k] = struct{}{}
			}
		}
		for _, rightRecord := range rightRecords {
			key, ok := buildJoinKey(rightRecord, jt.joinConfig.RightKeys)
			if ok {
				if _, hit := used[key]; hit {
					continue
				}
			}
			result = append(result, jt.mergeRecords(nil, rightRecord))
		}
	}

	return result, nil
}

// buildJoinKey creates a composite key from the given fields. It reports
// false when any key is null, since null never equals anything.
func buildJoinKey(record core.Record, keyFields []string) (string, bool) {
	if record == nil {
		return "", false
	}
	parts := make([]string, 0, len(keyFields))
	for _, field := range keyFields {
		part, ok := normalizeKey(record[field])
		if !ok {
			return "", false
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "|"), true
}

// normalizeKey renders numbers by value so that int32(7), int64(7), 7.0 and
// "7" all produce the same key.
func normalizeKey(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(v)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return numericKey(f), true
		}
		return "s:" + v, true
	case bool:
		return "b:" + strconv.FormatBool(v), true
	case time.Time:
		return "t:" + v.UTC().Format(time.RFC3339Nano), true
	}
	if f, err := core.AsFloat64(value); err == nil {
		return numericKey(f), true
	}
	return fmt.Sprintf("%T:%v", value, value), true
}

func numericKey(f float64) string {
	return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
}

// mergeRecords combines left and right records with optional field prefixes
// or a right-side projection.
func (jt *JoinTask) mergeRecords(leftRecord, rightRecord core.Record) core.Record {
	if len(jt.joinConfig.RightFields) > 0 {
		var result core.Record
		if leftRecord != nil {
			result = leftRecord.CloneWith(len(jt.joinConfig.RightFields))
		} else {
			result = make(core.Record, len(jt.joinConfig.RightFields))
		}
		for src, dst := range jt.joinConfig.RightFields {
			if rightRecord == nil {
				result[dst] = nil
			} else {
				result[dst] = rightRecord[src]
			}
		}
		return result
	}

	result := make(core.Record, len(leftRecord)+len(rightRecord))

	if leftRecord != nil {
		leftPrefix := jt.joinConfig.FieldPrefix["left"]
		for key, value := range leftRecord {
			result[leftPrefix+key] = value
		}
	}

	if rightRecord != nil {
		rightPrefix := jt.joinConfig.FieldPrefix["right"]
		for key, value := range rightRecord {
			finalKey := rightPrefix + key
			if _, exists := result[finalKey]; exists && rightPrefix == "" {
				finalKey = "right_" + key
			}
			result[finalKey] = value
		}
	}

	return result
}

// NewJoinTask creates a new JoinTask
func NewJoinTask(id string, config JoinConfig, dependencies []string, options ...TaskOption) *JoinTask {
	task := &JoinTask{
		baseTask:   newBaseTask(id, TaskTypeJoin, dependencies),
		joinConfig: config,
	}
	applyOptions(task, options)
	return task
}
