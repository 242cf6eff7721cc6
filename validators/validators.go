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

// validators.go - Data quality validation for gate tasks
package validators

import (
	"context"
	"fmt"
	"time"

	"github.com/aaronlmathis/tripetl/core"
	"github.com/aaronlmathis/tripetl/dag/tasks"
)

// DataQualityValidator implements ConditionalLogic for data quality checks.
// Evaluate returns an error describing the first violation it finds.
type DataQualityValidator struct {
	MinRecords       int                                 // Minimum number of records required
	MaxRecords       int                                 // Maximum number of records allowed (0 = unlimited)
	RequiredFields   []string                            // Fields that must be present in all records
	ForbiddenFields  []string                            // Fields that must not be present
	FieldValidators  map[string]FieldValidator           // Per-field validation rules
	CustomValidators []func([]core.Record) (bool, error) // Custom validation functions
	OnTrueTasks      []string                            // Tasks to execute when validation passes
	OnFalseTasks     []string                            // Tasks to execute when validation fails
}

// FieldValidator defines validation rules for individual fields
type FieldValidator struct {
	DataType      FieldDataType                   // Expected data type
	NotNull       bool                            // Reject nil values
	MinValue      *float64                        // Inclusive lower bound for numeric fields
	MaxValue      *float64                        // Inclusive upper bound for numeric fields
	AllowedValues []string                        // Whitelist of allowed string values
	CustomFunc    func(interface{}) (bool, error) // Custom validation function
}

// FieldDataType represents expected data types for validation
type FieldDataType string

const (
	FieldTypeString FieldDataType = "string"
	FieldTypeInt    FieldDataType = "int"
	FieldTypeFloat  FieldDataType = "float"
	FieldTypeBool   FieldDataType = "bool"
	FieldTypeTime   FieldDataType = "time"
	FieldTypeAny    FieldDataType = "any"
)

// Bound returns a pointer to v, for MinValue and MaxValue.
func Bound(v float64) *float64 { return &v }

// Evaluate implements ConditionalLogic interface
func (dqv *DataQualityValidator) Evaluate(ctx context.Context, input tasks.TaskInput) (bool, error) {
	records := input.Records
	recordCount := len(records)

	if recordCount < dqv.MinRecords {
		return false, fmt.Errorf("insufficient records: got %d, need at least %d", recordCount, dqv.MinRecords)
	}
	if dqv.MaxRecords > 0 && recordCount > dqv.MaxRecords {
		return false, fmt.Errorf("too many records: got %d, maximum allowed %d", recordCount, dqv.MaxRecords)
	}
	if recordCount == 0 {
		return true, nil
	}

	if err := dqv.validateFieldPresence(records); err != nil {
		return false, err
	}
	if err := dqv.validateFieldValues(ctx, records); err != nil {
		return false, err
	}

	for i, validator := range dqv.CustomValidators {
		valid, err := validator(records)
		if err != nil {
			return false, fmt.Errorf("custom validator %d failed: %w", i, err)
		}
		if !valid {
			return false, fmt.Errorf("custom validator %d failed validation", i)
		}
	}

	return true, nil
}

// OnTrue implements ConditionalLogic interface
func (dqv *DataQualityValidator) OnTrue() []string {
	return dqv.OnTrueTasks
}

// OnFalse implements ConditionalLogic interface
func (dqv *DataQualityValidator) OnFalse() []string {
	return dqv.OnFalseTasks
}

func (dqv *DataQualityValidator) validateFieldPresence(records []core.Record) error {
	if len(dqv.RequiredFields) == 0 && len(dqv.ForbiddenFields) == 0 {
		return nil
	}

	for recordIdx, record := range records {
		for _, field := range dqv.RequiredFields {
			if _, exists := record[field]; !exists {
				return fmt.Errorf("record %d missing required field: %s", recordIdx, field)
			}
		}
		for _, field := range dqv.ForbiddenFields {
			if _, exists := record[field]; exists {
				return fmt.Errorf("record %d contains forbidden field: %s", recordIdx, field)
			}
		}
	}

	return nil
}

func (dqv *DataQualityValidator) validateFieldValues(ctx context.Context, records []core.Record) error {
	if len(dqv.FieldValidators) == 0 {
		return nil
	}

	for recordIdx, record := range records {
		if recordIdx%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for fieldName, validator := range dqv.FieldValidators {
			value, exists := record[fieldName]
			if !exists {
				continue
			}
			if err := validateSingleFieldValue(fieldName, value, validator, recordIdx); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateSingleFieldValue(fieldName string, value interface{}, validator FieldValidator, recordIdx int) error {
	if value == nil {
		if validator.NotNull {
			return fmt.Errorf("record %d field %s is null", recordIdx, fieldName)
		}
		return nil
	}

	if !validateDataType(value, validator.DataType) {
		return fmt.Errorf("record %d field %s has invalid type %T, expected %s",
			recordIdx, fieldName, value, validator.DataType)
	}

	if validator.MinValue != nil || validator.MaxValue != nil {
		num, err := core.AsFloat64(value)
		if err != nil {
			return fmt.Errorf("record %d field %s is not numeric: %w", recordIdx, fieldName, err)
		}
		if validator.MinValue != nil && num < *validator.MinValue {
			return fmt.Errorf("record %d field %s value %v below minimum %v",
				recordIdx, fieldName, value, *validator.MinValue)
		}
		if validator.MaxValue != nil && num > *validator.MaxValue {
			return fmt.Errorf("record %d field %s value %v above maximum %v",
				recordIdx, fieldName, value, *validator.MaxValue)
		}
	}

	if len(validator.AllowedValues) > 0 {
		s, _ := value.(string)
		valid := false
		for _, allowed := range validator.AllowedValues {
			if s == allowed {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("record %d field %s value '%v' not in allowed values",
				recordIdx, fieldName, value)
		}
	}

	if validator.CustomFunc != nil {
		valid, err := validator.CustomFunc(value)
		if err != nil {
			return fmt.Errorf("record %d field %s custom validation failed: %w",
				recordIdx, fieldName, err)
		}
		if !valid {
			return fmt.Errorf("record %d field %s failed custom validation", recordIdx, fieldName)
		}
	}

	return nil
}

func validateDataType(value interface{}, expectedType FieldDataType) bool {
	switch expectedType {
	case FieldTypeString:
		_, ok := value.(string)
		return ok
	case FieldTypeInt:
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		}
		return false
	case FieldTypeFloat:
		switch value.(type) {
		case float32, float64:
			return true
		}
		return false
	case FieldTypeBool:
		_, ok := value.(bool)
		return ok
	case FieldTypeTime:
		_, ok := value.(time.Time)
		return ok
	default:
		return true
	}
}

// NewDataQualityValidator creates a basic data quality validator
func NewDataQualityValidator(minRecords int, requiredFields []string) *DataQualityValidator {
	return &DataQualityValidator{
		MinRecords:      minRecords,
		RequiredFields:  requiredFields,
		FieldValidators: make(map[string]FieldValidator),
		OnTrueTasks:     []string{},
		OnFalseTasks:    []string{},
	}
}

// DataQualityOption is a functional option for configuring DataQualityValidator
type DataQualityOption func(*DataQualityValidator)

// WithMaxRecords sets the maximum record count
func WithMaxRecords(max int) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.MaxRecords = max
	}
}

// WithForbiddenFields sets fields that must not be present
func WithForbiddenFields(fields ...string) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.ForbiddenFields = append(dqv.ForbiddenFields, fields...)
	}
}

// WithFieldValidator adds a field-specific validator
func WithFieldValidator(fieldName string, validator FieldValidator) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		if dqv.FieldValidators == nil {
			dqv.FieldValidators = make(map[string]FieldValidator)
		}
		dqv.FieldValidators[fieldName] = validator
	}
}

// WithCustomValidator adds a custom validation function
func WithCustomValidator(validator func([]core.Record) (bool, error)) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.CustomValidators = append(dqv.CustomValidators, validator)
	}
}

// NewConfigurableDataQualityValidator creates a validator with functional options
func NewConfigurableDataQualityValidator(minRecords int, requiredFields []string, options ...DataQualityOption) *DataQualityValidator {
	dqv := NewDataQualityValidator(minRecords, requiredFields)

	for _, option := range options {
		option(dqv)
	}

	return dqv
}
