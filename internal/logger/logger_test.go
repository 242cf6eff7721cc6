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

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogger(t *testing.T) {
	t.Cleanup(func() {
		SetLevel(slog.LevelInfo)
		_ = SetFormat("text")
		SetOutput(os.Stderr)
	})
}

func TestLogStageEnd_JSONKeys(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, SetFormat("json"))

	LogStageEnd("derive", 10, 8, 1500*time.Millisecond, nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stage completed", entry["msg"])
	assert.Equal(t, "derive", entry["task_id"])
	assert.Equal(t, float64(10), entry["records_in"])
	assert.Equal(t, float64(8), entry["records_out"])
	assert.Equal(t, float64(1500), entry["duration_ms"])
}

func TestLogStageEnd_ErrorLevel(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, SetFormat("json"))

	LogStageEnd("write", 3, 0, time.Millisecond, errors.New("disk full"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "disk full", entry["error"])
}

func TestSetLevel_FiltersDebug(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	SetOutput(&buf)

	Debug("hidden")
	assert.Empty(t, buf.String())

	SetLevel(slog.LevelDebug)
	Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevelAndFormat(t *testing.T) {
	l, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)

	assert.Error(t, SetFormat("xml"))
}

func TestWithJob(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	SetOutput(&buf)

	WithJob("nightly", "abc").Info("hello")
	assert.Contains(t, buf.String(), "job_name=nightly")
	assert.Contains(t, buf.String(), "run_id=abc")
}

func TestLogStageStart_OmitsUnknownCount(t *testing.T) {
	resetLogger(t)
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(slog.LevelDebug)
	require.NoError(t, SetFormat("json"))

	LogStageStart("load_zones", -1)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "load_zones", entry["task_id"])
	assert.NotContains(t, entry, "records_in")

	buf.Reset()
	LogStageStart("derive", 5)
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(5), entry["records_in"])
}
