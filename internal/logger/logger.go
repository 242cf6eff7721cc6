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

// Package logger provides structured logging for TripETL.
// It wraps log/slog with a package-level logger and stage helpers that use
// snake_case keys.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is the default logger instance.
var Logger *slog.Logger

var (
	mu     sync.Mutex
	level  = new(slog.LevelVar)
	format = "text"
	output io.Writer = os.Stderr
)

func init() {
	level.Set(slog.LevelInfo)
	rebuild()
}

func rebuild() {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = slog.NewTextHandler(output, opts)
	}
	Logger = slog.New(h)
}

// SetLevel configures the logging level.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// ParseLevel maps debug, info, warn and error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// SetFormat switches between the "text" and "json" handlers.
func SetFormat(f string) error {
	f = strings.ToLower(strings.TrimSpace(f))
	if f != "text" && f != "json" {
		return fmt.Errorf("unknown log format %q", f)
	}
	mu.Lock()
	defer mu.Unlock()
	format = f
	rebuild()
	return nil
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// WithJob returns a logger carrying the job name and run id.
func WithJob(jobName, runID string) *slog.Logger {
	return Logger.With(slog.String("job_name", jobName), slog.String("run_id", runID))
}

// LogStageStart logs the start of a DAG task. A negative recordsIn is left
// out, as for sources whose row count is only known once they finish.
func LogStageStart(taskID string, recordsIn int) {
	attrs := []any{slog.String("task_id", taskID)}
	if recordsIn >= 0 {
		attrs = append(attrs, slog.Int("records_in", recordsIn))
	}
	Logger.Debug("stage started", attrs...)
}

// LogStageEnd logs the outcome of a DAG task. A non-nil err is logged at error level.
func LogStageEnd(taskID string, recordsIn, recordsOut int, duration time.Duration, err error) {
	attrs := []any{
		slog.String("task_id", taskID),
		slog.Int("records_in", recordsIn),
		slog.Int("records_out", recordsOut),
		slog.Int64("duration_ms", duration.Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		Logger.Error("stage failed", attrs...)
		return
	}
	Logger.Info("stage completed", attrs...)
}
