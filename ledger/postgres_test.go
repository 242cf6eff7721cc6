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

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tripetl "github.com/aaronlmathis/tripetl"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TRIPETL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TRIPETL_TEST_POSTGRES_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLedgerError(t *testing.T) {
	err := &LedgerError{Op: "begin", Err: sql.ErrConnDone}
	assert.Equal(t, "ledger begin: sql: connection is already closed", err.Error())
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestPostgresLedger_Lifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	runs := "tripetl_test_runs_" + suffix
	parts := "tripetl_test_parts_" + suffix
	t.Cleanup(func() {
		db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s, %s", runs, parts))
	})

	l, err := NewPostgresLedgerFromDB(ctx, db, WithTable(runs), WithPartitionTable(parts))
	require.NoError(t, err)

	ok := tripetl.RunInfo{RunID: uuid.NewString(), JobName: "nyc-trips", Args: map[string]string{"output": "s3://b/p"}, Start: time.Now().UTC()}
	require.NoError(t, l.Begin(ctx, ok))
	status, err := l.Status(ctx, ok.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status)

	require.NoError(t, l.Commit(ctx, ok, tripetl.RunSummary{
		RowsRead: 10, RowsWritten: 7,
		Partitions: map[string]int64{"2022": 3, "2023": 4},
	}))
	status, err = l.Status(ctx, ok.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, status)

	var written int64
	var partitions string
	require.NoError(t, db.QueryRow(
		fmt.Sprintf("SELECT rows_written, partitions::text FROM %s WHERE run_id = $1", runs), ok.RunID,
	).Scan(&written, &partitions))
	assert.Equal(t, int64(7), written)
	assert.JSONEq(t, `{"2022":3,"2023":4}`, partitions)

	var total int64
	require.NoError(t, db.QueryRow(
		fmt.Sprintf(`SELECT SUM("rows") FROM %s WHERE run_id = $1`, parts), ok.RunID,
	).Scan(&total))
	assert.Equal(t, int64(7), total)

	failed := tripetl.RunInfo{RunID: uuid.NewString(), JobName: "nyc-trips", Start: time.Now().UTC()}
	require.NoError(t, l.Begin(ctx, failed))
	require.NoError(t, l.Abort(ctx, failed, errors.New("task normalize failed: bad timestamp")))
	status, err = l.Status(ctx, failed.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)

	var ledgerErr *LedgerError
	err = l.Commit(ctx, tripetl.RunInfo{RunID: "missing"}, tripetl.RunSummary{})
	require.ErrorAs(t, err, &ledgerErr)
	assert.Equal(t, "commit", ledgerErr.Op)

	err = l.Begin(ctx, ok)
	require.ErrorAs(t, err, &ledgerErr, "run ids are unique")
	assert.NoError(t, l.Close())
}
