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

package readers

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aaronlmathis/tripetl/core"
)

func TestPostgresReader_Validation(t *testing.T) {
	_, err := NewPostgresReader(context.Background(), WithPostgresQuery("SELECT 1"))
	var pgErr *PostgresReaderError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "validate", pgErr.Op)

	_, err = NewPostgresReader(context.Background(), WithPostgresDSN("postgres://localhost/db"))
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "validate", pgErr.Op)
}

func TestPostgresReader_Zones(t *testing.T) {
	dsn := os.Getenv("TRIPETL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TRIPETL_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.ExecContext(ctx, `DROP TABLE IF EXISTS tripetl_test_zones;
		CREATE TABLE tripetl_test_zones ("LocationID" integer, "Zone" text, "Borough" text, share numeric);
		INSERT INTO tripetl_test_zones VALUES (1, 'Newark Airport', 'EWR', 1.5), (2, NULL, 'Queens', NULL);`)
	require.NoError(t, err)
	defer db.ExecContext(ctx, "DROP TABLE IF EXISTS tripetl_test_zones")

	r, err := NewPostgresReader(ctx,
		WithPostgresDSN(dsn),
		WithPostgresQuery(`SELECT "LocationID", "Zone", "Borough", share FROM tripetl_test_zones WHERE "LocationID" >= $1 ORDER BY 1`, 1),
	)
	require.NoError(t, err)
	assert.Equal(t, "INT4", r.Schema()["LocationID"])

	got := drain(t, r)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0]["LocationID"])
	assert.Equal(t, "Newark Airport", got[0]["Zone"])
	assert.Equal(t, 1.5, got[0]["share"])
	assert.Nil(t, got[1]["Zone"])
	assert.Equal(t, int64(2), r.Stats().RecordsRead)
}

func TestMongoReader_Validation(t *testing.T) {
	_, err := NewMongoReader(WithMongoCollection("zones"))
	var mErr *MongoReaderError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "validate", mErr.Op)

	_, err = NewMongoReader(WithMongoDB("tripetl"))
	require.ErrorAs(t, err, &mErr)
}

func TestMongoReader_Zones(t *testing.T) {
	uri := os.Getenv("TRIPETL_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TRIPETL_TEST_MONGO_URI not set")
	}
	ctx := context.Background()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(ctx)
	coll := client.Database("tripetl_test").Collection("zones")
	require.NoError(t, coll.Drop(ctx))
	_, err = coll.InsertMany(ctx, []interface{}{
		bson.M{"LocationID": int32(1), "Zone": "Newark Airport", "Borough": "EWR", "service_zone": "EWR"},
		bson.M{"LocationID": int32(2), "Zone": nil, "Borough": "Queens"},
	})
	require.NoError(t, err)
	defer coll.Drop(ctx)

	r, err := NewMongoReader(
		WithMongoURI(uri),
		WithMongoDB("tripetl_test"),
		WithMongoCollection("zones"),
		WithMongoFields("LocationID", "Zone", "Borough"),
		WithMongoSort(bson.D{{Key: "LocationID", Value: 1}}),
	)
	require.NoError(t, err)

	got := drain(t, r)
	require.Len(t, got, 2)
	assert.Equal(t, core.Record{"LocationID": int32(1), "Zone": "Newark Airport", "Borough": "EWR"}, got[0])
	assert.Nil(t, got[1]["Zone"])
}
