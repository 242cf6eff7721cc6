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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(append([]string{"--env-file", ""}, args...)))
	return Load(flags)
}

func TestLoad_FlagsAndDefaults(t *testing.T) {
	c, err := load(t,
		"--job-name", "nyc-trips",
		"--trips", "s3://raw/trips/",
		"--zones", "zones.csv",
		"--output", "/tmp/out",
		"--workers", "3",
		"--task-timeout", "2m",
		"--aws-path-style",
	)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "nyc-trips", c.JobName)
	assert.Equal(t, "s3://raw/trips/", c.Trips)
	assert.Equal(t, ".parquet", c.TripsSuffix)
	assert.Equal(t, ZoneSourceCSV, c.ZoneSource)
	assert.Equal(t, DefaultZoneQuery, c.ZoneQuery)
	assert.Equal(t, 3, c.Workers)
	assert.Equal(t, 0, c.Partitions)
	assert.Equal(t, 2*time.Minute, c.Timeout)
	assert.Equal(t, "pickup", c.YearSource)
	assert.Equal(t, "job_runs", c.LedgerTable)
	assert.True(t, c.S3Options().PathStyle)
	assert.Equal(t, "3", c.Args()["workers"])
	assert.NotContains(t, c.Args(), "ledger_dsn")
}

func TestLoad_EnvAndPrecedence(t *testing.T) {
	t.Setenv("TRIPETL_JOB_NAME", "from-env")
	t.Setenv("TRIPETL_OUTPUT", "s3://env/out")
	t.Setenv("TRIPETL_WORKERS", "5")
	t.Setenv("TRIPETL_ZONE_SOURCE", "mongo")

	c, err := load(t, "--output", "/flag/out")
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.JobName)
	assert.Equal(t, "/flag/out", c.Output, "flags win over env")
	assert.Equal(t, 5, c.Workers)
	assert.Equal(t, ZoneSourceMongo, c.ZoneSource)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(yml, []byte(
		"job-name: from-yaml\ntrips: /data/trips\nzones: /data/zones.csv\noutput: /data/out\nworkers: 7\n"), 0o644))

	t.Setenv("TRIPETL_WORKERS", "2")
	c, err := load(t, "--config", yml)
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", c.JobName)
	assert.Equal(t, 2, c.Workers, "env wins over the config file")
	require.NoError(t, c.Validate())

	toml := filepath.Join(dir, "job.toml")
	require.NoError(t, os.WriteFile(toml, []byte("job-name = \"from-toml\"\npartitions = 16\n"), 0o644))
	c, err = load(t, "--config", toml)
	require.NoError(t, err)
	assert.Equal(t, "from-toml", c.JobName)
	assert.Equal(t, 16, c.Partitions)

	_, err = load(t, "--config", filepath.Join(dir, "missing.yaml"))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "config", cfgErr.Field)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRIPETL_TEST_DOTENV=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("TRIPETL_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("TRIPETL_TEST_DOTENV"))
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestValidate(t *testing.T) {
	c, err := load(t)
	require.NoError(t, err)
	err = c.Validate()
	require.Error(t, err)
	for _, field := range []string{"job-name", "trips", "output", "zones"} {
		assert.ErrorContains(t, err, "config "+field)
	}

	c = &Config{
		JobName: "j", Trips: "t", Output: "o",
		ZoneSource: ZoneSourcePostgres, ZoneQuery: DefaultZoneQuery,
		Workers: 1, YearSource: "column", LogLevel: "info", LogFormat: "json",
	}
	assert.ErrorContains(t, c.Validate(), "zone-postgres-dsn")
	c.ZonePostgresDSN = "postgres://localhost/zones"
	assert.NoError(t, c.Validate())

	c.ZoneSource = "sqlite"
	c.Workers = 0
	c.YearSource = "dropoff"
	err = c.Validate()
	assert.ErrorContains(t, err, "zone-source")
	assert.ErrorContains(t, err, "workers")
	assert.ErrorContains(t, err, "year-source")

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
