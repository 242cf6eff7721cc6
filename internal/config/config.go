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

// Package config loads the TripETL job parameters from flags, TRIPETL_*
// environment variables, an optional .env file and an optional YAML or
// TOML config file. Flags win over the environment, which wins over the
// config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aaronlmathis/tripetl/storage"
)

// EnvPrefix prefixes every environment variable, e.g. TRIPETL_JOB_NAME.
const EnvPrefix = "TRIPETL"

// Zone sources.
const (
	ZoneSourceCSV      = "csv"
	ZoneSourcePostgres = "postgres"
	ZoneSourceMongo    = "mongo"
)

// DefaultZoneQuery reads the lookup table when zones come from PostgreSQL.
const DefaultZoneQuery = `SELECT "LocationID", "Zone", "Borough" FROM taxi_zone_lookup`

// ConfigError reports an invalid or unreadable setting.
type ConfigError struct {
	Field string
	Err   error
}

// Error returns the error string for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error for ConfigError.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Config holds every job parameter.
type Config struct {
	JobName string

	Trips       string // Local file, local directory or s3:// location
	TripsSuffix string
	Zones       string // CSV location when ZoneSource is csv
	ZoneSource  string

	ZonePostgresDSN     string
	ZoneQuery           string
	ZoneMongoURI        string
	ZoneMongoDatabase   string
	ZoneMongoCollection string

	Output     string
	Workers    int
	Partitions int
	YearSource string
	Timeout    time.Duration

	AWSRegion    string
	AWSEndpoint  string
	AWSProfile   string
	AWSPathStyle bool

	LedgerDSN            string
	LedgerTable          string
	LedgerPartitionTable string

	LogLevel  string
	LogFormat string
}

// RegisterFlags defines every setting on flags with its default.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to a YAML or TOML config file")
	flags.String("env-file", ".env", "Dotenv file loaded when present")

	flags.String("job-name", "", "Name of the job, recorded with every run")
	flags.String("trips", "", "Trip parquet file, directory or s3://bucket/prefix")
	flags.String("trips-suffix", ".parquet", "Suffix of trip files inside a directory or prefix")
	flags.String("zones", "", "Zone lookup CSV, local or s3://")
	flags.String("zone-source", ZoneSourceCSV, "Zone lookup source: csv, postgres or mongo")
	flags.String("zone-postgres-dsn", "", "PostgreSQL DSN for the zone lookup")
	flags.String("zone-query", DefaultZoneQuery, "Query returning LocationID, Zone and Borough")
	flags.String("zone-mongo-uri", "", "MongoDB URI for the zone lookup")
	flags.String("zone-mongo-database", "", "MongoDB database holding the zone lookup")
	flags.String("zone-mongo-collection", "taxi_zone_lookup", "MongoDB collection holding the zone lookup")

	flags.String("output", "", "Output directory or s3://bucket/prefix, overwritten on every run")
	flags.Int("workers", runtime.NumCPU(), "Goroutines per stage")
	flags.Int("partitions", 0, "Chunks per stage, 0 means one per worker")
	flags.String("year-source", "pickup", "Partition year source: pickup or column")
	flags.Duration("task-timeout", 0, "Per-stage timeout, 0 for none")

	flags.String("aws-region", "", "AWS region for s3:// locations")
	flags.String("aws-endpoint", "", "Custom S3 endpoint, e.g. MinIO")
	flags.String("aws-profile", "", "Shared config profile")
	flags.Bool("aws-path-style", false, "Use path-style S3 addressing")

	flags.String("ledger-dsn", "", "PostgreSQL DSN of the run ledger, empty to disable")
	flags.String("ledger-table", "job_runs", "Run ledger table")
	flags.String("ledger-partition-table", "", "Per-partition ledger table, empty to skip")

	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
}

// LoadDotEnv loads path into the environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return &ConfigError{Field: "env-file", Err: err}
	}
	return nil
}

// SetAllConfig resolves every flag from, in order, the command line, the
// environment and the config file, and writes the result back into flags.
func SetAllConfig(v *viper.Viper, flags *pflag.FlagSet, envPrefix string) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		switch strings.ToLower(filepath.Ext(c)) {
		case ".yml", ".yaml":
			v.SetConfigType("yaml")
		default:
			v.SetConfigType("toml")
		}
		if err := v.ReadInConfig(); err != nil {
			return &ConfigError{Field: "config", Err: fmt.Errorf("reading %s: %w", c, err)}
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}
		if err := f.Value.Set(v.GetString(f.Name)); err != nil {
			flagErr = &ConfigError{Field: f.Name, Err: err}
		}
	})
	return flagErr
}

// Load resolves flags through SetAllConfig and reads them into a Config.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := LoadDotEnv(stringFlag(flags, "env-file")); err != nil {
		return nil, err
	}
	if err := SetAllConfig(viper.New(), flags, EnvPrefix); err != nil {
		return nil, err
	}

	c := &Config{
		JobName:              stringFlag(flags, "job-name"),
		Trips:                stringFlag(flags, "trips"),
		TripsSuffix:          stringFlag(flags, "trips-suffix"),
		Zones:                stringFlag(flags, "zones"),
		ZoneSource:           strings.ToLower(stringFlag(flags, "zone-source")),
		ZonePostgresDSN:      stringFlag(flags, "zone-postgres-dsn"),
		ZoneQuery:            stringFlag(flags, "zone-query"),
		ZoneMongoURI:         stringFlag(flags, "zone-mongo-uri"),
		ZoneMongoDatabase:    stringFlag(flags, "zone-mongo-database"),
		ZoneMongoCollection:  stringFlag(flags, "zone-mongo-collection"),
		Output:               stringFlag(flags, "output"),
		YearSource:           stringFlag(flags, "year-source"),
		AWSRegion:            stringFlag(flags, "aws-region"),
		AWSEndpoint:          stringFlag(flags, "aws-endpoint"),
		AWSProfile:           stringFlag(flags, "aws-profile"),
		LedgerDSN:            stringFlag(flags, "ledger-dsn"),
		LedgerTable:          stringFlag(flags, "ledger-table"),
		LedgerPartitionTable: stringFlag(flags, "ledger-partition-table"),
		LogLevel:             stringFlag(flags, "log-level"),
		LogFormat:            stringFlag(flags, "log-format"),
	}

	var err error
	if c.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, &ConfigError{Field: "workers", Err: err}
	}
	if c.Partitions, err = flags.GetInt("partitions"); err != nil {
		return nil, &ConfigError{Field: "partitions", Err: err}
	}
	if c.Timeout, err = flags.GetDuration("task-timeout"); err != nil {
		return nil, &ConfigError{Field: "task-timeout", Err: err}
	}
	if c.AWSPathStyle, err = flags.GetBool("aws-path-style"); err != nil {
		return nil, &ConfigError{Field: "aws-path-style", Err: err}
	}
	return c, nil
}

// Validate reports every invalid setting, joined.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, format string, args ...interface{}) {
		errs = append(errs, &ConfigError{Field: field, Err: fmt.Errorf(format, args...)})
	}

	if strings.TrimSpace(c.JobName) == "" {
		bad("job-name", "is required")
	}
	if c.Trips == "" {
		bad("trips", "is required")
	} else if _, err := storage.ParseURI(c.Trips); err != nil {
		bad("trips", "%v", err)
	}
	if c.Output == "" {
		bad("output", "is required")
	} else if _, err := storage.ParseURI(c.Output); err != nil {
		bad("output", "%v", err)
	}

	switch c.ZoneSource {
	case ZoneSourceCSV:
		if c.Zones == "" {
			bad("zones", "is required when zone-source is csv")
		} else if _, err := storage.ParseURI(c.Zones); err != nil {
			bad("zones", "%v", err)
		}
	case ZoneSourcePostgres:
		if c.ZonePostgresDSN == "" {
			bad("zone-postgres-dsn", "is required when zone-source is postgres")
		}
		if c.ZoneQuery == "" {
			bad("zone-query", "is required when zone-source is postgres")
		}
	case ZoneSourceMongo:
		if c.ZoneMongoURI == "" {
			bad("zone-mongo-uri", "is required when zone-source is mongo")
		}
		if c.ZoneMongoDatabase == "" {
			bad("zone-mongo-database", "is required when zone-source is mongo")
		}
		if c.ZoneMongoCollection == "" {
			bad("zone-mongo-collection", "is required when zone-source is mongo")
		}
	default:
		bad("zone-source", "unknown source %q (want csv, postgres or mongo)", c.ZoneSource)
	}

	if c.Workers < 1 {
		bad("workers", "must be at least 1, got %d", c.Workers)
	}
	if c.Partitions < 0 {
		bad("partitions", "must not be negative, got %d", c.Partitions)
	}
	if c.Timeout < 0 {
		bad("task-timeout", "must not be negative")
	}
	switch c.YearSource {
	case "pickup", "column":
	default:
		bad("year-source", "unknown source %q (want pickup or column)", c.YearSource)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		bad("log-format", "unknown format %q", c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		bad("log-level", "unknown level %q", c.LogLevel)
	}
	if c.LedgerDSN != "" && c.LedgerTable == "" {
		bad("ledger-table", "is required when ledger-dsn is set")
	}

	return errors.Join(errs...)
}

// S3Options returns the client settings for s3:// locations.
func (c *Config) S3Options() storage.S3Options {
	return storage.S3Options{
		Region:    c.AWSRegion,
		Profile:   c.AWSProfile,
		Endpoint:  c.AWSEndpoint,
		PathStyle: c.AWSPathStyle,
	}
}

// Args returns the engine arguments recorded with a run. Secrets such as
// DSNs and URIs are left out.
func (c *Config) Args() map[string]string {
	return map[string]string{
		"trips":       c.Trips,
		"zones":       c.Zones,
		"zone_source": c.ZoneSource,
		"output":      c.Output,
		"workers":     strconv.Itoa(c.Workers),
		"partitions":  strconv.Itoa(c.Partitions),
		"year_source": c.YearSource,
	}
}

func stringFlag(flags *pflag.FlagSet, name string) string {
	s, _ := flags.GetString(name)
	return s
}
