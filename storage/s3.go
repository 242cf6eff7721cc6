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

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// deleteBatch is the DeleteObjects per-request key limit.
const deleteBatch = 1000

// S3Options configures the shared S3 client.
type S3Options struct {
	Region          string // AWS region
	Profile         string // Shared config profile
	Endpoint        string // Custom endpoint for S3-compatible services
	PathStyle       bool   // Use path-style addressing
	AccessKeyID     string // Explicit credentials, optional
	SecretAccessKey string
	SessionToken    string
}

// S3API is the subset of the S3 client used by this module.
type S3API interface {
	s3manager.UploadAPIClient
	s3manager.DownloadAPIClient
	s3.ListObjectsV2APIClient
	DeleteObjects(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// NewS3Client loads the default AWS config chain and applies opts.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if opts.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	}), nil
}

// ListKeys returns every key under prefix in lexical order.
func ListKeys(ctx context.Context, client s3.ListObjectsV2APIClient, bucket, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

// S3Location writes objects beneath an S3 prefix. Begin deletes everything
// under the prefix, so an S3 overwrite is not atomic.
type S3Location struct {
	Bucket   string
	Prefix   string
	client   S3API
	uploader *s3manager.Uploader
}

// NewS3Location creates a location for s3://bucket/prefix.
func NewS3Location(client S3API, bucket, prefix string) *S3Location {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Location{
		Bucket:   bucket,
		Prefix:   prefix,
		client:   client,
		uploader: s3manager.NewUploader(client),
	}
}

// Begin deletes all objects under the prefix.
func (s *S3Location) Begin(ctx context.Context) error {
	keys, err := ListKeys(ctx, s.client, s.Bucket, s.Prefix)
	if err != nil {
		return &LocationError{Op: "begin", Err: err}
	}

	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.Bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return &LocationError{Op: "begin", Err: fmt.Errorf("delete objects: %w", err)}
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return &LocationError{Op: "begin", Err: fmt.Errorf("delete %s: %s",
				aws.ToString(e.Key), aws.ToString(e.Message))}
		}
	}
	return nil
}

// Create buffers an object in memory and uploads it on Close.
func (s *S3Location) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return nil, &LocationError{Op: "create", Err: fmt.Errorf("invalid key %q", key)}
	}
	return &s3WriteCloser{
		ctx:      ctx,
		buf:      &bytes.Buffer{},
		uploader: s.uploader,
		bucket:   s.Bucket,
		key:      s.Prefix + key,
	}, nil
}

// Commit is a no-op; objects are visible once uploaded.
func (s *S3Location) Commit(ctx context.Context) error { return nil }

// Abort is a no-op; uploaded objects are left in place.
func (s *S3Location) Abort(ctx context.Context) error { return nil }

func (s *S3Location) String() string {
	return "s3://" + s.Bucket + "/" + s.Prefix
}

type s3WriteCloser struct {
	ctx      context.Context
	buf      *bytes.Buffer
	uploader *s3manager.Uploader
	bucket   string
	key      string
	closed   bool
}

func (w *s3WriteCloser) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *s3WriteCloser) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_, err := w.uploader.Upload(w.ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	if err != nil {
		return &LocationError{Op: "upload", Err: fmt.Errorf("s3://%s/%s: %w", w.bucket, w.key, err)}
	}
	return nil
}
