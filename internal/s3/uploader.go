// Copyright (c) 2025 Fabtrak Systems, Inc. All rights reserved.

package s3

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/fabtrak/trace-exporter/internal/config"
)

const (
	// Max retries for S3 operations
	maxS3Retries = 5
	// Initial retry delay
	initialRetryDelay = 1 * time.Second
)

// Uploader mirrors finished CSV snapshots to S3. The local file stays the
// source of truth; a failed mirror never fails the cycle.
type Uploader struct {
	client   *s3.Client
	uploader *manager.Uploader
	config   *config.Config
	logger   *zap.Logger
}

// NewUploader creates an S3 uploader using the default credential chain.
// A custom endpoint (for LocalStack testing) can be set via the
// AWS_ENDPOINT_URL environment variable.
func NewUploader(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}

	endpoint := os.Getenv("AWS_ENDPOINT_URL")
	if endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(endpoint))
		logger.Info("Using custom S3 endpoint", zap.String("endpoint", endpoint))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.UsePathStyle = true // required for LocalStack
		}
	})

	return &Uploader{
		client:   client,
		uploader: manager.NewUploader(client),
		config:   cfg,
		logger:   logger,
	}, nil
}

// Key returns the S3 key a snapshot is mirrored under.
func (u *Uploader) Key(path string) string {
	return fmt.Sprintf("%s/%s", u.config.S3Prefix, filepath.Base(path))
}

// MirrorSnapshot uploads one snapshot file, retrying with exponential
// backoff on failure.
func (u *Uploader) MirrorSnapshot(ctx context.Context, path string) error {
	var lastErr error
	delay := initialRetryDelay

	for attempt := 1; attempt <= maxS3Retries; attempt++ {
		err := u.uploadFile(ctx, path)
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt < maxS3Retries {
			u.logger.Warn("Upload failed, retrying",
				zap.String("file", path),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", maxS3Retries),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("upload failed after %d attempts: %w", maxS3Retries, lastErr)
}

// uploadFile performs a single upload attempt.
func (u *Uploader) uploadFile(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	key := u.Key(path)
	_, err = u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.config.S3Bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	u.logger.Info("Snapshot mirrored to S3",
		zap.String("s3_key", key),
		zap.Int64("size", fileInfo.Size()))

	return nil
}
