// Package storage constructs the S3 client backing the durable usage
// store.
package storage

import (
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/fluentup-app/fluentup/internal/config"
)

// NewS3Client builds an S3 client from the storage configuration.
// Credentials come from the default AWS chain (env, shared config,
// instance role). The endpoint override supports S3-compatible stores.
func NewS3Client(cfg config.StorageConfig) (s3iface.S3API, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}

	slog.Info("configured S3 storage", "bucket", cfg.Bucket, "region", cfg.Region, "prefix", cfg.Prefix)
	return s3.New(sess), nil
}
