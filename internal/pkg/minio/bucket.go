package minio

import (
	"context"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// MakeBucketOptions represents options for creating a bucket
type MakeBucketOptions struct {
	Region        string
	ObjectLocking bool
}

// MakeBucket creates a new bucket
func (c *Client) MakeBucket(ctx context.Context, bucketName string, opts MakeBucketOptions) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if err := ValidateBucketName(bucketName); err != nil {
		return WrapError("MakeBucket", ErrInvalidBucketName, bucketName, "")
	}

	err := c.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{
		Region:        opts.Region,
		ObjectLocking: opts.ObjectLocking,
	})
	if err != nil {
		return WrapError("MakeBucket", err, bucketName, "")
	}

	c.logger.Info("bucket created successfully",
		zap.String("bucket", bucketName),
		zap.String("region", opts.Region),
	)
	return nil
}

// BucketExists checks if a bucket exists
func (c *Client) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	if err := c.checkClosed(); err != nil {
		return false, err
	}
	if bucketName == "" {
		return false, WrapError("BucketExists", ErrInvalidBucketName, bucketName, "")
	}

	exists, err := c.client.BucketExists(ctx, bucketName)
	if err != nil {
		return false, WrapError("BucketExists", err, bucketName, "")
	}
	return exists, nil
}

// EnsureBucket creates bucketName unless it already exists
func (c *Client) EnsureBucket(ctx context.Context, bucketName string) error {
	exists, err := c.BucketExists(ctx, bucketName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = c.MakeBucket(ctx, bucketName, MakeBucketOptions{Region: c.config.Region})
	if err != nil && !IsBucketAlreadyExists(err) {
		return err
	}
	return nil
}
