package minio

import (
	"context"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// PutObjectOptions represents options for uploading an object
type PutObjectOptions struct {
	ContentType  string
	UserMetadata map[string]string
	StorageClass string
}

// UploadInfo represents information about an uploaded object
type UploadInfo struct {
	Bucket       string
	Key          string
	ETag         string
	Size         int64
	LastModified time.Time
	VersionID    string
}

// FPutObject uploads a file to a bucket
func (c *Client) FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts PutObjectOptions) (UploadInfo, error) {
	if err := c.checkClosed(); err != nil {
		return UploadInfo{}, err
	}
	if bucketName == "" {
		return UploadInfo{}, WrapError("FPutObject", ErrInvalidBucketName, bucketName, objectName)
	}
	if err := ValidateObjectName(objectName); err != nil {
		return UploadInfo{}, WrapError("FPutObject", ErrInvalidObjectName, bucketName, objectName)
	}
	if filePath == "" {
		return UploadInfo{}, WrapErrorWithMessage("FPutObject", ErrInvalidArgument, "file path is required")
	}

	info, err := c.client.FPutObject(ctx, bucketName, objectName, filePath, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.UserMetadata,
		StorageClass: opts.StorageClass,
	})
	if err != nil {
		return UploadInfo{}, WrapError("FPutObject", err, bucketName, objectName)
	}

	c.logger.Debug("file uploaded successfully",
		zap.String("bucket", bucketName),
		zap.String("object", objectName),
		zap.Int64("size", info.Size),
	)

	return UploadInfo{
		Bucket:       info.Bucket,
		Key:          info.Key,
		ETag:         info.ETag,
		Size:         info.Size,
		LastModified: info.LastModified,
		VersionID:    info.VersionID,
	}, nil
}
