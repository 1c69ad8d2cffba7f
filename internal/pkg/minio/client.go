// Package minio wraps minio-go for uploading backups to S3-compatible
// object storage.
package minio

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Client wraps the MinIO client with additional functionality
type Client struct {
	client *minio.Client
	config *Config
	logger *logger.Logger
	mu     sync.RWMutex
	closed bool
}

// NewClient creates a new MinIO client
func NewClient(cfg *Config, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidArgument
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, WrapErrorWithMessage("NewClient", err, "invalid configuration")
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}

	switch cfg.BucketLookup {
	case BucketLookupDNS:
		opts.BucketLookup = minio.BucketLookupDNS
	case BucketLookupPath:
		opts.BucketLookup = minio.BucketLookupPath
	default:
		opts.BucketLookup = minio.BucketLookupAuto
	}

	minioClient, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, WrapErrorWithMessage("NewClient", err, "failed to create minio client")
	}
	if cfg.TraceEnabled {
		minioClient.TraceOn(os.Stderr)
	}

	client := &Client{
		client: minioClient,
		config: cfg,
		logger: logger.OrGlobal(log).Named("minio"),
	}

	client.logger.Info("minio client initialized successfully",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("region", cfg.Region),
		zap.Bool("use_ssl", cfg.UseSSL),
		zap.String("bucket_lookup", string(cfg.BucketLookup)),
	)
	return client, nil
}

// Ping checks if the MinIO server is accessible by listing buckets
func (c *Client) Ping(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if _, err := c.client.ListBuckets(ctx); err != nil {
		return WrapErrorWithMessage("Ping", err, "failed to connect to minio server")
	}
	return nil
}

// Close marks the client closed; later calls fail
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Info("minio client closed")
	return nil
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) checkClosed() error {
	if c.IsClosed() {
		return fmt.Errorf("minio: client is closed")
	}
	return nil
}
