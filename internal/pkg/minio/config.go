package minio

import (
	"errors"
)

// BucketLookupType represents the type of bucket lookup
type BucketLookupType string

const (
	// BucketLookupAuto automatically determines the bucket lookup type
	BucketLookupAuto BucketLookupType = "auto"
	// BucketLookupDNS uses DNS-style bucket lookup (bucket.endpoint)
	BucketLookupDNS BucketLookupType = "dns"
	// BucketLookupPath uses path-style bucket lookup (endpoint/bucket)
	BucketLookupPath BucketLookupType = "path"
)

// Config represents the configuration for MinIO client
type Config struct {
	// Endpoint is the S3-compatible object storage endpoint, e.g. "localhost:9000"
	Endpoint string

	AccessKeyID     string
	SecretAccessKey string
	// SessionToken for temporary credentials (optional)
	SessionToken string

	// Region of the object storage (optional)
	Region string

	// UseSSL determines whether to use HTTPS (true) or HTTP (false)
	UseSSL bool

	// BucketLookup specifies the bucket lookup type. Default: BucketLookupAuto
	BucketLookup BucketLookupType

	// TraceEnabled enables HTTP request/response tracing for debugging
	TraceEnabled bool
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: endpoint is required")
	}
	if c.AccessKeyID == "" {
		return errors.New("minio: access key ID is required")
	}
	if c.SecretAccessKey == "" {
		return errors.New("minio: secret access key is required")
	}

	switch c.BucketLookup {
	case "", BucketLookupAuto, BucketLookupDNS, BucketLookupPath:
	default:
		return errors.New("minio: invalid bucket lookup type")
	}
	return nil
}

// SetDefaults sets default values for unspecified configuration fields
func (c *Config) SetDefaults() {
	if c.BucketLookup == "" {
		c.BucketLookup = BucketLookupAuto
	}
}
