package minio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidation(t *testing.T) {
	valid := Config{Endpoint: "localhost:9000", AccessKeyID: "minioadmin", SecretAccessKey: "minioadmin"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }},
		{"missing access key", func(c *Config) { c.AccessKeyID = "" }},
		{"missing secret", func(c *Config) { c.SecretAccessKey = "" }},
		{"bad lookup", func(c *Config) { c.BucketLookup = "virtual" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := valid
	cfg.SetDefaults()
	assert.Equal(t, BucketLookupAuto, cfg.BucketLookup)
}

func TestNewClientRejectsInvalidConfig(t *testing.T) {
	_, err := NewClient(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewClient(&Config{}, nil)
	var minioErr *Error
	assert.True(t, errors.As(err, &minioErr))
	assert.Equal(t, "NewClient", minioErr.Op)
}

func TestClosedClient(t *testing.T) {
	c, err := NewClient(&Config{Endpoint: "localhost:9000", AccessKeyID: "a", SecretAccessKey: "b"}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())

	ctx := context.Background()
	_, err = c.FPutObject(ctx, "backups", "a/b.txt", "/tmp/b.txt", PutObjectOptions{})
	assert.Error(t, err)
	assert.Error(t, c.EnsureBucket(ctx, "backups"))
	assert.Error(t, c.Ping(ctx))
}

func TestValidateBucketName(t *testing.T) {
	assert.NoError(t, ValidateBucketName("docsense-backups"))
	for _, name := range []string{"", "ab", "Upper", "has--dash", "192.168.1.10", "xn--bucket", "name-s3alias"} {
		assert.Error(t, ValidateBucketName(name), name)
	}
}

func TestObjectNames(t *testing.T) {
	assert.NoError(t, ValidateObjectName("backup/file.txt"))
	assert.Error(t, ValidateObjectName(""))
	assert.Error(t, ValidateObjectName("bad\x00name"))

	assert.Equal(t, "backup/a/b.txt", SanitizeObjectName("/backup//a///b.txt/"))
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", DetectContentType("report.pdf"))
	assert.Equal(t, "application/octet-stream", DetectContentType("README"))
	assert.Equal(t, "application/octet-stream", DetectContentType("x.unknownext"))
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("boom")
	assert.Equal(t, "minio: Put failed for bucket=b, object=o: boom", WrapError("Put", cause, "b", "o").Error())
	assert.Equal(t, "minio: Ping failed: no route: boom", WrapErrorWithMessage("Ping", cause, "no route").Error())
	assert.Nil(t, WrapError("Put", nil, "b", "o"))
	assert.True(t, IsNotFound(WrapError("Get", ErrObjectNotFound, "b", "o")))
	assert.ErrorIs(t, WrapError("Put", cause, "b", "o"), cause)
}
