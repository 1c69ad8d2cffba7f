package minio

import (
	"fmt"
	"mime"
	"net"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

const maxObjectNameLen = 1024

// S3 bucket naming: 3-63 chars of lowercase letters, digits and hyphens
var bucketNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]{1,61}[a-z0-9]$`)

// ValidateBucketName 校验桶名
func ValidateBucketName(bucketName string) error {
	switch {
	case bucketName == "":
		return fmt.Errorf("bucket name cannot be empty")
	case !bucketNameRegex.MatchString(bucketName):
		return fmt.Errorf("invalid bucket name %q: 3-63 lowercase letters, digits or hyphens", bucketName)
	case strings.Contains(bucketName, "--"):
		return fmt.Errorf("invalid bucket name %q: consecutive hyphens", bucketName)
	case strings.HasSuffix(bucketName, "-s3alias"):
		return fmt.Errorf("invalid bucket name %q: reserved suffix", bucketName)
	case net.ParseIP(bucketName) != nil:
		return fmt.Errorf("invalid bucket name %q: looks like an IP address", bucketName)
	}
	return nil
}

// ValidateObjectName 校验对象名
func ValidateObjectName(objectName string) error {
	if objectName == "" {
		return fmt.Errorf("object name cannot be empty")
	}
	if len(objectName) > maxObjectNameLen {
		return fmt.Errorf("object name exceeds %d bytes", maxObjectNameLen)
	}
	if strings.ContainsRune(objectName, 0) {
		return fmt.Errorf("object name cannot contain null bytes")
	}
	return nil
}

// DetectContentType MIME type by extension, application/octet-stream when unknown
func DetectContentType(filePath string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filePath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// SanitizeObjectName drops null bytes, collapses slashes and trims the
// leading and trailing ones
func SanitizeObjectName(objectName string) string {
	objectName = strings.ReplaceAll(objectName, "\x00", "")
	objectName = strings.ReplaceAll(objectName, "\\", "/")
	if objectName == "" {
		return ""
	}
	cleaned := strings.Trim(path.Clean("/"+objectName), "/")
	if cleaned == "." {
		return ""
	}
	return cleaned
}
