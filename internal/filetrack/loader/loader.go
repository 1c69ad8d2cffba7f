// Package loader extracts plain text from uploaded documents.
package loader

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
)

// Loader extracts text from one document format
type Loader interface {
	// Load reads the whole document from reader
	Load(ctx context.Context, reader io.Reader) (*Document, error)

	// SupportedTypes file types handled by this loader
	SupportedTypes() []types.FileType
}

// Document extracted text
type Document struct {
	Content  string
	Metadata map[string]interface{}
}

// FileTypeOf maps a path's extension to a file type
func FileTypeOf(path string) (types.FileType, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch types.FileType(ext) {
	case types.FileTypeTxt, types.FileTypePdf, types.FileTypeDocx,
		types.FileTypeXlsx, types.FileTypeXls, types.FileTypeEml:
		return types.FileType(ext), nil
	}
	if ext == "" {
		return "", apperrors.New(apperrors.ErrUnsupportedFileType, "file has no extension")
	}
	return "", apperrors.New(apperrors.ErrUnsupportedFileType, "."+ext)
}
