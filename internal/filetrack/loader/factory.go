package loader

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/unidoc/unioffice/common/license"
)

var licenseOnce sync.Once

// SetOfficeLicense registers the metered unioffice key once per process
func SetOfficeLicense(key string) error {
	var err error
	licenseOnce.Do(func() {
		if key == "" {
			return
		}
		if setErr := license.SetMeteredKey(key); setErr != nil {
			err = fmt.Errorf("failed to set unioffice license: %w", setErr)
		}
	})
	return err
}

// Factory picks a Loader by file type
type Factory struct {
	loaders map[types.FileType]Loader
}

// NewFactory registers every built-in loader. Legacy .xls workbooks are
// not supported.
func NewFactory() *Factory {
	f := &Factory{loaders: make(map[types.FileType]Loader)}
	f.Register(NewTextLoader())
	f.Register(NewPDFLoader())
	f.Register(NewDOCXLoader())
	f.Register(NewXLSXLoader())
	f.Register(NewEMLLoader())
	return f
}

// Register adds or replaces the loader for its types
func (f *Factory) Register(l Loader) {
	for _, ft := range l.SupportedTypes() {
		f.loaders[ft] = l
	}
}

// CreateLoader loader for fileType
func (f *Factory) CreateLoader(fileType types.FileType) (Loader, error) {
	l, ok := f.loaders[fileType]
	if !ok {
		return nil, apperrors.New(apperrors.ErrUnsupportedFileType, string(fileType))
	}
	return l, nil
}

// SupportedTypes registered file types, sorted
func (f *Factory) SupportedTypes() []types.FileType {
	out := make([]types.FileType, 0, len(f.loaders))
	for ft := range f.loaders {
		out = append(out, ft)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Extract returns the trimmed text of the document named name.
// Errors: ErrUnsupportedFileType, ErrNoTextExtracted.
func (f *Factory) Extract(ctx context.Context, name string, r io.Reader) (string, error) {
	ft, err := FileTypeOf(name)
	if err != nil {
		return "", err
	}
	l, err := f.CreateLoader(ft)
	if err != nil {
		return "", err
	}

	doc, err := l.Load(ctx, r)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrNoTextExtracted, name)
	}
	text := strings.TrimSpace(doc.Content)
	if text == "" {
		return "", apperrors.New(apperrors.ErrNoTextExtracted, name)
	}
	return text, nil
}
