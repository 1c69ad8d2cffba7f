package loader

import (
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
)

// TextLoader plain UTF-8 text
type TextLoader struct{}

// NewTextLoader creates a TextLoader
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

func (l *TextLoader) Load(ctx context.Context, reader io.Reader) (*Document, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read text content: %w", err)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("text file is not valid UTF-8")
	}

	return &Document{
		Content: string(content),
		Metadata: map[string]interface{}{
			"loader": "text",
		},
	}, nil
}

func (l *TextLoader) SupportedTypes() []types.FileType {
	return []types.FileType{types.FileTypeTxt}
}
