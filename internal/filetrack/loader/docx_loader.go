package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	"github.com/unidoc/unioffice/document"
)

// DOCXLoader Word paragraphs, one per line
type DOCXLoader struct{}

// NewDOCXLoader creates a DOCXLoader
func NewDOCXLoader() *DOCXLoader {
	return &DOCXLoader{}
}

func (l *DOCXLoader) Load(ctx context.Context, reader io.Reader) (*Document, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read DOCX data: %w", err)
	}

	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX document: %w", err)
	}
	defer doc.Close()

	paragraphs := doc.Paragraphs()
	lines := make([]string, 0, len(paragraphs))
	for _, para := range paragraphs {
		var sb strings.Builder
		for _, run := range para.Runs() {
			sb.WriteString(run.Text())
		}
		lines = append(lines, sb.String())
	}

	return &Document{
		Content: strings.Join(lines, "\n"),
		Metadata: map[string]interface{}{
			"loader":     "docx",
			"paragraphs": len(paragraphs),
		},
	}, nil
}

func (l *DOCXLoader) SupportedTypes() []types.FileType {
	return []types.FileType{types.FileTypeDocx}
}
