package loader

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
)

// PDFLoader extracts page text with MuPDF
type PDFLoader struct{}

// NewPDFLoader creates a PDFLoader
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

func (l *PDFLoader) Load(ctx context.Context, reader io.Reader) (*Document, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF data: %w", err)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	numPages := doc.NumPage()
	skipped := 0

	for i := 0; i < numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := doc.Text(i)
		if err != nil {
			skipped++
			continue
		}
		sb.WriteString(text)
	}

	return &Document{
		Content: sb.String(),
		Metadata: map[string]interface{}{
			"loader":        "pdf",
			"page_count":    numPages,
			"skipped_pages": skipped,
		},
	}, nil
}

func (l *PDFLoader) SupportedTypes() []types.FileType {
	return []types.FileType{types.FileTypePdf}
}
