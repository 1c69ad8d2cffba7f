package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	"github.com/unidoc/unioffice/spreadsheet"
)

// XLSXLoader one "[sheet]" block per sheet, cells tab separated
type XLSXLoader struct{}

// NewXLSXLoader creates an XLSXLoader
func NewXLSXLoader() *XLSXLoader {
	return &XLSXLoader{}
}

func (l *XLSXLoader) Load(ctx context.Context, reader io.Reader) (*Document, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read XLSX data: %w", err)
	}

	wb, err := spreadsheet.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX workbook: %w", err)
	}
	defer wb.Close()

	var sb strings.Builder
	sheets := wb.Sheets()
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "[%s]\n", sheet.Name())
		for _, row := range sheet.Rows() {
			cells := row.Cells()
			values := make([]string, 0, len(cells))
			for _, cell := range cells {
				values = append(values, cell.GetFormattedValue())
			}
			line := strings.TrimRight(strings.Join(values, "\t"), "\t")
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return &Document{
		Content: sb.String(),
		Metadata: map[string]interface{}{
			"loader": "xlsx",
			"sheets": len(sheets),
		},
	}, nil
}

func (l *XLSXLoader) SupportedTypes() []types.FileType {
	return []types.FileType{types.FileTypeXlsx}
}
