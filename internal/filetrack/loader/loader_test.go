package loader

import (
	"context"
	"strings"
	"testing"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTypeOf(t *testing.T) {
	tests := []struct {
		path string
		want types.FileType
		ok   bool
	}{
		{"report.PDF", types.FileTypePdf, true},
		{"/a/b/notes.txt", types.FileTypeTxt, true},
		{"sheet.xlsx", types.FileTypeXlsx, true},
		{"old.xls", types.FileTypeXls, true},
		{"mail.eml", types.FileTypeEml, true},
		{"image.png", "", false},
		{"README", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FileTypeOf(tt.path)
			if !tt.ok {
				assert.True(t, apperrors.Is(err, apperrors.ErrUnsupportedFileType))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFactoryExtract(t *testing.T) {
	ctx := context.Background()
	f := NewFactory()

	text, err := f.Extract(ctx, "notes.txt", strings.NewReader("  hello world \n"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	_, err = f.Extract(ctx, "blank.txt", strings.NewReader(" \n\t "))
	assert.True(t, apperrors.Is(err, apperrors.ErrNoTextExtracted))

	_, err = f.Extract(ctx, "legacy.xls", strings.NewReader("binary"))
	assert.True(t, apperrors.Is(err, apperrors.ErrUnsupportedFileType))

	_, err = f.Extract(ctx, "broken.pdf", strings.NewReader("not a pdf"))
	assert.True(t, apperrors.Is(err, apperrors.ErrNoTextExtracted))

	assert.Equal(t, []types.FileType{
		types.FileTypeDocx, types.FileTypeEml, types.FileTypePdf, types.FileTypeTxt, types.FileTypeXlsx,
	}, f.SupportedTypes())
}

func TestTextLoaderRejectsBinary(t *testing.T) {
	_, err := NewTextLoader().Load(context.Background(), strings.NewReader("\xff\xfe\x00"))
	assert.Error(t, err)
}

func TestEMLLoaderPlain(t *testing.T) {
	raw := "Subject: =?UTF-8?Q?Facture_n=C2=B012?=\r\n" +
		"From: Alice <alice@example.com>\r\n" +
		"To: bob@example.com\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"Montant d=C3=BB: 120 EUR\r\n"

	doc, err := NewEMLLoader().Load(context.Background(), strings.NewReader(raw))
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "Subject: Facture n°12")
	assert.Contains(t, doc.Content, "From: Alice <alice@example.com>")
	assert.Contains(t, doc.Content, "Montant dû: 120 EUR")
}

func TestEMLLoaderMultipart(t *testing.T) {
	raw := "Subject: Report\r\n" +
		"Content-Type: multipart/mixed; boundary=outer\r\n" +
		"\r\n" +
		"--outer\r\n" +
		"Content-Type: multipart/alternative; boundary=inner\r\n" +
		"\r\n" +
		"--inner\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"plain body\r\n" +
		"--inner\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>html body</p>\r\n" +
		"--inner--\r\n" +
		"--outer\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"c2Vjb25kIHBh\r\n" +
		"cnQ=\r\n" +
		"--outer--\r\n"

	doc, err := NewEMLLoader().Load(context.Background(), strings.NewReader(raw))
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "plain body")
	assert.Contains(t, doc.Content, "second part")
	assert.NotContains(t, doc.Content, "html body")
	assert.Equal(t, 2, doc.Metadata["text_parts"])
}
