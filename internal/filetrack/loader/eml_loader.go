package loader

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/lk2023060901/docsense-backend/internal/filetrack/types"
)

// EMLLoader RFC 5322 messages: a header block followed by every
// text/plain part
type EMLLoader struct {
	decoder *mime.WordDecoder
}

// NewEMLLoader creates an EMLLoader
func NewEMLLoader() *EMLLoader {
	return &EMLLoader{decoder: new(mime.WordDecoder)}
}

var emlHeaders = []string{"Subject", "From", "To", "Cc", "Date"}

func (l *EMLLoader) Load(ctx context.Context, reader io.Reader) (*Document, error) {
	msg, err := mail.ReadMessage(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	var sb strings.Builder
	for _, key := range emlHeaders {
		value := msg.Header.Get(key)
		if value == "" {
			continue
		}
		if decoded, err := l.decoder.DecodeHeader(value); err == nil {
			value = decoded
		}
		fmt.Fprintf(&sb, "%s: %s\n", key, value)
	}
	sb.WriteString("\n")

	parts, err := l.textParts(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body, 0)
	if err != nil {
		return nil, err
	}
	sb.WriteString(strings.Join(parts, "\n"))

	return &Document{
		Content: sb.String(),
		Metadata: map[string]interface{}{
			"loader":     "eml",
			"text_parts": len(parts),
		},
	}, nil
}

// textParts collects text/plain bodies, descending into multiparts
func (l *EMLLoader) textParts(contentType, encoding string, body io.Reader, depth int) ([]string, error) {
	if depth > 8 {
		return nil, nil
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || contentType == "" {
		mediaType = "text/plain"
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message without boundary")
		}
		mr := multipart.NewReader(body, boundary)
		var out []string
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return out, nil
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read message part: %w", err)
			}
			// NextPart decodes quoted-printable itself and drops the header
			enc := part.Header.Get("Content-Transfer-Encoding")
			sub, err := l.textParts(part.Header.Get("Content-Type"), enc, part, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}

	case mediaType == "text/plain":
		data, err := io.ReadAll(decodeTransfer(encoding, body))
		if err != nil {
			return nil, fmt.Errorf("failed to decode message body: %w", err)
		}
		text := strings.TrimSpace(string(bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))))
		if text == "" {
			return nil, nil
		}
		return []string{text}, nil
	}
	return nil, nil
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, newlineStripper{r})
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	}
	return r
}

// newlineStripper drops CR/LF so base64 bodies wrapped at 76 columns decode
type newlineStripper struct {
	r io.Reader
}

func (n newlineStripper) Read(p []byte) (int, error) {
	for {
		count, err := n.r.Read(p)
		kept := 0
		for _, b := range p[:count] {
			if b != '\r' && b != '\n' {
				p[kept] = b
				kept++
			}
		}
		if kept > 0 || err != nil {
			return kept, err
		}
	}
}

func (l *EMLLoader) SupportedTypes() []types.FileType {
	return []types.FileType{types.FileTypeEml}
}
