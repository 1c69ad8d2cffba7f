package analyzer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// DocumentPlaceholder is replaced by the document text in a prompt body
const DocumentPlaceholder = "{{document}}"

const documentSeparator = "\n\nDocument content:\n"

// Render substitutes text into body, or appends it when the body has no
// placeholder
func Render(body, text string) string {
	if strings.Contains(body, DocumentPlaceholder) {
		return strings.ReplaceAll(body, DocumentPlaceholder, text)
	}
	return strings.TrimRight(body, "\n") + documentSeparator + text
}

// TruncateChars keeps at most max runes
func TruncateChars(text string, max int) string {
	if max <= 0 {
		return text
	}
	n := 0
	for i := range text {
		if n == max {
			return text[:i]
		}
		n++
	}
	return text
}

// Tokenizer truncates text to a token budget
type Tokenizer interface {
	Truncate(text string, maxTokens int) string
}

// TiktokenTokenizer BPE tokenizer used by OpenAI chat models
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads encoding, default cl100k_base
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding: %w", err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.enc.Decode(tokens[:maxTokens])
}
