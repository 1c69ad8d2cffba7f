package biz

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderAnalysis 将 markdown 分析转换为 HTML，不透传原始 HTML
func RenderAnalysis(analysis string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(analysis), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
