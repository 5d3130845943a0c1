package service

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	notesEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	notesSanitizer = bluemonday.UGCPolicy()
)

// RenderNotes 把任务描述中的 Markdown 渲染为净化后的 HTML
func RenderNotes(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := notesEngine.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render notes: %w", err)
	}
	return notesSanitizer.Sanitize(buf.String()), nil
}
