package server

import (
	"bytes"
	"fmt"
	stdhtml "html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Linkify),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

const previewTemplate = `<!DOCTYPE html>
<html lang="zh-Hant">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
<article>
%s
</article>
</body>
</html>
`

// RenderPreview renders post content to a standalone HTML page. Raw HTML in
// the content is not passed through.
func RenderPreview(title, content string) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(content), &body); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}
	return []byte(fmt.Sprintf(previewTemplate, stdhtml.EscapeString(title), body.String())), nil
}
