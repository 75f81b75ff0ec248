package httphandler

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"
)

// chatRenderer turns assistant replies into HTML. Replies are GFM markdown
// with fenced code blocks.
var chatRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(ghtml.WithUnsafe()),
)

// chatSanitizer keeps the class attribute goldmark puts on fenced code
// blocks so the dashboard can highlight by language.
var chatSanitizer = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")
	return p
}()

// RenderMarkdown converts a markdown string to sanitized HTML.
// Returns empty string for empty input.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := chatRenderer.Convert([]byte(src), &buf); err != nil {
		return chatSanitizer.Sanitize(src)
	}

	return chatSanitizer.Sanitize(buf.String())
}

// RenderDiffHunk converts a unified diff hunk into HTML with line-level CSS
// classes (diff-add, diff-del, diff-header, diff-ctx). Lines are escaped,
// not sanitized: patch text is code and must survive verbatim.
func RenderDiffHunk(hunk string) string {
	if hunk == "" {
		return ""
	}

	lines := strings.Split(hunk, "\n")
	var b strings.Builder
	b.Grow(len(hunk) * 2)

	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}

		class := "diff-ctx"
		switch {
		case strings.HasPrefix(line, "@@"):
			class = "diff-header"
		case strings.HasPrefix(line, "+"):
			class = "diff-add"
		case strings.HasPrefix(line, "-"):
			class = "diff-del"
		}

		b.WriteString(`<span class="`)
		b.WriteString(class)
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(line))
		b.WriteString(`</span>`)
	}

	return b.String()
}
