package extract

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor finds ```mermaid fenced code blocks.
type MarkdownExtractor struct {
	md goldmark.Markdown
}

// NewMarkdownExtractor creates a markdown extractor.
func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{md: goldmark.New()}
}

// Extract returns every fenced block whose info string names mermaid.
func (e *MarkdownExtractor) Extract(content string) ([]Block, error) {
	src := []byte(content)
	doc := e.md.Parser().Parse(text.NewReader(src))

	var blocks []Block
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if !strings.EqualFold(string(fcb.Language(src)), "mermaid") {
			return ast.WalkSkipChildren, nil
		}

		var buf bytes.Buffer
		lines := fcb.Lines()
		line := 0
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			if i == 0 {
				line = bytes.Count(src[:seg.Start], []byte("\n")) + 1
			}
			buf.Write(seg.Value(src))
		}

		blocks = append(blocks, Block{
			Index: len(blocks),
			Line:  line,
			Text:  buf.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}

	return blocks, nil
}

// CanExtract returns true for markdown MIME types.
func (e *MarkdownExtractor) CanExtract(mimeType string) bool {
	switch mimeType {
	case MimeTypeMarkdown, "text/x-markdown":
		return true
	default:
		return false
	}
}

// MimeType returns the primary MIME type.
func (e *MarkdownExtractor) MimeType() string {
	return MimeTypeMarkdown
}
