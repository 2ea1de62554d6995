package extract

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// mermaidClasses mark elements whose text is diagram source.
var mermaidClasses = map[string]bool{
	"mermaid":          true,
	"language-mermaid": true,
}

// HTMLExtractor finds elements carrying a mermaid class, such as
// <pre class="mermaid"> or <code class="language-mermaid">.
type HTMLExtractor struct{}

// NewHTMLExtractor creates an HTML extractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract returns the text content of each mermaid element. Nested matches
// are not reported twice. Line numbers are not tracked.
func (e *HTMLExtractor) Extract(content string) ([]Block, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var blocks []Block
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasMermaidClass(n) {
			blocks = append(blocks, Block{
				Index: len(blocks),
				Text:  textContent(n),
			})
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return blocks, nil
}

// CanExtract returns true for HTML MIME types.
func (e *HTMLExtractor) CanExtract(mimeType string) bool {
	switch mimeType {
	case MimeTypeHTML, "application/xhtml+xml":
		return true
	default:
		return false
	}
}

// MimeType returns the primary MIME type.
func (e *HTMLExtractor) MimeType() string {
	return MimeTypeHTML
}

func hasMermaidClass(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(strings.ToLower(a.Val)) {
			if mermaidClasses[c] {
				return true
			}
		}
	}
	return false
}

// textContent concatenates the text nodes below n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}
