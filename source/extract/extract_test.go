package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fence = "```"

func TestMarkdownExtractor(t *testing.T) {
	content := strings.Join([]string{
		"# Doc",
		"",
		"Intro.",
		"",
		fence + "mermaid",
		"graph TD",
		"  A-->B",
		fence,
		"",
		fence + "go",
		"fmt.Println()",
		fence,
		"",
		"~~~Mermaid",
		"sequenceDiagram",
		"~~~",
		"",
	}, "\n")

	blocks, err := NewMarkdownExtractor().Extract(content)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, Block{Index: 0, Line: 6, Text: "graph TD\n  A-->B\n"}, blocks[0])
	assert.Equal(t, Block{Index: 1, Line: 15, Text: "sequenceDiagram\n"}, blocks[1])
}

func TestMarkdownExtractor_NoBlocks(t *testing.T) {
	blocks, err := NewMarkdownExtractor().Extract("# Title\n\nplain text\n")
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestHTMLExtractor(t *testing.T) {
	content := `<html><body>
<pre class="mermaid">graph TD
  A--&gt;B</pre>
<div class="note">not a diagram</div>
<pre><code class="language-mermaid">pie
  "a" : 1</code></pre>
<div class="diagram mermaid"><span class="mermaid">nested</span></div>
</body></html>`

	blocks, err := NewHTMLExtractor().Extract(content)
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	assert.Equal(t, "graph TD\n  A-->B", blocks[0].Text)
	assert.Equal(t, "pie\n  \"a\" : 1", blocks[1].Text)
	assert.Equal(t, "nested", blocks[2].Text, "outer match wins, inner is not reported again")
	assert.Equal(t, 2, blocks[2].Index)
}

func TestWholeFileExtractor(t *testing.T) {
	blocks, err := NewWholeFileExtractor().Extract("gantt\n")
	require.NoError(t, err)
	assert.Equal(t, []Block{{Index: 0, Line: 1, Text: "gantt\n"}}, blocks)
}

func TestRegistry_GetByExtension(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		filename string
		want     string
	}{
		{"a.mmd", MimeTypeMermaid},
		{"a.mermaid", MimeTypeMermaid},
		{"README.md", MimeTypeMarkdown},
		{"doc.MARKDOWN", MimeTypeMarkdown},
		{"page.html", MimeTypeHTML},
		{"page.htm", MimeTypeHTML},
		{"notes.txt", MimeTypeMermaid},
		{"noextension", MimeTypeMermaid},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			e := r.GetByExtension(tt.filename)
			require.NotNil(t, e)
			assert.Equal(t, tt.want, e.MimeType())
		})
	}
}

func TestRegistry_GetByMimeType(t *testing.T) {
	r := NewRegistry()

	assert.NotNil(t, r.GetByMimeType("text/x-markdown"))
	assert.NotNil(t, r.GetByMimeType("application/xhtml+xml"))
	assert.Nil(t, r.GetByMimeType("application/pdf"))
}

func TestRegistry_Extract(t *testing.T) {
	r := NewRegistry()

	blocks, err := r.Extract("d.mmd", append([]byte{0xEF, 0xBB, 0xBF}, []byte("pie\n")...))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "pie\n", blocks[0].Text, "byte order mark is dropped")

	blocks, err = r.Extract("README.md", []byte(fence+"mermaid\njourney\n"+fence+"\n"))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "journey\n", blocks[0].Text)
}

func TestRegistry_ListMimeTypes(t *testing.T) {
	assert.Equal(t, []string{MimeTypeHTML, MimeTypeMarkdown, MimeTypeMermaid}, NewRegistry().ListMimeTypes())
}

func TestMimeTypeFromExtension(t *testing.T) {
	assert.Equal(t, MimeTypeMermaid, MimeTypeFromExtension(".MMD"))
	assert.Equal(t, "text/plain", MimeTypeFromExtension(".txt"))
	assert.Equal(t, "application/octet-stream", MimeTypeFromExtension(""))
}
