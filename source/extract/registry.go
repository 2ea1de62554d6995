// Package extract pulls diagram source text out of files that may embed
// several diagrams.
package extract

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/c360studio/diagramtype/source"
)

// Block is one diagram found in a file.
type Block struct {
	// Index is the position of the block within its file, starting at 0.
	Index int `json:"index"`
	// Line is the 1-based line the diagram text starts on, 0 when unknown.
	Line int `json:"line,omitempty"`
	// Text is the raw diagram source.
	Text string `json:"text"`
}

// Extractor finds diagram blocks in decoded file content.
type Extractor interface {
	// Extract returns the diagram blocks found in content.
	Extract(content string) ([]Block, error)

	// CanExtract returns true if this extractor handles the given MIME type.
	CanExtract(mimeType string) bool

	// MimeType returns the primary MIME type for this extractor.
	MimeType() string
}

// Registry manages extractors keyed by MIME type.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
}

// NewRegistry creates a registry with the default extractors.
func NewRegistry() *Registry {
	r := &Registry{
		extractors: make(map[string]Extractor),
	}

	r.Register(NewWholeFileExtractor())
	r.Register(NewMarkdownExtractor())
	r.Register(NewHTMLExtractor())

	return r
}

// Register adds an extractor to the registry.
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[e.MimeType()] = e
}

// GetByMimeType returns an extractor for the given MIME type, or nil.
func (r *Registry) GetByMimeType(mimeType string) Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.extractors[mimeType]; ok {
		return e
	}

	// Deterministic fallback scan
	types := make([]string, 0, len(r.extractors))
	for t := range r.extractors {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		if e := r.extractors[t]; e.CanExtract(mimeType) {
			return e
		}
	}

	return nil
}

// GetByExtension returns the extractor for filename. Files with an unknown
// extension are treated as a single diagram.
func (r *Registry) GetByExtension(filename string) Extractor {
	if e := r.GetByMimeType(MimeTypeFromExtension(filepath.Ext(filename))); e != nil {
		return e
	}
	return r.GetByMimeType(MimeTypeMermaid)
}

// Extract decodes content and returns its diagram blocks.
func (r *Registry) Extract(filename string, content []byte) ([]Block, error) {
	e := r.GetByExtension(filename)
	if e == nil {
		return nil, fmt.Errorf("no extractor for file type: %s", filepath.Ext(filename))
	}

	text, err := source.Decode(content)
	if err != nil {
		return nil, err
	}
	return e.Extract(text)
}

// ListMimeTypes returns all registered MIME types, sorted.
func (r *Registry) ListMimeTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.extractors))
	for t := range r.extractors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// MIME types handled by the default extractors.
const (
	MimeTypeMermaid  = "text/vnd.mermaid"
	MimeTypeMarkdown = "text/markdown"
	MimeTypeHTML     = "text/html"
)

// MimeTypeFromExtension returns the MIME type for a file extension.
func MimeTypeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".mmd", ".mermaid":
		return MimeTypeMermaid
	case ".md", ".markdown":
		return MimeTypeMarkdown
	case ".html", ".htm":
		return MimeTypeHTML
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
