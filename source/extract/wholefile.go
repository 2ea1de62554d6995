package extract

// WholeFileExtractor treats the entire file as one diagram.
type WholeFileExtractor struct{}

// NewWholeFileExtractor creates a whole-file extractor.
func NewWholeFileExtractor() *WholeFileExtractor {
	return &WholeFileExtractor{}
}

// Extract returns content as a single block.
func (e *WholeFileExtractor) Extract(content string) ([]Block, error) {
	return []Block{{Index: 0, Line: 1, Text: content}}, nil
}

// CanExtract returns true for Mermaid source and plain text.
func (e *WholeFileExtractor) CanExtract(mimeType string) bool {
	switch mimeType {
	case MimeTypeMermaid, "text/x-mermaid", "text/plain":
		return true
	default:
		return false
	}
}

// MimeType returns the primary MIME type.
func (e *WholeFileExtractor) MimeType() string {
	return MimeTypeMermaid
}
