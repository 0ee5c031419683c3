package extractor

import (
	"net/url"

	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

// Extractor defines the interface for DOM content extraction.
// Implementations must be deterministic: the same input bytes always yield
// the same content node.
type Extractor interface {
	// Extract parses the fetched HTML bytes and isolates the meaningful
	// content container, or returns a ClassifiedError when no meaningful
	// content exists.
	Extract(sourceUrl url.URL, htmlByte []byte) (ExtractionResult, failure.ClassifiedError)
}

// Compile-time interface check
var _ Extractor = (*DomExtractor)(nil)
