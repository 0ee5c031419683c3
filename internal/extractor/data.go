package extractor

import "golang.org/x/net/html"

// ExtractionResult holds the extraction outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
}

// ExtractParam carries the content-scoring knobs used when falling back to
// weighted candidate selection (Layer 3). Values come from configuration;
// DefaultExtractParam mirrors the trained defaults.
type ExtractParam struct {
	BodySpecificityBias  float64
	LinkDensityThreshold float64
}

func NewExtractParam(bodySpecificityBias, linkDensityThreshold float64) ExtractParam {
	return ExtractParam{
		BodySpecificityBias:  bodySpecificityBias,
		LinkDensityThreshold: linkDensityThreshold,
	}
}

func DefaultExtractParam() ExtractParam {
	return ExtractParam{
		BodySpecificityBias:  0.75,
		LinkDensityThreshold: 0.80,
	}
}
