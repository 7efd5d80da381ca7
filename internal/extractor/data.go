package extractor

import "golang.org/x/net/html"

// ExtractionResult holds the extraction outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
}

// ExtractParam tunes the text-density scoring used by the third content
// isolation layer.
type ExtractParam struct {
	// LinkDensityThreshold is the link-text/total-text ratio above which
	// a candidate's score is penalized as navigation-like.
	LinkDensityThreshold float64
	// BodySpecificityBias is how close a child candidate's score must be
	// to <body>'s score (as a fraction) to be preferred over <body>.
	BodySpecificityBias float64
}

// DefaultExtractParam returns the tuning used when a caller has no
// reason to override it.
func DefaultExtractParam() ExtractParam {
	return ExtractParam{
		LinkDensityThreshold: 0.5,
		BodySpecificityBias:  0.3,
	}
}
