// Package llm defines the text capability provider: language-model-backed
// classification and short-text generation.
//
// The interfaces are deliberately narrow so deterministic scripted stand-ins
// can substitute in tests. Implementations return errors on transport failure
// or malformed output; callers own the degradation policy (the pipeline maps
// every failure to a documented safe default).
package llm

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/suggestd/internal/catalog"
)

// ErrMalformedOutput indicates the underlying model produced output that
// could not be parsed. Callers treat it exactly like a capability failure.
var ErrMalformedOutput = errors.New("malformed model output")

// QueryExpansion is the result of expanding conversational context into a
// richer product search string.
type QueryExpansion struct {
	// SearchQuery is the enhanced search text.
	SearchQuery string
	// ProductType is a coarse product type (e.g. "television", "furniture",
	// "cruise", "experience") or "unknown".
	ProductType string
}

// GenerationInput parameterizes suggestion text generation.
type GenerationInput struct {
	// Context is the current conversation turn.
	Context string
	// Topic is the detected topic, empty when none.
	Topic string
	// Rejected lists product phrases the user rejected, used to justify
	// affordability framing.
	Rejected []string
	// PreviousContext holds up to the last 3 prior conversation strings,
	// used for tone matching only, never for product selection.
	PreviousContext []string
	// Item is the product being suggested.
	Item catalog.ItemMetadata
}

// Classifier provides language-model-backed classification.
type Classifier interface {
	// DetectTopic classifies text into a short topic label. Only high or
	// medium confidence labels are returned; low confidence or no topic
	// yields the empty string.
	DetectTopic(ctx context.Context, text string) (string, error)

	// DetectRejections extracts product names or phrases the user rejected,
	// including liked-but-too-expensive mentions.
	DetectRejections(ctx context.Context, text string) ([]string, error)

	// ShouldSuggest decides whether producing any suggestion is contextually
	// appropriate for the current conversation turn.
	ShouldSuggest(ctx context.Context, text, topic string) (bool, error)

	// ExpandQuery turns cleaned conversational context into a richer search
	// string and a coarse product type.
	ExpandQuery(ctx context.Context, text, topic string, rejected []string) (QueryExpansion, error)
}

// Generator produces short natural-language suggestion text.
type Generator interface {
	SuggestionText(ctx context.Context, input GenerationInput) (string, error)
}
