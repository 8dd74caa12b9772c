package predictive

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/suggestd/internal/catalog"
	"github.com/fyrsmithlabs/suggestd/internal/llm"
	"github.com/fyrsmithlabs/suggestd/internal/profile"
	"github.com/fyrsmithlabs/suggestd/internal/recommend"
	"github.com/fyrsmithlabs/suggestd/internal/vectorstore"
)

const (
	// productSearchK is how many items the search stage retrieves.
	productSearchK = 10

	// minSimilarityThreshold is the inclusive acceptance floor: a candidate
	// scoring exactly 0.40 is acceptable, 0.399 is not.
	minSimilarityThreshold float32 = 0.40

	// Blend weights for combining the search embedding with the profile
	// vector. Search dominates here, unlike the recommendation engine's
	// 0.6/0.4 split, because current intent outweighs accumulated taste.
	searchWeight        float32 = 0.7
	profileSearchWeight float32 = 0.3
)

// minRejectionTokenLength: shorter tokens ("the", "a", "TV") are too generic
// to exclude items by.
const minRejectionTokenLength = 3

// findRelevantProduct runs the product search stage: expand the cleaned
// context into a search query, retrieve candidates (category-filtered when the
// product type maps to one), and accept the first candidate that clears the
// similarity floor and is neither disliked nor rejected. Returns nil when no
// candidate is acceptable or any required capability fails.
func (p *Pipeline) findRelevantProduct(ctx context.Context, rc requestContext, userProfile *profile.Profile, topic string, rejected []string) *Suggestion {
	ctx, span := tracer.Start(ctx, "predictive.findRelevantProduct")
	defer span.End()

	cleaned := removeRejectedPhrases(rc.Current, rejected)

	expansion, err := p.classifier.ExpandQuery(ctx, cleaned, topic, rejected)
	if err != nil {
		// Degrade to the cleaned context verbatim with no category filter.
		p.logger.Debug("query expansion failed, searching with cleaned context", zap.Error(err))
		expansion = llm.QueryExpansion{SearchQuery: cleaned, ProductType: "unknown"}
	}
	span.SetAttributes(
		attribute.String("search_query", expansion.SearchQuery),
		attribute.String("product_type", expansion.ProductType),
	)

	searchVector, err := p.embedder.EmbedQuery(ctx, expansion.SearchQuery)
	if err != nil {
		p.logger.Warn("search embedding failed, no product suggestion", zap.Error(err))
		span.RecordError(err)
		return nil
	}
	if userProfile != nil {
		searchVector = recommend.BlendVectors(searchVector, userProfile.Vector, searchWeight, profileSearchWeight)
	}

	matches, err := p.store.Query(ctx, p.items, searchVector, productSearchK, categoryFilter(expansion.ProductType))
	if err != nil {
		p.logger.Warn("product query failed, no product suggestion", zap.Error(err))
		span.RecordError(err)
		return nil
	}

	for _, match := range matches {
		if match.Score < minSimilarityThreshold {
			continue
		}
		if userProfile != nil && userProfile.Metadata.Dislikes(match.ID) {
			continue
		}
		item := catalog.ItemFromMatch(match)
		if matchesRejection(item.Metadata.Name, item.ID, rejected) {
			p.logger.Debug("skipping rejected item",
				zap.String("item_id", item.ID),
				zap.String("name", item.Metadata.Name),
			)
			continue
		}
		span.SetAttributes(
			attribute.String("item_id", item.ID),
			attribute.Float64("score", float64(match.Score)),
		)
		return p.buildSuggestion(ctx, rc, topic, rejected, item)
	}

	span.SetAttributes(attribute.Bool("matched", false))
	return nil
}

// buildSuggestion generates the conversational text for an accepted item,
// falling back to a deterministic template when generation fails.
func (p *Pipeline) buildSuggestion(ctx context.Context, rc requestContext, topic string, rejected []string, item catalog.Item) *Suggestion {
	text, err := p.generator.SuggestionText(ctx, llm.GenerationInput{
		Context:         rc.Current,
		Topic:           topic,
		Rejected:        rejected,
		PreviousContext: rc.History,
		Item:            item.Metadata,
	})
	if err != nil {
		p.logger.Debug("suggestion text generation failed, using template",
			zap.String("item_id", item.ID), zap.Error(err))
		text = fmt.Sprintf("The %s ($%.0f) might be worth considering. It seems relevant to what you're discussing.",
			item.Metadata.Name, item.Metadata.Price)
	}
	return &Suggestion{
		Text:      text,
		ItemID:    item.ID,
		ItemName:  item.Metadata.Name,
		ItemPrice: item.Metadata.Price,
		ItemURL:   item.Metadata.URL,
	}
}

// removeRejectedPhrases strips each rejected phrase from the text,
// case-insensitively, so rejected product names do not steer the search
// embedding back toward the rejected product.
func removeRejectedPhrases(text string, rejected []string) string {
	for _, phrase := range rejected {
		if phrase == "" {
			continue
		}
		lowerText := strings.ToLower(text)
		lowerPhrase := strings.ToLower(phrase)
		for {
			i := strings.Index(lowerText, lowerPhrase)
			if i < 0 {
				break
			}
			text = text[:i] + text[i+len(phrase):]
			lowerText = lowerText[:i] + lowerText[i+len(lowerPhrase):]
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

// matchesRejection reports whether an item is excluded by the rejection list.
// Matching is intentionally aggressive: a whole-phrase substring hit in the
// name or ID, any rejection token longer than 3 characters appearing in the
// name, or the word "frame" shared between a rejection and the name (display
// products named "... Frame" come in many variants that a partial phrase must
// still exclude).
func matchesRejection(name, id string, rejected []string) bool {
	lowerName := strings.ToLower(name)
	lowerID := strings.ToLower(id)
	for _, phrase := range rejected {
		lowerPhrase := strings.ToLower(phrase)
		if lowerPhrase == "" {
			continue
		}
		if strings.Contains(lowerName, lowerPhrase) || strings.Contains(lowerID, lowerPhrase) {
			return true
		}
		for _, token := range strings.Fields(lowerPhrase) {
			if len(token) > minRejectionTokenLength && strings.Contains(lowerName, token) {
				return true
			}
		}
		if strings.Contains(lowerPhrase, "frame") && strings.Contains(lowerName, "frame") {
			return true
		}
	}
	return false
}

// Category families for coarse product types. Single-category types use an
// exact match; multi-subcategory families use a set filter.
var (
	furnitureCategories = []string{
		"furniture_living_room",
		"furniture_bedroom",
		"furniture_kitchen",
		"furniture_bathroom",
	}
	experienceCategories = []string{
		"experiences_outdoor",
		"experiences_cultural",
		"experiences_food",
		"experiences_wellness",
		"experiences_entertainment",
	}
)

// categoryFilter maps the expansion's coarse product type to a catalog
// category filter. Unknown or unmapped types search the whole catalog.
func categoryFilter(productType string) *vectorstore.Filter {
	pt := strings.ToLower(productType)
	switch {
	case pt == "" || pt == "unknown":
		return nil
	case strings.Contains(pt, "cruise") || strings.Contains(pt, "travel"):
		return &vectorstore.Filter{Field: "category", Equal: "cruises"}
	case strings.Contains(pt, "furniture"):
		return &vectorstore.Filter{Field: "category", In: furnitureCategories}
	case strings.Contains(pt, "tv") || strings.Contains(pt, "television") || strings.Contains(pt, "electronic"):
		return &vectorstore.Filter{Field: "category", Equal: "televisions"}
	case strings.Contains(pt, "experience"):
		return &vectorstore.Filter{Field: "category", In: experienceCategories}
	}
	return nil
}
