// Package recommend ranks catalog items for a user by blending the query
// embedding with the user's preference vector, and optionally boosts the
// ranking with signals from similar users.
package recommend

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/suggestd/internal/catalog"
	"github.com/fyrsmithlabs/suggestd/internal/embeddings"
	"github.com/fyrsmithlabs/suggestd/internal/profile"
	"github.com/fyrsmithlabs/suggestd/internal/vectorstore"
)

// tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("suggestd.recommend")

// Blend weights for combining the query embedding with the profile vector.
const (
	queryWeight   = 0.6
	profileWeight = 0.4
)

// rationaleDescriptionLimit caps how much of an item description is quoted in
// a candidate rationale.
const rationaleDescriptionLimit = 100

// Candidate is a single ranked recommendation. Ephemeral, per-request.
type Candidate struct {
	ItemID            string  `json:"item_id"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	SimilarityScore   float32 `json:"similarity_score"`
	Rationale         string  `json:"rationale"`
	SimilarUserSignal bool    `json:"similar_user_signal"`
}

// Result is the engine's output.
type Result struct {
	Candidates []Candidate
	// MemoryRecall is a short note about the user's accumulated signal,
	// empty when the profile has no liked items.
	MemoryRecall string
}

// Engine is the core recommendation engine.
//
// Failures of external capabilities never escape: the worst case result is an
// empty candidate list.
type Engine struct {
	store    vectorstore.Store
	embedder embeddings.Provider
	profiles *profile.Manager
	items    string
	logger   *zap.Logger
}

// NewEngine creates a recommendation engine over the given items collection.
func NewEngine(store vectorstore.Store, embedder embeddings.Provider, profiles *profile.Manager, itemsCollection string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		profiles: profiles,
		items:    itemsCollection,
		logger:   logger,
	}
}

// GetRecommendations ranks items for the query, personalized by the user's
// profile when one exists.
//
// The context vector is 0.6*query + 0.4*profile per dimension (query alone
// when no profile exists). The store is asked for 2*topK candidates, disliked
// items are dropped, and the first topK survivors are returned in store rank
// order. No backfill query is issued when fewer survive.
func (e *Engine) GetRecommendations(ctx context.Context, userID, query string, topK int) Result {
	ctx, span := tracer.Start(ctx, "recommend.GetRecommendations")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("top_k", topK),
	)

	queryVector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		e.logger.Warn("query embedding failed, returning empty recommendations",
			zap.String("user_id", userID), zap.Error(err))
		span.RecordError(err)
		return Result{}
	}

	userProfile, err := e.profiles.Get(ctx, userID)
	if err != nil {
		// A broken profile lookup downgrades to anonymous ranking.
		e.logger.Warn("profile lookup failed, ranking without profile",
			zap.String("user_id", userID), zap.Error(err))
		span.RecordError(err)
		userProfile = nil
	}

	contextVector := queryVector
	var memoryRecall string
	if userProfile != nil {
		contextVector = BlendVectors(queryVector, userProfile.Vector, queryWeight, profileWeight)
		memoryRecall = memoryRecallNote(userProfile.Metadata)
	}

	matches, err := e.store.Query(ctx, e.items, contextVector, 2*topK, nil)
	if err != nil {
		e.logger.Warn("item query failed, returning empty recommendations",
			zap.String("user_id", userID), zap.Error(err))
		span.RecordError(err)
		return Result{MemoryRecall: memoryRecall}
	}

	candidates := make([]Candidate, 0, topK)
	for _, match := range matches {
		if userProfile != nil && userProfile.Metadata.Dislikes(match.ID) {
			continue
		}
		item := catalog.ItemFromMatch(match)
		candidates = append(candidates, Candidate{
			ItemID:          item.ID,
			Name:            item.Metadata.Name,
			Price:           item.Metadata.Price,
			SimilarityScore: match.Score,
			Rationale:       rationale(item.Metadata, query),
		})
		if len(candidates) == topK {
			break
		}
	}

	span.SetAttributes(attribute.Int("candidate_count", len(candidates)))
	return Result{Candidates: candidates, MemoryRecall: memoryRecall}
}

// rationale explains why an item was recommended.
func rationale(m catalog.ItemMetadata, query string) string {
	if m.Description != "" {
		return "Matches your search: " + truncateRunes(m.Description, rationaleDescriptionLimit)
	}
	return "Matches your search for " + query
}

// truncateRunes cuts s to at most limit bytes without splitting a rune.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// memoryRecallNote summarizes the accumulated preference signal.
func memoryRecallNote(m profile.Metadata) string {
	if len(m.LikedItems) == 0 {
		return ""
	}
	return fmt.Sprintf("You previously liked %d item(s)", len(m.LikedItems))
}

// BlendVectors combines two vectors as wa*a[i] + wb*b[i] per dimension.
// When b is shorter than a, the missing dimensions keep a's contribution
// only; mismatched dimensions should not occur in a correctly configured
// deployment.
func BlendVectors(a, b []float32, wa, wb float32) []float32 {
	blended := make([]float32, len(a))
	for i := range a {
		blended[i] = wa * a[i]
		if i < len(b) {
			blended[i] += wb * b[i]
		}
	}
	return blended
}
