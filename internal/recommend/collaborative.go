package recommend

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/suggestd/internal/catalog"
	"github.com/fyrsmithlabs/suggestd/internal/profile"
	"github.com/fyrsmithlabs/suggestd/internal/vectorstore"
)

// voteWeight scales the accumulated similar-user votes before they are added
// to candidate scores.
const voteWeight = 0.1

// DefaultSimilarUsers is how many neighbor profiles the booster consults.
const DefaultSimilarUsers = 5

// Booster re-weights and augments candidates with items liked by users whose
// profiles are close to the caller's.
//
// Like the engine, the booster never fails a request: any capability error
// returns the input candidates unchanged.
type Booster struct {
	store    vectorstore.Store
	profiles *profile.Manager
	items    string
	logger   *zap.Logger
}

// NewBooster creates a collaborative booster over the given items collection.
func NewBooster(store vectorstore.Store, profiles *profile.Manager, itemsCollection string, logger *zap.Logger) *Booster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Booster{
		store:    store,
		profiles: profiles,
		items:    itemsCollection,
		logger:   logger,
	}
}

// Enhance boosts candidates that similar users liked and appends items liked
// by similar users that the ranking missed.
//
// Each similar user contributes their similarity score as a vote for every
// item they liked; votes sum across users, so an item popular with several
// similar users accumulates multiple contributions. Boosted or appended
// candidates carry SimilarUserSignal and the final list is re-sorted
// descending by score. The result may exceed the engine's topK; truncation is
// the caller's responsibility.
func (b *Booster) Enhance(ctx context.Context, userID string, candidates []Candidate, topKSimilarUsers int) []Candidate {
	ctx, span := tracer.Start(ctx, "recommend.Enhance")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("candidate_count", len(candidates)),
	)

	if topKSimilarUsers <= 0 {
		topKSimilarUsers = DefaultSimilarUsers
	}

	userProfile, err := b.profiles.Get(ctx, userID)
	if err != nil {
		b.logger.Warn("profile lookup failed, skipping collaborative boost",
			zap.String("user_id", userID), zap.Error(err))
		span.RecordError(err)
		return candidates
	}
	if userProfile == nil {
		return candidates
	}

	// The +1 allows for the caller's own profile appearing in the result.
	similar, err := b.store.Query(ctx, b.profiles.Collection(), userProfile.Vector, topKSimilarUsers+1, nil)
	if err != nil {
		b.logger.Warn("similar user query failed, skipping collaborative boost",
			zap.String("user_id", userID), zap.Error(err))
		span.RecordError(err)
		return candidates
	}

	votes := make(map[string]float32)
	for _, match := range similar {
		if match.ID == userID {
			continue
		}
		neighbor := profile.MetadataFromMatch(match)
		for _, itemID := range neighbor.LikedItems {
			votes[itemID] += match.Score
		}
	}
	if len(votes) == 0 {
		return candidates
	}

	indexByID := make(map[string]int, len(candidates))
	for i, c := range candidates {
		indexByID[c.ItemID] = i
	}

	// Deterministic iteration keeps appended candidates in a stable order
	// for equal scores.
	voted := make([]string, 0, len(votes))
	for itemID := range votes {
		voted = append(voted, itemID)
	}
	sort.Strings(voted)

	for _, itemID := range voted {
		boost := votes[itemID] * voteWeight
		if i, ok := indexByID[itemID]; ok {
			candidates[i].SimilarityScore += boost
			candidates[i].SimilarUserSignal = true
			continue
		}

		point, err := b.store.Fetch(ctx, b.items, itemID)
		if err != nil {
			// Unknown or unreachable item: a neighbor's liked item may
			// have left the catalog. Skip the vote.
			b.logger.Debug("skipping voted item",
				zap.String("item_id", itemID), zap.Error(err))
			continue
		}
		metadata := catalog.MetadataFromPayload(point.Payload)
		candidates = append(candidates, Candidate{
			ItemID:            itemID,
			Name:              metadata.Name,
			Price:             metadata.Price,
			SimilarityScore:   boost,
			Rationale:         "Popular with similar users",
			SimilarUserSignal: true,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SimilarityScore > candidates[j].SimilarityScore
	})

	span.SetAttributes(attribute.Int("boosted_count", len(candidates)))
	return candidates
}
