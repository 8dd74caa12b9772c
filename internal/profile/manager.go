package profile

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/suggestd/internal/embeddings"
	"github.com/fyrsmithlabs/suggestd/internal/vectorstore"
)

// tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("suggestd.profile")

// ErrInvalidFeedback indicates an unknown feedback type.
var ErrInvalidFeedback = errors.New("invalid feedback type")

// Manager derives and maintains user profiles in the users collection.
//
// Feedback submission is a read-modify-write with no locking: two concurrent
// submissions for the same user race and the last upsert wins. That is an
// accepted relaxed-consistency window for a personalization signal.
type Manager struct {
	store      vectorstore.Store
	embedder   embeddings.Provider
	collection string
	logger     *zap.Logger
}

// NewManager creates a profile manager over the given users collection.
func NewManager(store vectorstore.Store, embedder embeddings.Provider, collection string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:      store,
		embedder:   embedder,
		collection: collection,
		logger:     logger,
	}
}

// Collection returns the users collection name.
func (m *Manager) Collection() string {
	return m.collection
}

// Get returns the user's profile, or nil if none exists yet. Absence is a
// valid empty result, not an error.
func (m *Manager) Get(ctx context.Context, userID string) (*Profile, error) {
	ctx, span := tracer.Start(ctx, "profile.Get")
	defer span.End()

	point, err := m.store.Fetch(ctx, m.collection, userID)
	if errors.Is(err, vectorstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetching profile %s: %w", userID, err)
	}

	return &Profile{
		ID:       userID,
		Vector:   point.Vector,
		Metadata: MetadataFromPayload(point.Payload),
	}, nil
}

// Upsert regenerates the profile embedding from the metadata projection and
// writes the profile in a single atomic call. The embedding is never written
// independently of the metadata.
func (m *Manager) Upsert(ctx context.Context, userID string, metadata Metadata) (*Profile, error) {
	ctx, span := tracer.Start(ctx, "profile.Upsert")
	defer span.End()

	metadata.LastUpdated = nowUTC()

	vector, err := m.embedder.EmbedQuery(ctx, metadata.PreferenceText())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embedding profile %s: %w", userID, err)
	}

	point := vectorstore.Point{
		ID:      userID,
		Vector:  vector,
		Payload: metadata.Payload(),
	}
	if err := m.store.Upsert(ctx, m.collection, point); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("upserting profile %s: %w", userID, err)
	}

	m.logger.Debug("profile upserted",
		zap.String("user_id", userID),
		zap.Int("liked", len(metadata.LikedItems)),
		zap.Int("disliked", len(metadata.DislikedItems)),
	)
	return &Profile{ID: userID, Vector: vector, Metadata: metadata}, nil
}

// SubmitFeedback records a like or dislike for an item, creating the profile
// lazily on first feedback. The mutated metadata is re-projected to text and
// re-embedded before the upsert.
func (m *Manager) SubmitFeedback(ctx context.Context, userID, itemID string, feedback FeedbackType) (*Profile, error) {
	ctx, span := tracer.Start(ctx, "profile.SubmitFeedback")
	defer span.End()

	if !feedback.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFeedback, feedback)
	}

	existing, err := m.Get(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var metadata Metadata
	if existing != nil {
		metadata = existing.Metadata
	}
	if err := metadata.ApplyFeedback(itemID, feedback); err != nil {
		return nil, err
	}

	m.logger.Info("feedback submitted",
		zap.String("user_id", userID),
		zap.String("item_id", itemID),
		zap.String("feedback", string(feedback)),
	)
	return m.Upsert(ctx, userID, metadata)
}
