package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/suggestd/internal/vectorstore"
)

const testCollection = "users"

type fakeStore struct {
	points   map[string]vectorstore.Point
	fetchErr error
	upserted []vectorstore.Point
}

func newFakeStore() *fakeStore {
	return &fakeStore{points: make(map[string]vectorstore.Point)}
}

func (s *fakeStore) EnsureCollection(context.Context, string, int) error { return nil }

func (s *fakeStore) Upsert(_ context.Context, _ string, points ...vectorstore.Point) error {
	for _, p := range points {
		s.points[p.ID] = p
		s.upserted = append(s.upserted, p)
	}
	return nil
}

func (s *fakeStore) Query(context.Context, string, []float32, int, *vectorstore.Filter) ([]vectorstore.Match, error) {
	return nil, nil
}

func (s *fakeStore) Fetch(_ context.Context, _ string, id string) (*vectorstore.Point, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	p, ok := s.points[id]
	if !ok {
		return nil, vectorstore.ErrNotFound
	}
	return &p, nil
}

func (s *fakeStore) Close() error { return nil }

type fakeEmbedder struct {
	lastText string
	err      error
}

func (e *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.lastText = text
	if e.err != nil {
		return nil, e.err
	}
	// Derived vector: encodes the text length so tests can observe
	// re-embedding.
	return []float32{float32(len(text))}, nil
}

func (e *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *fakeEmbedder) Dimension() int { return 1 }
func (e *fakeEmbedder) Close() error   { return nil }

func TestGet_AbsentProfileIsNil(t *testing.T) {
	m := NewManager(newFakeStore(), &fakeEmbedder{}, testCollection, nil)

	p, err := m.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGet_StoreFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.fetchErr = errors.New("unavailable")
	m := NewManager(store, &fakeEmbedder{}, testCollection, nil)

	_, err := m.Get(context.Background(), "user_1")
	assert.Error(t, err)
}

func TestUpsert_EmbedsPreferenceText(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	m := NewManager(store, embedder, testCollection, nil)

	timeNow = func() time.Time { return time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC) }
	defer func() { timeNow = time.Now }()

	p, err := m.Upsert(context.Background(), "user_1", Metadata{City: "Oslo"})
	require.NoError(t, err)

	assert.Equal(t, "City: Oslo", embedder.lastText)
	assert.Equal(t, "2026-08-23T10:00:00Z", p.Metadata.LastUpdated)
	require.Len(t, store.upserted, 1)
	assert.Equal(t, "user_1", store.upserted[0].ID)
	assert.Equal(t, p.Vector, store.upserted[0].Vector)
}

func TestSubmitFeedback_CreatesProfileLazily(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, &fakeEmbedder{}, testCollection, nil)

	p, err := m.SubmitFeedback(context.Background(), "new_user", "item_1", FeedbackLike)
	require.NoError(t, err)

	assert.Equal(t, []string{"item_1"}, p.Metadata.LikedItems)

	stored, err := m.Get(context.Background(), "new_user")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, []string{"item_1"}, stored.Metadata.LikedItems)
}

func TestSubmitFeedback_LikeThenDislike(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	m := NewManager(store, embedder, testCollection, nil)

	_, err := m.SubmitFeedback(context.Background(), "user_1", "item_1", FeedbackLike)
	require.NoError(t, err)
	likedText := embedder.lastText

	p, err := m.SubmitFeedback(context.Background(), "user_1", "item_1", FeedbackDislike)
	require.NoError(t, err)

	assert.Empty(t, p.Metadata.LikedItems)
	assert.Equal(t, []string{"item_1"}, p.Metadata.DislikedItems)
	// The preference text changed, so the embedding was regenerated.
	assert.NotEqual(t, likedText, embedder.lastText)
}

func TestSubmitFeedback_InvalidType(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, &fakeEmbedder{}, testCollection, nil)

	_, err := m.SubmitFeedback(context.Background(), "user_1", "item_1", FeedbackType("meh"))
	assert.ErrorIs(t, err, ErrInvalidFeedback)
	assert.Empty(t, store.upserted)
}

func TestSubmitFeedback_EmbeddingFailure(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, &fakeEmbedder{err: errors.New("model down")}, testCollection, nil)

	_, err := m.SubmitFeedback(context.Background(), "user_1", "item_1", FeedbackLike)
	assert.Error(t, err)
	assert.Empty(t, store.upserted)
}
