package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/suggestd/internal/catalog"
	"github.com/fyrsmithlabs/suggestd/internal/profile"
	"github.com/fyrsmithlabs/suggestd/internal/vectorstore"
)

const (
	testUsersCollection = "users"
	testItemsCollection = "items"
)

type queryCall struct {
	collection string
	vector     []float32
	k          int
	filter     *vectorstore.Filter
}

// fakeStore is a scripted vectorstore.Store.
type fakeStore struct {
	points     map[string]map[string]vectorstore.Point
	queries    map[string][]vectorstore.Match
	queryErr   error
	queryCalls []queryCall
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		points:  make(map[string]map[string]vectorstore.Point),
		queries: make(map[string][]vectorstore.Match),
	}
}

func (s *fakeStore) put(collection string, p vectorstore.Point) {
	if s.points[collection] == nil {
		s.points[collection] = make(map[string]vectorstore.Point)
	}
	s.points[collection][p.ID] = p
}

func (s *fakeStore) EnsureCollection(context.Context, string, int) error { return nil }

func (s *fakeStore) Upsert(_ context.Context, collection string, points ...vectorstore.Point) error {
	for _, p := range points {
		s.put(collection, p)
	}
	return nil
}

func (s *fakeStore) Query(_ context.Context, collection string, vector []float32, k int, filter *vectorstore.Filter) ([]vectorstore.Match, error) {
	s.queryCalls = append(s.queryCalls, queryCall{collection: collection, vector: vector, k: k, filter: filter})
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	matches := s.queries[collection]
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *fakeStore) Fetch(_ context.Context, collection string, id string) (*vectorstore.Point, error) {
	p, ok := s.points[collection][id]
	if !ok {
		return nil, vectorstore.ErrNotFound
	}
	return &p, nil
}

func (s *fakeStore) Close() error { return nil }

// queryCallsFor filters recorded calls by collection.
func (s *fakeStore) queryCallsFor(collection string) []queryCall {
	var calls []queryCall
	for _, c := range s.queryCalls {
		if c.collection == collection {
			calls = append(calls, c)
		}
	}
	return calls
}

// fakeEmbedder returns scripted vectors per text.
type fakeEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
}

func (e *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return e.fallback, nil
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

func (e *fakeEmbedder) Dimension() int { return len(e.fallback) }
func (e *fakeEmbedder) Close() error   { return nil }

func profilePoint(userID string, vector []float32, liked, disliked []string) vectorstore.Point {
	m := profile.Metadata{LikedItems: liked, DislikedItems: disliked}
	return vectorstore.Point{ID: userID, Vector: vector, Payload: m.Payload()}
}

func itemMatch(id, name string, price float64, score float32) vectorstore.Match {
	return vectorstore.Match{
		ID:    id,
		Score: score,
		Payload: map[string]any{
			"name":        name,
			"category":    "televisions",
			"price":       price,
			"description": "",
		},
	}
}

func TestBlendVectors(t *testing.T) {
	tests := []struct {
		name   string
		a, b   []float32
		wa, wb float32
		want   []float32
	}{
		{
			name: "standard blend",
			a:    []float32{1, 0, 0.5},
			b:    []float32{0, 1, 0.5},
			wa:   0.6, wb: 0.4,
			want: []float32{0.6, 0.4, 0.5},
		},
		{
			name: "search blend",
			a:    []float32{1, 1},
			b:    []float32{1, 0},
			wa:   0.7, wb: 0.3,
			want: []float32{1.0, 0.7},
		},
		{
			name: "shorter second vector keeps first contribution",
			a:    []float32{1, 1},
			b:    []float32{1},
			wa:   0.6, wb: 0.4,
			want: []float32{1.0, 0.6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BlendVectors(tt.a, tt.b, tt.wa, tt.wb)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-6, "dimension %d", i)
			}
		})
	}
}

func TestGetRecommendations_NoProfile(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{
		vectors:  map[string][]float32{"smart tv": {1, 0, 0}},
		fallback: []float32{0, 0, 0},
	}
	store.queries[testItemsCollection] = []vectorstore.Match{
		itemMatch("item_1", "TV One", 499, 0.9),
		itemMatch("item_2", "TV Two", 599, 0.8),
	}

	profiles := profile.NewManager(store, embedder, testUsersCollection, nil)
	engine := NewEngine(store, embedder, profiles, testItemsCollection, nil)

	result := engine.GetRecommendations(context.Background(), "ghost", "smart tv", 3)

	require.Len(t, result.Candidates, 2)
	assert.Empty(t, result.MemoryRecall)

	// Without a profile the raw query embedding is used as-is.
	calls := store.queryCallsFor(testItemsCollection)
	require.Len(t, calls, 1)
	assert.Equal(t, []float32{1, 0, 0}, calls[0].vector)
	assert.Equal(t, 6, calls[0].k)
}

func TestGetRecommendations_BlendsProfileVector(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{
		vectors:  map[string][]float32{"smart tv": {1, 0}},
		fallback: []float32{0, 0},
	}
	store.put(testUsersCollection, profilePoint("user_1", []float32{0, 1}, []string{"item_9", "item_8"}, nil))
	store.queries[testItemsCollection] = []vectorstore.Match{
		itemMatch("item_1", "TV One", 499, 0.9),
	}

	profiles := profile.NewManager(store, embedder, testUsersCollection, nil)
	engine := NewEngine(store, embedder, profiles, testItemsCollection, nil)

	result := engine.GetRecommendations(context.Background(), "user_1", "smart tv", 3)

	assert.Equal(t, "You previously liked 2 item(s)", result.MemoryRecall)

	calls := store.queryCallsFor(testItemsCollection)
	require.Len(t, calls, 1)
	require.Len(t, calls[0].vector, 2)
	assert.InDelta(t, 0.6, calls[0].vector[0], 1e-6)
	assert.InDelta(t, 0.4, calls[0].vector[1], 1e-6)
}

func TestGetRecommendations_FiltersDislikedWithoutBackfill(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{fallback: []float32{1, 0}}
	store.put(testUsersCollection, profilePoint("user_1", []float32{0, 1}, nil, []string{"item_42", "item_43"}))
	store.queries[testItemsCollection] = []vectorstore.Match{
		itemMatch("item_41", "Keeper", 100, 0.9),
		itemMatch("item_42", "Disliked A", 100, 0.85),
		itemMatch("item_43", "Disliked B", 100, 0.8),
		itemMatch("item_44", "Also Fine", 100, 0.75),
	}

	profiles := profile.NewManager(store, embedder, testUsersCollection, nil)
	engine := NewEngine(store, embedder, profiles, testItemsCollection, nil)

	result := engine.GetRecommendations(context.Background(), "user_1", "anything", 3)

	// Both disliked items fall out and only two survivors remain; no second
	// query fills the gap.
	require.Len(t, result.Candidates, 2)
	assert.Equal(t, "item_41", result.Candidates[0].ItemID)
	assert.Equal(t, "item_44", result.Candidates[1].ItemID)
	assert.Len(t, store.queryCallsFor(testItemsCollection), 1)
}

func TestGetRecommendations_TruncatesToTopK(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{fallback: []float32{1}}
	store.queries[testItemsCollection] = []vectorstore.Match{
		itemMatch("item_1", "A", 1, 0.9),
		itemMatch("item_2", "B", 2, 0.8),
		itemMatch("item_3", "C", 3, 0.7),
		itemMatch("item_4", "D", 4, 0.6),
	}

	profiles := profile.NewManager(store, embedder, testUsersCollection, nil)
	engine := NewEngine(store, embedder, profiles, testItemsCollection, nil)

	result := engine.GetRecommendations(context.Background(), "user_1", "anything", 2)

	require.Len(t, result.Candidates, 2)
	assert.Equal(t, "item_1", result.Candidates[0].ItemID)
	assert.Equal(t, "item_2", result.Candidates[1].ItemID)
}

func TestGetRecommendations_EmbeddingFailureReturnsEmpty(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{err: errors.New("model unavailable")}

	profiles := profile.NewManager(store, embedder, testUsersCollection, nil)
	engine := NewEngine(store, embedder, profiles, testItemsCollection, nil)

	result := engine.GetRecommendations(context.Background(), "user_1", "anything", 3)

	assert.Empty(t, result.Candidates)
	assert.Empty(t, store.queryCalls)
}

func TestGetRecommendations_QueryFailureReturnsEmpty(t *testing.T) {
	store := newFakeStore()
	store.queryErr = errors.New("connection reset")
	embedder := &fakeEmbedder{fallback: []float32{1}}

	profiles := profile.NewManager(store, embedder, testUsersCollection, nil)
	engine := NewEngine(store, embedder, profiles, testItemsCollection, nil)

	result := engine.GetRecommendations(context.Background(), "user_1", "anything", 3)
	assert.Empty(t, result.Candidates)
}

func itemMetadataWithDescription(description string) catalog.ItemMetadata {
	return catalog.ItemMetadata{Name: "Item", Price: 10, Description: description}
}

func TestRationale(t *testing.T) {
	t.Run("uses description prefix", func(t *testing.T) {
		long := strings.Repeat("x", 150)
		got := rationale(itemMetadataWithDescription(long), "query")
		assert.Equal(t, "Matches your search: "+strings.Repeat("x", 100), got)
	})

	t.Run("falls back to query", func(t *testing.T) {
		got := rationale(itemMetadataWithDescription(""), "cozy sofa")
		assert.Equal(t, "Matches your search for cozy sofa", got)
	})

	t.Run("never splits a rune at the cut", func(t *testing.T) {
		long := strings.Repeat("x", 99) + "é" + strings.Repeat("x", 50)
		got := rationale(itemMetadataWithDescription(long), "query")
		assert.Equal(t, "Matches your search: "+strings.Repeat("x", 99), got)
		assert.True(t, utf8.ValidString(got))
	})
}
