package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackTypeValid(t *testing.T) {
	assert.True(t, FeedbackLike.Valid())
	assert.True(t, FeedbackDislike.Valid())
	assert.False(t, FeedbackType("meh").Valid())
	assert.False(t, FeedbackType("").Valid())
}

func TestApplyFeedback(t *testing.T) {
	t.Run("like adds to liked set", func(t *testing.T) {
		var m Metadata
		require.NoError(t, m.ApplyFeedback("item_1", FeedbackLike))
		assert.Equal(t, []string{"item_1"}, m.LikedItems)
		assert.Empty(t, m.DislikedItems)
	})

	t.Run("like is idempotent", func(t *testing.T) {
		var m Metadata
		require.NoError(t, m.ApplyFeedback("item_1", FeedbackLike))
		require.NoError(t, m.ApplyFeedback("item_1", FeedbackLike))
		assert.Equal(t, []string{"item_1"}, m.LikedItems)
	})

	t.Run("dislike after like moves the item", func(t *testing.T) {
		var m Metadata
		require.NoError(t, m.ApplyFeedback("item_1", FeedbackLike))
		require.NoError(t, m.ApplyFeedback("item_1", FeedbackDislike))
		assert.Empty(t, m.LikedItems)
		assert.Equal(t, []string{"item_1"}, m.DislikedItems)
	})

	t.Run("like after dislike moves the item back", func(t *testing.T) {
		var m Metadata
		require.NoError(t, m.ApplyFeedback("item_1", FeedbackDislike))
		require.NoError(t, m.ApplyFeedback("item_1", FeedbackLike))
		assert.Equal(t, []string{"item_1"}, m.LikedItems)
		assert.Empty(t, m.DislikedItems)
	})

	t.Run("unknown type errors", func(t *testing.T) {
		var m Metadata
		assert.Error(t, m.ApplyFeedback("item_1", FeedbackType("meh")))
	})
}

func TestPreferenceText(t *testing.T) {
	t.Run("empty metadata", func(t *testing.T) {
		assert.Equal(t, "New user with no preferences", Metadata{}.PreferenceText())
	})

	t.Run("full metadata", func(t *testing.T) {
		m := Metadata{
			AgeRange:        "25-34",
			HouseholdSize:   "2",
			City:            "Amsterdam",
			StylePreference: "modern",
			LikedItems:      []string{"item_1", "item_2"},
			DislikedItems:   []string{"item_3"},
		}
		want := "Age range: 25-34. Household size: 2. City: Amsterdam. " +
			"Style preference: modern. Liked items: item_1, item_2. Disliked items: item_3"
		assert.Equal(t, want, m.PreferenceText())
	})

	t.Run("deterministic", func(t *testing.T) {
		m := Metadata{LikedItems: []string{"a", "b"}}
		assert.Equal(t, m.PreferenceText(), m.PreferenceText())
	})
}

func TestPayloadRoundTrip(t *testing.T) {
	m := Metadata{
		AgeRange:      "35-44",
		City:          "Oslo",
		LikedItems:    []string{"item_1"},
		DislikedItems: []string{"item_2"},
		LastUpdated:   "2026-08-23T10:00:00Z",
	}

	got := MetadataFromPayload(m.Payload())
	assert.Equal(t, m, got)
}

func TestPayloadOmitsEmptyDemographics(t *testing.T) {
	payload := Metadata{LikedItems: []string{"item_1"}}.Payload()
	assert.NotContains(t, payload, "age_range")
	assert.NotContains(t, payload, "city")
	assert.Contains(t, payload, "liked_items")
}

func TestLikesAndDislikes(t *testing.T) {
	m := Metadata{LikedItems: []string{"a"}, DislikedItems: []string{"b"}}
	assert.True(t, m.Likes("a"))
	assert.False(t, m.Likes("b"))
	assert.True(t, m.Dislikes("b"))
	assert.False(t, m.Dislikes("a"))
}
