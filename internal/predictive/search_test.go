package predictive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesRejection(t *testing.T) {
	tests := []struct {
		name     string
		itemName string
		itemID   string
		rejected []string
		want     bool
	}{
		{
			name:     "no rejections",
			itemName: "Samsung The Frame TV",
			itemID:   "item_1",
			want:     false,
		},
		{
			name:     "whole phrase in name",
			itemName: "Samsung The Frame TV",
			itemID:   "item_1",
			rejected: []string{"The Frame"},
			want:     true,
		},
		{
			name:     "case insensitive phrase",
			itemName: "SAMSUNG THE FRAME TV",
			itemID:   "item_1",
			rejected: []string{"the frame"},
			want:     true,
		},
		{
			name:     "phrase in id",
			itemName: "55 inch display",
			itemID:   "samsung_the_frame_55",
			rejected: []string{"samsung_the_frame"},
			want:     true,
		},
		{
			name:     "long token from phrase hits name",
			itemName: "The Frame 65 inch",
			itemID:   "item_2",
			rejected: []string{"Samsung Frame Display"},
			want:     true,
		},
		{
			name:     "short tokens ignored",
			itemName: "Sony Bravia XR",
			itemID:   "item_3",
			rejected: []string{"the tv"},
			want:     false,
		},
		{
			name:     "frame variants excluded together",
			itemName: "Frame Pro 55",
			itemID:   "item_4",
			rejected: []string{"the frame tv"},
			want:     true,
		},
		{
			name:     "unrelated item survives",
			itemName: "LG OLED C3",
			itemID:   "item_5",
			rejected: []string{"The Frame"},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesRejection(tt.itemName, tt.itemID, tt.rejected))
		})
	}
}

func TestRemoveRejectedPhrases(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		rejected []string
		want     string
	}{
		{
			name: "no rejections",
			text: "looking for a new tv",
			want: "looking for a new tv",
		},
		{
			name:     "single phrase removed",
			text:     "I liked The Frame but it was too expensive",
			rejected: []string{"The Frame"},
			want:     "I liked but it was too expensive",
		},
		{
			name:     "case insensitive removal",
			text:     "the frame was nice",
			rejected: []string{"The Frame"},
			want:     "was nice",
		},
		{
			name:     "repeated mentions removed",
			text:     "The Frame or maybe The Frame 65",
			rejected: []string{"The Frame"},
			want:     "or maybe 65",
		},
		{
			name:     "multiple phrases",
			text:     "not the sofa and not the lamp",
			rejected: []string{"the sofa", "the lamp"},
			want:     "not and not",
		},
		{
			name:     "empty phrase ignored",
			text:     "unchanged text",
			rejected: []string{""},
			want:     "unchanged text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, removeRejectedPhrases(tt.text, tt.rejected))
		})
	}
}

func TestCategoryFilter(t *testing.T) {
	tests := []struct {
		productType string
		wantEqual   string
		wantIn      []string
		wantNil     bool
	}{
		{productType: "", wantNil: true},
		{productType: "unknown", wantNil: true},
		{productType: "cruises", wantEqual: "cruises"},
		{productType: "travel packages", wantEqual: "cruises"},
		{productType: "furniture", wantIn: furnitureCategories},
		{productType: "Furniture and decor", wantIn: furnitureCategories},
		{productType: "TVs/electronics", wantEqual: "televisions"},
		{productType: "television", wantEqual: "televisions"},
		{productType: "experiences", wantIn: experienceCategories},
		{productType: "kitchen appliances", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.productType, func(t *testing.T) {
			got := categoryFilter(tt.productType)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, "category", got.Field)
			assert.Equal(t, tt.wantEqual, got.Equal)
			assert.Equal(t, tt.wantIn, got.In)
		})
	}
}

func TestEnrichContext(t *testing.T) {
	t.Run("no history", func(t *testing.T) {
		rc := enrichContext(Request{Context: "current"})
		assert.Equal(t, "current", rc.Current)
		assert.Equal(t, "current", rc.Enriched)
		assert.Empty(t, rc.History)
	})

	t.Run("short history", func(t *testing.T) {
		rc := enrichContext(Request{Context: "current", PreviousContext: []string{"a", "b"}})
		assert.Equal(t, "a. b. current", rc.Enriched)
	})

	t.Run("only the last three turns count", func(t *testing.T) {
		rc := enrichContext(Request{
			Context:         "current",
			PreviousContext: []string{"one", "two", "three", "four", "five"},
		})
		assert.Equal(t, "three. four. five. current", rc.Enriched)
		assert.Equal(t, []string{"three", "four", "five"}, rc.History)
	})
}
