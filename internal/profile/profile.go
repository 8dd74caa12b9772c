// Package profile maintains user preference profiles on top of the users
// collection.
//
// A profile's embedding is derived: it is always regenerated from a
// deterministic textual projection of the metadata whenever the metadata
// changes, never updated independently.
package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/suggestd/internal/vectorstore"
)

// FeedbackType is a like or dislike signal for an item.
type FeedbackType string

const (
	// FeedbackLike marks an item as liked.
	FeedbackLike FeedbackType = "like"
	// FeedbackDislike marks an item as disliked.
	FeedbackDislike FeedbackType = "dislike"
)

// Valid reports whether the feedback type is known.
func (f FeedbackType) Valid() bool {
	return f == FeedbackLike || f == FeedbackDislike
}

// Metadata is the typed metadata of a user profile.
//
// LikedItems and DislikedItems are disjoint sets of item IDs; the feedback
// path maintains that invariant on every mutation.
type Metadata struct {
	AgeRange        string   `json:"age_range,omitempty"`
	HouseholdSize   string   `json:"household_size,omitempty"`
	City            string   `json:"city,omitempty"`
	StylePreference string   `json:"style_preference,omitempty"`
	LikedItems      []string `json:"liked_items"`
	DislikedItems   []string `json:"disliked_items"`
	LastUpdated     string   `json:"last_updated"`
}

// Profile is a user profile with its derived embedding.
type Profile struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Likes reports whether the item is in the liked set.
func (m Metadata) Likes(itemID string) bool {
	return contains(m.LikedItems, itemID)
}

// Dislikes reports whether the item is in the disliked set.
func (m Metadata) Dislikes(itemID string) bool {
	return contains(m.DislikedItems, itemID)
}

// ApplyFeedback records a like or dislike for an item, keeping the liked and
// disliked sets disjoint: liking removes from disliked and vice versa.
func (m *Metadata) ApplyFeedback(itemID string, feedback FeedbackType) error {
	switch feedback {
	case FeedbackLike:
		m.LikedItems = appendUnique(m.LikedItems, itemID)
		m.DislikedItems = remove(m.DislikedItems, itemID)
	case FeedbackDislike:
		m.DislikedItems = appendUnique(m.DislikedItems, itemID)
		m.LikedItems = remove(m.LikedItems, itemID)
	default:
		return fmt.Errorf("unknown feedback type %q", feedback)
	}
	return nil
}

// PreferenceText is the deterministic textual projection of the metadata that
// the profile embedding is generated from.
func (m Metadata) PreferenceText() string {
	var parts []string
	if m.AgeRange != "" {
		parts = append(parts, "Age range: "+m.AgeRange)
	}
	if m.HouseholdSize != "" {
		parts = append(parts, "Household size: "+m.HouseholdSize)
	}
	if m.City != "" {
		parts = append(parts, "City: "+m.City)
	}
	if m.StylePreference != "" {
		parts = append(parts, "Style preference: "+m.StylePreference)
	}
	if len(m.LikedItems) > 0 {
		parts = append(parts, "Liked items: "+strings.Join(m.LikedItems, ", "))
	}
	if len(m.DislikedItems) > 0 {
		parts = append(parts, "Disliked items: "+strings.Join(m.DislikedItems, ", "))
	}
	if len(parts) == 0 {
		return "New user with no preferences"
	}
	return strings.Join(parts, ". ")
}

// Payload converts the metadata to a vector store payload.
func (m Metadata) Payload() map[string]any {
	payload := map[string]any{
		"liked_items":    append([]string(nil), m.LikedItems...),
		"disliked_items": append([]string(nil), m.DislikedItems...),
		"last_updated":   m.LastUpdated,
	}
	if m.AgeRange != "" {
		payload["age_range"] = m.AgeRange
	}
	if m.HouseholdSize != "" {
		payload["household_size"] = m.HouseholdSize
	}
	if m.City != "" {
		payload["city"] = m.City
	}
	if m.StylePreference != "" {
		payload["style_preference"] = m.StylePreference
	}
	return payload
}

// MetadataFromPayload reconstructs profile metadata from a vector store
// payload.
func MetadataFromPayload(payload map[string]any) Metadata {
	m := Metadata{
		LastUpdated: stringField(payload, "last_updated"),
	}
	m.AgeRange = stringField(payload, "age_range")
	m.HouseholdSize = stringField(payload, "household_size")
	m.City = stringField(payload, "city")
	m.StylePreference = stringField(payload, "style_preference")
	if liked, ok := payload["liked_items"].([]string); ok {
		m.LikedItems = liked
	}
	if disliked, ok := payload["disliked_items"].([]string); ok {
		m.DislikedItems = disliked
	}
	return m
}

// MetadataFromMatch reconstructs profile metadata from a search match.
func MetadataFromMatch(match vectorstore.Match) Metadata {
	return MetadataFromPayload(match.Payload)
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

func contains(items []string, id string) bool {
	for _, item := range items {
		if item == id {
			return true
		}
	}
	return false
}

func appendUnique(items []string, id string) []string {
	if contains(items, id) {
		return items
	}
	return append(items, id)
}

func remove(items []string, id string) []string {
	out := items[:0]
	for _, item := range items {
		if item != id {
			out = append(out, item)
		}
	}
	return out
}

// timeNow is a variable for testing purposes.
var timeNow = time.Now

// nowUTC returns the current time in RFC 3339 UTC.
func nowUTC() string {
	return timeNow().UTC().Format(time.RFC3339)
}
