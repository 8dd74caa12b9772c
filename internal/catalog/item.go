// Package catalog defines the product item model stored in the items
// collection.
//
// Items are read-only from this service's perspective; external ingestion
// collaborators create them. The payload codec here is the single source of
// truth for how item metadata is laid out in the vector store.
package catalog

import (
	"github.com/fyrsmithlabs/suggestd/internal/vectorstore"
)

// ItemMetadata is the typed metadata of a product item.
type ItemMetadata struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Description string   `json:"description"`
	Brand       string   `json:"brand,omitempty"`
	Features    []string `json:"features,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// Item is a product item with its vector store identity.
type Item struct {
	ID       string
	Metadata ItemMetadata
}

// Payload converts the metadata to a vector store payload.
func (m ItemMetadata) Payload() map[string]any {
	payload := map[string]any{
		"name":        m.Name,
		"category":    m.Category,
		"price":       m.Price,
		"description": m.Description,
	}
	if m.Brand != "" {
		payload["brand"] = m.Brand
	}
	if len(m.Features) > 0 {
		payload["features"] = m.Features
	}
	if m.URL != "" {
		payload["url"] = m.URL
	}
	return payload
}

// MetadataFromPayload reconstructs item metadata from a vector store payload.
// Missing or mistyped fields fall back to zero values; payloads written by
// ingestion collaborators are not trusted to be complete.
func MetadataFromPayload(payload map[string]any) ItemMetadata {
	m := ItemMetadata{
		Name:        stringField(payload, "name"),
		Category:    stringField(payload, "category"),
		Price:       floatField(payload, "price"),
		Description: stringField(payload, "description"),
		Brand:       stringField(payload, "brand"),
		URL:         stringField(payload, "url"),
	}
	if features, ok := payload["features"].([]string); ok {
		m.Features = features
	}
	return m
}

// ItemFromMatch builds an Item from a search match.
func ItemFromMatch(match vectorstore.Match) Item {
	return Item{ID: match.ID, Metadata: MetadataFromPayload(match.Payload)}
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

func floatField(payload map[string]any, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}
