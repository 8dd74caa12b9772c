// Package vectorstore defines point-level vector storage over named
// collections, with Qdrant (gRPC) and chromem-go (embedded) backends.
//
// Unlike document-oriented stores that embed text on write, this store works
// on raw vectors: callers own embedding generation because profile vectors
// are derived from metadata projections and query vectors are blended from
// several embeddings before search.
package vectorstore

import (
	"context"
	"errors"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound is returned by Fetch when no point has the given ID.
	ErrNotFound = errors.New("point not found")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name.
// Rejects uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return ErrInvalidCollectionName
	}
	return nil
}

// Point is a vector with its payload, addressed by a caller-chosen ID.
type Point struct {
	// ID is the domain identifier (e.g. "user_123", "item_42").
	ID string

	// Vector is the embedding. Its dimension must match the collection's.
	Vector []float32

	// Payload holds structured metadata. Supported value types: string,
	// bool, int, int64, float64, []string.
	Payload map[string]any
}

// Match is a single ranked search result.
type Match struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Filter constrains a query to points whose Field equals Equal, or is a
// member of In. Exactly one of Equal/In should be set.
type Filter struct {
	Field string
	Equal string
	In    []string
}

// Store provides vector storage over named collections.
//
// Query results are ordered by descending similarity score. Fetch returns
// ErrNotFound for unknown IDs; callers treat that as a valid empty result.
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, collection string, points ...Point) error

	// Query returns up to k nearest neighbors of vector, optionally
	// constrained by filter, sorted descending by score.
	Query(ctx context.Context, collection string, vector []float32, k int, filter *Filter) ([]Match, error)

	// Fetch returns the point with the given ID, or ErrNotFound.
	Fetch(ctx context.Context, collection string, id string) (*Point, error)

	// Close releases backend resources.
	Close() error
}
