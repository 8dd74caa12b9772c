package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("suggestd.vectorstore.chromem")

// chromem metadata keys. The structured payload is stored as JSON because
// chromem metadata values are flat strings; filterable fields are mirrored
// as plain entries alongside it.
const (
	chromemPayloadKey  = "payload_json"
	chromemCategoryKey = "category"
)

// ChromemConfig holds configuration for the chromem-go embedded backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means in-memory,
	// which is what tests use.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies, useful for single-binary deployments and integration tests
// where running Qdrant is not worth the setup.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger

	// collections tracks created collections.
	collections sync.Map
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db  *chromem.DB
		err error
	)
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		path, perr := expandPath(config.Path)
		if perr != nil {
			return nil, fmt.Errorf("expanding path: %w", perr)
		}
		if err = os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
		config.Path = path
	}

	logger.Info("chromem store initialized",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
	)

	return &ChromemStore{db: db, config: config, logger: logger}, nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Close is a no-op; chromem persists on write.
func (s *ChromemStore) Close() error {
	return nil
}

// EnsureCollection creates the collection if it does not exist.
func (s *ChromemStore) EnsureCollection(_ context.Context, collection string, _ int) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	_, err := s.getOrCreateCollection(collection)
	return err
}

func (s *ChromemStore) getOrCreateCollection(name string) (*chromem.Collection, error) {
	c, err := s.db.GetOrCreateCollection(name, nil, rejectEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", name, err)
	}
	s.collections.Store(name, true)
	return c, nil
}

// rejectEmbeddingFunc guards against text-embedding paths. All writes and
// queries in this store carry explicit vectors.
func rejectEmbeddingFunc(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem store requires explicit vectors")
}

// Upsert inserts or replaces points by ID.
func (s *ChromemStore) Upsert(ctx context.Context, collection string, points ...Point) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("point_count", len(points)),
	)

	c, err := s.getOrCreateCollection(collection)
	if err != nil {
		span.RecordError(err)
		return err
	}

	for _, p := range points {
		metadata, err := toChromemMetadata(p.Payload)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("encoding payload for %s: %w", p.ID, err)
		}
		doc := chromem.Document{
			ID:        p.ID,
			Metadata:  metadata,
			Embedding: p.Vector,
			// chromem requires non-empty content even when the embedding
			// is supplied.
			Content: p.ID,
		}
		if err := c.AddDocument(ctx, doc); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("upserting %s to %s: %w", p.ID, collection, err)
		}
	}
	return nil
}

// Query returns up to k nearest neighbors sorted descending by score.
func (s *ChromemStore) Query(ctx context.Context, collection string, vector []float32, k int, filter *Filter) ([]Match, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	)

	c, err := s.getOrCreateCollection(collection)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	count := c.Count()
	if count == 0 {
		return nil, nil
	}

	// chromem rejects queries asking for more results than match, and the
	// matching count under a where clause is not knowable up front. Filters
	// are therefore applied by overfetching and post-filtering.
	fetch := k
	if filter != nil {
		fetch = count
	}
	if fetch > count {
		fetch = count
	}

	results, err := c.QueryEmbedding(ctx, vector, fetch, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		if filter != nil && !matchesFilter(r.Metadata[filter.Field], filter) {
			continue
		}
		payload, err := fromChromemMetadata(r.Metadata)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("decoding payload for %s: %w", r.ID, err)
		}
		matches = append(matches, Match{ID: r.ID, Score: r.Similarity, Payload: payload})
		if len(matches) == k {
			break
		}
	}
	span.SetAttributes(attribute.Int("match_count", len(matches)))
	return matches, nil
}

func matchesFilter(value string, f *Filter) bool {
	if len(f.In) > 0 {
		return matchesIn(value, f.In)
	}
	return value == f.Equal
}

func matchesIn(value string, in []string) bool {
	for _, v := range in {
		if value == v {
			return true
		}
	}
	return false
}

// Fetch returns the point with the given ID, or ErrNotFound.
func (s *ChromemStore) Fetch(ctx context.Context, collection string, id string) (*Point, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.String("id", id),
	)

	c, err := s.getOrCreateCollection(collection)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	doc, err := c.GetByID(ctx, id)
	if err != nil {
		// chromem reports unknown IDs as plain errors.
		return nil, ErrNotFound
	}

	payload, err := fromChromemMetadata(doc.Metadata)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decoding payload for %s: %w", id, err)
	}
	return &Point{ID: id, Vector: doc.Embedding, Payload: payload}, nil
}

// toChromemMetadata encodes the payload as JSON and mirrors filterable fields.
func toChromemMetadata(payload map[string]any) (map[string]string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	metadata := map[string]string{chromemPayloadKey: string(encoded)}
	if category, ok := payload[chromemCategoryKey].(string); ok {
		metadata[chromemCategoryKey] = category
	}
	return metadata, nil
}

// fromChromemMetadata decodes the JSON payload, normalizing JSON arrays of
// strings back to []string.
func fromChromemMetadata(metadata map[string]string) (map[string]any, error) {
	encoded, ok := metadata[chromemPayloadKey]
	if !ok {
		return map[string]any{}, nil
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(encoded), &payload); err != nil {
		return nil, err
	}
	for k, v := range payload {
		if list, ok := v.([]any); ok {
			items := make([]string, 0, len(list))
			for _, item := range list {
				if s, ok := item.(string); ok {
					items = append(items, s)
				}
			}
			payload[k] = items
		}
	}
	return payload, nil
}
