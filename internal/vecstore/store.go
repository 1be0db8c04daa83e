// Package vecstore defines the vector store abstraction for the retrieval
// pipeline and its two concrete backends: a networked Qdrant store (primary)
// and a local SQLite store (secondary). The Store Selector picks a live
// backend at startup; callers only ever see the VectorStore interface.
package vecstore

import (
	"context"
	"regexp"
	"strings"

	"github.com/ddunnock/sekb-go/internal/chunk"
)

// upsertBatchSize is the number of chunks written per backend call.
const upsertBatchSize = 100

// VectorStore is the interface for persisting and searching embedded
// chunks. Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// EnsureCollection creates the backing collection if absent, including
	// payload indexes on filterable fields and a full-text index on content.
	// Idempotent.
	EnsureCollection(ctx context.Context) error

	// AddChunks upserts chunks in batches and returns the number written.
	// Fails with a validation error if any chunk lacks an embedding or its
	// embedding length does not match the collection dimensions.
	AddChunks(ctx context.Context, chunks []chunk.Chunk) (int, error)

	// Search returns the hits most similar to queryEmbedding, sorted by
	// descending similarity, capped to opts.Limit and above
	// opts.ScoreThreshold, restricted by opts.Filter.
	Search(ctx context.Context, queryEmbedding []float32, opts SearchOptions) ([]Hit, error)

	// Stats reports point/vector counts and a configuration echo.
	Stats(ctx context.Context) (*Stats, error)

	// HealthCheck probes the backing service without side effects.
	HealthCheck(ctx context.Context) bool

	// Name returns the backend label used in logs and readiness responses.
	Name() string

	// Close releases any resources held by the store.
	Close() error
}

// Filter restricts a search by payload fields. A scalar value (string,
// bool, int) requires an exact match; a []string value matches any of the
// listed values.
type Filter map[string]any

// SearchOptions bundles the knobs of a similarity search.
type SearchOptions struct {
	// Limit is the maximum number of hits to return.
	Limit int
	// Filter restricts candidates by payload fields; nil means unfiltered.
	Filter Filter
	// ScoreThreshold drops hits whose similarity is at or below it.
	ScoreThreshold float32
}

// Hit is one search result: the stored chunk (without its embedding) plus
// the similarity score in [0,1].
type Hit struct {
	// Chunk holds the stored metadata; Embedding is not populated.
	Chunk chunk.Chunk
	// Score is the cosine similarity of the hit.
	Score float32
}

// Stats reports the state of a collection.
type Stats struct {
	// CollectionName is the version-qualified collection name.
	CollectionName string `json:"collection_name"`
	// TotalChunks is the number of stored chunks.
	TotalChunks uint64 `json:"total_chunks"`
	// VectorsCount is the number of indexed vectors, when the backend
	// distinguishes it from the point count.
	VectorsCount uint64 `json:"vectors_count"`
	// Config echoes the store configuration (never credentials).
	Config map[string]any `json:"config"`
}

// collectionNameSanitizer collapses anything outside [a-z0-9_] so model
// names like "text-embedding-3-small" become valid collection suffixes.
var collectionNameSanitizer = regexp.MustCompile(`[^a-z0-9_]+`)

// CollectionName derives the version-qualified collection name from a base
// name and the embedding model. Qualifying by model prevents mixing vectors
// from different models in one collection.
func CollectionName(base, model string) string {
	suffix := collectionNameSanitizer.ReplaceAllString(strings.ToLower(model), "_")
	suffix = strings.Trim(suffix, "_")
	if suffix == "" {
		return base
	}
	return base + "__" + suffix
}
