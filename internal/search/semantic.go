package search

import (
	"context"
	"strings"

	"github.com/ddunnock/sekb-go/internal/kberr"
	"github.com/ddunnock/sekb-go/internal/vecstore"
)

// DefaultLimit is the result count used when the caller passes zero.
const DefaultLimit = 5

// Embedder turns query text into a vector. Satisfied by
// *embedding.Provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options control a single search call.
type Options struct {
	// Limit is the maximum number of results; zero means DefaultLimit.
	Limit int

	// Filter restricts results by payload fields. A scalar value means
	// exact match, a []string means any-of.
	Filter vecstore.Filter

	// ScoreThreshold drops results at or below the given similarity.
	ScoreThreshold float32
}

// limit returns the effective result count.
func (o Options) limit() int {
	if o.Limit > 0 {
		return o.Limit
	}
	return DefaultLimit
}

// SemanticSearcher embeds the query and runs a filtered similarity search
// against the selected vector store. It holds no per-query state and is
// safe for concurrent use.
type SemanticSearcher struct {
	embedder Embedder
	store    vecstore.VectorStore
}

// NewSemanticSearcher wires an embedder to a vector store.
func NewSemanticSearcher(embedder Embedder, store vecstore.VectorStore) *SemanticSearcher {
	return &SemanticSearcher{embedder: embedder, store: store}
}

// Search embeds query and returns the top results by cosine similarity,
// descending. An empty or whitespace-only query is a validation error.
func (s *SemanticSearcher) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	const op = "search.Semantic"

	if strings.TrimSpace(query) == "" {
		return nil, kberr.New(kberr.KindValidation, op, "query text is empty")
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.store.Search(ctx, vector, vecstore.SearchOptions{
		Limit:          opts.limit(),
		Filter:         opts.Filter,
		ScoreThreshold: opts.ScoreThreshold,
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = resultFromHit(h)
	}
	return results, nil
}
