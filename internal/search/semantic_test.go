package search

import (
	"context"
	"testing"

	"github.com/ddunnock/sekb-go/internal/chunk"
	"github.com/ddunnock/sekb-go/internal/kberr"
	"github.com/ddunnock/sekb-go/internal/vecstore"
)

// fakeEmbedder returns a fixed vector, or a scripted error.
type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

// fakeVecStore serves scripted hits and records the options it saw.
type fakeVecStore struct {
	hits     []vecstore.Hit
	err      error
	lastOpts vecstore.SearchOptions
}

func (f *fakeVecStore) EnsureCollection(context.Context) error { return nil }
func (f *fakeVecStore) AddChunks(context.Context, []chunk.Chunk) (int, error) {
	return 0, nil
}
func (f *fakeVecStore) Search(_ context.Context, _ []float32, opts vecstore.SearchOptions) ([]vecstore.Hit, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}
func (f *fakeVecStore) Stats(context.Context) (*vecstore.Stats, error) {
	return &vecstore.Stats{}, nil
}
func (f *fakeVecStore) HealthCheck(context.Context) bool { return true }
func (f *fakeVecStore) Name() string                     { return "fake" }
func (f *fakeVecStore) Close() error                     { return nil }

func storeHit(id string, score float32) vecstore.Hit {
	return vecstore.Hit{
		Chunk: chunk.Chunk{
			ID:            id,
			Content:       "content of " + id,
			DocumentID:    "doc",
			DocumentTitle: "ISO 26262",
		},
		Score: score,
	}
}

func Test_Semantic_EmptyQuery(t *testing.T) {
	t.Parallel()

	s := NewSemanticSearcher(&fakeEmbedder{vector: []float32{1}}, &fakeVecStore{})
	_, err := s.Search(context.Background(), "   ", Options{})
	if !kberr.IsValidation(err) {
		t.Fatalf("want validation error for blank query, got %v", err)
	}
}

func Test_Semantic_ProjectsHits(t *testing.T) {
	t.Parallel()

	store := &fakeVecStore{hits: []vecstore.Hit{storeHit("a", 0.9), storeHit("b", 0.7)}}
	s := NewSemanticSearcher(&fakeEmbedder{vector: []float32{1}}, store)

	results, err := s.Search(context.Background(), "functional safety", Options{Limit: 2, ScoreThreshold: 0.5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	// Store scores are float32; the projection widens them, so the expected
	// value is the widened float32, not the float64 literal.
	if results[0].ChunkID != "a" || results[0].Score != float64(float32(0.9)) {
		t.Errorf("unexpected first result %+v", results[0])
	}
	if store.lastOpts.Limit != 2 || store.lastOpts.ScoreThreshold != 0.5 {
		t.Errorf("options not forwarded to the store: %+v", store.lastOpts)
	}
}

func Test_Semantic_DefaultLimit(t *testing.T) {
	t.Parallel()

	store := &fakeVecStore{}
	s := NewSemanticSearcher(&fakeEmbedder{vector: []float32{1}}, store)

	if _, err := s.Search(context.Background(), "verification", Options{}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if store.lastOpts.Limit != DefaultLimit {
		t.Errorf("want default limit %d, got %d", DefaultLimit, store.lastOpts.Limit)
	}
}

func Test_Semantic_EmbedderErrorPropagates(t *testing.T) {
	t.Parallel()

	embErr := kberr.New(kberr.KindConnection, "test", "embedding service unreachable")
	s := NewSemanticSearcher(&fakeEmbedder{err: embErr}, &fakeVecStore{})

	_, err := s.Search(context.Background(), "verification", Options{})
	if kberr.KindOf(err) != kberr.KindConnection {
		t.Fatalf("want connection error, got %v", err)
	}
}
