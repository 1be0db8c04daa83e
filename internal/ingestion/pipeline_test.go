package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ddunnock/sekb-go/internal/chunk"
	"github.com/ddunnock/sekb-go/internal/kberr"
	"github.com/ddunnock/sekb-go/internal/lexical"
	"github.com/ddunnock/sekb-go/internal/vecstore"
)

// fakeEmbedder returns fixed-length vectors and records what it embedded.
type fakeEmbedder struct {
	dims  int
	texts []string
	err   error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.texts = append(f.texts, texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dims)
		v[0] = float32(len(texts[i]))
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "test-model" }

// recordingStore captures upserted chunks.
type recordingStore struct {
	added []chunk.Chunk
	err   error
}

func (s *recordingStore) EnsureCollection(context.Context) error { return nil }
func (s *recordingStore) AddChunks(_ context.Context, chunks []chunk.Chunk) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.added = append(s.added, chunks...)
	return len(chunks), nil
}
func (s *recordingStore) Search(context.Context, []float32, vecstore.SearchOptions) ([]vecstore.Hit, error) {
	return nil, nil
}
func (s *recordingStore) Stats(context.Context) (*vecstore.Stats, error) {
	return &vecstore.Stats{}, nil
}
func (s *recordingStore) HealthCheck(context.Context) bool { return true }
func (s *recordingStore) Name() string                     { return "recording" }
func (s *recordingStore) Close() error                     { return nil }

func writeSnapshot(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	return path
}

func Test_Load_ParsesSnapshot(t *testing.T) {
	t.Parallel()

	path := writeSnapshot(t, `{"id":"a","content":"The supplier shall verify.","document_id":"iso12207","document_title":"ISO 12207"}

{"id":"b","content":"Guidance may apply.","document_id":"iso12207","document_title":"ISO 12207"}
`)

	chunks, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("want 2 chunks with blank line skipped, got %d", len(chunks))
	}
	if chunks[0].ID != "a" || chunks[1].ID != "b" {
		t.Errorf("snapshot order lost: %v", chunks)
	}
}

func Test_Load_MalformedLineNamesLineNumber(t *testing.T) {
	t.Parallel()

	path := writeSnapshot(t, `{"id":"a","content":"ok"}
{not json}
`)

	_, err := Load(path)
	if !kberr.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "line 2") {
		t.Errorf("error must name the line, got %q", got)
	}
}

func Test_Load_MissingFields(t *testing.T) {
	t.Parallel()

	for name, line := range map[string]string{
		"no id":      `{"content":"text"}`,
		"no content": `{"id":"a"}`,
	} {
		path := writeSnapshot(t, line+"\n")
		if _, err := Load(path); !kberr.IsValidation(err) {
			t.Errorf("%s: want validation error, got %v", name, err)
		}
	}
}

func Test_Ingest_CompletesEmbedsAndIndexes(t *testing.T) {
	t.Parallel()

	embedder := &fakeEmbedder{dims: 4}
	store := &recordingStore{}
	index := lexical.NewIndex()
	p, err := NewPipeline(embedder, store, index)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	preEmbedded := chunk.Chunk{
		ID: "pre", Content: "The acquirer shall define acceptance criteria.",
		Embedding: []float32{1, 0, 0, 0},
	}
	raw := chunk.Chunk{ID: "raw", Content: "Validation confirms the intended use."}

	n, err := p.Ingest(context.Background(), []chunk.Chunk{preEmbedded, raw}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 written, got %d", n)
	}
	if len(embedder.texts) != 1 || embedder.texts[0] != raw.Content {
		t.Errorf("only the unembedded chunk may hit the endpoint, embedded %v", embedder.texts)
	}

	for _, c := range store.added {
		if c.ContentHash == "" {
			t.Errorf("chunk %s missing content hash", c.ID)
		}
		if c.TokenCount == 0 {
			t.Errorf("chunk %s missing token estimate", c.ID)
		}
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %s left unembedded", c.ID)
		}
		if c.EmbeddingModel != "test-model" {
			t.Errorf("chunk %s missing model label, got %q", c.ID, c.EmbeddingModel)
		}
	}
	if store.added[0].ChunkType != chunk.TypeRequirement {
		t.Errorf("shall-text must classify as requirement, got %q", store.added[0].ChunkType)
	}

	if !index.IsIndexed() || index.Len() != 2 {
		t.Errorf("lexical index must cover the snapshot, got %d", index.Len())
	}
}

func Test_Ingest_EmbedFailureAborts(t *testing.T) {
	t.Parallel()

	embedder := &fakeEmbedder{err: kberr.New(kberr.KindConnection, "test", "endpoint down")}
	store := &recordingStore{}
	p, err := NewPipeline(embedder, store, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	_, err = p.Ingest(context.Background(), []chunk.Chunk{{ID: "a", Content: "text"}}, nil)
	if kberr.KindOf(err) != kberr.KindConnection {
		t.Fatalf("want connection error, got %v", err)
	}
	if len(store.added) != 0 {
		t.Error("nothing may be upserted when embedding fails")
	}
}

func Test_IngestFile_EndToEnd(t *testing.T) {
	t.Parallel()

	path := writeSnapshot(t, `{"id":"a","content":"The system shall log faults.","document_id":"d","document_title":"T"}
`)
	embedder := &fakeEmbedder{dims: 4}
	store := &recordingStore{}
	p, err := NewPipeline(embedder, store, lexical.NewIndex())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	var messages []string
	n, err := p.IngestFile(context.Background(), path, func(msg string) { messages = append(messages, msg) })
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 written, got %d", n)
	}
	if len(messages) == 0 {
		t.Error("progress callback must be invoked")
	}
}
