// Package ingestion loads a pre-chunked corpus snapshot, completes each
// chunk's derived fields, embeds whatever the snapshot left unembedded,
// and upserts the result into the vector store. Parsing and chunking of
// source documents happen upstream; this pipeline only consumes their
// JSONL output. It is invoked by the `sekb ingest` CLI command.
package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ddunnock/sekb-go/internal/budget"
	"github.com/ddunnock/sekb-go/internal/chunk"
	"github.com/ddunnock/sekb-go/internal/kberr"
	"github.com/ddunnock/sekb-go/internal/lexical"
	"github.com/ddunnock/sekb-go/internal/vecstore"
)

// maxLineBytes bounds a single snapshot line; chunks are paragraph-sized,
// so 1 MiB leaves generous headroom for embedded vectors.
const maxLineBytes = 1 << 20

// BatchEmbedder is the slice of the embedding provider the pipeline
// needs. Satisfied by *embedding.Provider.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Pipeline orchestrates the load, complete, embed, upsert, index flow for
// one corpus snapshot.
type Pipeline struct {
	embedder BatchEmbedder
	store    vecstore.VectorStore
	index    *lexical.Index
}

// NewPipeline constructs a Pipeline. index may be nil when the caller
// only wants the vector store populated.
func NewPipeline(embedder BatchEmbedder, store vecstore.VectorStore, index *lexical.Index) (*Pipeline, error) {
	const op = "ingestion.NewPipeline"
	if embedder == nil {
		return nil, kberr.New(kberr.KindValidation, op, "embedder must not be nil")
	}
	if store == nil {
		return nil, kberr.New(kberr.KindValidation, op, "store must not be nil")
	}
	return &Pipeline{embedder: embedder, store: store, index: index}, nil
}

// Load reads a JSONL snapshot: one chunk object per line, blank lines
// skipped. A malformed line fails the whole load, naming the line number.
func Load(path string) ([]chunk.Chunk, error) {
	const op = "ingestion.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, kberr.Wrap(kberr.KindValidation, op, "open corpus snapshot", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var chunks []chunk.Chunk
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var c chunk.Chunk
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, kberr.Wrap(kberr.KindValidation, op,
				fmt.Sprintf("malformed chunk at line %d of %s", line, path), err)
		}
		if c.ID == "" {
			return nil, kberr.New(kberr.KindValidation, op,
				"chunk at line %d of %s has no ID", line, path)
		}
		if c.Content == "" {
			return nil, kberr.New(kberr.KindValidation, op,
				"chunk %s at line %d has empty content", c.ID, line)
		}
		chunks = append(chunks, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, kberr.Wrap(kberr.KindValidation, op, "read corpus snapshot", err)
	}
	return chunks, nil
}

// Ingest completes each chunk's derived fields, embeds missing vectors,
// upserts everything, and rebuilds the lexical index. It returns the
// number of chunks written. Progress is reported via the optional
// progress callback.
func (p *Pipeline) Ingest(ctx context.Context, chunks []chunk.Chunk, progress func(msg string)) (int, error) {
	const op = "ingestion.Ingest"
	if progress == nil {
		progress = func(string) {}
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	var missing []int
	for i := range chunks {
		complete(&chunks[i], p.embedder.Model())
		if len(chunks[i].Embedding) == 0 {
			missing = append(missing, i)
		}
	}

	if len(missing) > 0 {
		progress(fmt.Sprintf("embedding %d of %d chunks", len(missing), len(chunks)))
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = chunks[i].Content
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, kberr.Wrap(kberr.KindOf(err), op, "embed corpus chunks", err)
		}
		for j, i := range missing {
			chunks[i].Embedding = vectors[j]
			chunks[i].EmbeddingModel = p.embedder.Model()
		}
	}

	written, err := p.store.AddChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}
	progress(fmt.Sprintf("upserted %d chunks", written))

	if p.index != nil {
		p.index.Build(chunks)
		progress(fmt.Sprintf("indexed %d chunks for lexical search", p.index.Len()))
	}
	return written, nil
}

// IngestFile loads a snapshot from path and ingests it.
func (p *Pipeline) IngestFile(ctx context.Context, path string, progress func(msg string)) (int, error) {
	chunks, err := Load(path)
	if err != nil {
		return 0, err
	}
	return p.Ingest(ctx, chunks, progress)
}

// complete fills the derived fields a snapshot may omit: content hash,
// token estimate, inferred chunk type and normative flag, and the
// embedding model label for pre-embedded chunks.
func complete(c *chunk.Chunk, model string) {
	if c.ContentHash == "" {
		c.ContentHash = chunk.HashContent(c.Content)
	}
	if c.TokenCount == 0 {
		c.TokenCount = budget.Estimate(c.Content)
	}
	InferChunkMetadata(c)
	if len(c.Embedding) > 0 && c.EmbeddingModel == "" {
		c.EmbeddingModel = model
	}
}
