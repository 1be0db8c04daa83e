// Package lexical provides a keyword search index over the corpus snapshot.
// It ranks chunks with Okapi BM25 and is independent of the vector store:
// the hybrid searcher fuses its rankings with semantic results, and degrades
// to semantic-only when no index has been built.
package lexical

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/ddunnock/sekb-go/internal/chunk"
)

// BM25 free parameters. k1 controls term-frequency saturation, b controls
// document-length normalization.
const (
	k1 = 1.5
	b  = 0.75
)

// Hit is one ranked lexical match.
type Hit struct {
	// ChunkID identifies the matched chunk.
	ChunkID string
	// Score is the raw BM25 score. Unbounded above; callers that need a
	// [0,1] score normalize against the top hit.
	Score float64
}

// Index is an in-memory BM25 index built once per corpus snapshot.
// Build replaces the whole index atomically; Search and IsIndexed are safe
// for concurrent use.
type Index struct {
	mu sync.RWMutex

	// postings maps a term to the per-document term frequency.
	postings map[string]map[string]int
	// docLen maps a chunk ID to its token count.
	docLen map[string]int
	// avgDocLen is the mean token count across all indexed chunks.
	avgDocLen float64
	// chunks holds the indexed chunks, embeddings stripped, so lexical
	// hits can be rendered without a round trip to the vector store.
	chunks map[string]chunk.Chunk
}

// NewIndex returns an empty, unbuilt index.
func NewIndex() *Index {
	return &Index{}
}

// Build indexes the given chunks, replacing any previous snapshot. Chunks
// with no tokens are skipped. Build is not incremental: re-ingesting the
// corpus rebuilds the index from scratch.
func (ix *Index) Build(chunks []chunk.Chunk) {
	postings := make(map[string]map[string]int)
	docLen := make(map[string]int, len(chunks))
	byID := make(map[string]chunk.Chunk, len(chunks))
	totalLen := 0

	for _, c := range chunks {
		tokens := Tokenize(c.Content)
		if len(tokens) == 0 {
			continue
		}
		c.Embedding = nil
		byID[c.ID] = c
		docLen[c.ID] = len(tokens)
		totalLen += len(tokens)
		for _, tok := range tokens {
			perDoc := postings[tok]
			if perDoc == nil {
				perDoc = make(map[string]int)
				postings[tok] = perDoc
			}
			perDoc[c.ID]++
		}
	}

	var avg float64
	if len(docLen) > 0 {
		avg = float64(totalLen) / float64(len(docLen))
	}

	ix.mu.Lock()
	ix.postings = postings
	ix.docLen = docLen
	ix.avgDocLen = avg
	ix.chunks = byID
	ix.mu.Unlock()
}

// Chunk returns the indexed chunk with the given ID. The returned chunk
// never carries an embedding.
func (ix *Index) Chunk(id string) (chunk.Chunk, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	c, ok := ix.chunks[id]
	return c, ok
}

// IsIndexed reports whether Build has populated the index with at least one
// chunk. The hybrid searcher checks this before attempting lexical search.
func (ix *Index) IsIndexed() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docLen) > 0
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docLen)
}

// Search scores every chunk matching at least one query term and returns
// the top k hits, BM25 score descending, chunk ID ascending on ties. An
// unbuilt index or an empty query returns no hits.
func (ix *Index) Search(query string, k int) []Hit {
	terms := Tokenize(query)
	if len(terms) == 0 || k <= 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.docLen)
	if n == 0 {
		return nil
	}

	scores := make(map[string]float64)
	for _, term := range terms {
		perDoc := ix.postings[term]
		if len(perDoc) == 0 {
			continue
		}
		idf := idf(n, len(perDoc))
		for id, tf := range perDoc {
			norm := 1 - b + b*float64(ix.docLen[id])/ix.avgDocLen
			scores[id] += idf * float64(tf) * (k1 + 1) / (float64(tf) + k1*norm)
		}
	}
	if len(scores) == 0 {
		return nil
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, Hit{ChunkID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// idf is the BM25 inverse document frequency with the +1 smoothing that
// keeps scores positive for terms present in most documents.
func idf(totalDocs, docsWithTerm int) float64 {
	return math.Log(1 + (float64(totalDocs)-float64(docsWithTerm)+0.5)/(float64(docsWithTerm)+0.5))
}

// Tokenize lowercases text and splits it on any non-alphanumeric rune.
// Exported so ingestion can report token statistics with the same rules
// the index applies.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
