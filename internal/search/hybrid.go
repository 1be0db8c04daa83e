package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ddunnock/sekb-go/internal/chunk"
	"github.com/ddunnock/sekb-go/internal/kberr"
	"github.com/ddunnock/sekb-go/internal/lexical"
	"github.com/ddunnock/sekb-go/internal/logging"
	"github.com/ddunnock/sekb-go/internal/vecstore"
)

// rrfK is the reciprocal-rank-fusion constant: each candidate at 1-based
// rank r in a source list contributes 1/(rrfK+r) to its fused score.
const rrfK = 60

// minCandidates floors the per-source candidate count so fusion has
// material to work with even for small result limits.
const minCandidates = 20

// Searcher is the query-side contract shared by the semantic and hybrid
// searchers, so the tool layer stays agnostic of which one it holds.
type Searcher interface {
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Lexicon is the slice of the BM25 index the hybrid searcher needs.
// Satisfied by *lexical.Index.
type Lexicon interface {
	IsIndexed() bool
	Search(query string, k int) []lexical.Hit
	Chunk(id string) (chunk.Chunk, bool)
}

// HybridSearcher fuses semantic and lexical rankings with reciprocal rank
// fusion. It owns no query state; both sub-searchers are supplied at
// construction and shared across concurrent queries.
type HybridSearcher struct {
	semantic Searcher
	lexicon  Lexicon
	strategy Strategy
}

// NewHybridSearcher wires the semantic searcher to a lexical index.
// lexicon may be nil, in which case every query runs semantic-only.
func NewHybridSearcher(semantic Searcher, lexicon Lexicon) *HybridSearcher {
	return &HybridSearcher{semantic: semantic, lexicon: lexicon}
}

// UseStrategy installs a domain strategy that expands queries before
// embedding and re-scores results after fusion. Passing nil removes it.
func (h *HybridSearcher) UseStrategy(s Strategy) { h.strategy = s }

// Search runs semantic and lexical sub-searches in parallel and fuses
// their rankings. When the lexical index is unbuilt the semantic results
// are returned unmodified. A sub-search failure degrades that source to an
// empty contribution; the query only fails outright when the semantic path
// fails and the lexical path has nothing to offer.
func (h *HybridSearcher) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	const op = "search.Hybrid"

	if strings.TrimSpace(query) == "" {
		return nil, kberr.New(kberr.KindValidation, op, "query text is empty")
	}
	if h.strategy != nil {
		query = h.strategy.ExpandQuery(query)
	}

	if h.lexicon == nil || !h.lexicon.IsIndexed() {
		results, err := h.semantic.Search(ctx, query, opts)
		if err != nil {
			return nil, err
		}
		return h.rescore(results, opts.limit()), nil
	}

	// Each source returns more than the caller asked for so fusion can
	// promote candidates ranked low by one source but high by the other.
	candidates := opts.Limit * 3
	if candidates < minCandidates {
		candidates = minCandidates
	}

	var (
		semResults []Result
		semErr     error
		lexHits    []lexical.Hit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		semResults, semErr = h.semantic.Search(gctx, query, Options{
			Limit:          candidates,
			Filter:         opts.Filter,
			ScoreThreshold: opts.ScoreThreshold,
		})
		return nil
	})
	g.Go(func() error {
		lexHits = h.lexicon.Search(query, candidates)
		return nil
	})
	_ = g.Wait()

	if semErr != nil {
		if kberr.IsValidation(semErr) {
			return nil, semErr
		}
		if len(lexHits) == 0 {
			return nil, semErr
		}
		logging.FromContext(ctx).Warn("semantic search failed, fusing lexical results only",
			slog.Any("reason", semErr))
		semResults = nil
	}

	results := h.fuse(semResults, lexHits, opts)
	return h.rescore(results, opts.limit()), nil
}

// fusedCandidate accumulates one chunk's contributions from both sources.
type fusedCandidate struct {
	id       string
	semantic *Result
	fused    float64
	raw      float64
}

// fuse applies reciprocal rank fusion across the two ranked lists. The
// surfaced score is the candidate's best underlying raw score, which keeps
// scores in [0,1]; ordering follows the fused score, ties broken by raw
// score, then chunk ID.
func (h *HybridSearcher) fuse(semResults []Result, lexHits []lexical.Hit, opts Options) []Result {
	byID := make(map[string]*fusedCandidate, len(semResults)+len(lexHits))
	get := func(id string) *fusedCandidate {
		c := byID[id]
		if c == nil {
			c = &fusedCandidate{id: id}
			byID[id] = c
		}
		return c
	}

	for i := range semResults {
		c := get(semResults[i].ChunkID)
		c.semantic = &semResults[i]
		c.fused += 1 / float64(rrfK+i+1)
		if semResults[i].Score > c.raw {
			c.raw = semResults[i].Score
		}
	}

	// BM25 scores are unbounded, so normalize against the top lexical hit
	// to keep the surfaced score comparable to cosine similarity.
	var topLex float64
	if len(lexHits) > 0 {
		topLex = lexHits[0].Score
	}
	for i, hit := range lexHits {
		c := get(hit.ChunkID)
		c.fused += 1 / float64(rrfK+i+1)
		if topLex > 0 {
			if norm := hit.Score / topLex; norm > c.raw {
				c.raw = norm
			}
		}
	}

	fused := make([]*fusedCandidate, 0, len(byID))
	for _, c := range byID {
		fused = append(fused, c)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].fused != fused[j].fused {
			return fused[i].fused > fused[j].fused
		}
		if fused[i].raw != fused[j].raw {
			return fused[i].raw > fused[j].raw
		}
		return fused[i].id < fused[j].id
	})

	limit := opts.limit()
	results := make([]Result, 0, limit)
	for _, c := range fused {
		if len(results) == limit {
			break
		}
		if c.semantic != nil {
			r := *c.semantic
			r.Score = c.raw
			results = append(results, r)
			continue
		}
		// Lexical-only candidate: the store never saw it, so the filter
		// and threshold are enforced here instead.
		ck, ok := h.lexicon.Chunk(c.id)
		if !ok {
			continue
		}
		if !matchesFilter(ck, opts.Filter) {
			continue
		}
		// Inclusive, mirroring the stores' threshold semantics.
		if opts.ScoreThreshold > 0 && c.raw < float64(opts.ScoreThreshold) {
			continue
		}
		results = append(results, resultFromChunk(ck, c.raw))
	}
	return results
}

// rescore applies the installed strategy's post-fusion scoring, keeping
// the result count capped at limit.
func (h *HybridSearcher) rescore(results []Result, limit int) []Result {
	if h.strategy == nil {
		return results
	}
	results = h.strategy.Rescore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// matchesFilter evaluates a store filter against chunk metadata with the
// same semantics the stores apply: scalar values match exactly, []string
// matches any-of.
func matchesFilter(c chunk.Chunk, f vecstore.Filter) bool {
	for field, want := range f {
		got, ok := filterFieldValue(c, field)
		if !ok {
			return false
		}
		switch w := want.(type) {
		case []string:
			found := false
			for _, v := range w {
				if got == v {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case bool:
			if got != boolLabel(w) {
				return false
			}
		default:
			if got != stringValue(want) {
				return false
			}
		}
	}
	return true
}

// filterFieldValue resolves a filterable payload field to its string form.
func filterFieldValue(c chunk.Chunk, field string) (string, bool) {
	switch field {
	case "document_id":
		return c.DocumentID, true
	case "document_type":
		return c.DocumentType, true
	case "section_title":
		return c.SectionTitle, true
	case "chunk_type":
		return string(c.ChunkType), true
	case "clause_number":
		return c.ClauseNumber, true
	case "embedding_model":
		return c.EmbeddingModel, true
	case "parent_chunk_id":
		return c.ParentChunkID, true
	case "normative":
		if c.Normative == nil {
			return "", false
		}
		return boolLabel(*c.Normative), true
	default:
		return "", false
	}
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
