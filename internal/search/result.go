// Package search implements the query side of the retrieval pipeline:
// semantic search over the vector store, lexical search over the BM25
// index, reciprocal-rank fusion of the two, and the strategy plug-in
// point for domain-specific query shaping.
package search

import (
	"fmt"

	"github.com/ddunnock/sekb-go/internal/chunk"
	"github.com/ddunnock/sekb-go/internal/citation"
	"github.com/ddunnock/sekb-go/internal/vecstore"
)

// Result is a ranked projection of a chunk. It is constructed fresh per
// query, never persisted, and carries everything needed to render a
// citation without another store round trip.
type Result struct {
	// ChunkID identifies the underlying chunk.
	ChunkID string `json:"chunk_id"`

	// Content is the chunk text.
	Content string `json:"content"`

	// Score is the relevance score in [0,1].
	Score float64 `json:"score"`

	// DocumentID identifies the owning document.
	DocumentID string `json:"document_id"`

	// DocumentTitle is the title used in citations.
	DocumentTitle string `json:"document_title"`

	// DocumentType labels the document (standard, handbook, guide).
	DocumentType string `json:"document_type,omitempty"`

	// SectionHierarchy is the path of section labels down to this chunk.
	SectionHierarchy []string `json:"section_hierarchy,omitempty"`

	// SectionTitle is the immediate enclosing section title.
	SectionTitle string `json:"section_title,omitempty"`

	// ClauseNumber is the standard's clause identifier, when known.
	ClauseNumber string `json:"clause_number,omitempty"`

	// ChunkType classifies the content (requirement, guidance, ...).
	ChunkType string `json:"chunk_type,omitempty"`

	// Normative is true for normative text, nil when unknown.
	Normative *bool `json:"normative,omitempty"`

	// PageNumbers lists the source pages, ascending.
	PageNumbers []int `json:"page_numbers,omitempty"`

	// TokenCount is the estimated token count of Content.
	TokenCount int `json:"token_count,omitempty"`
}

// resultFromChunk projects a chunk and its relevance score into a Result.
func resultFromChunk(c chunk.Chunk, score float64) Result {
	return Result{
		ChunkID:          c.ID,
		Content:          c.Content,
		Score:            score,
		DocumentID:       c.DocumentID,
		DocumentTitle:    c.DocumentTitle,
		DocumentType:     c.DocumentType,
		SectionHierarchy: c.SectionHierarchy,
		SectionTitle:     c.SectionTitle,
		ClauseNumber:     c.ClauseNumber,
		ChunkType:        string(c.ChunkType),
		Normative:        c.Normative,
		PageNumbers:      c.PageNumbers,
		TokenCount:       c.TokenCount,
	}
}

// resultFromHit projects a vector store hit into a Result.
func resultFromHit(h vecstore.Hit) Result {
	return resultFromChunk(h.Chunk, float64(h.Score))
}

// Citation renders the human-readable citation for this result.
func (r Result) Citation() string {
	return citation.Format(r.DocumentTitle, r.ClauseNumber, r.SectionTitle, r.PageNumbers)
}

// CitationWithRelevance renders the citation with the score as a
// percentage suffix.
func (r Result) CitationWithRelevance() string {
	return citation.FormatWithRelevance(r.DocumentTitle, r.ClauseNumber, r.SectionTitle, r.PageNumbers, r.Score)
}

// Relevance renders the score as a whole percentage, e.g. "87%".
func (r Result) Relevance() string {
	return fmt.Sprintf("%.0f%%", r.Score*100)
}

// Metadata returns the citation-relevant fields as a generic payload for
// the tool surface.
func (r Result) Metadata() map[string]any {
	m := map[string]any{
		"chunk_id":       r.ChunkID,
		"document_id":    r.DocumentID,
		"document_title": r.DocumentTitle,
	}
	if r.DocumentType != "" {
		m["document_type"] = r.DocumentType
	}
	if len(r.SectionHierarchy) > 0 {
		m["section_hierarchy"] = r.SectionHierarchy
	}
	if r.SectionTitle != "" {
		m["section_title"] = r.SectionTitle
	}
	if r.ClauseNumber != "" {
		m["clause_number"] = r.ClauseNumber
	}
	if r.ChunkType != "" {
		m["chunk_type"] = r.ChunkType
	}
	if r.Normative != nil {
		m["normative"] = *r.Normative
	}
	if len(r.PageNumbers) > 0 {
		m["page_numbers"] = r.PageNumbers
	}
	if r.TokenCount > 0 {
		m["token_count"] = r.TokenCount
	}
	return m
}
