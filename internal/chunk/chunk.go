// Package chunk defines the immutable unit of indexed knowledge: a chunk of
// a standards document plus the metadata needed to cite it. Chunks are
// created once during ingestion and read-only thereafter.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/ddunnock/sekb-go/internal/kberr"
)

// Type labels what kind of text a chunk holds.
type Type string

const (
	// TypeRequirement is normative "shall" text.
	TypeRequirement Type = "requirement"
	// TypeGuidance is informative "should/may" text.
	TypeGuidance Type = "guidance"
	// TypeDefinition is a term definition.
	TypeDefinition Type = "definition"
	// TypeTable is tabular content rendered as text.
	TypeTable Type = "table"
)

// Chunk is one retrievable unit of ingested knowledge.
type Chunk struct {
	// ID uniquely identifies the chunk across the corpus.
	ID string `json:"id"`

	// Content is the chunk text.
	Content string `json:"content"`

	// ContentHash is the hex sha256 of Content, used for deduplication.
	ContentHash string `json:"content_hash,omitempty"`

	// DocumentID identifies the owning document.
	DocumentID string `json:"document_id"`

	// DocumentTitle is the human-readable title used in citations
	// (e.g. "ISO/IEC/IEEE 12207:2017").
	DocumentTitle string `json:"document_title"`

	// DocumentType labels the document (standard, handbook, guide).
	DocumentType string `json:"document_type,omitempty"`

	// SectionHierarchy is the ordered list of section labels from the
	// document root down to the section containing this chunk.
	SectionHierarchy []string `json:"section_hierarchy,omitempty"`

	// SectionTitle is the title of the immediate enclosing section.
	SectionTitle string `json:"section_title,omitempty"`

	// ClauseNumber is the standard's clause identifier (e.g. "6.4.2"), when known.
	ClauseNumber string `json:"clause_number,omitempty"`

	// ChunkType classifies the content.
	ChunkType Type `json:"chunk_type,omitempty"`

	// Normative is true for normative text, false for informative text,
	// and nil when the ingester could not tell.
	Normative *bool `json:"normative,omitempty"`

	// PageNumbers lists the source pages this chunk spans, ascending and
	// possibly non-contiguous.
	PageNumbers []int `json:"page_numbers,omitempty"`

	// References lists identifiers of documents or clauses this chunk cites.
	References []string `json:"references,omitempty"`

	// TokenCount is the estimated token count of Content.
	TokenCount int `json:"token_count,omitempty"`

	// ParentChunkID links a sub-chunk back to its hierarchical parent.
	ParentChunkID string `json:"parent_chunk_id,omitempty"`

	// Embedding is the dense vector for Content, produced by EmbeddingModel.
	Embedding []float32 `json:"embedding,omitempty"`

	// EmbeddingModel names the model that produced Embedding.
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

// HashContent returns the hex sha256 of text.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Validate checks the chunk invariants before it is written to a store.
// dimensions is the vector length required by the collection's embedding
// model; zero skips the length check.
func (c *Chunk) Validate(dimensions int) error {
	const op = "chunk.Validate"
	if c.ID == "" {
		return kberr.New(kberr.KindValidation, op, "chunk has no ID")
	}
	if c.Content == "" {
		return kberr.New(kberr.KindValidation, op, "chunk %s has empty content", c.ID)
	}
	if len(c.Embedding) == 0 {
		return kberr.New(kberr.KindValidation, op, "chunk %s has no embedding", c.ID)
	}
	if dimensions > 0 && len(c.Embedding) != dimensions {
		return kberr.New(kberr.KindValidation, op,
			"chunk %s embedding length %d does not match model dimensions %d",
			c.ID, len(c.Embedding), dimensions)
	}
	return nil
}
