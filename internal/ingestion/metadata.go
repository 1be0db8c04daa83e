package ingestion

import (
	"regexp"
	"strings"

	"github.com/ddunnock/sekb-go/internal/chunk"
)

// Standards prose signals its own register: normative requirements use
// "shall", recommendations use "should", permissions use "may". The
// snapshot's own labels take precedence over inference here, which is the
// best-effort fallback for corpora exported without classification.

// definitionPattern matches the "term: definition" and "term — noun
// phrase" openings used by the terms-and-definitions clauses of ISO and
// IEEE standards.
var definitionPattern = regexp.MustCompile(`(?i)^\s*[\w /-]{2,60}:\s+\S|^\s*\d+\.\d+(?:\.\d+)*\s+[a-z][\w -]*\n`)

// tablePattern matches content that is mostly delimiter-structured rows.
var tablePattern = regexp.MustCompile(`(?m)^\s*\|.*\|\s*$`)

// requirementWords are the modal verbs that make a sentence normative.
var requirementWords = []string{" shall ", " shall,", " shall."}

// guidanceWords are the modal verbs of informative recommendations.
var guidanceWords = []string{" should ", " may ", " can ", " recommended "}

// InferChunkMetadata fills ChunkType and Normative when the snapshot left
// them unset. Existing values are never overwritten.
func InferChunkMetadata(c *chunk.Chunk) {
	if c.ChunkType == "" {
		c.ChunkType = classify(c.Content)
	}
	if c.Normative == nil {
		switch c.ChunkType {
		case chunk.TypeRequirement:
			v := true
			c.Normative = &v
		case chunk.TypeGuidance, chunk.TypeDefinition:
			v := false
			c.Normative = &v
		}
		// Tables and unrecognized prose stay unknown.
	}
}

// classify labels chunk content by its dominant register.
func classify(content string) chunk.Type {
	if tablePattern.MatchString(content) {
		return chunk.TypeTable
	}
	lower := " " + strings.ToLower(content) + " "
	for _, w := range requirementWords {
		if strings.Contains(lower, w) {
			return chunk.TypeRequirement
		}
	}
	if definitionPattern.MatchString(content) {
		return chunk.TypeDefinition
	}
	for _, w := range guidanceWords {
		if strings.Contains(lower, w) {
			return chunk.TypeGuidance
		}
	}
	return ""
}
