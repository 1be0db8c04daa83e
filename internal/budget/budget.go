// Package budget provides token count estimation for corpus chunks.
// Because the corpus may be embedded by backends with different tokenizers,
// this package uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose). This deliberately under-estimates
// so downstream consumers that assemble context windows keep headroom.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English prose; 3 would be
	// more aggressive but risks overflowing downstream context windows.
	charsPerToken = 4
)

// Estimate returns a rough token count for s using the character heuristic.
// Non-empty strings always estimate to at least 1 token.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateAll returns the summed estimate for a batch of texts.
func EstimateAll(texts []string) int {
	total := 0
	for _, t := range texts {
		total += Estimate(t)
	}
	return total
}
