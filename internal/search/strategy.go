package search

import (
	"regexp"
	"sort"
	"strings"
)

// Strategy is the domain plug-in point for the hybrid searcher: it may
// rewrite the query before embedding and re-score results after fusion.
type Strategy interface {
	// ExpandQuery returns the query text to embed and search with.
	ExpandQuery(query string) string

	// Rescore adjusts result scores after fusion and returns the list
	// re-sorted by the adjusted scores.
	Rescore(results []Result) []Result
}

const (
	// keywordBoost is added per matched domain keyword.
	keywordBoost = 0.1
	// maxKeywordBoost caps the total boost per result.
	maxKeywordBoost = 0.3
	// maxScore caps the boosted score.
	maxScore = 1.0
	// excerptRunes is the evidence excerpt length before truncation.
	excerptRunes = 200
)

// TradeStudyStrategy tunes retrieval for trade studies: it widens the
// query with comparison vocabulary, boosts results that mention the
// study's evaluation keywords, and regroups the flat result list by the
// alternatives under comparison.
type TradeStudyStrategy struct {
	// Keywords are the evaluation criteria terms that earn a score boost
	// (e.g. "cost", "reliability", "latency").
	Keywords []string

	// Alternatives are the names of the options under comparison, used
	// to group evidence.
	Alternatives []string
}

// ExpandQuery widens the query with trade-study vocabulary and the
// alternative names, so both the embedding and the lexical search see the
// comparison context.
func (s *TradeStudyStrategy) ExpandQuery(query string) string {
	var sb strings.Builder
	sb.WriteString(query)
	lower := strings.ToLower(query)
	for _, term := range append([]string{"trade study", "comparison", "criteria"}, s.Alternatives...) {
		if term != "" && !strings.Contains(lower, strings.ToLower(term)) {
			sb.WriteString(" ")
			sb.WriteString(term)
		}
	}
	return sb.String()
}

// Rescore boosts each result by keywordBoost per matched keyword, capped
// at maxKeywordBoost per result and maxScore overall, then re-sorts by the
// boosted score with chunk ID as the tie-break.
func (s *TradeStudyStrategy) Rescore(results []Result) []Result {
	for i := range results {
		boost := 0.0
		content := strings.ToLower(results[i].Content)
		for _, kw := range s.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(content, strings.ToLower(kw)) {
				boost += keywordBoost
			}
			if boost >= maxKeywordBoost {
				boost = maxKeywordBoost
				break
			}
		}
		score := results[i].Score + boost
		if score > maxScore {
			score = maxScore
		}
		results[i].Score = score
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results
}

// Evidence is one supporting passage attributed to an alternative.
type Evidence struct {
	// ChunkID identifies the source chunk.
	ChunkID string `json:"chunk_id"`

	// Excerpt is the chunk content truncated to excerptRunes runes.
	Excerpt string `json:"excerpt"`

	// Value is the first quantitative figure found in the content
	// (a percentage or a time quantity), empty when none appears.
	Value string `json:"value,omitempty"`

	// Citation is the rendered source citation.
	Citation string `json:"citation"`

	// Score is the result's relevance score.
	Score float64 `json:"score"`
}

// quantitativePattern matches the first percentage or time quantity in a
// passage, e.g. "99.9%", "250 ms", "4 hours".
var quantitativePattern = regexp.MustCompile(
	`\d+(?:\.\d+)?\s*%|\d+(?:\.\d+)?\s*(?:ms|milliseconds?|s|secs?|seconds?|mins?|minutes?|h|hours?|days?)\b`)

// Group reshapes a flat result list into per-alternative evidence: each
// result is attributed to every alternative its content mentions. Results
// mentioning no alternative are dropped.
func (s *TradeStudyStrategy) Group(results []Result) map[string][]Evidence {
	grouped := make(map[string][]Evidence, len(s.Alternatives))
	for _, alt := range s.Alternatives {
		if alt == "" {
			continue
		}
		needle := strings.ToLower(alt)
		for _, r := range results {
			if !strings.Contains(strings.ToLower(r.Content), needle) {
				continue
			}
			grouped[alt] = append(grouped[alt], Evidence{
				ChunkID:  r.ChunkID,
				Excerpt:  excerpt(r.Content),
				Value:    quantitativePattern.FindString(r.Content),
				Citation: r.Citation(),
				Score:    r.Score,
			})
		}
	}
	return grouped
}

// excerpt truncates content to excerptRunes runes with an ellipsis.
func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptRunes {
		return content
	}
	return string(runes[:excerptRunes]) + "..."
}
