package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ddunnock/sekb-go/internal/kberr"
	"github.com/ddunnock/sekb-go/internal/logging"
	"github.com/ddunnock/sekb-go/internal/search"
	"github.com/ddunnock/sekb-go/internal/vecstore"
)

// SearchTool answers knowledge_search calls by running the configured
// searcher and rendering cited results.
type SearchTool struct {
	searcher search.Searcher
}

// SearchInput is the JSON-serialisable input schema for SearchTool.
type SearchInput struct {
	// Query is the natural-language question. Required.
	Query string `json:"query"`

	// NResults caps the number of results; zero means the default.
	NResults int `json:"n_results,omitempty"`

	// FilterDict restricts results by payload fields: a string value is
	// an exact match, an array of strings is any-of.
	FilterDict map[string]any `json:"filter_dict,omitempty"`

	// ScoreThreshold drops results at or below the given relevance.
	ScoreThreshold float64 `json:"score_threshold,omitempty"`
}

// SearchResultPayload is one rendered result in a SearchResponse.
type SearchResultPayload struct {
	// Content is the chunk text.
	Content string `json:"content"`

	// Relevance is the score as a whole percentage, e.g. "87%".
	Relevance string `json:"relevance"`

	// Citation is the human-readable source citation.
	Citation string `json:"citation"`

	// Metadata carries the citation-relevant chunk fields.
	Metadata map[string]any `json:"metadata"`
}

// SearchResponse is the knowledge_search payload. Success and failure
// share this shape; on failure Results is empty, Count is zero, Error
// describes the failure and Retryable tells the caller whether trying
// again could succeed.
type SearchResponse struct {
	Results   []SearchResultPayload `json:"results"`
	Query     string                `json:"query"`
	Count     int                   `json:"count"`
	Error     string                `json:"error,omitempty"`
	Retryable *bool                 `json:"retryable,omitempty"`
}

// NewSearchTool constructs a SearchTool over the given searcher.
func NewSearchTool(searcher search.Searcher) *SearchTool {
	return &SearchTool{searcher: searcher}
}

// Name returns the tool name registered with the host.
func (t *SearchTool) Name() string { return "knowledge_search" }

// Description returns the host-facing description of this tool.
func (t *SearchTool) Description() string {
	return "Searches the ingested standards corpus and returns ranked passages with citations. " +
		"Use filter_dict to restrict by document, clause, or chunk type."
}

// Search runs the query and maps any pipeline failure into the explicit
// empty-result payload. It never returns an error and never fabricates
// results.
func (t *SearchTool) Search(ctx context.Context, input SearchInput) SearchResponse {
	results, err := t.searcher.Search(ctx, input.Query, search.Options{
		Limit:          input.NResults,
		Filter:         toStoreFilter(input.FilterDict),
		ScoreThreshold: float32(input.ScoreThreshold),
	})
	if err != nil {
		logging.FromContext(ctx).Warn("knowledge search failed",
			slog.String("kind", kberr.KindOf(err).String()),
			slog.Any("reason", err),
		)
		retryable := kberr.Retryable(err)
		return SearchResponse{
			Results:   []SearchResultPayload{},
			Query:     input.Query,
			Count:     0,
			Error:     err.Error(),
			Retryable: &retryable,
		}
	}

	payload := make([]SearchResultPayload, len(results))
	for i, r := range results {
		payload[i] = SearchResultPayload{
			Content:   r.Content,
			Relevance: r.Relevance(),
			Citation:  r.Citation(),
			Metadata:  r.Metadata(),
		}
	}
	return SearchResponse{Results: payload, Query: input.Query, Count: len(payload)}
}

// Invoke executes the tool from a JSON-encoded input string.
func (t *SearchTool) Invoke(ctx context.Context, argumentsInJSON string) (string, error) {
	var input SearchInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return marshalResponse(SearchResponse{
			Results: []SearchResultPayload{},
			Error:   "invalid input: " + err.Error(),
			Retryable: func() *bool {
				v := false
				return &v
			}(),
		})
	}
	return marshalResponse(t.Search(ctx, input))
}

// marshalResponse serialises a tool response payload.
func marshalResponse(v any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", kberr.Wrap(kberr.KindUnknown, "tools.marshalResponse", "encode response", err)
	}
	return string(out), nil
}

// toStoreFilter converts the JSON-decoded filter into the store's filter
// type: strings stay exact matches, arrays become any-of string lists.
func toStoreFilter(raw map[string]any) vecstore.Filter {
	if len(raw) == 0 {
		return nil
	}
	f := make(vecstore.Filter, len(raw))
	for field, value := range raw {
		switch v := value.(type) {
		case []any:
			values := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					values = append(values, s)
				}
			}
			f[field] = values
		default:
			f[field] = v
		}
	}
	return f
}
