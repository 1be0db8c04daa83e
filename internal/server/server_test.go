package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ddunnock/sekb-go/internal/chunk"
	"github.com/ddunnock/sekb-go/internal/kberr"
	"github.com/ddunnock/sekb-go/internal/search"
	"github.com/ddunnock/sekb-go/internal/tools"
	"github.com/ddunnock/sekb-go/internal/vecstore"
)

// scriptedSearcher plays back fixed results or an error.
type scriptedSearcher struct {
	results []search.Result
	err     error
}

func (s *scriptedSearcher) Search(context.Context, string, search.Options) ([]search.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

// scriptedStore only implements the Stats path meaningfully.
type scriptedStore struct {
	stats *vecstore.Stats
	err   error
}

func (s *scriptedStore) EnsureCollection(context.Context) error { return nil }
func (s *scriptedStore) AddChunks(context.Context, []chunk.Chunk) (int, error) {
	return 0, nil
}
func (s *scriptedStore) Search(context.Context, []float32, vecstore.SearchOptions) ([]vecstore.Hit, error) {
	return nil, nil
}
func (s *scriptedStore) Stats(context.Context) (*vecstore.Stats, error) {
	return s.stats, s.err
}
func (s *scriptedStore) HealthCheck(context.Context) bool { return true }
func (s *scriptedStore) Name() string                     { return "scripted" }
func (s *scriptedStore) Close() error                     { return nil }

// newTestServer builds a bare Server for handler-level tests, with a fresh
// metrics registry so tests stay hermetic.
func newTestServer() *Server {
	return &Server{
		searchTool: tools.NewSearchTool(&scriptedSearcher{}),
		statsTool:  tools.NewStatsTool(&scriptedStore{stats: &vecstore.Stats{}}),
		cfg:        &Config{},
		log:        slog.New(slog.DiscardHandler),
		metrics:    newServerMetrics(prometheus.NewRegistry()),
	}
}

func Test_HandleSearch_Success(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.searchTool = tools.NewSearchTool(&scriptedSearcher{results: []search.Result{{
		ChunkID:       "c1",
		Content:       "The supplier shall verify the system.",
		Score:         0.91,
		DocumentTitle: "ISO/IEC/IEEE 12207:2017",
		ClauseNumber:  "6.4.9",
	}}})

	body := strings.NewReader(`{"query":"verification process","n_results":3}`)
	req := httptest.NewRequest(http.MethodPost, "/api/search", body)
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp tools.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Results[0].Relevance != "91%" {
		t.Errorf("unexpected payload %+v", resp)
	}
}

func Test_HandleSearch_PipelineFailureIsStillOK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.searchTool = tools.NewSearchTool(&scriptedSearcher{
		err: kberr.New(kberr.KindConnection, "test", "embedding service unreachable"),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"anything"}`))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline failures keep the contract shape and 200, got %d", w.Code)
	}
	var resp tools.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "" || resp.Count != 0 || len(resp.Results) != 0 {
		t.Errorf("want explicit empty-result payload, got %+v", resp)
	}
	if resp.Retryable == nil || !*resp.Retryable {
		t.Error("connection failure must be flagged retryable")
	}
}

func Test_HandleSearch_BadRequests(t *testing.T) {
	t.Parallel()

	s := newTestServer()

	for name, body := range map[string]string{
		"malformed JSON": `{"query": `,
		"missing query":  `{"n_results": 5}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
		w := httptest.NewRecorder()
		s.handleSearch(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: want 400, got %d", name, w.Code)
		}
	}
}

func Test_HandleStats_Success(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.statsTool = tools.NewStatsTool(&scriptedStore{stats: &vecstore.Stats{
		CollectionName: "sekb_knowledge__test_model",
		TotalChunks:    42,
		VectorsCount:   42,
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()

	s.handleStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	var resp tools.StatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalChunks != 42 {
		t.Errorf("unexpected payload %+v", resp)
	}
}

func Test_HandleStats_StoreDown(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.statsTool = tools.NewStatsTool(&scriptedStore{
		err: kberr.New(kberr.KindConnection, "test", "store down"),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()

	s.handleStats(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503 when the store is down, got %d", w.Code)
	}
}

func Test_New_WiresProtectedRoutes(t *testing.T) {
	t.Parallel()

	srv, err := New(
		tools.NewSearchTool(&scriptedSearcher{}),
		tools.NewStatsTool(&scriptedStore{stats: &vecstore.Stats{}}),
		&Config{
			APIKey:   "secret",
			Logger:   slog.New(slog.DiscardHandler),
			Registry: prometheus.NewRegistry(),
		},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(srv.stopRL)

	// No token: protected route rejects, health stays open.
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"q"}`)))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated search: want 401, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health: want 200, got %d", w.Code)
	}

	// Bearer token passes.
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"q"}`))
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated search: want 200, got %d", w.Code)
	}

	// Metrics endpoint is served from the injected registry.
	w = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("metrics: want 200, got %d", w.Code)
	}
}
