package embedding

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// UsageTracker records embedding acquisition events. It is an optional
// Provider dependency — a nil tracker disables usage accounting without
// changing behavior. Implementations must be safe for concurrent use.
type UsageTracker interface {
	// CacheHit records n texts resolved from the cache without a network call.
	CacheHit(model string, n int)
	// CacheMiss records n texts that had to be sent to the endpoint.
	CacheMiss(model string, n int)
	// EndpointCall records one endpoint round trip covering n texts.
	// outcome is "ok" or "error".
	EndpointCall(model string, n int, outcome string)
}

// PromUsage is a UsageTracker backed by Prometheus counters.
type PromUsage struct {
	// cacheHits counts texts resolved from the cache, per model.
	cacheHits *prometheus.CounterVec
	// cacheMisses counts texts that required an endpoint call, per model.
	cacheMisses *prometheus.CounterVec
	// calls counts endpoint round trips, per model and outcome.
	calls *prometheus.CounterVec
	// texts counts texts sent to the endpoint, per model.
	texts *prometheus.CounterVec
}

// NewPromUsage registers the embedding usage metrics against reg and
// returns the tracker. promauto.With(reg) keeps unit tests hermetic by
// registering into the provided registry rather than the global default.
func NewPromUsage(reg prometheus.Registerer) *PromUsage {
	factory := promauto.With(reg)

	return &PromUsage{
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sekb",
			Subsystem: "embedding",
			Name:      "cache_hits_total",
			Help:      "Texts resolved from the embedding cache without a network call.",
		}, []string{"model"}),

		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sekb",
			Subsystem: "embedding",
			Name:      "cache_misses_total",
			Help:      "Texts that required an embedding endpoint call.",
		}, []string{"model"}),

		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sekb",
			Subsystem: "embedding",
			Name:      "endpoint_calls_total",
			Help:      "Embedding endpoint round trips, partitioned by outcome.",
		}, []string{"model", "outcome"}),

		texts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sekb",
			Subsystem: "embedding",
			Name:      "endpoint_texts_total",
			Help:      "Texts sent to the embedding endpoint.",
		}, []string{"model"}),
	}
}

// CacheHit implements UsageTracker.
func (u *PromUsage) CacheHit(model string, n int) {
	u.cacheHits.WithLabelValues(model).Add(float64(n))
}

// CacheMiss implements UsageTracker.
func (u *PromUsage) CacheMiss(model string, n int) {
	u.cacheMisses.WithLabelValues(model).Add(float64(n))
}

// EndpointCall implements UsageTracker.
func (u *PromUsage) EndpointCall(model string, n int, outcome string) {
	u.calls.WithLabelValues(model, outcome).Inc()
	if outcome == "ok" {
		u.texts.WithLabelValues(model).Add(float64(n))
	}
}
