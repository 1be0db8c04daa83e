package embedding

import (
	"context"
	"strings"

	"github.com/ddunnock/sekb-go/internal/kberr"
	"github.com/ddunnock/sekb-go/internal/retry"
)

// DefaultDimensions is the vector length of the default embedding model
// (text-embedding-3-small). Collections are created against this unless
// the config overrides it.
const DefaultDimensions = 1536

// DefaultBatchSize is the sub-batch size used by EmbedBatch when the
// config does not set one. It matches the endpoint's hard limit.
const DefaultBatchSize = maxEndpointBatch

// Provider turns text into embeddings. It owns an optional cache and an
// optional usage tracker, splits batches into cache hits and misses, and
// retries transient endpoint failures per its retry policy. Safe for
// concurrent use: the cache is concurrent-safe and no per-query state is
// shared.
type Provider struct {
	// client is the wire-level embedding endpoint.
	client Client
	// model names the embedding model; it keys the cache and the
	// version-qualified collection name.
	model string
	// dimensions is the required vector length; every returned vector is
	// validated against it.
	dimensions int
	// batchSize is the sub-batch size for EmbedBatch, clamped to the
	// endpoint limit.
	batchSize int
	// cache is optional; nil disables caching (every text is a miss).
	cache *Cache
	// usage is optional; nil disables usage accounting.
	usage UsageTracker
	// policy governs retries of endpoint calls.
	policy retry.Policy
}

// ProviderConfig holds the settings for constructing a Provider.
type ProviderConfig struct {
	// Model is the embedding model name (required).
	Model string
	// Dimensions is the required vector length (default DefaultDimensions).
	Dimensions int
	// BatchSize is the sub-batch size for EmbedBatch; clamped to 100.
	BatchSize int
	// Cache enables content-addressed caching when non-nil.
	Cache *Cache
	// Usage enables usage accounting when non-nil.
	Usage UsageTracker
	// Policy overrides the default retry policy when non-nil.
	Policy *retry.Policy
}

// NewProvider constructs a Provider over the given endpoint client.
func NewProvider(client Client, cfg *ProviderConfig) (*Provider, error) {
	const op = "embedding.NewProvider"
	if client == nil {
		return nil, kberr.New(kberr.KindValidation, op, "client must not be nil")
	}
	if cfg == nil || cfg.Model == "" {
		return nil, kberr.New(kberr.KindValidation, op, "model name is required")
	}

	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	batch := cfg.BatchSize
	if batch <= 0 || batch > maxEndpointBatch {
		batch = maxEndpointBatch
	}
	policy := retry.Embedding
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}

	return &Provider{
		client:     client,
		model:      cfg.Model,
		dimensions: dims,
		batchSize:  batch,
		cache:      cfg.Cache,
		usage:      cfg.Usage,
		policy:     policy,
	}, nil
}

// Model returns the embedding model name.
func (p *Provider) Model() string { return p.model }

// Dimensions returns the configured vector length.
func (p *Provider) Dimensions() int { return p.dimensions }

// Embed converts a single text into its embedding. A cache hit returns
// immediately with no network call; a miss calls the endpoint with a
// single-element batch, validates the vector length, and populates the
// cache.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "embedding.Embed"

	if strings.TrimSpace(text) == "" {
		return nil, kberr.New(kberr.KindValidation, op, "text is empty")
	}

	if p.cache != nil {
		if vec, ok := p.cache.Get(p.model, text); ok {
			p.trackHit(1)
			return vec, nil
		}
	}

	vectors, err := p.callEndpoint(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	vec := vectors[0]
	if len(vec) != p.dimensions {
		return nil, kberr.New(kberr.KindValidation, op,
			"embedding length %d does not match configured dimensions %d", len(vec), p.dimensions)
	}

	if p.cache != nil {
		p.cache.Put(p.model, text, vec)
	}
	p.trackMiss(1)
	return vec, nil
}

// EmbedBatch converts texts into embeddings, preserving input order across
// any mix of cache hits and misses. Empty texts fail validation before any
// network call, naming the offending index. Misses are grouped into
// sub-batches of at most the configured batch size and sent in order.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "embedding.EmbedBatch"

	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, kberr.New(kberr.KindValidation, op, "text at index %d is empty", i)
		}
	}

	out := make([][]float32, len(texts))

	// Split into cache hits (resolved now) and misses (sent to the endpoint).
	var missIdx []int
	hits := 0
	for i, t := range texts {
		if p.cache != nil {
			if vec, ok := p.cache.Get(p.model, t); ok {
				out[i] = vec
				hits++
				continue
			}
		}
		missIdx = append(missIdx, i)
	}
	if hits > 0 {
		p.trackHit(hits)
	}

	for start := 0; start < len(missIdx); start += p.batchSize {
		end := start + p.batchSize
		if end > len(missIdx) {
			end = len(missIdx)
		}
		sub := missIdx[start:end]

		batch := make([]string, len(sub))
		for j, idx := range sub {
			batch[j] = texts[idx]
		}

		vectors, err := p.callEndpoint(ctx, batch)
		if err != nil {
			return nil, err
		}

		for j, idx := range sub {
			vec := vectors[j]
			if len(vec) != p.dimensions {
				return nil, kberr.New(kberr.KindValidation, op,
					"embedding for text at index %d has length %d, want %d", idx, len(vec), p.dimensions)
			}
			if p.cache != nil {
				p.cache.Put(p.model, texts[idx], vec)
			}
			out[idx] = vec
		}
	}
	if n := len(missIdx); n > 0 {
		p.trackMiss(n)
	}

	return out, nil
}

// callEndpoint performs one endpoint round trip under the retry policy and
// records the call outcome.
func (p *Provider) callEndpoint(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		var callErr error
		vectors, callErr = p.client.EmbedBatch(ctx, texts)
		return callErr
	})
	if p.usage != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		p.usage.EndpointCall(p.model, len(texts), outcome)
	}
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, kberr.New(kberr.KindConnection, "embedding.callEndpoint",
			"endpoint returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func (p *Provider) trackHit(n int) {
	if p.usage != nil {
		p.usage.CacheHit(p.model, n)
	}
}

func (p *Provider) trackMiss(n int) {
	if p.usage != nil {
		p.usage.CacheMiss(p.model, n)
	}
}
