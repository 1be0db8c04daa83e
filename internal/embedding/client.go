// Package embedding acquires dense vector embeddings from a remote
// endpoint, with content-addressed caching, batching, retry-with-backoff,
// and usage tracking. The package never fabricates vectors: every failure
// surfaces as a classified error from the kberr taxonomy.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ddunnock/sekb-go/internal/kberr"
)

// Client is the wire-level interface to an embedding endpoint. It accepts
// at most maxEndpointBatch texts per call and returns one vector per input,
// in input order. Implementations must be safe for concurrent use.
type Client interface {
	// EmbedBatch converts texts into their embeddings, parallel to the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// maxEndpointBatch is the hard per-request text limit imposed by the
// embedding endpoint. Provider sub-batches never exceed it regardless of
// the configured batch size.
const maxEndpointBatch = 100

// HTTPClient talks to an OpenAI-compatible embeddings REST endpoint.
// It is safe for concurrent use.
type HTTPClient struct {
	// baseURL is the API base (e.g. "https://api.openai.com/v1").
	baseURL string
	// apiKey is the Bearer token. Never written into error messages.
	apiKey string
	// model is the embedding model name.
	model string
	// dimensions is the requested vector length (0 = model default).
	dimensions int
	// client is the shared HTTP client; its timeout bounds each attempt.
	client *http.Client
}

// HTTPConfig holds the settings for constructing an HTTPClient.
type HTTPConfig struct {
	// BaseURL is the API base URL (default "https://api.openai.com/v1").
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name.
	Model string
	// Dimensions is the requested vector length (0 = model default).
	Dimensions int
	// Timeout bounds each HTTP attempt (default 30s).
	Timeout time.Duration
}

// NewHTTPClient constructs an HTTPClient from the given config.
func NewHTTPClient(cfg *HTTPConfig) *HTTPClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: timeout},
	}
}

// embedRequest is the JSON body sent to the embeddings endpoint.
type embedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// embedResponse is the JSON body returned from the embeddings endpoint.
type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// EmbedBatch sends one embeddings request for texts and returns the vectors
// in input order. Transport and endpoint failures are classified into the
// kberr taxonomy so the provider's retry policy can act on them.
func (c *HTTPClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "embedding.HTTPClient"

	if len(texts) > maxEndpointBatch {
		return nil, kberr.New(kberr.KindValidation, op,
			"batch of %d exceeds endpoint limit of %d", len(texts), maxEndpointBatch)
	}

	body := embedRequest{Input: texts, Model: c.model}
	if c.dimensions > 0 {
		body.Dimensions = c.dimensions
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.classifyTransport(op, err)
	}
	defer resp.Body.Close()

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, kberr.Wrap(kberr.KindConnection, op, "decode response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return nil, c.classifyStatus(op, resp.StatusCode, msg)
	}

	if len(result.Data) != len(texts) {
		return nil, kberr.New(kberr.KindConnection, op,
			"expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	// The endpoint may return data out of order; reassemble by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, kberr.New(kberr.KindConnection, op,
				"embedding index %d out of range [0, %d)", d.Index, len(texts))
		}
		embeddings[d.Index] = d.Embedding
	}

	return embeddings, nil
}

// classifyTransport maps a transport-level error (request never produced a
// response) into the taxonomy: timeouts stay timeouts, everything else is a
// connection failure.
func (c *HTTPClient) classifyTransport(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return kberr.Wrap(kberr.KindTimeout, op, "embedding request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return kberr.Wrap(kberr.KindTimeout, op, "embedding request timed out", err)
	}
	return kberr.Wrap(kberr.KindConnection, op, "embedding service unreachable", err)
}

// authMessagePattern matches endpoint error text that indicates bad
// credentials even when the status code is ambiguous.
var authMessageFragments = []string{"invalid", "unauthorized", "forbidden", "api key"}

// classifyStatus maps a non-2xx endpoint response into the taxonomy.
// The API key is scrubbed from the message before it can reach a log line
// or an error payload.
func (c *HTTPClient) classifyStatus(op string, status int, msg string) error {
	msg = c.scrub(msg)

	switch {
	case status == http.StatusTooManyRequests:
		return kberr.New(kberr.KindRateLimit, op, "embedding endpoint rate limited: %s", msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return kberr.New(kberr.KindAuth, op, "embedding endpoint rejected credentials: %s", msg)
	case matchesAuthMessage(msg):
		return kberr.New(kberr.KindAuth, op, "embedding endpoint rejected credentials: %s", msg)
	default:
		return kberr.New(kberr.KindConnection, op, "embedding endpoint error: %s", msg)
	}
}

// matchesAuthMessage reports whether the endpoint error text looks like an
// authentication failure.
func matchesAuthMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, frag := range authMessageFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// scrub removes the API key from endpoint-supplied text. Some endpoints
// echo the presented credential back in auth error messages.
func (c *HTTPClient) scrub(msg string) string {
	if c.apiKey == "" {
		return msg
	}
	return strings.ReplaceAll(msg, c.apiKey, "[redacted]")
}
