package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ddunnock/sekb-go/internal/kberr"
	"github.com/ddunnock/sekb-go/internal/logging"
	"github.com/ddunnock/sekb-go/internal/vecstore"
)

// StatsTool answers knowledge_stats calls with collection counts and the
// store's configuration echo.
type StatsTool struct {
	store vecstore.VectorStore
}

// StatsResponse is the knowledge_stats payload. On failure the counts are
// zero and Error describes the failure.
type StatsResponse struct {
	CollectionName string         `json:"collection_name"`
	TotalChunks    uint64         `json:"total_chunks"`
	VectorsCount   uint64         `json:"vectors_count"`
	Config         map[string]any `json:"config,omitempty"`
	Error          string         `json:"error,omitempty"`
	Retryable      *bool          `json:"retryable,omitempty"`
}

// NewStatsTool constructs a StatsTool over the selected store.
func NewStatsTool(store vecstore.VectorStore) *StatsTool {
	return &StatsTool{store: store}
}

// Name returns the tool name registered with the host.
func (t *StatsTool) Name() string { return "knowledge_stats" }

// Description returns the host-facing description of this tool.
func (t *StatsTool) Description() string {
	return "Reports the knowledge collection's chunk and vector counts plus its configuration."
}

// Stats fetches collection statistics, mapping failures into the payload.
func (t *StatsTool) Stats(ctx context.Context) StatsResponse {
	stats, err := t.store.Stats(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("knowledge stats failed",
			slog.String("kind", kberr.KindOf(err).String()),
			slog.Any("reason", err),
		)
		retryable := kberr.Retryable(err)
		return StatsResponse{Error: err.Error(), Retryable: &retryable}
	}
	return StatsResponse{
		CollectionName: stats.CollectionName,
		TotalChunks:    stats.TotalChunks,
		VectorsCount:   stats.VectorsCount,
		Config:         stats.Config,
	}
}

// Invoke executes the tool; knowledge_stats takes no input.
func (t *StatsTool) Invoke(ctx context.Context, _ string) (string, error) {
	out, err := json.Marshal(t.Stats(ctx))
	if err != nil {
		return "", kberr.Wrap(kberr.KindUnknown, "tools.StatsTool.Invoke", "encode response", err)
	}
	return string(out), nil
}
