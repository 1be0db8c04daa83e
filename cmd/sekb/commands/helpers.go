package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ddunnock/sekb-go/internal/embedding"
	"github.com/ddunnock/sekb-go/internal/ingestion"
	"github.com/ddunnock/sekb-go/internal/kberr"
	"github.com/ddunnock/sekb-go/internal/lexical"
	"github.com/ddunnock/sekb-go/internal/vecstore"
)

// defaultEmbeddingModel is used when EMBEDDING_MODEL is not set.
const defaultEmbeddingModel = "text-embedding-3-small"

// buildEmbeddingProvider constructs the embedding provider from env vars.
// When reg is non-nil, usage metrics are registered against it; a nil
// registry disables usage accounting (one-shot CLI commands).
func buildEmbeddingProvider(reg prometheus.Registerer) (*embedding.Provider, error) {
	client := embedding.NewHTTPClient(&embedding.HTTPConfig{
		BaseURL:    os.Getenv("EMBEDDING_ENDPOINT"),
		APIKey:     os.Getenv("EMBEDDING_API_KEY"),
		Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultEmbeddingModel),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
	})

	cfg := &embedding.ProviderConfig{
		Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultEmbeddingModel),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		Cache:      embedding.NewCache(),
	}
	if reg != nil {
		cfg.Usage = embedding.NewPromUsage(reg)
	}

	return embedding.NewProvider(client, cfg)
}

// buildStore selects and opens the vector store from env vars. Qdrant is
// configured when QDRANT_HOST is set; the SQLite fallback is always
// available at SEKB_LOCAL_DB (default ~/.sekb/knowledge.db).
func buildStore(ctx context.Context, model string, dimensions int, log *slog.Logger) (vecstore.VectorStore, error) {
	cfg := &vecstore.SelectorConfig{
		Preferred: os.Getenv("SEKB_STORE"),
		Pinned:    os.Getenv("SEKB_STORE_PINNED") == "true",
	}

	if host := os.Getenv("QDRANT_HOST"); host != "" {
		cfg.Qdrant = &vecstore.QdrantConfig{
			Host:           host,
			Port:           getEnvInt("QDRANT_PORT", 6334),
			APIKey:         os.Getenv("QDRANT_API_KEY"),
			UseTLS:         os.Getenv("QDRANT_TLS") == "true",
			CollectionBase: os.Getenv("QDRANT_COLLECTION"),
			EmbeddingModel: model,
			Dimensions:     dimensions,
		}
	}

	dbPath, err := localDBPath()
	if err != nil {
		log.Warn("local store unavailable", slog.Any("error", err))
	} else {
		cfg.SQLite = &vecstore.SQLiteConfig{
			Path:           dbPath,
			CollectionBase: os.Getenv("QDRANT_COLLECTION"),
			EmbeddingModel: model,
			Dimensions:     dimensions,
		}
	}

	return vecstore.Select(ctx, cfg, log)
}

// buildLexicon loads the corpus snapshot named by SEKB_CORPUS and builds
// the in-memory lexical index. Returns nil when no corpus is configured;
// hybrid search then degrades to semantic-only.
func buildLexicon(log *slog.Logger) (*lexical.Index, error) {
	path := os.Getenv("SEKB_CORPUS")
	if path == "" {
		log.Info("lexical index disabled", slog.String("reason", "SEKB_CORPUS not set"))
		return nil, nil
	}

	chunks, err := ingestion.Load(path)
	if err != nil {
		return nil, kberr.Wrap(kberr.KindValidation, "commands.buildLexicon", "loading corpus snapshot", err)
	}

	index := lexical.NewIndex()
	index.Build(chunks)
	log.Info("lexical index built",
		slog.String("corpus", path),
		slog.Int("chunks", index.Len()),
	)
	return index, nil
}

// localDBPath resolves the SQLite database path. SEKB_LOCAL_DB overrides
// the default of ~/.sekb/knowledge.db.
func localDBPath() (string, error) {
	if p := os.Getenv("SEKB_LOCAL_DB"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", kberr.Wrap(kberr.KindValidation, "commands.localDBPath", "resolving home directory", err)
	}
	dir := filepath.Join(home, ".sekb")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", kberr.Wrap(kberr.KindValidation, "commands.localDBPath", "creating data directory", err)
	}
	return filepath.Join(dir, "knowledge.db"), nil
}

// getEnvOrDefault returns the env var value, or fallback if unset/empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as an int, or fallback on
// absence or parse failure.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
