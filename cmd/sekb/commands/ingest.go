package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ddunnock/sekb-go/internal/ingestion"
	"github.com/ddunnock/sekb-go/internal/lexical"
	"github.com/ddunnock/sekb-go/internal/logging"
)

// NewIngestCmd constructs the `sekb ingest` command, which loads a JSONL
// corpus snapshot, embeds chunks that lack vectors, and upserts everything
// into the vector store.
func NewIngestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a corpus snapshot into the knowledge base",
		Long: `Load a JSONL corpus snapshot and index it into the vector store.

Each line of the snapshot is one chunk: its ID, content, document metadata,
and optionally a pre-computed embedding. Chunks without embeddings are sent
to the embedding endpoint in batches. Missing metadata (chunk type, token
count, content hash) is inferred during ingestion.

Required environment variables:
  EMBEDDING_API_KEY    Embedding endpoint API key
  EMBEDDING_MODEL      Embedding model name (default: text-embedding-3-small)
  QDRANT_HOST          Qdrant server hostname (omit to use the local SQLite store)
  SEKB_CORPUS          Default corpus snapshot path (overridden by --file)

Examples:
  sekb ingest --file corpus.jsonl
  SEKB_STORE=sqlite sekb ingest --file standards/12207.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			path := file
			if path == "" {
				path = os.Getenv("SEKB_CORPUS")
			}
			if path == "" {
				return fmt.Errorf("ingest: provide --file or set SEKB_CORPUS")
			}

			provider, err := buildEmbeddingProvider(nil)
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedding provider: %w", err)
			}
			log.Info("embedding provider initialised",
				slog.String("model", provider.Model()),
				slog.Int("dimensions", provider.Dimensions()),
			)

			store, err := buildStore(ctx, provider.Model(), provider.Dimensions(), log)
			if err != nil {
				return fmt.Errorf("ingest: failed to open vector store: %w", err)
			}
			defer store.Close()
			log.Info("vector store ready", slog.String("backend", store.Name()))

			pipeline, err := ingestion.NewPipeline(provider, store, lexical.NewIndex())
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			count, err := pipeline.IngestFile(ctx, path, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingestion complete",
				slog.String("corpus", path),
				slog.Int("chunks", count),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the JSONL corpus snapshot (default: $SEKB_CORPUS)")

	return cmd
}
