package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ddunnock/sekb-go/internal/logging"
)

// NewStatsCmd constructs the `sekb stats` command, which prints collection
// statistics for the active vector store.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print vector store collection statistics",
		Long: `Print statistics for the active knowledge base collection: chunk and
vector counts, the resolved collection name, and backend configuration.

Examples:
  sekb stats
  SEKB_STORE=sqlite sekb stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			provider, err := buildEmbeddingProvider(nil)
			if err != nil {
				return fmt.Errorf("stats: failed to initialise embedding provider: %w", err)
			}

			store, err := buildStore(ctx, provider.Model(), provider.Dimensions(), log)
			if err != nil {
				return fmt.Errorf("stats: failed to open vector store: %w", err)
			}
			defer store.Close()

			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend:      %s\n", store.Name())
			fmt.Fprintf(out, "Collection:   %s\n", stats.CollectionName)
			fmt.Fprintf(out, "Total chunks: %d\n", stats.TotalChunks)
			fmt.Fprintf(out, "Vectors:      %d\n", stats.VectorsCount)

			keys := make([]string, 0, len(stats.Config))
			for k := range stats.Config {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "  %s: %v\n", k, stats.Config[k])
			}
			return nil
		},
	}
}
