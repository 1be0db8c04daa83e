package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ddunnock/sekb-go/internal/logging"
	"github.com/ddunnock/sekb-go/internal/search"
	"github.com/ddunnock/sekb-go/internal/server"
	"github.com/ddunnock/sekb-go/internal/tools"
)

// NewServeCmd constructs the `sekb serve` command, which starts the HTTP
// server exposing search and stats over a REST API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the SEKB HTTP server",
		Long: `Start the SEKB HTTP server on localhost.

The server exposes POST /api/search and GET /api/stats, plus health,
readiness, and Prometheus metrics endpoints. Protected routes require a
Bearer token when SEKB_API_KEY is set.

Examples:
  sekb serve
  sekb serve --port 9090
  SEKB_STORE=sqlite sekb serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("store", os.Getenv("SEKB_STORE")))

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			provider, err := buildEmbeddingProvider(registry)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedding provider: %w", err)
			}
			log.Info("embedding provider initialised",
				slog.String("model", provider.Model()),
				slog.Int("dimensions", provider.Dimensions()),
			)

			store, err := buildStore(ctx, provider.Model(), provider.Dimensions(), log)
			if err != nil {
				return fmt.Errorf("serve: failed to open vector store: %w", err)
			}
			defer store.Close()
			log.Info("vector store ready", slog.String("backend", store.Name()))

			index, err := buildLexicon(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			semantic := search.NewSemanticSearcher(provider, store)
			searcher := search.NewHybridSearcher(semantic, nil)
			if index != nil {
				searcher = search.NewHybridSearcher(semantic, index)
			}

			srv, err := server.New(
				tools.NewSearchTool(searcher),
				tools.NewStatsTool(store),
				&server.Config{
					Host:     host,
					Port:     port,
					Logger:   log,
					Pingers:  []server.Pinger{server.NewStorePinger(store)},
					APIKey:   os.Getenv("SEKB_API_KEY"),
					Registry: registry,
				},
			)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
