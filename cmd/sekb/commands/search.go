package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ddunnock/sekb-go/internal/logging"
	"github.com/ddunnock/sekb-go/internal/search"
	"github.com/ddunnock/sekb-go/internal/vecstore"
)

// NewSearchCmd constructs the `sekb search` command, which runs a single
// hybrid retrieval query and prints cited results to stdout.
func NewSearchCmd() *cobra.Command {
	var limit int
	var threshold float32
	var filters []string
	var tradeStudy bool
	var alternatives []string
	var keywords []string

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the knowledge base and print cited results",
		Long: `Run a hybrid semantic and lexical query against the knowledge base.

Each result is printed with its citation (document, clause, section) and a
relevance percentage. Retrieval failures are reported explicitly; results
are never invented.

Filters narrow results by metadata field, e.g. --filter document_type=standard
or --filter chunk_type=requirement. Repeating a filter for the same field
matches any of the given values.

Examples:
  sekb search "verification and validation planning"
  sekb search --limit 10 --filter document_type=standard "design review criteria"
  sekb search --trade-study --alternative "fiber optic" --alternative "copper" "bus latency"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			provider, err := buildEmbeddingProvider(nil)
			if err != nil {
				return fmt.Errorf("search: failed to initialise embedding provider: %w", err)
			}

			store, err := buildStore(ctx, provider.Model(), provider.Dimensions(), log)
			if err != nil {
				return fmt.Errorf("search: failed to open vector store: %w", err)
			}
			defer store.Close()

			index, err := buildLexicon(log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			semantic := search.NewSemanticSearcher(provider, store)
			searcher := search.NewHybridSearcher(semantic, nil)
			if index != nil {
				searcher = search.NewHybridSearcher(semantic, index)
			}

			var strategy *search.TradeStudyStrategy
			if tradeStudy {
				strategy = &search.TradeStudyStrategy{
					Keywords:     keywords,
					Alternatives: alternatives,
				}
				searcher.UseStrategy(strategy)
			}

			query := strings.Join(args, " ")
			results, err := searcher.Search(ctx, query, search.Options{
				Limit:          limit,
				Filter:         parseFilters(filters),
				ScoreThreshold: threshold,
			})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(results) == 0 {
				fmt.Println("No results found.")
				return nil
			}

			printResults(cmd, results)
			if strategy != nil {
				printEvidence(cmd, strategy.Group(results))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", search.DefaultLimit, "Maximum number of results to return")
	cmd.Flags().Float32VarP(&threshold, "threshold", "t", 0, "Minimum similarity score (0 disables the cutoff)")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Metadata filter as field=value (repeatable)")
	cmd.Flags().BoolVar(&tradeStudy, "trade-study", false, "Expand and re-score the query for trade study comparison")
	cmd.Flags().StringArrayVar(&alternatives, "alternative", nil, "Trade study alternative to search evidence for (repeatable)")
	cmd.Flags().StringArrayVar(&keywords, "keyword", nil, "Keyword that boosts a result's score (repeatable)")

	return cmd
}

// parseFilters converts field=value flags into a store filter. Repeated
// fields collapse into an any-of match.
func parseFilters(raw []string) vecstore.Filter {
	if len(raw) == 0 {
		return nil
	}
	f := make(vecstore.Filter, len(raw))
	for _, entry := range raw {
		field, value, ok := strings.Cut(entry, "=")
		if !ok || field == "" {
			continue
		}
		switch prev := f[field].(type) {
		case nil:
			f[field] = value
		case string:
			f[field] = []string{prev, value}
		case []string:
			f[field] = append(prev, value)
		}
	}
	return f
}

// printExcerptRunes caps the content excerpt printed per result.
const printExcerptRunes = 400

// printResults writes one block per result: citation, relevance, and a
// content excerpt.
func printResults(cmd *cobra.Command, results []search.Result) {
	out := cmd.OutOrStdout()
	for i, r := range results {
		fmt.Fprintf(out, "%d. %s\n", i+1, r.CitationWithRelevance())
		content := r.Content
		// Truncate on rune boundaries so multibyte content never splits
		// mid-sequence.
		if runes := []rune(content); len(runes) > printExcerptRunes {
			content = string(runes[:printExcerptRunes]) + "..."
		}
		fmt.Fprintf(out, "   %s\n\n", strings.ReplaceAll(content, "\n", "\n   "))
	}
}

// printEvidence writes the per-alternative evidence table produced by a
// trade study query.
func printEvidence(cmd *cobra.Command, groups map[string][]search.Evidence) {
	out := cmd.OutOrStdout()
	for alternative, evidence := range groups {
		fmt.Fprintf(out, "Evidence for %q:\n", alternative)
		for _, e := range evidence {
			if e.Value != "" {
				fmt.Fprintf(out, "  - [%s] %s (%s)\n", e.Value, e.Excerpt, e.Citation)
			} else {
				fmt.Fprintf(out, "  - %s (%s)\n", e.Excerpt, e.Citation)
			}
		}
		fmt.Fprintln(out)
	}
}
