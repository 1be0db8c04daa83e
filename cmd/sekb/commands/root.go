// Package commands defines all Cobra CLI commands for the sekb binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/ddunnock/sekb-go/internal/audit"
	"github.com/ddunnock/sekb-go/internal/config"
	"github.com/ddunnock/sekb-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sekb",
		Short: "SEKB — a systems engineering knowledge base with grounded retrieval",
		Long: `SEKB is a local-first knowledge base for systems engineering standards.

It answers natural language queries against an ingested corpus of standards
documents using hybrid semantic and lexical retrieval, always citing the
clauses its answers come from. Results are never fabricated: when retrieval
fails, the failure is reported explicitly.

The vector store backend is selected via the SEKB_STORE environment variable
or a YAML config file (~/.sekb/config.yaml).
See 'sekb --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.sekb/config.yaml)")

	root.AddCommand(
		NewSearchCmd(),
		NewStatsCmd(),
		NewIngestCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
