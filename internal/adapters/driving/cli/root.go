// Package cli implements the lexquery command tree. Commands hold no
// business logic; they parse input, call a driving port, and format
// the result.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
	"github.com/veritas-labs/lexquery/internal/logger"
	"github.com/veritas-labs/lexquery/internal/metrics"
)

// version is injected from main via SetVersion.
var version = "dev"

// Services used by the commands. A nil service makes its commands
// fail with a clear message instead of panicking.
var (
	askService       driving.AskService
	retrievalService driving.RetrievalService
	ingestService    driving.IngestService
	documentService  driving.DocumentService
	settingsService  driving.SettingsService
	healthService    driving.HealthService
	metricsCollector *metrics.Collector
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "lexquery",
	Short: "Question answering over your own documents",
	Long: `LexQuery answers natural-language questions from a local document
corpus, with a confidence score and citations back to the documents
that grounded each answer.

Ingest files or directories, then ask questions from the command
line, the terminal UI, the HTTP API, or an MCP client.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

// Services bundles the driving ports the commands depend on.
type Services struct {
	Ask       driving.AskService
	Retrieval driving.RetrievalService
	Ingest    driving.IngestService
	Document  driving.DocumentService
	Settings  driving.SettingsService
	Health    driving.HealthService
	Collector *metrics.Collector
}

// SetServices injects service implementations into the commands.
// Called once from main before Execute.
func SetServices(s Services) {
	askService = s.Ask
	retrievalService = s.Retrieval
	ingestService = s.Ingest
	documentService = s.Document
	settingsService = s.Settings
	healthService = s.Health
	metricsCollector = s.Collector
}

// SetVersion sets the version string printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}
