package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/veritas-labs/lexquery/internal/adapters/driving/tui"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
)

// TUIConfig holds configuration for the TUI command.
type TUIConfig struct {
	AskService      driving.AskService
	IngestService   driving.IngestService
	DocumentService driving.DocumentService
	SettingsService driving.SettingsService
	HealthService   driving.HealthService
}

// tuiConfig holds the current TUI configuration.
var tuiConfig *TUIConfig

// tuiCmd represents the tui command.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface for LexQuery.

The TUI provides a conversational view for asking questions with
sources and confidence inline, plus corpus browsing and health at a
glance.

Controls:
  ↑/k, ↓/j - Navigate
  Tab      - Switch view
  Enter    - Ask / Select
  Esc      - Back / Cancel
  q        - Quit (outside the input field)`,
	RunE: runTUI,
}

// SetTUIConfig sets the configuration for the TUI command.
func SetTUIConfig(config *TUIConfig) {
	tuiConfig = config
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	ports := &tui.Ports{}
	if tuiConfig != nil {
		ports.Ask = tuiConfig.AskService
		ports.Ingest = tuiConfig.IngestService
		ports.Document = tuiConfig.DocumentService
		ports.Settings = tuiConfig.SettingsService
		ports.Health = tuiConfig.HealthService
	}

	app, err := tui.NewApp(ports)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	app.WithContext(cmd.Context())

	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
