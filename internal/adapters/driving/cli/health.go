package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/veritas-labs/lexquery/internal/core/domain"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check component health",
	Long: `Probes the document store, the vector index, and the AI backends.

Exits non-zero when a required component is down. A generation
outage only degrades: retrieval keeps working without it.`,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	if healthService == nil {
		return errors.New("health service not configured")
	}

	report := healthService.Check(context.Background())

	cmd.Printf("Status: %s\n\n", report.Status)
	for _, component := range report.Components {
		cmd.Printf("  %-12s %s", component.Name, component.Status)
		if component.Error != "" {
			cmd.Printf(" (%s)", component.Error)
		}
		cmd.Println()
	}

	if report.Status == domain.HealthError {
		return errors.New("system unhealthy")
	}
	return nil
}
