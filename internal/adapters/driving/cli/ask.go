package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veritas-labs/lexquery/internal/core/domain"
)

var (
	askPassages int
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against the corpus",
	Long: `Answers a natural-language question from the indexed documents.

The answer comes with a confidence score and citations naming the
documents that grounded it. When nothing relevant is indexed or a
backend is unreachable, a degraded notice is printed instead of
failing.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askPassages, "passages", "k", 0, "passages to retrieve (0 = configured default)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	if askService == nil {
		return errors.New("ask service not configured")
	}

	ctx := context.Background()
	opts := domain.AskOptions{}
	if askPassages > 0 {
		opts.Retrieve.K = askPassages
	}

	answer, err := askService.Ask(ctx, question, opts)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		return outputAnswerJSON(cmd, answer)
	}

	return outputAnswerText(cmd, answer)
}

func outputAnswerJSON(cmd *cobra.Command, answer *domain.Answer) error {
	data, err := json.MarshalIndent(answer, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputAnswerText(cmd *cobra.Command, answer *domain.Answer) error {
	cmd.Println(answer.Text)
	cmd.Println()

	note := ""
	if answer.Degraded {
		note = " (degraded)"
	}
	cmd.Printf("Confidence: %.2f%s\n", answer.Confidence, note)

	if len(answer.Sources) > 0 {
		cmd.Println("Sources:")
		for i, src := range answer.Sources {
			title := src.Title
			if title == "" {
				title = src.DocumentID
			}
			cmd.Printf("  [%d] %s\n", i+1, title)
			if len(src.Sections) > 0 {
				cmd.Printf("      %s\n", strings.Join(src.Sections, "; "))
			}
		}
	}

	return nil
}
