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
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Retrieve passages without synthesis",
	Long: `Embeds the query and prints the indexed passages most similar to it,
with similarity scores. No answer is generated; use 'lexquery ask'
for synthesized answers.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of passages")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	ctx := context.Background()
	opts := domain.RetrieveOptions{
		K: searchLimit,
	}

	passages, err := retrievalService.Retrieve(ctx, query, opts)
	if err != nil {
		if errors.Is(err, domain.ErrNoResults) {
			cmd.Println("No results found.")
			return nil
		}
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputPassagesJSON(cmd, passages)
	}

	return outputPassagesTable(cmd, passages)
}

// passageView is the JSON shape for one result. Embeddings and full
// document bodies stay out of it.
type passageView struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	URI        string  `json:"uri,omitempty"`
	Section    string  `json:"section,omitempty"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
}

func outputPassagesJSON(cmd *cobra.Command, passages []domain.RetrievedPassage) error {
	views := make([]passageView, 0, len(passages))
	for i := range passages {
		views = append(views, passageView{
			DocumentID: passages[i].Document.ID,
			Title:      passages[i].Document.Title,
			URI:        passages[i].Document.URI,
			Section:    passages[i].Chunk.Section,
			Similarity: passages[i].Similarity,
			Content:    passages[i].Chunk.Content,
		})
	}

	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputPassagesTable(cmd *cobra.Command, passages []domain.RetrievedPassage) error {
	if len(passages) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range passages {
		title := passages[i].Document.Title
		if title == "" {
			title = passages[i].Document.ID
		}

		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, passages[i].Similarity)
		if passages[i].Chunk.Section != "" {
			cmd.Printf("      Section: %s\n", passages[i].Chunk.Section)
		}
		cmd.Printf("      %s\n", snippet(passages[i].Chunk.Content, 160))
		cmd.Println()
	}

	return nil
}

// snippet collapses whitespace and bounds the text to n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
