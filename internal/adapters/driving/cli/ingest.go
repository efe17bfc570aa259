package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/veritas-labs/lexquery/internal/connectors/filesystem"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest a file or directory into the corpus",
	Long: `Reads, chunks, embeds and indexes local files.

A directory is walked recursively; hidden entries and file types no
normaliser can read are skipped. Re-ingesting a path replaces the
stored version of each file.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	ctx := context.Background()
	if info.IsDir() {
		return ingestDirectory(ctx, cmd, path)
	}
	return ingestFile(ctx, cmd, path)
}

func ingestFile(ctx context.Context, cmd *cobra.Command, path string) error {
	source := filesystem.New(filepath.Dir(path))

	raw, err := source.Load(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if raw == nil {
		return fmt.Errorf("%s: file type not supported or file too large", path)
	}

	result, err := ingestService.Ingest(ctx, raw)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	verb := "Indexed"
	if result.Replaced {
		verb = "Reindexed"
	}
	cmd.Printf("%s %s (%d chunks)\n", verb, result.Title, result.ChunkCount)
	return nil
}

func ingestDirectory(ctx context.Context, cmd *cobra.Command, dir string) error {
	source := filesystem.New(dir)
	if err := source.Validate(ctx); err != nil {
		return err
	}

	cmd.Printf("Ingesting %s...\n\n", dir)

	docs, errs := source.Walk(ctx)

	indexed := 0
	failed := 0
	for docs != nil || errs != nil {
		select {
		case raw, ok := <-docs:
			if !ok {
				docs = nil
				continue
			}
			result, err := ingestService.Ingest(ctx, &raw)
			if err != nil {
				failed++
				cmd.Printf("  failed %s: %v\n", raw.URI, err)
				continue
			}
			indexed++
			cmd.Printf("  %s (%d chunks)\n", result.Title, result.ChunkCount)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			failed++
			cmd.Printf("  failed: %v\n", err)
		}
	}

	cmd.Printf("\nIndexed %d documents", indexed)
	if failed > 0 {
		cmd.Printf(" (%d failed)", failed)
	}
	cmd.Println()
	return nil
}
