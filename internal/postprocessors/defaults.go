package postprocessors

import (
	"fmt"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
	"github.com/veritas-labs/lexquery/internal/postprocessors/chunker"
	"github.com/veritas-labs/lexquery/internal/postprocessors/sections"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("sections", buildSections)
}

// DefaultSpecs returns the standard pipeline order: split first, then
// annotate each chunk with the heading it falls under.
func DefaultSpecs(chunking domain.ChunkingSettings) []Spec {
	return []Spec{
		{Name: "chunker", Config: map[string]any{
			"chunk_size": chunking.Size,
			"overlap":    chunking.Overlap,
			"tolerance":  chunking.Tolerance,
		}},
		{Name: "sections", Config: nil},
	}
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Characters per chunk (default: 1200)
//   - overlap (int): Overlapping characters between chunks (default: 180)
//   - tolerance (int): Boundary search window in characters (default: 200)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	size, hasSize := intFromConfig(cfg, "chunk_size")
	overlap, hasOverlap := intFromConfig(cfg, "overlap")
	if hasSize && hasOverlap && size <= overlap {
		return nil, fmt.Errorf("%w: chunk size %d must exceed overlap %d",
			domain.ErrChunking, size, overlap)
	}

	if hasSize && size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if hasOverlap && overlap >= 0 {
		opts = append(opts, chunker.WithOverlap(overlap))
	}
	if tol, ok := intFromConfig(cfg, "tolerance"); ok && tol >= 0 {
		opts = append(opts, chunker.WithTolerance(tol))
	}

	return chunker.New(opts...), nil
}

// buildSections creates the heading annotation processor. It takes no config.
func buildSections(_ map[string]any) (driven.PostProcessor, error) {
	return sections.New(), nil
}

// intFromConfig extracts an int from a generic config map. It handles the
// int, int64, and float64 representations that TOML and JSON parsing produce.
func intFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
