package chunker

import (
	"strings"

	"github.com/veritas-labs/lexquery/internal/core/domain"
)

// Reassemble rebuilds the original document content from its chunks. Chunks
// must be ordered by Position and carry the offsets they were split with: the
// first chunk is taken whole, and each later chunk contributes only the part
// past the span it shares with its predecessor.
func Reassemble(chunks []domain.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(chunks[0].Content)

	for i := 1; i < len(chunks); i++ {
		shared := chunks[i-1].EndOffset - chunks[i].StartOffset
		if shared < 0 {
			shared = 0
		}
		if shared > len(chunks[i].Content) {
			shared = len(chunks[i].Content)
		}
		b.WriteString(chunks[i].Content[shared:])
	}

	return b.String()
}
