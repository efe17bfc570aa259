// Package chunker splits document content into overlapping character spans.
//
// Each chunk records the half-open [StartOffset, EndOffset) byte span it was
// cut from, so the original content can be rebuilt from the chunk sequence
// and neighbouring chunks share exactly the configured overlap. Cut points
// are moved backward onto natural boundaries (paragraph breaks, sentence
// ends, whitespace) when one exists within the tolerance window; otherwise
// the cut is a hard one at the size limit, pulled back to the nearest rune
// start so no chunk splits a multi-byte character.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/veritas-labs/lexquery/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1200

// DefaultOverlap is the default number of characters shared between
// neighbouring chunks.
const DefaultOverlap = 180

// DefaultTolerance is the default boundary search window in characters.
const DefaultTolerance = 200

// Processor splits document content into chunks. It implements the
// PostProcessor interface and must be the first processor in a pipeline.
type Processor struct {
	size      int
	overlap   int
	tolerance int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.size = size
		}
	}
}

// WithOverlap sets the overlap between neighbouring chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithTolerance sets how far back from the size limit a cut may move to land
// on a natural boundary. Zero disables snapping entirely.
func WithTolerance(tolerance int) Option {
	return func(p *Processor) {
		if tolerance >= 0 {
			p.tolerance = tolerance
		}
	}
}

// New creates a chunker with the given options. Settings that would stall the
// split are normalised: overlap is reduced below the chunk size, and the
// tolerance window is capped at half the per-chunk advance so every chunk
// still moves the cursor forward.
func New(opts ...Option) *Processor {
	p := &Processor{
		size:      DefaultChunkSize,
		overlap:   DefaultOverlap,
		tolerance: DefaultTolerance,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.overlap >= p.size {
		p.overlap = p.size / 4
	}
	if max := (p.size - p.overlap) / 2; p.tolerance > max {
		p.tolerance = max
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks. Input chunks are ignored;
// this processor creates fresh chunks from the document content.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("%w: document %q has no content", domain.ErrChunking, doc.ID)
	}

	content := doc.Content
	contentLen := len(content)

	chunks := make([]domain.Chunk, 0, contentLen/(p.size-p.overlap)+1)

	position := 0
	start := 0

	for start < contentLen {
		end := start + p.size
		if end >= contentLen {
			end = contentLen
		} else {
			end = p.snap(content, start, end)
			for end > start+1 && !utf8.RuneStart(content[end]) {
				end--
			}
		}

		chunks = append(chunks, domain.Chunk{
			ID:          uuid.New().String(),
			DocumentID:  doc.ID,
			Content:     content[start:end],
			Position:    position,
			StartOffset: start,
			EndOffset:   end,
			Metadata:    make(map[string]any),
		})
		position++

		if end >= contentLen {
			break
		}

		next := end - p.overlap
		if next <= start {
			return nil, fmt.Errorf("%w: split made no progress at offset %d", domain.ErrChunking, start)
		}
		start = next
	}

	return chunks, nil
}

// snap moves the cut point backward onto the best boundary inside the
// tolerance window, preferring paragraph breaks over sentence ends over line
// breaks over word gaps. The cut stays at end when the window holds no
// boundary, and never moves at or before start.
func (p *Processor) snap(content string, start, end int) int {
	if p.tolerance <= 0 {
		return end
	}

	lo := end - p.tolerance
	if lo <= start {
		lo = start + 1
	}
	window := content[lo:end]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return lo + i + 2
	}
	if i := lastSentenceEnd(window); i >= 0 {
		return lo + i
	}
	if i := strings.LastIndexByte(window, '\n'); i >= 0 {
		return lo + i + 1
	}
	if i := strings.LastIndexByte(window, ' '); i >= 0 {
		return lo + i + 1
	}
	return end
}

// lastSentenceEnd returns the cut position just past the final sentence
// terminator in window, or -1 when there is none. A terminator is '.', '!',
// '?' or ';' followed by whitespace; the cut lands after that whitespace so
// the next span opens on a new sentence.
func lastSentenceEnd(window string) int {
	for i := len(window) - 2; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?', ';':
			next := window[i+1]
			if next == ' ' || next == '\n' || next == '\t' {
				return i + 2
			}
		}
	}
	return -1
}
