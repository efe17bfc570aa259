package chunker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/veritas-labs/lexquery/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		if p.size != DefaultChunkSize {
			t.Errorf("expected size %d, got %d", DefaultChunkSize, p.size)
		}
		if p.overlap != DefaultOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultOverlap, p.overlap)
		}
		if p.tolerance != DefaultTolerance {
			t.Errorf("expected tolerance %d, got %d", DefaultTolerance, p.tolerance)
		}
	})

	t.Run("custom settings", func(t *testing.T) {
		p := New(WithChunkSize(500), WithOverlap(100), WithTolerance(40))
		if p.size != 500 || p.overlap != 100 || p.tolerance != 40 {
			t.Errorf("options not applied: %+v", p)
		}
	})

	t.Run("overlap exceeding size is reduced", func(t *testing.T) {
		p := New(WithChunkSize(100), WithOverlap(150))
		if p.overlap >= p.size {
			t.Errorf("overlap %d not reduced below size %d", p.overlap, p.size)
		}
	})

	t.Run("tolerance capped to half the advance", func(t *testing.T) {
		p := New(WithChunkSize(100), WithOverlap(20), WithTolerance(500))
		if p.tolerance != 40 {
			t.Errorf("expected tolerance capped at 40, got %d", p.tolerance)
		}
	})

	t.Run("zero and negative values ignored", func(t *testing.T) {
		p := New(WithChunkSize(0), WithOverlap(-1), WithTolerance(-5))
		if p.size != DefaultChunkSize || p.overlap != DefaultOverlap || p.tolerance != DefaultTolerance {
			t.Errorf("invalid values should keep defaults: %+v", p)
		}
	})
}

func TestProcessor_Name(t *testing.T) {
	if New().Name() != "chunker" {
		t.Errorf("expected name 'chunker', got %q", New().Name())
	}
}

func TestProcessor_Process_EmptyContent(t *testing.T) {
	p := New()

	for _, content := range []string{"", "   \n\t  \n"} {
		doc := &domain.Document{ID: "doc-1", Content: content}
		_, err := p.Process(context.Background(), doc, nil)
		if !errors.Is(err, domain.ErrChunking) {
			t.Errorf("content %q: expected ErrChunking, got %v", content, err)
		}
	}
}

func TestProcessor_Process_SmallContent(t *testing.T) {
	p := New(WithChunkSize(100), WithOverlap(20))
	doc := &domain.Document{
		ID:      "doc-1",
		Content: "The parties agree to the terms below.",
	}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	c := chunks[0]
	if c.DocumentID != doc.ID {
		t.Errorf("expected DocumentID %q, got %q", doc.ID, c.DocumentID)
	}
	if c.Content != doc.Content {
		t.Error("expected chunk content to match document content")
	}
	if c.Position != 0 {
		t.Errorf("expected position 0, got %d", c.Position)
	}
	if c.StartOffset != 0 || c.EndOffset != len(doc.Content) {
		t.Errorf("expected span [0,%d), got [%d,%d)", len(doc.Content), c.StartOffset, c.EndOffset)
	}
}

func TestProcessor_Process_HardCuts(t *testing.T) {
	p := New(WithChunkSize(400), WithOverlap(50), WithTolerance(0))
	doc := &domain.Document{
		ID:      "doc-1",
		Content: strings.Repeat("x", 900),
	}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	wantSpans := [][2]int{{0, 400}, {350, 750}, {700, 900}}
	for i, want := range wantSpans {
		c := chunks[i]
		if c.Position != i {
			t.Errorf("chunk %d: expected position %d, got %d", i, i, c.Position)
		}
		if c.StartOffset != want[0] || c.EndOffset != want[1] {
			t.Errorf("chunk %d: expected span [%d,%d), got [%d,%d)",
				i, want[0], want[1], c.StartOffset, c.EndOffset)
		}
	}

	for i := 1; i < len(chunks); i++ {
		if got := chunks[i].Overlap(chunks[i-1]); got != 50 {
			t.Errorf("chunks %d/%d: expected overlap 50, got %d", i-1, i, got)
		}
	}

	if got := Reassemble(chunks); got != doc.Content {
		t.Errorf("reassembled content differs: %d chars vs %d", len(got), len(doc.Content))
	}
}

func TestProcessor_Process_SnapsToSentenceEnd(t *testing.T) {
	p := New(WithChunkSize(100), WithOverlap(10), WithTolerance(30))

	content := strings.Repeat("a", 78) + ". " + strings.Repeat("b", 120)
	doc := &domain.Document{ID: "doc-1", Content: content}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if chunks[0].EndOffset != 80 {
		t.Errorf("expected first cut at 80, got %d", chunks[0].EndOffset)
	}
	if !strings.HasSuffix(chunks[0].Content, ". ") {
		t.Errorf("expected first chunk to end on sentence boundary, got %q",
			chunks[0].Content[len(chunks[0].Content)-5:])
	}
	if chunks[1].StartOffset != 70 {
		t.Errorf("expected second chunk to start at 70, got %d", chunks[1].StartOffset)
	}
}

func TestProcessor_Process_PrefersParagraphBreak(t *testing.T) {
	p := New(WithChunkSize(100), WithOverlap(10), WithTolerance(30))

	// The window [70,100) holds both a paragraph break and a sentence end.
	content := strings.Repeat("a", 75) + "\n\nbbb. " + strings.Repeat("c", 80)
	doc := &domain.Document{ID: "doc-1", Content: content}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if chunks[0].EndOffset != 77 {
		t.Errorf("expected cut after paragraph break at 77, got %d", chunks[0].EndOffset)
	}
}

func TestProcessor_Process_HardCutWithoutBoundary(t *testing.T) {
	p := New(WithChunkSize(100), WithOverlap(10), WithTolerance(30))
	doc := &domain.Document{ID: "doc-1", Content: strings.Repeat("x", 250)}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if chunks[0].EndOffset != 100 {
		t.Errorf("expected hard cut at 100, got %d", chunks[0].EndOffset)
	}
}

func TestProcessor_Process_OffsetsMatchContent(t *testing.T) {
	p := New(WithChunkSize(120), WithOverlap(25), WithTolerance(40))

	content := "ARTICLE I\n\nThe Supplier shall deliver the goods described in Schedule A. " +
		"Delivery is complete when the Buyer signs the receipt. " +
		"Risk of loss passes to the Buyer on delivery.\n\n" +
		"ARTICLE II\n\nPayment is due within thirty days of the invoice date. " +
		"Late payment accrues interest at two percent per month. " +
		"The Buyer may not withhold payment for disputed line items."
	doc := &domain.Document{ID: "doc-1", Content: content}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	seen := make(map[string]bool)
	for i, c := range chunks {
		if content[c.StartOffset:c.EndOffset] != c.Content {
			t.Errorf("chunk %d: content does not match its span", i)
		}
		if seen[c.ID] {
			t.Errorf("duplicate chunk ID %s", c.ID)
		}
		seen[c.ID] = true
		if c.Metadata == nil {
			t.Errorf("chunk %d: metadata not initialised", i)
		}
	}

	for i := 1; i < len(chunks); i++ {
		if got := chunks[i].Overlap(chunks[i-1]); got != 25 {
			t.Errorf("chunks %d/%d: expected overlap 25, got %d", i-1, i, got)
		}
	}
}

func TestReassemble(t *testing.T) {
	content := strings.Repeat(
		"Section 1.1 The Licensee shall not sublicense the Software. "+
			"Any attempt to do so is void and terminates this Agreement.\n\n", 12)
	doc := &domain.Document{ID: "doc-1", Content: content}

	configs := []struct {
		size, overlap, tolerance int
	}{
		{400, 50, 0},
		{200, 40, 60},
		{100, 0, 25},
		{180, 30, 180},
	}

	for _, cfg := range configs {
		p := New(WithChunkSize(cfg.size), WithOverlap(cfg.overlap), WithTolerance(cfg.tolerance))
		chunks, err := p.Process(context.Background(), doc, nil)
		if err != nil {
			t.Fatalf("config %+v: unexpected error: %v", cfg, err)
		}
		if got := Reassemble(chunks); got != content {
			t.Errorf("config %+v: reassembled content differs from original", cfg)
		}
	}
}

func TestReassemble_Empty(t *testing.T) {
	if got := Reassemble(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestProcessor_Process_TinySettingsTerminate(t *testing.T) {
	p := New(WithChunkSize(10), WithOverlap(9))
	doc := &domain.Document{ID: "doc-1", Content: strings.Repeat("y", 500)}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := Reassemble(chunks); got != doc.Content {
		t.Error("reassembled content differs from original")
	}
}

func TestProcessor_Process_NeverSplitsRunes(t *testing.T) {
	p := New(WithChunkSize(101), WithOverlap(0), WithTolerance(0))
	doc := &domain.Document{ID: "doc-1", Content: strings.Repeat("§", 300)}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, c := range chunks {
		if !utf8.ValidString(c.Content) {
			t.Errorf("chunk %d: content is not valid UTF-8", i)
		}
	}
	if got := Reassemble(chunks); got != doc.Content {
		t.Error("reassembled content differs from original")
	}
}

func TestProcessor_Process_IgnoresInputChunks(t *testing.T) {
	p := New(WithChunkSize(100))

	existing := []domain.Chunk{{ID: "existing", Content: "should be ignored"}}
	doc := &domain.Document{ID: "doc-1", Content: "New content to chunk."}

	chunks, err := p.Process(context.Background(), doc, existing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, c := range chunks {
		if c.ID == "existing" {
			t.Error("existing chunks should be ignored")
		}
	}
}
