package services

import (
	"fmt"
	"strings"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/logger"
	"github.com/veritas-labs/lexquery/internal/tokeniser"
)

// passageSeparator joins excerpt blocks in the assembled context.
const passageSeparator = "\n\n"

// ContextAssembler packs retrieved passages into a token-bounded
// context string for generation. Passages are taken in rank order;
// when the next one does not fit whole, it is cut back to a sentence
// boundary, and packing stops there.
//
// Citations are collected at document level: chunks of the same
// document collapse to one source entry, section headings folded into
// its metadata.
type ContextAssembler struct {
	counter  tokeniser.Counter
	defaults domain.ContextSettings
}

// NewContextAssembler creates an assembler. A nil counter falls back
// to the tiktoken counter; a zero token budget falls back to the
// application default.
func NewContextAssembler(counter tokeniser.Counter, defaults domain.ContextSettings) *ContextAssembler {
	if counter == nil {
		counter = tokeniser.NewTiktoken()
	}
	if defaults.TokenBudget <= 0 {
		defaults.TokenBudget = domain.DefaultAppSettings().Context.TokenBudget
	}
	return &ContextAssembler{
		counter:  counter,
		defaults: defaults,
	}
}

// Assemble builds the context from passages, spending at most budget
// tokens. A budget of zero means the configured default.
func (a *ContextAssembler) Assemble(passages []domain.RetrievedPassage, budget int) *domain.AssembledContext {
	if budget <= 0 {
		budget = a.defaults.TokenBudget
	}

	out := &domain.AssembledContext{}
	if len(passages) == 0 {
		return out
	}

	var text string
	byDoc := make(map[string]int) // document ID -> index into out.Sources

	for i := 0; i < len(passages); i++ {
		p := passages[i]
		block := formatPassage(i+1, p)

		candidate := join(text, block)
		if a.counter.Count(candidate) <= budget {
			text = candidate
			a.include(out, byDoc, p)
			continue
		}

		// The passage does not fit whole. Cut it back to the longest
		// sentence prefix that does, then stop packing.
		header := passageHeader(i+1, p)
		if cut := a.fitSentences(text, header, p.Chunk.Content, budget); cut != "" {
			text = join(text, header+"\n"+cut)
			a.include(out, byDoc, p)
			out.Truncated = true
		}
		break
	}

	out.Text = text
	if text != "" {
		out.TokensUsed = a.counter.Count(text)
	}

	logger.Debug("Assemble: %d passages in, %d used, %d tokens, truncated=%t",
		len(passages), len(out.Similarities), out.TokensUsed, out.Truncated)
	return out
}

// include records a packed passage's attribution and similarity.
func (a *ContextAssembler) include(out *domain.AssembledContext, byDoc map[string]int, p domain.RetrievedPassage) {
	out.Similarities = append(out.Similarities, p.Similarity)

	idx, ok := byDoc[p.Document.ID]
	if !ok {
		idx = len(out.Sources)
		byDoc[p.Document.ID] = idx
		out.Sources = append(out.Sources, domain.SourceRef{
			DocumentID: p.Document.ID,
			Title:      p.Document.Title,
			SourceType: p.Document.SourceType,
		})
	}

	if section := p.Chunk.Section; section != "" {
		ref := &out.Sources[idx]
		for _, have := range ref.Sections {
			if have == section {
				return
			}
		}
		ref.Sections = append(ref.Sections, section)
	}
}

// fitSentences returns the longest sentence prefix of content that
// still fits the budget when appended to base under header, or ""
// when not even the first sentence fits.
func (a *ContextAssembler) fitSentences(base, header, content string, budget int) string {
	ends := sentenceEnds(content)
	best := ""
	for _, end := range ends {
		prefix := strings.TrimRight(content[:end], " \t\n")
		if prefix == "" {
			continue
		}
		candidate := join(base, header+"\n"+prefix)
		if a.counter.Count(candidate) > budget {
			break
		}
		best = prefix
	}
	return best
}

// formatPassage renders one excerpt block. The leading [n] marker is
// the number the system prompt tells the model to cite by.
func formatPassage(n int, p domain.RetrievedPassage) string {
	return passageHeader(n, p) + "\n" + p.Chunk.Content
}

// passageHeader renders the excerpt header line, e.g.
// "[2] Master Services Agreement, Section 4.1".
func passageHeader(n int, p domain.RetrievedPassage) string {
	title := p.Document.Title
	if title == "" {
		title = p.Document.ID
	}
	if p.Chunk.Section != "" {
		return fmt.Sprintf("[%d] %s, %s", n, title, p.Chunk.Section)
	}
	return fmt.Sprintf("[%d] %s", n, title)
}

// join appends block to base with the passage separator.
func join(base, block string) string {
	if base == "" {
		return block
	}
	return base + passageSeparator + block
}

// sentenceEnds returns the cut positions after each sentence in s:
// just past a '.', '!' or '?' that is followed by whitespace, just
// past a newline, and at the end of the text.
func sentenceEnds(s string) []int {
	var ends []int
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\n' || s[i+1] == '\t' {
				ends = append(ends, i+1)
			}
		case '\n':
			ends = append(ends, i+1)
		}
	}
	if len(s) > 0 && (len(ends) == 0 || ends[len(ends)-1] != len(s)) {
		ends = append(ends, len(s))
	}
	return ends
}
