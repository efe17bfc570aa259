// Package sections annotates chunks with the legal heading they fall under.
//
// Headings are detected directly from the document content with patterns for
// the structures common in statutes and contracts: ARTICLE divisions, Section
// numbering, and § citations. Each chunk is labelled with the heading whose
// region covers the largest share of the chunk's span, so a chunk that opens
// with the tail of one section and continues into the next carries the label
// readers would expect.
package sections

import (
	"context"
	"regexp"
	"strings"

	"github.com/veritas-labs/lexquery/internal/core/domain"
)

// headingPattern matches a heading line at its start-of-line anchor. The
// alternatives cover ARTICLE divisions with roman or arabic numerals, Section
// and Sec. numbering with dotted subsections, and § citations.
var headingPattern = regexp.MustCompile(
	`(?m)^[ \t]*(` +
		`(?:ARTICLE|Article)\s+(?:[IVXLCDM]+|\d+)\b[^\n]*` +
		`|(?:SECTION|Section|Sec\.)\s+\d+(?:\.\d+)*\b[^\n]*` +
		`|§+\s*\d+(?:[.\-]\d+)*[^\n]*` +
		`)`,
)

// maxTitleLen bounds stored heading titles; longer matches are usually body
// text that happens to open with a section reference.
const maxTitleLen = 120

// Heading is a detected heading with its byte offset in the document content.
type Heading struct {
	Offset int
	Title  string
}

// Detect returns the headings found in content, in order of appearance.
func Detect(content string) []Heading {
	matches := headingPattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return nil
	}

	headings := make([]Heading, 0, len(matches))
	for _, m := range matches {
		title := cleanTitle(content[m[2]:m[3]])
		if title == "" {
			continue
		}
		headings = append(headings, Heading{Offset: m[0], Title: title})
	}
	return headings
}

// cleanTitle collapses runs of whitespace and truncates over-long matches.
func cleanTitle(raw string) string {
	title := strings.Join(strings.Fields(raw), " ")
	if len(title) > maxTitleLen {
		title = strings.TrimSpace(title[:maxTitleLen])
	}
	return title
}

// Processor assigns a Section label to each chunk. It implements the
// PostProcessor interface and expects to run after the chunker.
type Processor struct{}

// New creates a sections processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "sections"
}

// Process labels each chunk with the heading covering most of its span.
// Documents without recognisable headings pass through unchanged.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}

	headings := Detect(doc.Content)
	if len(headings) == 0 {
		return chunks, nil
	}

	for i := range chunks {
		chunks[i].Section = sectionFor(headings, chunks[i].StartOffset, chunks[i].EndOffset, len(doc.Content))
	}
	return chunks, nil
}

// sectionFor picks the heading whose region overlaps the span [start, end)
// the most. Content before the first heading belongs to an untitled region;
// ties keep the earlier region.
func sectionFor(headings []Heading, start, end, contentLen int) string {
	best := ""
	bestCov := coverage(start, end, 0, headings[0].Offset)

	for i, h := range headings {
		regionEnd := contentLen
		if i+1 < len(headings) {
			regionEnd = headings[i+1].Offset
		}
		if cov := coverage(start, end, h.Offset, regionEnd); cov > bestCov {
			bestCov = cov
			best = h.Title
		}
	}
	return best
}

// coverage returns the length of the intersection of [aLo, aHi) and [bLo, bHi).
func coverage(aLo, aHi, bLo, bHi int) int {
	lo := aLo
	if bLo > lo {
		lo = bLo
	}
	hi := aHi
	if bHi < hi {
		hi = bHi
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}
