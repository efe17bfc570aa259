package normalisers

import (
	"github.com/veritas-labs/lexquery/internal/normalisers/docx"
	"github.com/veritas-labs/lexquery/internal/normalisers/html"
	"github.com/veritas-labs/lexquery/internal/normalisers/markdown"
	"github.com/veritas-labs/lexquery/internal/normalisers/pdf"
	"github.com/veritas-labs/lexquery/internal/normalisers/plaintext"
)

// NewDefaultRegistry returns a registry with all built-in normalisers
// registered: plain text (fallback), Markdown, HTML, DOCX, and PDF.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(pdf.New())
	return r
}
