// Package pdf provides a Normaliser implementation for PDF documents.
//
// Extraction prefers the poppler pdftotext tool, which handles the layout
// quirks of scanned-and-OCRed legal filings far better than pure-Go parsers.
// When pdftotext is not installed the normaliser falls back to an embedded
// Go extractor, so ingestion keeps working without system dependencies.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	ledongpdf "github.com/ledongthuc/pdf"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// ErrPDFToolNotFound is returned when pdftotext is not in PATH.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// maxTitleLineLen is the longest first line still treated as a title.
const maxTitleLineLen = 200

// Normaliser handles PDF documents.
type Normaliser struct {
	runner driven.CommandRunner
}

// New creates a PDF normaliser. When pdftotext is available it is used for
// extraction; otherwise the embedded extractor handles everything.
func New() *Normaliser {
	if CheckAvailable() == nil {
		return &Normaliser{runner: ExecRunner{}}
	}
	return &Normaliser{}
}

// NewWithRunner creates a PDF normaliser with a custom command runner.
func NewWithRunner(runner driven.CommandRunner) *Normaliser {
	return &Normaliser{runner: runner}
}

// CheckAvailable reports whether pdftotext can be used.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns platform hints for installing pdftotext.
func InstallInstructions() string {
	return strings.Join([]string{
		"pdftotext improves PDF text extraction quality.",
		"  macOS:         brew install poppler",
		"  Debian/Ubuntu: apt install poppler-utils",
		"  Fedora:        dnf install poppler-utils",
	}, "\n")
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// Run executes the named command and returns its combined stdout.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Format-specific normaliser
}

// Normalise converts a PDF document into a normalised document.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content, err := n.extract(ctx, raw.Content)
	if err != nil {
		return nil, err
	}

	title := extractTitle(content, raw.URI)

	now := time.Now()
	doc := domain.Document{
		ID:         uuid.New().String(),
		URI:        raw.URI,
		Title:      title,
		SourceType: raw.SourceType,
		Content:    content,
		Metadata:   copyMetadata(raw.Metadata),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["mime_type"] = raw.MIMEType
	doc.Metadata["format"] = "pdf"

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// extract returns the plain text of the PDF, trying pdftotext first and the
// embedded extractor second.
func (n *Normaliser) extract(ctx context.Context, data []byte) (string, error) {
	if n.runner != nil {
		text, err := n.viaPdftotext(ctx, data)
		if err == nil {
			return text, nil
		}
		// Tool failure is recoverable; try the embedded extractor.
	}

	text, err := goExtract(data)
	if err != nil {
		return "", fmt.Errorf("%w: pdf text extraction failed: %v", domain.ErrInvalidInput, err)
	}
	return text, nil
}

// viaPdftotext writes the PDF to a temp file and converts it to text on
// stdout. Form feed page separators become blank lines.
func (n *Normaliser) viaPdftotext(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "lexquery-*.pdf")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	out, err := n.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}

	text := strings.ReplaceAll(string(out), "\f", "\n\n")
	return strings.TrimSpace(text), nil
}

// goExtract extracts text with the embedded parser. The parser panics on
// some malformed files, so the panic is converted into an error here.
func goExtract(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse: %v", r)
		}
	}()

	reader, err := ledongpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// extractTitle takes the first short non-empty line near the top of the
// document as the title, falling back to the filename.
func extractTitle(content, uri string) string {
	lines := strings.Split(content, "\n")
	if len(lines) > 5 {
		lines = lines[:5]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > maxTitleLineLen {
			continue
		}
		return line
	}

	filename := filepath.Base(uri)
	ext := filepath.Ext(filename)
	if ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

// copyMetadata creates a shallow copy of metadata.
func copyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
