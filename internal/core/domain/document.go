package domain

import "time"

// Document represents an ingested legal document.
// It is the canonical representation after normalisation and is
// immutable once stored; removal happens only by explicit deletion.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// URI is the original location (file path, upload filename, etc).
	URI string

	// Title is the human-readable title.
	Title string

	// SourceType records how the document entered the corpus
	// (e.g. "upload", "filesystem").
	SourceType string

	// Content is the full text after normalisation.
	// This is the complete document text before chunking.
	Content string

	// Metadata contains arbitrary key-value pairs (mime type,
	// page count, detected headings, ...).
	Metadata map[string]any

	// CreatedAt is when the document was ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-ingested.
	UpdatedAt time.Time
}

// Chunk is a bounded span of a document, the unit of embedding
// and retrieval. Chunks of one document, concatenated with their
// overlaps removed, reconstruct the document content exactly.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text span of this chunk.
	Content string

	// Position is the ordinal position within the document, starting at 0.
	Position int

	// StartOffset and EndOffset are byte offsets into the parent
	// document's Content such that Content == doc.Content[Start:End].
	StartOffset int
	EndOffset   int

	// Section is the nearest preceding heading, when the normaliser
	// detected one (e.g. "ARTICLE IV", "Section 2.1"). Empty otherwise.
	Section string

	// Embedding is the vector representation for similarity search.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// Overlap returns the number of bytes this chunk shares with prev,
// assuming both belong to the same document and prev precedes it.
func (c Chunk) Overlap(prev Chunk) int {
	if prev.EndOffset <= c.StartOffset {
		return 0
	}
	n := prev.EndOffset - c.StartOffset
	if n > len(c.Content) {
		n = len(c.Content)
	}
	return n
}

// DocumentInfo is a lightweight listing view of a document.
type DocumentInfo struct {
	ID         string
	Title      string
	URI        string
	SourceType string
	ChunkCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
