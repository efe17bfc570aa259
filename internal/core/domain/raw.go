package domain

// RawDocument represents opaque bytes as received from an upload or
// the filesystem, before normalisation.
type RawDocument struct {
	// URI is the original location (file path, upload filename).
	URI string

	// SourceType records the ingestion channel ("upload", "filesystem").
	SourceType string

	// MIMEType is the content type (e.g. "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains channel-specific key-value pairs.
	Metadata map[string]any
}

// ChangeType represents the type of corpus change observed by a watcher.
type ChangeType int

const (
	// ChangeCreated indicates a new file appeared.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a file was modified.
	ChangeUpdated

	// ChangeDeleted indicates a file was removed.
	ChangeDeleted
)

// String returns the change type name.
func (t ChangeType) String() string {
	switch t {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// CorpusChange is a change event emitted by the corpus watcher.
// For deletions only the URI is populated.
type CorpusChange struct {
	// Type is the kind of change.
	Type ChangeType

	// Document is the affected document (empty Content for deletions).
	Document RawDocument
}
