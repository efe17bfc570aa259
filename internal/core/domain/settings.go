package domain

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// IndexKind selects the vector index implementation.
type IndexKind string

// Available index kinds.
const (
	// IndexKindFlat is an exact scan over per-segment shards.
	// Right answer for corpora up to the tens of thousands of chunks.
	IndexKindFlat IndexKind = "flat"

	// IndexKindIVF is an inverted-file partition index: candidates
	// are scored only in the partitions nearest the query.
	IndexKindIVF IndexKind = "ivf"
)

// IsValid returns true if the index kind is recognised.
func (k IndexKind) IsValid() bool {
	return k == IndexKindFlat || k == IndexKindIVF
}

// String returns the string representation.
func (k IndexKind) String() string {
	return string(k)
}

// Description returns a human-readable description of the index kind.
func (k IndexKind) Description() string {
	switch k {
	case IndexKindFlat:
		return "Flat (exact scan, segmented)"
	case IndexKindIVF:
		return "IVF (partitioned approximate search)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// BatchSize bounds how many texts go to the backend per request.
	BatchSize int

	// MaxRetries caps retry attempts for transient failures.
	MaxRetries int

	// RequestsPerSecond throttles calls to the backend. Zero disables
	// the limiter.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds generation provider configuration.
type LLMSettings struct {
	// Provider is the generation service provider.
	Provider AIProvider

	// Model is the generation model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// MaxTokens bounds the generated answer length.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64

	// MaxRetries caps retry attempts for transient failures.
	MaxRetries int
}

// IsConfigured returns true if the generation provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// ChunkingSettings holds document splitting configuration.
type ChunkingSettings struct {
	// Size is the target chunk size in bytes.
	Size int

	// Overlap is how many bytes consecutive chunks share.
	Overlap int

	// Tolerance is how far back from the target size the chunker may
	// move to land on a sentence or paragraph boundary.
	Tolerance int
}

// RetrievalSettings holds retrieval configuration.
type RetrievalSettings struct {
	// K is the number of passages to return.
	K int

	// MaxPerDocument caps chunks from a single document.
	MaxPerDocument int

	// OverfetchFactor multiplies K when querying the index so the
	// per-document cap and threshold still leave K survivors.
	OverfetchFactor int

	// MinSimilarity drops candidates scoring below it.
	MinSimilarity float64
}

// ContextSettings holds context assembly configuration.
type ContextSettings struct {
	// TokenBudget bounds the assembled context size in tokens.
	TokenBudget int

	// HistoryTurns bounds how many prior conversation turns the
	// synthesizer includes.
	HistoryTurns int
}

// ConfidenceSettings tunes the confidence heuristic used when the
// generation backend returns no native score: the mean similarity of
// the passages actually used, rescaled over [Floor, Ceil], multiplied
// by found/k when evidence is thin.
type ConfidenceSettings struct {
	// Floor maps to confidence 0.
	Floor float64

	// Ceil maps to confidence 1.
	Ceil float64

	// ThinEvidencePenalty enables the found/k multiplier.
	ThinEvidencePenalty bool
}

// IndexSettings holds vector index configuration.
type IndexSettings struct {
	// Kind selects the index implementation.
	Kind IndexKind

	// Dimensions is the embedding vector size. Must match the
	// embedding model; every mismatched insert is rejected.
	Dimensions int

	// SegmentSize is the flat index's per-segment capacity.
	SegmentSize int

	// Partitions is the IVF partition count.
	Partitions int

	// Probes is how many IVF partitions a search visits.
	Probes int
}

// ServerSettings holds HTTP server configuration.
type ServerSettings struct {
	// Addr is the listen address for the HTTP API.
	Addr string

	// MaxUploadBytes bounds ingest upload size.
	MaxUploadBytes int64
}

// StorageSettings holds persistence configuration.
type StorageSettings struct {
	// DatabasePath is the SQLite database location. Empty means the
	// default under the user's home directory.
	DatabasePath string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds generation provider settings.
	LLM LLMSettings

	// Chunking holds document splitting settings.
	Chunking ChunkingSettings

	// Retrieval holds retrieval settings.
	Retrieval RetrievalSettings

	// Context holds context assembly settings.
	Context ContextSettings

	// Confidence holds confidence heuristic settings.
	Confidence ConfidenceSettings

	// Index holds vector index settings.
	Index IndexSettings

	// Server holds HTTP server settings.
	Server ServerSettings

	// Storage holds persistence settings.
	Storage StorageSettings
}

// DefaultAppSettings returns settings that work against a local
// Ollama instance out of the box. Cloud providers need an API key
// entered via the settings command first.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:          AIProviderOllama,
			Model:             "mxbai-embed-large",
			BaseURL:           "http://localhost:11434",
			BatchSize:         16,
			MaxRetries:        3,
			RequestsPerSecond: 0,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOllama,
			Model:       "llama3.2",
			BaseURL:     "http://localhost:11434",
			MaxTokens:   1024,
			Temperature: 0.1,
			MaxRetries:  3,
		},
		Chunking: ChunkingSettings{
			Size:      1200,
			Overlap:   180,
			Tolerance: 200,
		},
		Retrieval: RetrievalSettings{
			K:               5,
			MaxPerDocument:  2,
			OverfetchFactor: 3,
			MinSimilarity:   0.25,
		},
		Context: ContextSettings{
			TokenBudget:  2048,
			HistoryTurns: 6,
		},
		Confidence: ConfidenceSettings{
			Floor:               0.0,
			Ceil:                1.0,
			ThinEvidencePenalty: true,
		},
		Index: IndexSettings{
			Kind:        IndexKindFlat,
			Dimensions:  1024, // mxbai-embed-large
			SegmentSize: 4096,
			Partitions:  64,
			Probes:      8,
		},
		Server: ServerSettings{
			Addr:           ":8080",
			MaxUploadBytes: 32 << 20,
		},
		Storage: StorageSettings{},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "mxbai-embed-large",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each generation provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// AllIndexKinds returns all available index kinds.
func AllIndexKinds() []IndexKind {
	return []IndexKind{IndexKindFlat, IndexKindIVF}
}
