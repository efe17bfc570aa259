package services

import (
	"fmt"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"
	keyEmbedBatch    = "embedding.batch_size"
	keyEmbedRetries  = "embedding.max_retries"
	keyEmbedRPS      = "embedding.requests_per_second"

	keyLLMProvider    = "llm.provider"
	keyLLMModel       = "llm.model"
	keyLLMBaseURL     = "llm.base_url"
	keyLLMAPIKey      = "llm.api_key"
	keyLLMMaxTokens   = "llm.max_tokens"
	keyLLMTemperature = "llm.temperature"
	keyLLMRetries     = "llm.max_retries"

	keyChunkSize      = "chunking.size"
	keyChunkOverlap   = "chunking.overlap"
	keyChunkTolerance = "chunking.tolerance"

	keyRetrievalK         = "retrieval.k"
	keyRetrievalPerDoc    = "retrieval.max_per_document"
	keyRetrievalOverfetch = "retrieval.overfetch_factor"
	keyRetrievalMinSim    = "retrieval.min_similarity"

	keyContextBudget  = "context.token_budget"
	keyContextHistory = "context.history_turns"

	keyConfidenceFloor   = "confidence.floor"
	keyConfidenceCeil    = "confidence.ceil"
	keyConfidencePenalty = "confidence.thin_evidence_penalty"

	keyIndexKind       = "index.kind"
	keyIndexDimensions = "index.dimensions"
	keyIndexSegment    = "index.segment_size"
	keyIndexPartitions = "index.partitions"
	keyIndexProbes     = "index.probes"

	keyServerAddr      = "server.addr"
	keyServerMaxUpload = "server.max_upload_bytes"

	keyStorageDatabase = "storage.database_path"
)

// SettingsService manages application settings as typed views over
// the config store. Unset or unreadable keys fall back to defaults.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:             s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			BatchSize:         s.getInt(keyEmbedBatch, defaults.Embedding.BatchSize),
			MaxRetries:        s.getInt(keyEmbedRetries, defaults.Embedding.MaxRetries),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, defaults.Embedding.RequestsPerSecond),
		},
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:       s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:      s.configStore.GetString(keyLLMAPIKey),
			MaxTokens:   s.getInt(keyLLMMaxTokens, defaults.LLM.MaxTokens),
			Temperature: s.getFloat(keyLLMTemperature, defaults.LLM.Temperature),
			MaxRetries:  s.getInt(keyLLMRetries, defaults.LLM.MaxRetries),
		},
		Chunking: domain.ChunkingSettings{
			Size:      s.getInt(keyChunkSize, defaults.Chunking.Size),
			Overlap:   s.getInt(keyChunkOverlap, defaults.Chunking.Overlap),
			Tolerance: s.getInt(keyChunkTolerance, defaults.Chunking.Tolerance),
		},
		Retrieval: domain.RetrievalSettings{
			K:               s.getInt(keyRetrievalK, defaults.Retrieval.K),
			MaxPerDocument:  s.getInt(keyRetrievalPerDoc, defaults.Retrieval.MaxPerDocument),
			OverfetchFactor: s.getInt(keyRetrievalOverfetch, defaults.Retrieval.OverfetchFactor),
			MinSimilarity:   s.getFloat(keyRetrievalMinSim, defaults.Retrieval.MinSimilarity),
		},
		Context: domain.ContextSettings{
			TokenBudget:  s.getInt(keyContextBudget, defaults.Context.TokenBudget),
			HistoryTurns: s.getInt(keyContextHistory, defaults.Context.HistoryTurns),
		},
		Confidence: domain.ConfidenceSettings{
			Floor:               s.getFloat(keyConfidenceFloor, defaults.Confidence.Floor),
			Ceil:                s.getFloat(keyConfidenceCeil, defaults.Confidence.Ceil),
			ThinEvidencePenalty: s.getBool(keyConfidencePenalty, defaults.Confidence.ThinEvidencePenalty),
		},
		Index: domain.IndexSettings{
			Kind:        s.getIndexKind(keyIndexKind, defaults.Index.Kind),
			Dimensions:  s.getInt(keyIndexDimensions, defaults.Index.Dimensions),
			SegmentSize: s.getInt(keyIndexSegment, defaults.Index.SegmentSize),
			Partitions:  s.getInt(keyIndexPartitions, defaults.Index.Partitions),
			Probes:      s.getInt(keyIndexProbes, defaults.Index.Probes),
		},
		Server: domain.ServerSettings{
			Addr:           s.getString(keyServerAddr, defaults.Server.Addr),
			MaxUploadBytes: int64(s.getInt(keyServerMaxUpload, int(defaults.Server.MaxUploadBytes))),
		},
		Storage: domain.StorageSettings{
			DatabasePath: s.configStore.GetString(keyStorageDatabase), // Empty means the default location
		},
	}

	return settings, nil
}

// Save persists application settings.
//
//nolint:gocyclo // Flat sequence of key writes.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	type entry struct {
		key   string
		value any
	}

	entries := []entry{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedBatch, settings.Embedding.BatchSize},
		{keyEmbedRetries, settings.Embedding.MaxRetries},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMMaxTokens, settings.LLM.MaxTokens},
		{keyLLMTemperature, settings.LLM.Temperature},
		{keyLLMRetries, settings.LLM.MaxRetries},
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyChunkTolerance, settings.Chunking.Tolerance},
		{keyRetrievalK, settings.Retrieval.K},
		{keyRetrievalPerDoc, settings.Retrieval.MaxPerDocument},
		{keyRetrievalOverfetch, settings.Retrieval.OverfetchFactor},
		{keyRetrievalMinSim, settings.Retrieval.MinSimilarity},
		{keyContextBudget, settings.Context.TokenBudget},
		{keyContextHistory, settings.Context.HistoryTurns},
		{keyConfidenceFloor, settings.Confidence.Floor},
		{keyConfidenceCeil, settings.Confidence.Ceil},
		{keyConfidencePenalty, settings.Confidence.ThinEvidencePenalty},
		{keyIndexKind, settings.Index.Kind.String()},
		{keyIndexDimensions, settings.Index.Dimensions},
		{keyIndexSegment, settings.Index.SegmentSize},
		{keyIndexPartitions, settings.Index.Partitions},
		{keyIndexProbes, settings.Index.Probes},
		{keyServerAddr, settings.Server.Addr},
		{keyServerMaxUpload, int(settings.Server.MaxUploadBytes)},
		{keyStorageDatabase, settings.Storage.DatabasePath},
	}

	// API keys are written only when set so a Save never wipes a
	// stored credential with an empty field.
	if settings.Embedding.APIKey != "" {
		entries = append(entries, entry{keyEmbedAPIKey, settings.Embedding.APIKey})
	}
	if settings.LLM.APIKey != "" {
		entries = append(entries, entry{keyLLMAPIKey, settings.LLM.APIKey})
	}

	for _, e := range entries {
		if err := s.configStore.Set(e.key, e.value); err != nil {
			return fmt.Errorf("save %s: %w", e.key, err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider. The index
// dimension follows the model when the model is known.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	supported := false
	for _, p := range domain.AllEmbeddingProviders() {
		if p == provider {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	// A model switch changes the vector dimension the index must hold.
	if dims, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Index.Dimensions = dims
	}

	return s.Save(settings)
}

// SetLLMProvider configures the generation provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider

	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that current settings are internally consistent.
//
//nolint:gocyclo // Flat sequence of field checks.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if settings.Chunking.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", settings.Chunking.Size)
	}
	if settings.Chunking.Overlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", settings.Chunking.Overlap)
	}
	if settings.Chunking.Size <= settings.Chunking.Overlap {
		return fmt.Errorf("chunk size (%d) must exceed overlap (%d)",
			settings.Chunking.Size, settings.Chunking.Overlap)
	}

	if settings.Retrieval.K <= 0 {
		return fmt.Errorf("retrieval k must be positive, got %d", settings.Retrieval.K)
	}
	if settings.Retrieval.MaxPerDocument <= 0 {
		return fmt.Errorf("retrieval max per document must be positive, got %d",
			settings.Retrieval.MaxPerDocument)
	}
	if settings.Retrieval.OverfetchFactor <= 0 {
		return fmt.Errorf("retrieval overfetch factor must be positive, got %d",
			settings.Retrieval.OverfetchFactor)
	}
	if settings.Retrieval.MinSimilarity < 0 || settings.Retrieval.MinSimilarity > 1 {
		return fmt.Errorf("minimum similarity must be in [0, 1], got %g",
			settings.Retrieval.MinSimilarity)
	}

	if settings.Context.TokenBudget <= 0 {
		return fmt.Errorf("context token budget must be positive, got %d",
			settings.Context.TokenBudget)
	}
	if settings.Context.HistoryTurns < 0 {
		return fmt.Errorf("history turns must not be negative, got %d",
			settings.Context.HistoryTurns)
	}

	if settings.Confidence.Floor >= settings.Confidence.Ceil {
		return fmt.Errorf("confidence floor (%g) must be below ceil (%g)",
			settings.Confidence.Floor, settings.Confidence.Ceil)
	}

	if !settings.Index.Kind.IsValid() {
		return fmt.Errorf("invalid index kind: %s", settings.Index.Kind)
	}
	if settings.Index.Dimensions <= 0 {
		return fmt.Errorf("index dimensions must be positive, got %d", settings.Index.Dimensions)
	}
	if dims, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		if dims != settings.Index.Dimensions {
			return fmt.Errorf("index dimensions (%d) do not match model %q (%d)",
				settings.Index.Dimensions, settings.Embedding.Model, dims)
		}
	}

	if settings.Embedding.Provider.RequiresAPIKey() && settings.Embedding.APIKey == "" {
		return fmt.Errorf("embedding provider %s requires an API key", settings.Embedding.Provider)
	}
	if settings.LLM.Provider.RequiresAPIKey() && settings.LLM.APIKey == "" {
		return fmt.Errorf("llm provider %s requires an API key", settings.LLM.Provider)
	}

	if settings.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", settings.Server.MaxUploadBytes)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current generation configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getFloat distinguishes "unset" from an explicit zero, which is a
// valid value for thresholds and temperatures.
func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getIndexKind(key string, defaultVal domain.IndexKind) domain.IndexKind {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	kind := domain.IndexKind(val)
	if !kind.IsValid() {
		return defaultVal
	}
	return kind
}
