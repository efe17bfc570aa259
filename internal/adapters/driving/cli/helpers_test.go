package cli

import (
	"context"
	"errors"
	"time"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
)

// Canned services for command tests. setupTestServices swaps them in
// and returns a cleanup that restores whatever was there before.

type mockAskService struct {
	answer *domain.Answer
}

func (m *mockAskService) Ask(_ context.Context, _ string, _ domain.AskOptions) (*domain.Answer, error) {
	return m.answer, nil
}

type mockAskServiceError struct{}

func (m *mockAskServiceError) Ask(context.Context, string, domain.AskOptions) (*domain.Answer, error) {
	return nil, errors.New("backend exploded")
}

type mockRetrievalService struct {
	passages []domain.RetrievedPassage
	err      error
}

func (m *mockRetrievalService) Retrieve(_ context.Context, _ string, _ domain.RetrieveOptions) ([]domain.RetrievedPassage, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.passages, nil
}

type mockIngestService struct {
	raws []*domain.RawDocument
	err  error
}

func (m *mockIngestService) Ingest(_ context.Context, raw *domain.RawDocument) (*driving.IngestResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.raws = append(m.raws, raw)

	title, _ := raw.Metadata["filename"].(string)
	if title == "" {
		title = raw.URI
	}
	return &driving.IngestResult{DocumentID: "doc-new", Title: title, ChunkCount: 3}, nil
}

func (m *mockIngestService) Remove(context.Context, string) error { return nil }

func (m *mockIngestService) RemoveByURI(context.Context, string) error { return nil }

type mockDocumentService struct {
	deleted []string
}

func (m *mockDocumentService) List(context.Context) ([]domain.DocumentInfo, error) {
	return []domain.DocumentInfo{
		{ID: "doc-1", Title: "Test Document 1", URI: "file:///corpus/one.md", SourceType: "filesystem", ChunkCount: 3},
		{ID: "doc-2", Title: "Test Document 2", URI: "file:///corpus/two.md", SourceType: "filesystem", ChunkCount: 5},
	}, nil
}

func (m *mockDocumentService) Get(_ context.Context, documentID string) (*domain.Document, error) {
	if documentID != "doc-1" {
		return nil, domain.ErrNotFound
	}
	return &domain.Document{
		ID:         "doc-1",
		URI:        "file:///corpus/one.md",
		Title:      "Test Document 1",
		SourceType: "filesystem",
		Content:    "This is the content of the test document.",
		Metadata:   map[string]any{"mime_type": "text/markdown"},
		CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (m *mockDocumentService) GetContent(_ context.Context, documentID string) (string, error) {
	if documentID != "doc-1" {
		return "", domain.ErrNotFound
	}
	return "This is the content of the test document.", nil
}

func (m *mockDocumentService) GetDetails(_ context.Context, documentID string) (*driving.DocumentDetails, error) {
	if documentID != "doc-1" {
		return nil, domain.ErrNotFound
	}
	return &driving.DocumentDetails{
		ID:         "doc-1",
		Title:      "Test Document 1",
		URI:        "file:///corpus/one.md",
		SourceType: "filesystem",
		ChunkCount: 3,
		Sections:   []string{"Introduction", "Termination"},
		CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		Metadata:   map[string]string{"filename": "one.md"},
	}, nil
}

func (m *mockDocumentService) Delete(_ context.Context, documentID string) error {
	if documentID != "doc-1" {
		return domain.ErrNotFound
	}
	m.deleted = append(m.deleted, documentID)
	return nil
}

type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding.Provider = provider
	m.settings.Embedding.Model = model
	m.settings.Embedding.APIKey = apiKey
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.LLM.Provider = provider
	m.settings.LLM.Model = model
	m.settings.LLM.APIKey = apiKey
	return nil
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return nil }

func (m *mockSettingsService) ValidateLLMConfig() error { return nil }

type mockHealthService struct {
	report *domain.Health
}

func (m *mockHealthService) Check(context.Context) *domain.Health {
	return m.report
}

func testAnswer() *domain.Answer {
	return &domain.Answer{
		Text:       "The notice period for termination is 30 days.",
		Confidence: 0.82,
		Sources: []domain.SourceRef{
			{DocumentID: "doc-1", Title: "Test Document 1", SourceType: "filesystem", Sections: []string{"Termination"}},
		},
		Model: "llama3.2",
	}
}

func testPassages() []domain.RetrievedPassage {
	return []domain.RetrievedPassage{
		{
			Chunk:      domain.Chunk{ID: "chunk-1", DocumentID: "doc-1", Content: "Either party may terminate with thirty days written notice.", Section: "Termination"},
			Document:   domain.Document{ID: "doc-1", Title: "Test Document 1", URI: "file:///corpus/one.md"},
			Similarity: 0.91,
		},
		{
			Chunk:      domain.Chunk{ID: "chunk-7", DocumentID: "doc-2", Content: "Notice must be delivered in writing to the registered address.", Section: "Notices"},
			Document:   domain.Document{ID: "doc-2", Title: "Test Document 2", URI: "file:///corpus/two.md"},
			Similarity: 0.84,
		},
	}
}

func testHealth() *domain.Health {
	return &domain.Health{
		Status: domain.HealthOK,
		Components: []domain.ComponentHealth{
			{Name: "store", Status: domain.HealthOK},
			{Name: "index", Status: domain.HealthOK},
			{Name: "embedding", Status: domain.HealthOK},
			{Name: "llm", Status: domain.HealthOK},
		},
		CheckedAt: time.Now(),
	}
}

// setupTestServices installs canned services and returns a cleanup
// that restores the previous ones.
func setupTestServices() func() {
	oldAsk := askService
	oldRetrieval := retrievalService
	oldIngest := ingestService
	oldDocument := documentService
	oldSettings := settingsService
	oldHealth := healthService

	askService = &mockAskService{answer: testAnswer()}
	retrievalService = &mockRetrievalService{passages: testPassages()}
	ingestService = &mockIngestService{}
	documentService = &mockDocumentService{}
	settingsService = &mockSettingsService{settings: domain.DefaultAppSettings()}
	healthService = &mockHealthService{report: testHealth()}

	return func() {
		askService = oldAsk
		retrievalService = oldRetrieval
		ingestService = oldIngest
		documentService = oldDocument
		settingsService = oldSettings
		healthService = oldHealth
	}
}
