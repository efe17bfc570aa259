package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
	"github.com/veritas-labs/lexquery/internal/metrics"
)

type stubAsk struct {
	answer       *domain.Answer
	err          error
	lastQuestion string
	lastOpts     domain.AskOptions
}

func (s *stubAsk) Ask(_ context.Context, question string, opts domain.AskOptions) (*domain.Answer, error) {
	s.lastQuestion = question
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.answer, nil
}

type stubIngest struct {
	result  *driving.IngestResult
	err     error
	lastRaw *domain.RawDocument
}

func (s *stubIngest) Ingest(_ context.Context, raw *domain.RawDocument) (*driving.IngestResult, error) {
	s.lastRaw = raw
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubIngest) Remove(context.Context, string) error { return nil }

func (s *stubIngest) RemoveByURI(context.Context, string) error { return nil }

type stubDocuments struct {
	infos   []domain.DocumentInfo
	details *driving.DocumentDetails
	err     error
	deleted []string
}

func (s *stubDocuments) List(context.Context) ([]domain.DocumentInfo, error) {
	return s.infos, s.err
}

func (s *stubDocuments) Get(context.Context, string) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}

func (s *stubDocuments) GetContent(context.Context, string) (string, error) {
	return "", domain.ErrNotFound
}

func (s *stubDocuments) GetDetails(_ context.Context, documentID string) (*driving.DocumentDetails, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.details == nil || s.details.ID != documentID {
		return nil, domain.ErrNotFound
	}
	return s.details, nil
}

func (s *stubDocuments) Delete(_ context.Context, documentID string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, documentID)
	return nil
}

type stubHealth struct {
	report *domain.Health
}

func (s *stubHealth) Check(context.Context) *domain.Health { return s.report }

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func uploadBody(t *testing.T, field, filename string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestChat_ReturnsAnswerWithSources(t *testing.T) {
	ask := &stubAsk{answer: &domain.Answer{
		Text:       "Either party may terminate on 30 days notice.",
		Confidence: 0.82,
		Sources: []domain.SourceRef{{
			DocumentID: "doc-msa",
			Title:      "Master Services Agreement",
			SourceType: "filesystem",
			Sections:   []string{"Section 8.1 Termination"},
		}},
		Model: "llama3.2",
	}}
	router := NewRouter(NewAPI(ask, nil, nil, nil))

	rec := doJSON(router, http.MethodPost, "/chat", `{
		"message": "How does the MSA terminate?",
		"history": [
			{"role": "user", "content": "earlier question"},
			{"role": "assistant", "content": "earlier answer"}
		]
	}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Either party may terminate on 30 days notice.", resp.Response)
	assert.InDelta(t, 0.82, resp.Confidence, 1e-9)
	assert.False(t, resp.Degraded)
	assert.Equal(t, "llama3.2", resp.Model)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "doc-msa", resp.Sources[0].ID)
	assert.Equal(t, "Master Services Agreement", resp.Sources[0].Metadata["title"])
	assert.Equal(t, "Section 8.1 Termination", resp.Sources[0].Metadata["sections"])

	assert.Equal(t, "How does the MSA terminate?", ask.lastQuestion)
	require.Len(t, ask.lastOpts.History, 2)
	assert.Equal(t, "assistant", ask.lastOpts.History[1].Role)
}

func TestChat_DegradedAnswerIsStillOK(t *testing.T) {
	ask := &stubAsk{answer: &domain.Answer{
		Text:     "I cannot answer right now because a required backend is unreachable.",
		Sources:  []domain.SourceRef{},
		Degraded: true,
	}}
	router := NewRouter(NewAPI(ask, nil, nil, nil))

	rec := doJSON(router, http.MethodPost, "/chat", `{"message": "anything"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sources":[]`)
	assert.Contains(t, rec.Body.String(), `"degraded":true`)
	assert.Contains(t, rec.Body.String(), `"confidence":0`)
}

func TestChat_BadPayloads(t *testing.T) {
	router := NewRouter(NewAPI(&stubAsk{}, nil, nil, nil))

	tests := []struct {
		name string
		body string
	}{
		{"missing message", `{}`},
		{"empty message", `{"message": ""}`},
		{"malformed json", `{"message": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(router, http.MethodPost, "/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestChat_InvalidInputFromPipeline(t *testing.T) {
	ask := &stubAsk{err: fmt.Errorf("question is empty: %w", domain.ErrInvalidInput)}
	router := NewRouter(NewAPI(ask, nil, nil, nil))

	rec := doJSON(router, http.MethodPost, "/chat", `{"message": "   "}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_UnexpectedErrorIs500(t *testing.T) {
	ask := &stubAsk{err: fmt.Errorf("store: disk corrupt")}
	router := NewRouter(NewAPI(ask, nil, nil, nil))

	rec := doJSON(router, http.MethodPost, "/chat", `{"message": "hello"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk corrupt")
}

func TestIngest_Upload(t *testing.T) {
	ingest := &stubIngest{result: &driving.IngestResult{
		DocumentID: "doc-123",
		Title:      "contract",
		ChunkCount: 4,
	}}
	router := NewRouter(NewAPI(nil, ingest, nil, nil))

	body, contentType := uploadBody(t, "file", "contract.txt", []byte("The parties agree as follows."))
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "doc-123", resp.DocumentID)
	assert.Equal(t, 4, resp.ChunkCount)

	require.NotNil(t, ingest.lastRaw)
	assert.Equal(t, "upload://contract.txt", ingest.lastRaw.URI)
	assert.Equal(t, "upload", ingest.lastRaw.SourceType)
	assert.Equal(t, "text/plain", ingest.lastRaw.MIMEType)
	assert.Equal(t, []byte("The parties agree as follows."), ingest.lastRaw.Content)
	assert.Equal(t, "contract.txt", ingest.lastRaw.Metadata["filename"])
}

func TestIngest_MissingFileField(t *testing.T) {
	router := NewRouter(NewAPI(nil, &stubIngest{}, nil, nil))

	body, contentType := uploadBody(t, "attachment", "contract.txt", []byte("text"))
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestIngest_UploadTooLarge(t *testing.T) {
	router := NewRouter(NewAPI(nil, &stubIngest{}, nil, nil, WithMaxUploadBytes(128)))

	body, contentType := uploadBody(t, "file", "huge.txt", bytes.Repeat([]byte("a"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestIngest_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid document", fmt.Errorf("empty after normalisation: %w", domain.ErrInvalidInput), http.StatusBadRequest},
		{"chunking failure", fmt.Errorf("chunk contract: %w", domain.ErrChunking), http.StatusBadRequest},
		{"dimension mismatch", fmt.Errorf("index built for 1024: %w", domain.ErrDimensionMismatch), http.StatusConflict},
		{"embedding outage", fmt.Errorf("embed chunks: %w", domain.ErrEmbeddingUnavailable), http.StatusServiceUnavailable},
		{"storage failure", fmt.Errorf("save document: disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(NewAPI(nil, &stubIngest{err: tt.err}, nil, nil))

			body, contentType := uploadBody(t, "file", "contract.txt", []byte("text"))
			req := httptest.NewRequest(http.MethodPost, "/ingest", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"status":"error"`)
		})
	}
}

func TestHealth_Statuses(t *testing.T) {
	tests := []struct {
		name     string
		status   domain.HealthStatus
		wantCode int
	}{
		{"healthy", domain.HealthOK, http.StatusOK},
		{"degraded still serves", domain.HealthDegraded, http.StatusOK},
		{"error", domain.HealthError, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := &stubHealth{report: &domain.Health{
				Status: tt.status,
				Components: []domain.ComponentHealth{
					{Name: "store", Status: domain.HealthOK},
					{Name: "index", Status: tt.status},
				},
				CheckedAt: time.Now(),
			}}
			router := NewRouter(NewAPI(nil, nil, nil, health))

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), fmt.Sprintf(`"status":"%s"`, tt.status))
			assert.Contains(t, rec.Body.String(), `"name":"index"`)
		})
	}
}

func TestDocuments_List(t *testing.T) {
	docs := &stubDocuments{infos: []domain.DocumentInfo{
		{ID: "doc-msa", Title: "Master Services Agreement", URI: "file:///corpus/msa.pdf", SourceType: "filesystem", ChunkCount: 12},
		{ID: "doc-nda", Title: "Mutual Non-Disclosure Agreement", URI: "upload://nda.pdf", SourceType: "upload", ChunkCount: 5},
	}}
	router := NewRouter(NewAPI(nil, nil, docs, nil))

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Documents []documentView `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Documents, 2)
	assert.Equal(t, "doc-msa", resp.Documents[0].ID)
	assert.Equal(t, 12, resp.Documents[0].ChunkCount)
	assert.Equal(t, "upload", resp.Documents[1].SourceType)
}

func TestDocuments_Get(t *testing.T) {
	docs := &stubDocuments{details: &driving.DocumentDetails{
		ID:         "doc-msa",
		Title:      "Master Services Agreement",
		URI:        "file:///corpus/msa.pdf",
		SourceType: "filesystem",
		ChunkCount: 12,
		Sections:   []string{"Section 8.1 Termination", "Section 4.2 Payment"},
		Metadata:   map[string]string{"pages": "12"},
	}}
	router := NewRouter(NewAPI(nil, nil, docs, nil))

	req := httptest.NewRequest(http.MethodGet, "/documents/doc-msa", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp documentDetailView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "doc-msa", resp.ID)
	assert.Equal(t, []string{"Section 8.1 Termination", "Section 4.2 Payment"}, resp.Sections)
	assert.Equal(t, "12", resp.Metadata["pages"])
}

func TestDocuments_GetNotFound(t *testing.T) {
	router := NewRouter(NewAPI(nil, nil, &stubDocuments{}, nil))

	req := httptest.NewRequest(http.MethodGet, "/documents/ghost", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocuments_Delete(t *testing.T) {
	docs := &stubDocuments{details: &driving.DocumentDetails{ID: "doc-msa"}}
	router := NewRouter(NewAPI(nil, nil, docs, nil))

	req := httptest.NewRequest(http.MethodDelete, "/documents/doc-msa", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"doc-msa"}, docs.deleted)
}

func TestDocuments_DeleteNotFound(t *testing.T) {
	docs := &stubDocuments{err: domain.ErrNotFound}
	router := NewRouter(NewAPI(nil, nil, docs, nil))

	req := httptest.NewRequest(http.MethodDelete, "/documents/ghost", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ask := &stubAsk{answer: &domain.Answer{Text: "fine", Sources: []domain.SourceRef{}}}
	collector := metrics.NewCollector()
	router := NewRouter(NewAPI(ask, nil, nil, nil, WithCollector(collector)))

	rec := doJSON(router, http.MethodPost, "/chat", `{"message": "hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `lexquery_http_requests_total{method="POST",route="/chat",status="2xx"} 1`)
	assert.Contains(t, rec.Body.String(), `lexquery_answers_total{outcome="answered"} 1`)
}

func TestUnconfiguredServicesRefuse(t *testing.T) {
	router := NewRouter(NewAPI(nil, nil, nil, nil))

	rec := doJSON(router, http.MethodPost, "/chat", `{"message": "hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	recDocs := httptest.NewRecorder()
	router.ServeHTTP(recDocs, req)
	assert.Equal(t, http.StatusServiceUnavailable, recDocs.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	recHealth := httptest.NewRecorder()
	router.ServeHTTP(recHealth, req)
	assert.Equal(t, http.StatusOK, recHealth.Code)
	assert.Contains(t, recHealth.Body.String(), `"status":"error"`)
}
