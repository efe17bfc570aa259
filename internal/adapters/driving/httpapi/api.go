// Package httpapi exposes the question-answering pipeline over HTTP
// using gin. Chat requests that hit a dependency outage return a
// degraded answer with status 200; 5xx is reserved for failures the
// pipeline itself did not anticipate.
package httpapi

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
	"github.com/veritas-labs/lexquery/internal/logger"
	"github.com/veritas-labs/lexquery/internal/metrics"
)

// API bundles the services the HTTP handlers delegate to.
type API struct {
	ask       driving.AskService
	ingest    driving.IngestService
	documents driving.DocumentService
	health    driving.HealthService
	collector *metrics.Collector

	maxUploadBytes int64
}

// Option configures the API.
type Option func(*API)

// WithMaxUploadBytes bounds the size of ingest uploads. Zero or
// negative keeps the default of 32 MiB.
func WithMaxUploadBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxUploadBytes = n
		}
	}
}

// WithCollector attaches Prometheus instrumentation. Without it the
// /metrics route is not registered and handlers skip recording.
func WithCollector(c *metrics.Collector) Option {
	return func(a *API) {
		a.collector = c
	}
}

// NewAPI creates the handler set. Any service may be nil; its routes
// then answer 503 so a partially wired server still starts.
func NewAPI(ask driving.AskService, ingest driving.IngestService, documents driving.DocumentService, health driving.HealthService, opts ...Option) *API {
	a := &API{
		ask:            ask,
		ingest:         ingest,
		documents:      documents,
		health:         health,
		maxUploadBytes: 32 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewRouter builds a gin engine with all routes and middleware
// registered.
func NewRouter(api *API) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if api.collector != nil {
		router.Use(api.measure())
	}
	RegisterRoutes(router, api)
	return router
}

// RegisterRoutes attaches the API's handlers to the router.
func RegisterRoutes(router *gin.Engine, api *API) {
	router.POST("/chat", api.chatHandler)
	router.POST("/ingest", api.ingestHandler)
	router.GET("/health", api.healthHandler)

	docs := router.Group("/documents")
	{
		docs.GET("", api.listDocumentsHandler)
		docs.GET("/:id", api.getDocumentHandler)
		docs.DELETE("/:id", api.deleteDocumentHandler)
	}

	if api.collector != nil {
		router.GET("/metrics", gin.WrapH(api.collector.Handler()))
	}
}

// measure records request count and latency per route. Uses the route
// template, not the raw path, so /documents/:id stays one series.
func (a *API) measure() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		a.collector.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// chatRequest is the POST /chat payload.
type chatRequest struct {
	Message string     `json:"message" binding:"required"`
	History []chatTurn `json:"history"`
}

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the POST /chat reply.
type chatResponse struct {
	Response   string       `json:"response"`
	Confidence float64      `json:"confidence"`
	Sources    []sourceView `json:"sources"`
	Degraded   bool         `json:"degraded,omitempty"`
	Model      string       `json:"model,omitempty"`
}

// sourceView is one citation in a chat response.
type sourceView struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

func (a *API) chatHandler(c *gin.Context) {
	if a.ask == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat is not configured"})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	opts := domain.AskOptions{History: make([]domain.ChatTurn, 0, len(req.History))}
	for _, turn := range req.History {
		opts.History = append(opts.History, domain.ChatTurn{Role: turn.Role, Content: turn.Content})
	}

	start := time.Now()
	answer, err := a.ask.Ask(c.Request.Context(), req.Message, opts)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error("chat request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if a.collector != nil {
		a.collector.RecordAnswer(answer.Degraded, len(answer.Sources), time.Since(start))
	}

	c.JSON(http.StatusOK, chatResponse{
		Response:   answer.Text,
		Confidence: answer.Confidence,
		Sources:    sourceViews(answer.Sources),
		Degraded:   answer.Degraded,
		Model:      answer.Model,
	})
}

func sourceViews(refs []domain.SourceRef) []sourceView {
	views := make([]sourceView, 0, len(refs))
	for _, ref := range refs {
		meta := map[string]string{"title": ref.Title}
		if ref.SourceType != "" {
			meta["source_type"] = ref.SourceType
		}
		if len(ref.Sections) > 0 {
			meta["sections"] = strings.Join(ref.Sections, "; ")
		}
		views = append(views, sourceView{ID: ref.DocumentID, Metadata: meta})
	}
	return views
}

// ingestResponse is the POST /ingest reply.
type ingestResponse struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id,omitempty"`
	Title      string `json:"title,omitempty"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	Replaced   bool   `json:"replaced,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (a *API) ingestHandler(c *gin.Context) {
	if a.ingest == nil {
		c.JSON(http.StatusServiceUnavailable, ingestResponse{Status: "error", Error: "ingest is not configured"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.maxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ingestResponse{Status: "error", Error: "upload exceeds size limit"})
			return
		}
		c.JSON(http.StatusBadRequest, ingestResponse{Status: "error", Error: "multipart field \"file\" is required"})
		return
	}
	defer file.Close()

	raw, err := rawFromUpload(file, header)
	if err != nil {
		c.JSON(http.StatusBadRequest, ingestResponse{Status: "error", Error: "could not read upload"})
		return
	}

	result, err := a.ingest.Ingest(c.Request.Context(), raw)
	if err != nil {
		if a.collector != nil {
			a.collector.RecordIngest(false, 0)
		}
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrChunking):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrDimensionMismatch):
			status = http.StatusConflict
		case errors.Is(err, domain.ErrEmbeddingUnavailable):
			status = http.StatusServiceUnavailable
		}
		logger.Error("ingest of %q failed: %v", header.Filename, err)
		c.JSON(status, ingestResponse{Status: "error", Error: err.Error()})
		return
	}

	if a.collector != nil {
		a.collector.RecordIngest(true, result.ChunkCount)
	}

	c.JSON(http.StatusOK, ingestResponse{
		Status:     "ok",
		DocumentID: result.DocumentID,
		Title:      result.Title,
		ChunkCount: result.ChunkCount,
		Replaced:   result.Replaced,
	})
}

// rawFromUpload reads the multipart file into a RawDocument. The MIME
// type comes from the part header with an extension-based fallback.
func rawFromUpload(file multipart.File, header *multipart.FileHeader) (*domain.RawDocument, error) {
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimeTypeForExtension(filepath.Ext(header.Filename))
	}

	return &domain.RawDocument{
		URI:        "upload://" + header.Filename,
		SourceType: "upload",
		MIMEType:   mimeType,
		Content:    content,
		Metadata:   map[string]any{"filename": header.Filename},
	}, nil
}

func mimeTypeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".html", ".htm":
		return "text/html"
	default:
		return "text/plain"
	}
}

// healthResponse is the GET /health reply.
type healthResponse struct {
	Status     string            `json:"status"`
	Components []componentHealth `json:"components,omitempty"`
	CheckedAt  time.Time         `json:"checked_at"`
}

type componentHealth struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (a *API) healthHandler(c *gin.Context) {
	if a.health == nil {
		c.JSON(http.StatusOK, healthResponse{Status: string(domain.HealthError), CheckedAt: time.Now()})
		return
	}

	report := a.health.Check(c.Request.Context())
	components := make([]componentHealth, 0, len(report.Components))
	for _, comp := range report.Components {
		components = append(components, componentHealth{
			Name:   comp.Name,
			Status: string(comp.Status),
			Error:  comp.Error,
		})
	}

	status := http.StatusOK
	if report.Status == domain.HealthError {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, healthResponse{
		Status:     string(report.Status),
		Components: components,
		CheckedAt:  report.CheckedAt,
	})
}

// documentView is one entry in the GET /documents reply.
type documentView struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	URI        string    `json:"uri"`
	SourceType string    `json:"source_type"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

func (a *API) listDocumentsHandler(c *gin.Context) {
	if a.documents == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "documents are not configured"})
		return
	}

	infos, err := a.documents.List(c.Request.Context())
	if err != nil {
		logger.Error("document listing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	views := make([]documentView, 0, len(infos))
	for _, info := range infos {
		views = append(views, documentView{
			ID:         info.ID,
			Title:      info.Title,
			URI:        info.URI,
			SourceType: info.SourceType,
			ChunkCount: info.ChunkCount,
			CreatedAt:  info.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"documents": views})
}

// documentDetailView is the GET /documents/:id reply.
type documentDetailView struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	URI        string            `json:"uri"`
	SourceType string            `json:"source_type"`
	ChunkCount int               `json:"chunk_count"`
	Sections   []string          `json:"sections,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (a *API) getDocumentHandler(c *gin.Context) {
	if a.documents == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "documents are not configured"})
		return
	}

	details, err := a.documents.GetDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		logger.Error("document lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, documentDetailView{
		ID:         details.ID,
		Title:      details.Title,
		URI:        details.URI,
		SourceType: details.SourceType,
		ChunkCount: details.ChunkCount,
		Sections:   details.Sections,
		CreatedAt:  details.CreatedAt,
		UpdatedAt:  details.UpdatedAt,
		Metadata:   details.Metadata,
	})
}

func (a *API) deleteDocumentHandler(c *gin.Context) {
	if a.documents == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "documents are not configured"})
		return
	}

	id := c.Param("id")
	if err := a.documents.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		logger.Error("document delete failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "id": id})
}

// Server wraps the router in an http.Server with sane timeouts and
// graceful shutdown.
type Server struct {
	srv *http.Server
}

// NewServer builds a server listening on addr.
func NewServer(addr string, api *API) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(api),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves until the listener fails or Shutdown is called.
// http.ErrServerClosed is swallowed; anything else is returned.
func (s *Server) Start() error {
	logger.Info("HTTP API listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
