// Package http provides the ragd HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/halcyonlabs/ragd/internal/indexer"
	"github.com/halcyonlabs/ragd/internal/rag"
	"github.com/halcyonlabs/ragd/internal/vectorstore"
)

// Server exposes indexing and querying over HTTP.
type Server struct {
	echo         *echo.Echo
	orchestrator *rag.Orchestrator
	indexer      *indexer.Service
	store        vectorstore.Store
	logger       *zap.Logger
	addr         string
}

// Config holds HTTP server configuration.
type Config struct {
	Addr string
}

// NewServer creates the API server.
func NewServer(cfg Config, orchestrator *rag.Orchestrator, indexSvc *indexer.Service, store vectorstore.Store, logger *zap.Logger) (*Server, error) {
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if indexSvc == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7433"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s := &Server{
		echo:         e,
		orchestrator: orchestrator,
		indexer:      indexSvc,
		store:        store,
		logger:       logger,
		addr:         cfg.Addr,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/v1")
	v1.POST("/index", s.handleIndex)
	v1.POST("/query", s.handleQuery)
	v1.POST("/query/stream", s.handleQueryStream)
	v1.GET("/status", s.handleStatus)
}

// HealthResponse is the body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// IndexResponse is the body for POST /v1/index.
type IndexResponse struct {
	RunID            string `json:"run_id"`
	FilesIndexed     int    `json:"files_indexed"`
	FilesSkipped     int    `json:"files_skipped"`
	ChunksIndexed    int    `json:"chunks_indexed"`
	ChunksSuppressed int    `json:"chunks_suppressed,omitempty"`
	Branch           string `json:"branch,omitempty"`
	Commit           string `json:"commit,omitempty"`
}

// handleIndex runs a full indexing pass synchronously. A run already in
// flight yields 409 rather than a second writer.
func (s *Server) handleIndex(c echo.Context) error {
	result, err := s.indexer.IndexWorkspace(c.Request().Context(), nil)
	if errors.Is(err, indexer.ErrIndexInProgress) {
		return echo.NewHTTPError(http.StatusConflict, "indexing already in progress")
	}
	if err != nil {
		s.logger.Error("indexing failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "indexing failed")
	}

	return c.JSON(http.StatusOK, IndexResponse{
		RunID:            result.RunID,
		FilesIndexed:     result.FilesIndexed,
		FilesSkipped:     result.FilesSkipped,
		ChunksIndexed:    result.ChunksIndexed,
		ChunksSuppressed: result.ChunksSuppressed,
		Branch:           result.Branch,
		Commit:           result.Commit,
	})
}

// QueryRequest is the body for POST /v1/query and /v1/query/stream.
type QueryRequest struct {
	Question string `json:"question"`
}

// QueryResponse is the body for POST /v1/query.
type QueryResponse struct {
	Content   string       `json:"content"`
	Sources   []rag.Source `json:"sources"`
	Generated bool         `json:"generated"`
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}

	resp, err := s.orchestrator.Query(c.Request().Context(), req.Question)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		if errors.Is(err, rag.ErrRetrieval) {
			return echo.NewHTTPError(http.StatusBadGateway, "retrieval failed")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}

	return c.JSON(http.StatusOK, QueryResponse{
		Content:   resp.Content,
		Sources:   resp.Sources,
		Generated: resp.Generated,
	})
}

// StatusResponse is the body for GET /v1/status.
type StatusResponse struct {
	Documents          int       `json:"documents"`
	EmbeddingDimension int       `json:"embedding_dimension,omitempty"`
	CollectionCreated  time.Time `json:"collection_created,omitempty"`
	Indexing           bool      `json:"indexing"`
}

func (s *Server) handleStatus(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Error("reading document count", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "status unavailable")
	}

	resp := StatusResponse{
		Documents: count,
		Indexing:  s.indexer.InProgress(),
	}
	if meta, err := s.store.Metadata(ctx); err == nil && meta != nil {
		resp.EmbeddingDimension = meta.EmbeddingDimension
		resp.CollectionCreated = meta.Created
	}
	return c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server. Blocks until Shutdown or failure.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
