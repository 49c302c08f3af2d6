package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/audiostudio/conductor/internal/application/health"
	"github.com/audiostudio/conductor/internal/application/orchestrator"
	"github.com/audiostudio/conductor/internal/history"
	"github.com/audiostudio/conductor/internal/pipeline"
	"github.com/audiostudio/conductor/pkg/ports"
)

// Server represents the HTTP API server
type Server struct {
	router       *gin.Engine
	server       *http.Server
	store        *pipeline.Store
	orchestrator *orchestrator.Orchestrator
	catalog      ports.ModuleCatalog
	history      *history.Store
	processing   ports.Processing
	persistence  ports.Persistence
	events       ports.EventBus
	monitor      *health.Monitor
	logger       *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port         int
	Store        *pipeline.Store
	Orchestrator *orchestrator.Orchestrator
	Catalog      ports.ModuleCatalog
	History      *history.Store
	Processing   ports.Processing
	Persistence  ports.Persistence
	Events       ports.EventBus
	Monitor      *health.Monitor
	Logger       *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger(cfg.Logger))

	s := &Server{
		router:       router,
		store:        cfg.Store,
		orchestrator: cfg.Orchestrator,
		catalog:      cfg.Catalog,
		history:      cfg.History,
		processing:   cfg.Processing,
		persistence:  cfg.Persistence,
		events:       cfg.Events,
		monitor:      cfg.Monitor,
		logger:       cfg.Logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// Module catalog
		v1.GET("/catalog", s.handleListCatalog)

		// Pipeline editing
		v1.GET("/pipeline", s.handleGetPipeline)
		v1.PUT("/pipeline", s.handleSetPipeline)
		v1.POST("/pipeline/modules", s.handleAddModule)
		v1.DELETE("/pipeline/modules/:id", s.handleRemoveModule)
		v1.PATCH("/pipeline/modules/:id/parameters", s.handleUpdateParameters)
		v1.PATCH("/pipeline/modules/:id/position", s.handleUpdatePosition)
		v1.PUT("/pipeline/selection", s.handleSelectModule)
		v1.POST("/pipeline/connections", s.handleAddConnection)
		v1.DELETE("/pipeline/connections/:id", s.handleRemoveConnection)
		v1.POST("/pipeline/validate", s.handleValidate)

		// Export / import
		v1.GET("/pipeline/export", s.handleExport)
		v1.POST("/pipeline/import", s.handleImport)

		// Execution
		v1.POST("/executions", s.handleExecute)
		v1.GET("/executions/current", s.handleGetExecution)
		v1.DELETE("/executions/current", s.handleStopExecution)
		v1.GET("/executions/events", s.handleListEvents)

		// Workflow persistence
		v1.POST("/workflows", s.handleSaveWorkflow)
		v1.GET("/workflows", s.handleListWorkflows)
		v1.GET("/workflows/:id", s.handleGetWorkflow)
		v1.POST("/workflows/:id/load", s.handleLoadWorkflow)

		// History and comparison
		v1.GET("/history", s.handleListHistory)
		v1.GET("/history/diff", s.handleDiffHistory)
	}
}

// SetupWebSocket adds the execution event stream handler to the server
func (s *Server) SetupWebSocket(handler interface {
	HandleExecutionStream(*gin.Context)
}) {
	s.router.GET("/api/v1/executions/ws", handler.HandleExecutionStream)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}

// requestLogger is a middleware for request logging
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()))
	}
}
