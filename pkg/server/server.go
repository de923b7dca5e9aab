// Package server exposes the knowledge graph service over HTTP: graph
// lifecycle, one-shot document builds, per-simulation streaming updaters,
// and runtime LLM configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/agentgraph/pkg/builder"
	"github.com/soundprediction/agentgraph/pkg/config"
	"github.com/soundprediction/agentgraph/pkg/graph"
	"github.com/soundprediction/agentgraph/pkg/nlp"
	"github.com/soundprediction/agentgraph/pkg/server/handlers"
	"github.com/soundprediction/agentgraph/pkg/updater"
)

// Deps are the collaborators the server exposes over HTTP. Models,
// Builder, and the usage paths are optional; their endpoints respond 503
// when absent.
type Deps struct {
	Settings *nlp.SettingsStore
	Models   handlers.ModelLister
	Store    graph.Store
	Builder  *builder.Builder
	Registry *updater.Registry

	// UsagePath is the server's own usage log; UsageRoot is scanned for
	// per-simulation logs.
	UsagePath string
	UsageRoot string
}

// Server is the HTTP server.
type Server struct {
	config *config.Config
	deps   Deps
	logger *slog.Logger
	router *gin.Engine
	server *http.Server
}

// New creates a new server instance. Call Setup before Start.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{config: cfg, deps: deps, logger: logger}
}

// Setup builds the router, middleware, and the underlying http.Server.
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	if s.config.Server.CORS {
		s.router.Use(corsMiddleware())
	}
	s.router.Use(requestLogger(s.logger))

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.deps.Store)
	llmHandler := handlers.NewLLMHandler(s.deps.Settings, s.deps.Models, s.deps.UsagePath, s.deps.UsageRoot, s.logger)
	graphHandler := handlers.NewGraphHandler(s.deps.Store, s.deps.Builder, s.logger)
	updaterHandler := handlers.NewUpdaterHandler(s.deps.Registry, s.logger)

	api := s.router.Group("/api")
	{
		api.GET("/health", healthHandler.Health)

		llm := api.Group("/llm")
		{
			llm.GET("/config", llmHandler.GetConfig)
			llm.POST("/config", llmHandler.UpdateConfig)
			llm.GET("/models", llmHandler.ListModels)
			llm.GET("/usage", llmHandler.GetUsage)
			llm.GET("/stages", llmHandler.GetStages)
			llm.GET("/presets", llmHandler.GetPresets)
			llm.POST("/routing", llmHandler.UpdateRouting)
		}

		graphs := api.Group("/graphs")
		{
			graphs.POST("", graphHandler.Create)
			graphs.POST("/build", graphHandler.Build)
			graphs.GET("/:graph_id", graphHandler.Get)
			graphs.DELETE("/:graph_id", graphHandler.Delete)
		}

		updaters := api.Group("/updaters")
		{
			updaters.POST("", updaterHandler.Create)
			updaters.GET("", updaterHandler.List)
			updaters.POST("/stop-all", updaterHandler.StopAll)
			updaters.GET("/:id/stats", updaterHandler.Stats)
			updaters.POST("/:id/activities", updaterHandler.AddActivities)
			updaters.DELETE("/:id", updaterHandler.Stop)
		}
	}
}

// Start runs the server until Stop is called. A clean shutdown returns
// nil.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the server gracefully, letting in-flight requests finish.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers and short-circuits preflights.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger logs each request through the structured logger, at a
// level matching the response class.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("http request", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("http request", attrs...)
		default:
			logger.Debug("http request", attrs...)
		}
	}
}
