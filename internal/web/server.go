package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/storage"
	"github.com/Sudhan30/my-blog-site-cluster-infra-sub001/internal/web/middleware"
)

// ServerConfig controls the report server.
type ServerConfig struct {
	Port  int
	Token string // optional bearer token; empty leaves the API open
	Debug bool
}

// DefaultServerConfig returns settings for local use.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port: 8787,
	}
}

// Server exposes archived run reports over HTTP. It is read-only; runs
// are written by the verify command, never through the API.
type Server struct {
	config *ServerConfig
	router *gin.Engine
	store  *storage.Store
}

// NewServer wires the API routes against the given archive store.
func NewServer(store *storage.Store, config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: config,
		router: gin.New(),
		store:  store,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	s.router.Use(s.loggingMiddleware())
	s.router.Use(gin.Recovery())
}

// loggingMiddleware reports each request through the structured logger.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if path == "/healthz" {
			return
		}

		log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	if s.config.Token != "" {
		api.Use(middleware.AuthMiddleware(s.config.Token))
	}

	api.GET("/runs", s.listRuns)
	api.GET("/runs/:id", s.getRun)
}

// listRuns returns summaries of archived runs, newest first.
// GET /api/runs?limit=20
func (s *Server) listRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		limit = parsed
	}

	runs, err := s.store.ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []storage.RunSummary{}
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

// getRun returns the full report for one run.
// GET /api/runs/:id
func (s *Server) getRun(c *gin.Context) {
	report, err := s.store.GetRun(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.config.Port).Msg("report server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("report server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("report server shutdown failed: %w", err)
	}

	log.Info().Msg("report server stopped")
	return nil
}
