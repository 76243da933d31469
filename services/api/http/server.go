package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/estufa-iot/services/api/config"
	"github.com/02loveslollipop/estufa-iot/services/api/ingest"
	"github.com/02loveslollipop/estufa-iot/services/api/metrics"
	"github.com/02loveslollipop/estufa-iot/services/api/query"
	"github.com/02loveslollipop/estufa-iot/services/api/store"
)

// Dependencies are the services the REST API exposes.
type Dependencies struct {
	Ingest  *ingest.Service
	Store   store.BlobStore
	Query   *query.Scanner
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg    config.Config
	deps   Dependencies
	log    *slog.Logger
	engine *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Query == nil && deps.Store != nil {
		deps.Query = query.NewScanner(deps.Store, log)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))
	engine.Use(corsMiddleware())

	server := &Server{cfg: cfg, deps: deps, log: log, engine: engine}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	if s.cfg.MetricsEnabled && s.deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	api := s.engine.Group("/api")
	{
		api.GET("/ping", s.handlePing)

		api.POST("/xml", s.handleSubmitDocument)
		api.POST("/xml/validate", s.handleValidateDocument)
		api.GET("/xml/:id", s.handleGetDocument)

		api.GET("/query", s.handleQuery)
		api.GET("/stats", s.handleStats)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	schemaStatus := "loaded"
	if err := s.deps.Ingest.Pipeline().Available(); err != nil {
		schemaStatus = "unavailable"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "schema": schemaStatus})
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong", "service": "estufa-iot"})
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client", c.ClientIP()),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", attrs...)
		case status >= http.StatusBadRequest:
			log.Warn("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
