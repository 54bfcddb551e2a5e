// Package http serves the live provider proxies, the correlation query and
// the health, readiness and metrics endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
	"github.com/couchcryptid/air-quality-etl/internal/pipeline"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker = sharedobs.ReadinessChecker

// ReadinessFunc adapts a function to ReadinessChecker.
type ReadinessFunc func(ctx context.Context) error

// CheckReadiness calls f.
func (f ReadinessFunc) CheckReadiness(ctx context.Context) error {
	return f(ctx)
}

// AQIProvider fetches raw AQI documents for the live endpoints.
type AQIProvider interface {
	FetchDocument(ctx context.Context) ([]byte, error)
	FetchStationsDocument(ctx context.Context) ([]byte, error)
	FetchStationFeed(ctx context.Context, uid string) ([]byte, error)
}

// FireProvider fetches and parses live FIRMS hotspots.
type FireProvider interface {
	FetchHotspots(ctx context.Context) ([]domain.FirePoint, domain.DropCounts, error)
}

// Correlator answers correlation queries over the stored series.
type Correlator interface {
	Window(from, to time.Time, lag int) (domain.CorrelationWindow, error)
	Correlate(ctx context.Context, w domain.CorrelationWindow) (pipeline.Correlation, error)
}

// Cache stores rendered live responses for a short time.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Deps are the collaborators behind the API routes. A nil Correlator makes
// the correlation endpoint report missing configuration; a nil Cache disables caching.
type Deps struct {
	AQI         AQIProvider
	Fires       FireProvider
	Correlation Correlator
	Ready       ReadinessChecker
	Cache       Cache
	Metrics     *observability.Metrics
}

// Server exposes the API on a gin engine.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the API, /healthz, /readyz and /metrics routes.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine: engine,
		deps:   deps,
		logger: logger,
	}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	ready := s.deps.Ready
	if ready == nil {
		ready = ReadinessFunc(func(context.Context) error { return nil })
	}

	s.engine.GET("/healthz", gin.WrapF(sharedobs.LivenessHandler()))
	s.engine.GET("/readyz", gin.WrapF(sharedobs.ReadinessHandler(ready)))
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	api.GET("/aqi/stations", s.handleStations)
	api.GET("/aqi/live", s.handleLive)
	api.GET("/fires/live", s.handleFires)
	api.GET("/correlation", s.handleCorrelation)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
