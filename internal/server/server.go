package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	DB "kdstore/internal/db"
	"kdstore/internal/metrics"
	"kdstore/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type Options struct {
	Addr string
	// RequestsPerSecond enables a token bucket limiter when positive.
	RequestsPerSecond float64
	Burst             int
	// Metrics, when set, records request latency and serves GET /metrics.
	Metrics *metrics.Metrics
}

type Server struct {
	router     *gin.Engine
	db         *DB.DB
	metrics    *metrics.Metrics
	httpServer *http.Server
}

// New creates a new server instance
func New(db *DB.DB, opts Options) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger())
	if opts.Metrics != nil {
		router.Use(requestMetrics(opts.Metrics))
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = int(opts.RequestsPerSecond) + 1
		}
		router.Use(rateLimiter(rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)))
	}

	s := &Server{
		db:      db,
		router:  router,
		metrics: opts.Metrics,
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleHealthCheck())
	s.router.GET("/status", s.handleStatus())
	s.router.POST("/insert", s.handleInsert())
	s.router.POST("/nearesttop", s.handleNearestTop())
	s.router.POST("/nearest", s.handleNearest())
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
