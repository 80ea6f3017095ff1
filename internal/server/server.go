// Package server is the HTTP transport in front of the engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnsmart/tutor/internal/config"
	"github.com/learnsmart/tutor/internal/engine"
	"github.com/learnsmart/tutor/internal/metrics"
	"github.com/learnsmart/tutor/internal/tracing"
)

// Server serves the engine over HTTP.
type Server struct {
	engine *engine.Engine
	cfg    config.ServerConfig
	logger *zap.Logger
	router *gin.Engine
}

// New builds the router with the /v1 decision routes, health and metrics.
func New(eng *engine.Engine, cfg config.ServerConfig, limits config.RateLimitConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	s := &Server{engine: eng, cfg: cfg, logger: logger}

	r := gin.New()
	r.Use(recovery(logger), requestLogger(logger), metrics.Middleware(), tracing.Middleware())
	r.NoRoute(func(c *gin.Context) { fail(c, http.StatusNotFound, "route not found") })

	r.GET("/health", s.health)
	r.GET("/metrics", metrics.Handler())

	v1 := r.Group("/v1", rateLimit(limits.RequestsPerSecond, limits.Burst))
	{
		plans := v1.Group("/plans")
		plans.POST("/generate", s.generatePlan)
		plans.POST("/replan", s.replan)

		assessments := v1.Group("/assessments")
		assessments.POST("/next-item", s.nextItem)
		assessments.POST("/feedback", s.feedback)

		v1.POST("/mastery/update", s.updateMastery)
		v1.POST("/content/generate-lessons", s.generateLessons)
	}

	s.router = r
	return s
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully within the
// configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	cfg := s.engine.Config()
	success(c, gin.H{
		"status":          "ok",
		"defaultStrategy": cfg.DefaultStrategy,
	})
}
