// Package api provides the ambient ops HTTP surface for Prism: health,
// readiness, and aggregate stats, served via a Gin-based HTTP server. This
// is deliberately not the excluded registry query API.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prism-dns/prism/internal/api/handlers"
	"github.com/prism-dns/prism/internal/api/middleware"
	"github.com/prism-dns/prism/internal/config"
	"github.com/prism-dns/prism/internal/registry"
)

// Server is the admin ops HTTP server.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// New builds a Server. reg and db may be nil; db only needs to satisfy
// handlers.HealthChecker (internal/database.DB does).
func New(cfg *config.Config, logger *slog.Logger, reg *registry.Registry, db handlers.HealthChecker) *Server {
	if cfg == nil {
		panic("api.New: cfg is nil")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.SlogRequestLogger(logger))

	h := handlers.New(cfg, logger, reg, db)
	RegisterRoutes(engine, h, cfg)

	addr := net.JoinHostPort(cfg.Admin.Host, strconv.Itoa(cfg.Admin.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{cfg: cfg, logger: logger, engine: engine, httpServer: httpServer}
}

func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
