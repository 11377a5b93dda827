// Package handlers implements the ambient ops endpoints of Prism's admin
// HTTP surface: health, readiness, and aggregate statistics. It deliberately
// does not expose per-hostname lookup or listing, which would duplicate the
// excluded registry query API.
//
// @title Prism Admin API
// @version 1.0
// @description Operational endpoints for the Prism DNS registration engine: health, readiness, and aggregate stats.
//
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
//
// @host localhost:8080
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
package handlers

import (
	"log/slog"
	"time"

	"github.com/prism-dns/prism/internal/config"
	"github.com/prism-dns/prism/internal/registry"
)

// HealthChecker reports whether a dependency the service relies on is
// reachable. The database layer satisfies this via its Health method.
type HealthChecker interface {
	Health() error
}

// Handler contains dependencies for the admin API handlers.
type Handler struct {
	cfg       *config.Config
	logger    *slog.Logger
	startTime time.Time

	registry *registry.Registry
	db       HealthChecker
}

// New creates a new Handler with the given configuration. reg and db may be
// nil, in which case Stats reports zeroed registry counts and Ready always
// succeeds.
func New(cfg *config.Config, logger *slog.Logger, reg *registry.Registry, db HealthChecker) *Handler {
	return &Handler{
		cfg:       cfg,
		logger:    logger,
		startTime: time.Now(),
		registry:  reg,
		db:        db,
	}
}
