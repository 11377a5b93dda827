package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prism-dns/prism/internal/api/handlers"
	"github.com/prism-dns/prism/internal/api/middleware"
	"github.com/prism-dns/prism/internal/config"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/prism-dns/prism/internal/api/docs" // swagger docs
)

// RegisterRoutes wires the ambient ops surface: health, readiness, and
// stats. This is NOT the registry query API: it never exposes per-hostname
// lookup or listing.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")

	api.GET("/health", h.Health)
	api.GET("/ready", h.Ready)

	if cfg != nil && cfg.Admin.APIKey != "" {
		api.GET("/stats", middleware.RequireAPIKey(cfg.Admin.APIKey), h.Stats)
	} else {
		api.GET("/stats", h.Stats)
	}
}
