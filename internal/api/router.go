package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/camdenwatts/teamspace/internal/app"
	iauth "github.com/camdenwatts/teamspace/internal/auth"
	"github.com/camdenwatts/teamspace/internal/cache"
	"github.com/camdenwatts/teamspace/internal/handlers"
	"github.com/camdenwatts/teamspace/internal/middleware"
	"github.com/camdenwatts/teamspace/internal/services"
)

// Services bundles the application services consumed by the HTTP layer.
type Services struct {
	Users       *services.UserService
	Workspaces  *services.WorkspaceService
	Invitations *services.InvitationService
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, svcs Services, store cache.Store) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if svcs.Users == nil || svcs.Workspaces == nil || svcs.Invitations == nil {
		return nil, fmt.Errorf("all services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RateLimit(store, cfg.Server.RateLimit.MaxRequests, cfg.Server.RateLimit.Window))

	r.NoRoute(middleware.NotFoundHandler)

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(db))
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	requireAuth := middleware.Auth(jwt)

	registerAuthRoutes(r, requireAuth, svcs, jwt)
	registerWorkspaceRoutes(r, requireAuth, svcs)
	registerInvitationRoutes(r, requireAuth, svcs)

	return r, nil
}
