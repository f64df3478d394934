package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/petcare-service/internal/api/http/handlers"
	"github.com/spec-kit/petcare-service/internal/auth"
	"github.com/spec-kit/petcare-service/internal/domain"
	"github.com/spec-kit/petcare-service/internal/observability"
)

// PublicPaths never carry an access token; the auth middleware skips them.
var PublicPaths = []string{
	"/health/live",
	"/health/ready",
	"/metrics",
	"/api/auth/register",
	"/api/auth/login",
	"/api/auth/refresh",
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Accounts       *handlers.AccountsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", auth.RequireAuthenticated(), cfg.Auth.Logout)

	accounts := api.Group("/accounts", auth.RequireAuthenticated())
	accounts.Get("/me", cfg.Accounts.Me)
	accounts.Delete("/me", cfg.Accounts.DeleteMe)

	admin := api.Group("/admin", auth.RequireRole(domain.RoleAdmin))
	admin.Get("/accounts/:id", cfg.Accounts.GetByID)
}
