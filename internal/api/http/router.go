package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-portal/internal/api/http/handlers"
	"github.com/spec-kit/clinic-portal/internal/auth"
	"github.com/spec-kit/clinic-portal/internal/domain"
	"github.com/spec-kit/clinic-portal/internal/rbac"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	Gate           *rbac.Gate
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/verify_token", cfg.Auth.VerifyToken)
	authGroup.Post("/token/refresh", cfg.Auth.Refresh)
	authGroup.Post("/token/blacklist", cfg.Auth.Blacklist)
	authGroup.Post("/forgot_password", cfg.Auth.ForgotPassword)
	authGroup.Get("/password/reset/verify", cfg.Auth.VerifyResetCode)
	authGroup.Post("/password/reset/verified", cfg.Auth.ResetPassword)

	protected := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protected.Post("/password/change", cfg.Auth.ChangePassword)
	protected.Post("/register", auth.RequireRole(cfg.Gate, domain.RoleAdmin), cfg.Auth.Register)

	users := app.Group("/users", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	users.Get("/me", cfg.Users.Me)
}
