package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-portal/internal/domain"
	"github.com/spec-kit/clinic-portal/internal/rbac"
	apperrors "github.com/spec-kit/clinic-portal/pkg/util"
)

// RequireRole runs the role gate against the principal. A redirect to the
// login path becomes 401, any other redirect 403.
func RequireRole(gate *rbac.Gate, allowed ...domain.Role) fiber.Handler {
	if gate == nil {
		gate = rbac.NewGate(rbac.DefaultPaths())
	}
	loginPath := gate.Paths().Login

	return func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		decision := gate.Authorize(principal.Identity(), allowed)
		if decision.Allowed() {
			return c.Next()
		}
		if decision.Path == loginPath {
			return apperrors.NewUnauthorized("authentication required")
		}
		return apperrors.NewDomainError("FORBIDDEN", "insufficient role", fiber.StatusForbidden,
			map[string]any{"redirect": decision.Path})
	}
}

// RequireAuthenticated ensures a principal was loaded.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
