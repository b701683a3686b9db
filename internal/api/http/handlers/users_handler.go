package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-portal/internal/auth"
	apperrors "github.com/spec-kit/clinic-portal/pkg/util"
)

// UsersHandler serves the caller's own account.
type UsersHandler struct{}

// NewUsersHandler constructs handler.
func NewUsersHandler() *UsersHandler {
	return &UsersHandler{}
}

// Me handles GET /users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": principal.Identity()})
}
