package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/clinic-portal/internal/api/dto"
	"github.com/spec-kit/clinic-portal/internal/auth"
	"github.com/spec-kit/clinic-portal/internal/domain"
	apperrors "github.com/spec-kit/clinic-portal/pkg/util"
)

// AuthService is the backend behaviour the auth endpoints expose.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*domain.Credential, error)
	VerifyToken(ctx context.Context, token string) (*domain.Identity, error)
	Refresh(ctx context.Context, refresh string) (*domain.Credential, error)
	Blacklist(ctx context.Context, refresh string) error
	Register(ctx context.Context, req dto.RegisterRequest) (*domain.Identity, error)
	ForgotPassword(ctx context.Context, email string) (bool, error)
	VerifyResetCode(ctx context.Context, code string) error
	ResetPassword(ctx context.Context, code, password string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

// AuthHandler exposes the /auth endpoints.
type AuthHandler struct {
	auth AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	cred, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TokenPairResponse{Access: cred.Access, Refresh: cred.Refresh}})
}

// VerifyToken handles POST /auth/verify_token.
func (h *AuthHandler) VerifyToken(c *fiber.Ctx) error {
	var req dto.VerifyTokenRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	identity, err := h.auth.VerifyToken(c.UserContext(), req.APIToken)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": identity})
}

// Refresh handles POST /auth/token/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	cred, err := h.auth.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TokenPairResponse{Access: cred.Access, Refresh: cred.Refresh}})
}

// Blacklist handles POST /auth/token/blacklist.
func (h *AuthHandler) Blacklist(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.Blacklist(c.UserContext(), req.Refresh); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{}})
}

// Register handles POST /auth/register. Admin only.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	identity, err := h.auth.Register(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": identity})
}

// ForgotPassword handles POST /auth/forgot_password.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	sent, err := h.auth.ForgotPassword(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ForgotPasswordResponse{Result: sent}})
}

// VerifyResetCode handles GET /auth/password/reset/verify?code=.
func (h *AuthHandler) VerifyResetCode(c *fiber.Ctx) error {
	if err := h.auth.VerifyResetCode(c.UserContext(), c.Query("code")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"valid": true}})
}

// ResetPassword handles POST /auth/password/reset/verified.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.auth.ResetPassword(c.UserContext(), req.Code, req.Password); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{}})
}

// ChangePassword handles POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.PasswordChangeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.UserContext(), principal.User.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
