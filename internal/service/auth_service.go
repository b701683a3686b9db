package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-portal/internal/api/dto"
	"github.com/spec-kit/clinic-portal/internal/auth"
	"github.com/spec-kit/clinic-portal/internal/config"
	"github.com/spec-kit/clinic-portal/internal/domain"
	"github.com/spec-kit/clinic-portal/internal/events"
	"github.com/spec-kit/clinic-portal/internal/repository"
	apperrors "github.com/spec-kit/clinic-portal/pkg/util"
)

const resetCodeDigits = 6

var errInvalidCredentials = apperrors.NewUnauthorized("No active account found with the given credentials")

// AuthService coordinates login, token and password reset flows.
type AuthService struct {
	users        repository.UserRepository
	resets       repository.PasswordResetRepository
	blacklist    repository.TokenBlacklistRepository
	dispatcher   events.Dispatcher
	tokenMgr     *auth.TokenManager
	logger       *zap.Logger
	bcryptCost   int
	resetTTL     time.Duration
	resendWindow time.Duration
	now          func() time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	PasswordResetRepo repository.PasswordResetRepository
	BlacklistRepo     repository.TokenBlacklistRepository
	Dispatcher        events.Dispatcher
	Logger            *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:        deps.UserRepo,
		resets:       deps.PasswordResetRepo,
		blacklist:    deps.BlacklistRepo,
		dispatcher:   deps.Dispatcher,
		tokenMgr:     auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes, cfg.Auth.RefreshTokenTTLMinutes),
		logger:       logger,
		bcryptCost:   cfg.Auth.BcryptCost,
		resetTTL:     time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute,
		resendWindow: time.Duration(cfg.Auth.PasswordResendWindowMins) * time.Minute,
		now:          time.Now,
	}
}

// Login checks credentials and issues an access/refresh pair. Only active,
// verified accounts may sign in.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Credential, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, errInvalidCredentials
	}
	if !user.IsActive || !user.IsVerified {
		return nil, errInvalidCredentials
	}

	cred, err := s.tokenMgr.IssuePair(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.publish(ctx, events.EventUserLoggedIn, user, events.UserLoggedInPayload{Role: user.Role})
	return cred, nil
}

// VerifyToken resolves an access token to the profile of its owner.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*domain.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperrors.NewValidationError("api_token is required", nil)
	}
	claims, err := s.tokenMgr.ParseToken(token, domain.TokenTypeAccess)
	if err != nil {
		return nil, apperrors.NewUnauthorized("Token is invalid or expired")
	}
	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return user.Identity(), nil
}

// Refresh issues a new access token for a live, non-revoked refresh token.
// The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (*domain.Credential, error) {
	claims, err := s.parseRefresh(ctx, refresh)
	if err != nil {
		return nil, err
	}
	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	access, err := s.tokenMgr.IssueAccess(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &domain.Credential{Access: access}, nil
}

// Blacklist revokes a refresh token until it expires.
func (s *AuthService) Blacklist(ctx context.Context, refresh string) error {
	claims, err := s.parseRefresh(ctx, refresh)
	if err != nil {
		return err
	}
	if s.blacklist == nil {
		return apperrors.NewInternalError(errors.New("token blacklist not configured"))
	}
	if err := s.blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.EventTokenBlacklisted, &domain.User{ID: claims.UserID, Email: claims.UserEmail},
		events.TokenBlacklistedPayload{JTI: claims.ID})
	return nil
}

// Register creates an account with a random password and mails the owner a
// reset code to choose their own.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*domain.Identity, error) {
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"email": req.Email})
	}
	role := domain.NormalizeRole(req.Roles)
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"roles": req.Roles})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	password, err := randomPassword()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Email:        email,
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		PasswordHash: hash,
		Role:         role,
		IsStaff:      role == domain.RoleAdmin,
		IsActive:     true,
		Profile:      req.Profile,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	code, err := s.issueResetCode(ctx, user)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventUserRegistered, user, events.UserRegisteredPayload{
		Role:       user.Role,
		ResetCode:  code.Code,
		CodeExpiry: code.ExpiresAt,
	})
	return user.Identity(), nil
}

// ForgotPassword mails a reset code. A second request inside the resend
// window is refused.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (bool, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, apperrors.NewNotFound("user", map[string]any{"email": email})
		}
		return false, err
	}
	if !user.IsActive {
		return false, apperrors.NewForbidden("account is inactive")
	}

	latest, err := s.resets.LatestForUser(ctx, user.ID)
	switch {
	case err == nil:
		retryAt := latest.CreatedAt.Add(s.resendWindow)
		if s.now().Before(retryAt) {
			return false, apperrors.NewTooManyRequests("a reset code was sent recently",
				map[string]any{"retry_after": retryAt.UTC().Format(time.RFC3339)})
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return false, err
	}

	code, err := s.issueResetCode(ctx, user)
	if err != nil {
		return false, err
	}
	s.publish(ctx, events.EventPasswordResetRequested, user, events.PasswordResetRequestedPayload{
		Code:      code.Code,
		ExpiresAt: code.ExpiresAt,
	})
	return true, nil
}

// VerifyResetCode checks that code exists and has not expired.
func (s *AuthService) VerifyResetCode(ctx context.Context, code string) error {
	_, err := s.lookupResetCode(ctx, code)
	return err
}

// ResetPassword sets a new password using a mailed code. Completing a reset
// also verifies the account, which is how registered users activate.
func (s *AuthService) ResetPassword(ctx context.Context, code, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	reset, err := s.lookupResetCode(ctx, code)
	if err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, reset.UserID)
	if err != nil {
		return apperrors.MapError(err)
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	if !user.IsVerified {
		user.IsVerified = true
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
	}
	if err := s.resets.DeleteForUser(ctx, user.ID); err != nil {
		s.logger.Warn("failed to purge reset codes", zap.String("user_id", user.ID), zap.Error(err))
	}

	s.publish(ctx, events.EventPasswordResetCompleted, user, nil)
	return nil
}

// ChangePassword verifies current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return s.users.UpdatePassword(ctx, user.ID, hash)
}

// EnsureAdmin creates a verified admin account when email is not yet taken.
// Existing accounts are left alone.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if err := validatePassword(password); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	admin := &domain.User{
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		IsStaff:      true,
		IsActive:     true,
		IsVerified:   true,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("user_id", admin.ID), zap.String("email", admin.Email))
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) parseRefresh(ctx context.Context, refresh string) (*auth.Claims, error) {
	if strings.TrimSpace(refresh) == "" {
		return nil, apperrors.NewValidationError("refresh is required", nil)
	}
	claims, err := s.tokenMgr.ParseToken(refresh, domain.TokenTypeRefresh)
	if err != nil {
		return nil, apperrors.NewUnauthorized("Token is invalid or expired")
	}
	if s.blacklist != nil {
		revoked, err := s.blacklist.Contains(ctx, claims.ID)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		if revoked {
			return nil, apperrors.NewUnauthorized("Token is blacklisted")
		}
	}
	return claims, nil
}

func (s *AuthService) activeUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorized("user is inactive")
	}
	return user, nil
}

func (s *AuthService) issueResetCode(ctx context.Context, user *domain.User) (*domain.PasswordResetCode, error) {
	digits, err := randomDigits(resetCodeDigits)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	code := &domain.PasswordResetCode{
		UserID:    user.ID,
		Code:      digits,
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, code); err != nil {
		return nil, err
	}
	return code, nil
}

func (s *AuthService) lookupResetCode(ctx context.Context, code string) (*domain.PasswordResetCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.NewValidationError("code is required", nil)
	}
	reset, err := s.resets.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("invalid code", nil)
		}
		return nil, err
	}
	if reset.Expired(s.now()) {
		return nil, apperrors.NewValidationError("code expired", nil)
	}
	return reset, nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, user *domain.User, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    user.ID,
		Email:     user.Email,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	})
}

func validatePassword(password string) error {
	if err := auth.CheckPasswordPolicy(password); err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"min_length": auth.MinPasswordLength})
	}
	return nil
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

func randomPassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
