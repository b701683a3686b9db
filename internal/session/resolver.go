package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-portal/internal/domain"
)

// ProfileAPI is the verify-token endpoint of the auth API.
type ProfileAPI interface {
	VerifyToken(ctx context.Context, accessToken string) (*domain.Identity, error)
}

// IdentityResolver turns a credential into the user it belongs to.
type IdentityResolver interface {
	Resolve(ctx context.Context, cred domain.Credential) (*domain.Identity, error)
}

// Resolver resolves identities with a single verify-token call and no retries.
type Resolver struct {
	api    ProfileAPI
	logger *zap.Logger
}

// NewResolver builds a resolver over the API.
func NewResolver(api ProfileAPI, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{api: api, logger: logger}
}

// Resolve returns the identity for cred. Errors wrap ErrUnauthorized when the
// API rejects the credential and ErrNetwork otherwise. The role is
// lower-cased here so every later comparison sees one form.
func (r *Resolver) Resolve(ctx context.Context, cred domain.Credential) (*domain.Identity, error) {
	if cred.Access == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrUnauthorized)
	}

	identity, err := r.api.VerifyToken(ctx, cred.Access)
	if err != nil {
		classified := classify(err)
		r.logger.Debug("verify token failed", zap.Error(classified))
		return nil, classified
	}
	if identity == nil || identity.ID == "" {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, errors.New("empty profile in verify response"))
	}

	resolved := *identity
	resolved.Role = domain.NormalizeRole(string(identity.Role))
	return &resolved, nil
}
