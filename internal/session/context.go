// Package session holds the authenticated state of one portal process: the
// stored credential, the identity it resolves to, and the transitions
// between them (login, restore, refresh, logout).
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-portal/internal/client"
	"github.com/spec-kit/clinic-portal/internal/domain"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusRestoring       Status = "restoring"
	StatusAuthenticated   Status = "authenticated"
	// StatusInvalid marks a session whose credential the API stopped
	// accepting mid-use. It behaves like unauthenticated for gating.
	StatusInvalid Status = "invalid"
)

// AuthAPI is the part of the auth API that issues and revokes credentials.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*domain.Credential, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Credential, error)
	Blacklist(ctx context.Context, refreshToken string) error
}

// Options wires a Context.
type Options struct {
	Store     *TokenStore
	Validator *Validator
	Resolver  IdentityResolver
	API       AuthAPI
	Logger    *zap.Logger
	// RefreshOnRestore lets Restore trade a still-valid refresh token for a
	// new pair when the stored access token has expired.
	RefreshOnRestore bool
}

// Context is the session of one process. Only it reads or writes the
// credential. Login, Restore, Refresh, Logout, SignOut and Invalidate are
// serialized; CurrentIdentity and Status never wait on the network.
type Context struct {
	store            *TokenStore
	validator        *Validator
	resolver         IdentityResolver
	api              AuthAPI
	logger           *zap.Logger
	refreshOnRestore bool

	opMu sync.Mutex

	mu         sync.RWMutex
	status     Status
	credential *domain.Credential
	identity   *domain.Identity
	restored   bool
}

// NewContext builds an unauthenticated session. Call Restore once at startup.
func NewContext(opts Options) (*Context, error) {
	if opts.Store == nil {
		return nil, errors.New("session: token store is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("session: identity resolver is required")
	}
	if opts.API == nil {
		return nil, errors.New("session: auth api is required")
	}
	if opts.Validator == nil {
		opts.Validator = NewValidator()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Context{
		store:            opts.Store,
		validator:        opts.Validator,
		resolver:         opts.Resolver,
		api:              opts.API,
		logger:           opts.Logger,
		refreshOnRestore: opts.RefreshOnRestore,
		status:           StatusUnauthenticated,
	}, nil
}

// Status returns the current lifecycle state.
func (c *Context) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// CurrentIdentity returns a copy of the resolved identity, or nil.
func (c *Context) CurrentIdentity() *domain.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.status != StatusAuthenticated || c.identity == nil {
		return nil
	}
	identity := *c.identity
	return &identity
}

// Restore rebuilds the session from the token store. It runs once per
// Context; later calls return the current status untouched. An expired
// access token is cleared without any network call unless refresh-on-restore
// is enabled and the refresh token is still live.
func (c *Context) Restore(ctx context.Context) Status {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.restored {
		status := c.status
		c.mu.Unlock()
		return status
	}
	c.restored = true
	c.mu.Unlock()

	cred, ok := c.store.Load(ctx)
	if !ok {
		c.set(StatusUnauthenticated, nil, nil)
		return StatusUnauthenticated
	}

	if c.validator.IsExpired(cred.Access) {
		if c.refreshOnRestore && cred.Refresh != "" && !c.validator.IsExpired(cred.Refresh) {
			c.set(StatusRestoring, cred, nil)
			_, err := c.refreshLocked(ctx, *cred)
			if err == nil {
				return StatusAuthenticated
			}
			c.logger.Info("session refresh on restore failed", zap.Error(err))
		}
		c.clearLocked(ctx, StatusUnauthenticated)
		return StatusUnauthenticated
	}

	c.set(StatusRestoring, cred, nil)
	identity, err := c.resolver.Resolve(ctx, *cred)
	if err != nil {
		c.logger.Info("session restore failed", zap.Error(err))
		c.clearLocked(ctx, StatusUnauthenticated)
		return StatusUnauthenticated
	}

	c.set(StatusAuthenticated, cred, identity)
	c.logger.Debug("session restored", zap.String("user_id", identity.ID), zap.String("role", identity.Role.String()))
	return StatusAuthenticated
}

// Login authenticates with the API, resolves the profile and only then
// persists the credential. On any failure nothing is stored and the error
// is an *AuthError. A failed Login does not end an existing session: if one
// was authenticated it stays authenticated with its old credential, so call
// Logout first when a failed switch of accounts must leave no session.
func (c *Context) Login(ctx context.Context, email, password string) (*domain.Identity, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	cred, err := c.api.Login(ctx, email, password)
	if err != nil {
		err = classify(err)
		c.logger.Info("login rejected", zap.String("email", email), zap.Error(err))
		return nil, &AuthError{Err: err}
	}
	if cred == nil || cred.Access == "" {
		return nil, &AuthError{Err: fmt.Errorf("%w: empty credential", ErrUnauthorized)}
	}

	identity, err := c.resolver.Resolve(ctx, *cred)
	if err != nil {
		c.logger.Info("login profile resolution failed", zap.String("email", email), zap.Error(err))
		return nil, &AuthError{Err: err}
	}

	c.store.Save(ctx, *cred)
	c.mu.Lock()
	c.restored = true
	c.mu.Unlock()
	c.set(StatusAuthenticated, cred, identity)

	c.logger.Info("login succeeded", zap.String("user_id", identity.ID), zap.String("role", identity.Role.String()))
	out := *identity
	return &out, nil
}

// Refresh trades the refresh token for a new pair and re-resolves the
// identity. On failure the session is cleared.
func (c *Context) Refresh(ctx context.Context) (*domain.Identity, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	cred := c.credentialSnapshot()
	if cred == nil {
		return nil, fmt.Errorf("%w: no active session", ErrUnauthorized)
	}
	identity, err := c.refreshLocked(ctx, *cred)
	if err != nil {
		c.clearLocked(ctx, StatusUnauthenticated)
		return nil, err
	}
	out := *identity
	return &out, nil
}

// Logout clears the token store and drops the identity. It is local and
// unconditional; navigation is the caller's business.
func (c *Context) Logout(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.clearLocked(ctx, StatusUnauthenticated)
}

// SignOut revokes a still-live refresh token with the API, then logs out.
// A failed revocation is logged and does not stop the logout.
func (c *Context) SignOut(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if cred := c.credentialSnapshot(); cred != nil && cred.Refresh != "" && !c.validator.IsExpired(cred.Refresh) {
		if err := c.api.Blacklist(ctx, cred.Refresh); err != nil {
			c.logger.Warn("refresh token revocation failed", zap.Error(classify(err)))
		}
	}
	c.clearLocked(ctx, StatusUnauthenticated)
}

// Invalidate drops a session the API no longer accepts.
func (c *Context) Invalidate(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.clearLocked(ctx, StatusInvalid)
}

// Authorized runs fn with the current access token. When fn fails with HTTP
// 401 the session refreshes once (concurrent callers share that refresh) and
// fn is retried; if refreshing is impossible the session is invalidated.
func (c *Context) Authorized(ctx context.Context, fn func(ctx context.Context, bearer string) error) error {
	cred := c.credentialSnapshot()
	if cred == nil || c.Status() != StatusAuthenticated {
		return fmt.Errorf("%w: no active session", ErrUnauthorized)
	}

	err := fn(ctx, cred.Access)
	if code, ok := client.StatusCode(err); !ok || code != http.StatusUnauthorized {
		return err
	}

	next, refreshErr := c.recoverFrom(ctx, cred.Access)
	if refreshErr != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return fn(ctx, next.Access)
}

func (c *Context) recoverFrom(ctx context.Context, staleAccess string) (*domain.Credential, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	current := c.credentialSnapshot()
	if current == nil {
		return nil, ErrUnauthorized
	}
	if current.Access != staleAccess {
		return current, nil
	}
	if _, err := c.refreshLocked(ctx, *current); err != nil {
		c.logger.Info("session refresh after 401 failed", zap.Error(err))
		c.clearLocked(ctx, StatusInvalid)
		return nil, err
	}
	return c.credentialSnapshot(), nil
}

// refreshLocked requires opMu.
func (c *Context) refreshLocked(ctx context.Context, cred domain.Credential) (*domain.Identity, error) {
	if cred.Refresh == "" || c.validator.IsExpired(cred.Refresh) {
		return nil, fmt.Errorf("%w: no usable refresh token", ErrUnauthorized)
	}

	next, err := c.api.Refresh(ctx, cred.Refresh)
	if err != nil {
		return nil, classify(err)
	}
	if next == nil || next.Access == "" {
		return nil, fmt.Errorf("%w: empty credential", ErrUnauthorized)
	}
	if next.Refresh == "" {
		next.Refresh = cred.Refresh
	}

	identity, err := c.resolver.Resolve(ctx, *next)
	if err != nil {
		return nil, err
	}

	c.store.Save(ctx, *next)
	c.set(StatusAuthenticated, next, identity)
	return identity, nil
}

// clearLocked requires opMu.
func (c *Context) clearLocked(ctx context.Context, status Status) {
	c.store.Clear(ctx)
	c.set(status, nil, nil)
}

func (c *Context) set(status Status, cred *domain.Credential, identity *domain.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.credential = cred
	c.identity = identity
}

func (c *Context) credentialSnapshot() *domain.Credential {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.credential == nil {
		return nil
	}
	cred := *c.credential
	return &cred
}
