package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/clinic-portal/internal/client"
	"github.com/spec-kit/clinic-portal/internal/domain"
)

func doctor() *domain.Identity {
	return &domain.Identity{ID: "42", Email: "doc@clinic.test", Role: "Doctor", IsActive: true, IsVerified: true}
}

func TestNewContext_RequiresCollaborators(t *testing.T) {
	_, err := NewContext(Options{})
	assert.Error(t, err)

	_, err = NewContext(Options{Store: NewTokenStore(nil, nil)})
	assert.Error(t, err)

	_, err = NewContext(Options{Store: NewTokenStore(nil, nil), Resolver: NewResolver(newFakeAPI(), nil)})
	assert.Error(t, err)
}

func TestRestore_NoCredential(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, StatusUnauthenticated, h.session.Restore(context.Background()))
	assert.Nil(t, h.session.CurrentIdentity())
	assert.Zero(t, h.api.totalCalls())
}

func TestRestore_ExpiredCredentialClearsWithoutNetwork(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Save(ctx, domain.Credential{
		Access:  mintToken(t, domain.TokenTypeAccess, time.Now().Add(-time.Minute)),
		Refresh: mintToken(t, domain.TokenTypeRefresh, time.Now().Add(time.Hour)),
	})

	assert.Equal(t, StatusUnauthenticated, h.session.Restore(ctx))
	_, ok := h.store.Load(ctx)
	assert.False(t, ok)
	assert.Zero(t, h.api.totalCalls())
}

func TestRestore_UndecodableCredentialIsExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Save(ctx, domain.Credential{Access: "garbage"})

	assert.Equal(t, StatusUnauthenticated, h.session.Restore(ctx))
	assert.Zero(t, h.backend.Len())
	assert.Zero(t, h.api.totalCalls())
}

func TestRestore_ValidCredentialResolvesIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := liveCredential(t)
	h.store.Save(ctx, cred)
	h.api.setProfile(cred.Access, doctor())

	assert.Equal(t, StatusAuthenticated, h.session.Restore(ctx))
	identity := h.session.CurrentIdentity()
	require.NotNil(t, identity)
	assert.Equal(t, domain.RoleDoctor, identity.Role)
	assert.Equal(t, int32(1), h.api.verifyCalls.Load())
}

func TestRestore_RejectedCredentialIsCleared(t *testing.T) {
	for name, verifyErr := range map[string]error{
		"unauthorized": &client.StatusError{Status: http.StatusUnauthorized},
		"network":      &client.TransportError{Err: errors.New("dial tcp: refused")},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			h.store.Save(ctx, liveCredential(t))
			h.api.verifyErr = verifyErr

			assert.Equal(t, StatusUnauthenticated, h.session.Restore(ctx))
			assert.Nil(t, h.session.CurrentIdentity())
			_, ok := h.store.Load(ctx)
			assert.False(t, ok)
		})
	}
}

func TestRestore_RunsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := liveCredential(t)
	h.store.Save(ctx, cred)
	h.api.setProfile(cred.Access, doctor())

	require.Equal(t, StatusAuthenticated, h.session.Restore(ctx))
	require.Equal(t, StatusAuthenticated, h.session.Restore(ctx))
	assert.Equal(t, int32(1), h.api.verifyCalls.Load())
}

func TestRestore_RefreshesWhenEnabled(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.RefreshOnRestore = true })
	ctx := context.Background()
	staleRefresh := mintToken(t, domain.TokenTypeRefresh, time.Now().Add(time.Hour))
	h.store.Save(ctx, domain.Credential{
		Access:  mintToken(t, domain.TokenTypeAccess, time.Now().Add(-time.Minute)),
		Refresh: staleRefresh,
	})

	freshAccess := mintToken(t, domain.TokenTypeAccess, time.Now().Add(30*time.Minute))
	h.api.refreshFn = func(refresh string) (*domain.Credential, error) {
		assert.Equal(t, staleRefresh, refresh)
		return &domain.Credential{Access: freshAccess}, nil
	}
	h.api.setProfile(freshAccess, doctor())

	assert.Equal(t, StatusAuthenticated, h.session.Restore(ctx))
	stored, ok := h.store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, freshAccess, stored.Access)
	assert.Equal(t, staleRefresh, stored.Refresh, "unrotated refresh token is kept")
}

func TestRestore_RefreshFailureClears(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.RefreshOnRestore = true })
	ctx := context.Background()
	h.store.Save(ctx, domain.Credential{
		Access:  mintToken(t, domain.TokenTypeAccess, time.Now().Add(-time.Minute)),
		Refresh: mintToken(t, domain.TokenTypeRefresh, time.Now().Add(time.Hour)),
	})

	assert.Equal(t, StatusUnauthenticated, h.session.Restore(ctx))
	assert.Equal(t, int32(1), h.api.refreshCalls.Load())
	assert.Zero(t, h.backend.Len())
}

func TestLogin_Success(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := liveCredential(t)
	h.api.loginCred = &cred
	h.api.setProfile(cred.Access, doctor())

	identity, err := h.session.Login(ctx, "doc@clinic.test", "secret")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDoctor, identity.Role)
	assert.Equal(t, StatusAuthenticated, h.session.Status())

	stored, ok := h.store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, cred, *stored)

	identity.Email = "mutated"
	assert.Equal(t, "doc@clinic.test", h.session.CurrentIdentity().Email)
}

func TestLogin_RejectedCredentials(t *testing.T) {
	h := newHarness(t)
	h.api.loginErr = &client.StatusError{Status: http.StatusUnauthorized, Message: "No active account"}

	_, err := h.session.Login(context.Background(), "doc@clinic.test", "wrong")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, StatusUnauthenticated, h.session.Status())
	assert.Zero(t, h.backend.Len())
	assert.Zero(t, h.api.verifyCalls.Load())
}

func TestLogin_NetworkFailure(t *testing.T) {
	h := newHarness(t)
	h.api.loginErr = &client.TransportError{Err: errors.New("timeout")}

	_, err := h.session.Login(context.Background(), "doc@clinic.test", "secret")
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, StatusUnauthenticated, h.session.Status())
}

func TestLogin_ProfileFailureLeavesStoreUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := liveCredential(t)
	h.api.loginCred = &cred
	h.api.verifyErr = &client.StatusError{Status: http.StatusInternalServerError}

	_, err := h.session.Login(ctx, "doc@clinic.test", "secret")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, ErrNetwork)

	_, ok := h.store.Load(ctx)
	assert.False(t, ok)
	assert.Equal(t, StatusUnauthenticated, h.session.Status())
	assert.Nil(t, h.session.CurrentIdentity())
}

func TestLogin_FailureKeepsPreviousSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := liveCredential(t)
	h.api.loginCred = &cred
	h.api.setProfile(cred.Access, doctor())
	_, err := h.session.Login(ctx, "doc@clinic.test", "secret")
	require.NoError(t, err)

	h.api.loginErr = &client.StatusError{Status: http.StatusUnauthorized}
	_, err = h.session.Login(ctx, "other@clinic.test", "wrong")
	require.Error(t, err)

	assert.Equal(t, StatusAuthenticated, h.session.Status())
	assert.Equal(t, "doc@clinic.test", h.session.CurrentIdentity().Email)
	stored, ok := h.store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, cred.Access, stored.Access)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := liveCredential(t)
	h.api.loginCred = &cred
	h.api.setProfile(cred.Access, doctor())
	_, err := h.session.Login(ctx, "doc@clinic.test", "secret")
	require.NoError(t, err)

	h.session.Logout(ctx)
	assert.Equal(t, StatusUnauthenticated, h.session.Status())
	assert.Nil(t, h.session.CurrentIdentity())
	assert.Zero(t, h.backend.Len())

	assert.NotPanics(t, func() { h.session.Logout(ctx) })
}

func TestLogout_IsLocal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := liveCredential(t)
	h.store.Save(ctx, cred)
	h.api.setProfile(cred.Access, doctor())
	require.Equal(t, StatusAuthenticated, h.session.Restore(ctx))

	h.session.Logout(ctx)
	assert.Empty(t, h.api.blacklist)
}

func TestSignOut_RevokesRefreshToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := liveCredential(t)
	h.store.Save(ctx, cred)
	h.api.setProfile(cred.Access, doctor())
	require.Equal(t, StatusAuthenticated, h.session.Restore(ctx))
	h.api.blacklistE = &client.TransportError{Err: errors.New("offline")}

	h.session.SignOut(ctx)
	assert.Equal(t, []string{cred.Refresh}, h.api.blacklist)
	assert.Equal(t, StatusUnauthenticated, h.session.Status())
	assert.Zero(t, h.backend.Len())
}

func TestRefresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := liveCredential(t)
	h.store.Save(ctx, cred)
	h.api.setProfile(cred.Access, doctor())
	require.Equal(t, StatusAuthenticated, h.session.Restore(ctx))

	next := liveCredential(t)
	next.Access = mintToken(t, domain.TokenTypeAccess, time.Now().Add(2*time.Hour))
	h.api.refreshFn = func(string) (*domain.Credential, error) { return &next, nil }
	promoted := doctor()
	promoted.Role = "ADMIN"
	h.api.setProfile(next.Access, promoted)

	identity, err := h.session.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, identity.Role)
	stored, ok := h.store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, next, *stored)
}

func TestRefresh_WithoutSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.session.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, h.api.refreshCalls.Load())
}

func TestInvalidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := liveCredential(t)
	h.store.Save(ctx, cred)
	h.api.setProfile(cred.Access, doctor())
	require.Equal(t, StatusAuthenticated, h.session.Restore(ctx))

	h.session.Invalidate(ctx)
	assert.Equal(t, StatusInvalid, h.session.Status())
	assert.Nil(t, h.session.CurrentIdentity())
	assert.Zero(t, h.backend.Len())
}

func TestAuthorized_PassesBearer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := liveCredential(t)
	h.store.Save(ctx, cred)
	h.api.setProfile(cred.Access, doctor())
	require.Equal(t, StatusAuthenticated, h.session.Restore(ctx))

	var seen string
	err := h.session.Authorized(ctx, func(_ context.Context, bearer string) error {
		seen = bearer
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, cred.Access, seen)
}

func TestAuthorized_WithoutSession(t *testing.T) {
	h := newHarness(t)
	called := false
	err := h.session.Authorized(context.Background(), func(context.Context, string) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, called)
}

func TestAuthorized_NonAuthErrorsPassThrough(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := liveCredential(t)
	h.store.Save(ctx, cred)
	h.api.setProfile(cred.Access, doctor())
	require.Equal(t, StatusAuthenticated, h.session.Restore(ctx))

	boom := &client.StatusError{Status: http.StatusInternalServerError}
	err := h.session.Authorized(ctx, func(context.Context, string) error { return boom })
	assert.Same(t, boom, err)
	assert.Zero(t, h.api.refreshCalls.Load())
	assert.Equal(t, StatusAuthenticated, h.session.Status())
}

func TestAuthorized_RefreshesOnceAcrossConcurrentCallers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := liveCredential(t)
	h.store.Save(ctx, cred)
	h.api.setProfile(cred.Access, doctor())
	require.Equal(t, StatusAuthenticated, h.session.Restore(ctx))

	fresh := domain.Credential{
		Access:  mintToken(t, domain.TokenTypeAccess, time.Now().Add(3*time.Hour)),
		Refresh: mintToken(t, domain.TokenTypeRefresh, time.Now().Add(48*time.Hour)),
	}
	h.api.refreshFn = func(string) (*domain.Credential, error) { return &fresh, nil }
	h.api.setProfile(fresh.Access, doctor())

	call := func(_ context.Context, bearer string) error {
		if bearer == cred.Access {
			return &client.StatusError{Status: http.StatusUnauthorized}
		}
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.session.Authorized(ctx, call)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), h.api.refreshCalls.Load())
	assert.Equal(t, StatusAuthenticated, h.session.Status())
}

func TestAuthorized_RefreshFailureInvalidates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := liveCredential(t)
	h.store.Save(ctx, cred)
	h.api.setProfile(cred.Access, doctor())
	require.Equal(t, StatusAuthenticated, h.session.Restore(ctx))

	err := h.session.Authorized(ctx, func(context.Context, string) error {
		return &client.StatusError{Status: http.StatusUnauthorized}
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, StatusInvalid, h.session.Status())
	assert.Zero(t, h.backend.Len())
}
