package session

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/clinic-portal/internal/client"
	"github.com/spec-kit/clinic-portal/internal/domain"
	"github.com/spec-kit/clinic-portal/internal/storage"
)

var testSigningKey = []byte("session-test-key")

func mintToken(t *testing.T, tokenType domain.TokenType, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"token_type": string(tokenType),
		"user_id":    42,
		"jti":        "jti-" + exp.Format(time.RFC3339Nano),
		"iat":        time.Now().Unix(),
		"exp":        exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	require.NoError(t, err)
	return signed
}

func liveCredential(t *testing.T) domain.Credential {
	t.Helper()
	return domain.Credential{
		Access:  mintToken(t, domain.TokenTypeAccess, time.Now().Add(time.Hour)),
		Refresh: mintToken(t, domain.TokenTypeRefresh, time.Now().Add(24*time.Hour)),
	}
}

// fakeAPI stands in for the auth API. Each VerifyToken answer is looked up
// by access token so tests can tell which credential was resolved.
type fakeAPI struct {
	mu sync.Mutex

	loginCred  *domain.Credential
	loginErr   error
	refreshFn  func(refresh string) (*domain.Credential, error)
	profiles   map[string]*domain.Identity
	verifyErr  error
	blacklistE error
	blacklist  []string

	loginCalls   atomic.Int32
	verifyCalls  atomic.Int32
	refreshCalls atomic.Int32
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{profiles: make(map[string]*domain.Identity)}
}

func (f *fakeAPI) setProfile(access string, identity *domain.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[access] = identity
}

func (f *fakeAPI) totalCalls() int32 {
	return f.loginCalls.Load() + f.verifyCalls.Load() + f.refreshCalls.Load()
}

func (f *fakeAPI) Login(_ context.Context, _, _ string) (*domain.Credential, error) {
	f.loginCalls.Add(1)
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	cred := *f.loginCred
	return &cred, nil
}

func (f *fakeAPI) VerifyToken(_ context.Context, access string) (*domain.Identity, error) {
	f.verifyCalls.Add(1)
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.profiles[access]
	if !ok {
		return nil, &client.StatusError{Status: http.StatusUnauthorized, Message: "token not valid"}
	}
	out := *identity
	return &out, nil
}

func (f *fakeAPI) Refresh(_ context.Context, refresh string) (*domain.Credential, error) {
	f.refreshCalls.Add(1)
	if f.refreshFn == nil {
		return nil, &client.StatusError{Status: http.StatusUnauthorized}
	}
	return f.refreshFn(refresh)
}

func (f *fakeAPI) Blacklist(_ context.Context, refresh string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blacklist = append(f.blacklist, refresh)
	return f.blacklistE
}

type harness struct {
	api     *fakeAPI
	backend *storage.Memory
	store   *TokenStore
	session *Context
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	api := newFakeAPI()
	backend := storage.NewMemory()
	store := NewTokenStore(backend, nil)
	opts := Options{
		Store:    store,
		Resolver: NewResolver(api, nil),
		API:      api,
	}
	for _, m := range mutate {
		m(&opts)
	}
	sess, err := NewContext(opts)
	require.NoError(t, err)
	return &harness{api: api, backend: backend, store: store, session: sess}
}
