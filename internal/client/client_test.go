package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/clinic-portal/internal/api/dto"
	"github.com/spec-kit/clinic-portal/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second, nil)
}

func TestClient_Login(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathLogin, r.URL.Path)

		var req dto.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "doc@clinic.test", req.Email)
		assert.Equal(t, "secret", req.Password)

		writeJSON(w, http.StatusOK, map[string]any{
			"data": dto.TokenPairResponse{Access: "a.b.c", Refresh: "r.s.t"},
		})
	})

	cred, err := c.Login(context.Background(), "doc@clinic.test", "secret")
	require.NoError(t, err)
	assert.Equal(t, &domain.Credential{Access: "a.b.c", Refresh: "r.s.t"}, cred)
}

func TestClient_VerifyToken(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req dto.VerifyTokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tok", req.APIToken)

		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{"id": "u-1", "email": "a@clinic.test", "role": "Admin"},
		})
	})

	identity, err := c.VerifyToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "u-1", identity.ID)
	assert.Equal(t, domain.Role("Admin"), identity.Role)
}

func TestClient_StatusError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": map[string]any{"code": "UNAUTHORIZED", "message": "invalid token"},
		})
	})

	_, err := c.VerifyToken(context.Background(), "tok")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
	assert.Equal(t, "UNAUTHORIZED", statusErr.Code)

	code, ok := StatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second, nil)
	_, err := c.Login(context.Background(), "a", "b")
	require.Error(t, err)

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	_, ok := StatusCode(err)
	assert.False(t, ok)
}

func TestClient_CanceledContext(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Blacklist(ctx, "r")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_ForgotPasswordAndReset(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathForgotPassword:
			writeJSON(w, http.StatusOK, map[string]any{"data": dto.ForgotPasswordResponse{Result: true}})
		case PathResetVerify:
			assert.Equal(t, "123456", r.URL.Query().Get("code"))
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"status": "verified"}})
		case PathResetVerified:
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"status": "password_reset"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ok, err := c.ForgotPassword(context.Background(), "a@clinic.test")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.VerifyResetCode(context.Background(), "123456"))
	require.NoError(t, c.ResetPassword(context.Background(), "123456", "n3w-pass"))
}

func TestClient_BearerHeader(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": "u-2", "role": "doctor"}})
	})

	identity, err := c.Me(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "u-2", identity.ID)
}
