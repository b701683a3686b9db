// Package client talks to the clinic auth API over HTTP.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/clinic-portal/internal/api/dto"
	"github.com/spec-kit/clinic-portal/internal/domain"
)

// Endpoint paths relative to the API base URL.
const (
	PathLogin          = "/auth/login"
	PathVerifyToken    = "/auth/verify_token"
	PathRegister       = "/auth/register"
	PathForgotPassword = "/auth/forgot_password"
	PathRefresh        = "/auth/token/refresh"
	PathBlacklist      = "/auth/token/blacklist"
	PathResetVerify    = "/auth/password/reset/verify"
	PathResetVerified  = "/auth/password/reset/verified"
	PathMe             = "/users/me"
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api status %d", e.Status)
}

// TransportError wraps failures to reach the API at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("api transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status from a StatusError chain.
func StatusCode(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status, true
	}
	return 0, false
}

// Client issues requests against the auth API.
type Client struct {
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// New builds a client. A zero timeout leaves requests bounded only by ctx.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger,
	}
}

// Login exchanges email and password for a credential pair.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.Credential, error) {
	var out dto.TokenPairResponse
	req := dto.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, fiber.MethodPost, PathLogin, "", req, &out); err != nil {
		return nil, err
	}
	return &domain.Credential{Access: out.Access, Refresh: out.Refresh}, nil
}

// VerifyToken submits an access token and returns the profile it belongs to.
func (c *Client) VerifyToken(ctx context.Context, accessToken string) (*domain.Identity, error) {
	var out domain.Identity
	req := dto.VerifyTokenRequest{APIToken: accessToken}
	if err := c.do(ctx, fiber.MethodPost, PathVerifyToken, "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh trades a refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.Credential, error) {
	var out dto.TokenPairResponse
	req := dto.RefreshRequest{Refresh: refreshToken}
	if err := c.do(ctx, fiber.MethodPost, PathRefresh, "", req, &out); err != nil {
		return nil, err
	}
	return &domain.Credential{Access: out.Access, Refresh: out.Refresh}, nil
}

// Blacklist revokes a refresh token.
func (c *Client) Blacklist(ctx context.Context, refreshToken string) error {
	return c.do(ctx, fiber.MethodPost, PathBlacklist, "", dto.RefreshRequest{Refresh: refreshToken}, nil)
}

// Register creates a clinic account. The bearer must belong to an admin.
func (c *Client) Register(ctx context.Context, bearer string, req dto.RegisterRequest) (*domain.Identity, error) {
	var out domain.Identity
	if err := c.do(ctx, fiber.MethodPost, PathRegister, bearer, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword asks the API to mail a reset code.
func (c *Client) ForgotPassword(ctx context.Context, email string) (bool, error) {
	var out dto.ForgotPasswordResponse
	if err := c.do(ctx, fiber.MethodPost, PathForgotPassword, "", dto.ForgotPasswordRequest{Email: email}, &out); err != nil {
		return false, err
	}
	return out.Result, nil
}

// VerifyResetCode checks a reset code without consuming it.
func (c *Client) VerifyResetCode(ctx context.Context, code string) error {
	path := PathResetVerify + "?code=" + url.QueryEscape(code)
	return c.do(ctx, fiber.MethodGet, path, "", nil, nil)
}

// ResetPassword consumes a reset code and sets a new password.
func (c *Client) ResetPassword(ctx context.Context, code, password string) error {
	req := dto.ResetPasswordRequest{Code: code, Password: password}
	return c.do(ctx, fiber.MethodPost, PathResetVerified, "", req, nil)
}

// Me fetches the profile for a bearer token.
func (c *Client) Me(ctx context.Context, bearer string) (*domain.Identity, error) {
	var out domain.Identity
	if err := c.do(ctx, fiber.MethodGet, PathMe, bearer, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type result struct {
	status int
	body   []byte
	errs   []error
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Err: err}
	}

	target := c.baseURL + path
	var agent *fiber.Agent
	switch method {
	case fiber.MethodGet:
		agent = fiber.Get(target)
	default:
		agent = fiber.Post(target)
	}
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if bearer != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	if in != nil {
		agent.JSON(in)
	}
	if timeout := c.effectiveTimeout(ctx); timeout > 0 {
		agent.Timeout(timeout)
	}
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return &TransportError{Err: err}
	}

	done := make(chan result, 1)
	go func() {
		status, body, errs := agent.Bytes()
		done <- result{status: status, body: body, errs: errs}
	}()

	var res result
	select {
	case <-ctx.Done():
		return &TransportError{Err: ctx.Err()}
	case res = <-done:
	}

	if len(res.errs) > 0 {
		c.logger.Debug("api request failed", zap.String("method", method), zap.String("path", path), zap.Errors("errors", res.errs))
		return &TransportError{Err: errors.Join(res.errs...)}
	}

	var env envelope
	if len(res.body) > 0 {
		if err := json.Unmarshal(res.body, &env); err != nil && res.status < http.StatusBadRequest {
			return &TransportError{Err: fmt.Errorf("decode response: %w", err)}
		}
	}

	if res.status < http.StatusOK || res.status >= http.StatusMultipleChoices {
		statusErr := &StatusError{Status: res.status}
		if env.Error != nil {
			statusErr.Code = env.Error.Code
			statusErr.Message = env.Error.Message
		}
		return statusErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &TransportError{Err: fmt.Errorf("decode response data: %w", err)}
	}
	return nil
}

func (c *Client) effectiveTimeout(ctx context.Context) time.Duration {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}
