package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spec-kit/clinic-portal/internal/client"
)

var (
	// ErrUnauthorized means the API rejected the credential.
	ErrUnauthorized = errors.New("session: unauthorized")
	// ErrNetwork means the API could not be reached or answered unexpectedly.
	ErrNetwork = errors.New("session: network error")
)

// DecodeError reports a credential that could not be decoded. IsExpired
// absorbs it; DecodeClaims returns it for diagnostics.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("session: decode token: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// AuthError is returned by Login. It wraps ErrUnauthorized or ErrNetwork.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("session: login failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// classify folds API client errors into the session taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNetwork) {
		return err
	}
	if code, ok := client.StatusCode(err); ok {
		switch code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
