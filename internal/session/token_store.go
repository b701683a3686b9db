package session

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-portal/internal/domain"
	"github.com/spec-kit/clinic-portal/internal/storage"
)

// AuthStorageKey is the storage key the credential lives under.
const AuthStorageKey = "kt-auth-react-v"

// TokenStore persists the credential. It never fails outward: storage and
// encoding problems are logged and degrade to "absent".
type TokenStore struct {
	storage storage.Storage
	logger  *zap.Logger
}

// NewTokenStore wraps a storage backend. A nil backend behaves as unavailable storage.
func NewTokenStore(s storage.Storage, logger *zap.Logger) *TokenStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenStore{storage: s, logger: logger}
}

// Save writes the credential, replacing any previous one.
func (s *TokenStore) Save(ctx context.Context, cred domain.Credential) {
	if s.storage == nil {
		return
	}
	raw, err := json.Marshal(cred)
	if err != nil {
		s.logger.Warn("auth storage save error", zap.Error(err))
		return
	}
	if err := s.storage.Set(ctx, AuthStorageKey, string(raw)); err != nil {
		s.logger.Warn("auth storage save error", zap.Error(err))
	}
}

// Load returns the stored credential, or false when there is none or it is unreadable.
func (s *TokenStore) Load(ctx context.Context) (*domain.Credential, bool) {
	if s.storage == nil {
		return nil, false
	}
	raw, err := s.storage.Get(ctx, AuthStorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("auth storage read error", zap.Error(err))
		}
		return nil, false
	}
	if raw == "" {
		return nil, false
	}

	var cred domain.Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		s.logger.Warn("auth storage parse error", zap.Error(err))
		return nil, false
	}
	if cred.Access == "" {
		return nil, false
	}
	return &cred, true
}

// Clear removes the stored credential.
func (s *TokenStore) Clear(ctx context.Context) {
	if s.storage == nil {
		return
	}
	if err := s.storage.Delete(ctx, AuthStorageKey); err != nil {
		s.logger.Warn("auth storage remove error", zap.Error(err))
	}
}
