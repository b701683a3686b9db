package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-portal/internal/storage"
)

const (
	// ResetEmailStorageKey holds the address a reset code was requested for.
	ResetEmailStorageKey = "emailForPasswordReset"
	// ResetEmailTTL bounds how long that address is remembered.
	ResetEmailTTL = 15 * time.Minute
)

type resetEmailEntry struct {
	Email   string `json:"email"`
	Expires int64  `json:"expires"`
}

// ResetEmailStore remembers the email between "forgot password" and
// "reset password". Entries are checked for expiry on read.
type ResetEmailStore struct {
	storage storage.Storage
	logger  *zap.Logger
	now     Clock
}

// NewResetEmailStore wraps a storage backend. A nil clock means time.Now.
func NewResetEmailStore(s storage.Storage, logger *zap.Logger, now Clock) *ResetEmailStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &ResetEmailStore{storage: s, logger: logger, now: now}
}

// Save records email with a deadline ResetEmailTTL from now.
func (s *ResetEmailStore) Save(ctx context.Context, email string) {
	if s.storage == nil {
		return
	}
	entry := resetEmailEntry{
		Email:   email,
		Expires: s.now().Add(ResetEmailTTL).UnixMilli(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("reset email save error", zap.Error(err))
		return
	}
	if err := s.storage.Set(ctx, ResetEmailStorageKey, string(raw)); err != nil {
		s.logger.Warn("reset email save error", zap.Error(err))
	}
}

// Load returns the remembered email. Expired or unreadable entries are
// removed and reported as absent.
func (s *ResetEmailStore) Load(ctx context.Context) (string, bool) {
	if s.storage == nil {
		return "", false
	}
	raw, err := s.storage.Get(ctx, ResetEmailStorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("reset email read error", zap.Error(err))
		}
		return "", false
	}

	var entry resetEmailEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Email == "" {
		s.logger.Warn("reset email parse error", zap.Error(err))
		s.Clear(ctx)
		return "", false
	}
	if s.now().UnixMilli() > entry.Expires {
		s.Clear(ctx)
		return "", false
	}
	return entry.Email, true
}

// Clear forgets the email.
func (s *ResetEmailStore) Clear(ctx context.Context) {
	if s.storage == nil {
		return
	}
	if err := s.storage.Delete(ctx, ResetEmailStorageKey); err != nil {
		s.logger.Warn("reset email remove error", zap.Error(err))
	}
}
