package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/clinic-portal/internal/domain"
)

// PasswordResetRepository manages mailed reset codes.
type PasswordResetRepository interface {
	Create(ctx context.Context, code *domain.PasswordResetCode) error
	GetByCode(ctx context.Context, code string) (*domain.PasswordResetCode, error)
	LatestForUser(ctx context.Context, userID string) (*domain.PasswordResetCode, error)
	DeleteForUser(ctx context.Context, userID string) error
}

type passwordResetRepository struct {
	pool *pgxpool.Pool
}

// NewPasswordResetRepository constructs repository.
func NewPasswordResetRepository(pool *pgxpool.Pool) PasswordResetRepository {
	return &passwordResetRepository{pool: pool}
}

func (r *passwordResetRepository) Create(ctx context.Context, code *domain.PasswordResetCode) error {
	const query = `
        INSERT INTO password_reset_codes (user_id, code, expires_at)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		code.UserID,
		code.Code,
		code.ExpiresAt,
	).Scan(&code.ID, &code.CreatedAt)
}

func (r *passwordResetRepository) GetByCode(ctx context.Context, code string) (*domain.PasswordResetCode, error) {
	const query = `
        SELECT id, user_id, code, expires_at, created_at
        FROM password_reset_codes WHERE code=$1
        ORDER BY created_at DESC LIMIT 1`
	return r.scan(ctx, query, code)
}

func (r *passwordResetRepository) LatestForUser(ctx context.Context, userID string) (*domain.PasswordResetCode, error) {
	const query = `
        SELECT id, user_id, code, expires_at, created_at
        FROM password_reset_codes WHERE user_id=$1
        ORDER BY created_at DESC LIMIT 1`
	return r.scan(ctx, query, userID)
}

func (r *passwordResetRepository) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM password_reset_codes WHERE user_id=$1`, userID)
	return err
}

func (r *passwordResetRepository) scan(ctx context.Context, query string, arg any) (*domain.PasswordResetCode, error) {
	var code domain.PasswordResetCode
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&code.ID,
		&code.UserID,
		&code.Code,
		&code.ExpiresAt,
		&code.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &code, nil
}
