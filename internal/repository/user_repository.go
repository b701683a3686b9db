package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/clinic-portal/internal/domain"
)

// UserRepository defines persistence access for clinic accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, email, phone_number, password_hash, role, is_staff, is_active, is_verified,
        first_name, last_name, avatar, birthday, gender, address, city, last_login, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, phone_number, password_hash, role, is_staff, is_active, is_verified,
            first_name, last_name, avatar, birthday, gender, address, city)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		user.Email,
		user.PhoneNumber,
		user.PasswordHash,
		string(user.Role),
		user.IsStaff,
		user.IsActive,
		user.IsVerified,
		user.Profile.FirstName,
		user.Profile.LastName,
		user.Profile.Avatar,
		user.Profile.Birthday,
		int(user.Profile.Gender),
		user.Profile.Address,
		user.Profile.City,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET email=$1, phone_number=$2, role=$3, is_staff=$4, is_active=$5, is_verified=$6,
            first_name=$7, last_name=$8, avatar=$9, birthday=$10, gender=$11, address=$12, city=$13,
            updated_at=NOW()
        WHERE id=$14`

	cmd, err := r.pool.Exec(ctx, query,
		user.Email,
		user.PhoneNumber,
		string(user.Role),
		user.IsStaff,
		user.IsActive,
		user.IsVerified,
		user.Profile.FirstName,
		user.Profile.LastName,
		user.Profile.Avatar,
		user.Profile.Birthday,
		int(user.Profile.Gender),
		user.Profile.Address,
		user.Profile.City,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE users SET password_hash=$1, updated_at=NOW() WHERE id=$2`, passwordHash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login=$1 WHERE id=$2`, at, id)
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email)=lower($1)`, email)
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, query, arg))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user   domain.User
		role   string
		gender int
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PhoneNumber,
		&user.PasswordHash,
		&role,
		&user.IsStaff,
		&user.IsActive,
		&user.IsVerified,
		&user.Profile.FirstName,
		&user.Profile.LastName,
		&user.Profile.Avatar,
		&user.Profile.Birthday,
		&gender,
		&user.Profile.Address,
		&user.Profile.City,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = domain.NormalizeRole(role)
	user.Profile.Gender = domain.Gender(gender)
	return &user, nil
}
