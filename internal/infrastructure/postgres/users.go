package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-api-verify/internal/domain"
)

const userColumns = `id, email, email_verified, phone, phone_verified, password_hash,
		 verification_status, is_expert, reputation_score, created_at, updated_at`

type UserRepo struct {
	db DBTX
}

func NewUserRepo(db DBTX) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	query :=
		`INSERT INTO users (id, email, password_hash, verification_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, string(u.VerificationStatus), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s exists: %w", u.Email, domain.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
}

func (r *UserRepo) SetEmailVerified(ctx context.Context, userID string) error {
	query :=
		`UPDATE users SET email_verified = TRUE, updated_at = NOW()
		 WHERE id = $1`
	return r.execOne(ctx, userID, query, userID)
}

func (r *UserRepo) SetPhoneVerified(ctx context.Context, userID, phone string) error {
	query :=
		`UPDATE users SET phone = $2, phone_verified = TRUE, verification_status = $3, updated_at = NOW()
		 WHERE id = $1`
	return r.execOne(ctx, userID, query, userID, phone, string(domain.StatusPhoneVerified))
}

func (r *UserRepo) execOne(ctx context.Context, userID, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return fmt.Errorf("user %s: %w", userID, domain.ErrConflict)
		case isInvalidID(err):
			return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}

func (r *UserRepo) scanOne(row *sql.Row) (*domain.User, error) {
	var (
		u      domain.User
		phone  sql.NullString
		status string
	)
	err := row.Scan(&u.ID, &u.Email, &u.EmailVerified, &phone, &u.PhoneVerified, &u.PasswordHash,
		&status, &u.IsExpert, &u.ReputationScore, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
			return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	u.VerificationStatus = domain.VerificationStatus(status)
	return &u, nil
}
