package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-api-verify/internal/domain"
)

type verificationQueries struct {
	insert       string
	bySecret     string
	latestByChan string
	markVerified string
	isVerified   string
	purge        string
}

var emailQueries = verificationQueries{
	insert: `INSERT INTO email_verifications (id, user_id, token, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
	bySecret: `SELECT id, user_id, '' AS phone, token, expires_at, verified_at, created_at
		 FROM email_verifications
		 WHERE token = $1`,
	markVerified: `UPDATE email_verifications SET verified_at = $2
		 WHERE id = $1 AND verified_at IS NULL`,
	isVerified: `SELECT verified_at IS NOT NULL FROM email_verifications WHERE id = $1`,
	purge: `DELETE FROM email_verifications
		 WHERE expires_at < $1 AND verified_at IS NULL`,
}

var phoneQueries = verificationQueries{
	insert: `INSERT INTO phone_verifications (id, user_id, phone, code, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
	latestByChan: `SELECT id, user_id, phone, code, expires_at, verified_at, created_at
		 FROM phone_verifications
		 WHERE phone = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
	markVerified: `UPDATE phone_verifications SET verified_at = $2
		 WHERE id = $1 AND verified_at IS NULL`,
	isVerified: `SELECT verified_at IS NOT NULL FROM phone_verifications WHERE id = $1`,
	purge: `DELETE FROM phone_verifications
		 WHERE expires_at < $1 AND verified_at IS NULL`,
}

// VerificationRepo stores verification records for one flow in its own table.
type VerificationRepo struct {
	db   DBTX
	flow domain.Flow
	q    verificationQueries
}

func NewEmailVerificationRepo(db DBTX) *VerificationRepo {
	return &VerificationRepo{db: db, flow: domain.FlowEmail, q: emailQueries}
}

func NewPhoneVerificationRepo(db DBTX) *VerificationRepo {
	return &VerificationRepo{db: db, flow: domain.FlowPhone, q: phoneQueries}
}

func (r *VerificationRepo) Create(ctx context.Context, rec *domain.VerificationRecord) error {
	var err error
	if r.flow == domain.FlowPhone {
		_, err = r.db.ExecContext(ctx, r.q.insert, rec.ID, rec.SubjectID, rec.Channel, rec.Secret, rec.ExpiresAt, rec.CreatedAt)
	} else {
		_, err = r.db.ExecContext(ctx, r.q.insert, rec.ID, rec.SubjectID, rec.Secret, rec.ExpiresAt, rec.CreatedAt)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("verification %s exists: %w", rec.ID, domain.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *VerificationRepo) FindBySecret(ctx context.Context, secret string) (*domain.VerificationRecord, error) {
	if r.q.bySecret == "" {
		return nil, fmt.Errorf("%s verifications are not indexed by secret: %w", r.flow, domain.ErrBadRequest)
	}
	return r.scanOne(r.db.QueryRowContext(ctx, r.q.bySecret, secret))
}

func (r *VerificationRepo) FindLatestByChannel(ctx context.Context, channel string) (*domain.VerificationRecord, error) {
	if r.q.latestByChan == "" {
		return nil, fmt.Errorf("%s verifications have no channel: %w", r.flow, domain.ErrBadRequest)
	}
	return r.scanOne(r.db.QueryRowContext(ctx, r.q.latestByChan, channel))
}

// MarkVerified sets verified_at only while it is NULL.
func (r *VerificationRepo) MarkVerified(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.q.markVerified, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 1 {
		return nil
	}

	var verified bool
	err = r.db.QueryRowContext(ctx, r.q.isVerified, id).Scan(&verified)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("verification %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return fmt.Errorf("verification %s already verified: %w", id, domain.ErrConflict)
}

func (r *VerificationRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.q.purge, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *VerificationRepo) scanOne(row *sql.Row) (*domain.VerificationRecord, error) {
	var (
		rec        domain.VerificationRecord
		verifiedAt sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.SubjectID, &rec.Channel, &rec.Secret, &rec.ExpiresAt, &verifiedAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		rec.VerifiedAt = &t
	}
	return &rec, nil
}
