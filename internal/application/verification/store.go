package verification

import (
	"context"
	"time"

	"github.com/go-api-verify/internal/domain"
)

// Store persists verification records for a single flow.
//
// Implementations return domain.ErrNotFound when no record matches and
// domain.ErrConflict from MarkVerified when the record was already verified.
type Store interface {
	Create(ctx context.Context, rec *domain.VerificationRecord) error
	// FindBySecret looks a record up by its stored secret value.
	FindBySecret(ctx context.Context, secret string) (*domain.VerificationRecord, error)
	// FindLatestByChannel returns the most recently created record for channel.
	FindLatestByChannel(ctx context.Context, channel string) (*domain.VerificationRecord, error)
	// MarkVerified sets verified_at only if it is still unset.
	MarkVerified(ctx context.Context, id string, at time.Time) error
	// PurgeExpired deletes unverified records with expires_at < now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
