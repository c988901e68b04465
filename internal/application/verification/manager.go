package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-api-verify/internal/domain"
	"github.com/go-api-verify/internal/pkg/id"
)

// Issued is the result of Issue. Secret is the plaintext to deliver; the
// record holds the sealed form.
type Issued struct {
	Secret string
	Record *domain.VerificationRecord
}

// ConsumeRequest identifies the record to consume.
// Channel is required for channel lookups. SubjectID, when set, must own the record.
type ConsumeRequest struct {
	Channel   string
	Secret    string
	SubjectID string
}

type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides how record ids are assigned.
func WithIDGenerator(gen id.Generator) Option {
	return func(m *Manager) { m.newID = gen }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// Manager runs the issue / consume / purge lifecycle for one flow.
type Manager struct {
	store    Store
	strategy Strategy
	now      func() time.Time
	newID    id.Generator
	log      *slog.Logger
}

func NewManager(store Store, strategy Strategy, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		strategy: strategy,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    id.New,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With("flow", string(strategy.Flow))
	return m
}

func (m *Manager) Flow() domain.Flow { return m.strategy.Flow }

// Issue generates and persists a new secret for subjectID. channel is the
// E.164 number for the phone flow and ignored for email.
func (m *Manager) Issue(ctx context.Context, subjectID, channel string) (*Issued, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject required: %w", domain.ErrBadRequest)
	}
	if m.strategy.Lookup == LookupLatestByChannel && channel == "" {
		return nil, fmt.Errorf("channel required: %w", domain.ErrBadRequest)
	}
	plain, err := m.strategy.Generate()
	if err != nil {
		return nil, err
	}
	now := m.now()
	rec := &domain.VerificationRecord{
		ID:        m.newID(),
		SubjectID: subjectID,
		Secret:    m.strategy.Seal(plain),
		ExpiresAt: now.Add(m.strategy.TTL),
		CreatedAt: now,
	}
	if m.strategy.Lookup == LookupLatestByChannel {
		rec.Channel = channel
	}
	if err := m.store.Create(ctx, rec); err != nil {
		return nil, storeErr("create verification", err)
	}
	m.log.Debug("verification issued", "id", rec.ID, "user_id", subjectID, "expires_at", rec.ExpiresAt)
	return &Issued{Secret: plain, Record: rec}, nil
}

// Consume validates the submitted secret and marks its record verified.
//
// Failure kinds, in check order: domain.ErrNotFound, domain.ErrAlreadyConsumed,
// domain.ErrExpired, domain.ErrSecretMismatch, domain.ErrSubjectMismatch.
// Store failures wrap domain.ErrStoreUnavailable.
func (m *Manager) Consume(ctx context.Context, req ConsumeRequest) (*domain.VerificationRecord, error) {
	rec, err := m.lookup(ctx, req)
	if err != nil {
		return nil, err
	}
	if !rec.Pending() {
		return nil, fmt.Errorf("verification %s: %w", rec.ID, domain.ErrAlreadyConsumed)
	}
	now := m.now()
	if rec.ExpiredAt(now) {
		return nil, fmt.Errorf("verification %s: %w", rec.ID, domain.ErrExpired)
	}
	if m.strategy.Lookup == LookupLatestByChannel {
		sealed := m.strategy.Seal(req.Secret)
		if subtle.ConstantTimeCompare([]byte(sealed), []byte(rec.Secret)) != 1 {
			return nil, fmt.Errorf("verification %s: %w", rec.ID, domain.ErrSecretMismatch)
		}
	}
	if req.SubjectID != "" && req.SubjectID != rec.SubjectID {
		return nil, fmt.Errorf("verification %s: %w", rec.ID, domain.ErrSubjectMismatch)
	}
	if err := m.store.MarkVerified(ctx, rec.ID, now); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("verification %s: %w", rec.ID, domain.ErrAlreadyConsumed)
		}
		return nil, storeErr("mark verified", err)
	}
	rec.VerifiedAt = &now
	m.log.Info("verification consumed", "id", rec.ID, "user_id", rec.SubjectID)
	return rec, nil
}

// PurgeExpired deletes unverified records whose expiry has passed.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.store.PurgeExpired(ctx, m.now())
	if err != nil {
		return 0, storeErr("purge expired", err)
	}
	return n, nil
}

func (m *Manager) lookup(ctx context.Context, req ConsumeRequest) (*domain.VerificationRecord, error) {
	var (
		rec *domain.VerificationRecord
		err error
	)
	switch m.strategy.Lookup {
	case LookupBySecret:
		if req.Secret == "" {
			return nil, fmt.Errorf("empty secret: %w", domain.ErrNotFound)
		}
		rec, err = m.store.FindBySecret(ctx, m.strategy.Seal(req.Secret))
	case LookupLatestByChannel:
		if req.Channel == "" {
			return nil, fmt.Errorf("empty channel: %w", domain.ErrNotFound)
		}
		rec, err = m.store.FindLatestByChannel(ctx, req.Channel)
	default:
		return nil, fmt.Errorf("unknown lookup %d", m.strategy.Lookup)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
		}
		return nil, storeErr("find verification", err)
	}
	return rec, nil
}

// IsMismatch reports whether err is a secret or subject mismatch. Callers
// surface both as the same failure.
func IsMismatch(err error) bool {
	return errors.Is(err, domain.ErrSecretMismatch) || errors.Is(err, domain.ErrSubjectMismatch)
}

func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
