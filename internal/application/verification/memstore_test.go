package verification

import (
	"context"
	"sync"
	"time"

	"github.com/go-api-verify/internal/domain"
)

// memStore is an in-memory Store used to run full lifecycles in tests.
type memStore struct {
	mu   sync.Mutex
	rows map[string]domain.VerificationRecord
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]domain.VerificationRecord)}
}

func (s *memStore) Create(_ context.Context, rec *domain.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[rec.ID]; ok {
		return domain.ErrConflict
	}
	s.rows[rec.ID] = *rec
	return nil
}

func (s *memStore) FindBySecret(_ context.Context, secret string) (*domain.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Secret == secret {
			r := r
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) FindLatestByChannel(_ context.Context, channel string) (*domain.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.VerificationRecord
	for _, r := range s.rows {
		if r.Channel != channel {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			r := r
			latest = &r
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (s *memStore) MarkVerified(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.VerifiedAt != nil {
		return domain.ErrConflict
	}
	r.VerifiedAt = &at
	s.rows[id] = r
	return nil
}

func (s *memStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.rows {
		if r.VerifiedAt == nil && r.ExpiresAt.Before(now) {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) get(id string) (domain.VerificationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	return r, ok
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memStore) forceExpiry(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rows[id]
	r.ExpiresAt = at
	s.rows[id] = r
}
