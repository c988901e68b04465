package verification

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-api-verify/internal/domain"
	"github.com/go-api-verify/internal/pkg/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockStore struct{ mock.Mock }

func (m *mockStore) Create(ctx context.Context, rec *domain.VerificationRecord) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *mockStore) FindBySecret(ctx context.Context, s string) (*domain.VerificationRecord, error) {
	args := m.Called(ctx, s)
	if r, _ := args.Get(0).(*domain.VerificationRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) FindLatestByChannel(ctx context.Context, channel string) (*domain.VerificationRecord, error) {
	args := m.Called(ctx, channel)
	if r, _ := args.Get(0).(*domain.VerificationRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) MarkVerified(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}
func (m *mockStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// --- helpers ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fixedCode(code string) Strategy {
	s := PhoneCode()
	s.Generate = func() (string, error) { return code, nil }
	return s
}

func newEmailManager(store Store, clk *fakeClock) *Manager {
	return NewManager(store, EmailToken(), WithClock(clk.Now))
}

func newPhoneManager(store Store, strategy Strategy, clk *fakeClock) *Manager {
	return NewManager(store, strategy, WithClock(clk.Now))
}

// --- Issue ---

func TestIssue_Email_StoresPlaintextToken(t *testing.T) {
	store, clk := newMemStore(), newFakeClock()
	m := newEmailManager(store, clk)

	iss, err := m.Issue(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{64}$`, iss.Secret)
	assert.Equal(t, iss.Secret, iss.Record.Secret)
	assert.Empty(t, iss.Record.Channel)
	assert.Equal(t, clk.Now().Add(24*time.Hour), iss.Record.ExpiresAt)
	assert.Nil(t, iss.Record.VerifiedAt)

	stored, ok := store.get(iss.Record.ID)
	require.True(t, ok)
	assert.Equal(t, "u1", stored.SubjectID)
}

func TestIssue_Phone_StoresHashReturnsPlaintext(t *testing.T) {
	store, clk := newMemStore(), newFakeClock()
	m := newPhoneManager(store, PhoneCode(), clk)

	iss, err := m.Issue(context.Background(), "u1", "+33612345678")
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, iss.Secret)
	assert.NotEqual(t, iss.Secret, iss.Record.Secret)
	assert.Equal(t, secret.Hash(iss.Secret), iss.Record.Secret)
	assert.Equal(t, "+33612345678", iss.Record.Channel)
	assert.Equal(t, clk.Now().Add(10*time.Minute), iss.Record.ExpiresAt)
}

func TestIssue_Phone_RequiresChannel(t *testing.T) {
	m := newPhoneManager(newMemStore(), PhoneCode(), newFakeClock())
	_, err := m.Issue(context.Background(), "u1", "")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestIssue_RequiresSubject(t *testing.T) {
	m := newEmailManager(newMemStore(), newFakeClock())
	_, err := m.Issue(context.Background(), "", "")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestIssue_StoreFailure(t *testing.T) {
	store := &mockStore{}
	store.On("Create", mock.Anything, mock.AnythingOfType("*domain.VerificationRecord")).Return(errors.New("connection refused"))

	m := newEmailManager(store, newFakeClock())
	_, err := m.Issue(context.Background(), "u1", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
	assert.ErrorContains(t, err, "connection refused")
	store.AssertExpectations(t)
}

func TestIssue_UsesIDGenerator(t *testing.T) {
	m := NewManager(newMemStore(), EmailToken(), WithIDGenerator(func() string { return "fixed-id" }))
	iss, err := m.Issue(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", iss.Record.ID)
}

// --- Consume: email ---

func TestConsume_Email_SucceedsOnceThenAlreadyConsumed(t *testing.T) {
	store, clk := newMemStore(), newFakeClock()
	m := newEmailManager(store, clk)
	ctx := context.Background()

	iss, err := m.Issue(ctx, "u1", "")
	require.NoError(t, err)

	rec, err := m.Consume(ctx, ConsumeRequest{Secret: iss.Secret})
	require.NoError(t, err)
	require.NotNil(t, rec.VerifiedAt)
	assert.Equal(t, clk.Now(), *rec.VerifiedAt)

	stored, _ := store.get(iss.Record.ID)
	assert.NotNil(t, stored.VerifiedAt)

	_, err = m.Consume(ctx, ConsumeRequest{Secret: iss.Secret})
	assert.True(t, errors.Is(err, domain.ErrAlreadyConsumed))
}

func TestConsume_Email_UnknownTokenIsNotFound(t *testing.T) {
	m := newEmailManager(newMemStore(), newFakeClock())
	_, err := m.Consume(context.Background(), ConsumeRequest{Secret: "deadbeef"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, IsMismatch(err))
}

func TestConsume_Email_EmptyTokenIsNotFound(t *testing.T) {
	store := &mockStore{}
	m := newEmailManager(store, newFakeClock())
	_, err := m.Consume(context.Background(), ConsumeRequest{})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	store.AssertNotCalled(t, "FindBySecret", mock.Anything, mock.Anything)
}

func TestConsume_Email_Expired(t *testing.T) {
	store, clk := newMemStore(), newFakeClock()
	m := newEmailManager(store, clk)
	ctx := context.Background()

	iss, err := m.Issue(ctx, "u1", "")
	require.NoError(t, err)
	store.forceExpiry(iss.Record.ID, clk.Now().Add(-time.Second))

	_, err = m.Consume(ctx, ConsumeRequest{Secret: iss.Secret})
	assert.True(t, errors.Is(err, domain.ErrExpired))
}

func TestConsume_ValidAtExactExpiry(t *testing.T) {
	store, clk := newMemStore(), newFakeClock()
	m := newEmailManager(store, clk)
	ctx := context.Background()

	iss, err := m.Issue(ctx, "u1", "")
	require.NoError(t, err)
	clk.Advance(24 * time.Hour)

	_, err = m.Consume(ctx, ConsumeRequest{Secret: iss.Secret})
	assert.NoError(t, err)
}

func TestConsume_ExpiredOneTickAfter(t *testing.T) {
	store, clk := newMemStore(), newFakeClock()
	m := newEmailManager(store, clk)
	ctx := context.Background()

	iss, err := m.Issue(ctx, "u1", "")
	require.NoError(t, err)
	clk.Advance(24*time.Hour + time.Nanosecond)

	_, err = m.Consume(ctx, ConsumeRequest{Secret: iss.Secret})
	assert.True(t, errors.Is(err, domain.ErrExpired))
}

func TestConsume_AlreadyConsumedCheckedBeforeExpiry(t *testing.T) {
	store, clk := newMemStore(), newFakeClock()
	m := newEmailManager(store, clk)
	ctx := context.Background()

	iss, err := m.Issue(ctx, "u1", "")
	require.NoError(t, err)
	_, err = m.Consume(ctx, ConsumeRequest{Secret: iss.Secret})
	require.NoError(t, err)

	clk.Advance(48 * time.Hour)
	_, err = m.Consume(ctx, ConsumeRequest{Secret: iss.Secret})
	assert.True(t, errors.Is(err, domain.ErrAlreadyConsumed))
}

// --- Consume: phone ---

func TestConsume_Phone_EndToEnd(t *testing.T) {
	store, clk := newMemStore(), newFakeClock()
	m := newPhoneManager(store, fixedCode("482913"), clk)
	ctx := context.Background()

	iss, err := m.Issue(ctx, "u1", "+33612345678")
	require.NoError(t, err)
	assert.Equal(t, "482913", iss.Secret)
	assert.Equal(t, secret.Hash("482913"), iss.Record.Secret)

	_, err = m.Consume(ctx, ConsumeRequest{Channel: "+33612345678", Secret: "000000", SubjectID: "u1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSecretMismatch))
	assert.True(t, IsMismatch(err))

	rec, err := m.Consume(ctx, ConsumeRequest{Channel: "+33612345678", Secret: "482913", SubjectID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.SubjectID)
	assert.NotNil(t, rec.VerifiedAt)
}

func TestConsume_Phone_SubjectMismatch(t *testing.T) {
	store, clk := newMemStore(), newFakeClock()
	m := newPhoneManager(store, fixedCode("482913"), clk)
	ctx := context.Background()

	_, err := m.Issue(ctx, "u1", "+33612345678")
	require.NoError(t, err)

	_, err = m.Consume(ctx, ConsumeRequest{Channel: "+33612345678", Secret: "482913", SubjectID: "u2"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSubjectMismatch))
	assert.True(t, IsMismatch(err))

	// The failed attempt must not consume the record.
	_, err = m.Consume(ctx, ConsumeRequest{Channel: "+33612345678", Secret: "482913", SubjectID: "u1"})
	assert.NoError(t, err)
}

func TestConsume_Phone_NoRecordForChannel(t *testing.T) {
	m := newPhoneManager(newMemStore(), PhoneCode(), newFakeClock())
	_, err := m.Consume(context.Background(), ConsumeRequest{Channel: "+14155552671", Secret: "123456"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestConsume_Phone_OnlyLatestRecordIsEligible(t *testing.T) {
	store, clk := newMemStore(), newFakeClock()
	codes := []string{"111111", "222222"}
	s := PhoneCode()
	s.Generate = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	m := newPhoneManager(store, s, clk)
	ctx := context.Background()

	_, err := m.Issue(ctx, "u1", "+33612345678")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = m.Issue(ctx, "u1", "+33612345678")
	require.NoError(t, err)

	_, err = m.Consume(ctx, ConsumeRequest{Channel: "+33612345678", Secret: "111111", SubjectID: "u1"})
	assert.True(t, errors.Is(err, domain.ErrSecretMismatch))

	_, err = m.Consume(ctx, ConsumeRequest{Channel: "+33612345678", Secret: "222222", SubjectID: "u1"})
	assert.NoError(t, err)
}

func TestConsume_Phone_ExpiredBeforeMismatch(t *testing.T) {
	store, clk := newMemStore(), newFakeClock()
	m := newPhoneManager(store, fixedCode("482913"), clk)
	ctx := context.Background()

	_, err := m.Issue(ctx, "u1", "+33612345678")
	require.NoError(t, err)
	clk.Advance(11 * time.Minute)

	_, err = m.Consume(ctx, ConsumeRequest{Channel: "+33612345678", Secret: "000000"})
	assert.True(t, errors.Is(err, domain.ErrExpired))
}

// --- Consume: store interaction ---

func TestConsume_LostRaceIsAlreadyConsumed(t *testing.T) {
	clk := newFakeClock()
	store := &mockStore{}
	rec := &domain.VerificationRecord{ID: "v1", SubjectID: "u1", Secret: "tok", ExpiresAt: clk.Now().Add(time.Hour)}
	store.On("FindBySecret", mock.Anything, "tok").Return(rec, nil)
	store.On("MarkVerified", mock.Anything, "v1", clk.Now()).Return(domain.ErrConflict)

	m := newEmailManager(store, clk)
	_, err := m.Consume(context.Background(), ConsumeRequest{Secret: "tok"})
	assert.True(t, errors.Is(err, domain.ErrAlreadyConsumed))
	store.AssertExpectations(t)
}

func TestConsume_FindFailureIsStoreUnavailable(t *testing.T) {
	store := &mockStore{}
	store.On("FindBySecret", mock.Anything, "tok").Return(nil, errors.New("timeout"))

	m := newEmailManager(store, newFakeClock())
	_, err := m.Consume(context.Background(), ConsumeRequest{Secret: "tok"})
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestConsume_MarkFailureIsStoreUnavailable(t *testing.T) {
	clk := newFakeClock()
	store := &mockStore{}
	rec := &domain.VerificationRecord{ID: "v1", SubjectID: "u1", Secret: "tok", ExpiresAt: clk.Now().Add(time.Hour)}
	store.On("FindBySecret", mock.Anything, "tok").Return(rec, nil)
	store.On("MarkVerified", mock.Anything, "v1", mock.Anything).Return(errors.New("throttled"))

	m := newEmailManager(store, clk)
	_, err := m.Consume(context.Background(), ConsumeRequest{Secret: "tok"})
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}

func TestConsume_ConcurrentCallsSucceedExactlyOnce(t *testing.T) {
	store, clk := newMemStore(), newFakeClock()
	m := newEmailManager(store, clk)
	ctx := context.Background()

	iss, err := m.Issue(ctx, "u1", "")
	require.NoError(t, err)

	var ok, consumed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Consume(ctx, ConsumeRequest{Secret: iss.Secret})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrAlreadyConsumed):
				consumed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(15), consumed.Load())
}

// --- PurgeExpired ---

func TestPurgeExpired_RemovesOnlyExpiredUnverified(t *testing.T) {
	store, clk := newMemStore(), newFakeClock()
	m := newEmailManager(store, clk)
	ctx := context.Background()

	expiredPending, err := m.Issue(ctx, "u1", "")
	require.NoError(t, err)
	expiredVerified, err := m.Issue(ctx, "u2", "")
	require.NoError(t, err)
	_, err = m.Consume(ctx, ConsumeRequest{Secret: expiredVerified.Secret})
	require.NoError(t, err)
	fresh, err := m.Issue(ctx, "u3", "")
	require.NoError(t, err)

	store.forceExpiry(expiredPending.Record.ID, clk.Now().Add(-time.Minute))
	store.forceExpiry(expiredVerified.Record.ID, clk.Now().Add(-time.Minute))

	n, err := m.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 2, store.len())

	_, ok := store.get(expiredPending.Record.ID)
	assert.False(t, ok)
	_, ok = store.get(expiredVerified.Record.ID)
	assert.True(t, ok)
	_, ok = store.get(fresh.Record.ID)
	assert.True(t, ok)

	n, err = m.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPurgeExpired_PassesClockToStore(t *testing.T) {
	clk := newFakeClock()
	store := &mockStore{}
	store.On("PurgeExpired", mock.Anything, clk.Now()).Return(int64(3), nil)

	m := newPhoneManager(store, PhoneCode(), clk)
	n, err := m.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	store.AssertExpectations(t)
}

func TestPurgeExpired_StoreFailure(t *testing.T) {
	store := &mockStore{}
	store.On("PurgeExpired", mock.Anything, mock.Anything).Return(int64(0), errors.New("down"))

	m := newPhoneManager(store, PhoneCode(), newFakeClock())
	_, err := m.PurgeExpired(context.Background())
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}
