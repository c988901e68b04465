package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-api-verify/internal/application/verification"
	"github.com/go-api-verify/internal/domain"
	"github.com/go-api-verify/internal/pkg/id"
	"github.com/go-api-verify/internal/pkg/password"
	"github.com/go-api-verify/internal/pkg/validate"
)

// Next steps returned to the client after a successful verification.
const (
	PhoneSetupURL    = "/register/phone-setup"
	PasswordSetupURL = "/register/password-setup"
)

// Errors the transport layer maps to dedicated codes. Each also wraps the
// matching domain sentinel.
var (
	ErrEmailTaken   = errors.New("an account with this email already exists")
	ErrPhoneTaken   = errors.New("this phone number is already registered")
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidToken = errors.New("invalid or expired verification token")
	ErrInvalidCode  = errors.New("invalid or expired verification code")
)

type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	SetEmailVerified(ctx context.Context, userID string) error
	SetPhoneVerified(ctx context.Context, userID, phone string) error
}

// Verifier is satisfied by *verification.Manager.
type Verifier interface {
	Issue(ctx context.Context, subjectID, channel string) (*verification.Issued, error)
	Consume(ctx context.Context, req verification.ConsumeRequest) (*domain.VerificationRecord, error)
}

// Notifier delivers secrets out of band. Calls return immediately.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, token string)
	SendVerificationSMS(ctx context.Context, to, code string)
}

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	VerifyEmail(ctx context.Context, token string) (redirectURL string, err error)
	SendSMSCode(ctx context.Context, req domain.SendSMSCodeRequest) error
	VerifyPhone(ctx context.Context, req domain.VerifyPhoneRequest) (redirectURL string, err error)
}

type ServiceDeps struct {
	Users         UserStore
	EmailVerifier Verifier
	PhoneVerifier Verifier
	Notifier      Notifier
	HashPassword  func(plain string) (string, error) // defaults to password.Hash
	NewID         id.Generator                       // defaults to id.New
	Now           func() time.Time
	Logger        *slog.Logger
}

type service struct {
	ServiceDeps
}

func NewService(deps ServiceDeps) Service {
	if deps.HashPassword == nil {
		deps.HashPassword = password.Hash
	}
	if deps.NewID == nil {
		deps.NewID = id.New
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &service{ServiceDeps: deps}
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	_, err := s.Users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %w", ErrEmailTaken, domain.ErrConflict)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, storeErr("lookup user", err)
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.Now()
	u := &domain.User{
		ID:                 s.NewID(),
		Email:              req.Email,
		PasswordHash:       hash,
		VerificationStatus: domain.StatusUnverified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: %w", ErrEmailTaken, domain.ErrConflict)
		}
		return nil, storeErr("create user", err)
	}

	issued, err := s.EmailVerifier.Issue(ctx, u.ID, "")
	if err != nil {
		return nil, err
	}
	s.Notifier.SendVerificationEmail(ctx, u.Email, issued.Secret)
	s.Logger.InfoContext(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

func (s *service) VerifyEmail(ctx context.Context, token string) (string, error) {
	rec, err := s.EmailVerifier.Consume(ctx, verification.ConsumeRequest{Secret: token})
	if err != nil {
		return "", lifecycleErr(ErrInvalidToken, err)
	}
	if err := s.Users.SetEmailVerified(ctx, rec.SubjectID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: %w", ErrUserNotFound, domain.ErrNotFound)
		}
		return "", storeErr("set email verified", err)
	}
	s.Logger.InfoContext(ctx, "email verified", "user_id", rec.SubjectID)
	return PhoneSetupURL, nil
}

func (s *service) SendSMSCode(ctx context.Context, req domain.SendSMSCodeRequest) error {
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validate.Struct(req); err != nil {
		return err
	}
	if _, err := s.user(ctx, req.UserID); err != nil {
		return err
	}
	if err := s.checkPhoneFree(ctx, req.UserID, req.Phone); err != nil {
		return err
	}

	issued, err := s.PhoneVerifier.Issue(ctx, req.UserID, req.Phone)
	if err != nil {
		return err
	}
	s.Notifier.SendVerificationSMS(ctx, req.Phone, issued.Secret)
	return nil
}

func (s *service) VerifyPhone(ctx context.Context, req domain.VerifyPhoneRequest) (string, error) {
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validate.Struct(req); err != nil {
		return "", err
	}
	rec, err := s.PhoneVerifier.Consume(ctx, verification.ConsumeRequest{
		Channel:   req.Phone,
		Secret:    req.Code,
		SubjectID: req.UserID,
	})
	if err != nil {
		return "", lifecycleErr(ErrInvalidCode, err)
	}
	if err := s.Users.SetPhoneVerified(ctx, rec.SubjectID, rec.Channel); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return "", fmt.Errorf("%w: %w", ErrUserNotFound, domain.ErrNotFound)
		case errors.Is(err, domain.ErrConflict):
			return "", fmt.Errorf("%w: %w", ErrPhoneTaken, domain.ErrConflict)
		}
		return "", storeErr("set phone verified", err)
	}
	s.Logger.InfoContext(ctx, "phone verified", "user_id", rec.SubjectID)
	return PasswordSetupURL, nil
}

func (s *service) user(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.Users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrUserNotFound, domain.ErrNotFound)
		}
		return nil, storeErr("get user", err)
	}
	return u, nil
}

func (s *service) checkPhoneFree(ctx context.Context, userID, phone string) error {
	owner, err := s.Users.GetByPhone(ctx, phone)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return storeErr("lookup phone", err)
	case owner.ID != userID:
		return fmt.Errorf("%w: %w", ErrPhoneTaken, domain.ErrConflict)
	}
	return nil
}

// lifecycleErr folds the consume failures a client may see into one
// invalid-secret error. Store failures pass through.
func lifecycleErr(invalid, err error) error {
	if errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrExpired) ||
		errors.Is(err, domain.ErrAlreadyConsumed) ||
		verification.IsMismatch(err) {
		return fmt.Errorf("%w: %w: %w", invalid, domain.ErrBadRequest, err)
	}
	return err
}

func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
