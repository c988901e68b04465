package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger is satisfied by *verification.Manager.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Result counts the rows removed per flow.
type Result struct {
	Email int64
	Phone int64
}

// Service deletes expired, never-verified verification records.
type Service struct {
	email   Purger
	phone   Purger
	timeout time.Duration
	log     *slog.Logger
}

func NewService(email, phone Purger, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{email: email, phone: phone, timeout: 5 * time.Minute, log: log.With("job", "purge")}
}

// PurgeExpired runs both flows even when the first fails.
func (s *Service) PurgeExpired(ctx context.Context) (Result, error) {
	var (
		res  Result
		errs []error
	)
	n, err := s.email.PurgeExpired(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge email verifications: %w", err))
	}
	res.Email = n

	n, err = s.phone.PurgeExpired(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge phone verifications: %w", err))
	}
	res.Phone = n

	if err := errors.Join(errs...); err != nil {
		s.log.ErrorContext(ctx, "purge failed", "err", err, "email", res.Email, "phone", res.Phone)
		return res, err
	}
	s.log.InfoContext(ctx, "purged expired verifications", "email", res.Email, "phone", res.Phone)
	return res, nil
}

// Schedule starts a cron that runs PurgeExpired on spec (standard 5-field syntax).
// The caller stops it.
func (s *Service) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithLogger(cronLogger{s.log}))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_, _ = s.PurgeExpired(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "err", err)...)
}
