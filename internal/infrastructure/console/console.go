package console

import (
	"context"
	"log/slog"
)

// Mailer logs outgoing email instead of sending it. Used in development.
type Mailer struct {
	log *slog.Logger
}

func NewMailer(log *slog.Logger) *Mailer {
	return &Mailer{log: log.With("provider", "console")}
}

func (m *Mailer) SendEmail(ctx context.Context, to, subject, text, _ string) error {
	m.log.InfoContext(ctx, "email", "to", to, "subject", subject, "body", text)
	return nil
}

// SMSSender logs outgoing SMS instead of sending it.
type SMSSender struct {
	log *slog.Logger
}

func NewSMSSender(log *slog.Logger) *SMSSender {
	return &SMSSender{log: log.With("provider", "console")}
}

func (s *SMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.log.InfoContext(ctx, "sms", "to", to, "body", body)
	return nil
}
