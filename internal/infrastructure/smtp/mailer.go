package smtp

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// TLS modes accepted in Options.TLS.
const (
	TLSMandatory = "mandatory"
	TLSImplicit  = "ssl"
	TLSNone      = "none"
)

// Options configures the SMTP relay. The same relay type serves the
// SES SMTP endpoint.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      string
	From     string
	FromName string
}

// Mailer sends multipart emails through an SMTP relay.
type Mailer struct {
	opts       Options
	clientOpts []mail.Option
	send       func(ctx context.Context, c *mail.Client, msg *mail.Msg) error
}

func NewMailer(opts Options) (*Mailer, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if opts.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	clientOpts := []mail.Option{mail.WithPort(opts.Port)}
	switch opts.TLS {
	case TLSMandatory:
		clientOpts = append(clientOpts, mail.WithTLSPolicy(mail.TLSMandatory))
	case TLSImplicit:
		clientOpts = append(clientOpts, mail.WithTLSPolicy(mail.TLSMandatory), mail.WithSSL())
	case TLSNone, "":
		clientOpts = append(clientOpts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		return nil, fmt.Errorf("unknown SMTP TLS mode %q", opts.TLS)
	}
	if opts.Username != "" && opts.Password != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}

	return &Mailer{
		opts:       opts,
		clientOpts: clientOpts,
		send: func(ctx context.Context, c *mail.Client, msg *mail.Msg) error {
			return c.DialAndSendWithContext(ctx, msg)
		},
	}, nil
}

func (m *Mailer) SendEmail(ctx context.Context, to, subject, text, html string) error {
	msg, err := m.message(to, subject, text, html)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(m.opts.Host, m.clientOpts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}
	if err := m.send(ctx, client, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func (m *Mailer) message(to, subject, text, html string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if m.opts.FromName != "" {
		if err := msg.FromFormat(m.opts.FromName, m.opts.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else if err := msg.From(m.opts.From); err != nil {
		return nil, fmt.Errorf("setting from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, text)
	if html != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, html)
	}
	return msg, nil
}
