package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-api-verify/internal/domain"
)

// EmailSender delivers one email with a plain-text and an optional HTML part.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, text, html string) error
}

// SMSSender delivers one text message to an E.164 number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

const emailSubject = "Verify your email address - Groundtruth"

var emailHTML = template.Must(template.New("verify-email").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Verify your email</title>
  </head>
  <body style="font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; margin: 0; padding: 0; background-color: #f4f4f4;">
    <table width="100%" cellpadding="0" cellspacing="0" style="background-color: #f4f4f4; padding: 20px;">
      <tr>
        <td align="center">
          <table width="600" cellpadding="0" cellspacing="0" style="background-color: #ffffff; border-radius: 8px; padding: 40px;">
            <tr>
              <td>
                <h1 style="color: #333333; font-size: 24px; margin: 0 0 20px 0;">Verify your email address</h1>
                <p style="color: #666666; font-size: 16px; line-height: 1.5; margin: 0 0 20px 0;">
                  Thanks for signing up for Groundtruth! Please verify your email address by clicking the button below.
                </p>
                <p style="margin: 30px 0;">
                  <a href="{{.Link}}" style="background-color: #4F46E5; color: #ffffff; padding: 14px 28px; text-decoration: none; border-radius: 6px; display: inline-block; font-weight: 600;">Verify Email Address</a>
                </p>
                <p style="color: #666666; font-size: 14px; line-height: 1.5; margin: 20px 0 0 0;">Or copy and paste this link into your browser:</p>
                <p style="color: #4F46E5; font-size: 14px; word-break: break-all; margin: 10px 0 20px 0;">{{.Link}}</p>
                <hr style="border: none; border-top: 1px solid #eeeeee; margin: 30px 0;">
                <p style="color: #999999; font-size: 12px; margin: 0;">
                  This link will expire in 24 hours. If you didn't create an account with Groundtruth, you can safely ignore this email.
                </p>
              </td>
            </tr>
          </table>
        </td>
      </tr>
    </table>
  </body>
</html>
`))

// Email is a rendered verification email.
type Email struct {
	Subject string
	Text    string
	HTML    string
	Link    string
}

// VerificationLink returns the frontend URL the user follows to confirm an email token.
func VerificationLink(frontendURL, token string) string {
	return frontendURL + "/verify-email?token=" + url.QueryEscape(token)
}

// RenderVerificationEmail builds the email carrying token.
func RenderVerificationEmail(frontendURL, token string) (*Email, error) {
	link := VerificationLink(frontendURL, token)
	var buf bytes.Buffer
	if err := emailHTML.Execute(&buf, struct{ Link string }{link}); err != nil {
		return nil, fmt.Errorf("render verification email: %w", err)
	}
	return &Email{
		Subject: emailSubject,
		Text: "Thanks for signing up for Groundtruth! Verify your email address by opening this link:\n\n" +
			link + "\n\nThis link will expire in 24 hours.",
		HTML: buf.String(),
		Link: link,
	}, nil
}

// VerificationSMS is the text sent with a phone code.
func VerificationSMS(code string) string {
	return fmt.Sprintf("Your Groundtruth verification code is: %s. This code expires in 10 minutes.", code)
}

type Options struct {
	FrontendURL string
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Dispatcher sends verification messages in the background. A failed send is
// logged and never reported to the caller.
type Dispatcher struct {
	email       EmailSender
	sms         SMSSender
	frontendURL string
	timeout     time.Duration
	log         *slog.Logger
	wg          sync.WaitGroup
}

func NewDispatcher(email EmailSender, sms SMSSender, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		email:       email,
		sms:         sms,
		frontendURL: opts.FrontendURL,
		timeout:     opts.Timeout,
		log:         opts.Logger,
	}
}

func (d *Dispatcher) SendVerificationEmail(ctx context.Context, to, token string) {
	msg, err := RenderVerificationEmail(d.frontendURL, token)
	if err != nil {
		d.log.ErrorContext(ctx, "verification email not sent", "to", to, "err", err)
		return
	}
	d.dispatch(ctx, "email", to, func(ctx context.Context) error {
		return d.email.SendEmail(ctx, to, msg.Subject, msg.Text, msg.HTML)
	})
}

func (d *Dispatcher) SendVerificationSMS(ctx context.Context, to, code string) {
	body := VerificationSMS(code)
	d.dispatch(ctx, "sms", to, func(ctx context.Context) error {
		return d.sms.SendSMS(ctx, to, body)
	})
}

// Wait blocks until every in-flight send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, kind, to string, send func(context.Context) error) {
	// detach from the request so delivery outlives the response
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		start := time.Now()
		if err := send(ctx); err != nil {
			err = fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
			d.log.ErrorContext(ctx, "verification delivery failed", "kind", kind, "to", to, "err", err)
			return
		}
		d.log.InfoContext(ctx, "verification delivered", "kind", kind, "to", to, "duration", time.Since(start))
	}()
}
