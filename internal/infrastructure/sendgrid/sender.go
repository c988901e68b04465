package sendgrid

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Client is the subset of *sendgrid.Client used by Sender.
type Client interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Sender delivers email through the SendGrid v3 API.
type Sender struct {
	client   Client
	from     string
	fromName string
}

func NewSender(apiKey, from, fromName string) *Sender {
	return NewSenderWithClient(sg.NewSendClient(apiKey), from, fromName)
}

func NewSenderWithClient(client Client, from, fromName string) *Sender {
	return &Sender{client: client, from: from, fromName: fromName}
}

func (s *Sender) SendEmail(ctx context.Context, to, subject, text, html string) error {
	msg := mail.NewSingleEmail(mail.NewEmail(s.fromName, s.from), subject, mail.NewEmail("", to), text, html)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
