package twilio

import (
	"context"
	"fmt"

	tw "github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// MessageCreator is the subset of the Twilio REST API used by Sender.
type MessageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Sender delivers SMS through Twilio Programmable Messaging.
type Sender struct {
	api  MessageCreator
	from string
}

func NewSender(accountSID, authToken, from string) *Sender {
	client := tw.NewRestClientWithParams(tw.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return NewSenderWithClient(client.Api, from)
}

func NewSenderWithClient(api MessageCreator, from string) *Sender {
	return &Sender{api: api, from: from}
}

// SendSMS only checks ctx before the call; the Twilio client takes no context.
func (s *Sender) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	if _, err := s.api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	return nil
}
