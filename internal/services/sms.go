package services

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// TwilioSender sends SMS through the Twilio messages API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, from: from}
}

func (t *TwilioSender) SendSMS(_ context.Context, to, body string) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	if resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return fmt.Errorf("twilio rejected message: %s", *resp.ErrorMessage)
	}
	return nil
}
