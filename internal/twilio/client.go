package twilio

import (
	"context"
	"fmt"
	"strings"

	"github.com/pathakanu/eventide/internal/notify"
	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the subset of the Twilio REST API used to send SMS.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Client delivers reminder notifications as SMS through Twilio.
type Client struct {
	api        messageCreator
	fromNumber string
}

// New creates a Twilio client bound to the configured sender number.
func New(accountSID, authToken, fromNumber string) (*Client, error) {
	if accountSID == "" || authToken == "" || normalizePhoneNumber(fromNumber) == "" {
		return nil, fmt.Errorf("twilio: %w", notify.ErrNotConfigured)
	}
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken})
	return &Client{api: rest.Api, fromNumber: fromNumber}, nil
}

// Notify sends msg as an SMS. The subject is used as the first line of the text.
// The Twilio SDK call is not cancellable, so a cancelled ctx abandons the request
// and reports the context error.
func (c *Client) Notify(ctx context.Context, msg notify.Message) error {
	if c.api == nil {
		return fmt.Errorf("twilio client not initialised")
	}

	sender := normalizePhoneNumber(c.fromNumber)
	if sender == "" {
		return fmt.Errorf("twilio sender number is not configured")
	}
	recipient := normalizePhoneNumber(msg.To)
	if recipient == "" {
		return fmt.Errorf("recipient number missing or invalid")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(sender)
	params.SetBody(smsBody(msg))

	done := make(chan error, 1)
	go func() {
		_, err := c.api.CreateMessage(params)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("twilio send message: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("twilio send message error: %w", err)
		}
		return nil
	}
}

func smsBody(msg notify.Message) string {
	body := strings.TrimSpace(msg.Body)
	if msg.Subject == "" || strings.HasPrefix(body, msg.Subject) {
		return body
	}
	return msg.Subject + "\n" + body
}

func normalizePhoneNumber(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "+") {
		return trimmed
	}
	return "+" + trimmed
}
