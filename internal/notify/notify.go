// Package notify defines the delivery contract used by the reminder scheduler and
// an SMTP implementation of it.
package notify

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by notifiers that were constructed without credentials.
var ErrNotConfigured = errors.New("notify: notifier not configured")

// Message is a single notification addressed to one recipient.
type Message struct {
	To      string
	Subject string
	Body    string
	HTML    bool
}

// Notifier delivers a message. A nil error means the message was accepted for delivery.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Func adapts an ordinary function to the Notifier interface.
type Func func(ctx context.Context, msg Message) error

// Notify calls f(ctx, msg).
func (f Func) Notify(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
