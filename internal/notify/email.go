package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	mail "github.com/wneessen/go-mail"
)

// EmailConfig holds the SMTP endpoint and credentials. User doubles as the From address.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Timeout  time.Duration
}

// Email sends notifications over SMTP.
type Email struct {
	client *mail.Client
	from   string
}

// NewEmail creates an SMTP notifier. It fails when credentials are missing so that
// misconfiguration surfaces at startup instead of at the first reminder.
func NewEmail(cfg EmailConfig) (*Email, error) {
	if strings.TrimSpace(cfg.User) == "" || cfg.Password == "" {
		return nil, fmt.Errorf("email notifier: %w", ErrNotConfigured)
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.User),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("email notifier: %w", err)
	}
	return &Email{client: client, from: cfg.User}, nil
}

// Notify builds a MIME message and delivers it within ctx.
func (e *Email) Notify(ctx context.Context, msg Message) error {
	m, err := e.buildMessage(msg)
	if err != nil {
		return err
	}
	if err := e.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	return nil
}

func (e *Email) buildMessage(msg Message) (*mail.Msg, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, fmt.Errorf("email recipient missing")
	}

	m := mail.NewMsg()
	if err := m.From(e.from); err != nil {
		return nil, fmt.Errorf("email from %q: %w", e.from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("email to %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)

	contentType := mail.TypeTextPlain
	if msg.HTML {
		contentType = mail.TypeTextHTML
	}
	m.SetBodyString(contentType, msg.Body)
	return m, nil
}
