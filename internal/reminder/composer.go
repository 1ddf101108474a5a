package reminder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"strings"
	"time"

	"github.com/pathakanu/eventide/internal/config"
	"github.com/pathakanu/eventide/internal/model"
	"github.com/pathakanu/eventide/internal/notify"
)

// ErrNoAddress is returned when the user has no address for the configured channel.
var ErrNoAddress = errors.New("reminder: user has no address for channel")

const dateLayout = "Mon, 02 Jan 2006 15:04 MST"

const noDescription = "No description provided"

var emailTemplate = template.Must(template.New("reminder").Parse(`<h1>Event Reminder</h1>
<p>Hello {{.UserName}},</p>
<p>This is a reminder for your upcoming event:</p>
<h2>{{.EventName}}</h2>
<p><strong>Date:</strong> {{.Date}}</p>
<p><strong>Description:</strong> {{.Description}}</p>
<p>Thank you for using our Event Reminder System!</p>
`))

// Summarizer shortens an event description for length-limited channels.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
}

// Composer renders reminder notifications for email or SMS delivery.
type Composer struct {
	channel    string
	location   *time.Location
	summarizer Summarizer
	logger     *log.Logger
}

// NewComposer returns a Composer for channel (config.ChannelEmail or config.ChannelSMS).
// Dates are rendered in loc. summarizer may be nil.
func NewComposer(channel string, loc *time.Location, summarizer Summarizer, logger *log.Logger) *Composer {
	if loc == nil {
		loc = time.UTC
	}
	return &Composer{channel: channel, location: loc, summarizer: summarizer, logger: logger}
}

// Compose builds one message for all due reminders of event.
func (c *Composer) Compose(ctx context.Context, user *model.User, event *model.Event) (notify.Message, error) {
	subject := fmt.Sprintf("Reminder: %s", event.Name)
	date := event.Date.In(c.location).Format(dateLayout)

	if c.channel == config.ChannelSMS {
		to := strings.TrimSpace(user.Phone)
		if to == "" {
			return notify.Message{}, fmt.Errorf("%w %s", ErrNoAddress, c.channel)
		}
		return notify.Message{To: to, Subject: subject, Body: c.smsBody(ctx, event, date)}, nil
	}

	to := strings.TrimSpace(user.Email)
	if to == "" {
		return notify.Message{}, fmt.Errorf("%w %s", ErrNoAddress, config.ChannelEmail)
	}

	description := event.Description
	if strings.TrimSpace(description) == "" {
		description = noDescription
	}

	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, struct {
		UserName    string
		EventName   string
		Date        string
		Description string
	}{user.Name, event.Name, date, description})
	if err != nil {
		return notify.Message{}, fmt.Errorf("render reminder email: %w", err)
	}
	return notify.Message{To: to, Subject: subject, Body: buf.String(), HTML: true}, nil
}

func (c *Composer) smsBody(ctx context.Context, event *model.Event, date string) string {
	body := fmt.Sprintf("Reminder: %s on %s", event.Name, date)

	description := strings.TrimSpace(event.Description)
	if description == "" {
		return body
	}
	if c.summarizer != nil {
		summary, err := c.summarizer.Summarize(ctx, description)
		if err == nil && summary != "" {
			return body + " - " + summary
		}
		if c.logger != nil {
			c.logger.Printf("composer: summarise event %s: %v", event.ID, err)
		}
	}
	return body + " - " + description
}
