// Package reminder delivers notifications for due event reminders.
//
// A Scheduler runs one tick per interval. Each tick selects the events that have
// reminders at or before now that were not sent yet, sends one notification per
// event and only then records the reminders as sent. A failed send leaves the
// reminders untouched so the next tick picks them up again. A crash between a
// successful send and the write of the flags results in a second notification on
// the next tick.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pathakanu/eventide/internal/model"
	"github.com/pathakanu/eventide/internal/notify"
	"github.com/pathakanu/eventide/internal/store"
	"github.com/robfig/cron/v3"
)

const (
	// DefaultInterval is the time between two ticks.
	DefaultInterval = time.Minute
	// DefaultSendTimeout bounds a single notifier call.
	DefaultSendTimeout = 30 * time.Second
)

// EventStore is the persistence the scheduler needs.
type EventStore interface {
	FindEventsWithDueUnsentReminders(ctx context.Context, now time.Time) ([]model.Event, error)
	PersistEvent(ctx context.Context, event *model.Event) error
}

// UserDirectory resolves the owner of an event. Unknown ids yield store.ErrUserNotFound.
type UserDirectory interface {
	LookupUser(ctx context.Context, id string) (*model.User, error)
}

// MessageComposer renders the notification for one event.
type MessageComposer interface {
	Compose(ctx context.Context, user *model.User, event *model.Event) (notify.Message, error)
}

// Recorder receives tick statistics. *metrics.Collector implements it.
type Recorder interface {
	TickStarted()
	TickFailed()
	RemindersDelivered(n int)
	NotificationFailed(reason string)
	TickDuration(d time.Duration)
}

// TickResult summarises one tick.
type TickResult struct {
	Selected      int
	Delivered     int
	Failed        int
	Skipped       int
	RemindersSent int
}

// Scheduler coordinates the store, the composer and the notifier.
type Scheduler struct {
	store    EventStore
	users    UserDirectory
	notifier notify.Notifier
	composer MessageComposer
	logger   *log.Logger
	metrics  Recorder

	interval    time.Duration
	sendTimeout time.Duration
	now         func() time.Time

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	// mu serialises ticks, including RunOnce calls made outside the cron loop.
	mu sync.Mutex
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the tick interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSendTimeout bounds each notifier call. Non-positive values are ignored.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// WithClock replaces time.Now as the source of a tick's now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithMetrics records tick statistics in r.
func WithMetrics(r Recorder) Option {
	return func(s *Scheduler) {
		s.metrics = r
	}
}

// New creates a Scheduler. It does not start ticking until Start is called.
func New(eventStore EventStore, users UserDirectory, notifier notify.Notifier, composer MessageComposer, logger *log.Logger, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		store:       eventStore,
		users:       users,
		notifier:    notifier,
		composer:    composer,
		logger:      logger,
		metrics:     noopRecorder{},
		interval:    DefaultInterval,
		sendTimeout: DefaultSendTimeout,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	cronLogger := cron.PrintfLogger(logger)
	s.cron = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.DelayIfStillRunning(cronLogger)),
	)
	return s
}

// Start registers the tick job and starts the cron loop. It must be called once.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.tick)
	if err != nil {
		return fmt.Errorf("scheduler: register tick: %w", err)
	}
	s.cron.Start()
	s.logger.Printf("scheduler: started, checking reminders every %s", s.interval)
	return nil
}

// Stop stops scheduling new ticks, cancels in-flight sends and waits for a running
// tick to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	s.cancel()
	<-ctx.Done()
	s.logger.Printf("scheduler: stopped")
}

func (s *Scheduler) tick() {
	if _, err := s.RunOnce(s.ctx); err != nil {
		s.logger.Printf("scheduler: tick failed: %v", err)
	}
}

// RunOnce executes a single tick synchronously. A store failure aborts the tick and
// is returned; notification failures are logged and counted in the result.
func (s *Scheduler) RunOnce(ctx context.Context) (TickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result TickResult
	start := time.Now()
	now := s.now()

	s.metrics.TickStarted()
	defer func() { s.metrics.TickDuration(time.Since(start)) }()
	s.logger.Printf("scheduler: checking for reminders due at %s", now.UTC().Format(time.RFC3339))

	events, err := s.store.FindEventsWithDueUnsentReminders(ctx, now)
	if err != nil {
		s.metrics.TickFailed()
		return result, fmt.Errorf("scheduler: select due reminders: %w", err)
	}
	result.Selected = len(events)

	for i := range events {
		if err := ctx.Err(); err != nil {
			s.metrics.TickFailed()
			return result, fmt.Errorf("scheduler: tick interrupted: %w", err)
		}

		out, sent, err := s.processEvent(ctx, now, &events[i])
		switch out {
		case outcomeDelivered:
			result.Delivered++
			result.RemindersSent += sent
		case outcomeFailed:
			result.Failed++
		case outcomeSkipped:
			result.Skipped++
		}
		if err != nil {
			s.metrics.TickFailed()
			return result, err
		}
	}

	s.logger.Printf("scheduler: processed %d events: %d delivered, %d failed, %d skipped",
		result.Selected, result.Delivered, result.Failed, result.Skipped)
	return result, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeDelivered
	outcomeFailed
)

// processEvent sends one notification for all due reminders of event. The returned
// error is non-nil only for store failures that must abort the tick.
func (s *Scheduler) processEvent(ctx context.Context, now time.Time, event *model.Event) (outcome, int, error) {
	due := event.DueReminders(now)
	if len(due) == 0 {
		return outcomeSkipped, 0, nil
	}

	user, err := s.users.LookupUser(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			s.logger.Printf("scheduler: ERROR event %s (%q): owner %s not found, skipping", event.ID, event.Name, event.UserID)
			s.metrics.NotificationFailed("user")
			return outcomeSkipped, 0, nil
		}
		return outcomeFailed, 0, fmt.Errorf("scheduler: lookup user %s: %w", event.UserID, err)
	}

	msg, err := s.composer.Compose(ctx, user, event)
	if err != nil {
		s.logger.Printf("scheduler: ERROR event %s (%q): compose notification: %v", event.ID, event.Name, err)
		s.metrics.NotificationFailed("compose")
		return outcomeSkipped, 0, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	err = s.notifier.Notify(sendCtx, msg)
	cancel()
	if err != nil {
		s.logger.Printf("scheduler: failed to send reminder for event %s (%q) to %s: %v", event.ID, event.Name, msg.To, err)
		s.metrics.NotificationFailed("send")
		return outcomeFailed, 0, nil
	}

	for _, r := range due {
		r.Sent = true
	}
	if err := s.store.PersistEvent(ctx, event); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Printf("scheduler: event %s (%q) was deleted after its reminder was sent", event.ID, event.Name)
			return outcomeDelivered, 0, nil
		}
		return outcomeFailed, 0, fmt.Errorf("scheduler: persist event %s: %w", event.ID, err)
	}

	s.metrics.RemindersDelivered(len(due))
	s.logger.Printf("scheduler: reminder sent for event %s (%q) to %s, %d reminder(s) marked sent", event.ID, event.Name, msg.To, len(due))
	return outcomeDelivered, len(due), nil
}

type noopRecorder struct{}

func (noopRecorder) TickStarted() {}
func (noopRecorder) TickFailed() {}
func (noopRecorder) RemindersDelivered(int) {}
func (noopRecorder) NotificationFailed(string) {}
func (noopRecorder) TickDuration(time.Duration) {}
