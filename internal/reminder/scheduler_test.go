package reminder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pathakanu/eventide/internal/config"
	"github.com/pathakanu/eventide/internal/model"
	"github.com/pathakanu/eventide/internal/notify"
	"github.com/pathakanu/eventide/internal/store"
)

var tickNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// memStore is an in-memory EventStore and UserDirectory.
type memStore struct {
	mu         sync.Mutex
	events     map[string]*model.Event
	users      map[string]*model.User
	findErr    error
	persistErr error
	persists   int
}

func newMemStore() *memStore {
	return &memStore{events: map[string]*model.Event{}, users: map[string]*model.User{}}
}

func (m *memStore) addUser(id, email string) {
	m.users[id] = &model.User{ID: id, Name: "User " + id, Email: email}
}

func (m *memStore) addEvent(id, userID, name string, times ...time.Time) {
	ev := &model.Event{ID: id, UserID: userID, Name: name, Date: tickNow.Add(time.Hour)}
	for i, at := range times {
		ev.Reminders = append(ev.Reminders, model.Reminder{ID: id + "-r" + string(rune('0'+i)), EventID: id, Time: at})
	}
	m.events[id] = ev
}

func (m *memStore) FindEventsWithDueUnsentReminders(ctx context.Context, now time.Time) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}

	var out []model.Event
	for _, ev := range m.events {
		if len(ev.DueReminders(now)) == 0 {
			continue
		}
		cp := *ev
		cp.Reminders = slices.Clone(ev.Reminders)
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b model.Event) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *memStore) PersistEvent(ctx context.Context, event *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persists++
	if m.persistErr != nil {
		return m.persistErr
	}
	stored, ok := m.events[event.ID]
	if !ok {
		return store.ErrNotFound
	}
	for _, r := range event.Reminders {
		if !r.Sent {
			continue
		}
		for i := range stored.Reminders {
			if stored.Reminders[i].ID == r.ID {
				stored.Reminders[i].Sent = true
			}
		}
	}
	return nil
}

func (m *memStore) LookupUser(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func (m *memStore) sent(eventID string) []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	var flags []bool
	for _, r := range m.events[eventID].Reminders {
		flags = append(flags, r.Sent)
	}
	return flags
}

// recordingNotifier records every message and fails for addresses listed in failFor.
type recordingNotifier struct {
	mu      sync.Mutex
	msgs    []notify.Message
	failFor map[string]error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	if err, ok := n.failFor[msg.To]; ok {
		return err
	}
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

func newTestScheduler(st *memStore, n notify.Notifier, opts ...Option) *Scheduler {
	logger := log.New(io.Discard, "", 0)
	composer := NewComposer(config.ChannelEmail, time.UTC, nil, logger)
	opts = append([]Option{WithClock(func() time.Time { return tickNow })}, opts...)
	return New(st, st, n, composer, logger, opts...)
}

func allTrue(flags []bool) bool {
	for _, f := range flags {
		if !f {
			return false
		}
	}
	return len(flags) > 0
}

func TestRunOnceBatchesDueRemindersPerEvent(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.addUser("u1", "ada@example.com")
	st.addEvent("e1", "u1", "Standup", tickNow.Add(-10*time.Minute), tickNow.Add(-5*time.Minute))
	n := &recordingNotifier{}

	res, err := newTestScheduler(st, n).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n.count() != 1 {
		t.Fatalf("expected exactly one notification, got %d", n.count())
	}
	if !strings.Contains(n.msgs[0].Subject, "Standup") || n.msgs[0].To != "ada@example.com" {
		t.Fatalf("unexpected message %+v", n.msgs[0])
	}
	if !allTrue(st.sent("e1")) {
		t.Fatalf("expected both reminders marked sent, got %v", st.sent("e1"))
	}
	if res.Delivered != 1 || res.RemindersSent != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunOnceLeavesFutureRemindersUnsent(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.addUser("u1", "ada@example.com")
	st.addEvent("e1", "u1", "Standup", tickNow.Add(-time.Minute), tickNow.Add(time.Minute))
	n := &recordingNotifier{}

	if _, err := newTestScheduler(st, n).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	flags := st.sent("e1")
	if !flags[0] || flags[1] {
		t.Fatalf("expected only the past reminder sent, got %v", flags)
	}
}

func TestRunOnceDoesNotResendDeliveredReminders(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.addUser("u1", "ada@example.com")
	st.addEvent("e1", "u1", "Standup", tickNow.Add(-time.Minute))
	n := &recordingNotifier{}
	s := newTestScheduler(st, n)

	for i := 0; i < 3; i++ {
		if _, err := s.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce #%d: %v", i, err)
		}
	}
	if n.count() != 1 {
		t.Fatalf("expected one notification over three ticks, got %d", n.count())
	}
}

func TestRunOnceRetriesAfterSendFailure(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.addUser("u1", "ada@example.com")
	st.addEvent("e1", "u1", "Standup", tickNow.Add(-10*time.Minute), tickNow.Add(-5*time.Minute))
	n := &recordingNotifier{failFor: map[string]error{"ada@example.com": context.DeadlineExceeded}}
	s := newTestScheduler(st, n)

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("expected one failed event, got %+v", res)
	}
	if flags := st.sent("e1"); flags[0] || flags[1] {
		t.Fatalf("reminders must stay unsent after failure, got %v", flags)
	}
	if st.persists != 0 {
		t.Fatalf("store must not be written after a failed send")
	}

	n.mu.Lock()
	delete(n.failFor, "ada@example.com")
	n.mu.Unlock()

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n.count() != 2 {
		t.Fatalf("expected the event to be selected again, got %d sends", n.count())
	}
	if !allTrue(st.sent("e1")) {
		t.Fatalf("expected reminders sent after retry, got %v", st.sent("e1"))
	}
}

func TestRunOnceIsolatesEventFailures(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.addUser("u1", "bad@example.com")
	st.addUser("u2", "good@example.com")
	st.addEvent("a", "u1", "Broken", tickNow.Add(-time.Minute))
	st.addEvent("b", "u2", "Working", tickNow.Add(-time.Minute))
	n := &recordingNotifier{failFor: map[string]error{"bad@example.com": errors.New("mailbox unavailable")}}

	res, err := newTestScheduler(st, n).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if st.sent("a")[0] {
		t.Fatalf("failed event must stay unsent")
	}
	if !st.sent("b")[0] {
		t.Fatalf("event b must be delivered despite event a failing")
	}
	if res.Delivered != 1 || res.Failed != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunOnceLogsTickProgress(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.addUser("u1", "bad@example.com")
	st.addUser("u2", "good@example.com")
	st.addEvent("a", "u1", "Broken", tickNow.Add(-time.Minute))
	st.addEvent("b", "u2", "Working", tickNow.Add(-time.Minute))
	n := &recordingNotifier{failFor: map[string]error{"bad@example.com": errors.New("mailbox unavailable")}}

	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	s := New(st, st, n, NewComposer(config.ChannelEmail, time.UTC, nil, logger), logger,
		WithClock(func() time.Time { return tickNow }))

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"scheduler: checking for reminders due at 2025-03-10T09:00:00Z",
		`scheduler: failed to send reminder for event a ("Broken") to bad@example.com: mailbox unavailable`,
		`scheduler: reminder sent for event b ("Working") to good@example.com, 1 reminder(s) marked sent`,
		"scheduler: processed 2 events: 1 delivered, 1 failed, 0 skipped",
	} {
		if strings.Count(out, want) != 1 {
			t.Fatalf("expected log line %q exactly once, got:\n%s", want, out)
		}
	}
}

func TestRunOnceSkipsMissingUser(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.addUser("u2", "good@example.com")
	st.addEvent("a", "ghost", "Orphan", tickNow.Add(-time.Minute))
	st.addEvent("b", "u2", "Working", tickNow.Add(-time.Minute))
	n := &recordingNotifier{}

	res, err := newTestScheduler(st, n).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if st.sent("a")[0] {
		t.Fatalf("orphaned event must not be marked sent")
	}
	if !st.sent("b")[0] {
		t.Fatalf("other events must still be processed")
	}
	if res.Skipped != 1 || n.count() != 1 {
		t.Fatalf("unexpected result %+v with %d sends", res, n.count())
	}
}

func TestRunOnceStoreQueryFailure(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.findErr = errors.New("connection refused")
	n := &recordingNotifier{}

	if _, err := newTestScheduler(st, n).RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error when the store query fails")
	}
	if n.count() != 0 {
		t.Fatalf("no notification expected")
	}
}

func TestRunOnceStoreWriteFailureAbortsTick(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.addUser("u1", "ada@example.com")
	st.addEvent("a", "u1", "First", tickNow.Add(-time.Minute))
	st.addEvent("b", "u1", "Second", tickNow.Add(-time.Minute))
	st.persistErr = errors.New("disk full")
	n := &recordingNotifier{}

	if _, err := newTestScheduler(st, n).RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error when persisting fails")
	}
	if n.count() != 1 {
		t.Fatalf("tick should stop after the first failed write, got %d sends", n.count())
	}
}

func TestRunOnceEventDeletedAfterSend(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.addUser("u1", "ada@example.com")
	st.addEvent("a", "u1", "Gone", tickNow.Add(-time.Minute))
	n := notify.Func(func(ctx context.Context, msg notify.Message) error {
		st.mu.Lock()
		delete(st.events, "a")
		st.mu.Unlock()
		return nil
	})

	if _, err := newTestScheduler(st, n).RunOnce(context.Background()); err != nil {
		t.Fatalf("a deleted event must not abort the tick: %v", err)
	}
}

func TestRunOnceAppliesSendTimeout(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.addUser("u1", "ada@example.com")
	st.addEvent("a", "u1", "Slow", tickNow.Add(-time.Minute))
	n := notify.Func(func(ctx context.Context, msg notify.Message) error {
		<-ctx.Done()
		return ctx.Err()
	})

	res, err := newTestScheduler(st, n, WithSendTimeout(20*time.Millisecond)).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Failed != 1 || st.sent("a")[0] {
		t.Fatalf("timeout must be treated as a failed send, got %+v", res)
	}
}

func TestRunOnceSerialisesConcurrentTicks(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.addUser("u1", "ada@example.com")
	st.addEvent("a", "u1", "Standup", tickNow.Add(-time.Minute))

	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
		calls    int
	)
	n := notify.Func(func(ctx context.Context, msg notify.Message) error {
		mu.Lock()
		inFlight++
		calls++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})
	s := newTestScheduler(st, n)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.RunOnce(context.Background()); err != nil {
				t.Errorf("RunOnce: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("ticks overlapped: %d concurrent sends", maxSeen)
	}
	if calls != 1 {
		t.Fatalf("expected a single delivery across concurrent ticks, got %d", calls)
	}
}

func TestStartRunsTicksUntilStopped(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	st.addUser("u1", "ada@example.com")
	st.addEvent("a", "u1", "Standup", tickNow.Add(-time.Minute))
	n := &recordingNotifier{}

	s := newTestScheduler(st, n, WithInterval(time.Second))
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for n.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()

	if n.count() != 1 {
		t.Fatalf("expected one notification from the cron tick, got %d", n.count())
	}
	if !st.sent("a")[0] {
		t.Fatalf("expected reminder sent by the cron tick")
	}
}
